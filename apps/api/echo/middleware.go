package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/attempt"
)

var contextObjectKey = "object"

func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.HasAnyRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// attemptMiddleware loads the attempt named by the :id param into the context. Attempts the claims cannot
// access are reported as not found.
func attemptMiddleware(svc attempt.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			a, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding attempt by ID")
			}
			if !claims.CanAccess(a) {
				return errHttpNotFound
			}
			ctx.Set(contextObjectKey, a)
			return next(ctx)
		}
	}
}

func getContextAttempt(ctx echo.Context) (attempt.Attempt, error) {
	a, ok := ctx.Get(contextObjectKey).(attempt.Attempt)
	if !ok {
		return attempt.Attempt{}, errors.Wrap(errAttemptNotFoundInCtx, "retrieving object from context")
	}
	return a, nil
}
