package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/attempt"
	"github.com/trezcool/examguard/core/proctor"
)

type attemptApi struct {
	svc        attempt.Service
	conf       *core.Config
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
}

func registerAttemptAPI(g *echo.Group, jwt, streamJWT echo.MiddlewareFunc, deps ServerDeps) {
	api := attemptApi{
		svc:        deps.AttemptSvc,
		conf:       deps.Conf,
		logger:     deps.Logger,
		validate:   deps.Validate,
		translator: deps.Translator,
	}
	invigilator := roleMiddleware(RoleInvigilator, RoleAdmin)

	ag := g.Group("/attempts", jwt)
	ag.POST("", api.create, roleMiddleware(Roles...))
	ag.GET("", api.query, invigilator)

	// detail endpoints
	dg := ag.Group("/:id", attemptMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.POST("/start", api.start)
	dg.POST("/stop", api.stop)
	dg.POST("/fullscreen", api.enterFullscreen)
	dg.DELETE("/fullscreen", api.exitFullscreen)
	dg.POST("/reset", api.reset, invigilator)
	dg.POST("/events", api.ingest)
	dg.GET("/violations", api.violations)
	dg.POST("/close", api.close)

	g.GET("/attempts/:id/stream", api.stream, streamJWT, attemptMiddleware(api.svc))
}

// Handlers

func (api *attemptApi) create(ctx echo.Context) error {
	var data attempt.NewAttempt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttempt")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsInvigilator() {
		// candidates open their own attempts under the default policy
		data.CandidateID = claims.Subject
		if data.CandidateEmail == "" {
			data.CandidateEmail = claims.Email
		}
		data.InvigilatorEmail = ""
		data.MaxViolations = 0
	}
	if data.UserAgent == "" {
		data.UserAgent = ctx.Request().UserAgent()
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Open(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "opening attempt")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *attemptApi) query(ctx echo.Context) error {
	filter := new(attempt.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []attempt.Attempt{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	attempts, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if attempts == nil {
		attempts = []attempt.Attempt{}
	}
	return ctx.JSON(http.StatusOK, attempts)
}

func (api *attemptApi) retrieve(ctx echo.Context) error {
	a, err := getContextAttempt(ctx)
	if err != nil {
		return err
	}
	detail, err := api.svc.Snapshot(ctx.Request().Context(), a.ID)
	if err != nil {
		return errors.Wrap(err, "getting snapshot")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *attemptApi) start(ctx echo.Context) error {
	a, err := getContextAttempt(ctx)
	if err != nil {
		return err
	}
	if a, err = api.svc.Start(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *attemptApi) stop(ctx echo.Context) error {
	a, err := getContextAttempt(ctx)
	if err != nil {
		return err
	}
	if a, err = api.svc.Stop(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "stopping attempt")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *attemptApi) enterFullscreen(ctx echo.Context) error {
	a, err := getContextAttempt(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.EnterFullscreen(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "entering fullscreen")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attemptApi) exitFullscreen(ctx echo.Context) error {
	a, err := getContextAttempt(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.ExitFullscreen(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "exiting fullscreen")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attemptApi) reset(ctx echo.Context) error {
	a, err := getContextAttempt(ctx)
	if err != nil {
		return err
	}
	if a, err = api.svc.Reset(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "resetting violations")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *attemptApi) ingest(ctx echo.Context) error {
	a, err := getContextAttempt(ctx)
	if err != nil {
		return err
	}

	var data attempt.ClientMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ClientMessage")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	outcomes, err := api.svc.Ingest(ctx.Request().Context(), a.ID, data)
	if err != nil {
		return errors.Wrap(err, "ingesting events")
	}
	return ctx.JSON(http.StatusOK, IngestResponse{Outcomes: outcomes})
}

func (api *attemptApi) violations(ctx echo.Context) error {
	a, err := getContextAttempt(ctx)
	if err != nil {
		return err
	}
	violations, err := api.svc.Violations(ctx.Request().Context(), a.ID)
	if err != nil {
		return errors.Wrap(err, "querying violations")
	}
	if violations == nil {
		violations = []attempt.Violation{}
	}
	return ctx.JSON(http.StatusOK, violations)
}

func (api *attemptApi) close(ctx echo.Context) error {
	a, err := getContextAttempt(ctx)
	if err != nil {
		return err
	}
	if a, err = api.svc.Close(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "closing attempt")
	}
	return ctx.JSON(http.StatusOK, a)
}

type IngestResponse struct {
	Outcomes []proctor.Outcome `json:"outcomes"`
}
