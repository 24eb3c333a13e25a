package echoapi

import (
	"sort"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/attempt"
)

// Roles
const (
	RoleCandidate   = "candidate"
	RoleInvigilator = "invigilator"
	RoleAdmin       = "admin"
)

var (
	Roles = []string{RoleCandidate, RoleInvigilator, RoleAdmin}

	contextTokenKey = "userToken"
	signingMethod   = middleware.AlgorithmHS256
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

func (c Claims) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	have := append([]string(nil), c.Roles...)
	sort.Strings(have)
	for _, role := range roles {
		if i := sort.SearchStrings(have, role); i < len(have) && have[i] == role {
			return true
		}
	}
	return false
}

// IsInvigilator reports whether the claims may watch any attempt.
func (c Claims) IsInvigilator() bool {
	return c.HasAnyRole(RoleInvigilator, RoleAdmin)
}

// CanAccess reports whether the claims may act on a: invigilators on any attempt, candidates on their own.
func (c Claims) CanAccess(a attempt.Attempt) bool {
	return c.IsInvigilator() || (c.Subject != "" && c.Subject == a.CandidateID)
}

// GetClaims returns fresh claims for subject, valid for the configured JWT lifetime.
func GetClaims(conf *core.Config, subject, email string, roles ...string) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   subject,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: email,
		Roles: roles,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(signingMethod), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// newJWTConfig returns the JWT auth middleware config. lookup is the echo TokenLookup, "" for the header.
func newJWTConfig(conf *core.Config, lookup string) middleware.JWTConfig {
	jwtConf := middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: signingMethod,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
	if lookup != "" {
		jwtConf.TokenLookup = lookup
	}
	return jwtConf
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}
