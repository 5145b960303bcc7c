package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careorbit/clinic/internal/domain"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	claimsKey    contextKey = "claims"
)

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}

// WithClaims returns ctx carrying the verified token claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the verified token claims, if the request carried a token.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// Principal extracts the caller from an echo request. Handlers behind
// Authenticate can rely on it being present.
func Principal(c echo.Context) domain.Principal {
	p, _ := PrincipalFromContext(c.Request().Context())
	return p
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Authenticate verifies the bearer token, rejects revoked tokens and stores
// the principal on the request context.
func Authenticate(tm *TokenManager, revoked RevocationStore, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			tokenStr, ok := bearerToken(c.Request())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := tm.Parse(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()
			isRevoked, err := revoked.IsRevoked(ctx, claims.ID)
			if err != nil {
				logger.Error().Err(err).Str("jti", claims.ID).Msg("revocation lookup failed")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication temporarily unavailable")
			}
			if isRevoked {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
			}

			p, err := claims.Principal()
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx = WithPrincipal(ctx, p)
			ctx = WithClaims(ctx, claims)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// DevAuthMiddleware authenticates tokens when present and otherwise falls
// back to a fixed development principal. The X-Dev-Role header selects
// which role the fallback principal holds.
func DevAuthMiddleware(tm *TokenManager, revoked RevocationStore, logger zerolog.Logger) echo.MiddlewareFunc {
	strict := Authenticate(tm, revoked, logger)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		checked := strict(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" {
				return checked(c)
			}
			role := domain.Role(c.Request().Header.Get("X-Dev-Role"))
			if !role.Valid() {
				role = domain.RoleAdmin
			}
			p := domain.Principal{ID: DevPrincipalID, Role: role, Name: "dev-user"}
			c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	}
}

// DevPrincipalID identifies the fallback principal in development mode.
var DevPrincipalID = uuid.MustParse("00000000-0000-0000-0000-00000000d0c0")
