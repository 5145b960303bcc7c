package main

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/careorbit/clinic/internal/config"
	"github.com/careorbit/clinic/internal/domain/account"
	"github.com/careorbit/clinic/internal/domain/directory"
	"github.com/careorbit/clinic/internal/domain/patient"
	"github.com/careorbit/clinic/internal/domain/visit"
	"github.com/careorbit/clinic/internal/platform/auth"
	"github.com/careorbit/clinic/internal/platform/db"
	"github.com/careorbit/clinic/internal/platform/middleware"
	"github.com/careorbit/clinic/internal/platform/reporting"
)

const version = "0.1.0"

// exportPath streams the full register and is exempt from the request timeout.
const exportPath = "/api/v1/patients/export"

// store is what the server needs from the database: *pgxpool.Pool in
// production, a pgxmock pool in tests.
type store interface {
	db.DB
	db.Pinger
}

func component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// newServer wires repositories, services and handlers onto a new echo
// instance. stats may be nil.
func newServer(cfg *config.Config, pool store, stats func() *db.PoolStats, revoked auth.RevocationStore, secret []byte, logger zerolog.Logger) (*echo.Echo, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	txm := db.NewTxManager(pool)
	dirRepo := directory.NewRepo(pool)
	tokens := auth.NewTokenManager(secret, cfg.JWTIssuer, cfg.JWTTTL)

	visitSvc := visit.NewService(visit.NewRepo(pool), txm, loc, component(logger, "visit"))
	patientSvc := patient.NewService(patient.NewRepo(pool), visitSvc, loc, component(logger, "patient"))
	dirSvc := directory.NewService(dirRepo, loc, component(logger, "directory"))
	accountSvc := account.NewService(dirRepo, tokens, revoked, component(logger, "account"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, exportPath))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID, "X-Dev-Role"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, stats, logger))

	accountHandler := account.NewHandler(accountSvc)

	// Login runs before authentication.
	public := e.Group("/api/v1")
	accountHandler.RegisterPublicRoutes(public, middleware.RateLimit(middleware.LoginRateLimitConfig(cfg.LoginRateLimitRPS)))

	var authn echo.MiddlewareFunc
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		logger.Warn().Msg("development auth enabled; unauthenticated requests act as a fixed principal")
		authn = auth.DevAuthMiddleware(tokens, revoked, logger)
	} else {
		authn = auth.Authenticate(tokens, revoked, logger)
	}
	api := e.Group("/api/v1", authn, middleware.Audit(logger))

	accountHandler.RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	visit.NewHandler(visitSvc).RegisterRoutes(api)
	directory.NewHandler(dirSvc).RegisterRoutes(api)
	reporting.NewHandler(pool, component(logger, "reporting")).RegisterRoutes(api)

	return e, nil
}
