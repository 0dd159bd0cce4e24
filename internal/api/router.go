package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/sqlpulse/internal/app"
	"github.com/charlesng35/sqlpulse/internal/auth"
	"github.com/charlesng35/sqlpulse/internal/handlers"
	"github.com/charlesng35/sqlpulse/internal/middleware"
	"github.com/charlesng35/sqlpulse/internal/monitoring"
	"github.com/charlesng35/sqlpulse/pkg/logger"
)

// NewRouter builds the Gin engine, wires middleware and registers the health,
// metrics, monitoring and run routes. The run routes are only registered when
// a token secret is configured.
func NewRouter(cfg *app.Config, mon *monitoring.Module, runner handlers.PipelineRunner) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if runner == nil {
		return nil, fmt.Errorf("pipeline runner must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, cfg, mon)

	if cfg.Monitoring.Prometheus.Enabled && mon != nil {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(mon.Handler()))
	}

	api := r.Group("/api")
	registerMonitoringRoutes(api, handlers.NewMonitoringHandler(mon, cfg))

	runHandler, err := handlers.NewRunHandler(runner)
	if err != nil {
		return nil, err
	}
	if cfg.Server.Auth.JWTSecret == "" {
		logger.WithModule("http").Warn("run trigger disabled: server.auth.jwt_secret is not set")
	} else {
		tokens, err := auth.NewTokenService(auth.TokenConfig{
			Secret: cfg.Server.Auth.JWTSecret,
			Issuer: cfg.Server.Auth.Issuer,
			TTL:    cfg.Server.Auth.TokenTTL,
		})
		if err != nil {
			return nil, err
		}
		registerRunRoutes(api, runHandler,
			middleware.RateLimit(middleware.NewMemoryRateStore(), cfg.Server.RunRateLimit, time.Minute),
			middleware.Auth(tokens),
		)
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
