package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/blueberrycongee/cachemux/internal/auth"
	"github.com/blueberrycongee/cachemux/internal/config"
	"github.com/blueberrycongee/cachemux/internal/metrics"
	"github.com/blueberrycongee/cachemux/internal/observability"
	"github.com/blueberrycongee/cachemux/internal/resilience"
)

// buildMiddlewareStack assembles the request pipeline: request ID,
// metrics, authentication, then rate limiting. Rate limiting sits inside
// auth so the limiter can key on the authenticated identity.
func buildMiddlewareStack(cfg *config.Config, authStore auth.Store, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	var authMiddleware *auth.Middleware
	if cfg.Auth.Enabled {
		authMiddleware = auth.NewMiddleware(&auth.MiddlewareConfig{
			Store:     authStore,
			Logger:    logger,
			SkipPaths: []string{"/health/live", "/health/ready", cfg.Metrics.Path},
			Enabled:   true,
		})
		logger.Info("api key authentication enabled")
	}

	var rateLimit func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		limiter, scope, err := newLimiter(cfg)
		if err != nil {
			return nil, err
		}
		rateLimit = resilience.RateLimitMiddleware(limiter, logger, resilience.RateLimitConfig{
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window,
			Scope:  scope,
		})
		logger.Info("rate limiting enabled",
			"limit", cfg.RateLimit.Limit,
			"window", cfg.RateLimit.Window,
			"scope", scope,
		)
	}

	return func(next http.Handler) http.Handler {
		handler := next
		if rateLimit != nil {
			handler = rateLimit(handler)
		}
		if authMiddleware != nil {
			handler = authMiddleware.Authenticate(handler)
		}
		handler = metrics.Middleware(handler)
		handler = observability.RequestIDMiddleware(handler)
		return handler
	}, nil
}

func newLimiter(cfg *config.Config) (resilience.Limiter, string, error) {
	switch cfg.RateLimit.Scope {
	case "", "local":
		return resilience.NewLocalLimiter(), "local", nil
	case "redis":
		return resilience.NewRedisLimiter(newRedisClient(cfg)), "distributed", nil
	default:
		return nil, "", fmt.Errorf("unsupported rate limit scope: %s", cfg.RateLimit.Scope)
	}
}
