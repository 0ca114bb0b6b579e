package resilience

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/cachemux/internal/auth"
	"github.com/blueberrycongee/cachemux/internal/metrics"
	"github.com/blueberrycongee/cachemux/pkg/errors"
)

// RateLimitConfig tunes the HTTP rate limit middleware.
type RateLimitConfig struct {
	Limit  int64
	Window time.Duration

	// Scope labels the limiter backend in metrics: local or distributed.
	Scope string
}

// RateLimitMiddleware returns middleware that enforces a fixed request
// window per identity. The identity is the authenticated key's ID when
// present, the client IP otherwise. Limiter backend failures fail open:
// availability beats strict limiting.
func RateLimitMiddleware(limiter Limiter, logger *slog.Logger, cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Scope == "" {
		cfg.Scope = "local"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := requestIdentity(r)

			result, err := limiter.CheckAllow(r.Context(), identity, cfg.Limit, cfg.Window)
			if err != nil {
				logger.Warn("rate limit check failed, allowing request",
					"identity", identity, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(cfg.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

			if !result.Allowed {
				metrics.RateLimitDenials.WithLabelValues(cfg.Scope).Inc()

				retryAfter := result.ResetAt - time.Now().Unix()
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))

				limitErr := errors.NewRateLimitError("rate limit exceeded, retry after window reset")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(limitErr.StatusCode)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"message": limitErr.Message,
						"type":    limitErr.Type,
						"code":    limitErr.StatusCode,
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestIdentity keys the rate window: API key ID when authenticated,
// client IP otherwise.
func requestIdentity(r *http.Request) string {
	if authCtx := auth.GetAuthContext(r.Context()); authCtx != nil && authCtx.APIKey != nil {
		return "key:" + authCtx.APIKey.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
