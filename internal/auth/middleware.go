package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/cachemux/pkg/errors"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// AuthContextKey is the context key for AuthContext.
const AuthContextKey contextKey = "auth"

// Middleware provides HTTP middleware for API key authentication.
type Middleware struct {
	store     Store
	logger    *slog.Logger
	skipPaths map[string]bool
	enabled   bool
}

// MiddlewareConfig contains configuration for the auth middleware.
type MiddlewareConfig struct {
	Store     Store
	Logger    *slog.Logger
	SkipPaths []string // Paths to skip authentication (e.g., /health, /metrics)
	Enabled   bool
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(cfg *MiddlewareConfig) *Middleware {
	skipPaths := make(map[string]bool)
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Middleware{
		store:     cfg.Store,
		logger:    logger,
		skipPaths: skipPaths,
		enabled:   cfg.Enabled,
	}
}

// Authenticate returns an HTTP middleware that validates API keys and
// attaches the namespace grants to the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled || m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		apiKey, err := ParseAuthHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeAuthError(w, errors.NewAuthenticationError("missing or invalid authorization header"))
			return
		}

		keyHash := HashKey(apiKey)
		key, err := m.store.GetAPIKeyByHash(r.Context(), keyHash)
		if err != nil {
			m.logger.Error("api key lookup failed", "error", err)
			writeAuthError(w, errors.NewUpstreamUnavailableError("auth", "credential store unavailable"))
			return
		}
		if key == nil {
			writeAuthError(w, errors.NewAuthenticationError("invalid api key"))
			return
		}
		if !key.IsActive {
			writeAuthError(w, errors.NewAuthenticationError("api key is inactive"))
			return
		}
		if key.IsExpired() {
			writeAuthError(w, errors.NewAuthenticationError("api key has expired"))
			return
		}

		// Update last used timestamp (async to not block request).
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.store.UpdateAPIKeyLastUsed(ctx, key.ID, time.Now()); err != nil {
				m.logger.Warn("failed to update last_used_at", "error", err, "key_id", key.ID)
			}
		}()

		ctx := WithAuthContext(r.Context(), &AuthContext{APIKey: key})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithAuthContext stores an AuthContext on the provided context.
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, AuthContextKey, authCtx)
}

// GetAuthContext retrieves the AuthContext from the request context.
func GetAuthContext(ctx context.Context) *AuthContext {
	if auth, ok := ctx.Value(AuthContextKey).(*AuthContext); ok {
		return auth
	}
	return nil
}

// CheckNamespace enforces the namespace grant for the authenticated
// key. With auth disabled there is no AuthContext and every namespace
// is allowed.
func CheckNamespace(ctx context.Context, namespace string) error {
	authCtx := GetAuthContext(ctx)
	if authCtx == nil || authCtx.APIKey == nil {
		return nil
	}
	if !authCtx.APIKey.AllowsNamespace(namespace) {
		return errors.NewForbiddenError(namespace, "api key has no grant for namespace")
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, err *errors.CacheError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": err.Message,
			"type":    err.Type,
			"code":    err.StatusCode,
		},
	})
}
