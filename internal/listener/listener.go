// Package listener keeps the registry of watched URLs. The registry
// only stores registrations; polling and content hashing belong to an
// external watchdog that calls back into the invalidation API when a
// watched document changes.
package listener

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/blueberrycongee/cachemux/internal/metrics"
	"github.com/blueberrycongee/cachemux/pkg/errors"
)

// Listener is a registered URL watch.
type Listener struct {
	ID                 string `json:"id"`
	URL                string `json:"url"`
	CheckIntervalMs    int    `json:"check_interval_ms"`
	Namespace          string `json:"namespace"`
	InvalidateOnChange bool   `json:"invalidate_on_change"`

	// Watchdog bookkeeping.
	LastHash      string `json:"last_hash,omitempty"`
	LastCheckedAt int64  `json:"last_checked_at,omitempty"`

	CreatedAt int64 `json:"created_at"`
}

// Store persists listener registrations.
type Store interface {
	Put(ctx context.Context, l *Listener) error
	Get(ctx context.Context, id string) (*Listener, error)
	List(ctx context.Context) ([]*Listener, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// MinCheckInterval floors registration intervals so a misconfigured
// watchdog cannot hammer an origin.
const MinCheckInterval = 1000 * time.Millisecond

// Registry validates and manages listener registrations over a Store.
type Registry struct {
	store  Store
	logger *slog.Logger
}

// NewRegistry creates a Registry.
func NewRegistry(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, logger: logger}
}

// Register validates and stores a new listener, returning its ID.
func (r *Registry) Register(ctx context.Context, l *Listener) (string, error) {
	if l.URL == "" {
		return "", errors.NewInvalidRequestError("listener registration requires a url")
	}
	u, err := url.Parse(l.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.NewInvalidRequestError("listener url must be absolute http or https")
	}
	if l.CheckIntervalMs < int(MinCheckInterval.Milliseconds()) {
		return "", errors.NewInvalidRequestError("check_interval_ms below minimum of 1000")
	}
	if l.Namespace == "" {
		l.Namespace = "default"
	}

	l.ID = uuid.New().String()
	l.CreatedAt = time.Now().Unix()
	l.LastHash = ""
	l.LastCheckedAt = 0

	if err := r.store.Put(ctx, l); err != nil {
		return "", err
	}

	metrics.ListenerOps.WithLabelValues("register").Inc()
	r.logger.Info("listener registered",
		"listener_id", l.ID,
		"url", l.URL,
		"namespace", l.Namespace,
		"check_interval_ms", l.CheckIntervalMs)
	return l.ID, nil
}

// List returns all registrations ordered by creation time.
func (r *Registry) List(ctx context.Context) ([]*Listener, error) {
	listeners, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(listeners, func(i, j int) bool {
		if listeners[i].CreatedAt != listeners[j].CreatedAt {
			return listeners[i].CreatedAt < listeners[j].CreatedAt
		}
		return listeners[i].ID < listeners[j].ID
	})
	return listeners, nil
}

// Unregister removes a registration. Unknown IDs return NotFound.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	if id == "" {
		return errors.NewInvalidRequestError("listener id is required")
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	metrics.ListenerOps.WithLabelValues("unregister").Inc()
	r.logger.Info("listener unregistered", "listener_id", id)
	return nil
}

// Checkpoint records the watchdog's latest poll of a listener.
func (r *Registry) Checkpoint(ctx context.Context, id, hash string) error {
	l, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	l.LastHash = hash
	l.LastCheckedAt = time.Now().Unix()
	return r.store.Put(ctx, l)
}

// Close releases the backing store.
func (r *Registry) Close() error {
	return r.store.Close()
}
