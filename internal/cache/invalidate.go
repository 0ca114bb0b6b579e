package cache

import (
	"context"
	"log/slog"

	"github.com/blueberrycongee/cachemux/internal/cache/semantic"
	"github.com/blueberrycongee/cachemux/internal/metrics"
	"github.com/blueberrycongee/cachemux/pkg/errors"
)

// InvalidationController removes cached entries by filter. It drives the
// exact store directly and clears the semantic index best-effort when a
// purge is namespace-scoped.
type InvalidationController struct {
	store   Store
	matcher *semantic.Matcher // nil when similarity matching is disabled
	logger  *slog.Logger
}

// NewInvalidationController creates an InvalidationController.
func NewInvalidationController(store Store, matcher *semantic.Matcher, logger *slog.Logger) *InvalidationController {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvalidationController{
		store:   store,
		matcher: matcher,
		logger:  logger,
	}
}

// Invalidate purges entries matching the filter and returns how many were
// removed. A filter with no fields set is rejected: unscoped invalidation
// must be an explicit flush, never an accident. Purging an already-empty
// scope succeeds with a zero count, which makes retries idempotent.
func (c *InvalidationController) Invalidate(ctx context.Context, f Filter, reason string) (int64, error) {
	if f.Empty() {
		return 0, errors.NewInvalidRequestError("invalidation requires at least one filter: pattern, namespace, or older_than")
	}

	purged, err := c.store.Purge(ctx, f)
	if err != nil {
		metrics.RecordStoreError("exact", "purge")
		return purged, err
	}

	// The semantic index only supports namespace-scoped deletion, so
	// pattern and age filters leave it untouched. Matching entries age
	// out via their own TTLs.
	if c.matcher != nil && f.Namespace != "" && f.Pattern == "" && f.OlderThan <= 0 {
		semPurged, err := c.matcher.PurgeNamespace(ctx, f.Namespace)
		if err != nil {
			metrics.RecordStoreError("semantic", "purge")
			c.logger.Warn("semantic purge failed, exact entries already removed",
				"namespace", f.Namespace, "error", err)
		} else if semPurged > 0 {
			purged += semPurged
		}
	}

	c.logger.Info("cache invalidated",
		"pattern", f.Pattern,
		"namespace", f.Namespace,
		"older_than", f.OlderThan,
		"reason", reason,
		"purged", purged)

	return purged, nil
}
