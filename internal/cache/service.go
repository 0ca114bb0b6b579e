package cache

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/cachemux/internal/cache/semantic"
	"github.com/blueberrycongee/cachemux/internal/metrics"
	"github.com/blueberrycongee/cachemux/pkg/errors"
	"github.com/blueberrycongee/cachemux/pkg/types"
)

// Lookup outcome sources.
const (
	SourceExact    = "exact"
	SourceSemantic = "semantic"
	SourceMiss     = "miss"
)

// Service runs the lookup and write pipelines over the exact store and
// the similarity matcher. Exact-store and index failures on the read path
// degrade to a miss; write failures surface to the caller.
type Service struct {
	fingerprinter *Fingerprinter
	store         Store
	matcher       *semantic.Matcher // nil when similarity matching is disabled
	logger        *slog.Logger
	tracer        trace.Tracer

	defaultTTL   time.Duration
	maxValueSize int
}

// ServiceConfig holds configuration for the Service.
type ServiceConfig struct {
	DefaultTTL   time.Duration
	MaxValueSize int // Max cacheable value size in bytes (default: 10MB)
}

// NewService creates a cache service. matcher may be nil.
func NewService(store Store, matcher *semantic.Matcher, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.MaxValueSize <= 0 {
		cfg.MaxValueSize = 10 * 1024 * 1024
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		fingerprinter: NewFingerprinter(),
		store:         store,
		matcher:       matcher,
		logger:        logger,
		tracer:        otel.Tracer("cachemux/cache"),
		defaultTTL:    cfg.DefaultTTL,
		maxValueSize:  cfg.MaxValueSize,
	}
}

// LookupOptions tune a single lookup.
type LookupOptions struct {
	// Semantic enables the similarity fallback after an exact miss.
	Semantic bool

	// Threshold overrides the matcher's default similarity threshold.
	// Zero means use the default.
	Threshold float64
}

// LookupResult is the outcome of a cache lookup.
type LookupResult struct {
	Hit       bool
	Source    string // exact, semantic, miss
	Value     []byte
	Score     float64 // similarity score for semantic hits
	CreatedAt int64   // unix timestamp of the matched entry, exact hits only
}

// Lookup fingerprints the request, consults the exact store, and falls
// back to similarity matching when enabled. A malformed request returns
// an InvalidRequest error; backend failures log and degrade to a miss.
func (s *Service) Lookup(ctx context.Context, req *types.CacheRequest, opts LookupOptions) (*LookupResult, error) {
	ctx, span := s.tracer.Start(ctx, "cache.lookup")
	defer span.End()

	start := time.Now()

	key, err := s.fingerprinter.Key(req)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.Get(ctx, key)
	if err != nil {
		// Reads fail open: an unreachable backend is a miss, not an error.
		s.logger.Warn("exact store read failed, degrading to miss",
			"key", key, "error", err)
		metrics.RecordStoreError("exact", "get")
	}
	if entry != nil {
		span.SetAttributes(attribute.String("cache.source", SourceExact))
		metrics.RecordLookup(SourceExact, time.Since(start))
		return &LookupResult{
			Hit:       true,
			Source:    SourceExact,
			Value:     entry.Value,
			CreatedAt: entry.CreatedAt,
		}, nil
	}

	if opts.Semantic && s.matcher != nil {
		namespace := req.Namespace
		if namespace == "" {
			namespace = DefaultNamespace
		}
		match, err := s.matcher.FindSimilar(ctx, namespace, req.PromptText(), opts.Threshold)
		if err != nil {
			s.logger.Warn("similarity lookup failed, degrading to miss",
				"namespace", namespace, "error", err)
			metrics.RecordStoreError("semantic", "search")
		}
		if match != nil {
			span.SetAttributes(
				attribute.String("cache.source", SourceSemantic),
				attribute.Float64("cache.score", match.Score),
			)
			metrics.RecordLookup(SourceSemantic, time.Since(start))
			return &LookupResult{
				Hit:    true,
				Source: SourceSemantic,
				Value:  []byte(match.Value),
				Score:  match.Score,
			}, nil
		}
	}

	span.SetAttributes(attribute.String("cache.source", SourceMiss))
	metrics.RecordLookup(SourceMiss, time.Since(start))
	return &LookupResult{Hit: false, Source: SourceMiss}, nil
}

// StoreOptions tune a single write.
type StoreOptions struct {
	// TTL for the exact entry; zero uses the service default.
	TTL time.Duration

	// Semantic also indexes the prompt for similarity matching.
	Semantic bool

	// SourceURL records where the value came from, for listener-driven
	// invalidation.
	SourceURL string
}

// Store writes the value under the request's fingerprint and, when asked,
// indexes the prompt for similarity matching. The exact write and the
// index write are not atomic: if indexing fails after the exact write
// succeeded, the exact entry remains and the error surfaces so the caller
// knows the semantic side is behind.
func (s *Service) Store(ctx context.Context, req *types.CacheRequest, value []byte, opts StoreOptions) error {
	ctx, span := s.tracer.Start(ctx, "cache.store")
	defer span.End()

	if len(value) == 0 {
		return errors.NewInvalidRequestError("cache set requires a value")
	}
	if len(value) > s.maxValueSize {
		return errors.NewInvalidRequestError("value exceeds maximum cacheable size")
	}

	digest, err := s.fingerprinter.Fingerprint(req)
	if err != nil {
		return err
	}

	namespace := req.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	key := BuildKey(namespace, digest)

	entry := &Entry{
		Fingerprint: digest,
		Namespace:   namespace,
		Value:       value,
		Model:       req.Model,
		Provider:    req.Provider,
		SourceURL:   opts.SourceURL,
		CreatedAt:   time.Now().Unix(),
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	if err := s.store.Set(ctx, key, entry, ttl); err != nil {
		metrics.RecordStoreError("exact", "set")
		return err
	}
	metrics.RecordSet(SourceExact)

	if opts.Semantic && s.matcher != nil {
		if err := s.matcher.Index(ctx, namespace, req.PromptText(), string(value), req.Model, ttl); err != nil {
			metrics.RecordStoreError("semantic", "insert")
			s.logger.Warn("semantic index write failed after exact write",
				"namespace", namespace, "error", err)
			return errors.NewUpstreamUnavailableError("semantic", "value cached but similarity indexing failed")
		}
		metrics.RecordSet(SourceSemantic)
	}

	return nil
}

// Fingerprint exposes key generation for callers that only need the key.
func (s *Service) Fingerprint(req *types.CacheRequest) (string, error) {
	return s.fingerprinter.Fingerprint(req)
}

// Matcher returns the similarity matcher, or nil when disabled.
func (s *Service) Matcher() *semantic.Matcher {
	return s.matcher
}

// ExactStore returns the underlying exact store.
func (s *Service) ExactStore() Store {
	return s.store
}

// Ping checks backend health.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	if s.matcher != nil {
		return s.matcher.Ping(ctx)
	}
	return nil
}

// Close releases backends.
func (s *Service) Close() error {
	err := s.store.Close()
	if s.matcher != nil {
		if cerr := s.matcher.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
