package memory

import (
	"container/list"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/blueberrycongee/cachemux/internal/cache/semantic"
	"github.com/blueberrycongee/cachemux/internal/metrics"
	"github.com/blueberrycongee/cachemux/pkg/errors"
)

// Config holds tier capacities and long-term recall tuning.
type Config struct {
	// L1Capacity is the hot-tier size per session (default 10).
	L1Capacity int

	// L2Capacity is the warm-tier size per session (default 20).
	L2Capacity int

	// RecallThreshold is the similarity floor for L3 retrieval
	// (default 0.60, deliberately looser than the response cache).
	RecallThreshold float64

	// L3TTL bounds the lifetime of long-term facts (default 30 days).
	L3TTL time.Duration
}

// TierManager owns per-session conversational memory. New turns enter
// L1; L1 overflow demotes to L2 in append order; L2 overflow is offered
// to the AdmissionValidator and, when accepted, indexed into the L3
// semantic store. Concurrent writers to the same session are expected
// to be serialized by the caller.
type TierManager struct {
	mu       sync.Mutex
	sessions map[string]*sessionTiers

	matcher   *semantic.Matcher // L3 backend; nil disables long-term memory
	validator *AdmissionValidator
	logger    *slog.Logger

	l1Cap           int
	l2Cap           int
	recallThreshold float64
	l3TTL           time.Duration
}

type sessionTiers struct {
	namespace string
	l1        *list.List // of *Item, front = oldest
	l2        *list.List
}

// NewTierManager creates a TierManager. matcher may be nil, in which
// case L2 overflow is dropped instead of promoted.
func NewTierManager(matcher *semantic.Matcher, validator *AdmissionValidator, logger *slog.Logger, cfg Config) *TierManager {
	if cfg.L1Capacity <= 0 {
		cfg.L1Capacity = 10
	}
	if cfg.L2Capacity <= 0 {
		cfg.L2Capacity = 20
	}
	if cfg.RecallThreshold <= 0 || cfg.RecallThreshold > 1 {
		cfg.RecallThreshold = 0.60
	}
	if cfg.L3TTL <= 0 {
		cfg.L3TTL = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	if validator == nil {
		validator = NewAdmissionValidator(matcher, 0)
	}

	return &TierManager{
		sessions:        make(map[string]*sessionTiers),
		matcher:         matcher,
		validator:       validator,
		logger:          logger,
		l1Cap:           cfg.L1Capacity,
		l2Cap:           cfg.L2Capacity,
		recallThreshold: cfg.RecallThreshold,
		l3TTL:           cfg.L3TTL,
	}
}

// l3Namespace keeps long-term memory apart from the response cache
// entries that share the same vector store.
func l3Namespace(namespace string) string {
	if namespace == "" {
		namespace = "default"
	}
	return "mem:" + namespace
}

// Append records a new turn in the session's hot tier and applies
// capacity-bound demotion. The item moved out of L1 equals the item
// added to L2; nothing is copied between tiers.
func (t *TierManager) Append(ctx context.Context, namespace, sessionID, role, content string) (*Item, error) {
	if sessionID == "" {
		return nil, errors.NewInvalidRequestError("memory append requires a session id")
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.NewInvalidRequestError("memory append requires content")
	}
	if role == "" {
		role = "user"
	}

	item := &Item{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Tier:      TierL1,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().Unix(),
	}

	t.mu.Lock()
	sess := t.sessions[sessionID]
	if sess == nil {
		sess = &sessionTiers{
			namespace: namespace,
			l1:        list.New(),
			l2:        list.New(),
		}
		t.sessions[sessionID] = sess
	}
	sess.l1.PushBack(item)
	overflow := t.demoteLocked(sess)
	t.mu.Unlock()

	if _, _, err := t.promote(ctx, namespace, overflow); err != nil {
		return nil, err
	}
	return item, nil
}

// demoteLocked restores the tier capacity invariants and returns the
// items pushed out of L2, oldest first. Caller holds the lock.
func (t *TierManager) demoteLocked(sess *sessionTiers) []*Item {
	for sess.l1.Len() > t.l1Cap {
		front := sess.l1.Remove(sess.l1.Front()).(*Item)
		front.Tier = TierL2
		sess.l2.PushBack(front)
		metrics.TierDemotions.WithLabelValues("l1", "l2").Inc()
	}

	var overflow []*Item
	for sess.l2.Len() > t.l2Cap {
		overflow = append(overflow, sess.l2.Remove(sess.l2.Front()).(*Item))
	}

	metrics.TierItems.WithLabelValues("l1").Set(float64(sess.l1.Len()))
	metrics.TierItems.WithLabelValues("l2").Set(float64(sess.l2.Len()))
	return overflow
}

// promote runs L2 overflow through the validator and indexes accepted
// items into L3. Rejection is terminal and logged; it is an outcome,
// not an error. An index write failure surfaces to the caller after the
// failed item and everything not yet processed are returned to the warm
// tier, so no item ends up outside every tier.
func (t *TierManager) promote(ctx context.Context, namespace string, items []*Item) (admitted, rejected int, err error) {
	for i, item := range items {
		if t.matcher == nil {
			t.logger.Debug("long-term memory disabled, dropping demoted item",
				"session_id", item.SessionID, "item_id", item.ID)
			rejected++
			continue
		}

		decision := t.validator.Validate(ctx, l3Namespace(namespace), item.Content)
		if !decision.Accept {
			metrics.AdmissionDecisions.WithLabelValues("reject", decision.Reason).Inc()
			t.logger.Info("item rejected from long-term memory",
				"session_id", item.SessionID,
				"item_id", item.ID,
				"reason", decision.Reason)
			rejected++
			continue
		}

		item.Tier = TierL3
		item.Confidence = decision.Confidence
		payload, merr := json.Marshal(item)
		if merr != nil {
			t.requeue(items[i:])
			return admitted, rejected, errors.NewInternalError("encode memory item: " + merr.Error())
		}
		if ierr := t.matcher.Index(ctx, l3Namespace(namespace), item.Content, string(payload), "", t.l3TTL); ierr != nil {
			metrics.RecordStoreError("semantic", "insert")
			t.requeue(items[i:])
			return admitted, rejected, errors.NewUpstreamUnavailableError("semantic", "long-term memory write failed")
		}
		metrics.AdmissionDecisions.WithLabelValues("accept", "").Inc()
		metrics.TierDemotions.WithLabelValues("l2", "l3").Inc()
		admitted++
	}
	return admitted, rejected, nil
}

// requeue pushes unprocessed overflow back onto the front of the warm
// tier in its original order. Sessions that ended while the promotion
// was in flight stay dropped.
func (t *TierManager) requeue(items []*Item) {
	if len(items) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		sess := t.sessions[item.SessionID]
		if sess == nil {
			continue
		}
		item.Tier = TierL2
		sess.l2.PushFront(item)
		metrics.TierItems.WithLabelValues("l2").Set(float64(sess.l2.Len()))
	}
}

// Query retrieves memory for a live session: L1 then L2 by recency and
// case-insensitive substring, then L3 semantically when the scans come
// up empty. "What did I just say" resolves from the hot tiers; "what do
// I like" resolves from L3 regardless of phrasing.
func (t *TierManager) Query(ctx context.Context, namespace, sessionID, query string, limit int) ([]Retrieved, error) {
	if sessionID == "" {
		return nil, errors.NewInvalidRequestError("memory query requires a session id")
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewInvalidRequestError("memory query requires a query string")
	}
	if limit <= 0 {
		limit = 5
	}

	needle := strings.ToLower(query)

	t.mu.Lock()
	var results []Retrieved
	if sess := t.sessions[sessionID]; sess != nil {
		results = scanTier(sess.l1, TierL1, needle, limit)
		if len(results) < limit {
			results = append(results, scanTier(sess.l2, TierL2, needle, limit-len(results))...)
		}
	}
	t.mu.Unlock()

	if len(results) > 0 || t.matcher == nil {
		return results, nil
	}

	match, err := t.matcher.FindSimilar(ctx, l3Namespace(namespace), query, t.recallThreshold)
	if err != nil {
		// Long-term recall fails open; the hot tiers already answered empty.
		t.logger.Warn("long-term memory recall failed",
			"session_id", sessionID, "error", err)
		return results, nil
	}
	if match == nil {
		return results, nil
	}

	var item Item
	if err := json.Unmarshal([]byte(match.Value), &item); err != nil {
		t.logger.Warn("corrupt long-term memory payload, skipping",
			"session_id", sessionID, "error", err)
		return results, nil
	}
	item.Tier = TierL3
	return append(results, Retrieved{Item: item, Tier: TierL3, Score: match.Score}), nil
}

// scanTier walks a list newest-first collecting substring matches.
func scanTier(l *list.List, tier Tier, needle string, limit int) []Retrieved {
	var out []Retrieved
	for e := l.Back(); e != nil && len(out) < limit; e = e.Prev() {
		item := e.Value.(*Item)
		if strings.Contains(strings.ToLower(item.Content), needle) {
			out = append(out, Retrieved{Item: *item, Tier: tier, Score: 1.0})
		}
	}
	return out
}

// Consolidate is the explicit demotion trigger: it restores the L1
// capacity bound, then drains the entire warm tier through the
// validator so accepted items land in L3 without waiting for overflow
// pressure.
func (t *TierManager) Consolidate(ctx context.Context, namespace, sessionID string) (*ConsolidationReport, error) {
	if sessionID == "" {
		return nil, errors.NewInvalidRequestError("memory consolidation requires a session id")
	}

	t.mu.Lock()
	sess := t.sessions[sessionID]
	if sess == nil {
		t.mu.Unlock()
		return &ConsolidationReport{}, nil
	}

	report := &ConsolidationReport{}
	overflow := t.demoteLocked(sess)

	for sess.l2.Len() > 0 {
		overflow = append(overflow, sess.l2.Remove(sess.l2.Front()).(*Item))
	}
	report.Demoted = len(overflow)
	metrics.TierItems.WithLabelValues("l2").Set(0)
	t.mu.Unlock()

	admitted, rejected, err := t.promote(ctx, namespace, overflow)
	report.Admitted = admitted
	report.Rejected = rejected
	return report, err
}

// EndSession drops the session's hot and warm tiers. Long-term memory
// persists across sessions and is untouched.
func (t *TierManager) EndSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

// Counts reports the current L1 and L2 sizes for a session.
func (t *TierManager) Counts(sessionID string) (l1, l2 int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess := t.sessions[sessionID]
	if sess == nil {
		return 0, 0
	}
	return sess.l1.Len(), sess.l2.Len()
}
