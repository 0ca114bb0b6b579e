package cache

import (
	"container/heap"
	"context"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blueberrycongee/cachemux/pkg/errors"
)

// MemoryStore implements an in-memory exact store with TTL eviction.
// It uses a min-heap for efficient TTL-based expiration plus lazy expiry
// on read, so a sweep that has not run yet can never produce a stale hit.
type MemoryStore struct {
	mu sync.RWMutex

	// Core storage
	data map[string]*memoryEntry
	ttls map[string]int64 // key -> expiration timestamp (unix nano)

	// Expiration heap (min-heap by expiration time)
	expirationHeap expirationHeap

	// Configuration
	maxSize       int
	defaultTTL    time.Duration
	maxItemSize   int // Maximum value size per entry in bytes
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}

	// Statistics
	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
	purged atomic.Int64
}

type memoryEntry struct {
	entry      *Entry
	expiration int64 // Unix nano timestamp, 0 = no expiry
}

// expirationEntry represents an entry in the expiration heap.
type expirationEntry struct {
	key        string
	expiration int64
	index      int // Index in the heap
}

// expirationHeap implements heap.Interface for TTL-based eviction.
type expirationHeap []*expirationEntry

func (h expirationHeap) Len() int           { return len(h) }
func (h expirationHeap) Less(i, j int) bool { return h[i].expiration < h[j].expiration }
func (h expirationHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expirationHeap) Push(x any) {
	n := len(*h)
	entry, ok := x.(*expirationEntry)
	if !ok {
		return
	}
	entry.index = n
	*h = append(*h, entry)
}

func (h *expirationHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil // avoid memory leak
	entry.index = -1
	*h = old[0 : n-1]
	return entry
}

// MemoryStoreConfig holds configuration for MemoryStore.
type MemoryStoreConfig struct {
	MaxSize         int           // Maximum number of entries (default: 10000)
	DefaultTTL      time.Duration // Default TTL (default: 1 hour)
	MaxItemSize     int           // Maximum value size in bytes (default: 1MB)
	CleanupInterval time.Duration // Sweep interval (default: 1 minute)
}

// DefaultMemoryStoreConfig returns sensible defaults.
func DefaultMemoryStoreConfig() MemoryStoreConfig {
	return MemoryStoreConfig{
		MaxSize:         10000,
		DefaultTTL:      time.Hour,
		MaxItemSize:     1024 * 1024, // 1MB
		CleanupInterval: time.Minute,
	}
}

// NewMemoryStore creates a new in-memory exact store.
func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.MaxItemSize <= 0 {
		cfg.MaxItemSize = 1024 * 1024
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	s := &MemoryStore{
		data:           make(map[string]*memoryEntry),
		ttls:           make(map[string]int64),
		expirationHeap: make(expirationHeap, 0),
		maxSize:        cfg.MaxSize,
		defaultTTL:     cfg.DefaultTTL,
		maxItemSize:    cfg.MaxItemSize,
		stopCleanup:    make(chan struct{}),
	}

	heap.Init(&s.expirationHeap)

	// Start background sweep
	s.cleanupTicker = time.NewTicker(cfg.CleanupInterval)
	go s.cleanupLoop()

	return s
}

// cleanupLoop periodically removes expired entries.
func (s *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-s.cleanupTicker.C:
			s.evictExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

// evictExpired removes all expired entries.
func (s *MemoryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixNano()

	for s.expirationHeap.Len() > 0 {
		entry := s.expirationHeap[0]

		// Skip heap entries made stale by a Set that reset the TTL
		if storedExp, ok := s.ttls[entry.key]; !ok || storedExp != entry.expiration {
			heap.Pop(&s.expirationHeap)
			continue
		}

		if entry.expiration <= now {
			heap.Pop(&s.expirationHeap)
			delete(s.data, entry.key)
			delete(s.ttls, entry.key)
		} else {
			break // Heap is sorted, no more expired entries
		}
	}
}

// evictIfNeeded removes entries if the store is at capacity.
func (s *MemoryStore) evictIfNeeded() {
	now := time.Now().UnixNano()

	for s.expirationHeap.Len() > 0 && len(s.data) >= s.maxSize {
		entry := s.expirationHeap[0]

		if storedExp, ok := s.ttls[entry.key]; !ok || storedExp != entry.expiration {
			heap.Pop(&s.expirationHeap)
			continue
		}

		if entry.expiration <= now || len(s.data) >= s.maxSize {
			heap.Pop(&s.expirationHeap)
			delete(s.data, entry.key)
			delete(s.ttls, entry.key)
		} else {
			break
		}
	}
}

// Get retrieves an entry. Expired entries are removed lazily and reported
// as misses even if the background sweep has not reached them yet.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	me, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		s.misses.Add(1)
		return nil, nil
	}

	if me.expiration > 0 && me.expiration <= time.Now().UnixNano() {
		s.misses.Add(1)
		// Lazy deletion
		s.mu.Lock()
		delete(s.data, key)
		delete(s.ttls, key)
		s.mu.Unlock()
		return nil, nil
	}

	s.hits.Add(1)
	hitCount := atomic.AddInt64(&me.entry.HitCount, 1)

	// Return a copy so callers cannot mutate stored state
	cp := Entry{
		Fingerprint: me.entry.Fingerprint,
		Namespace:   me.entry.Namespace,
		Model:       me.entry.Model,
		Provider:    me.entry.Provider,
		SourceURL:   me.entry.SourceURL,
		CreatedAt:   me.entry.CreatedAt,
		HitCount:    hitCount,
		Value:       make([]byte, len(me.entry.Value)),
	}
	copy(cp.Value, me.entry.Value)
	return &cp, nil
}

// Set stores an entry. Re-setting a key overwrites its value and resets
// the TTL; hit metadata starts over.
func (s *MemoryStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if entry == nil {
		return nil
	}
	if len(entry.Value) > s.maxItemSize {
		return errors.NewInvalidRequestError("value exceeds the store's maximum item size")
	}

	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	expiration := time.Now().Add(ttl).UnixNano()

	cp := *entry
	cp.Value = make([]byte, len(entry.Value))
	copy(cp.Value, entry.Value)
	if cp.CreatedAt == 0 {
		cp.CreatedAt = time.Now().Unix()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.data) >= s.maxSize {
		s.evictIfNeeded()
	}

	s.data[key] = &memoryEntry{
		entry:      &cp,
		expiration: expiration,
	}
	s.ttls[key] = expiration

	heap.Push(&s.expirationHeap, &expirationEntry{
		key:        key,
		expiration: expiration,
	})

	s.sets.Add(1)
	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	delete(s.ttls, key)
	return nil
}

// Purge removes every live entry matching the filter and returns the count.
func (s *MemoryStore) Purge(ctx context.Context, f Filter) (int64, error) {
	if f.Empty() {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var removed int64

	for key, me := range s.data {
		if me.expiration > 0 && me.expiration <= now.UnixNano() {
			continue // already dead, expiry owns it
		}
		if !matchesFilter(key, me.entry, f, now) {
			continue
		}
		delete(s.data, key)
		delete(s.ttls, key)
		removed++
	}

	s.purged.Add(removed)
	return removed, nil
}

// matchesFilter applies all set filter fields conjunctively.
func matchesFilter(key string, entry *Entry, f Filter, now time.Time) bool {
	if f.Namespace != "" {
		if entry.Namespace != f.Namespace && !strings.HasPrefix(key, f.Namespace+":") {
			return false
		}
	}
	if f.Pattern != "" {
		ok, err := path.Match(f.Pattern, key)
		if err != nil || !ok {
			return false
		}
	}
	if f.OlderThan > 0 {
		age := now.Sub(time.Unix(entry.CreatedAt, 0))
		if age < f.OlderThan {
			return false
		}
	}
	return true
}

// Ping always returns nil for the memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the sweep goroutine and releases resources.
func (s *MemoryStore) Close() error {
	s.cleanupTicker.Stop()
	close(s.stopCleanup)
	return nil
}

// Stats returns store statistics.
func (s *MemoryStore) Stats() Stats {
	hits := s.hits.Load()
	misses := s.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    s.sets.Load(),
		Purged:  s.purged.Load(),
		HitRate: hitRate,
	}
}

// Len returns the number of entries in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Flush removes all entries.
func (s *MemoryStore) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]*memoryEntry)
	s.ttls = make(map[string]int64)
	s.expirationHeap = make(expirationHeap, 0)
	heap.Init(&s.expirationHeap)
}
