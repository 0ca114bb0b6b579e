package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// RecordLookup records a finished cache lookup.
func RecordLookup(source string, latency time.Duration) {
	CacheLookups.WithLabelValues(source).Inc()
	LookupLatency.WithLabelValues(source).Observe(latency.Seconds())
}

// RecordSet records a cache write.
func RecordSet(target string) {
	CacheSets.WithLabelValues(target).Inc()
}

// RecordPurged records entries removed by invalidation.
func RecordPurged(trigger string, count int64) {
	if count > 0 {
		CachePurged.WithLabelValues(trigger).Add(float64(count))
	}
}

// RecordStoreError records a backend failure.
func RecordStoreError(backend, op string) {
	StoreErrors.WithLabelValues(backend, op).Inc()
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher for handlers that stream.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Middleware returns an HTTP middleware that records per-route request
// counts and latencies. The route label uses the request pattern, not the
// raw path, to keep label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(recorder, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(route, strconv.Itoa(recorder.statusCode)).Inc()
		HTTPLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
