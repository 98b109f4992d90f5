package observability

import (
	"strconv"
	"sync"
	"time"
)

// RouteStats aggregates request outcomes for one route/method/status
// combination.
type RouteStats struct {
	Count        int64
	TotalLatency time.Duration
}

// Metrics keeps in-process request and error counters, keyed by route.
type Metrics struct {
	mu       sync.Mutex
	requests map[string]RouteStats
	errors   map[string]int64
}

// NewMetrics initializes empty counters.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: make(map[string]RouteStats),
		errors:   make(map[string]int64),
	}
}

// RecordRequest accounts one completed request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := routeKey(path, method, strconv.Itoa(status))
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.requests[key]
	stats.Count++
	stats.TotalLatency += duration
	m.requests[key] = stats
}

// RecordError accounts one request that resolved to an error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[routeKey(path, method, code)]++
}

// RequestStats returns the aggregate for a route/method/status.
func (m *Metrics) RequestStats(path, method string, status int) RouteStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[routeKey(path, method, strconv.Itoa(status))]
}

// ErrorCount returns how often a route resolved to the given error code.
func (m *Metrics) ErrorCount(path, method, code string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[routeKey(path, method, code)]
}

func routeKey(parts ...string) string {
	key := parts[0]
	for _, p := range parts[1:] {
		key += "|" + p
	}
	return key
}
