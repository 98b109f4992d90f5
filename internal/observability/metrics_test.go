package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsAggregatesPerRoute(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("/tickets/", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/tickets/", "GET", 200, 30*time.Millisecond)
	m.RecordRequest("/tickets/", "POST", 200, 5*time.Millisecond)

	stats := m.RequestStats("/tickets/", "GET", 200)
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, 40*time.Millisecond, stats.TotalLatency)

	assert.Equal(t, int64(1), m.RequestStats("/tickets/", "POST", 200).Count)
	assert.Zero(t, m.RequestStats("/tickets/", "GET", 404).Count)
}

func TestMetricsCountsErrorsByCode(t *testing.T) {
	m := NewMetrics()

	m.RecordError("/auth/login", "POST", "INVALID_CREDENTIALS")
	m.RecordError("/auth/login", "POST", "INVALID_CREDENTIALS")

	assert.Equal(t, int64(2), m.ErrorCount("/auth/login", "POST", "INVALID_CREDENTIALS"))
	assert.Zero(t, m.ErrorCount("/auth/login", "POST", "VALIDATION_FAILED"))
}

func TestMetricsNilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/tickets/", "GET", 200, time.Millisecond)
	m.RecordError("/tickets/", "GET", "NOT_FOUND")
}
