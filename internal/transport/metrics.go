// Copyright 2025 Joseph Cumines
//
// Metrics registry for observability

package transport

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"
	"time"
)

// Metric names exported by the registry.
const (
	MetricToolCalls      = "windows_mcp_tool_calls_total"
	MetricToolDuration   = "windows_mcp_tool_call_duration_seconds"
	MetricSSEEvents      = "windows_mcp_sse_events_sent_total"
	MetricSSEConnections = "windows_mcp_sse_connections_active"
)

// MetricsRegistry provides thread-safe metrics collection for the MCP server.
// Labels are preformatted strings, such as: key1="value1",key2="value2"
// Output is Prometheus text exposition format.
type MetricsRegistry struct {
	counters   map[string]map[string]uint64
	gauges     map[string]map[string]float64
	histograms map[string]*histogram
	mu         sync.Mutex
}

// histogram represents a distribution of values with predefined buckets.
type histogram struct {
	counts  map[string][]uint64 // label combo -> cumulative bucket counts, last is +Inf
	sums    map[string]float64
	buckets []float64
}

// Default histogram buckets for tool latencies (in seconds). Screenshots and
// UI tree walks commonly take several seconds.
var defaultLatencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0,
}

// NewMetricsRegistry creates a new metrics registry with standard metrics registered.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: map[string]map[string]uint64{
			MetricToolCalls: {},
			MetricSSEEvents: {},
		},
		gauges: map[string]map[string]float64{
			MetricSSEConnections: {},
		},
		histograms: map[string]*histogram{
			MetricToolDuration: {
				buckets: defaultLatencyBuckets,
				counts:  map[string][]uint64{},
				sums:    map[string]float64{},
			},
		},
	}
}

// IncrementCounter increments a registered counter by 1.
func (m *MetricsRegistry) IncrementCounter(name, labels string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		c[labels]++
	}
}

// ObserveHistogram records a value in a registered histogram.
func (m *MetricsRegistry) ObserveHistogram(name, labels string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histograms[name]
	if !ok {
		return
	}
	counts, ok := h.counts[labels]
	if !ok {
		counts = make([]uint64, len(h.buckets)+1)
		h.counts[labels] = counts
	}
	h.sums[labels] += value
	for i, bound := range h.buckets {
		if value <= bound {
			counts[i]++
		}
	}
	counts[len(h.buckets)]++
}

// SetGauge sets a registered gauge.
func (m *MetricsRegistry) SetGauge(name, labels string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gauges[name]; ok {
		g[labels] = value
	}
}

// CounterValue returns the current counter value, for tests and debugging.
func (m *MetricsRegistry) CounterValue(name, labels string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name][labels]
}

// GaugeValue returns the current gauge value.
func (m *MetricsRegistry) GaugeValue(name, labels string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[name][labels]
}

func series(name, labels string) string {
	if labels == "" {
		return name
	}
	return name + "{" + labels + "}"
}

func joinLabels(labels, extra string) string {
	if labels == "" {
		return extra
	}
	return labels + "," + extra
}

// WritePrometheus writes all metrics in Prometheus text format, sorted by
// name and label set.
func (m *MetricsRegistry) WritePrometheus(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ew := &errWriter{w: w}

	for _, name := range sortedKeys(m.counters) {
		ew.printf("# TYPE %s counter\n", name)
		for _, l := range sortedKeys(m.counters[name]) {
			ew.printf("%s %d\n", series(name, l), m.counters[name][l])
		}
	}
	for _, name := range sortedKeys(m.gauges) {
		ew.printf("# TYPE %s gauge\n", name)
		for _, l := range sortedKeys(m.gauges[name]) {
			ew.printf("%s %g\n", series(name, l), m.gauges[name][l])
		}
	}
	for _, name := range sortedKeys(m.histograms) {
		h := m.histograms[name]
		ew.printf("# TYPE %s histogram\n", name)
		for _, l := range sortedKeys(h.counts) {
			counts := h.counts[l]
			for i, bound := range h.buckets {
				le := `le="` + strconv.FormatFloat(bound, 'g', -1, 64) + `"`
				ew.printf("%s %d\n", series(name+"_bucket", joinLabels(l, le)), counts[i])
			}
			total := counts[len(h.buckets)]
			ew.printf("%s %d\n", series(name+"_bucket", joinLabels(l, `le="+Inf"`)), total)
			ew.printf("%s %g\n", series(name+"_sum", l), h.sums[l])
			ew.printf("%s %d\n", series(name+"_count", l), total)
		}
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// RecordRequest records a tool invocation with count and latency metrics.
func (m *MetricsRegistry) RecordRequest(tool, status string, duration time.Duration) {
	m.IncrementCounter(MetricToolCalls, fmt.Sprintf(`tool=%q,status=%q`, tool, status))
	m.ObserveHistogram(MetricToolDuration, fmt.Sprintf(`tool=%q`, tool), duration.Seconds())
}

// RecordSSEEvent records an SSE event being sent.
func (m *MetricsRegistry) RecordSSEEvent() {
	m.IncrementCounter(MetricSSEEvents, "")
}

// SetSSEConnections sets the current number of active SSE connections.
func (m *MetricsRegistry) SetSSEConnections(count int) {
	m.SetGauge(MetricSSEConnections, "", float64(count))
}

var defaultMetrics = NewMetricsRegistry()

// DefaultMetrics returns the process-wide metrics registry.
func DefaultMetrics() *MetricsRegistry {
	return defaultMetrics
}
