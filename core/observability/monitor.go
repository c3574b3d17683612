package observability

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Monitor records per-route dispatch metrics
type Monitor struct {
	enabled atomic.Bool
	routes  sync.Map // "METHOD pattern" -> *RouteMetrics
	global  struct {
		totalRequests atomic.Uint64
		totalDuration atomic.Uint64
		unmatched     atomic.Uint64
		malformed     atomic.Uint64
	}
}

// RouteMetrics stores per-route metrics
type RouteMetrics struct {
	Name           string
	Count          atomic.Uint64
	Errors         atomic.Uint64
	TotalDuration  atomic.Uint64
	MinDuration    atomic.Uint64
	MaxDuration    atomic.Uint64
	latencyBuckets [len(bucketBounds) + 1]atomic.Uint64
}

// Upper bounds of the latency buckets; the last bucket is unbounded
var bucketBounds = [...]time.Duration{
	time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	5 * time.Second,
	10 * time.Second,
}

// Bottleneck represents a route that looks unhealthy
type Bottleneck struct {
	Type     string  `json:"type"`
	Location string  `json:"location"`
	Severity int     `json:"severity"`
	Impact   float64 `json:"impact"`
	Details  string  `json:"details"`
}

// NewMonitor creates an enabled monitor
func NewMonitor() *Monitor {
	m := &Monitor{}
	m.enabled.Store(true)
	return m
}

// SetEnabled turns recording on or off
func (m *Monitor) SetEnabled(on bool) {
	m.enabled.Store(on)
}

// RecordRequest records one handler invocation for route
func (m *Monitor) RecordRequest(route string, duration time.Duration, isError bool) {
	if m == nil || !m.enabled.Load() {
		return
	}

	val, _ := m.routes.LoadOrStore(route, &RouteMetrics{Name: route})
	metrics := val.(*RouteMetrics)

	metrics.Count.Add(1)
	if isError {
		metrics.Errors.Add(1)
	}

	d := uint64(duration.Nanoseconds())
	metrics.TotalDuration.Add(d)
	updateMinMax(metrics, d)
	metrics.latencyBuckets[bucketFor(duration)].Add(1)

	m.global.totalRequests.Add(1)
	m.global.totalDuration.Add(d)
}

// RecordUnmatched counts a request no route accepted
func (m *Monitor) RecordUnmatched() {
	if m == nil || !m.enabled.Load() {
		return
	}
	m.global.unmatched.Add(1)
}

// RecordMalformed counts a request whose request line did not parse
func (m *Monitor) RecordMalformed() {
	if m == nil || !m.enabled.Load() {
		return
	}
	m.global.malformed.Add(1)
}

func updateMinMax(m *RouteMetrics, d uint64) {
	for {
		min := m.MinDuration.Load()
		if min != 0 && d >= min {
			break
		}
		if m.MinDuration.CompareAndSwap(min, d) {
			break
		}
	}
	for {
		max := m.MaxDuration.Load()
		if d <= max {
			break
		}
		if m.MaxDuration.CompareAndSwap(max, d) {
			break
		}
	}
}

func bucketFor(d time.Duration) int {
	for i, bound := range bucketBounds {
		if d < bound {
			return i
		}
	}
	return len(bucketBounds)
}

// RouteStats is a point-in-time copy of RouteMetrics
type RouteStats struct {
	Name        string
	Count       uint64
	Errors      uint64
	AvgDuration time.Duration
	MinDuration time.Duration
	MaxDuration time.Duration
	Buckets     []uint64
}

// Snapshot is a point-in-time copy of all monitor counters
type Snapshot struct {
	TotalRequests uint64
	Unmatched     uint64
	Malformed     uint64
	AvgDuration   time.Duration
	Routes        []RouteStats
}

// Snapshot returns the current counters, routes sorted by name
func (m *Monitor) Snapshot() Snapshot {
	s := Snapshot{
		TotalRequests: m.global.totalRequests.Load(),
		Unmatched:     m.global.unmatched.Load(),
		Malformed:     m.global.malformed.Load(),
	}
	if s.TotalRequests > 0 {
		s.AvgDuration = time.Duration(m.global.totalDuration.Load() / s.TotalRequests)
	}

	m.routes.Range(func(_, value any) bool {
		rm := value.(*RouteMetrics)
		rs := RouteStats{
			Name:        rm.Name,
			Count:       rm.Count.Load(),
			Errors:      rm.Errors.Load(),
			MinDuration: time.Duration(rm.MinDuration.Load()),
			MaxDuration: time.Duration(rm.MaxDuration.Load()),
			Buckets:     make([]uint64, len(rm.latencyBuckets)),
		}
		if rs.Count > 0 {
			rs.AvgDuration = time.Duration(rm.TotalDuration.Load() / rs.Count)
		}
		for i := range rm.latencyBuckets {
			rs.Buckets[i] = rm.latencyBuckets[i].Load()
		}
		s.Routes = append(s.Routes, rs)
		return true
	})

	sort.Slice(s.Routes, func(i, j int) bool { return s.Routes[i].Name < s.Routes[j].Name })
	return s
}

// DetectBottlenecks reports routes with high average latency or error rate
func (m *Monitor) DetectBottlenecks() []Bottleneck {
	bottlenecks := make([]Bottleneck, 0)

	for _, r := range m.Snapshot().Routes {
		if r.Count == 0 {
			continue
		}

		// High latency
		if r.AvgDuration > 100*time.Millisecond {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:     "latency",
				Location: r.Name,
				Severity: 8,
				Impact:   100.0,
				Details:  fmt.Sprintf("High latency (%v avg)", r.AvgDuration),
			})
		}

		// High error rate
		if r.Errors > 0 && float64(r.Errors)/float64(r.Count) > 0.05 {
			rate := float64(r.Errors) / float64(r.Count) * 100
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:     "errors",
				Location: r.Name,
				Severity: 10,
				Impact:   rate,
				Details:  fmt.Sprintf("%.1f%% error rate", rate),
			})
		}
	}

	return bottlenecks
}
