package observability

import (
	"testing"
	"time"
)

func TestMonitor(t *testing.T) {
	m := NewMonitor()

	// Record some requests
	m.RecordRequest("GET ^/api$", 10*time.Millisecond, false)
	m.RecordRequest("GET ^/api$", 20*time.Millisecond, false)
	m.RecordRequest("GET ^/api$", 30*time.Millisecond, false)

	val, ok := m.routes.Load("GET ^/api$")
	if !ok {
		t.Fatal("Route metrics not found")
	}

	metrics := val.(*RouteMetrics)
	if count := metrics.Count.Load(); count != 3 {
		t.Errorf("Expected 3 requests, got %d", count)
	}

	s := m.Snapshot()
	if len(s.Routes) != 1 {
		t.Fatalf("Expected 1 route, got %d", len(s.Routes))
	}
	r := s.Routes[0]
	if r.AvgDuration != 20*time.Millisecond {
		t.Errorf("Expected 20ms avg, got %v", r.AvgDuration)
	}
	if r.MinDuration != 10*time.Millisecond || r.MaxDuration != 30*time.Millisecond {
		t.Errorf("Expected min 10ms max 30ms, got %v %v", r.MinDuration, r.MaxDuration)
	}
	// 10ms and 20ms and 30ms all fall in [10ms, 50ms)
	if r.Buckets[3] != 3 {
		t.Errorf("Expected 3 samples in the 10-50ms bucket, got %v", r.Buckets)
	}
}

func TestMonitorCounters(t *testing.T) {
	m := NewMonitor()
	m.RecordUnmatched()
	m.RecordUnmatched()
	m.RecordMalformed()

	s := m.Snapshot()
	if s.Unmatched != 2 {
		t.Errorf("Expected 2 unmatched, got %d", s.Unmatched)
	}
	if s.Malformed != 1 {
		t.Errorf("Expected 1 malformed, got %d", s.Malformed)
	}

	m.SetEnabled(false)
	m.RecordUnmatched()
	if got := m.Snapshot().Unmatched; got != 2 {
		t.Errorf("Disabled monitor recorded: %d", got)
	}
}

func TestNilMonitorIsNoop(t *testing.T) {
	var m *Monitor
	m.RecordRequest("GET /", time.Millisecond, false)
	m.RecordUnmatched()
	m.RecordMalformed()
}

func TestBottleneckDetection(t *testing.T) {
	m := NewMonitor()

	// Simulate slow route
	for i := 0; i < 100; i++ {
		m.RecordRequest("GET /slow", 150*time.Millisecond, false)
	}
	// Simulate failing route
	for i := 0; i < 10; i++ {
		m.RecordRequest("GET /fail", time.Millisecond, i%2 == 0)
	}

	bottlenecks := m.DetectBottlenecks()

	var latency, errs bool
	for _, b := range bottlenecks {
		switch {
		case b.Type == "latency" && b.Location == "GET /slow":
			latency = true
		case b.Type == "errors" && b.Location == "GET /fail":
			errs = true
		}
	}
	if !latency {
		t.Error("Expected latency bottleneck for slow route")
	}
	if !errs {
		t.Error("Expected error bottleneck for failing route")
	}
}

func BenchmarkRecordRequest(b *testing.B) {
	m := NewMonitor()
	duration := 10 * time.Millisecond

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordRequest("GET /api", duration, false)
	}
}
