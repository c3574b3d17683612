package core

import (
	"encoding/json"
	"fmt"

	"github.com/searchktools/webframe/core/observability"
	"github.com/searchktools/webframe/core/pools"
)

// Stats is a point-in-time view of the engine
type Stats struct {
	Transport  string                 `json:"transport"`
	Accepted   uint64                 `json:"accepted"`
	Rejected   uint64                 `json:"rejected"`
	Open       int                    `json:"open"`
	Routes     []string               `json:"routes"`
	Dispatcher pools.DispatcherStats  `json:"dispatcher"`
	Buffers    pools.BufferStats      `json:"buffers"`
	Requests   observability.Snapshot `json:"requests"`
	GC         pools.GCStats          `json:"gc"`

	// Bottlenecks lists routes with high latency or error rate
	Bottlenecks []observability.Bottleneck `json:"bottlenecks"`
}

// Stats returns engine statistics
func (e *Engine) Stats() Stats {
	s := Stats{
		Transport:  e.transport.Name(),
		Accepted:   e.accepted.Load(),
		Rejected:   e.rejected.Load(),
		Open:       e.conns.Size(),
		Dispatcher: e.dispatcher.Stats(),
		Buffers:    e.buffers.Stats(),
		Requests:   e.monitor.Snapshot(),
		GC:         pools.GetGCStats(),

		Bottlenecks: e.monitor.DetectBottlenecks(),
	}
	if e.router != nil {
		s.Routes = e.router.Patterns()
	}
	return s
}

// StatsJSON returns engine statistics as JSON string
func (e *Engine) StatsJSON() string {
	data, _ := json.MarshalIndent(e.Stats(), "", "  ")
	return string(data)
}

// StatsText returns engine statistics as human-readable text
func (e *Engine) StatsText() string {
	s := e.Stats()
	return fmt.Sprintf(`Engine Statistics
=================

Connections (%s):
  Accepted: %d
  Rejected: %d
  Open:     %d

Dispatcher:
  Workers:   %d
  Posted:    %d
  Completed: %d
  Pending:   %d

Requests:
  Handled:   %d
  Unmatched: %d
  Malformed: %d
  Avg:       %v

Bottlenecks: %d
`,
		s.Transport, s.Accepted, s.Rejected, s.Open,
		s.Dispatcher.Workers, s.Dispatcher.TasksPosted, s.Dispatcher.TasksCompleted, s.Dispatcher.TasksPending,
		s.Requests.TotalRequests, s.Requests.Unmatched, s.Requests.Malformed, s.Requests.AvgDuration,
		len(s.Bottlenecks),
	)
}
