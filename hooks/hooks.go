// Package hooks provides production-ready engine.Hook implementations: a
// slog-backed logging hook and an in-memory metrics collector, adapted
// from the teacher's pipeline-level BeforeStep/AfterStep hooks to the
// graph engine's per-node Execute boundary (spec §4.H Pass 5).
package hooks

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/imazen-go/imageflow/engine"
	"github.com/imazen-go/imageflow/graph"
	"github.com/imazen-go/imageflow/nodes"
)

// ── Structured logger adapter ────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) { s.log.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...interface{})  { s.log.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...interface{})  { s.log.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...interface{}) { s.log.Error(msg, fields...) }

// ── Logging hook ──────────────────────────────────────────────────────────

// LoggingHook logs before/after each node's Execute call, the graph-node
// counterpart of the teacher's per-pipeline-step LoggingHook.
type LoggingHook struct {
	logger *SlogLogger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l *SlogLogger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeNode(_ nodes.ExecEnv, typeName string, id graph.NodeID) {
	h.logger.Debug("engine.node.start", "type", typeName, "node", string(id))
}

func (h *LoggingHook) AfterNode(_ nodes.ExecEnv, typeName string, id graph.NodeID, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("engine.node.error",
			"type", typeName, "node", string(id),
			"duration_ms", d.Milliseconds(), "error", err.Error(),
		)
		return
	}
	h.logger.Debug("engine.node.done", "type", typeName, "node", string(id), "duration_ms", d.Milliseconds())
}

var _ engine.Hook = (*LoggingHook)(nil)

// ── In-memory metrics collector ───────────────────────────────────────────

// InMemoryMetrics accumulates per-node-type metrics; safe for concurrent
// use, mirroring the teacher's InMemoryMetrics but keyed by graph node
// type name instead of pipeline step name.
type InMemoryMetrics struct {
	mu sync.RWMutex

	nodeDurationsMs map[string]int64
	nodeCalls       map[string]int64
	nodeErrors      map[string]int64

	totalDecodeCount int64
	totalEncodeCount int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		nodeDurationsMs: make(map[string]int64),
		nodeCalls:       make(map[string]int64),
		nodeErrors:      make(map[string]int64),
	}
}

func (m *InMemoryMetrics) recordDuration(typeName string, d time.Duration) {
	ms := d.Milliseconds()
	m.mu.Lock()
	m.nodeDurationsMs[typeName] += ms
	m.nodeCalls[typeName]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) recordError(typeName string) {
	m.mu.Lock()
	m.nodeErrors[typeName]++
	m.mu.Unlock()
}

// RecordDecode/RecordEncode let a Job Context feed codec activity into the
// same metrics store the engine hooks populate (job.Diagnostics already
// tracks these per-Context; this mirrors them into a process-wide total
// when a caller wants cross-request aggregation).
func (m *InMemoryMetrics) RecordDecode() { atomic.AddInt64(&m.totalDecodeCount, 1) }
func (m *InMemoryMetrics) RecordEncode() { atomic.AddInt64(&m.totalEncodeCount, 1) }

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		NodeDurationsMs:  make(map[string]int64, len(m.nodeDurationsMs)),
		NodeCalls:        make(map[string]int64, len(m.nodeCalls)),
		NodeErrors:       make(map[string]int64, len(m.nodeErrors)),
		TotalDecodeCount: atomic.LoadInt64(&m.totalDecodeCount),
		TotalEncodeCount: atomic.LoadInt64(&m.totalEncodeCount),
	}
	for k, v := range m.nodeDurationsMs {
		snap.NodeDurationsMs[k] = v
	}
	for k, v := range m.nodeCalls {
		snap.NodeCalls[k] = v
	}
	for k, v := range m.nodeErrors {
		snap.NodeErrors[k] = v
	}
	return snap
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	NodeDurationsMs  map[string]int64
	NodeCalls        map[string]int64
	NodeErrors       map[string]int64
	TotalDecodeCount int64
	TotalEncodeCount int64
}

// String renders a one-line human summary, handy for a CLI's --verbose
// exit report.
func (s MetricsSnapshot) String() string {
	return fmt.Sprintf("nodes=%d decodes=%d encodes=%d", len(s.NodeCalls), s.TotalDecodeCount, s.TotalEncodeCount)
}

// ── Metrics hook ──────────────────────────────────────────────────────────

// MetricsHook feeds node execution events into an InMemoryMetrics store.
type MetricsHook struct {
	collector *InMemoryMetrics
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c *InMemoryMetrics) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeNode(_ nodes.ExecEnv, _ string, _ graph.NodeID) {}

func (h *MetricsHook) AfterNode(_ nodes.ExecEnv, typeName string, _ graph.NodeID, d time.Duration, err error) {
	h.collector.recordDuration(typeName, d)
	if err != nil {
		h.collector.recordError(typeName)
	}
}

var _ engine.Hook = (*MetricsHook)(nil)
