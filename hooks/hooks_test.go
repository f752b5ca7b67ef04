package hooks

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/imazen-go/imageflow/graph"
)

func TestLoggingHookLogsErrorsAndSuccesses(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	h := NewLoggingHook(logger)

	h.BeforeNode(nil, "FlipV", graph.NodeID("n1"))
	h.AfterNode(nil, "FlipV", graph.NodeID("n1"), 5*time.Millisecond, nil)
	if buf.Len() == 0 {
		t.Fatal("expected BeforeNode/AfterNode to write log output")
	}

	buf.Reset()
	h.AfterNode(nil, "FlipV", graph.NodeID("n1"), time.Millisecond, errors.New("boom"))
	if !bytes.Contains(buf.Bytes(), []byte("boom")) {
		t.Fatalf("expected the error message in the log line, got %q", buf.String())
	}
}

func TestMetricsHookAccumulatesPerNodeType(t *testing.T) {
	m := NewInMemoryMetrics()
	h := NewMetricsHook(m)

	h.AfterNode(nil, "Resample2D", graph.NodeID("a"), 10*time.Millisecond, nil)
	h.AfterNode(nil, "Resample2D", graph.NodeID("b"), 20*time.Millisecond, nil)
	h.AfterNode(nil, "Crop", graph.NodeID("c"), time.Millisecond, errors.New("fail"))

	snap := m.Snapshot()
	if snap.NodeCalls["Resample2D"] != 2 {
		t.Fatalf("expected 2 Resample2D calls, got %d", snap.NodeCalls["Resample2D"])
	}
	if snap.NodeDurationsMs["Resample2D"] != 30 {
		t.Fatalf("expected 30ms total, got %d", snap.NodeDurationsMs["Resample2D"])
	}
	if snap.NodeErrors["Crop"] != 1 {
		t.Fatalf("expected 1 Crop error, got %d", snap.NodeErrors["Crop"])
	}
}

func TestInMemoryMetricsRecordDecodeEncode(t *testing.T) {
	m := NewInMemoryMetrics()
	m.RecordDecode()
	m.RecordDecode()
	m.RecordEncode()
	snap := m.Snapshot()
	if snap.TotalDecodeCount != 2 || snap.TotalEncodeCount != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
