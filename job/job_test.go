package job

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/config"
	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/graph"
	"github.com/imazen-go/imageflow/nodes"
)

func init() {
	nodes.Register(&nodes.Def{
		TypeName: "JobTestSource",
		Estimate: func(env nodes.ExecEnv, g *graph.Graph, id graph.NodeID) error {
			g.Node(id).Estimate = graph.FrameEstimate{Width: 4, Height: 4, Layout: bitmap.BGRA, Known: true}
			return nil
		},
		Execute: func(env nodes.ExecEnv, g *graph.Graph, id graph.NodeID) error {
			key, err := env.Store().CreateU8(4, 4, bitmap.BGRA, false, bitmap.StandardRGB, bitmap.Compositing{Mode: bitmap.ReplaceSelf})
			if err != nil {
				return err
			}
			g.Node(id).Result = graph.NodeResult{Kind: graph.ResultFrame, BitmapKey: key}
			return nil
		},
	})
}

func TestAddInputBytesRejectsDuplicateIoId(t *testing.T) {
	c := NewContext(context.Background(), config.Default(), codec.NewRegistry())
	if err := c.AddInputBytes("a", []byte("x")); err != nil {
		t.Fatal(err)
	}
	err := c.AddInputBytes("a", []byte("y"))
	if !ferr.Is(err, ferr.DuplicateIoId) {
		t.Fatalf("expected DuplicateIoId, got %v", err)
	}
}

func TestOpenInputCannotBeTakenTwice(t *testing.T) {
	c := NewContext(context.Background(), config.Default(), codec.NewRegistry())
	if err := c.AddInputBytes("a", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.OpenInput("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.OpenInput("a"); !ferr.Is(err, ferr.InvalidState) {
		t.Fatalf("expected InvalidState on second open, got %v", err)
	}
}

func TestAddOutputBufferRoundTrips(t *testing.T) {
	c := NewContext(context.Background(), config.Default(), codec.NewRegistry())
	buf, err := c.AddOutputBuffer("out")
	if err != nil {
		t.Fatal(err)
	}
	w, err := c.OpenOutput("out")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("data")); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "data" {
		t.Fatalf("expected buffer to hold written bytes, got %q", buf.String())
	}
	got, err := c.TakeOutputBuffer("out")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "data" {
		t.Fatalf("expected TakeOutputBuffer to return %q, got %q", "data", got)
	}
}

func TestDecoderForRespectsDisabledDecoders(t *testing.T) {
	cfg := config.Default()
	cfg.DisabledDecoders = map[string]bool{"jpeg": true}
	c := NewContext(context.Background(), cfg, codec.NewRegistry())
	jpegHeader := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	_, err := c.DecoderFor(bytes.NewReader(jpegHeader), "")
	if !ferr.Is(err, ferr.CodecDisabledError) {
		t.Fatalf("expected CodecDisabledError, got %v", err)
	}
}

func TestErrorSinkDeduplicatesByMessage(t *testing.T) {
	s := newErrorSink()
	s.Record(errors.New("boom"))
	s.Record(errors.New("boom"))
	s.Record(errors.New("other"))
	entries := s.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 deduplicated entries, got %d", len(entries))
	}
	var boomCount int
	for _, e := range entries {
		if e.Message == "boom" {
			boomCount = e.Count
		}
	}
	if boomCount != 2 {
		t.Fatalf("expected boom recorded twice, got %d", boomCount)
	}
}

func TestManagerRunExecutesGraph(t *testing.T) {
	mgr := NewManager(config.Default())
	c := NewContext(context.Background(), config.Default(), codec.NewRegistry())
	g := graph.New()
	srcID, _ := g.AddNode("JobTestSource", nil)
	flipID, _ := g.AddNode("FlipV", nil)
	if err := g.AddEdge(srcID, flipID, graph.Input); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Run(c, g); err != nil {
		t.Fatal(err)
	}
	if mgr.ProcessedCount() != 1 {
		t.Fatalf("expected ProcessedCount 1, got %d", mgr.ProcessedCount())
	}
}

func TestManagerSubmitAndStop(t *testing.T) {
	mgr := NewManager(config.Default())
	mgr.Start()
	defer mgr.Stop()

	c := NewContext(context.Background(), config.Default(), codec.NewRegistry())
	g := graph.New()
	_, _ = g.AddNode("JobTestSource", nil)

	results := make(chan Result, 1)
	if err := mgr.Submit(Request{ID: "req-1", Ctx: c, Graph: g, ResultCh: results}); err != nil {
		t.Fatal(err)
	}
	select {
	case r := <-results:
		if r.Err != nil {
			t.Fatal(r.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for async result")
	}
}
