package engine

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/config"
	"github.com/imazen-go/imageflow/graph"
	"github.com/imazen-go/imageflow/nodes"
)

type fakeEnv struct {
	ctx   context.Context
	store *bitmap.Store
}

func (f *fakeEnv) Context() context.Context { return f.ctx }
func (f *fakeEnv) Store() *bitmap.Store     { return f.store }
func (f *fakeEnv) OpenInput(string) (io.Reader, error) {
	return nil, fmt.Errorf("no I/O in this test")
}
func (f *fakeEnv) OpenOutput(string) (io.WriteCloser, error) {
	return nil, fmt.Errorf("no I/O in this test")
}
func (f *fakeEnv) DecoderFor(io.Reader, codec.Format) (codec.Decoder, error) {
	return nil, fmt.Errorf("no decoder in this test")
}
func (f *fakeEnv) EncoderFor(codec.Format) (codec.Encoder, error) {
	return nil, fmt.Errorf("no encoder in this test")
}
func (f *fakeEnv) SecurityLimits() config.Security { return config.Security{} }

func init() {
	// TestSource is a minimal stand-in for Decode that doesn't need real
	// I/O, registered once so every test in this file can use it.
	nodes.Register(&nodes.Def{
		TypeName: "TestSource",
		Estimate: func(env nodes.ExecEnv, g *graph.Graph, id graph.NodeID) error {
			g.Node(id).Estimate = graph.FrameEstimate{Width: 8, Height: 8, Layout: bitmap.BGRA, Known: true}
			return nil
		},
		Execute: func(env nodes.ExecEnv, g *graph.Graph, id graph.NodeID) error {
			key, err := env.Store().CreateU8(8, 8, bitmap.BGRA, false, bitmap.StandardRGB, bitmap.Compositing{Mode: bitmap.ReplaceSelf})
			if err != nil {
				return err
			}
			g.Node(id).Result = graph.NodeResult{Kind: graph.ResultFrame, BitmapKey: key}
			return nil
		},
	})
}

func TestRunExecutesSimpleChain(t *testing.T) {
	env := &fakeEnv{ctx: context.Background(), store: bitmap.NewStore()}
	g := graph.New()
	srcID, _ := g.AddNode("TestSource", nil)
	flipID, _ := g.AddNode("FlipV", nil)
	if err := g.AddEdge(srcID, flipID, graph.Input); err != nil {
		t.Fatal(err)
	}
	eng := New(config.Default())
	if err := eng.Run(env, g); err != nil {
		t.Fatal(err)
	}
	if g.Node(flipID).Stage != graph.Done {
		t.Fatalf("expected flip node Done, got %v", g.Node(flipID).Stage)
	}
	if g.Node(flipID).Result.BitmapKey != g.Node(srcID).Result.BitmapKey {
		t.Fatal("FlipV should have mutated the source bitmap in place")
	}
}

func TestRunExpandsConstrainBeforeExecuting(t *testing.T) {
	env := &fakeEnv{ctx: context.Background(), store: bitmap.NewStore()}
	g := graph.New()
	srcID, _ := g.AddNode("TestSource", nil)
	constrainID, _ := g.AddNode("Constrain", &nodes.ConstrainParams{Width: 4, Height: 4, Mode: nodes.ConstrainDistort})
	if err := g.AddEdge(srcID, constrainID, graph.Input); err != nil {
		t.Fatal(err)
	}
	eng := New(config.Default())
	if err := eng.Run(env, g); err != nil {
		t.Fatal(err)
	}
	// constrainID should have been replaced by a Resample2D node during
	// flattening, so looking it up by its original ID must fail.
	if g.Node(constrainID) != nil {
		t.Fatal("Constrain node should have been flattened away")
	}
	var resampleID graph.NodeID
	for _, id := range g.Nodes() {
		if g.Node(id).TypeName == "Resample2D" {
			resampleID = id
		}
	}
	if resampleID == "" {
		t.Fatal("expected a Resample2D node after flattening")
	}
	bmp, err := env.store.Describe(g.Node(resampleID).Result.BitmapKey)
	if err != nil {
		t.Fatal(err)
	}
	if bmp.Width() != 4 || bmp.Height() != 4 {
		t.Fatalf("expected 4x4 output, got %dx%d", bmp.Width(), bmp.Height())
	}
}

func TestRunRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env := &fakeEnv{ctx: ctx, store: bitmap.NewStore()}
	g := graph.New()
	_, _ = g.AddNode("TestSource", nil)
	eng := New(config.Default())
	err := eng.Run(env, g)
	if err == nil {
		t.Fatal("expected OperationCancelled error")
	}
}

func TestRunHonorsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	env := &fakeEnv{ctx: ctx, store: bitmap.NewStore()}
	g := graph.New()
	_, _ = g.AddNode("TestSource", nil)
	eng := New(config.Default())
	if err := eng.Run(env, g); err == nil {
		t.Fatal("expected a timeout-induced cancellation error")
	}
}
