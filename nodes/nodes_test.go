package nodes

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/config"
	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/graph"
)

// fakeEnv is a minimal ExecEnv for exercising node Execute/Estimate
// functions without a real job.Context.
type fakeEnv struct {
	store    *bitmap.Store
	security config.Security
	decoder  codec.Decoder // used by DecoderFor when set, for Decode.Estimate tests
}

func (f *fakeEnv) Context() context.Context { return context.Background() }
func (f *fakeEnv) Store() *bitmap.Store     { return f.store }
func (f *fakeEnv) OpenInput(string) (io.Reader, error) {
	if f.decoder != nil {
		return strings.NewReader(""), nil
	}
	return nil, fmt.Errorf("no I/O in this test")
}
func (f *fakeEnv) OpenOutput(string) (io.WriteCloser, error) {
	return nil, fmt.Errorf("no I/O in this test")
}
func (f *fakeEnv) DecoderFor(io.Reader, codec.Format) (codec.Decoder, error) {
	if f.decoder != nil {
		return f.decoder, nil
	}
	return nil, fmt.Errorf("no decoder in this test")
}
func (f *fakeEnv) EncoderFor(codec.Format) (codec.Encoder, error) {
	return nil, fmt.Errorf("no encoder in this test")
}
func (f *fakeEnv) SecurityLimits() config.Security { return f.security }

// stubDecoder reports a fixed size from GetScaledImageInfo, for exercising
// decodeEstimate's size-limit check without a real codec.
type stubDecoder struct {
	width, height int
}

func (s *stubDecoder) GetUnscaledImageInfo(context.Context) (codec.ImageInfo, error) {
	return codec.ImageInfo{Width: s.width, Height: s.height}, nil
}
func (s *stubDecoder) GetScaledImageInfo(context.Context) (codec.ImageInfo, error) {
	return codec.ImageInfo{Width: s.width, Height: s.height}, nil
}
func (s *stubDecoder) TellDecoder(codec.DecoderCommand)   {}
func (s *stubDecoder) ReadFrame(context.Context, *bitmap.Store) (bitmap.Key, error) {
	return 0, fmt.Errorf("not implemented in this test")
}
func (s *stubDecoder) HasMoreFrames() bool { return false }
func (s *stubDecoder) GetExifRotationFlag(context.Context) (int, error) { return 0, nil }

func newSolidBitmap(t *testing.T, env *fakeEnv, w, h int, c bitmap.Color) graph.NodeResult {
	t.Helper()
	key, err := env.store.CreateU8(w, h, bitmap.BGRA, c.A != 255, bitmap.StandardRGB, bitmap.Compositing{Mode: bitmap.ReplaceSelf})
	if err != nil {
		t.Fatalf("CreateU8: %v", err)
	}
	win, err := env.store.TryBorrowMut(key)
	if err != nil {
		t.Fatalf("TryBorrowMut: %v", err)
	}
	for y := 0; y < h; y++ {
		row, _ := win.RowBytes(y)
		for x := 0; x < w; x++ {
			o := x * 4
			row[o], row[o+1], row[o+2], row[o+3] = c.B, c.G, c.R, c.A
		}
	}
	win.Close()
	return graph.NodeResult{Kind: graph.ResultFrame, BitmapKey: key}
}

func TestFlipVExecuteMutatesInPlace(t *testing.T) {
	env := &fakeEnv{store: bitmap.NewStore()}
	g := graph.New()
	srcID, _ := g.AddNode("source", nil)
	g.Node(srcID).Result = newSolidBitmap(t, env, 4, 4, bitmap.Color{R: 10, G: 20, B: 30, A: 255})
	flipID, _ := g.AddNode("FlipV", nil)
	if err := g.AddEdge(srcID, flipID, graph.Input); err != nil {
		t.Fatal(err)
	}
	def, ok := Get("FlipV")
	if !ok {
		t.Fatal("FlipV not registered")
	}
	if err := def.Execute(env, g, flipID); err != nil {
		t.Fatal(err)
	}
	if g.Node(flipID).Result.BitmapKey != g.Node(srcID).Result.BitmapKey {
		t.Fatal("FlipV should mutate its parent's bitmap in place, not allocate a new one")
	}
}

func TestCropExecuteProducesExpectedDimensions(t *testing.T) {
	env := &fakeEnv{store: bitmap.NewStore()}
	g := graph.New()
	srcID, _ := g.AddNode("source", nil)
	g.Node(srcID).Result = newSolidBitmap(t, env, 10, 10, bitmap.Color{A: 255})
	cropID, _ := g.AddNode("Crop", &CropParams{X1: 2, Y1: 2, X2: 6, Y2: 8})
	if err := g.AddEdge(srcID, cropID, graph.Input); err != nil {
		t.Fatal(err)
	}
	def, _ := Get("Crop")
	if err := def.Execute(env, g, cropID); err != nil {
		t.Fatal(err)
	}
	bmp, err := env.store.Describe(g.Node(cropID).Result.BitmapKey)
	if err != nil {
		t.Fatal(err)
	}
	if bmp.Width() != 4 || bmp.Height() != 6 {
		t.Fatalf("expected 4x6 crop result, got %dx%d", bmp.Width(), bmp.Height())
	}
}

func TestConstrainFlattenWithinDoesNotUpscale(t *testing.T) {
	g := graph.New()
	srcID, _ := g.AddNode("source", nil)
	g.Node(srcID).Estimate = graph.FrameEstimate{Width: 100, Height: 50, Known: true}
	constrainID, _ := g.AddNode("Constrain", &ConstrainParams{Width: 400, Height: 400, Mode: ConstrainWithin})
	if err := g.AddEdge(srcID, constrainID, graph.Input); err != nil {
		t.Fatal(err)
	}
	def, _ := Get("Constrain")
	if err := def.FlattenPre(g, constrainID); err != nil {
		t.Fatal(err)
	}
	// constrainID itself should be gone, replaced by a Resample2D node.
	if g.Node(constrainID) != nil {
		t.Fatal("Constrain node should be replaced during flatten")
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
	p := g.Node(resampleID).Params.(*Resample2DParams)
	if p.Width != 100 || p.Height != 50 {
		t.Fatalf("within mode should not upscale a 100x50 source, got %dx%d", p.Width, p.Height)
	}
}

func TestConstrainFlattenFitCropAddsCrop(t *testing.T) {
	g := graph.New()
	srcID, _ := g.AddNode("source", nil)
	g.Node(srcID).Estimate = graph.FrameEstimate{Width: 200, Height: 100, Known: true}
	constrainID, _ := g.AddNode("Constrain", &ConstrainParams{Width: 50, Height: 50, Mode: ConstrainFitCrop})
	if err := g.AddEdge(srcID, constrainID, graph.Input); err != nil {
		t.Fatal(err)
	}
	def, _ := Get("Constrain")
	if err := def.FlattenPre(g, constrainID); err != nil {
		t.Fatal(err)
	}
	var sawCrop bool
	for _, id := range g.Nodes() {
		if g.Node(id).TypeName == "Crop" {
			sawCrop = true
		}
	}
	if !sawCrop {
		t.Fatal("fit_crop mode should flatten in a Crop node")
	}
}

func TestEnableTransparencyFlattenSnapsTogetherWhenAlreadyTransparent(t *testing.T) {
	g := graph.New()
	srcID, _ := g.AddNode("source", nil)
	g.Node(srcID).Estimate = graph.FrameEstimate{Width: 10, Height: 10, AlphaMeaningful: true, Known: true}
	etID, _ := g.AddNode("EnableTransparency", &EnableTransparencyParams{})
	childID, _ := g.AddNode("sink", nil)
	if err := g.AddEdge(srcID, etID, graph.Input); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(etID, childID, graph.Input); err != nil {
		t.Fatal(err)
	}
	def, _ := Get("EnableTransparency")
	if err := def.FlattenPre(g, etID); err != nil {
		t.Fatal(err)
	}
	if g.Node(etID) != nil {
		t.Fatal("EnableTransparency should have been snapped away")
	}
	if _, ok := g.EdgeKindOf(srcID, childID); !ok {
		t.Fatal("expected a direct edge from source to sink after snapping")
	}
}

func TestRoundImageCornersFlattenInsertsEnableTransparency(t *testing.T) {
	g := graph.New()
	srcID, _ := g.AddNode("source", nil)
	g.Node(srcID).Estimate = graph.FrameEstimate{Width: 10, Height: 10, AlphaMeaningful: false, Known: true}
	rcID, _ := g.AddNode("RoundImageCorners", &RoundImageCornersParams{RadiusPercent: 10})
	if err := g.AddEdge(srcID, rcID, graph.Input); err != nil {
		t.Fatal(err)
	}
	def, _ := Get("RoundImageCorners")
	if err := def.FlattenPre(g, rcID); err != nil {
		t.Fatal(err)
	}
	parent, ok := singleParent(g, rcID)
	if !ok {
		t.Fatal("RoundImageCorners should still have one parent")
	}
	if g.Node(parent).TypeName != "EnableTransparency" {
		t.Fatalf("expected EnableTransparency inserted before RoundImageCorners, got %s", g.Node(parent).TypeName)
	}
}

func TestDecodeEstimateRejectsOverLimitImage(t *testing.T) {
	env := &fakeEnv{
		store:   bitmap.NewStore(),
		decoder: &stubDecoder{width: 8000, height: 6000},
		security: config.Security{
			MaxDecodeSize: config.SizeLimit{MaxMegapixels: 10},
		},
	}
	g := graph.New()
	id, _ := g.AddNode("Decode", &DecodeParams{IoID: "0"})

	def, _ := Get("Decode")
	err := def.Estimate(env, g, id)
	if err == nil {
		t.Fatal("expected an error for an over-limit image")
	}
	if !ferr.Is(err, ferr.SizeLimitExceeded) {
		t.Fatalf("expected ferr.SizeLimitExceeded, got %v", err)
	}
}

func TestDecodeEstimateAllowsWithinLimitImage(t *testing.T) {
	env := &fakeEnv{
		store:   bitmap.NewStore(),
		decoder: &stubDecoder{width: 800, height: 600},
		security: config.Security{
			MaxDecodeSize: config.SizeLimit{MaxMegapixels: 10},
		},
	}
	g := graph.New()
	id, _ := g.AddNode("Decode", &DecodeParams{IoID: "0"})

	def, _ := Get("Decode")
	if err := def.Estimate(env, g, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Node(id).Estimate.Width != 800 || g.Node(id).Estimate.Height != 600 {
		t.Fatalf("unexpected estimate: %+v", g.Node(id).Estimate)
	}
}
