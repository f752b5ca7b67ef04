package request

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"testing"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/config"
	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/graph"
	"github.com/imazen-go/imageflow/job"
	"github.com/imazen-go/imageflow/nodes"
)

func TestBuildGraphLinearSteps(t *testing.T) {
	fw := Framewise{Steps: []Node{
		mustNode(t, `{"type":"Decode","io_id":"0"}`),
		mustNode(t, `{"type":"FlipV"}`),
		mustNode(t, `{"type":"Encode","io_id":"1","format":"png"}`),
	}}
	g, err := BuildGraph(fw)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	if len(g.Nodes()) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(g.Nodes()))
	}
}

func TestBuildGraphExplicitGraph(t *testing.T) {
	doc := &GraphDoc{
		Nodes: map[string]Node{
			"a": mustNode(t, `{"type":"CreateCanvas","w":10,"h":10}`),
			"b": mustNode(t, `{"type":"FillRect","x1":0,"y1":0,"x2":5,"y2":5}`),
		},
		Edges: []Edge{{From: "a", To: "b", Kind: "Canvas"}},
	}
	g, err := BuildGraph(Framewise{Graph: doc})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	if len(g.Nodes()) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(g.Nodes()))
	}
}

func TestBuildGraphExplicitGraphDanglingEdge(t *testing.T) {
	doc := &GraphDoc{
		Nodes: map[string]Node{"a": mustNode(t, `{"type":"CreateCanvas","w":1,"h":1}`)},
		Edges: []Edge{{From: "a", To: "missing", Kind: "Input"}},
	}
	_, err := BuildGraph(Framewise{Graph: doc})
	if !ferr.Is(err, ferr.InvalidNodeConnections) {
		t.Fatalf("expected InvalidNodeConnections, got %v", err)
	}
}

func TestBuildGraphEmptyFramewise(t *testing.T) {
	if _, err := BuildGraph(Framewise{}); err == nil {
		t.Fatal("expected an error for empty framewise")
	}
}

func TestNodeParamsUnrecognizedType(t *testing.T) {
	_, _, err := nodeParams(mustNode(t, `{"type":"NotARealNode"}`))
	if !ferr.Is(err, ferr.NodeParamsMismatch) {
		t.Fatalf("expected NodeParamsMismatch, got %v", err)
	}
}

func TestColorFilterMatrixPresets(t *testing.T) {
	invert := colorFilterMatrix(mustNode(t, `{"type":"ColorFilterSrgb","preset":"Invert"}`))
	identity := colorFilterMatrix(mustNode(t, `{"type":"ColorFilterSrgb","preset":"Unknown"}`))
	if invert == identity {
		t.Fatal("Invert preset should not equal the identity fallback")
	}
}

func TestConstrainModeDefaultsToWithin(t *testing.T) {
	if constrainMode("bogus") != constrainMode("Within") {
		t.Fatal("unrecognized mode should default to Within")
	}
}

func TestMethodRouterDispatch(t *testing.T) {
	type env struct{ calls int }
	r := NewMethodRouter[*env]()
	r.Add("ping", func(e *env, _ []byte) Response {
		e.calls++
		return ok("pong")
	})
	AddJSON(r, "echo", func(e *env, body map[string]string) (interface{}, error) {
		return body["msg"], nil
	})

	e := &env{}
	resp := r.Invoke(e, "ping", nil)
	if !resp.Success || resp.Data != "pong" || e.calls != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp = r.Invoke(e, "echo", []byte(`{"msg":"hi"}`))
	if !resp.Success || resp.Data != "hi" {
		t.Fatalf("unexpected echo response: %+v", resp)
	}

	resp = r.Invoke(e, "echo", []byte(`not json`))
	if resp.Success || resp.Code != 400 {
		t.Fatalf("expected a 400 parse error, got %+v", resp)
	}

	resp = r.Invoke(e, "no/such/method", nil)
	if resp.Success || resp.Code != 404 {
		t.Fatalf("expected a 404 methodNotUnderstood, got %+v", resp)
	}
}

func TestBrewCoffeeIsATeapot(t *testing.T) {
	r := defaultRouter()
	resp := r.Invoke(&Server{}, "brew_coffee", nil)
	if resp.Code != 418 {
		t.Fatalf("expected 418, got %d", resp.Code)
	}
}

func TestBindIOByteArrayAndOutputBuffer(t *testing.T) {
	jobCtx := job.NewContext(context.Background(), config.Default(), codec.NewRegistry())
	ios := []IoObject{
		{IoID: "0", Direction: DirIn, Io: IoEnum{Type: IoByteArray, Bytes: []byte("hello")}},
		{IoID: "1", Direction: DirOut, Io: IoEnum{Type: IoOutputBuf}},
	}
	if err := BindIO(jobCtx, ios, nil); err != nil {
		t.Fatalf("BindIO: %v", err)
	}
	r, err := jobCtx.OpenInput("0")
	if err != nil {
		t.Fatalf("OpenInput: %v", err)
	}
	data, _ := io.ReadAll(r)
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", data)
	}
}

func TestBindIOBase64AndHex(t *testing.T) {
	jobCtx := job.NewContext(context.Background(), config.Default(), codec.NewRegistry())
	b64 := base64.StdEncoding.EncodeToString([]byte("abc"))
	hx := hex.EncodeToString([]byte("xyz"))
	ios := []IoObject{
		{IoID: "a", Direction: DirIn, Io: IoEnum{Type: IoBase64, Base64: b64}},
		{IoID: "b", Direction: DirIn, Io: IoEnum{Type: IoBytesHex, Hex: hx}},
	}
	if err := BindIO(jobCtx, ios, nil); err != nil {
		t.Fatalf("BindIO: %v", err)
	}
	ra, _ := jobCtx.OpenInput("a")
	da, _ := io.ReadAll(ra)
	if string(da) != "abc" {
		t.Fatalf("expected abc, got %q", da)
	}
	rb, _ := jobCtx.OpenInput("b")
	db, _ := io.ReadAll(rb)
	if string(db) != "xyz" {
		t.Fatalf("expected xyz, got %q", db)
	}
}

func TestBindIOPlaceholderFails(t *testing.T) {
	jobCtx := job.NewContext(context.Background(), config.Default(), codec.NewRegistry())
	ios := []IoObject{{IoID: "p", Direction: DirIn, Io: IoEnum{Type: IoPlaceholder}}}
	if err := BindIO(jobCtx, ios, nil); err == nil {
		t.Fatal("expected an error binding a Placeholder io")
	}
}

func TestBindIOUrlWithoutHTTPClientFails(t *testing.T) {
	jobCtx := job.NewContext(context.Background(), config.Default(), codec.NewRegistry())
	ios := []IoObject{{IoID: "u", Direction: DirIn, Io: IoEnum{Type: IoUrl, Url: "http://example.invalid/x.jpg"}}}
	if err := BindIO(jobCtx, ios, nil); err == nil {
		t.Fatal("expected Url input to fail without an http.Client")
	}
}

func TestServerEndToEndBuild(t *testing.T) {
	codecs := codec.NewRegistry()
	codecs.RegisterEncoder(codec.PNG, fakeEncoder{})

	jobCtx := job.NewContext(context.Background(), config.Default(), codecs)
	mgr := newTestManager(t)

	s := NewServer(jobCtx, mgr, VersionInfo{LongVersionString: "test"}, nil)

	body := BuildRequest{
		Io: []IoObject{
			{IoID: "src", Direction: DirIn, Io: IoEnum{Type: IoByteArray, Bytes: []byte{0}}},
			{IoID: "dst", Direction: DirOut, Io: IoEnum{Type: IoOutputBuf}},
		},
		Framewise: Framewise{Steps: []Node{
			mustNode(t, `{"type":"RequestTestSource"}`),
			mustNode(t, `{"type":"Encode","io_id":"dst","format":"png"}`),
		}},
	}
	raw, _ := json.Marshal(body)
	resp := s.Invoke("v1/build", raw)
	if !resp.Success {
		t.Fatalf("v1/build failed: %+v", resp)
	}
}

func mustNode(t *testing.T, js string) Node {
	t.Helper()
	var n Node
	if err := json.Unmarshal([]byte(js), &n); err != nil {
		t.Fatalf("unmarshal node: %v", err)
	}
	return n
}

func newTestManager(t *testing.T) *job.Manager {
	t.Helper()
	mgr := job.NewManager(config.Default())
	return mgr
}

type fakeEncoder struct{}

func (fakeEncoder) WriteFrame(ctx context.Context, w io.Writer, store *bitmap.Store, key bitmap.Key, opts codec.EncodeOptions) error {
	_, err := w.Write([]byte("fakepng"))
	return err
}

func init() {
	nodes.Register(&nodes.Def{
		TypeName: "RequestTestSource",
		Estimate: func(env nodes.ExecEnv, g *graph.Graph, id graph.NodeID) error {
			g.Node(id).Estimate = graph.FrameEstimate{Width: 2, Height: 2, Layout: bitmap.BGRA, Known: true}
			return nil
		},
		Execute: func(env nodes.ExecEnv, g *graph.Graph, id graph.NodeID) error {
			key, err := env.Store().CreateU8(2, 2, bitmap.BGRA, false, bitmap.StandardRGB, bitmap.Compositing{Mode: bitmap.ReplaceSelf})
			if err != nil {
				return err
			}
			g.Node(id).Result = graph.NodeResult{Kind: graph.ResultFrame, BitmapKey: key}
			return nil
		},
	})
}
