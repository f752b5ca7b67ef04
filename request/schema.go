// Package request implements the JSON build-request/response schema and
// the method-routed message interface (spec §4.J, §6), translating a
// declarative `{io, framewise}` document into a graph.Graph the engine
// can run. It generalizes imageflow_core's json.rs MethodRouter<T> and
// imageflow_types' serde-tagged Node/IoEnum/Framewise enums to Go's
// encoding/json, using a type-discriminator field plus a per-type decode
// switch in place of Rust's internally-tagged enum derive.
package request

import (
	"encoding/json"

	"github.com/imazen-go/imageflow/bitmap"
)

// IoDirection is one I/O handle's direction (spec §6's "in"|"out").
type IoDirection string

const (
	DirIn  IoDirection = "in"
	DirOut IoDirection = "out"
)

// IoEnum is the tagged union of I/O handle backings (spec §6 "IoEnum
// variants"): at most one of the backing fields below is populated,
// selected by Type.
type IoEnum struct {
	Type string `json:"type"`

	Bytes    []byte `json:"bytes,omitempty"`     // ByteArray
	Base64   string `json:"base64,omitempty"`    // Base64
	Hex      string `json:"hex,omitempty"`       // BytesHex
	Filename string `json:"filename,omitempty"`  // Filename
	Url      string `json:"url,omitempty"`       // Url
}

const (
	IoByteArray = "byte_array"
	IoBase64    = "base64"
	IoBytesHex  = "bytes_hex"
	IoFilename  = "filename"
	IoUrl       = "url"
	IoOutputBuf = "output_buffer"
	IoPlaceholder = "placeholder"
)

// IoObject binds an io_id to a direction and backing (spec §6 build
// request schema's `io: [...]`).
type IoObject struct {
	IoID      string      `json:"io_id"`
	Direction IoDirection `json:"direction"`
	Io        IoEnum      `json:"io"`
}

// Edge is one Framewise.Graph edge (spec §6's Framewise).
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"` // "Input" | "Canvas"
}

// GraphDoc is the explicit-graph form of Framewise.
type GraphDoc struct {
	Nodes map[string]Node `json:"nodes"`
	Edges []Edge          `json:"edges"`
}

// Framewise is `{ Steps: [Node...] } | { Graph: GraphDoc }` (spec §6).
// Exactly one of Steps/Graph is populated.
type Framewise struct {
	Steps []Node    `json:"steps,omitempty"`
	Graph *GraphDoc `json:"graph,omitempty"`
}

// Node is one tagged graph-node description (spec §4.J's Node variants).
// UnmarshalJSON captures the raw field set alongside Type so nodeParams
// can decode only the fields relevant to that type, the same adjacently-
// tagged-enum pattern imageflow_types' Node enum expresses in Rust.
type Node struct {
	Type   string
	fields map[string]json.RawMessage
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var typ string
	if raw, ok := m["type"]; ok {
		if err := json.Unmarshal(raw, &typ); err != nil {
			return err
		}
	}
	delete(m, "type")
	n.Type = typ
	n.fields = m
	return nil
}

func (n Node) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(n.fields)+1)
	for k, v := range n.fields {
		m[k] = v
	}
	typJSON, _ := json.Marshal(n.Type)
	m["type"] = typJSON
	return json.Marshal(m)
}

func (n Node) field(key string, out interface{}) bool {
	raw, ok := n.fields[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (n Node) intField(key string) int {
	var v int
	n.field(key, &v)
	return v
}

func (n Node) floatField(key string) float64 {
	var v float64
	n.field(key, &v)
	return v
}

func (n Node) stringField(key string) string {
	var v string
	n.field(key, &v)
	return v
}

func (n Node) boolField(key string) bool {
	var v bool
	n.field(key, &v)
	return v
}

func (n Node) colorField(key string) bitmap.Color {
	var v struct {
		R, G, B, A uint8
	}
	if n.field(key, &v) {
		return bitmap.Color{R: v.R, G: v.G, B: v.B, A: v.A}
	}
	return bitmap.Color{}
}

// GraphRecording mirrors spec §6 builder_config.graph_recording.
type GraphRecording struct {
	RecordGraphVersions     bool `json:"record_graph_versions,omitempty"`
	RecordPreOptimizeGraph  bool `json:"record_pre_optimize_graph,omitempty"`
	RecordPostOptimizeGraph bool `json:"record_post_optimize_graph,omitempty"`
}

// SizeLimit mirrors spec §6's `{w, h, megapixels}` security limit shape.
type SizeLimit struct {
	W          int     `json:"w,omitempty"`
	H          int     `json:"h,omitempty"`
	Megapixels float64 `json:"megapixels,omitempty"`
}

// Security mirrors spec §6 builder_config.security.
type Security struct {
	MaxDecodeSize *SizeLimit `json:"max_decode_size,omitempty"`
	MaxFrameSize  *SizeLimit `json:"max_frame_size,omitempty"`
	MaxEncodeSize *SizeLimit `json:"max_encode_size,omitempty"`
}

// BuilderConfig mirrors spec §6 builder_config.
type BuilderConfig struct {
	GraphRecording *GraphRecording `json:"graph_recording,omitempty"`
	Security       *Security       `json:"security,omitempty"`
}

// BuildRequest is the v1/build and v1/execute request body (spec §6
// "Build request schema").
type BuildRequest struct {
	BuilderConfig *BuilderConfig `json:"builder_config,omitempty"`
	Io            []IoObject     `json:"io"`
	Framewise     Framewise      `json:"framewise"`
}

// GetImageInfoRequest is the v1/get_image_info and
// v1/get_scaled_image_info request body.
type GetImageInfoRequest struct {
	IoID string `json:"io_id"`
}

// TellDecoderRequest is the v1/tell_decoder request body.
type TellDecoderRequest struct {
	IoID    string          `json:"io_id"`
	Command json.RawMessage `json:"command"`
}
