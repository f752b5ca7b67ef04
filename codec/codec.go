// Package codec defines the uniform decoder/encoder contract every image
// format adapter implements (spec §4.F), generalizing the teacher's
// per-format core.Decoder/core.Encoder interfaces (adapters/decoder,
// adapters/encoder) into imageflow's richer codec-instance contract:
// unscaled vs scaled image info, decoder hinting (tell), multi-frame
// support, and EXIF rotation flags.
package codec

import (
	"context"
	"io"

	"github.com/imazen-go/imageflow/bitmap"
)

// Format identifies an image container format.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
	GIF  Format = "gif"
	BMP  Format = "bmp"
	AVIF Format = "avif"
)

// ImageInfo is the metadata a Decoder reports before any frame is read
// (spec §4.F, §4.J's get_image_info response payload).
type ImageInfo struct {
	Format         Format
	Width, Height  int
	FrameCount     int
	HasAlpha       bool
	PreferredMimeType string
	// ICCProfile is the reassembled ICC color profile, when the source
	// carried one (currently populated by the JPEG decoder's APP2
	// multi-marker reassembly; nil when absent or unparseable).
	ICCProfile []byte
}

// DecoderCommand is a decode-time hint sent via TellDecoder, such as JPEG
// IDCT downscale hints (SPEC_FULL.md "Supplemented features").
type DecoderCommand struct {
	// JpegDownscaleHint asks a JPEG decoder to use IDCT scaling to decode
	// directly at or above this size, avoiding a full-resolution decode
	// when the graph plan already knows the final output is much smaller.
	JpegDownscaleHint *struct{ Width, Height int }
}

// State is a codec instance's lifecycle stage (spec §4.F).
type State int

const (
	Uninitialized State = iota
	HeadersRead
	FrameReady
	FrameConsumed
	Exhausted
	HasMore
)

// Decoder is the read half of the codec adapter contract.
type Decoder interface {
	// GetUnscaledImageInfo returns the format's native dimensions and
	// frame count, without applying any decode-time scaling.
	GetUnscaledImageInfo(ctx context.Context) (ImageInfo, error)
	// GetScaledImageInfo returns the dimensions a ReadFrame call would
	// actually produce, accounting for any TellDecoder hints applied so
	// far (e.g. JPEG IDCT downscaling).
	GetScaledImageInfo(ctx context.Context) (ImageInfo, error)
	// TellDecoder applies a decode-time hint; decoders that don't support
	// a given hint silently ignore it.
	TellDecoder(cmd DecoderCommand)
	// ReadFrame decodes the next frame into a freshly allocated bitmap in
	// store, returning its key.
	ReadFrame(ctx context.Context, store *bitmap.Store) (bitmap.Key, error)
	// HasMoreFrames reports whether another ReadFrame call would succeed
	// (multi-frame GIF support).
	HasMoreFrames() bool
	// GetExifRotationFlag returns the raw EXIF orientation tag (1-8), or 0
	// if the format carries no EXIF data or none was present.
	GetExifRotationFlag(ctx context.Context) (int, error)
}

// EncodeOptions configures a single Encoder.WriteFrame call (spec §4.J's
// EncoderPreset node param).
type EncodeOptions struct {
	Quality        int  // 0-100, format-dependent meaning
	Lossless       bool
	Progressive    bool // JPEG
	MinQuality     int  // PNG quantization floor
	ChromaSubsampling bool
}

// Encoder is the write half of the codec adapter contract.
type Encoder interface {
	WriteFrame(ctx context.Context, w io.Writer, store *bitmap.Store, key bitmap.Key, opts EncodeOptions) error
}

// DecoderFactory constructs a Decoder for r. The caller has already chosen
// the factory by format; format sniffing happens before this call.
type DecoderFactory func(r io.Reader) (Decoder, error)

// Registry maps each Format to one decoder factory and one encoder,
// generalizing the teacher's core.DefaultRegistry to codec enablement
// (spec §4.I "enabled-codec allowlist per direction"). Registering a
// format again replaces its earlier entry. Registry holds no lock:
// concurrent lookups are safe only while nothing registers.
type Registry struct {
	decoders map[Format]DecoderFactory
	encoders map[Format]Encoder
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[Format]DecoderFactory), encoders: make(map[Format]Encoder)}
}

func (r *Registry) RegisterDecoder(f Format, factory DecoderFactory) { r.decoders[f] = factory }
func (r *Registry) RegisterEncoder(f Format, enc Encoder)            { r.encoders[f] = enc }

func (r *Registry) NewDecoder(f Format, rd io.Reader) (Decoder, bool, error) {
	factory, ok := r.decoders[f]
	if !ok {
		return nil, false, nil
	}
	d, err := factory(rd)
	return d, true, err
}

func (r *Registry) Encoder(f Format) (Encoder, bool) {
	enc, ok := r.encoders[f]
	return enc, ok
}
