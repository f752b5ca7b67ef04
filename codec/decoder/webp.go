package decoder

import (
	"bytes"
	"io"

	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/ferr"
	"golang.org/x/image/webp"
)

// WebP decodes lossy WebP via golang.org/x/image/webp, exactly as the
// teacher's adapters/decoder/webp.go does; lossless/animated WebP decoding
// is out of reach of this package (x/image/webp documents lossy-only
// support). codec/vips.Backend's decoder covers those cases only when a
// caller registers it for codec.WebP in place of this decoder.
type WebP struct{ *single }

func NewWebP(r io.Reader) (codec.Decoder, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ferr.Wrap(ferr.ImageDecodingError, "decoder.NewWebP", err)
	}
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ferr.Wrap(ferr.ImageDecodingError, "decoder.NewWebP", err)
	}
	return &WebP{single: newSingle(codec.WebP, img, 0)}, nil
}
