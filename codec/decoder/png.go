package decoder

import (
	"bytes"
	"image/png"
	"io"

	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/ferr"
)

// PNG decodes PNG via the standard library, unchanged in approach from the
// teacher's adapters/decoder/png.go beyond routing through bitmap.Store.
type PNG struct{ *single }

func NewPNG(r io.Reader) (codec.Decoder, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ferr.Wrap(ferr.ImageDecodingError, "decoder.NewPNG", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ferr.Wrap(ferr.ImageDecodingError, "decoder.NewPNG", err)
	}
	return &PNG{single: newSingle(codec.PNG, img, 0)}, nil
}
