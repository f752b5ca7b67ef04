package decoder

import (
	"bytes"
	"io"

	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/ferr"
	"golang.org/x/image/bmp"
)

// BMP decodes Windows BMP via golang.org/x/image/bmp, which already
// corrects the format's bottom-up row order internally.
type BMP struct{ *single }

func NewBMP(r io.Reader) (codec.Decoder, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ferr.Wrap(ferr.ImageDecodingError, "decoder.NewBMP", err)
	}
	img, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ferr.Wrap(ferr.ImageDecodingError, "decoder.NewBMP", err)
	}
	return &BMP{single: newSingle(codec.BMP, img, 0)}, nil
}
