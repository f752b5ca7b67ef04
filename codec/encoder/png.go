package encoder

import (
	"context"
	"image/png"
	"io"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/ferr"
)

// PNG encodes via the standard library. MinQuality (pngquant-style
// quantization floor) has no equivalent in image/png's encoder and is
// only honored by codec/vips's libvips-backed path, which can call into
// libimagequant.
type PNG struct{}

func (PNG) WriteFrame(ctx context.Context, w io.Writer, store *bitmap.Store, key bitmap.Key, opts codec.EncodeOptions) error {
	img, err := codec.ToImage(store, key)
	if err != nil {
		return err
	}
	enc := &png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(w, img); err != nil {
		return ferr.Wrap(ferr.EncodingIoError, "encoder.PNG.WriteFrame", err)
	}
	return nil
}
