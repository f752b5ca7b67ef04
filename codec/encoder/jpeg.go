// Package encoder implements codec.Encoder for each supported container
// format, generalizing the teacher's adapters/encoder/* the same way
// codec/decoder generalizes adapters/decoder/*.
package encoder

import (
	"context"
	"image/jpeg"
	"io"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/ferr"
)

// JPEG encodes via the standard library. Progressive encoding is not
// exposed by image/jpeg's EncoderOptions, so EncodeOptions.Progressive is
// accepted but only honored by codec/vips's mozjpeg-backed path.
type JPEG struct{}

func (JPEG) WriteFrame(ctx context.Context, w io.Writer, store *bitmap.Store, key bitmap.Key, opts codec.EncodeOptions) error {
	img, err := codec.ToImage(store, key)
	if err != nil {
		return err
	}
	q := opts.Quality
	if q <= 0 {
		q = 90
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: q}); err != nil {
		return ferr.Wrap(ferr.EncodingIoError, "encoder.JPEG.WriteFrame", err)
	}
	return nil
}
