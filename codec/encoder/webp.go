package encoder

import (
	"context"
	"io"

	"github.com/chai2010/webp"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/ferr"
)

// WebP encodes via github.com/chai2010/webp (CGO libwebp bindings). The
// teacher's adapters/encoder/webp.go was a JPEG-shim whose comment named
// this exact package as "the production swap point"; this is that swap.
type WebP struct{}

func (WebP) WriteFrame(ctx context.Context, w io.Writer, store *bitmap.Store, key bitmap.Key, opts codec.EncodeOptions) error {
	img, err := codec.ToImage(store, key)
	if err != nil {
		return err
	}
	q := opts.Quality
	if q <= 0 {
		q = 80
	}
	data, err := webp.EncodeRGBA(img, float32(q))
	if opts.Lossless {
		data, err = webp.EncodeLosslessRGBA(img)
	}
	if err != nil {
		return ferr.Wrap(ferr.ImageEncodingError, "encoder.WebP.WriteFrame", err)
	}
	if _, err := w.Write(data); err != nil {
		return ferr.Wrap(ferr.EncodingIoError, "encoder.WebP.WriteFrame", err)
	}
	return nil
}
