// Package decoder implements codec.Decoder for each supported container
// format, generalizing the teacher's adapters/decoder/* (which decoded
// straight to image.Image) to decode into bitmap.Store-owned bitmaps via
// codec.FromImage, and to report the richer ImageInfo/state-machine
// contract spec.md §4.F requires.
package decoder

import (
	"context"
	"fmt"
	"image"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/ferr"
)

// single wraps an already-decoded image.Image frame behind the
// codec.Decoder contract; JPEG, PNG, WebP and BMP are all single-frame
// formats so they share this implementation.
type single struct {
	format       codec.Format
	img          image.Image
	exifRotation int
	iccProfile   []byte // set by JPEG's APP2 reassembly; nil for every other format
	consumed     bool
}

func newSingle(format codec.Format, img image.Image, exifRotation int) *single {
	return &single{format: format, img: img, exifRotation: exifRotation}
}

func (s *single) info() codec.ImageInfo {
	b := s.img.Bounds()
	return codec.ImageInfo{
		Format:     s.format,
		Width:      b.Dx(),
		Height:     b.Dy(),
		FrameCount: 1,
		HasAlpha:   hasAlpha(s.img),
		ICCProfile: s.iccProfile,
	}
}

func (s *single) GetUnscaledImageInfo(ctx context.Context) (codec.ImageInfo, error) {
	return s.info(), nil
}

func (s *single) GetScaledImageInfo(ctx context.Context) (codec.ImageInfo, error) {
	return s.info(), nil
}

// TellDecoder is a no-op for formats with no native downscale-on-decode
// support (PNG, BMP, WebP via x/image). JPEG overrides this.
func (s *single) TellDecoder(cmd codec.DecoderCommand) {}

func (s *single) ReadFrame(ctx context.Context, store *bitmap.Store) (bitmap.Key, error) {
	if err := ctx.Err(); err != nil {
		return 0, ferr.New(ferr.OperationCancelled, "decoder.ReadFrame", err)
	}
	if s.consumed {
		return 0, ferr.New(ferr.InvalidState, "decoder.ReadFrame", fmt.Errorf("%s decoder already exhausted", s.format))
	}
	s.consumed = true
	key, err := codec.FromImage(store, s.img)
	if err != nil {
		return 0, ferr.Wrap(ferr.ImageDecodingError, "decoder.ReadFrame", err)
	}
	return key, nil
}

func (s *single) HasMoreFrames() bool { return !s.consumed }

func (s *single) GetExifRotationFlag(ctx context.Context) (int, error) {
	return s.exifRotation, nil
}

func hasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return true
	default:
		return false
	}
}
