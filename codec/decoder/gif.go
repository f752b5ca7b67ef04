package decoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/ferr"
)

// GIF decodes animated GIF via the standard library's image/gif, adding
// disposal-method compositing (SPEC_FULL.md "Supplemented features",
// grounded on imageflow_core's codecs/gif/disposal.rs and screen.rs): each
// frame is drawn onto a persistent logical screen according to the
// previous frame's disposal method, rather than returned as an isolated
// sub-image the way image/gif.GIF.Image[] exposes them.
type GIF struct {
	g        *gif.GIF
	screen   *image.RGBA
	snapshot *image.RGBA // screen contents before the most recent draw, for DisposePrevious
	index    int
}

func NewGIF(r io.Reader) (codec.Decoder, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ferr.Wrap(ferr.ImageDecodingError, "decoder.NewGIF", err)
	}
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, ferr.Wrap(ferr.ImageDecodingError, "decoder.NewGIF", err)
	}
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	return &GIF{g: g, screen: image.NewRGBA(bounds)}, nil
}

func (d *GIF) info() codec.ImageInfo {
	return codec.ImageInfo{
		Format:     codec.GIF,
		Width:      d.g.Config.Width,
		Height:     d.g.Config.Height,
		FrameCount: len(d.g.Image),
		HasAlpha:   true,
	}
}

func (d *GIF) GetUnscaledImageInfo(ctx context.Context) (codec.ImageInfo, error) { return d.info(), nil }
func (d *GIF) GetScaledImageInfo(ctx context.Context) (codec.ImageInfo, error)   { return d.info(), nil }
func (d *GIF) TellDecoder(cmd codec.DecoderCommand)                             {}
func (d *GIF) GetExifRotationFlag(ctx context.Context) (int, error)             { return 0, nil }
func (d *GIF) HasMoreFrames() bool                                              { return d.index < len(d.g.Image) }

func (d *GIF) ReadFrame(ctx context.Context, store *bitmap.Store) (bitmap.Key, error) {
	if err := ctx.Err(); err != nil {
		return 0, ferr.New(ferr.OperationCancelled, "decoder.GIF.ReadFrame", err)
	}
	if !d.HasMoreFrames() {
		return 0, ferr.New(ferr.InvalidState, "decoder.GIF.ReadFrame", fmt.Errorf("gif decoder exhausted"))
	}
	i := d.index
	frame := d.g.Image[i]

	if i > 0 {
		d.applyDisposal(d.g.Disposal[i-1], i-1)
	}
	d.snapshot = cloneRGBA(d.screen)
	draw.Draw(d.screen, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

	key, err := codec.FromImage(store, d.screen)
	if err != nil {
		return 0, ferr.Wrap(ferr.ImageDecodingError, "decoder.GIF.ReadFrame", err)
	}
	d.index++
	return key, nil
}

func (d *GIF) applyDisposal(method byte, frameIndex int) {
	switch method {
	case gif.DisposalBackground:
		draw.Draw(d.screen, d.g.Image[frameIndex].Bounds(), image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		if d.snapshot != nil {
			draw.Draw(d.screen, d.screen.Bounds(), d.snapshot, image.Point{}, draw.Src)
		}
	default: // DisposalNone and unknown values leave the screen untouched
	}
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}
