package codec

import (
	"image"
	"image/color"

	"github.com/imazen-go/imageflow/bitmap"
)

// FromImage converts a decoded image.Image into a freshly allocated BGRA32
// bitmap in store, the common conversion point every stdlib/x-image-backed
// decoder uses (teacher's adapters/decoder/* each returned an image.Image;
// here that boundary is crossed exactly once, immediately after decode).
func FromImage(store *bitmap.Store, img image.Image) (bitmap.Key, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	key, err := store.CreateU8(w, h, bitmap.BGRA, true, bitmap.StandardRGB, bitmap.Compositing{Mode: bitmap.ReplaceSelf})
	if err != nil {
		return 0, err
	}
	win, err := store.TryBorrowMut(key)
	if err != nil {
		return 0, err
	}
	defer win.Close()
	for y := 0; y < h; y++ {
		row, _ := win.RowBytes(y)
		for x := 0; x < w; x++ {
			// color.Color.RGBA() returns alpha-premultiplied channels;
			// converting through NRGBAModel first un-premultiplies so
			// partially transparent sources don't get their colors
			// darkened toward black.
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			o := x * 4
			row[o+0] = c.B
			row[o+1] = c.G
			row[o+2] = c.R
			row[o+3] = c.A
		}
	}
	return key, nil
}

// ToImage converts a bitmap in store back into a stdlib image.NRGBA, the
// common conversion point every stdlib-backed encoder uses before handing
// the pixels to image/jpeg, image/png, or a third-party encoder that
// accepts image.Image.
func ToImage(store *bitmap.Store, key bitmap.Key) (*image.NRGBA, error) {
	win, err := store.TryBorrow(key)
	if err != nil {
		return nil, err
	}
	defer win.Close()
	w, h := win.Width(), win.Height()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	hasAlpha := win.Layout().HasAlpha()
	for y := 0; y < h; y++ {
		row, _ := win.RowBytes(y)
		bpp := win.Layout().BytesPerPixel()
		for x := 0; x < w; x++ {
			o := x * bpp
			a := uint8(255)
			if hasAlpha {
				a = row[o+3]
			}
			out.SetNRGBA(x, y, color.NRGBA{R: row[o+2], G: row[o+1], B: row[o+0], A: a})
		}
	}
	return out, nil
}
