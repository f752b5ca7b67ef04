package weights

import (
	"fmt"
	"math"

	"github.com/imazen-go/imageflow/ferr"
)

// Window is one destination sample's convolution window: the inclusive
// range of source indices [Left,Right] and their normalized weights,
// Weights[i] corresponding to source index Left+i.
type Window struct {
	Left, Right int
	Weights     []float32
}

// Table holds one convolution window per destination pixel, for a single
// (source length, dest length, filter) triple (spec §4.C).
type Table struct {
	SourceLen, DestLen int
	Filter             Filter
	Windows            []Window
}

// Build computes the weight table for resampling sourceLen source pixels
// into destLen destination pixels using filter f. Each window's weights
// sum to 1 within 1e-5, per spec §8.
func Build(sourceLen, destLen int, f Filter) (*Table, error) {
	if sourceLen <= 0 || destLen <= 0 {
		return nil, ferr.New(ferr.InvalidDimensions, "weights.Build", fmt.Errorf("source_len=%d dest_len=%d must be positive", sourceLen, destLen))
	}
	k := kernelFor(f)
	scale := float64(sourceLen) / float64(destLen)

	// When downscaling (scale > 1), widen the kernel's support by the scale
	// factor so every source pixel still contributes to some destination
	// pixel (prefilter-free box-widening, the standard anti-aliasing fix
	// for windowed-sinc/cubic families under minification).
	filterScale := math.Max(scale, 1.0)
	radius := k.radius * filterScale

	windows := make([]Window, destLen)
	for d := 0; d < destLen; d++ {
		center := (float64(d)+0.5)*scale - 0.5
		nominalLeft := int(math.Floor(center - radius))
		nominalRight := int(math.Ceil(center + radius))

		// Weight is computed against the nominal (possibly out-of-range)
		// source position, then folded onto the in-bounds source index
		// spec §4.C's boundary rule maps it to: mirror-reflect (i ->
		// -1-i) below zero, clamp at sourceLen-1 above. Folding onto the
		// same actual index accumulates weight rather than discarding it,
		// unlike a plain clamp-the-window-bounds approach.
		contrib := make(map[int]float64, nominalRight-nominalLeft+1)
		for idx := nominalLeft; idx <= nominalRight; idx++ {
			w := k.weight((float64(idx) - center) / filterScale)
			if w == 0 {
				continue
			}
			contrib[mirrorClamp(idx, sourceLen)] += w
		}

		left, right := sourceLen-1, 0
		for idx := range contrib {
			if idx < left {
				left = idx
			}
			if idx > right {
				right = idx
			}
		}
		if right < left {
			left, right = 0, 0
		}
		ws := make([]float32, right-left+1)
		var sum float64
		for idx, w := range contrib {
			ws[idx-left] += float32(w)
			sum += w
		}
		if sum != 0 {
			for i := range ws {
				ws[i] = float32(float64(ws[i]) / sum)
			}
		}
		windows[d] = Window{Left: left, Right: right, Weights: ws}
	}
	return &Table{SourceLen: sourceLen, DestLen: destLen, Filter: f, Windows: windows}, nil
}

// mirrorClamp maps a possibly out-of-range source index onto [0,
// sourceLen-1] using spec §4.C's boundary rule: reflect (i -> -1-i) for
// negative indices, clamp for indices at or past sourceLen.
func mirrorClamp(idx, sourceLen int) int {
	if idx < 0 {
		idx = -1 - idx
	}
	if idx < 0 {
		idx = 0
	}
	if idx > sourceLen-1 {
		idx = sourceLen - 1
	}
	return idx
}

// Sum returns the sum of a window's weights, for invariant checking.
func (w Window) Sum() float64 {
	var s float64
	for _, v := range w.Weights {
		s += float64(v)
	}
	return s
}
