package weights

import "testing"

func TestBuildWeightsSumToOne(t *testing.T) {
	filters := []Filter{Box, Triangle, Hermite, CubicBSpline, Cubic, CatmullRom, Mitchell, Robidoux, RobidouxSharp, Lanczos2, Lanczos3, Ginseng, Jinc}
	sizes := [][2]int{{100, 50}, {50, 100}, {1, 1}, {7, 3}, {3, 7}}
	for _, f := range filters {
		for _, sz := range sizes {
			tbl, err := Build(sz[0], sz[1], f)
			if err != nil {
				t.Fatalf("Build(%d,%d,%s): %v", sz[0], sz[1], f, err)
			}
			for d, w := range tbl.Windows {
				if s := w.Sum(); s < 1-1e-4 || s > 1+1e-4 {
					t.Errorf("filter %s %dx%d dest %d: weights sum to %v, want ~1", f, sz[0], sz[1], d, s)
				}
				if w.Left < 0 || w.Right >= sz[0] || w.Left > w.Right {
					t.Errorf("filter %s %dx%d dest %d: window [%d,%d] out of [0,%d)", f, sz[0], sz[1], d, w.Left, w.Right, sz[0])
				}
			}
		}
	}
}

func TestMirrorClampReflectsBelowZeroAndClampsAboveSourceLen(t *testing.T) {
	cases := []struct {
		idx, sourceLen, want int
	}{
		{idx: 0, sourceLen: 10, want: 0},
		{idx: -1, sourceLen: 10, want: 0},
		{idx: -2, sourceLen: 10, want: 1},
		{idx: 9, sourceLen: 10, want: 9},
		{idx: 10, sourceLen: 10, want: 9},
		{idx: 100, sourceLen: 10, want: 9},
	}
	for _, c := range cases {
		if got := mirrorClamp(c.idx, c.sourceLen); got != c.want {
			t.Errorf("mirrorClamp(%d, %d) = %d, want %d", c.idx, c.sourceLen, got, c.want)
		}
	}
}

func TestBuildRejectsNonPositiveLengths(t *testing.T) {
	if _, err := Build(0, 10, Box); err == nil {
		t.Fatal("expected error for zero source length")
	}
	if _, err := Build(10, 0, Box); err == nil {
		t.Fatal("expected error for zero dest length")
	}
}
