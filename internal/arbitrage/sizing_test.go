package arbitrage

import (
	"math"
	"testing"
)

func TestSampleTradeSizesLinear(t *testing.T) {
	sizes := SampleTradeSizes(1, 50, 20, SpacingLinear)
	if sizes[0] != 1 || sizes[len(sizes)-1] != 50 {
		t.Fatalf("endpoints must be exact: %v", sizes)
	}
	if sizes[1] != 3 || sizes[2] != 6 {
		t.Fatalf("unexpected linear steps: %v", sizes)
	}
	if len(sizes) != 20 {
		t.Fatalf("expected 20 samples, got %d", len(sizes))
	}
}

func TestSampleTradeSizesBounds(t *testing.T) {
	cases := []struct {
		min, max uint64
		samples  int
		spacing  Spacing
	}{
		{1, 50, 20, SpacingLinear},
		{1, 50, 20, SpacingLog},
		{1, 5, 20, SpacingLinear},
		{1_000, 1_000_000_000, 30, SpacingLog},
		{1, math.MaxUint64, 7, SpacingLinear},
		{1, math.MaxUint64, 7, SpacingLog},
	}
	for _, tc := range cases {
		sizes := SampleTradeSizes(tc.min, tc.max, tc.samples, tc.spacing)
		if len(sizes) == 0 || len(sizes) > tc.samples {
			t.Fatalf("%+v: unexpected sample count %d", tc, len(sizes))
		}
		if sizes[0] != tc.min || sizes[len(sizes)-1] != tc.max {
			t.Fatalf("%+v: endpoints not exact: %v", tc, sizes)
		}
		for i, size := range sizes {
			if size < tc.min || size > tc.max {
				t.Fatalf("%+v: size %d out of range", tc, size)
			}
			if i > 0 && size <= sizes[i-1] {
				t.Fatalf("%+v: sizes not strictly increasing: %v", tc, sizes)
			}
		}
	}
}

func TestSampleTradeSizesDegenerate(t *testing.T) {
	if got := SampleTradeSizes(7, 7, 20, SpacingLinear); len(got) != 1 || got[0] != 7 {
		t.Fatalf("equal bounds should yield one size, got %v", got)
	}
	if got := SampleTradeSizes(3, 90, 1, SpacingLog); len(got) != 1 || got[0] != 3 {
		t.Fatalf("single sample should be the minimum, got %v", got)
	}
}
