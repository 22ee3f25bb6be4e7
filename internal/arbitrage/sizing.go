package arbitrage

import (
	"math"

	ethmath "github.com/ethereum/go-ethereum/common/math"
)

// SampleTradeSizes returns up to samples distinct sizes in [min, max], ascending, with
// both endpoints included exactly.
func SampleTradeSizes(min, max uint64, samples int, spacing Spacing) []uint64 {
	if max < min {
		min, max = max, min
	}
	if samples <= 1 || min == max {
		return []uint64{min}
	}

	out := make([]uint64, 0, samples)
	last := samples - 1
	for i := 0; i < samples; i++ {
		var size uint64
		switch {
		case i == 0:
			size = min
		case i == last:
			size = max
		case spacing == SpacingLog:
			size = logStep(min, max, i, last)
		default:
			size = linearStep(min, max, i, last)
		}
		if size < min {
			size = min
		}
		if size > max {
			size = max
		}
		if len(out) > 0 && size <= out[len(out)-1] {
			continue
		}
		out = append(out, size)
	}
	return out
}

func linearStep(min, max uint64, i, last int) uint64 {
	span := max - min
	product, overflow := ethmath.SafeMul(span, uint64(i))
	if !overflow {
		return min + product/uint64(last)
	}
	step := float64(span) * float64(i) / float64(last)
	if step >= float64(span) {
		return max
	}
	return min + uint64(step)
}

func logStep(min, max uint64, i, last int) uint64 {
	lo := float64(min)
	if lo < 1 {
		lo = 1
	}
	exponent := math.Log(lo) + (math.Log(float64(max))-math.Log(lo))*float64(i)/float64(last)
	value := math.Round(math.Exp(exponent))
	if value >= float64(max) {
		return max
	}
	return uint64(value)
}
