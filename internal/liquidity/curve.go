package liquidity

import (
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"

	"liquidityArb/internal/model"
)

const maxStateBits = 128

// SpotPrice returns the current price of one whole token_a in whole token_b.
func SpotPrice(pool model.PoolState) (float64, error) {
	raw, err := rawPrice(pool)
	if err != nil {
		return 0, err
	}
	price := raw * decimalScale(pool.DecimalsA, pool.DecimalsB)
	if math.IsInf(price, 0) || math.IsNaN(price) {
		return 0, fmt.Errorf("pool %s price: %w", pool.Address, ErrArithmeticOverflow)
	}
	if price <= 0 {
		return 0, fmt.Errorf("pool %s price: %w", pool.Address, ErrInsufficientLiquidity)
	}
	return price, nil
}

// rawPrice is token_b base units per token_a base unit.
func rawPrice(pool model.PoolState) (float64, error) {
	if !pool.Enriched() {
		return 0, fmt.Errorf("pool %s: %w", pool.Address, ErrInsufficientLiquidity)
	}
	switch pool.Kind {
	case model.ConstantProduct:
		return float64(pool.ReserveB) / float64(pool.ReserveA), nil
	case model.ConcentratedLiquidity, model.DynamicLiquidity:
		if pool.Liquidity.BitLen() > maxStateBits || pool.SqrtPriceX64.BitLen() > maxStateBits {
			return 0, fmt.Errorf("pool %s: %w", pool.Address, ErrArithmeticOverflow)
		}
		if pool.SqrtPriceX64.IsZero() {
			if pool.Kind == model.DynamicLiquidity && pool.BinStep > 0 {
				return binPrice(pool.BinStep, pool.ActiveBinID), nil
			}
			return 0, fmt.Errorf("pool %s missing sqrt price: %w", pool.Address, ErrInsufficientLiquidity)
		}
		return sqrtX64ToPrice(&pool.SqrtPriceX64), nil
	default:
		return 0, fmt.Errorf("pool %s kind %s: %w", pool.Address, pool.Kind, ErrInsufficientLiquidity)
	}
}

func sqrtX64ToPrice(sqrt *uint256.Int) float64 {
	f := new(big.Float).SetPrec(256).SetInt(sqrt.ToBig())
	f.SetMantExp(f, -64)
	f.Mul(f, f)
	price, _ := f.Float64()
	return price
}

func binPrice(binStep uint16, activeBin int32) float64 {
	return math.Pow(1+float64(binStep)/10_000, float64(activeBin))
}

func decimalScale(decimalsA, decimalsB uint8) float64 {
	return math.Pow10(int(decimalsA) - int(decimalsB))
}

func uintToFloat(v *uint256.Int) float64 {
	if v.IsUint64() {
		return float64(v.Uint64())
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}

// PriceImpact returns the fractional price movement of trading tradeSize raw token_a
// units in the given direction. Fees are excluded. The result is in [0, 1] and
// non-decreasing in tradeSize.
func PriceImpact(pool model.PoolState, tradeSize uint64, direction model.Direction) (float64, error) {
	if !pool.Enriched() {
		return 0, fmt.Errorf("pool %s: %w", pool.Address, ErrInsufficientLiquidity)
	}
	if tradeSize == 0 {
		return 0, nil
	}
	size := float64(tradeSize)

	switch pool.Kind {
	case model.ConstantProduct:
		reserve := float64(pool.ReserveA)
		if direction == model.BToA {
			if tradeSize >= pool.ReserveA {
				return 1, nil
			}
			return clamp01(size / (reserve - size)), nil
		}
		return clamp01(size / (reserve + size)), nil
	case model.ConcentratedLiquidity, model.DynamicLiquidity:
		if pool.Liquidity.BitLen() > maxStateBits {
			return 0, fmt.Errorf("pool %s: %w", pool.Address, ErrArithmeticOverflow)
		}
		// approximation until tick and bin traversal is modelled
		return clamp01(size / (2 * uintToFloat(&pool.Liquidity))), nil
	default:
		return 0, fmt.Errorf("pool %s kind %s: %w", pool.Address, pool.Kind, ErrInsufficientLiquidity)
	}
}

// ExpectedOutput returns the raw token_b received for selling tradeSize raw token_a,
// excluding fees.
func ExpectedOutput(pool model.PoolState, tradeSize uint64) (uint64, error) {
	if !pool.Enriched() {
		return 0, fmt.Errorf("pool %s: %w", pool.Address, ErrInsufficientLiquidity)
	}
	if tradeSize == 0 {
		return 0, nil
	}

	if pool.Kind == model.ConstantProduct {
		num, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(pool.ReserveB), uint256.NewInt(tradeSize))
		if overflow {
			return 0, fmt.Errorf("pool %s output: %w", pool.Address, ErrArithmeticOverflow)
		}
		den := new(uint256.Int).Add(uint256.NewInt(pool.ReserveA), uint256.NewInt(tradeSize))
		out := num.Div(num, den)
		if !out.IsUint64() {
			return 0, fmt.Errorf("pool %s output: %w", pool.Address, ErrArithmeticOverflow)
		}
		return out.Uint64(), nil
	}

	raw, err := rawPrice(pool)
	if err != nil {
		return 0, err
	}
	impact, err := PriceImpact(pool, tradeSize, model.AToB)
	if err != nil {
		return 0, err
	}
	out := math.Floor(float64(tradeSize) * raw * (1 - impact))
	if math.IsNaN(out) || out < 0 || out >= math.MaxUint64 {
		return 0, fmt.Errorf("pool %s output: %w", pool.Address, ErrArithmeticOverflow)
	}
	return uint64(out), nil
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
