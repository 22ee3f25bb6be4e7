package arbitrage

import (
	"fmt"
	"math"
	"strings"

	"liquidityArb/internal/liquidity"
	"liquidityArb/internal/model"
)

// ErrInvalidConfiguration is shared with the liquidity package so callers can check one sentinel.
var ErrInvalidConfiguration = liquidity.ErrInvalidConfiguration

// Spacing selects how trade sizes are spread between a pair's bounds.
type Spacing string

const (
	SpacingLinear Spacing = "linear"
	SpacingLog    Spacing = "log"
)

// ParseSpacing accepts "linear" and "log" (or "logarithmic").
func ParseSpacing(value string) (Spacing, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "linear":
		return SpacingLinear, nil
	case "log", "logarithmic":
		return SpacingLog, nil
	default:
		return "", fmt.Errorf("unknown trade size spacing %q: %w", value, ErrInvalidConfiguration)
	}
}

// Config holds detector settings. Fees and gas are in token_b units; rates are fractions.
type Config struct {
	Pairs []model.MonitoredPair

	MinNetProfitPct  float64
	MinExecutionProb float64

	TradeSizeSamples int
	Spacing          Spacing

	FlashLoanFeeRate float64
	TipFraction      float64
	BaseTxFee        float64
	PriorityFee      float64

	// EVFullScale is the expected value that maps to an EV score of 100.
	EVFullScale float64

	// MaxOpportunities caps a scan's result; 0 keeps everything.
	MaxOpportunities int
	MaxConcurrency   int
	SkipSameDex      bool
}

func DefaultConfig() Config {
	return Config{
		MinNetProfitPct:  0.1,
		MinExecutionProb: 0.5,
		TradeSizeSamples: 20,
		Spacing:          SpacingLinear,
		FlashLoanFeeRate: 0.0009,
		TipFraction:      0.10,
		EVFullScale:      100,
		MaxOpportunities: 100,
		MaxConcurrency:   4,
	}
}

func (c Config) Validate() error {
	for i, pair := range c.Pairs {
		label := pair.Label()
		if pair.TokenA == "" || pair.TokenB == "" {
			return fmt.Errorf("pair %d (%s): empty token: %w", i, label, ErrInvalidConfiguration)
		}
		if pair.TokenA == pair.TokenB {
			return fmt.Errorf("pair %s: identical tokens: %w", label, ErrInvalidConfiguration)
		}
		if pair.MinTradeSize == 0 {
			return fmt.Errorf("pair %s: min trade size must be positive: %w", label, ErrInvalidConfiguration)
		}
		if pair.MinTradeSize > pair.MaxTradeSize {
			return fmt.Errorf("pair %s: min trade size %d exceeds max %d: %w",
				label, pair.MinTradeSize, pair.MaxTradeSize, ErrInvalidConfiguration)
		}
	}

	if c.TradeSizeSamples < 1 {
		return fmt.Errorf("trade size samples must be positive: %w", ErrInvalidConfiguration)
	}
	if c.Spacing != SpacingLinear && c.Spacing != SpacingLog {
		return fmt.Errorf("unknown trade size spacing %q: %w", c.Spacing, ErrInvalidConfiguration)
	}
	if !inUnitRange(c.MinExecutionProb) {
		return fmt.Errorf("min execution probability %v outside [0,1]: %w", c.MinExecutionProb, ErrInvalidConfiguration)
	}
	if math.IsNaN(c.MinNetProfitPct) || math.IsInf(c.MinNetProfitPct, 0) {
		return fmt.Errorf("min net profit pct must be finite: %w", ErrInvalidConfiguration)
	}
	if !inUnitRange(c.FlashLoanFeeRate) || !inUnitRange(c.TipFraction) {
		return fmt.Errorf("fee rates must be within [0,1]: %w", ErrInvalidConfiguration)
	}
	if !nonNegative(c.BaseTxFee) || !nonNegative(c.PriorityFee) {
		return fmt.Errorf("gas costs must be non-negative: %w", ErrInvalidConfiguration)
	}
	if !(c.EVFullScale > 0) || math.IsInf(c.EVFullScale, 0) {
		return fmt.Errorf("ev full scale must be positive: %w", ErrInvalidConfiguration)
	}
	if c.MaxOpportunities < 0 {
		return fmt.Errorf("max opportunities must not be negative: %w", ErrInvalidConfiguration)
	}
	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}
