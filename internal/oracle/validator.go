package oracle

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"liquidityArb/internal/liquidity"
	"liquidityArb/internal/model"
)

// PriceSource looks up the reference price of base quoted in quote.
type PriceSource interface {
	OraclePrice(base, quote string) (model.OraclePrice, bool)
}

// ValidationConfig bounds how far an opportunity may stray from the oracle.
type ValidationConfig struct {
	MaxDeviationPct  float64
	MaxConfidencePct float64
	MaxStaleness     time.Duration
	// RequireBothPools also checks the buy and sell prices on their own.
	RequireBothPools bool
}

func Balanced() ValidationConfig {
	return ValidationConfig{
		MaxDeviationPct:  5,
		MaxConfidencePct: 1,
		MaxStaleness:     60 * time.Second,
		RequireBothPools: true,
	}
}

func Conservative() ValidationConfig {
	return ValidationConfig{
		MaxDeviationPct:  2,
		MaxConfidencePct: 0.5,
		MaxStaleness:     30 * time.Second,
		RequireBothPools: true,
	}
}

func Aggressive() ValidationConfig {
	return ValidationConfig{
		MaxDeviationPct:  10,
		MaxConfidencePct: 2,
		MaxStaleness:     120 * time.Second,
		RequireBothPools: false,
	}
}

// ParsePreset maps conservative, balanced or aggressive to its config. Empty is balanced.
func ParsePreset(name string) (ValidationConfig, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "balanced":
		return Balanced(), nil
	case "conservative":
		return Conservative(), nil
	case "aggressive":
		return Aggressive(), nil
	default:
		return ValidationConfig{}, fmt.Errorf("unknown oracle preset %q: %w", name, liquidity.ErrInvalidConfiguration)
	}
}

func (c ValidationConfig) Validate() error {
	switch {
	case !(c.MaxDeviationPct > 0) || math.IsInf(c.MaxDeviationPct, 0):
		return fmt.Errorf("max deviation pct must be positive: %w", liquidity.ErrInvalidConfiguration)
	case !(c.MaxConfidencePct > 0) || math.IsInf(c.MaxConfidencePct, 0):
		return fmt.Errorf("max confidence pct must be positive: %w", liquidity.ErrInvalidConfiguration)
	case c.MaxStaleness <= 0:
		return fmt.Errorf("max staleness must be positive: %w", liquidity.ErrInvalidConfiguration)
	}
	return nil
}

// Result explains one validation. Metrics are zero when the check stopped before
// computing them.
type Result struct {
	Valid         bool
	Reason        string
	OraclePrice   float64
	PoolPrice     float64
	DeviationPct  float64
	ConfidencePct float64
}

// Validator checks opportunities against oracle prices.
type Validator struct {
	source PriceSource
	cfg    ValidationConfig
	now    func() time.Time
	logger *zap.Logger
}

func NewValidator(source PriceSource, cfg ValidationConfig, now func() time.Time, logger *zap.Logger) (*Validator, error) {
	if source == nil {
		return nil, fmt.Errorf("oracle price source is nil: %w", liquidity.ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{source: source, cfg: cfg, now: now, logger: logger}, nil
}

func (v *Validator) Config() ValidationConfig {
	return v.cfg
}

// Validate checks freshness, confidence, and deviation of the mid price and, when
// RequireBothPools is set, of each leg.
func (v *Validator) Validate(opp model.ArbitrageOpportunity) Result {
	price, ok := v.source.OraclePrice(opp.TokenA, opp.TokenB)
	if !ok {
		return Result{Reason: fmt.Sprintf("no oracle price for %s/%s", opp.TokenA, opp.TokenB)}
	}

	if price.PublishTime.IsZero() || v.now().Sub(price.PublishTime) >= v.cfg.MaxStaleness {
		return Result{Reason: fmt.Sprintf("oracle price is stale (max age %s)", v.cfg.MaxStaleness)}
	}

	ref := price.NormalizedPrice()
	confPct := price.ConfidencePct()
	if confPct > v.cfg.MaxConfidencePct {
		return Result{
			Reason:        fmt.Sprintf("oracle confidence interval too wide: %.2f%% (max %.2f%%)", confPct, v.cfg.MaxConfidencePct),
			OraclePrice:   ref,
			ConfidencePct: confPct,
		}
	}

	mid := (opp.BuyPrice + opp.SellPrice) / 2
	midDev := price.DeviationPct(mid)
	if midDev > v.cfg.MaxDeviationPct {
		return Result{
			Reason:        fmt.Sprintf("pool price deviates from oracle: %.2f%% (max %.2f%%)", midDev, v.cfg.MaxDeviationPct),
			OraclePrice:   ref,
			PoolPrice:     mid,
			DeviationPct:  midDev,
			ConfidencePct: confPct,
		}
	}

	if v.cfg.RequireBothPools {
		legs := []struct {
			name  string
			price float64
		}{
			{name: "buy", price: opp.BuyPrice},
			{name: "sell", price: opp.SellPrice},
		}
		for _, leg := range legs {
			dev := price.DeviationPct(leg.price)
			if dev > v.cfg.MaxDeviationPct {
				return Result{
					Reason:        fmt.Sprintf("%s pool price deviates from oracle: %.2f%% (max %.2f%%)", leg.name, dev, v.cfg.MaxDeviationPct),
					OraclePrice:   ref,
					PoolPrice:     leg.price,
					DeviationPct:  dev,
					ConfidencePct: confPct,
				}
			}
		}
	}

	return Result{
		Valid:         true,
		Reason:        fmt.Sprintf("oracle check passed (deviation %.2f%%, confidence %.2f%%)", midDev, confPct),
		OraclePrice:   ref,
		PoolPrice:     mid,
		DeviationPct:  midDev,
		ConfidencePct: confPct,
	}
}

// Keep reports whether opp passes validation. Rejections are logged at debug level.
func (v *Validator) Keep(opp model.ArbitrageOpportunity) bool {
	result := v.Validate(opp)
	if !result.Valid {
		v.logger.Debug("opportunity rejected by oracle",
			zap.String("id", opp.ID),
			zap.String("pair", opp.Pair),
			zap.String("reason", result.Reason),
		)
	}
	return result.Valid
}

// Filter returns the opportunities that pass validation, in order.
func (v *Validator) Filter(opps []model.ArbitrageOpportunity) []model.ArbitrageOpportunity {
	out := make([]model.ArbitrageOpportunity, 0, len(opps))
	for _, opp := range opps {
		if v.Keep(opp) {
			out = append(out, opp)
		}
	}
	return out
}
