package arbitrage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityArb/internal/liquidity"
	"liquidityArb/internal/model"
)

// Detector scans the monitored pairs for cross-pool price differences.
type Detector struct {
	cfg     Config
	monitor *liquidity.Monitor
	logger  *zap.Logger

	mu       sync.RWMutex
	latest   []model.ArbitrageOpportunity
	lastScan time.Time
}

func New(cfg Config, monitor *liquidity.Monitor, logger *zap.Logger) (*Detector, error) {
	if monitor == nil {
		return nil, fmt.Errorf("liquidity monitor is nil: %w", ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Pairs = clonePairs(cfg.Pairs)
	return &Detector{cfg: cfg, monitor: monitor, logger: logger}, nil
}

func clonePairs(pairs []model.MonitoredPair) []model.MonitoredPair {
	out := make([]model.MonitoredPair, len(pairs))
	for i, pair := range pairs {
		pair.Pools = append([]string(nil), pair.Pools...)
		out[i] = pair
	}
	return out
}

// Latest returns the result of the most recent completed scan and when it ran.
func (d *Detector) Latest() ([]model.ArbitrageOpportunity, time.Time) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.ArbitrageOpportunity, len(d.latest))
	copy(out, d.latest)
	return out, d.lastScan
}

// ScanOpportunities evaluates every monitored pair and returns the opportunities that
// pass the profit and probability thresholds, best first.
func (d *Detector) ScanOpportunities(ctx context.Context) ([]model.ArbitrageOpportunity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := time.Now()

	results := make([][]model.ArbitrageOpportunity, len(d.cfg.Pairs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.cfg.MaxConcurrency)
	for i, pair := range d.cfg.Pairs {
		i, pair := i, pair
		group.Go(func() error {
			opps, err := d.scanPair(groupCtx, pair)
			if err != nil {
				return err
			}
			results[i] = opps
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []model.ArbitrageOpportunity
	for _, opps := range results {
		out = append(out, opps...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EVScore != out[j].EVScore {
			return out[i].EVScore > out[j].EVScore
		}
		return out[i].ExpectedValue > out[j].ExpectedValue
	})
	if d.cfg.MaxOpportunities > 0 && len(out) > d.cfg.MaxOpportunities {
		out = out[:d.cfg.MaxOpportunities]
	}
	if out == nil {
		out = []model.ArbitrageOpportunity{}
	}

	d.mu.Lock()
	d.latest = out
	d.lastScan = d.monitor.Now()
	d.mu.Unlock()

	d.logger.Debug("scan complete",
		zap.Int("pairs", len(d.cfg.Pairs)),
		zap.Int("opportunities", len(out)),
		zap.Duration("elapsed", time.Since(started)),
	)

	result := make([]model.ArbitrageOpportunity, len(out))
	copy(result, out)
	return result, nil
}

type pricedPool struct {
	pool  model.PoolState
	price float64
}

func (d *Detector) scanPair(ctx context.Context, pair model.MonitoredPair) ([]model.ArbitrageOpportunity, error) {
	var pools []pricedPool
	for _, pool := range d.monitor.FreshPoolsForPair(pair.TokenA, pair.TokenB) {
		if !pair.Allows(pool.Address) {
			continue
		}
		price, err := d.monitor.Price(pool)
		if err != nil {
			d.logger.Warn("skip pool", zap.String("pair", pair.Label()), zap.String("pool", pool.Address), zap.Error(err))
			continue
		}
		pools = append(pools, pricedPool{pool: pool, price: price})
	}

	var out []model.ArbitrageOpportunity
	for i := 0; i < len(pools); i++ {
		for j := i + 1; j < len(pools); j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			buy, sell := pools[i], pools[j]
			if buy.price == sell.price {
				continue
			}
			if buy.price > sell.price {
				buy, sell = sell, buy
			}
			if d.cfg.SkipSameDex && buy.pool.Dex != "" && buy.pool.Dex == sell.pool.Dex {
				continue
			}

			opp, err := d.EvaluateOpportunity(buy.pool, sell.pool, pair)
			if err != nil {
				d.logger.Warn("skip pool pair",
					zap.String("pair", pair.Label()),
					zap.String("buy_pool", buy.pool.Address),
					zap.String("sell_pool", sell.pool.Address),
					zap.Error(err),
				)
				continue
			}
			if opp.NetProfitPct >= d.cfg.MinNetProfitPct && opp.CombinedExecutionProb >= d.cfg.MinExecutionProb {
				out = append(out, opp)
			}
		}
	}
	return out, nil
}

// EvaluateOpportunity searches the pair's trade size range for the size with the highest
// expected value when buying on buy and selling on sell.
func (d *Detector) EvaluateOpportunity(buy, sell model.PoolState, pair model.MonitoredPair) (model.ArbitrageOpportunity, error) {
	sizes := SampleTradeSizes(pair.MinTradeSize, pair.MaxTradeSize, d.cfg.TradeSizeSamples, d.cfg.Spacing)
	return d.EvaluateSizes(buy, sell, pair, sizes)
}

type sample struct {
	size       uint64
	quantity   float64
	buyImpact  float64
	sellImpact float64
	gross      float64
	notional   float64
	flashFee   float64
	buyFee     float64
	sellFee    float64
	fees       float64
	gas        float64
	net        float64
	buyProb    float64
	sellProb   float64
	combined   float64
	ev         float64
}

// EvaluateSizes is EvaluateOpportunity over an explicit list of raw token_a sizes.
func (d *Detector) EvaluateSizes(buy, sell model.PoolState, pair model.MonitoredPair, sizes []uint64) (model.ArbitrageOpportunity, error) {
	orientedBuy, ok := buy.Oriented(pair.TokenA)
	if !ok {
		return model.ArbitrageOpportunity{}, fmt.Errorf("pool %s does not trade %s", buy.Address, pair.TokenA)
	}
	orientedSell, ok := sell.Oriented(pair.TokenA)
	if !ok {
		return model.ArbitrageOpportunity{}, fmt.Errorf("pool %s does not trade %s", sell.Address, pair.TokenA)
	}
	buy, sell = orientedBuy, orientedSell

	buyPrice, err := d.monitor.Price(buy)
	if err != nil {
		return model.ArbitrageOpportunity{}, fmt.Errorf("price buy pool: %w", err)
	}
	sellPrice, err := d.monitor.Price(sell)
	if err != nil {
		return model.ArbitrageOpportunity{}, fmt.Errorf("price sell pool: %w", err)
	}

	unit := math.Pow10(int(buy.DecimalsA))
	poolFeeRate := float64(buy.FeeRateBps)/10_000 + float64(sell.FeeRateBps)/10_000

	var (
		best  sample
		found bool
	)
	for _, size := range sizes {
		s, err := d.evaluateSize(buy, sell, buyPrice, sellPrice, unit, poolFeeRate, size)
		if err != nil {
			d.logger.Warn("skip trade size",
				zap.String("buy_pool", buy.Address),
				zap.String("sell_pool", sell.Address),
				zap.Uint64("size", size),
				zap.Error(err),
			)
			continue
		}
		if !found || s.ev > best.ev {
			best = s
			found = true
		}
	}
	if !found {
		return model.ArbitrageOpportunity{}, fmt.Errorf("no usable trade size for %s -> %s: %w",
			buy.Address, sell.Address, liquidity.ErrArithmeticOverflow)
	}

	netPct := best.net / best.notional * 100
	opp := model.ArbitrageOpportunity{
		ID:       uuid.NewString(),
		Pair:     pair.Label(),
		TokenA:   pair.TokenA,
		TokenB:   pair.TokenB,
		BuyPool:  buy.Address,
		SellPool: sell.Address,
		BuyDex:   buy.Dex,
		SellDex:  sell.Dex,
		BuyKind:  buy.Kind,
		SellKind: sell.Kind,

		BuyPrice:       buyPrice,
		SellPrice:      sellPrice,
		GrossProfitPct: (sellPrice - buyPrice) / buyPrice * 100,

		OptimalTradeSize: best.size,
		DecimalsA:        buy.DecimalsA,
		ExpectedInput:    best.quantity * buyPrice * (1 + best.buyImpact),
		ExpectedOutput:   best.quantity * sellPrice * (1 - best.sellImpact),
		GrossProfit:      best.gross,

		FlashLoanFee: best.flashFee,
		BuyFee:       best.buyFee,
		SellFee:      best.sellFee,
		TotalFees:    best.fees,
		TotalFeePct:  best.fees / best.notional * 100,
		GasCost:      best.gas,

		NetProfit:    best.net,
		NetProfitPct: netPct,

		BuyImpactBps:          best.buyImpact * 10_000,
		SellImpactBps:         best.sellImpact * 10_000,
		BuyExecutionProb:      best.buyProb,
		SellExecutionProb:     best.sellProb,
		CombinedExecutionProb: best.combined,

		ExpectedValue: best.ev,
		EVScore:       evScore(best.ev, d.cfg.EVFullScale),
		Confidence:    ClassifyConfidence(best.combined, netPct),
		DetectedAt:    d.monitor.Now(),
	}
	return opp, nil
}

func (d *Detector) evaluateSize(buy, sell model.PoolState, buyPrice, sellPrice, unit, poolFeeRate float64, size uint64) (sample, error) {
	if size == 0 {
		return sample{}, fmt.Errorf("zero trade size")
	}
	buyImpact, err := d.monitor.PriceImpact(buy, size, model.BToA)
	if err != nil {
		return sample{}, fmt.Errorf("buy impact: %w", err)
	}
	sellImpact, err := d.monitor.PriceImpact(sell, size, model.AToB)
	if err != nil {
		return sample{}, fmt.Errorf("sell impact: %w", err)
	}

	s := sample{size: size, buyImpact: buyImpact, sellImpact: sellImpact}
	s.quantity = float64(size) / unit
	effectiveBuy := buyPrice * (1 + buyImpact)
	effectiveSell := sellPrice * (1 - sellImpact)
	s.gross = s.quantity * (effectiveSell - effectiveBuy)
	s.notional = s.quantity * buyPrice

	s.flashFee = s.notional * d.cfg.FlashLoanFeeRate
	s.buyFee = s.notional * float64(buy.FeeRateBps) / 10_000
	s.sellFee = s.notional * float64(sell.FeeRateBps) / 10_000
	s.fees = s.notional * (d.cfg.FlashLoanFeeRate + poolFeeRate)
	s.gas = d.cfg.BaseTxFee + d.cfg.PriorityFee + d.cfg.TipFraction*math.Max(s.gross, 0)
	s.net = s.gross - s.fees - s.gas

	s.buyProb = d.monitor.ExecutionProbability(buy, size)
	s.sellProb = d.monitor.ExecutionProbability(sell, size)
	s.combined = s.buyProb * s.sellProb
	s.ev = s.net * s.combined

	if !finite(s.gross) || !finite(s.net) || !finite(s.ev) || !(s.notional > 0) || !finite(s.notional) {
		return sample{}, fmt.Errorf("size %d: %w", size, liquidity.ErrArithmeticOverflow)
	}
	return s, nil
}

func evScore(ev, fullScale float64) float64 {
	score := ev / fullScale * 100
	switch {
	case score < 0 || math.IsNaN(score):
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
