package liquidity

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"

	"liquidityArb/internal/model"
	"liquidityArb/internal/poolcache"
)

const (
	weightImpact    = 0.4
	weightDepth     = 0.3
	weightFreshness = 0.2
	weightStability = 0.1

	impactFullCredit = 0.005
	impactNoCredit   = 0.10
)

// Config controls staleness and the stability window. Now defaults to time.Now.
type Config struct {
	MaxPoolAge       time.Duration
	StabilityPools   int
	StabilitySamples int
	StabilityWindow  time.Duration
	Now              func() time.Time
}

// Monitor answers liquidity questions about the pools held in a Cache.
type Monitor struct {
	cfg       Config
	cache     *poolcache.Cache
	stability *StabilityTracker
	logger    *zap.Logger
	now       func() time.Time
}

// BestPool is the outcome of FindBestPool, oriented so TokenA is the input token.
type BestPool struct {
	Pool           model.PoolState
	ExpectedOutput uint64
	Probability    float64
	Score          float64
}

// Stats summarizes the monitored pool set.
type Stats struct {
	Pools          int
	Pairs          int
	Fresh          int
	Enriched       int
	TotalLiquidity *big.Int
}

func NewMonitor(cfg Config, cache *poolcache.Cache, logger *zap.Logger) (*Monitor, error) {
	if cache == nil {
		return nil, fmt.Errorf("pool cache is nil: %w", ErrInvalidConfiguration)
	}
	if cfg.MaxPoolAge <= 0 {
		return nil, fmt.Errorf("max pool age must be positive: %w", ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	stability, err := NewStabilityTracker(cfg.StabilityPools, cfg.StabilitySamples, cfg.StabilityWindow)
	if err != nil {
		return nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		cfg:       cfg,
		cache:     cache,
		stability: stability,
		logger:    logger,
		now:       now,
	}, nil
}

// Now returns the monitor clock.
func (m *Monitor) Now() time.Time {
	return m.now()
}

func (m *Monitor) MaxPoolAge() time.Duration {
	return m.cfg.MaxPoolAge
}

// UpdatePool stores state, stamping it with the monitor clock when LastUpdate is zero.
func (m *Monitor) UpdatePool(state model.PoolState) {
	if state.LastUpdate.IsZero() {
		state.LastUpdate = m.now()
	}
	m.cache.Put(state)

	if !state.Enriched() {
		return
	}
	price, err := SpotPrice(state)
	if err != nil {
		m.logger.Debug("skip stability sample", zap.String("pool", state.Address), zap.Error(err))
		return
	}
	m.stability.Record(state.Address, price, state.LastUpdate)
}

func (m *Monitor) Price(pool model.PoolState) (float64, error) {
	return SpotPrice(pool)
}

func (m *Monitor) PriceImpact(pool model.PoolState, tradeSize uint64, direction model.Direction) (float64, error) {
	return PriceImpact(pool, tradeSize, direction)
}

func (m *Monitor) ExpectedOutput(pool model.PoolState, tradeSize uint64) (uint64, error) {
	return ExpectedOutput(pool, tradeSize)
}

// IsFresh reports whether the pool was updated within MaxPoolAge of now.
func (m *Monitor) IsFresh(pool model.PoolState) bool {
	return m.isFreshAt(pool, m.now())
}

func (m *Monitor) isFreshAt(pool model.PoolState, now time.Time) bool {
	return pool.Age(now) <= m.cfg.MaxPoolAge
}

// ExecutionProbability estimates the chance that a trade of tradeSize raw token_a
// executes near the quoted price. Unenriched and stale pools score 0.
func (m *Monitor) ExecutionProbability(pool model.PoolState, tradeSize uint64) float64 {
	now := m.now()
	if !pool.Enriched() || !m.isFreshAt(pool, now) {
		return 0
	}

	impact, err := PriceImpact(pool, tradeSize, model.AToB)
	if err != nil {
		return 0
	}
	var impactScore float64
	switch {
	case impact <= impactFullCredit:
		impactScore = 1
	case impact >= impactNoCredit:
		impactScore = 0
	default:
		impactScore = (impactNoCredit - impact) / (impactNoCredit - impactFullCredit)
	}

	depthScore := m.depthScore(pool, tradeSize)

	freshness := 1 - float64(pool.Age(now))/float64(m.cfg.MaxPoolAge)
	freshness = clamp01(freshness)

	stability := m.stability.Score(pool.Address, now)

	return clamp01(weightImpact*impactScore +
		weightDepth*depthScore +
		weightFreshness*freshness +
		weightStability*stability)
}

// depthScore gives full credit when depth is at least 100x the trade size.
func (m *Monitor) depthScore(pool model.PoolState, tradeSize uint64) float64 {
	if tradeSize == 0 {
		return 1
	}
	var depth float64
	if pool.Kind == model.ConstantProduct {
		depth = float64(pool.ReserveA)
	} else {
		depth = uintToFloat(&pool.Liquidity)
	}
	ratio := depth / float64(tradeSize)
	if ratio <= 1 {
		return 0
	}
	return clamp01(math.Log10(ratio) / 2)
}

// FreshPoolsForPair returns the fresh pools trading a and b, oriented so TokenA is a.
func (m *Monitor) FreshPoolsForPair(a, b string) []model.PoolState {
	now := m.now()
	pools := m.cache.PoolsForPair(a, b)
	out := make([]model.PoolState, 0, len(pools))
	for _, pool := range pools {
		if !m.isFreshAt(pool, now) {
			continue
		}
		oriented, ok := pool.Oriented(a)
		if !ok {
			continue
		}
		out = append(out, oriented)
	}
	return out
}

// FindBestPool picks the fresh pool maximizing expected output times execution
// probability for selling tradeSize of tokenIn. Ties go to the higher probability.
func (m *Monitor) FindBestPool(tokenIn, tokenOut string, tradeSize uint64) (BestPool, bool) {
	var (
		best  BestPool
		found bool
	)
	for _, pool := range m.FreshPoolsForPair(tokenIn, tokenOut) {
		if !pool.Enriched() {
			continue
		}
		output, err := ExpectedOutput(pool, tradeSize)
		if err != nil {
			m.logger.Warn("skip pool", zap.String("pool", pool.Address), zap.Error(err))
			continue
		}
		prob := m.ExecutionProbability(pool, tradeSize)
		score := float64(output) * prob
		if !found || score > best.Score || (score == best.Score && prob > best.Probability) {
			best = BestPool{Pool: pool, ExpectedOutput: output, Probability: prob, Score: score}
			found = true
		}
	}
	return best, found
}

// PruneStale removes pools older than MaxPoolAge at now and returns how many were removed.
func (m *Monitor) PruneStale(now time.Time) int {
	removed := m.cache.DeleteIf(func(pool model.PoolState) bool {
		return pool.Age(now) > m.cfg.MaxPoolAge
	})
	for _, address := range removed {
		m.stability.Forget(address)
	}
	if len(removed) > 0 {
		m.logger.Debug("pruned stale pools", zap.Int("count", len(removed)))
	}
	return len(removed)
}

// Pool returns the stored pool. A stale record is returned together with ErrStalePoolData.
func (m *Monitor) Pool(address string) (model.PoolState, error) {
	pool, ok := m.cache.Get(address)
	if !ok {
		return model.PoolState{}, fmt.Errorf("pool %s: %w", address, ErrPoolNotFound)
	}
	if !m.IsFresh(pool) {
		return pool, fmt.Errorf("pool %s: %w", address, ErrStalePoolData)
	}
	return pool, nil
}

func (m *Monitor) Stats() Stats {
	now := m.now()
	stats := Stats{
		Pairs:          m.cache.PairCount(),
		TotalLiquidity: new(big.Int),
	}
	for _, pool := range m.cache.Snapshot() {
		stats.Pools++
		if m.isFreshAt(pool, now) {
			stats.Fresh++
		}
		if pool.Enriched() {
			stats.Enriched++
		}
		if pool.Kind != model.ConstantProduct {
			stats.TotalLiquidity.Add(stats.TotalLiquidity, pool.Liquidity.ToBig())
		}
	}
	return stats
}
