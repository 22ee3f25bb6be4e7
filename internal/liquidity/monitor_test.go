package liquidity

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"liquidityArb/internal/model"
	"liquidityArb/internal/poolcache"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMonitor(t *testing.T, clock *testClock) *Monitor {
	t.Helper()
	monitor, err := NewMonitor(Config{MaxPoolAge: 10 * time.Second, Now: clock.Now}, poolcache.New(4), zap.NewNop())
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	return monitor
}

func TestNewMonitorRejectsInvalidConfig(t *testing.T) {
	if _, err := NewMonitor(Config{MaxPoolAge: time.Second}, nil, nil); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration for nil cache, got %v", err)
	}
	if _, err := NewMonitor(Config{}, poolcache.New(1), nil); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration for zero max age, got %v", err)
	}
}

func TestUpdatePoolStampsClock(t *testing.T) {
	clock := newTestClock()
	monitor := newTestMonitor(t, clock)

	monitor.UpdatePool(cpPool("a", 1000, 100_000))
	pool, err := monitor.Pool("a")
	if err != nil {
		t.Fatalf("pool lookup: %v", err)
	}
	if !pool.LastUpdate.Equal(clock.Now()) {
		t.Fatalf("expected last update to be stamped, got %s", pool.LastUpdate)
	}

	if _, err := monitor.Pool("missing"); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	clock.Advance(11 * time.Second)
	if _, err := monitor.Pool("a"); !errors.Is(err, ErrStalePoolData) {
		t.Fatalf("expected stale, got %v", err)
	}
}

func TestExecutionProbability(t *testing.T) {
	clock := newTestClock()
	monitor := newTestMonitor(t, clock)
	pool := cpPool("a", 1000, 100_000)
	monitor.UpdatePool(pool)
	pool, _ = monitor.Pool("a")

	// full impact, depth and freshness credit with neutral stability
	if got := monitor.ExecutionProbability(pool, 3); !almostEqual(got, 0.95) {
		t.Fatalf("probability = %v, want 0.95", got)
	}

	for _, size := range []uint64{0, 1, 50, 999, 1000, 1_000_000} {
		got := monitor.ExecutionProbability(pool, size)
		if got < 0 || got > 1 {
			t.Fatalf("probability out of range at size %d: %v", size, got)
		}
	}

	clock.Advance(5 * time.Second)
	if got := monitor.ExecutionProbability(pool, 3); !almostEqual(got, 0.85) {
		t.Fatalf("half-aged pool probability = %v, want 0.85", got)
	}

	clock.Advance(6 * time.Second)
	if got := monitor.ExecutionProbability(pool, 3); got != 0 {
		t.Fatalf("stale pool should score 0, got %v", got)
	}
	if got := monitor.ExecutionProbability(cpPool("x", 0, 0), 3); got != 0 {
		t.Fatalf("unenriched pool should score 0, got %v", got)
	}
}

func TestFindBestPool(t *testing.T) {
	clock := newTestClock()
	monitor := newTestMonitor(t, clock)

	monitor.UpdatePool(cpPool("a", 1000, 100_000))
	monitor.UpdatePool(cpPool("b", 1000, 101_500))
	unenriched := clPool("c", 0, 64)
	monitor.UpdatePool(unenriched)

	best, ok := monitor.FindBestPool("SOL", "USDC", 10)
	if !ok {
		t.Fatalf("expected a best pool")
	}
	if best.Pool.Address != "b" {
		t.Fatalf("expected pool b, got %s", best.Pool.Address)
	}
	if best.ExpectedOutput != 1004 {
		t.Fatalf("expected output 1004, got %d", best.ExpectedOutput)
	}

	reverse, ok := monitor.FindBestPool("USDC", "SOL", 1000)
	if !ok {
		t.Fatalf("expected a best pool for the reverse direction")
	}
	if reverse.Pool.TokenA != "USDC" {
		t.Fatalf("best pool should be oriented to the input token, got %s", reverse.Pool.TokenA)
	}
	if reverse.ExpectedOutput == 0 || reverse.Probability <= 0 {
		t.Fatalf("unexpected reverse result: %+v", reverse)
	}

	if _, ok := monitor.FindBestPool("SOL", "BONK", 10); ok {
		t.Fatalf("unexpected pool for unknown pair")
	}
}

func TestPruneStale(t *testing.T) {
	clock := newTestClock()
	monitor := newTestMonitor(t, clock)

	monitor.UpdatePool(cpPool("old", 1000, 1000))
	clock.Advance(8 * time.Second)
	monitor.UpdatePool(cpPool("new", 1000, 1000))
	clock.Advance(3 * time.Second)

	now := clock.Now()
	if removed := monitor.PruneStale(now); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	for _, pool := range monitor.cache.Snapshot() {
		if pool.Age(now) > monitor.MaxPoolAge() {
			t.Fatalf("stale pool %s survived prune", pool.Address)
		}
	}
	if _, err := monitor.Pool("new"); err != nil {
		t.Fatalf("fresh pool should survive prune: %v", err)
	}
	if got := monitor.FreshPoolsForPair("USDC", "SOL"); len(got) != 1 || got[0].TokenA != "USDC" {
		t.Fatalf("expected one oriented fresh pool, got %+v", got)
	}
}

func TestMonitorStats(t *testing.T) {
	clock := newTestClock()
	monitor := newTestMonitor(t, clock)
	monitor.UpdatePool(cpPool("a", 1000, 1000))
	monitor.UpdatePool(clPool("b", 500, 64))
	monitor.UpdatePool(clPool("c", 0, 64))

	stats := monitor.Stats()
	if stats.Pools != 3 || stats.Pairs != 1 || stats.Fresh != 3 || stats.Enriched != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.TotalLiquidity.Uint64() != 500 {
		t.Fatalf("unexpected total liquidity: %s", stats.TotalLiquidity)
	}
}

func TestExecutionProbabilityDeterministic(t *testing.T) {
	clock := newTestClock()
	monitor := newTestMonitor(t, clock)
	monitor.UpdatePool(clPool("c", 1_000_000, 64))
	pool, _ := monitor.Pool("c")

	first := monitor.ExecutionProbability(pool, 12_345)
	for i := 0; i < 10; i++ {
		if got := monitor.ExecutionProbability(pool, 12_345); got != first {
			t.Fatalf("probability changed between identical calls: %v != %v", got, first)
		}
	}
}

func TestUpdatePoolIdempotent(t *testing.T) {
	clock := newTestClock()
	monitor := newTestMonitor(t, clock)
	state := cpPool("a", 1000, 100_000)
	state.LastUpdate = clock.Now()

	monitor.UpdatePool(state)
	first, err := monitor.Pool("a")
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	price1, err := monitor.Price(first)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	impact1, err := monitor.PriceImpact(first, 10, model.AToB)
	if err != nil {
		t.Fatalf("impact: %v", err)
	}
	prob1 := monitor.ExecutionProbability(first, 10)

	monitor.UpdatePool(state)
	second, err := monitor.Pool("a")
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	price2, _ := monitor.Price(second)
	impact2, _ := monitor.PriceImpact(second, 10, model.AToB)
	prob2 := monitor.ExecutionProbability(second, 10)

	if price1 != price2 || impact1 != impact2 {
		t.Fatalf("identical updates changed results: price %v/%v impact %v/%v", price1, price2, impact1, impact2)
	}
	if math.Abs(price1-100) > 1e-9 || math.Abs(impact1-10.0/1010) > 1e-12 {
		t.Fatalf("unexpected price %v or impact %v", price1, impact1)
	}
	if prob1 != prob2 {
		t.Fatalf("a re-sent update should not change probability: %v != %v", prob1, prob2)
	}
	if monitor.Stats().Pools != 1 {
		t.Fatalf("re-sent update should not add a pool")
	}
}
