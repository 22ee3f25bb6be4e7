package liquidity

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultStabilityPools   = 4096
	defaultStabilitySamples = 16
	defaultStabilityWindow  = 60 * time.Second

	neutralStability = 0.5
	// a relative price range of this size or more scores zero
	stabilityFullRange = 0.01
)

type pricePoint struct {
	price float64
	at    time.Time
}

type priceWindow struct {
	mu     sync.Mutex
	points []pricePoint
}

// StabilityTracker keeps a short price history per pool for a bounded number of pools.
type StabilityTracker struct {
	windows *lru.Cache[string, *priceWindow]
	samples int
	window  time.Duration
}

// NewStabilityTracker returns a tracker remembering up to pools pools, each with up to
// samples prices no older than window. Non-positive arguments select defaults.
func NewStabilityTracker(pools, samples int, window time.Duration) (*StabilityTracker, error) {
	if pools <= 0 {
		pools = defaultStabilityPools
	}
	if samples <= 0 {
		samples = defaultStabilitySamples
	}
	if window <= 0 {
		window = defaultStabilityWindow
	}
	windows, err := lru.New[string, *priceWindow](pools)
	if err != nil {
		return nil, fmt.Errorf("create stability cache: %w", err)
	}
	return &StabilityTracker{windows: windows, samples: samples, window: window}, nil
}

// Record appends a price observation for the pool. Observations not newer than the
// last recorded one are ignored.
func (t *StabilityTracker) Record(address string, price float64, at time.Time) {
	if price <= 0 {
		return
	}
	fresh := &priceWindow{}
	w, found, _ := t.windows.PeekOrAdd(address, fresh)
	if !found {
		w = fresh
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if n := len(w.points); n > 0 && !at.After(w.points[n-1].at) {
		return
	}
	w.points = append(w.points, pricePoint{price: price, at: at})
	cutoff := at.Add(-t.window)
	start := 0
	for start < len(w.points) && w.points[start].at.Before(cutoff) {
		start++
	}
	if over := len(w.points) - start - t.samples; over > 0 {
		start += over
	}
	if start > 0 {
		w.points = append(w.points[:0], w.points[start:]...)
	}
}

// Score returns 1 for a flat recent price and 0 for one that moved by 1% or more of its
// mean. Pools with fewer than two recent samples score 0.5.
func (t *StabilityTracker) Score(address string, now time.Time) float64 {
	w, ok := t.windows.Get(address)
	if !ok {
		return neutralStability
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := now.Add(-t.window)
	var (
		count  int
		sum    float64
		lo, hi float64
	)
	for _, p := range w.points {
		if p.at.Before(cutoff) {
			continue
		}
		if count == 0 || p.price < lo {
			lo = p.price
		}
		if count == 0 || p.price > hi {
			hi = p.price
		}
		sum += p.price
		count++
	}
	if count < 2 {
		return neutralStability
	}
	mean := sum / float64(count)
	relRange := (hi - lo) / mean
	return 1 - clamp01(relRange/stabilityFullRange)
}

// Forget drops the history of a pool.
func (t *StabilityTracker) Forget(address string) {
	t.windows.Remove(address)
}

func (t *StabilityTracker) Len() int {
	return t.windows.Len()
}
