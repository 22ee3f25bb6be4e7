package poolcache

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"liquidityArb/internal/model"
)

const defaultShards = 32

type pairKey struct {
	lo string
	hi string
}

func newPairKey(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

type shard struct {
	mu    sync.RWMutex
	pools map[string]model.PoolState
}

// Cache holds the latest PoolState per pool address. It is safe for concurrent use;
// reads return copies so a reader never observes a half-written record.
type Cache struct {
	shards []*shard
	mask   uint64

	// idxMu is always acquired after a shard lock, never before.
	idxMu sync.RWMutex
	pairs map[pairKey]map[string]struct{}
}

// New returns a cache with the given shard count rounded up to a power of two.
// A non-positive count selects the default.
func New(shards int) *Cache {
	if shards <= 0 {
		shards = defaultShards
	}
	n := 1
	for n < shards {
		n <<= 1
	}

	c := &Cache{
		shards: make([]*shard, n),
		mask:   uint64(n - 1),
		pairs:  make(map[pairKey]map[string]struct{}),
	}
	for i := range c.shards {
		c.shards[i] = &shard{pools: make(map[string]model.PoolState)}
	}
	return c
}

func (c *Cache) shardFor(address string) *shard {
	return c.shards[xxhash.Sum64String(address)&c.mask]
}

// Put replaces the record for state.Address.
func (c *Cache) Put(state model.PoolState) {
	s := c.shardFor(state.Address)
	s.mu.Lock()
	prev, existed := s.pools[state.Address]
	s.pools[state.Address] = state

	key := newPairKey(state.TokenA, state.TokenB)
	c.idxMu.Lock()
	if existed {
		if prevKey := newPairKey(prev.TokenA, prev.TokenB); prevKey != key {
			c.unindexLocked(prevKey, state.Address)
		}
	}
	members, ok := c.pairs[key]
	if !ok {
		members = make(map[string]struct{})
		c.pairs[key] = members
	}
	members[state.Address] = struct{}{}
	c.idxMu.Unlock()
	s.mu.Unlock()
}

func (c *Cache) unindexLocked(key pairKey, address string) {
	members, ok := c.pairs[key]
	if !ok {
		return
	}
	delete(members, address)
	if len(members) == 0 {
		delete(c.pairs, key)
	}
}

func (c *Cache) Get(address string) (model.PoolState, bool) {
	s := c.shardFor(address)
	s.mu.RLock()
	state, ok := s.pools[address]
	s.mu.RUnlock()
	return state, ok
}

// PoolsForPair returns every pool trading a and b, in either token order, sorted by address.
func (c *Cache) PoolsForPair(a, b string) []model.PoolState {
	key := newPairKey(a, b)
	c.idxMu.RLock()
	addresses := make([]string, 0, len(c.pairs[key]))
	for address := range c.pairs[key] {
		addresses = append(addresses, address)
	}
	c.idxMu.RUnlock()
	sort.Strings(addresses)

	out := make([]model.PoolState, 0, len(addresses))
	for _, address := range addresses {
		state, ok := c.Get(address)
		// the record may have moved to another pair between the index read and Get
		if !ok || !state.HasPair(a, b) {
			continue
		}
		out = append(out, state)
	}
	return out
}

// Snapshot copies every record. Each record is consistent; the set as a whole is not
// a point-in-time view while writers are active.
func (c *Cache) Snapshot() []model.PoolState {
	out := make([]model.PoolState, 0, c.Len())
	for _, s := range c.shards {
		s.mu.RLock()
		for _, state := range s.pools {
			out = append(out, state)
		}
		s.mu.RUnlock()
	}
	return out
}

// DeleteIf removes every record matching pred and returns the removed addresses.
func (c *Cache) DeleteIf(pred func(model.PoolState) bool) []string {
	var removed []string
	for _, s := range c.shards {
		s.mu.Lock()
		for address, state := range s.pools {
			if !pred(state) {
				continue
			}
			delete(s.pools, address)
			c.idxMu.Lock()
			c.unindexLocked(newPairKey(state.TokenA, state.TokenB), address)
			c.idxMu.Unlock()
			removed = append(removed, address)
		}
		s.mu.Unlock()
	}
	return removed
}

func (c *Cache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.pools)
		s.mu.RUnlock()
	}
	return total
}

// PairCount returns the number of distinct token pairs with at least one pool.
func (c *Cache) PairCount() int {
	c.idxMu.RLock()
	defer c.idxMu.RUnlock()
	return len(c.pairs)
}
