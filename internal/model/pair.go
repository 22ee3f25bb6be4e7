package model

import "fmt"

// MonitoredPair is an operator-configured token pair with its trade-size bounds.
// Sizes are raw token_a units. An empty Pools list allows every pool.
type MonitoredPair struct {
	Name         string
	TokenA       string
	TokenB       string
	MinTradeSize uint64
	MaxTradeSize uint64
	Pools        []string
}

// Label returns the pair name, falling back to the token identifiers.
func (p MonitoredPair) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("%s/%s", p.TokenA, p.TokenB)
}

// Allows reports whether the pool passes the pair's allow-list.
func (p MonitoredPair) Allows(address string) bool {
	if len(p.Pools) == 0 {
		return true
	}
	for _, pool := range p.Pools {
		if pool == address {
			return true
		}
	}
	return false
}
