package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"
)

// DexKind selects the pricing and impact formula for a pool.
type DexKind uint8

const (
	DexKindUnknown DexKind = iota
	ConstantProduct
	ConcentratedLiquidity
	DynamicLiquidity
)

func (k DexKind) String() string {
	switch k {
	case ConstantProduct:
		return "constant_product"
	case ConcentratedLiquidity:
		return "concentrated_liquidity"
	case DynamicLiquidity:
		return "dynamic_liquidity"
	default:
		return "unknown"
	}
}

func (k DexKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *DexKind) UnmarshalText(text []byte) error {
	kind, _, err := ParseDexKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// dexLabel maps DEX program labels to their curve kind and typical fee.
type dexLabel struct {
	kind   DexKind
	feeBps uint16
}

var dexLabels = map[string]dexLabel{
	"raydium_amm_v4": {ConstantProduct, 25},
	"raydium_cpmm":   {ConstantProduct, 25},
	"pump_swap":      {ConstantProduct, 25},
	"raydium_clmm":   {ConcentratedLiquidity, 25},
	"orca_whirlpool": {ConcentratedLiquidity, 30},
	"meteora_dlmm":   {DynamicLiquidity, 20},
}

// ParseDexKind resolves a kind name ("constant_product", "clmm", ...) or a DEX label
// ("orca_whirlpool", ...) into a DexKind. The returned fee is the typical fee for a
// known DEX label and zero otherwise.
func ParseDexKind(input string) (DexKind, uint16, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	key = strings.ReplaceAll(key, "-", "_")
	switch key {
	case "constant_product", "cpmm", "amm":
		return ConstantProduct, 0, nil
	case "concentrated_liquidity", "clmm":
		return ConcentratedLiquidity, 0, nil
	case "dynamic_liquidity", "dlmm":
		return DynamicLiquidity, 0, nil
	}
	if label, ok := dexLabels[key]; ok {
		return label.kind, label.feeBps, nil
	}
	return DexKindUnknown, 0, fmt.Errorf("unknown dex kind: %s", input)
}

// Direction is the side of a swap relative to the pool's token order.
type Direction uint8

const (
	// AToB sells token_a into the pool.
	AToB Direction = iota
	// BToA buys token_a out of the pool.
	BToA
)

func (d Direction) String() string {
	if d == BToA {
		return "b_to_a"
	}
	return "a_to_b"
}

// PoolState is the latest known condition of one liquidity pool.
//
// ReserveA/ReserveB are meaningful only for ConstantProduct pools and Liquidity only
// for concentrated and dynamic pools. SqrtPriceX64 is a Q64.64 square-root price of
// token_b in token_a raw units.
type PoolState struct {
	Address      string
	Dex          string
	Kind         DexKind
	TokenA       string
	TokenB       string
	DecimalsA    uint8
	DecimalsB    uint8
	ReserveA     uint64
	ReserveB     uint64
	Liquidity    uint256.Int
	SqrtPriceX64 uint256.Int
	ActiveBinID  int32
	BinStep      uint16
	FeeRateBps   uint16
	LastUpdate   time.Time
}

// Enriched reports whether the pool carries the depth data its kind needs.
func (p PoolState) Enriched() bool {
	switch p.Kind {
	case ConstantProduct:
		return p.ReserveA > 0 && p.ReserveB > 0
	case ConcentratedLiquidity, DynamicLiquidity:
		return !p.Liquidity.IsZero()
	default:
		return false
	}
}

// HasPair reports whether the pool trades a and b in either order.
func (p PoolState) HasPair(a, b string) bool {
	return (p.TokenA == a && p.TokenB == b) || (p.TokenA == b && p.TokenB == a)
}

// Age returns how long ago the pool was last written.
func (p PoolState) Age(now time.Time) time.Duration {
	return now.Sub(p.LastUpdate)
}

var q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

// Oriented returns a copy of the pool whose token_a is tokenA. The bool is false when
// the pool does not trade tokenA.
func (p PoolState) Oriented(tokenA string) (PoolState, bool) {
	if p.TokenA == tokenA {
		return p, true
	}
	if p.TokenB != tokenA {
		return PoolState{}, false
	}

	out := p
	out.TokenA, out.TokenB = p.TokenB, p.TokenA
	out.DecimalsA, out.DecimalsB = p.DecimalsB, p.DecimalsA
	out.ReserveA, out.ReserveB = p.ReserveB, p.ReserveA
	out.ActiveBinID = -p.ActiveBinID
	if !p.SqrtPriceX64.IsZero() {
		// 1/sqrt in Q64.64 is 2^128/sqrt.
		out.SqrtPriceX64.Div(q128, &p.SqrtPriceX64)
	}
	return out, true
}
