package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
)

// PoolUpdateRecord is the normalized pool update pushed by the ingestion side.
// Large integers are carried as decimal or 0x-prefixed hex strings.
type PoolUpdateRecord struct {
	PoolAddress     string  `json:"pool_address"`
	Dex             string  `json:"dex,omitempty"`
	DexKind         string  `json:"dex_kind,omitempty"`
	TokenA          string  `json:"token_a"`
	TokenB          string  `json:"token_b"`
	DecimalsA       uint8   `json:"decimals_a"`
	DecimalsB       uint8   `json:"decimals_b"`
	ReserveA        string  `json:"reserve_a,omitempty"`
	ReserveB        string  `json:"reserve_b,omitempty"`
	Liquidity       string  `json:"liquidity,omitempty"`
	SqrtPriceX64    string  `json:"sqrt_price_x64,omitempty"`
	ActiveBinID     int32   `json:"active_bin_id,omitempty"`
	BinStep         uint16  `json:"bin_step,omitempty"`
	FeeRateBps      *uint16 `json:"fee_rate_bps,omitempty"`
	UpdateTimestamp int64   `json:"update_timestamp"`
}

// ToPoolState converts the record into a PoolState. UpdateTimestamp is unix
// milliseconds; zero leaves LastUpdate unset.
func (r PoolUpdateRecord) ToPoolState() (PoolState, error) {
	address := strings.TrimSpace(r.PoolAddress)
	if address == "" {
		return PoolState{}, fmt.Errorf("missing pool address")
	}

	kindLabel := r.DexKind
	if kindLabel == "" {
		kindLabel = r.Dex
	}
	kind, typicalFee, err := ParseDexKind(kindLabel)
	if err != nil {
		return PoolState{}, fmt.Errorf("pool %s: %w", address, err)
	}
	if r.DexKind != "" && r.Dex != "" {
		if _, fee, err := ParseDexKind(r.Dex); err == nil {
			typicalFee = fee
		}
	}

	reserveA, err := parseUint64(r.ReserveA)
	if err != nil {
		return PoolState{}, fmt.Errorf("pool %s reserve_a: %w", address, err)
	}
	reserveB, err := parseUint64(r.ReserveB)
	if err != nil {
		return PoolState{}, fmt.Errorf("pool %s reserve_b: %w", address, err)
	}
	liquidity, err := parseUint256(r.Liquidity)
	if err != nil {
		return PoolState{}, fmt.Errorf("pool %s liquidity: %w", address, err)
	}
	sqrtPrice, err := parseUint256(r.SqrtPriceX64)
	if err != nil {
		return PoolState{}, fmt.Errorf("pool %s sqrt_price_x64: %w", address, err)
	}

	fee := typicalFee
	if r.FeeRateBps != nil {
		fee = *r.FeeRateBps
	}

	state := PoolState{
		Address:      address,
		Dex:          r.Dex,
		Kind:         kind,
		TokenA:       strings.TrimSpace(r.TokenA),
		TokenB:       strings.TrimSpace(r.TokenB),
		DecimalsA:    r.DecimalsA,
		DecimalsB:    r.DecimalsB,
		ReserveA:     reserveA,
		ReserveB:     reserveB,
		Liquidity:    liquidity,
		SqrtPriceX64: sqrtPrice,
		ActiveBinID:  r.ActiveBinID,
		BinStep:      r.BinStep,
		FeeRateBps:   fee,
	}
	if r.UpdateTimestamp > 0 {
		state.LastUpdate = time.UnixMilli(r.UpdateTimestamp).UTC()
	}
	return state, nil
}

func parseUint64(value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	parsed, ok := math.ParseUint64(value)
	if !ok {
		return 0, fmt.Errorf("invalid uint64: %s", value)
	}
	return parsed, nil
}

func parseUint256(value string) (uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uint256.Int{}, nil
	}
	parsed, ok := math.ParseBig256(value)
	if !ok || parsed.Sign() < 0 {
		return uint256.Int{}, fmt.Errorf("invalid uint256: %s", value)
	}
	out, overflow := uint256.FromBig(parsed)
	if overflow {
		return uint256.Int{}, fmt.Errorf("value exceeds 256 bits: %s", value)
	}
	return *out, nil
}
