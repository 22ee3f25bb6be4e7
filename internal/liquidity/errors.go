package liquidity

import "errors"

var (
	// ErrInsufficientLiquidity marks a pool that lacks the reserves or liquidity its kind needs.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrStalePoolData         = errors.New("stale pool data")
	ErrArithmeticOverflow    = errors.New("arithmetic overflow")
	ErrPoolNotFound          = errors.New("pool not found")
	// ErrInvalidConfiguration is the only error that should stop a caller.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
