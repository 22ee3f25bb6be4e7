package model

import (
	"fmt"
	"strings"
	"time"
)

// ConfidenceLevel buckets an opportunity by execution probability and net margin.
type ConfidenceLevel uint8

const (
	VeryLow ConfidenceLevel = iota
	Low
	Medium
	High
	VeryHigh
)

func (c ConfidenceLevel) String() string {
	switch c {
	case VeryHigh:
		return "very_high"
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return "very_low"
	}
}

func (c ConfidenceLevel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ConfidenceLevel) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "very_high":
		*c = VeryHigh
	case "high":
		*c = High
	case "medium":
		*c = Medium
	case "low":
		*c = Low
	case "very_low":
		*c = VeryLow
	default:
		return fmt.Errorf("unknown confidence level: %s", text)
	}
	return nil
}

// ArbitrageOpportunity is one scan's evaluation of buying token_a on BuyPool and
// selling it on SellPool. Money fields are token_b (quote) units; sizes are raw
// token_a units.
type ArbitrageOpportunity struct {
	ID       string  `json:"id"`
	Pair     string  `json:"pair"`
	TokenA   string  `json:"token_a"`
	TokenB   string  `json:"token_b"`
	BuyPool  string  `json:"buy_pool"`
	SellPool string  `json:"sell_pool"`
	BuyDex   string  `json:"buy_dex,omitempty"`
	SellDex  string  `json:"sell_dex,omitempty"`
	BuyKind  DexKind `json:"buy_kind"`
	SellKind DexKind `json:"sell_kind"`

	BuyPrice       float64 `json:"buy_price"`
	SellPrice      float64 `json:"sell_price"`
	GrossProfitPct float64 `json:"gross_profit_pct"`

	OptimalTradeSize uint64  `json:"optimal_trade_size"`
	DecimalsA        uint8   `json:"decimals_a"`
	ExpectedInput    float64 `json:"expected_input"`
	ExpectedOutput   float64 `json:"expected_output"`
	GrossProfit      float64 `json:"gross_profit"`

	FlashLoanFee float64 `json:"flash_loan_fee"`
	BuyFee       float64 `json:"buy_fee"`
	SellFee      float64 `json:"sell_fee"`
	TotalFees    float64 `json:"total_fees"`
	TotalFeePct  float64 `json:"total_fee_pct"`
	GasCost      float64 `json:"gas_cost"`

	NetProfit    float64 `json:"net_profit"`
	NetProfitPct float64 `json:"net_profit_pct"`

	BuyImpactBps          float64 `json:"buy_impact_bps"`
	SellImpactBps         float64 `json:"sell_impact_bps"`
	BuyExecutionProb      float64 `json:"buy_execution_prob"`
	SellExecutionProb     float64 `json:"sell_execution_prob"`
	CombinedExecutionProb float64 `json:"combined_execution_prob"`

	ExpectedValue float64         `json:"expected_value"`
	EVScore       float64         `json:"ev_score"`
	Confidence    ConfidenceLevel `json:"confidence_level"`
	DetectedAt    time.Time       `json:"detected_at"`
}
