package postgres

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"liquidityArb/internal/model"
)

func TestOpportunityArgsMatchColumns(t *testing.T) {
	opp := model.ArbitrageOpportunity{
		ID:                    "opp-1",
		Pair:                  "SOL/USDC",
		TokenA:                "SOL",
		TokenB:                "USDC",
		BuyPool:               "A",
		SellPool:              "B",
		BuyKind:               model.ConstantProduct,
		SellKind:              model.ConcentratedLiquidity,
		OptimalTradeSize:      18_446_744_073_709_551_615,
		DecimalsA:             9,
		ExpectedInput:         300.9,
		ExpectedOutput:        303.6,
		BuyFee:                0.75,
		SellFee:               0.15,
		BuyImpactBps:          29.9,
		SellImpactBps:         15,
		BuyExecutionProb:      0.95,
		SellExecutionProb:     0.9,
		CombinedExecutionProb: 0.855,
		Confidence:            model.High,
		DetectedAt:            time.Unix(1_700_000_000, 0).UTC(),
	}

	args, err := opportunityArgs(opp)
	if err != nil {
		t.Fatalf("opportunity args: %v", err)
	}
	if len(args) != len(opportunityColumns) {
		t.Fatalf("got %d args for %d columns", len(args), len(opportunityColumns))
	}
	if !strings.Contains(insertOpportunitySQL, "$36)") || strings.Contains(insertOpportunitySQL, "$37") {
		t.Fatalf("unexpected placeholders: %s", insertOpportunitySQL)
	}

	byColumn := make(map[string]any, len(args))
	for i, column := range opportunityColumns {
		byColumn[column] = args[i]
	}
	if byColumn["optimal_trade_size"] != "18446744073709551615" {
		t.Fatalf("trade size not carried as decimal text: %v", byColumn["optimal_trade_size"])
	}
	if byColumn["buy_execution_prob"] != 0.95 || byColumn["sell_impact_bps"] != 15.0 || byColumn["buy_fee"] != 0.75 {
		t.Fatalf("per-leg fields not carried: %v", byColumn)
	}
	if byColumn["sell_kind"] != model.ConcentratedLiquidity.String() || byColumn["confidence_level"] != "high" {
		t.Fatalf("enum fields not carried: %v", byColumn)
	}

	var payload model.ArbitrageOpportunity
	if err := json.Unmarshal([]byte(byColumn["payload"].(string)), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ExpectedOutput != opp.ExpectedOutput || payload.Confidence != model.High || payload.DecimalsA != 9 {
		t.Fatalf("payload lost fields: %+v", payload)
	}
}
