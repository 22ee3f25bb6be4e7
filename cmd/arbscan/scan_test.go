package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"liquidityArb/internal/config"
	"liquidityArb/internal/model"
	"liquidityArb/internal/oracle"
)

func TestFeedClockTracksNewestUpdate(t *testing.T) {
	clock := &feedClock{}
	base := time.Unix(1_700_000_000, 0)
	clock.Observe(base.Add(2 * time.Second))
	clock.Observe(base)
	if got := clock.Now(); !got.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("clock should hold the newest update, got %s", got)
	}
}

func TestPrintOpportunities(t *testing.T) {
	var buf bytes.Buffer
	if err := printOpportunities(&buf, nil, nil); err != nil {
		t.Fatalf("print: %v", err)
	}
	if !strings.Contains(buf.String(), "no opportunities") {
		t.Fatalf("unexpected empty output: %q", buf.String())
	}

	buf.Reset()
	opps := []model.ArbitrageOpportunity{{Pair: "SOL/USDC", BuyPool: "A", SellPool: "B", OptimalTradeSize: 3, Confidence: model.High}}
	if err := printOpportunities(&buf, opps, nil); err != nil {
		t.Fatalf("print: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "SOL/USDC") || !strings.Contains(lines[1], "high") {
		t.Fatalf("unexpected table: %q", buf.String())
	}
	if strings.Contains(lines[0], "ORACLE") {
		t.Fatalf("oracle column without a validator: %q", lines[0])
	}
}

func TestPrintOpportunitiesWithOracle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	book := oracle.NewBook()
	book.UpdatePrice(model.OraclePrice{Base: "SOL", Quote: "USDC", Price: 100, Confidence: 0.1, PublishTime: now})
	validator, err := oracle.NewValidator(book, oracle.Balanced(), func() time.Time { return now }, nil)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	opps := []model.ArbitrageOpportunity{
		{Pair: "SOL/USDC", TokenA: "SOL", TokenB: "USDC", BuyPrice: 100, SellPrice: 101, OptimalTradeSize: 1_500_000_000, DecimalsA: 9},
		{Pair: "SOL/USDC", TokenA: "SOL", TokenB: "USDC", BuyPrice: 130, SellPrice: 131, OptimalTradeSize: 2, DecimalsA: 0},
	}
	var buf bytes.Buffer
	if err := printOpportunities(&buf, opps, validator); err != nil {
		t.Fatalf("print: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.Contains(lines[0], "ORACLE") {
		t.Fatalf("unexpected table: %q", buf.String())
	}
	if !strings.Contains(lines[1], "1.500000000") || !strings.HasSuffix(lines[1], "ok") {
		t.Fatalf("unexpected first row: %q", lines[1])
	}
	if !strings.Contains(lines[2], "rejected") {
		t.Fatalf("unexpected second row: %q", lines[2])
	}
}

func TestOracleConfigOverrides(t *testing.T) {
	cfg := config.Config{OraclePreset: "aggressive", OracleMaxStaleness: 5 * time.Second}
	got, err := oracleConfig(cfg)
	if err != nil {
		t.Fatalf("oracle config: %v", err)
	}
	if got.MaxDeviationPct != 10 || got.MaxStaleness != 5*time.Second || got.RequireBothPools {
		t.Fatalf("unexpected oracle config: %+v", got)
	}
	if _, err := oracleConfig(config.Config{OraclePreset: "unknown"}); err == nil {
		t.Fatalf("expected error for unknown preset")
	}
}
