package model

import (
	"math"
	"testing"
)

func TestOraclePriceRecord(t *testing.T) {
	price, err := OraclePriceRecord{
		BaseToken:   " SOL ",
		QuoteToken:  "USDC",
		Price:       15000000000,
		Confidence:  15000000,
		Expo:        -8,
		PublishTime: 1700000000,
	}.ToOraclePrice()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if price.Symbol != "SOL/USDC" || price.Base != "SOL" {
		t.Fatalf("unexpected identity: %+v", price)
	}
	if math.Abs(price.NormalizedPrice()-150) > 1e-9 {
		t.Fatalf("unexpected normalized price: %v", price.NormalizedPrice())
	}
	if math.Abs(price.ConfidencePct()-0.1) > 1e-12 {
		t.Fatalf("unexpected confidence pct: %v", price.ConfidencePct())
	}
	if math.Abs(price.DeviationPct(153)-2) > 1e-9 {
		t.Fatalf("unexpected deviation: %v", price.DeviationPct(153))
	}

	bad := []OraclePriceRecord{
		{QuoteToken: "USDC", Price: 1},
		{BaseToken: "SOL", QuoteToken: "SOL", Price: 1},
		{BaseToken: "SOL", QuoteToken: "USDC", Price: -1},
		{BaseToken: "SOL", QuoteToken: "USDC", Price: 1, Confidence: -1},
	}
	for _, record := range bad {
		if _, err := record.ToOraclePrice(); err == nil {
			t.Fatalf("expected error for %+v", record)
		}
	}
}

func TestOraclePriceZero(t *testing.T) {
	var p OraclePrice
	if p.ConfidencePct() != 100 || p.DeviationPct(1) != 100 {
		t.Fatalf("zero price should report 100%%")
	}
	if _, ok := p.Inverted(); ok {
		t.Fatalf("zero price cannot be inverted")
	}
}
