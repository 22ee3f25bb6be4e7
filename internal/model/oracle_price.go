package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// OraclePrice is a reference price for Base quoted in Quote. Price and Confidence are
// raw integers scaled by 10^Expo.
type OraclePrice struct {
	Symbol      string
	Base        string
	Quote       string
	Price       float64
	Confidence  float64
	Expo        int32
	PublishTime time.Time
}

// NormalizedPrice returns Price scaled by its exponent.
func (p OraclePrice) NormalizedPrice() float64 {
	return p.Price * math.Pow10(int(p.Expo))
}

// ConfidencePct is the confidence interval as a percentage of the price. A zero price
// reports 100.
func (p OraclePrice) ConfidencePct() float64 {
	if p.Price == 0 {
		return 100
	}
	return p.Confidence / p.Price * 100
}

// DeviationPct is the absolute distance of price from the oracle price in percent.
func (p OraclePrice) DeviationPct(price float64) float64 {
	ref := p.NormalizedPrice()
	if ref == 0 {
		return 100
	}
	return math.Abs((price-ref)/ref) * 100
}

// Inverted quotes Quote in Base. Confidence keeps its share of the price.
func (p OraclePrice) Inverted() (OraclePrice, bool) {
	ref := p.NormalizedPrice()
	if ref <= 0 || math.IsInf(ref, 0) {
		return OraclePrice{}, false
	}
	inv := 1 / ref
	out := p
	out.Base, out.Quote = p.Quote, p.Base
	if p.Symbol != "" {
		out.Symbol = p.Quote + "/" + p.Base
	}
	out.Price = inv
	out.Confidence = inv * p.ConfidencePct() / 100
	out.Expo = 0
	return out, true
}

// OraclePriceRecord is one line of the oracle price feed. PublishTime is unix seconds.
type OraclePriceRecord struct {
	Symbol      string  `json:"symbol,omitempty"`
	BaseToken   string  `json:"base_token"`
	QuoteToken  string  `json:"quote_token"`
	Price       float64 `json:"price"`
	Confidence  float64 `json:"confidence"`
	Expo        int32   `json:"expo"`
	PublishTime int64   `json:"publish_time"`
}

// ToOraclePrice validates the record and converts it into an OraclePrice.
func (r OraclePriceRecord) ToOraclePrice() (OraclePrice, error) {
	base := strings.TrimSpace(r.BaseToken)
	quote := strings.TrimSpace(r.QuoteToken)
	if base == "" || quote == "" {
		return OraclePrice{}, fmt.Errorf("oracle price %q: missing base or quote token", r.Symbol)
	}
	if base == quote {
		return OraclePrice{}, fmt.Errorf("oracle price %q: base equals quote", r.Symbol)
	}
	if !(r.Price > 0) || math.IsInf(r.Price, 0) {
		return OraclePrice{}, fmt.Errorf("oracle price %s/%s: invalid price %v", base, quote, r.Price)
	}
	if r.Confidence < 0 || math.IsNaN(r.Confidence) {
		return OraclePrice{}, fmt.Errorf("oracle price %s/%s: invalid confidence %v", base, quote, r.Confidence)
	}

	price := OraclePrice{
		Symbol:     r.Symbol,
		Base:       base,
		Quote:      quote,
		Price:      r.Price,
		Confidence: r.Confidence,
		Expo:       r.Expo,
	}
	if price.Symbol == "" {
		price.Symbol = base + "/" + quote
	}
	if r.PublishTime > 0 {
		price.PublishTime = time.Unix(r.PublishTime, 0).UTC()
	}
	return price, nil
}
