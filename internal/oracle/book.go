package oracle

import (
	"sync"

	"liquidityArb/internal/model"
)

type bookKey struct {
	base  string
	quote string
}

// Book holds the latest oracle price per base/quote feed.
type Book struct {
	mu     sync.RWMutex
	prices map[bookKey]model.OraclePrice
}

func NewBook() *Book {
	return &Book{prices: make(map[bookKey]model.OraclePrice)}
}

// UpdatePrice stores price unless the book already has a newer publish for the feed.
func (b *Book) UpdatePrice(price model.OraclePrice) {
	key := bookKey{base: price.Base, quote: price.Quote}
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.prices[key]; ok && prev.PublishTime.After(price.PublishTime) {
		return
	}
	b.prices[key] = price
}

// OraclePrice returns the price of base in quote. A feed published the other way
// round is inverted.
func (b *Book) OraclePrice(base, quote string) (model.OraclePrice, bool) {
	b.mu.RLock()
	direct, ok := b.prices[bookKey{base: base, quote: quote}]
	inverse, invOK := b.prices[bookKey{base: quote, quote: base}]
	b.mu.RUnlock()

	if ok {
		return direct, true
	}
	if invOK {
		return inverse.Inverted()
	}
	return model.OraclePrice{}, false
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.prices)
}
