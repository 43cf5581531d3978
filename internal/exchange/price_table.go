// internal/exchange/price_table.go
package exchange

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest known unit price of one currency, in the feed's
// common reference currency (USD).
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Date   time.Time       `json:"date"`
}

// PriceTable maps normalized currency symbols to their latest quote.
//
// A PriceTable is never mutated after construction. Refreshing prices
// means building a new table and replacing the old one wholesale, so a
// table may be shared between goroutines without locking.
type PriceTable struct {
	quotes map[string]Quote
}

// NewPriceTable builds a table from already reduced quotes. When two
// quotes normalize to the same symbol the later one wins.
func NewPriceTable(quotes []Quote) *PriceTable {
	t := &PriceTable{quotes: make(map[string]Quote, len(quotes))}
	for _, q := range quotes {
		if strings.TrimSpace(q.Symbol) == "" {
			continue
		}
		t.quotes[Normalize(q.Symbol)] = q
	}
	return t
}

// EmptyPriceTable returns a table with no known rates.
func EmptyPriceTable() *PriceTable {
	return &PriceTable{quotes: map[string]Quote{}}
}

// Normalize returns the lookup key for a symbol.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Len returns the number of priced currencies.
func (t *PriceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.quotes)
}

// Quote returns the quote for symbol, matched case-insensitively.
func (t *PriceTable) Quote(symbol string) (Quote, bool) {
	if t == nil {
		return Quote{}, false
	}
	q, ok := t.quotes[Normalize(symbol)]
	return q, ok
}

// Price returns the unit price for symbol.
func (t *PriceTable) Price(symbol string) (decimal.Decimal, bool) {
	q, ok := t.Quote(symbol)
	if !ok {
		return decimal.Zero, false
	}
	return q.Price, true
}

// Symbols returns all quotes sorted by symbol, ignoring case.
func (t *PriceTable) Symbols() []Quote {
	if t == nil {
		return nil
	}
	out := make([]Quote, 0, len(t.quotes))
	for _, q := range t.quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Symbol), strings.ToLower(out[j].Symbol)
		if a == b {
			return out[i].Symbol < out[j].Symbol
		}
		return a < b
	})
	return out
}

// Search returns the sorted quotes whose symbol contains query,
// case-insensitively. An empty query matches everything.
func (t *PriceTable) Search(query string) []Quote {
	all := t.Symbols()
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all
	}

	matched := all[:0]
	for _, q := range all {
		if strings.Contains(strings.ToLower(q.Symbol), query) {
			matched = append(matched, q)
		}
	}
	return matched
}
