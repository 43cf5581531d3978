// internal/exchange/calculator.go

// Package exchange computes conversion rates and derived amounts from a
// PriceTable. Nothing in this package performs I/O.
package exchange

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits kept by Convert.
const Precision = 6

// Direction selects how Convert applies a rate.
type Direction int

const (
	// Forward converts an amount of the from currency into the to currency.
	Forward Direction = iota
	// Reverse converts an amount of the to currency back into the from currency.
	Reverse
)

// Selection is the pair of currencies picked by the user. Either side may
// be unset ("").
type Selection struct {
	From string `json:"from_currency"`
	To   string `json:"to_currency"`
}

// AmountPair holds the raw user-facing amounts. Either side may be empty.
type AmountPair struct {
	From string `json:"from_amount"`
	To   string `json:"to_amount"`
}

// Rate returns price(from) / price(to). The second result is false when
// either side is unset, unknown, or priced at zero or below.
func (t *PriceTable) Rate(sel Selection) (decimal.Decimal, bool) {
	if sel.From == "" || sel.To == "" {
		return decimal.Zero, false
	}

	from, ok := t.Price(sel.From)
	if !ok || !from.IsPositive() {
		return decimal.Zero, false
	}
	to, ok := t.Price(sel.To)
	if !ok || !to.IsPositive() {
		return decimal.Zero, false
	}

	return from.Div(to), true
}

// Convert applies rate to amount and rounds to Precision digits, half away
// from zero. Reverse with a non-positive rate yields zero.
func Convert(amount, rate decimal.Decimal, dir Direction) decimal.Decimal {
	if dir == Reverse {
		if !rate.IsPositive() {
			return decimal.Zero
		}
		return amount.DivRound(rate, Precision)
	}
	return amount.Mul(rate).Round(Precision)
}

// ValidateSelection fails with ErrSameCurrency when both sides are set and
// equal ignoring case. Unset sides are not an error here.
func ValidateSelection(sel Selection) error {
	if sel.From == "" || sel.To == "" {
		return nil
	}
	if strings.EqualFold(strings.TrimSpace(sel.From), strings.TrimSpace(sel.To)) {
		return fieldErr(FieldToCurrency, ErrSameCurrency)
	}
	return nil
}

// Swap exchanges the from and to members of both the selection and the
// amounts.
func Swap(sel Selection, amounts AmountPair) (Selection, AmountPair) {
	return Selection{From: sel.To, To: sel.From}, AmountPair{From: amounts.To, To: amounts.From}
}

// ParseAmount parses a non-negative decimal string. Empty, non-numeric,
// NaN and negative input all report false.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// FormatAmount renders d with exactly Precision fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(Precision)
}

// Derive computes the counterpart of the driving amount. It returns
// ("", false) when the amount or the rate is unavailable.
func (t *PriceTable) Derive(sel Selection, driving string, dir Direction) (string, bool) {
	amount, ok := ParseAmount(driving)
	if !ok {
		return "", false
	}
	rate, ok := t.Rate(sel)
	if !ok {
		return "", false
	}
	return FormatAmount(Convert(amount, rate, dir)), true
}

// USDValue values amount of symbol in the reference currency. Unknown
// symbols and unparsable amounts are worth zero.
func (t *PriceTable) USDValue(symbol, amount string) decimal.Decimal {
	price, ok := t.Price(symbol)
	if !ok {
		return decimal.Zero
	}
	a, ok := ParseAmount(amount)
	if !ok {
		return decimal.Zero
	}
	return a.Mul(price)
}
