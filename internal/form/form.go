// internal/form/form.go

// Package form holds the swap form state and the events that change it.
//
// Every handler takes the current State by value and returns a new one;
// nothing is mutated in place. The price table is always passed in
// explicitly by the caller that owns it.
package form

import (
	"github.com/shopspring/decimal"

	"crypto-swap/internal/exchange"
)

// MaxDemoAmount is what OnMax fills into the from amount.
const MaxDemoAmount = "100"

// Side names one half of the form.
type Side string

const (
	SideFrom Side = "from"
	SideTo   Side = "to"
)

// State is a snapshot of the swap form.
type State struct {
	Selection exchange.Selection  `json:"selection"`
	Amounts   exchange.AmountPair `json:"amounts"`
}

// USDValues are the reference-currency hints shown under each amount.
type USDValues struct {
	From decimal.Decimal `json:"from"`
	To   decimal.Decimal `json:"to"`
}

// OnFromAmountEdited makes the from amount the driving value and derives
// the to amount. The to amount is cleared when it cannot be derived.
func (s State) OnFromAmountEdited(pt *exchange.PriceTable, value string) State {
	s.Amounts.From = value
	s.Amounts.To, _ = pt.Derive(s.Selection, value, exchange.Forward)
	return s
}

// OnToAmountEdited makes the to amount the driving value and derives the
// from amount.
func (s State) OnToAmountEdited(pt *exchange.PriceTable, value string) State {
	s.Amounts.To = value
	s.Amounts.From, _ = pt.Derive(s.Selection, value, exchange.Reverse)
	return s
}

// OnCurrencySelected sets one side of the selection. When a from amount
// is present and a rate exists for the new pair the to amount is derived
// again; otherwise amounts are left untouched.
func (s State) OnCurrencySelected(pt *exchange.PriceTable, side Side, symbol string) State {
	switch side {
	case SideFrom:
		s.Selection.From = symbol
	case SideTo:
		s.Selection.To = symbol
	default:
		return s
	}

	if to, ok := pt.Derive(s.Selection, s.Amounts.From, exchange.Forward); ok {
		s.Amounts.To = to
	}
	return s
}

// OnSwapDirection exchanges currencies and amounts.
func (s State) OnSwapDirection() State {
	s.Selection, s.Amounts = exchange.Swap(s.Selection, s.Amounts)
	return s
}

// OnMax fills the from amount with MaxDemoAmount and derives the to amount.
func (s State) OnMax(pt *exchange.PriceTable) State {
	return s.OnFromAmountEdited(pt, MaxDemoAmount)
}

// Validate checks the form in field order and returns the first
// *exchange.FieldError found, or nil.
func (s State) Validate() error {
	if s.Selection.From == "" {
		return &exchange.FieldError{Field: exchange.FieldFromCurrency, Err: exchange.ErrRequired}
	}
	if s.Selection.To == "" {
		return &exchange.FieldError{Field: exchange.FieldToCurrency, Err: exchange.ErrRequired}
	}
	if err := exchange.ValidateSelection(s.Selection); err != nil {
		return err
	}
	if err := validateAmount(exchange.FieldFromAmount, s.Amounts.From); err != nil {
		return err
	}
	return validateAmount(exchange.FieldToAmount, s.Amounts.To)
}

func validateAmount(field, value string) error {
	if value == "" {
		return &exchange.FieldError{Field: field, Err: exchange.ErrRequired}
	}
	if _, ok := exchange.ParseAmount(value); !ok {
		return &exchange.FieldError{Field: field, Err: exchange.ErrInvalidAmount}
	}
	return nil
}

// Estimate is the to amount implied by the current from amount.
func (s State) Estimate(pt *exchange.PriceTable) (string, bool) {
	return pt.Derive(s.Selection, s.Amounts.From, exchange.Forward)
}

// USDValues values the from amount and the estimated to amount.
func (s State) USDValues(pt *exchange.PriceTable) USDValues {
	v := USDValues{From: pt.USDValue(s.Selection.From, s.Amounts.From), To: decimal.Zero}
	if est, ok := s.Estimate(pt); ok {
		v.To = pt.USDValue(s.Selection.To, est)
	}
	return v
}
