// internal/form/form_test.go
package form

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-swap/internal/exchange"
)

func prices() *exchange.PriceTable {
	return exchange.NewPriceTable([]exchange.Quote{
		{Symbol: "ETH", Price: decimal.NewFromInt(2000)},
		{Symbol: "USD", Price: decimal.NewFromInt(1)},
		{Symbol: "ZIL", Price: decimal.Zero},
	})
}

func TestState_OnFromAmountEdited(t *testing.T) {
	pt := prices()
	s := State{Selection: exchange.Selection{From: "ETH", To: "USD"}}

	next := s.OnFromAmountEdited(pt, "1.5")
	assert.Equal(t, exchange.AmountPair{From: "1.5", To: "3000.000000"}, next.Amounts)
	assert.Empty(t, s.Amounts.From, "receiver state must not change")

	cleared := next.OnFromAmountEdited(pt, "abc")
	assert.Equal(t, exchange.AmountPair{From: "abc", To: ""}, cleared.Amounts)
}

func TestState_OnToAmountEdited(t *testing.T) {
	pt := prices()
	s := State{Selection: exchange.Selection{From: "ETH", To: "USD"}}

	next := s.OnToAmountEdited(pt, "500")
	assert.Equal(t, exchange.AmountPair{From: "0.250000", To: "500"}, next.Amounts)

	noRate := State{Selection: exchange.Selection{From: "ZIL", To: "USD"}}.OnToAmountEdited(pt, "500")
	assert.Equal(t, exchange.AmountPair{From: "", To: "500"}, noRate.Amounts)
}

func TestState_OnCurrencySelected(t *testing.T) {
	pt := prices()

	s := State{}.OnFromAmountEdited(pt, "2")
	assert.Equal(t, "", s.Amounts.To)

	s = s.OnCurrencySelected(pt, SideFrom, "ETH")
	assert.Equal(t, "", s.Amounts.To)

	s = s.OnCurrencySelected(pt, SideTo, "USD")
	assert.Equal(t, "ETH", s.Selection.From)
	assert.Equal(t, "USD", s.Selection.To)
	assert.Equal(t, "4000.000000", s.Amounts.To)

	// switching to an unpriced currency keeps the last derived amount
	s = s.OnCurrencySelected(pt, SideTo, "ZIL")
	assert.Equal(t, "4000.000000", s.Amounts.To)

	unchanged := s.OnCurrencySelected(pt, Side("middle"), "USD")
	assert.Equal(t, s, unchanged)
}

func TestState_OnSwapDirection(t *testing.T) {
	s := State{
		Selection: exchange.Selection{From: "ETH", To: "USD"},
		Amounts:   exchange.AmountPair{From: "1", To: "2000"},
	}

	got := s.OnSwapDirection()
	assert.Equal(t, exchange.Selection{From: "USD", To: "ETH"}, got.Selection)
	assert.Equal(t, exchange.AmountPair{From: "2000", To: "1"}, got.Amounts)
	assert.Equal(t, s, got.OnSwapDirection())
}

func TestState_OnMax(t *testing.T) {
	s := State{Selection: exchange.Selection{From: "ETH", To: "USD"}}.OnMax(prices())
	assert.Equal(t, exchange.AmountPair{From: "100", To: "200000.000000"}, s.Amounts)
}

func TestState_Validate(t *testing.T) {
	valid := State{
		Selection: exchange.Selection{From: "ETH", To: "USD"},
		Amounts:   exchange.AmountPair{From: "1", To: "2000.000000"},
	}

	tests := []struct {
		name      string
		mutate    func(s State) State
		wantField string
		wantErr   error
	}{
		{"valid", func(s State) State { return s }, "", nil},
		{"missing from currency", func(s State) State { s.Selection.From = ""; return s }, exchange.FieldFromCurrency, exchange.ErrRequired},
		{"missing to currency", func(s State) State { s.Selection.To = ""; return s }, exchange.FieldToCurrency, exchange.ErrRequired},
		{"same currency", func(s State) State { s.Selection.To = "eth"; return s }, exchange.FieldToCurrency, exchange.ErrSameCurrency},
		{"missing from amount", func(s State) State { s.Amounts.From = ""; return s }, exchange.FieldFromAmount, exchange.ErrRequired},
		{"bad from amount", func(s State) State { s.Amounts.From = "x"; return s }, exchange.FieldFromAmount, exchange.ErrInvalidAmount},
		{"missing to amount", func(s State) State { s.Amounts.To = ""; return s }, exchange.FieldToAmount, exchange.ErrRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(valid).Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))

			var fe *exchange.FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.wantField, fe.Field)
		})
	}
}

func TestState_USDValues(t *testing.T) {
	pt := prices()
	s := State{Selection: exchange.Selection{From: "ETH", To: "USD"}}.OnFromAmountEdited(pt, "2")

	est, ok := s.Estimate(pt)
	require.True(t, ok)
	assert.Equal(t, "4000.000000", est)

	v := s.USDValues(pt)
	assert.True(t, v.From.Equal(decimal.NewFromInt(4000)))
	assert.True(t, v.To.Equal(decimal.NewFromInt(4000)))

	empty := State{}.USDValues(pt)
	assert.True(t, empty.From.IsZero())
	assert.True(t, empty.To.IsZero())
}
