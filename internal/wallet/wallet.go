// internal/wallet/wallet.go

// Package wallet ranks wallet balances for display.
package wallet

import (
	"sort"

	"github.com/shopspring/decimal"

	"crypto-swap/internal/exchange"
)

// UnknownPriority is assigned to chains without a ranking.
const UnknownPriority = -99

var chainPriority = map[string]int{
	"Osmosis":  100,
	"Ethereum": 50,
	"Arbitrum": 30,
	"Zilliqa":  20,
	"Neo":      20,
}

// Balance is one holding reported by a wallet.
type Balance struct {
	Currency   string          `json:"currency"`
	Amount     decimal.Decimal `json:"amount"`
	Blockchain string          `json:"blockchain"`
}

// Row is a ranked balance ready to render.
type Row struct {
	Balance
	Formatted string          `json:"formatted"`
	USDValue  decimal.Decimal `json:"usd_value"`
	Priority  int             `json:"priority"`
}

// Priority returns the display rank of a chain.
func Priority(chain string) int {
	if p, ok := chainPriority[chain]; ok {
		return p
	}
	return UnknownPriority
}

// Rank drops balances on unranked chains and empty balances, orders the
// rest by chain priority (highest first, input order kept on ties) and
// values them with table. Unpriced currencies are worth zero.
func Rank(balances []Balance, table *exchange.PriceTable) []Row {
	rows := make([]Row, 0, len(balances))
	for _, b := range balances {
		p := Priority(b.Blockchain)
		if p <= UnknownPriority || !b.Amount.IsPositive() {
			continue
		}

		usd := decimal.Zero
		if price, ok := table.Price(b.Currency); ok {
			usd = price.Mul(b.Amount)
		}

		rows = append(rows, Row{
			Balance:   b,
			Formatted: b.Amount.StringFixed(0),
			USDValue:  usd,
			Priority:  p,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Priority > rows[j].Priority
	})
	return rows
}
