// internal/models/currency.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type FeedState string

const (
	FeedLoading FeedState = "loading"
	FeedReady   FeedState = "ready"
	FeedFailed  FeedState = "failed"
)

// FeedStatus describes the current price table
type FeedStatus struct {
	State      FeedState `json:"state"`
	Source     string    `json:"source"`
	Error      string    `json:"error,omitempty"`
	Currencies int       `json:"currencies"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`

	Cache map[string]interface{} `json:"cache,omitempty"`
}

type CurrencyOption struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	IconURL   string          `json:"icon_url"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type RateResponse struct {
	FromCurrency  string    `json:"from_currency"`
	ToCurrency    string    `json:"to_currency"`
	ExchangeRate  string    `json:"exchange_rate"`
	InverseRate   string    `json:"inverse_rate"`
	RateTimestamp time.Time `json:"rate_timestamp"`
}

type PricePoint struct {
	Currency string          `json:"currency"`
	Price    decimal.Decimal `json:"price"`
	Date     time.Time       `json:"date"`
}

// Form events accepted by the quote endpoint
const (
	EventNone             = ""
	EventFromAmountEdited = "from_amount_edited"
	EventToAmountEdited   = "to_amount_edited"
	EventCurrencySelected = "currency_selected"
	EventSwapDirection    = "swap_direction"
	EventMax              = "max"
)

// QuoteRequest carries the current form plus one event to apply to it
type QuoteRequest struct {
	FromCurrency string `json:"from_currency"`
	ToCurrency   string `json:"to_currency"`
	FromAmount   string `json:"from_amount"`
	ToAmount     string `json:"to_amount"`
	Event        string `json:"event"`
	Side         string `json:"side,omitempty"`
	Symbol       string `json:"symbol,omitempty"`
	Value        string `json:"value,omitempty"`
}

type QuoteResponse struct {
	FromCurrency    string          `json:"from_currency"`
	ToCurrency      string          `json:"to_currency"`
	FromAmount      string          `json:"from_amount"`
	ToAmount        string          `json:"to_amount"`
	ExchangeRate    string          `json:"exchange_rate,omitempty"`
	EstimatedAmount string          `json:"estimated_amount,omitempty"`
	FromUSDValue    decimal.Decimal `json:"from_usd_value"`
	ToUSDValue      decimal.Decimal `json:"to_usd_value"`
	SelectionError  string          `json:"selection_error,omitempty"`
}

type SwapRequest struct {
	FromCurrency string `json:"from_currency"`
	ToCurrency   string `json:"to_currency"`
	FromAmount   string `json:"from_amount"`
	ToAmount     string `json:"to_amount"`
}

// SwapResult is produced by a successful submit and never stored
type SwapResult struct {
	ID              string    `json:"id"`
	FromAmount      string    `json:"from_amount"`
	FromCurrency    string    `json:"from_currency"`
	ToCurrency      string    `json:"to_currency"`
	EstimatedAmount string    `json:"estimated_amount"`
	ExchangeRate    string    `json:"exchange_rate"`
	CreatedAt       time.Time `json:"created_at"`
}
