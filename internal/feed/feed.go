// internal/feed/feed.go

// Package feed turns a raw price list into a PriceTable.
//
// The upstream list is an array of {currency, price, date} records with
// many observations per currency. Only the latest observation of each
// currency is kept.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"crypto-swap/internal/exchange"
)

// ErrMalformedFeed is returned when the payload is not a JSON array.
var ErrMalformedFeed = errors.New("malformed price feed")

// Record is one price observation.
type Record struct {
	Currency string          `json:"currency"`
	Price    decimal.Decimal `json:"price"`
	Date     time.Time       `json:"date"`
}

// Source produces raw price records.
type Source interface {
	Fetch(ctx context.Context) ([]Record, error)
}

// Decode parses a feed payload. Prices may be JSON strings or numbers.
// Records missing a currency, or with an unparsable price or date, are
// skipped and counted.
func Decode(body []byte) ([]Record, int, error) {
	if !gjson.ValidBytes(body) {
		return nil, 0, fmt.Errorf("%w: invalid json", ErrMalformedFeed)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, 0, fmt.Errorf("%w: expected array, got %s", ErrMalformedFeed, doc.Type)
	}

	var (
		records []Record
		skipped int
	)
	doc.ForEach(func(_, item gjson.Result) bool {
		rec, ok := decodeRecord(item)
		if !ok {
			skipped++
			return true
		}
		records = append(records, rec)
		return true
	})

	return records, skipped, nil
}

func decodeRecord(item gjson.Result) (Record, bool) {
	currency := item.Get("currency").String()
	if currency == "" {
		return Record{}, false
	}

	p := item.Get("price")
	raw := p.String()
	if p.Type == gjson.Number {
		raw = p.Raw
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return Record{}, false
	}

	date, err := time.Parse(time.RFC3339, item.Get("date").String())
	if err != nil {
		return Record{}, false
	}

	return Record{Currency: currency, Price: price, Date: date}, true
}

// Reduce keeps the latest record per currency, comparing currencies the
// same way a PriceTable does. On equal dates the first record seen wins.
// The result is sorted by normalized currency.
func Reduce(records []Record) []Record {
	latest := make(map[string]Record, len(records))
	for _, rec := range records {
		key := exchange.Normalize(rec.Currency)
		if cur, ok := latest[key]; ok && !rec.Date.After(cur.Date) {
			continue
		}
		latest[key] = rec
	}

	out := make([]Record, 0, len(latest))
	for _, rec := range latest {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return exchange.Normalize(out[i].Currency) < exchange.Normalize(out[j].Currency)
	})
	return out
}

// BuildTable reduces records and builds a PriceTable from them.
func BuildTable(records []Record) *exchange.PriceTable {
	reduced := Reduce(records)
	quotes := make([]exchange.Quote, 0, len(reduced))
	for _, rec := range reduced {
		quotes = append(quotes, exchange.Quote{Symbol: rec.Currency, Price: rec.Price, Date: rec.Date})
	}
	return exchange.NewPriceTable(quotes)
}
