// internal/service/exchange_service.go
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"crypto-swap/internal/exchange"
	"crypto-swap/internal/feed"
	"crypto-swap/internal/form"
	"crypto-swap/internal/metrics"
	"crypto-swap/internal/models"
)

var (
	// ErrPricesUnavailable is returned while the price table is loading or
	// after the last fetch failed.
	ErrPricesUnavailable = errors.New("price data unavailable")

	// ErrSubmitInProgress is returned when a submit with the same
	// idempotency key is still running.
	ErrSubmitInProgress = errors.New("swap submission already in progress")

	// ErrUnknownEvent is returned for quote events the form does not know.
	ErrUnknownEvent = errors.New("unknown form event")

	// ErrHistoryUnsupported is returned when the price source keeps no history.
	ErrHistoryUnsupported = errors.New("price history not supported by source")

	// ErrIdempotencyMismatch is returned when an idempotency key is reused
	// with a different swap request.
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")
)

// HistorySource is implemented by price sources that keep every observation.
type HistorySource interface {
	History(ctx context.Context, currency string, since time.Time) ([]feed.Record, error)
}

// Options configure an ExchangeService.
type Options struct {
	SourceName     string
	SubmitDelay    time.Duration
	IconBaseURL    string
	IdempotencyTTL time.Duration
	RefreshTimeout time.Duration
}

// ExchangeService owns the price table for the lifetime of the process
// and hosts the calculator for the transport layer.
type ExchangeService struct {
	source  feed.Source
	cache   *PriceCache
	kv      KV
	metrics *metrics.Metrics
	logger  *zap.Logger
	opts    Options

	table atomic.Pointer[exchange.PriceTable]

	mu        sync.RWMutex
	state     models.FeedState
	lastErr   string
	updatedAt time.Time

	refreshes singleflight.Group
	inflight  sync.Map
}

// NewExchangeService creates a service in the loading state with an empty
// price table. kv may be nil, which disables cross-request idempotency.
func NewExchangeService(source feed.Source, cache *PriceCache, kv KV, m *metrics.Metrics, opts Options, logger *zap.Logger) *ExchangeService {
	if opts.SourceName == "" {
		opts.SourceName = "http"
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = time.Minute
	}

	s := &ExchangeService{
		source:  source,
		cache:   cache,
		kv:      kv,
		metrics: m,
		logger:  logger,
		opts:    opts,
		state:   models.FeedLoading,
	}
	s.table.Store(exchange.EmptyPriceTable())
	return s
}

// Table returns the current price table snapshot.
func (s *ExchangeService) Table() *exchange.PriceTable {
	return s.table.Load()
}

// Status reports the price table lifecycle.
func (s *ExchangeService) Status() models.FeedStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.FeedStatus{
		State:      s.state,
		Source:     s.opts.SourceName,
		Error:      s.lastErr,
		Currencies: s.Table().Len(),
		UpdatedAt:  s.updatedAt,
		Cache:      s.cache.GetStats(),
	}
}

// Refresh loads a new price table. Concurrent callers with the same force
// flag share one fetch. With force the cached snapshot is dropped and the
// source is always asked, which is what a manual retry wants.
//
// The fetch runs detached from ctx under its own timeout. A caller whose
// ctx ends stops waiting and gets ctx.Err(); the fetch and the current
// table are unaffected.
func (s *ExchangeService) Refresh(ctx context.Context, force bool) error {
	key := "refresh"
	if force {
		key = "refresh:force"
	}

	ch := s.refreshes.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RefreshTimeout)
		defer cancel()
		return nil, s.refresh(fetchCtx, force)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("joined in-flight price refresh", zap.Bool("force", force))
		}
		return res.Err
	case <-ctx.Done():
		s.logger.Debug("stopped waiting for price refresh", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

func (s *ExchangeService) refresh(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.state != models.FeedReady {
		s.state = models.FeedLoading
	}
	s.mu.Unlock()

	if force {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("failed to invalidate cached prices", zap.Error(err))
		}
	} else {
		if records, err := s.cache.Get(ctx); err == nil {
			s.install(records)
			s.metrics.FeedFetches.WithLabelValues("cache", "success").Inc()
			return nil
		}
	}

	records, err := s.source.Fetch(ctx)
	if err != nil {
		s.metrics.FeedFetches.WithLabelValues(s.opts.SourceName, "error").Inc()
		s.fail(err)
		return fmt.Errorf("refresh prices: %w", err)
	}

	s.install(records)
	s.metrics.FeedFetches.WithLabelValues(s.opts.SourceName, "success").Inc()

	if err := s.cache.Set(ctx, records); err != nil {
		s.logger.Error("failed to cache prices", zap.Error(err))
	}
	return nil
}

func (s *ExchangeService) install(records []feed.Record) {
	table := feed.BuildTable(records)
	s.table.Store(table)
	s.metrics.PriceTableSize.Set(float64(table.Len()))

	s.mu.Lock()
	s.state = models.FeedReady
	s.lastErr = ""
	s.updatedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("price table loaded",
		zap.Int("records", len(records)),
		zap.Int("currencies", table.Len()))
}

func (s *ExchangeService) fail(err error) {
	s.table.Store(exchange.EmptyPriceTable())
	s.metrics.PriceTableSize.Set(0)

	s.mu.Lock()
	s.state = models.FeedFailed
	s.lastErr = err.Error()
	s.mu.Unlock()

	s.logger.Error("failed to load price table", zap.Error(err))
}

func (s *ExchangeService) readyTable() (*exchange.PriceTable, error) {
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	if state != models.FeedReady {
		return nil, fmt.Errorf("%w: feed %s", ErrPricesUnavailable, state)
	}
	return s.Table(), nil
}

// Currencies lists the priced currencies matching query, sorted by symbol.
func (s *ExchangeService) Currencies(query string) ([]models.CurrencyOption, error) {
	table, err := s.readyTable()
	if err != nil {
		return nil, err
	}

	quotes := table.Search(query)
	options := make([]models.CurrencyOption, 0, len(quotes))
	for _, q := range quotes {
		options = append(options, models.CurrencyOption{
			Symbol:    q.Symbol,
			Price:     q.Price,
			IconURL:   s.IconURL(q.Symbol),
			UpdatedAt: q.Date,
		})
	}
	return options, nil
}

// IconURL returns the token icon location for symbol.
func (s *ExchangeService) IconURL(symbol string) string {
	if s.opts.IconBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s.svg", strings.TrimRight(s.opts.IconBaseURL, "/"), strings.ToUpper(symbol))
}

// GetRate returns the rate between two currencies.
func (s *ExchangeService) GetRate(from, to string) (*models.RateResponse, error) {
	table, err := s.readyTable()
	if err != nil {
		return nil, err
	}

	sel := exchange.Selection{From: from, To: to}
	if err := exchange.ValidateSelection(sel); err != nil {
		return nil, err
	}

	rate, ok := table.Rate(sel)
	if !ok {
		return nil, fmt.Errorf("rate %s/%s: %w", from, to, exchange.ErrRateUnavailable)
	}
	inverse, _ := table.Rate(exchange.Selection{From: to, To: from})

	fq, _ := table.Quote(from)
	tq, _ := table.Quote(to)
	ts := fq.Date
	if tq.Date.Before(ts) {
		ts = tq.Date
	}

	return &models.RateResponse{
		FromCurrency:  fq.Symbol,
		ToCurrency:    tq.Symbol,
		ExchangeRate:  rate.StringFixed(exchange.Precision),
		InverseRate:   inverse.StringFixed(exchange.Precision),
		RateTimestamp: ts,
	}, nil
}

// Quote applies one form event to the submitted form and returns the
// resulting form with its derived values.
func (s *ExchangeService) Quote(req *models.QuoteRequest) (*models.QuoteResponse, error) {
	table, err := s.readyTable()
	if err != nil {
		return nil, err
	}

	state := form.State{
		Selection: exchange.Selection{From: req.FromCurrency, To: req.ToCurrency},
		Amounts:   exchange.AmountPair{From: req.FromAmount, To: req.ToAmount},
	}

	switch req.Event {
	case models.EventNone:
	case models.EventFromAmountEdited:
		state = state.OnFromAmountEdited(table, req.Value)
	case models.EventToAmountEdited:
		state = state.OnToAmountEdited(table, req.Value)
	case models.EventCurrencySelected:
		side := form.Side(req.Side)
		if side != form.SideFrom && side != form.SideTo {
			return nil, fmt.Errorf("%w: side %q", ErrUnknownEvent, req.Side)
		}
		state = state.OnCurrencySelected(table, side, req.Symbol)
	case models.EventSwapDirection:
		state = state.OnSwapDirection()
	case models.EventMax:
		state = state.OnMax(table)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, req.Event)
	}

	resp := &models.QuoteResponse{
		FromCurrency: state.Selection.From,
		ToCurrency:   state.Selection.To,
		FromAmount:   state.Amounts.From,
		ToAmount:     state.Amounts.To,
	}

	if rate, ok := table.Rate(state.Selection); ok {
		resp.ExchangeRate = rate.StringFixed(exchange.Precision)
	}
	resp.EstimatedAmount, _ = state.Estimate(table)

	usd := state.USDValues(table)
	resp.FromUSDValue = usd.From
	resp.ToUSDValue = usd.To

	if err := exchange.ValidateSelection(state.Selection); err != nil {
		resp.SelectionError = exchange.ErrSameCurrency.Error()
	}

	event := req.Event
	if event == models.EventNone {
		event = "none"
	}
	s.metrics.Quotes.WithLabelValues(event, fmt.Sprint(resp.EstimatedAmount != "")).Inc()

	return resp, nil
}

// Submit validates the form, waits the simulated settlement delay and
// returns the swap result. A non-empty idempotency key replays an earlier
// result for the same key and rejects a concurrent duplicate.
func (s *ExchangeService) Submit(ctx context.Context, req *models.SwapRequest, idempotencyKey string) (*models.SwapResult, error) {
	state := form.State{
		Selection: exchange.Selection{From: req.FromCurrency, To: req.ToCurrency},
		Amounts:   exchange.AmountPair{From: req.FromAmount, To: req.ToAmount},
	}
	if err := state.Validate(); err != nil {
		s.metrics.Submits.WithLabelValues("invalid").Inc()
		return nil, err
	}

	fingerprint := requestFingerprint(req)
	if idempotencyKey != "" {
		if cached, err := s.getIdempotentSwap(ctx, idempotencyKey); err == nil && cached.Result != nil {
			if cached.RequestHash != fingerprint {
				s.metrics.Submits.WithLabelValues("key_reused").Inc()
				return nil, ErrIdempotencyMismatch
			}
			s.metrics.Submits.WithLabelValues("replayed").Inc()
			return cached.Result, nil
		}
		if _, loaded := s.inflight.LoadOrStore(idempotencyKey, struct{}{}); loaded {
			s.metrics.Submits.WithLabelValues("duplicate").Inc()
			return nil, ErrSubmitInProgress
		}
		defer s.inflight.Delete(idempotencyKey)

		locked, err := s.lockSubmit(ctx, idempotencyKey)
		if err != nil {
			s.logger.Warn("failed to lock swap submission", zap.Error(err), zap.String("idempotency_key", idempotencyKey))
		} else if !locked {
			s.metrics.Submits.WithLabelValues("duplicate").Inc()
			return nil, ErrSubmitInProgress
		} else {
			defer s.unlockSubmit(idempotencyKey)
		}
	}

	if err := s.wait(ctx); err != nil {
		s.metrics.Submits.WithLabelValues("cancelled").Inc()
		return nil, err
	}

	// prices may have been refreshed during the delay
	table, err := s.readyTable()
	if err != nil {
		s.metrics.Submits.WithLabelValues("rate_unavailable").Inc()
		return nil, fmt.Errorf("%w: %v", exchange.ErrRateUnavailable, err)
	}

	rate, ok := table.Rate(state.Selection)
	if !ok {
		s.metrics.Submits.WithLabelValues("rate_unavailable").Inc()
		return nil, fmt.Errorf("swap %s/%s: %w", req.FromCurrency, req.ToCurrency, exchange.ErrRateUnavailable)
	}
	estimate, _ := state.Estimate(table)

	result := &models.SwapResult{
		ID:              uuid.New().String(),
		FromAmount:      req.FromAmount,
		FromCurrency:    req.FromCurrency,
		ToCurrency:      req.ToCurrency,
		EstimatedAmount: estimate,
		ExchangeRate:    rate.StringFixed(exchange.Precision),
		CreatedAt:       time.Now().UTC(),
	}

	if idempotencyKey != "" {
		s.cacheIdempotentSwap(ctx, idempotencyKey, &idempotentSwap{RequestHash: fingerprint, Result: result})
	}

	s.metrics.Submits.WithLabelValues("success").Inc()
	s.logger.Info("swap submitted",
		zap.String("swap_id", result.ID),
		zap.String("from", result.FromCurrency),
		zap.String("to", result.ToCurrency),
		zap.String("rate", result.ExchangeRate))

	return result, nil
}

// History returns the recorded prices of one currency over the last days.
func (s *ExchangeService) History(ctx context.Context, currency string, days int) ([]models.PricePoint, error) {
	hs, ok := s.source.(HistorySource)
	if !ok {
		return nil, ErrHistoryUnsupported
	}

	records, err := hs.History(ctx, currency, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("price history %s: %w", currency, err)
	}

	points := make([]models.PricePoint, 0, len(records))
	for _, r := range records {
		points = append(points, models.PricePoint{Currency: r.Currency, Price: r.Price, Date: r.Date})
	}
	return points, nil
}

func (s *ExchangeService) wait(ctx context.Context) error {
	if s.opts.SubmitDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.opts.SubmitDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// idempotentSwap is what is stored under an idempotency key.
type idempotentSwap struct {
	RequestHash string             `json:"request_hash"`
	Result      *models.SwapResult `json:"result"`
}

// requestFingerprint identifies a swap request independent of currency
// case and surrounding whitespace.
func requestFingerprint(req *models.SwapRequest) string {
	h := sha256.New()
	for _, part := range []string{
		exchange.Normalize(req.FromCurrency),
		exchange.Normalize(req.ToCurrency),
		strings.TrimSpace(req.FromAmount),
		strings.TrimSpace(req.ToAmount),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *ExchangeService) getIdempotentSwap(ctx context.Context, key string) (*idempotentSwap, error) {
	if s.kv == nil {
		return nil, ErrCacheMiss
	}

	data, err := s.kv.Get(ctx, swapKey(key))
	if err != nil {
		return nil, err
	}

	var entry idempotentSwap
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

func (s *ExchangeService) cacheIdempotentSwap(ctx context.Context, key string, entry *idempotentSwap) {
	if s.kv == nil {
		return
	}
	data, _ := json.Marshal(entry)
	if err := s.kv.Set(ctx, swapKey(key), data, s.opts.IdempotencyTTL); err != nil {
		s.logger.Warn("failed to cache swap result", zap.Error(err), zap.String("idempotency_key", key))
	}
}

// lockSubmit claims key across instances sharing redis. Without redis the
// in-process guard is all there is and the lock always succeeds.
func (s *ExchangeService) lockSubmit(ctx context.Context, key string) (bool, error) {
	if s.kv == nil {
		return true, nil
	}
	return s.kv.SetNX(ctx, swapKey(key)+":lock", "1", s.opts.SubmitDelay+30*time.Second)
}

func (s *ExchangeService) unlockSubmit(key string) {
	if s.kv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.kv.Delete(ctx, swapKey(key)+":lock"); err != nil {
		s.logger.Warn("failed to release swap lock", zap.Error(err), zap.String("idempotency_key", key))
	}
}

func swapKey(key string) string {
	return fmt.Sprintf("idempotency:swap:%s", key)
}
