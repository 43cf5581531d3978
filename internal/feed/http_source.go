// internal/feed/http_source.go
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultURL is the public price list the swap form is quoted against.
const DefaultURL = "https://interview.switcheo.com/prices.json"

// StatusError reports a non-200 answer from the feed.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("price feed returned status %d", e.Code)
}

// HTTPOptions tunes an HTTPSource. Zero values fall back to defaults.
type HTTPOptions struct {
	Timeout        time.Duration // per attempt
	Retries        int           // attempts after the first
	Backoff        time.Duration // initial backoff, doubled per retry
	RequestsPerSec float64
	Burst          int
}

func (o HTTPOptions) withDefaults() HTTPOptions {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = 200 * time.Millisecond
	}
	if o.RequestsPerSec <= 0 {
		o.RequestsPerSec = 1
	}
	if o.Burst <= 0 {
		o.Burst = 3
	}
	return o
}

// HTTPSource fetches the price list over HTTP.
type HTTPSource struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	retrier    *retrier.Retrier
	logger     *zap.Logger
}

// NewHTTPSource creates a rate limited, retrying feed client.
func NewHTTPSource(url string, opts HTTPOptions, logger *zap.Logger) *HTTPSource {
	opts = opts.withDefaults()
	if url == "" {
		url = DefaultURL
	}

	return &HTTPSource{
		url:        url,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		retrier:    retrier.New(retrier.ExponentialBackoff(opts.Retries, opts.Backoff), statusClassifier{}),
		logger:     logger,
	}
}

// Fetch downloads and decodes the feed. Records that fail to decode are
// dropped and logged as a count.
func (s *HTTPSource) Fetch(ctx context.Context) ([]Record, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("price feed rate limit: %w", err)
	}

	var body []byte
	attempt := 0
	err := s.retrier.RunCtx(ctx, func(ctx context.Context) error {
		attempt++
		b, err := s.get(ctx)
		if err != nil {
			s.logger.Warn("price feed request failed",
				zap.String("url", s.url),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch price feed: %w", err)
	}

	records, skipped, err := Decode(body)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.logger.Warn("skipped malformed price records", zap.Int("skipped", skipped))
	}

	s.logger.Debug("price feed fetched",
		zap.Int("records", len(records)),
		zap.Int("attempts", attempt))

	return records, nil
}

func (s *HTTPSource) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// statusClassifier retries transport errors, 429 and 5xx answers.
type statusClassifier struct{}

func (statusClassifier) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}
	var se *StatusError
	if errors.As(err, &se) && se.Code != http.StatusTooManyRequests && se.Code < 500 {
		return retrier.Fail
	}
	return retrier.Retry
}
