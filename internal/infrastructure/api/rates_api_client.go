package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/domain/entity"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
)

const (
	// DefaultRatesURL serves the latest ECB reference rates against EUR
	DefaultRatesURL = "https://api.frankfurter.app/latest"

	maxBodyBytes = 1 << 20
)

// RatesAPIClient fetches the latest rate table from a JSON rates endpoint
type RatesAPIClient struct {
	url        string
	httpClient *http.Client
	logger     logger.Logger

	maxRetries      int
	initialInterval time.Duration
}

// Option configures a RatesAPIClient
type Option func(*RatesAPIClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(r *RatesAPIClient) {
		if c != nil {
			r.httpClient = c
		}
	}
}

// WithRetries sets how many times a transport failure is retried and the first backoff interval
func WithRetries(maxRetries int, initialInterval time.Duration) Option {
	return func(r *RatesAPIClient) {
		if maxRetries >= 0 {
			r.maxRetries = maxRetries
		}
		if initialInterval > 0 {
			r.initialInterval = initialInterval
		}
	}
}

// NewRatesAPIClient creates a new client for url (DefaultRatesURL when empty)
func NewRatesAPIClient(url string, log logger.Logger, opts ...Option) *RatesAPIClient {
	if url == "" {
		url = DefaultRatesURL
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	c := &RatesAPIClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:          log,
		maxRetries:      2,
		initialInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ratesResponse represents the response structure of the rates endpoint.
// Rates is a pointer map so a missing "rates" member can be told apart from an empty one.
type ratesResponse struct {
	Base  string              `json:"base"`
	Date  string              `json:"date"`
	Rates *map[string]float64 `json:"rates"`
}

// FetchRates retrieves the current rate table. Transport failures and 5xx answers are retried
// with exponential backoff; anything else fails immediately.
func (c *RatesAPIClient) FetchRates(ctx context.Context) (*entity.RateTable, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.MaxElapsedTime = 0

	attempt := 0
	operation := func() (*entity.RateTable, error) {
		attempt++
		table, err := c.fetchOnce(ctx)
		if err != nil {
			c.logger.Warn("Exchange rate request failed", map[string]interface{}{
				"url":     c.url,
				"attempt": attempt,
				"error":   err.Error(),
			})
		}
		return table, err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)
	table, err := backoff.RetryWithData(operation, b)
	if err != nil {
		if !errors.Is(err, apperrors.ErrProviderUnavailable) && !errors.Is(err, apperrors.ErrMalformedProviderResponse) {
			// context expiry between attempts surfaces as a bare ctx error
			err = fmt.Errorf("%w: %v", apperrors.ErrProviderUnavailable, err)
		}
		return nil, err
	}

	c.logger.Debug("Exchange rates fetched", map[string]interface{}{
		"url":      c.url,
		"base":     table.Base,
		"date":     table.Date,
		"rates":    len(table.Rates),
		"attempts": attempt,
	})
	return table, nil
}

func (c *RatesAPIClient) fetchOnce(ctx context.Context) (*entity.RateTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: failed to create request: %v", apperrors.ErrProviderUnavailable, err))
	}
	req.Header.Add("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", apperrors.ErrProviderUnavailable, err))
		}
		return nil, fmt.Errorf("%w: failed to execute request: %v", apperrors.ErrProviderUnavailable, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Error closing response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", apperrors.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: API returned error status %d", apperrors.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("%w: API returned error status %d", apperrors.ErrProviderUnavailable, resp.StatusCode))
	}

	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: failed to decode response: %v", apperrors.ErrMalformedProviderResponse, err))
	}
	if parsed.Rates == nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: response has no rates", apperrors.ErrMalformedProviderResponse))
	}

	return &entity.RateTable{
		Base:  parsed.Base,
		Date:  parsed.Date,
		Rates: *parsed.Rates,
	}, nil
}
