package currency

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// StaleHeader marks a rate response replayed from the last good fetch.
const StaleHeader = "X-Storefront-Stale"

// RateClient fetches the rate table from the exchange-rate endpoint.
type RateClient struct {
	http httpclient.Doer
	url  string

	mu   sync.RWMutex
	last []byte
}

// NewRateClient creates a client for the endpoint at url. When doer is a
// circuit breaker, the last good rate table is replayed while it is open.
func NewRateClient(doer httpclient.Doer, url string) *RateClient {
	c := &RateClient{url: url}
	if cb, ok := doer.(*httpclient.CircuitBreakerClient); ok {
		doer = cb.WithFallback(c.replayLast)
	}
	c.http = doer
	return c
}

func (c *RateClient) replayLast(_ context.Context, err error) (*http.Response, error) {
	c.mu.RLock()
	body := c.last
	c.mu.RUnlock()
	if body == nil {
		return nil, err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{StaleHeader: []string{"true"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}, nil
}

// FetchRates returns the current rates relative to the base currency.
func (c *RateClient) FetchRates(ctx context.Context) (domain.RateTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch exchange rates: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpclient.ParseResponseError(resp, "exchange-rate service")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read exchange rates: %w", err)
	}
	rates, err := ParseRates(body)
	if err != nil {
		return nil, err
	}
	if resp.Header.Get(StaleHeader) == "" {
		c.mu.Lock()
		c.last = body
		c.mu.Unlock()
	}
	return rates, nil
}

// ParseRates decodes either a flat {"EUR":0.9} object or one wrapped as
// {"rates":{...}}. Non-numeric fields such as "base" or "date" are skipped.
func ParseRates(body []byte) (domain.RateTable, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode exchange rates: %w", err)
	}
	if nested, ok := fields["rates"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err != nil {
			return nil, fmt.Errorf("decode exchange rates: %w", err)
		}
		fields = inner
	}

	rates := make(domain.RateTable, len(fields))
	for code, raw := range fields {
		var rate decimal.Decimal
		if err := rate.UnmarshalJSON(raw); err != nil {
			continue
		}
		if !rate.IsPositive() {
			continue
		}
		rates[strings.ToUpper(code)] = rate
	}
	return rates, nil
}
