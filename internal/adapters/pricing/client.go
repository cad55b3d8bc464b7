// Package pricing implements the valuation.Pricer contract against a
// market-price feed. The feed is fetched as one table and cached, so a
// batch of queries is answered locally.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bonebunny/lootledger/internal/domain/valuation"
	"github.com/bonebunny/lootledger/pkg/logger"
	"github.com/bonebunny/lootledger/pkg/metrics"
)

const (
	defaultCacheTTL    = 10 * time.Minute
	defaultHTTPTimeout = 15 * time.Second
	userAgent          = "lootledger/0.1"

	// majorUnitName is the currency whose minor-unit rate defines the
	// minor/major conversion.
	majorUnitName = "Exalted Orb"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithCacheTTL sets how long a fetched price table stays fresh.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client answers pricing batches from a cached feed table.
type Client struct {
	baseURL  string
	league   string
	cacheTTL time.Duration
	httpc    *http.Client
	log      logger.Logger

	mu        sync.Mutex
	table     map[string]tableEntry
	majorRate float64
	fetched   time.Time
}

type tableEntry struct {
	minorEach float64
	category  string
}

// NewClient creates a pricing client for one league economy.
func NewClient(baseURL, league string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		league:   league,
		cacheTTL: defaultCacheTTL,
		httpc:    &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("pricing")
	}
	return c
}

// PriceBatch answers one query per input line. Unknown items come back as
// zero-valued, never as an error.
func (c *Client) PriceBatch(ctx context.Context, queries []valuation.Query) ([]valuation.Price, error) {
	start := time.Now()
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	metrics.RecordPricingLookup(time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	prices := make([]valuation.Price, len(queries))
	for i, q := range queries {
		entry, ok := c.table[q.TypeName]
		if !ok {
			prices[i] = valuation.Price{Category: q.CategoryHint}
			continue
		}
		major := 0.0
		if c.majorRate > 0 {
			major = entry.minorEach / c.majorRate
		}
		prices[i] = valuation.Price{
			UnitValueMinor: entry.minorEach,
			UnitValueMajor: major,
			Category:       entry.category,
			Known:          true,
		}
	}
	return prices, nil
}

// feedResponse mirrors the market feed's overview payload.
type feedResponse struct {
	Lines []struct {
		CurrencyTypeName string  `json:"currencyTypeName"`
		ChaosEquivalent  float64 `json:"chaosEquivalent"`
		DetailsID        string  `json:"detailsId"`
	} `json:"lines"`
}

// refresh re-fetches the price table when the cache has gone stale.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	fresh := c.table != nil && time.Since(c.fetched) < c.cacheTTL
	c.mu.Unlock()
	if fresh {
		return nil
	}

	endpoint := fmt.Sprintf("%s/currencyoverview?league=%s&type=Currency",
		c.baseURL, url.QueryEscape(c.league))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: feed returned %s", ErrFeedUnavailable, resp.Status)
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("%w: decoding feed payload: %w", ErrFeedUnavailable, err)
	}

	table := make(map[string]tableEntry, len(payload.Lines))
	majorRate := 0.0
	for _, line := range payload.Lines {
		table[line.CurrencyTypeName] = tableEntry{
			minorEach: line.ChaosEquivalent,
			category:  "currency",
		}
		if line.CurrencyTypeName == majorUnitName {
			majorRate = line.ChaosEquivalent
		}
	}

	c.mu.Lock()
	c.table = table
	c.majorRate = majorRate
	c.fetched = time.Now()
	c.mu.Unlock()

	c.log.Debug(ctx, "price table refreshed",
		logger.Int("entries", len(table)),
		logger.Float64("major_rate", majorRate),
	)
	return nil
}
