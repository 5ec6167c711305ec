// Package marketdata supplies market capitalisation and price snapshots.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dcf_valuation/pkg/models"
)

// Provider returns a market snapshot for a ticker.
type Provider interface {
	Quote(ctx context.Context, ticker string) (*models.MarketData, error)
}

// ErrNotFound is returned when a provider has no data for a ticker.
var ErrNotFound = errors.New("market data not found")

// NormalizeTicker trims and upper-cases a ticker, rejecting empty or
// implausibly long symbols.
func NormalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return "", fmt.Errorf("ticker cannot be empty")
	}
	if len(t) > 10 {
		return "", fmt.Errorf("ticker too long: %s", t)
	}
	return t, nil
}

// =============================================================================
// STATIC PROVIDER
// =============================================================================

// StaticProvider serves fixed snapshots, e.g. from a config file or tests.
type StaticProvider map[string]models.MarketData

// Quote implements Provider.
func (s StaticProvider) Quote(_ context.Context, ticker string) (*models.MarketData, error) {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	md, ok := s[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, t)
	}
	return &md, nil
}

// =============================================================================
// CACHE
// =============================================================================

type cacheEntry struct {
	data    models.MarketData
	fetched time.Time
}

// CachedProvider memoises another provider for ttl. Safe for concurrent use.
type CachedProvider struct {
	next Provider
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCachedProvider wraps next.
func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, ttl: ttl, now: time.Now, entries: map[string]cacheEntry{}}
}

// Quote implements Provider.
func (c *CachedProvider) Quote(ctx context.Context, ticker string) (*models.MarketData, error) {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	e, ok := c.entries[t]
	c.mu.Unlock()
	if ok && c.now().Sub(e.fetched) < c.ttl {
		md := e.data
		return &md, nil
	}

	md, err := c.next.Quote(ctx, t)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[t] = cacheEntry{data: *md, fetched: c.now()}
	c.mu.Unlock()
	return md, nil
}

// =============================================================================
// CURRENCY
// =============================================================================

// ToReporting converts market cap and price into the reporting currency.
// fx is reporting units per quote unit; amounts are rounded to cents.
func ToReporting(md models.MarketData, fx float64, currency string) models.MarketData {
	if fx == 0 {
		fx = 1
	}
	rate := decimal.NewFromFloat(fx)
	out := md
	out.MarketCap = decimal.NewFromFloat(md.MarketCap).Mul(rate).Round(2).InexactFloat64()
	out.Price = decimal.NewFromFloat(md.Price).Mul(rate).Round(2).InexactFloat64()
	if currency != "" {
		out.Currency = currency
	}
	return out
}
