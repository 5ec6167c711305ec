package marketdata

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/equity"

	"dcf_valuation/pkg/core/logger"
	"dcf_valuation/pkg/models"
)

// YahooProvider reads market cap, price and shares from Yahoo Finance.
type YahooProvider struct {
	getEquity  func(symbol string) (*finance.Equity, error)
	MaxRetries int
	BaseDelay  time.Duration
}

// NewYahooProvider returns a provider backed by finance-go.
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{
		getEquity:  equity.Get,
		MaxRetries: 2,
		BaseDelay:  time.Second,
	}
}

// Quote implements Provider.
func (y *YahooProvider) Quote(ctx context.Context, ticker string) (*models.MarketData, error) {
	symbol, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)

	var (
		eq      *finance.Equity
		lastErr error
	)
	for attempt := 0; attempt <= y.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := y.BaseDelay * time.Duration(1<<(attempt-1))
			log.Warnw("yahoo quote failed, retrying", "ticker", symbol, "error", lastErr, "wait", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		eq, lastErr = y.getEquity(symbol)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, lastErr)
	}
	if eq == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}

	md := &models.MarketData{
		Ticker:    symbol,
		MarketCap: float64(eq.MarketCap),
		Price:     eq.RegularMarketPrice,
		Currency:  eq.CurrencyID,
		Shares:    float64(eq.SharesOutstanding),
		AsOf:      time.Now().UTC(),
	}
	if md.MarketCap == 0 && md.Price > 0 && md.Shares > 0 {
		md.MarketCap = md.Price * md.Shares
	}
	log.Infow("market quote", "ticker", symbol, "market_cap", md.MarketCap, "currency", md.Currency)
	return md, nil
}
