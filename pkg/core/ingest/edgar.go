// Package ingest turns external financial data (CSV exports and the SEC
// XBRL companyfacts API) into canonical models.Financials.
// API documentation: https://www.sec.gov/developer
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"dcf_valuation/pkg/core/logger"
)

const (
	// SEC EDGAR API endpoints
	CompanyFactsBaseURL = "https://data.sec.gov/api/xbrl/companyfacts"
	CompanyTickersURL   = "https://www.sec.gov/files/company_tickers.json"

	// SEC requires a User-Agent with a name and contact address
	DefaultUserAgent = "DCFValuation/1.0 (research@example.com)"
)

// =============================================================================
// SEC EDGAR CLIENT
// =============================================================================

// EDGARClient handles SEC EDGAR API requests.
type EDGARClient struct {
	httpClient *http.Client

	UserAgent  string
	BaseURL    string
	TickersURL string
	MaxRetries int
	Backoff    time.Duration // wait before retry n is Backoff * 2^n
}

// NewEDGARClient creates a client. An empty userAgent uses DefaultUserAgent.
func NewEDGARClient(userAgent string) *EDGARClient {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &EDGARClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		UserAgent:  userAgent,
		BaseURL:    CompanyFactsBaseURL,
		TickersURL: CompanyTickersURL,
		MaxRetries: 3,
		Backoff:    time.Second,
	}
}

// PadCIK zero-pads a CIK to 10 digits.
func PadCIK(cik string) string {
	return fmt.Sprintf("%010s", strings.TrimLeft(strings.TrimSpace(cik), "0"))
}

// FetchCompanyFacts downloads the raw companyfacts JSON for a CIK.
// HTTP 429, 5xx and transport errors are retried with exponential backoff.
func (c *EDGARClient) FetchCompanyFacts(ctx context.Context, cik string) ([]byte, error) {
	url := fmt.Sprintf("%s/CIK%s.json", strings.TrimRight(c.BaseURL, "/"), PadCIK(cik))
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		log.Infow("fetching companyfacts", "url", url, "attempt", attempt)

		body, retry, err := c.get(ctx, url)
		if err == nil {
			log.Infow("received companyfacts", "bytes", len(body))
			return body, nil
		}
		lastErr = err
		if !retry || attempt == c.MaxRetries {
			break
		}

		wait := time.Duration(float64(c.Backoff) * math.Pow(2, float64(attempt)))
		log.Warnw("companyfacts request failed, retrying", "error", err, "wait", wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

// get returns the body, or whether the failure is worth retrying.
func (c *EDGARClient) get(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("SEC API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, fmt.Errorf("SEC API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}
	return body, false, nil
}

// LookupCIKByTicker finds the CIK for a ticker via the SEC mapping file.
func (c *EDGARClient) LookupCIKByTicker(ctx context.Context, ticker string) (string, error) {
	body, _, err := c.get(ctx, c.TickersURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch ticker mapping: %w", err)
	}

	// { "0": {"cik_str": 320193, "ticker": "AAPL", "title": "..."}, ... }
	var mapping map[string]struct {
		CIK    int    `json:"cik_str"`
		Ticker string `json:"ticker"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &mapping); err != nil {
		return "", fmt.Errorf("failed to parse ticker mapping: %w", err)
	}

	ticker = strings.ToUpper(ticker)
	for _, entry := range mapping {
		if entry.Ticker == ticker {
			return fmt.Sprintf("%010d", entry.CIK), nil
		}
	}
	return "", fmt.Errorf("ticker %s not found in SEC database", ticker)
}

// FetchFinancials downloads and parses companyfacts in one step.
func (c *EDGARClient) FetchFinancials(ctx context.Context, cik string, opts XBRLOptions) (*CompanyFacts, []byte, error) {
	raw, err := c.FetchCompanyFacts(ctx, cik)
	if err != nil {
		return nil, nil, err
	}
	facts, err := ParseCompanyFacts(raw, opts)
	if err != nil {
		return nil, raw, err
	}
	return facts, raw, nil
}
