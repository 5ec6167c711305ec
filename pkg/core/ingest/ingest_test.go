package ingest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"dcf_valuation/pkg/models"
)

const messyCSV = `,Revenue,Income From Operations,net_income,income_tax_expense,Cash And Equivalents,long_term_debt,Shares Outstanding Basic,interest_expense
2023-12-31,"$1,000",250,180,45,€300,400,50,-
2022-12-31,900,200,150,40,280,420,52,20
`

func TestLoadFinancialsCSV_AliasesAndCleaning(t *testing.T) {
	fin, err := LoadFinancialsCSV(strings.NewReader(messyCSV), nil)
	require.NoError(t, err)
	require.Len(t, fin, 2)

	// Sorted oldest first
	require.Equal(t, 2022, fin[0].FiscalYear())
	latest := fin.Latest()
	require.Equal(t, 1000.0, latest.Revenue)
	require.Equal(t, 250.0, models.Value(latest.OperatingIncome))
	require.Equal(t, 300.0, latest.Cash)
	require.Equal(t, 400.0, latest.TotalDebt)
	require.Equal(t, 50.0, latest.SharesOutstanding)
	require.Nil(t, latest.InterestExpense, "bare hyphen is missing")
	require.Equal(t, 20.0, models.Value(fin[0].InterestExpense))
}

func TestSaveFinancialsCSV_RoundTrip(t *testing.T) {
	fin, err := LoadFinancialsCSV(strings.NewReader(messyCSV), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, SaveFinancialsCSV(&buf, fin))

	back, err := LoadFinancialsCSV(&buf, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(fin, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeColumnAndParse(t *testing.T) {
	require.Equal(t, "cash_and_equivalents", NormalizeColumn(" Cash And-Equivalents "))
	require.Equal(t, "rd_expense", NormalizeColumn("R&D Expense"))

	v, ok := ParseNumber("£1,234.5")
	require.True(t, ok)
	require.Equal(t, 1234.5, v)
	_, ok = ParseNumber("n/a")
	require.False(t, ok)

	d, err := ParseDate("2021")
	require.NoError(t, err)
	require.Equal(t, time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC), d)
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, Validate(nil), ErrInvalidFinancials)
	require.ErrorIs(t, Validate(models.Financials{{Revenue: 0, SharesOutstanding: 1}}), ErrInvalidFinancials)
	require.ErrorIs(t, Validate(models.Financials{{Revenue: 10}}), ErrInvalidFinancials)
	require.NoError(t, Validate(models.Financials{{Revenue: 10, SharesOutstanding: 1}}))
}

const companyFacts = `{
  "cik": 1234,
  "entityName": "Example Corp",
  "facts": {
    "us-gaap": {
      "RevenueFromContractWithCustomerExcludingAssessedTax": {"units": {"USD": [
        {"end": "2023-12-31", "val": 1100, "form": "10-K"}
      ]}},
      "Revenues": {"units": {"USD": [
        {"end": "2022-12-31", "val": 900, "form": "10-K"},
        {"end": "2023-12-31", "val": 999, "form": "10-K"},
        {"end": "2023-09-30", "val": 250, "form": "10-Q"}
      ]}},
      "OperatingIncomeLoss": {"units": {"USD": [
        {"end": "2022-12-31", "val": 200, "form": "10-K"},
        {"end": "2023-12-31", "val": 300, "form": "10-K"}
      ]}},
      "CashAndCashEquivalentsAtCarryingValue": {"units": {"USD": [
        {"end": "2022-01-01", "val": 50, "form": "10-K"},
        {"end": "2022-12-31", "val": 80, "form": "10-K"},
        {"end": "2023-12-31", "val": 120, "form": "10-K"}
      ]}},
      "LongTermDebt": {"units": {"USD": [
        {"end": "2023-12-31", "val": 400, "form": "10-K"}
      ]}},
      "CommonStockSharesOutstanding": {"units": {"shares": [
        {"end": "2022-12-31", "val": 10, "form": "10-K"},
        {"end": "2023-12-31", "val": 11, "form": "10-K"}
      ]}}
    }
  }
}`

func TestParseCompanyFacts(t *testing.T) {
	facts, err := ParseCompanyFacts([]byte(companyFacts), XBRLOptions{})
	require.NoError(t, err)
	require.Equal(t, "Example Corp", facts.EntityName)

	fin := facts.Financials
	require.Len(t, fin, 2, "opening snapshot collapses into its fiscal year")
	require.Equal(t, time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC), fin[0].FiscalYearEnd)
	require.Equal(t, 80.0, fin[0].Cash)

	latest := fin.Latest()
	require.Equal(t, 1100.0, latest.Revenue, "first tag in the concept map wins")
	require.Equal(t, 300.0, models.Value(latest.OperatingIncome))
	require.Equal(t, 400.0, latest.TotalDebt)
	require.Equal(t, 11.0, latest.SharesOutstanding)

	trimmed, err := ParseCompanyFacts([]byte(companyFacts), XBRLOptions{YearsToKeep: 1})
	require.NoError(t, err)
	require.Len(t, trimmed.Financials, 1)
	require.Equal(t, 2023, trimmed.Financials[0].FiscalYear())

	_, err = ParseCompanyFacts([]byte(companyFacts), XBRLOptions{Taxonomy: "ifrs-full"})
	require.Error(t, err)
}

func TestEDGARClient_RetriesAndUserAgent(t *testing.T) {
	var calls int32
	var agent, path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		path.Store(r.URL.Path)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(companyFacts))
	}))
	defer srv.Close()

	c := NewEDGARClient("tester test@example.com")
	c.BaseURL = srv.URL
	c.Backoff = time.Millisecond

	facts, raw, err := c.FetchFinancials(context.Background(), "1234", XBRLOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Equal(t, "tester test@example.com", agent.Load())
	require.Equal(t, "/CIK0000001234.json", path.Load())
	require.Len(t, facts.Financials, 2)
}

func TestEDGARClient_NoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewEDGARClient("")
	c.BaseURL = srv.URL
	c.Backoff = time.Millisecond

	_, err := c.FetchCompanyFacts(context.Background(), "1")
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEDGARClient_LookupCIK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}}`))
	}))
	defer srv.Close()

	c := NewEDGARClient("")
	c.TickersURL = srv.URL

	cik, err := c.LookupCIKByTicker(context.Background(), "aapl")
	require.NoError(t, err)
	require.Equal(t, "0000320193", cik)

	_, err = c.LookupCIKByTicker(context.Background(), "ZZZZ")
	require.Error(t, err)
}
