package valuation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/store"
)

const company = `{
	"company": {"name": "Acme Corp", "ticker": "acme", "currency": "USD"},
	"tax": {"effective_rate": 0.20},
	"cost_of_capital": {"risk_free_rate": 0.04, "equity_risk_premium": 0.05, "beta": 1.0},
	"projection": {"terminal_growth_rate": 0.025},
	"revenue": {"long_term_growth_rate": 0.05},
	"margins": {"operating_margin": 0.30},
	"capital_intensity": {"capex_to_revenue": 0.05, "depreciation_to_revenue": 0.03, "nwc_to_revenue": 0.02}
}`

const financials = `[{
	"fiscal_year_end": "2024-12-31T00:00:00Z",
	"revenue": 10000, "operating_income": 3000, "net_income": 2400, "income_tax_expense": 600,
	"cash": 500, "total_debt": 500, "shares_outstanding": 100
}]`

func newTestServer(t *testing.T) (*httptest.Server, store.RunRepository) {
	t.Helper()
	repo, err := store.NewFileRepo(t.TempDir())
	require.NoError(t, err)
	h := NewHandler(pipeline.NewPipelineOrchestrator(nil, repo), repo, zap.NewNop().Sugar())
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, repo
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleDCF(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv.URL+"/api/valuation/dcf", `{"config": `+company+`, "financials": `+financials+`}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rep pipeline.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.Equal(t, "ACME", rep.Company.Ticker)
	assert.InDelta(t, 417.035, rep.DCF.Equity.ValuePerShare, 1e-3)
	assert.Len(t, rep.Tables, 3)
	assert.Nil(t, rep.Reverse)
}

func TestHandleDCF_RepairsSloppyJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	// Trailing comma and an unclosed object.
	body := `{"config": ` + company + `, "financials": ` + financials + `, "options": {"target_price": 350,}`
	resp := post(t, srv.URL+"/api/valuation/dcf?format=markdown", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
}

func TestHandleDCF_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv.URL+"/api/valuation/dcf", `{"config": `+company+`}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv.URL+"/api/valuation/dcf", ``)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	tgTooHigh := strings.Replace(company, `"terminal_growth_rate": 0.025`, `"terminal_growth_rate": 0.12`, 1)
	resp = post(t, srv.URL+"/api/valuation/dcf", `{"config": `+tgTooHigh+`, "financials": `+financials+`}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	noShares := strings.Replace(financials, `"shares_outstanding": 100`, `"shares_outstanding": 0`, 1)
	resp = post(t, srv.URL+"/api/valuation/dcf", `{"config": `+company+`, "financials": `+noShares+`}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	get, err := http.Get(srv.URL + "/api/valuation/dcf")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
}

func TestHandleReverse(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv.URL+"/api/valuation/reverse", `{"config": `+company+`, "financials": `+financials+`, "target_price": 417.035}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ReverseResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.InDelta(t, 0.09, out.Result.BaseWACC, 1e-12)
	assert.InDelta(t, 0.30, out.Result.OperatingMargin.Value, 0.01)
	assert.InDelta(t, 0.09, out.Result.WACC.Value, 0.001)
	assert.Len(t, out.Findings, 4)
	assert.Equal(t, 10, out.ProjectionYears)
	assert.Greater(t, out.ImpliedRevenue, 10000.0)

	resp = post(t, srv.URL+"/api/valuation/reverse", `{"config": `+company+`, "financials": `+financials+`}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleReport(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv.URL+"/api/valuation/dcf", `{"config": `+company+`, "financials": `+financials+`}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created pipeline.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	byID, err := http.Get(srv.URL + "/api/valuation/report?id=" + created.ID)
	require.NoError(t, err)
	defer byID.Body.Close()
	require.Equal(t, http.StatusOK, byID.StatusCode)
	var loaded pipeline.Report
	require.NoError(t, json.NewDecoder(byID.Body).Decode(&loaded))
	assert.Equal(t, created.ID, loaded.ID)

	html, err := http.Get(srv.URL + "/api/valuation/report?ticker=acme&format=html")
	require.NoError(t, err)
	defer html.Body.Close()
	assert.Equal(t, http.StatusOK, html.StatusCode)
	assert.Contains(t, html.Header.Get("Content-Type"), "text/html")

	missing, err := http.Get(srv.URL + "/api/valuation/report?id=nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	noQuery, err := http.Get(srv.URL + "/api/valuation/report")
	require.NoError(t, err)
	noQuery.Body.Close()
	assert.Equal(t, http.StatusBadRequest, noQuery.StatusCode)
}
