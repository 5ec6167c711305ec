package report

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/marketdata"
	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/utils"
	"dcf_valuation/pkg/models"
)

func runReport(t *testing.T) *pipeline.Report {
	t.Helper()
	cfg := assumption.Config{}
	cfg.Company = assumption.Company{Name: "Acme Corp", Ticker: "ACME", Currency: "USD"}
	cfg.CostOfCapital = assumption.CostOfCapital{RiskFreeRate: 0.04, EquityRiskPremium: 0.05, Beta: 1.0}
	cfg.Projection.TerminalGrowthRate = 0.025
	cfg.Revenue.LongTermGrowthRate = 0.05
	cfg.Margins.OperatingMargin = 0.30
	cfg.Tax.EffectiveRate = 0.20
	cfg.CapitalIntensity = assumption.CapitalIntensity{CapexToRevenue: 0.05, DepreciationToRevenue: 0.03, NWCToRevenue: 0.02}
	cfg.ApplyDefaults()

	fin := models.Financials{
		{
			FiscalYearEnd: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), Revenue: 9000,
			OperatingIncome: models.Float(2600), NetIncome: 2000, IncomeTaxExpense: 500,
			Cash: 400, TotalDebt: 500, SharesOutstanding: 100,
		},
		{
			FiscalYearEnd: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), Revenue: 10000,
			OperatingIncome: models.Float(3000), NetIncome: 2400, IncomeTaxExpense: 600,
			Cash: 500, TotalDebt: 500, SharesOutstanding: 100,
		},
	}
	quotes := marketdata.StaticProvider{"ACME": {Ticker: "ACME", MarketCap: 30000, Currency: "USD"}}

	r, err := pipeline.NewPipelineOrchestrator(quotes, nil).Run(context.Background(), cfg, fin, pipeline.Options{})
	require.NoError(t, err)
	return r
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$1,234,567.89", Money(1234567.891, "USD"))
	assert.Equal(t, "-€1,234.50", Money(-1234.5, "eur"))
	assert.Equal(t, "12.00 CHF", Money(12, "CHF"))
	assert.Equal(t, "999.00", Money(999, ""))
	assert.Equal(t, NA, Money(math.NaN(), "USD"))
	assert.Equal(t, NA, Money(math.Inf(1), "USD"))

	assert.Equal(t, "$41.7K", Compact(41703.542, "USD"))
	assert.Equal(t, "2.5B", Compact(2.5e9, ""))
	assert.Equal(t, "-$3.0M", Compact(-3e6, "USD"))
	assert.Equal(t, "12", Compact(12, "CHF"))

	assert.Equal(t, "9.12%", Pct(0.0912, 2))
	assert.Equal(t, "-5.0%", Pct(-0.05, 1))
	assert.Equal(t, NA, OptPct(nil, 1))
	assert.Equal(t, "1,550", Num(1550, 0))
	assert.Equal(t, NA, OptNum(nil, 0))
}

func TestRenderMarkdown(t *testing.T) {
	r := runReport(t)
	md, err := RenderMarkdown(r)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(md, "# Acme Corp DCF Valuation"))
	for _, section := range []string{"## Summary", "## Cost of Capital", "## Free Cash Flow Projection",
		"## Sensitivity", "## Tornado", "## Reverse DCF", "## Historical Performance"} {
		assert.Contains(t, md, section)
	}
	assert.Contains(t, md, "### wacc_x_terminal_growth")
	assert.Contains(t, md, "| **WACC** | **9.00%** | |")
	assert.Contains(t, md, "| Market price | $300.00 |")

	// summary, wacc, projection, 3 sensitivity, tornado, reverse, history
	assert.Equal(t, 9, utils.CountTables(md))
}

func TestRenderMarkdown_NoDCF(t *testing.T) {
	_, err := RenderMarkdown(nil)
	assert.Error(t, err)
	_, err = RenderMarkdown(&pipeline.Report{})
	assert.Error(t, err)
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(runReport(t))
	require.NoError(t, err)
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<h1>Acme Corp DCF Valuation</h1>")
}

func TestRenderTerminal(t *testing.T) {
	out := RenderTerminal(runReport(t))
	assert.Contains(t, out, "ACME")
	assert.Contains(t, out, "Value per share")
	assert.Contains(t, out, "Largest drivers")
	assert.Contains(t, out, "Market-implied at $300.00")
	assert.Empty(t, RenderTerminal(nil))
}

func TestCSVExport(t *testing.T) {
	r := runReport(t)

	var buf bytes.Buffer
	require.NoError(t, WriteTablesCSV(&buf, r.Tables))
	var cells []*CellRecord
	require.NoError(t, gocsv.Unmarshal(&buf, &cells))
	want := 0
	for _, tbl := range r.Tables {
		want += len(tbl.XValues) * len(tbl.YValues)
	}
	require.Len(t, cells, want)
	assert.Equal(t, r.Tables[0].Name, cells[0].Table)
	assert.InDelta(t, r.Tables[0].Values[0][1], cells[1].Value, 1e-9)

	buf.Reset()
	require.NoError(t, WriteTornadoCSV(&buf, r.Tornado))
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, "parameter,base_value,low_value,high_value,low_result,high_result,base_result,swing", header)

	buf.Reset()
	require.NoError(t, WriteProjectionCSV(&buf, r.DCF.Projection))
	assert.Equal(t, len(r.DCF.Projection)+1, strings.Count(buf.String(), "\n"))
}
