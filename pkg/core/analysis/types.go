package analysis

import "time"

// CompanyAnalysis is the historical profile of one company.
// Metrics are nil where an input line item was not reported.
type CompanyAnalysis struct {
	Ticker       string            `json:"ticker"`
	LastAnalyzed time.Time         `json:"last_analyzed"`
	TaxRate      float64           `json:"tax_rate"` // used for NOPAT
	Timeline     []*YearlyAnalysis `json:"timeline"` // oldest first
	Summary      Summary           `json:"summary"`
}

// YearlyAnalysis contains the computed metrics for one fiscal year.
type YearlyAnalysis struct {
	FiscalYear int `json:"fiscal_year"`

	// 1. Margins
	GrossMargin     *float64 `json:"gross_margin"`
	OperatingMargin *float64 `json:"operating_margin"`
	NetMargin       *float64 `json:"net_margin"`

	// 2. Growth (vs prior year)
	Growth GrowthMetrics `json:"growth"`

	// 3. Capital intensity
	CapexToRevenue        *float64 `json:"capex_to_revenue"`
	DepreciationToRevenue *float64 `json:"depreciation_to_revenue"`
	NWCToRevenue          *float64 `json:"nwc_to_revenue"`

	// 4. Returns
	NOPAT           *float64 `json:"nopat"`
	InvestedCapital *float64 `json:"invested_capital"`
	ROIC            *float64 `json:"roic"`             // on beginning capital
	IncrementalROIC *float64 `json:"incremental_roic"` // dNOPAT / lagged dIC

	// 5. Working capital
	WorkingCapital WorkingCapital `json:"working_capital"`
}

// GrowthMetrics captures year-over-year growth rates.
type GrowthMetrics struct {
	RevenueGrowth   *float64 `json:"revenue_growth"`
	OpIncomeGrowth  *float64 `json:"op_income_growth"`
	NetIncomeGrowth *float64 `json:"net_income_growth"`
}

// WorkingCapital holds NWC = AR + inventory - AP and the day counts.
type WorkingCapital struct {
	NWC      *float64 `json:"nwc"`
	DeltaNWC *float64 `json:"delta_nwc"`
	DSO      *float64 `json:"dso"`
	DIO      *float64 `json:"dio"`
	DPO      *float64 `json:"dpo"`
	CCC      *float64 `json:"ccc"`
}

// Summary aggregates the timeline.
type Summary struct {
	Years                    int      `json:"years"`
	RevenueCAGR              *float64 `json:"revenue_cagr"`
	AvgOperatingMargin       *float64 `json:"avg_operating_margin"`
	AvgROIC                  *float64 `json:"avg_roic"`
	AvgCapexToRevenue        *float64 `json:"avg_capex_to_revenue"`
	AvgDepreciationToRevenue *float64 `json:"avg_depreciation_to_revenue"`
	AvgNWCToRevenue          *float64 `json:"avg_nwc_to_revenue"`
	MedianRevenueGrowth      *float64 `json:"median_revenue_growth"`
	RevenueGrowthStdDev      *float64 `json:"revenue_growth_std_dev"`
}
