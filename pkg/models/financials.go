package models

import (
	"sort"
	"time"
)

// FinancialRow is one fiscal year of standardized statement line items.
// Optional items are pointers: nil means the source did not report them.
type FinancialRow struct {
	FiscalYearEnd time.Time `json:"fiscal_year_end"`

	// Income statement
	Revenue          float64  `json:"revenue"`
	CostOfRevenue    *float64 `json:"cost_of_revenue,omitempty"`
	OperatingIncome  *float64 `json:"operating_income,omitempty"`
	NetIncome        float64  `json:"net_income"`
	IncomeTaxExpense float64  `json:"income_tax_expense"`
	InterestExpense  *float64 `json:"interest_expense,omitempty"`

	// Balance sheet
	Cash                    float64  `json:"cash"`
	TotalDebt               float64  `json:"total_debt"`
	SharesOutstanding       float64  `json:"shares_outstanding"`
	TotalAssets             *float64 `json:"total_assets,omitempty"`
	TotalCurrentLiabilities *float64 `json:"total_current_liabilities,omitempty"`
	ShortTermDebt           *float64 `json:"short_term_debt,omitempty"`
	AccountsReceivable      *float64 `json:"accounts_receivable,omitempty"`
	Inventory               *float64 `json:"inventory,omitempty"`
	AccountsPayable         *float64 `json:"accounts_payable,omitempty"`

	// Cash flow
	Depreciation *float64 `json:"depreciation,omitempty"`
	Capex        *float64 `json:"capex,omitempty"`
}

// FiscalYear returns the calendar year of the fiscal year end.
func (r FinancialRow) FiscalYear() int {
	return r.FiscalYearEnd.Year()
}

// NetDebt is total debt minus cash. Negative means net cash.
func (r FinancialRow) NetDebt() float64 {
	return r.TotalDebt - r.Cash
}

// OperatingMargin returns operating income / revenue and false when either
// operating income is missing or revenue is zero.
func (r FinancialRow) OperatingMargin() (float64, bool) {
	if r.OperatingIncome == nil || r.Revenue == 0 {
		return 0, false
	}
	return *r.OperatingIncome / r.Revenue, true
}

// Financials is an annual time series ordered oldest to newest.
type Financials []FinancialRow

// Latest returns the most recent fiscal year. It panics on an empty series.
func (f Financials) Latest() FinancialRow {
	return f[len(f)-1]
}

// Trailing returns the newest n rows (all rows if n <= 0 or n > len).
func (f Financials) Trailing(n int) Financials {
	if n <= 0 || n >= len(f) {
		return f
	}
	return f[len(f)-n:]
}

// Sorted returns a copy ordered by fiscal year end ascending.
func (f Financials) Sorted() Financials {
	out := make(Financials, len(f))
	copy(out, f)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FiscalYearEnd.Before(out[j].FiscalYearEnd)
	})
	return out
}

// Float returns a pointer to v. Handy for building rows with optional items.
func Float(v float64) *float64 { return &v }

// Value unpacks an optional line item, returning 0 when it is missing.
func Value(v *float64) float64 {
	if v != nil {
		return *v
	}
	return 0
}
