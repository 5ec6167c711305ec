package analysis

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/models"
)

const daysPerYear = 365.0

// minDeltaIC guards incremental ROIC against near-zero capital changes.
const minDeltaIC = 1e-6

// AnalysisEngine computes historical ratios from the canonical financials.
type AnalysisEngine struct{}

// NewAnalysisEngine creates a new instance of the engine.
func NewAnalysisEngine() *AnalysisEngine {
	return &AnalysisEngine{}
}

// Analyze builds the yearly timeline and its summary. taxRate converts
// operating income to NOPAT.
func (e *AnalysisEngine) Analyze(ticker string, fin models.Financials, taxRate float64) (*CompanyAnalysis, error) {
	if len(fin) == 0 {
		return nil, fmt.Errorf("no financials to analyze for %s", ticker)
	}
	rows := fin.Sorted()

	out := &CompanyAnalysis{
		Ticker:       ticker,
		LastAnalyzed: time.Now().UTC(),
		TaxRate:      taxRate,
		Timeline:     make([]*YearlyAnalysis, len(rows)),
	}

	for i, r := range rows {
		y := &YearlyAnalysis{FiscalYear: r.FiscalYear()}
		rev := &rows[i].Revenue

		// 1. Margins
		if r.CostOfRevenue != nil {
			y.GrossMargin = ratio(diff(rev, r.CostOfRevenue), rev)
		}
		y.OperatingMargin = ratio(r.OperatingIncome, rev)
		y.NetMargin = ratio(&rows[i].NetIncome, rev)

		// 2. Capital intensity
		y.CapexToRevenue = ratio(abs(r.Capex), rev)
		y.DepreciationToRevenue = ratio(r.Depreciation, rev)

		// 3. Working capital
		y.WorkingCapital.NWC = nwc(r)
		y.NWCToRevenue = ratio(y.WorkingCapital.NWC, rev)
		y.WorkingCapital.DSO = days(r.AccountsReceivable, rev)
		y.WorkingCapital.DIO = days(r.Inventory, r.CostOfRevenue)
		y.WorkingCapital.DPO = days(r.AccountsPayable, r.CostOfRevenue)
		if y.WorkingCapital.DSO != nil && y.WorkingCapital.DIO != nil && y.WorkingCapital.DPO != nil {
			y.WorkingCapital.CCC = ptr(*y.WorkingCapital.DSO + *y.WorkingCapital.DIO - *y.WorkingCapital.DPO)
		}

		// 4. Returns
		if r.OperatingIncome != nil {
			y.NOPAT = ptr(*r.OperatingIncome * (1 - taxRate))
		}
		y.InvestedCapital = investedCapital(r)

		// 5. Year-over-year
		if i > 0 {
			prev := rows[i-1]
			py := out.Timeline[i-1]
			y.Growth.RevenueGrowth = growth(rev, &rows[i-1].Revenue)
			y.Growth.OpIncomeGrowth = growth(r.OperatingIncome, prev.OperatingIncome)
			y.Growth.NetIncomeGrowth = growth(&rows[i].NetIncome, &rows[i-1].NetIncome)
			y.WorkingCapital.DeltaNWC = diff(y.WorkingCapital.NWC, py.WorkingCapital.NWC)
			y.ROIC = ratio(y.NOPAT, py.InvestedCapital)
			if i > 1 {
				dNOPAT := diff(y.NOPAT, py.NOPAT)
				dIC := diff(py.InvestedCapital, out.Timeline[i-2].InvestedCapital)
				if dIC != nil && math.Abs(*dIC) > minDeltaIC {
					y.IncrementalROIC = ratio(dNOPAT, dIC)
				}
			}
		}
		out.Timeline[i] = y
	}

	out.Summary = summarize(out.Timeline, rows)
	return out, nil
}

func summarize(timeline []*YearlyAnalysis, rows models.Financials) Summary {
	s := Summary{Years: len(timeline)}

	first, last := rows[0], rows[len(rows)-1]
	span := float64(last.FiscalYear() - first.FiscalYear())
	if span > 0 && first.Revenue > 0 && last.Revenue > 0 {
		s.RevenueCAGR = ptr(math.Pow(last.Revenue/first.Revenue, 1/span) - 1)
	}

	collect := func(get func(*YearlyAnalysis) *float64) stats.Float64Data {
		var data stats.Float64Data
		for _, y := range timeline {
			if v := get(y); v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
				data = append(data, *v)
			}
		}
		return data
	}
	mean := func(get func(*YearlyAnalysis) *float64) *float64 {
		m, err := stats.Mean(collect(get))
		if err != nil {
			return nil
		}
		return ptr(m)
	}

	s.AvgOperatingMargin = mean(func(y *YearlyAnalysis) *float64 { return y.OperatingMargin })
	s.AvgROIC = mean(func(y *YearlyAnalysis) *float64 { return y.ROIC })
	s.AvgCapexToRevenue = mean(func(y *YearlyAnalysis) *float64 { return y.CapexToRevenue })
	s.AvgDepreciationToRevenue = mean(func(y *YearlyAnalysis) *float64 { return y.DepreciationToRevenue })
	s.AvgNWCToRevenue = mean(func(y *YearlyAnalysis) *float64 { return y.NWCToRevenue })

	g := collect(func(y *YearlyAnalysis) *float64 { return y.Growth.RevenueGrowth })
	if med, err := g.Median(); err == nil {
		s.MedianRevenueGrowth = ptr(med)
	}
	if sd, err := g.StandardDeviation(); err == nil {
		s.RevenueGrowthStdDev = ptr(sd)
	}
	return s
}

// DeriveCapitalIntensity suggests capex, depreciation and NWC ratios from
// the trailing window of history, keeping fallback values where history
// has nothing to say.
func DeriveCapitalIntensity(a *CompanyAnalysis, window int, fallback assumption.CapitalIntensity) assumption.CapitalIntensity {
	out := fallback
	tl := a.Timeline
	if window > 0 && window < len(tl) {
		tl = tl[len(tl)-window:]
	}
	avg := func(get func(*YearlyAnalysis) *float64) (float64, bool) {
		var data stats.Float64Data
		for _, y := range tl {
			if v := get(y); v != nil {
				data = append(data, *v)
			}
		}
		m, err := data.Mean()
		return m, err == nil
	}
	if v, ok := avg(func(y *YearlyAnalysis) *float64 { return y.CapexToRevenue }); ok {
		out.CapexToRevenue = v
	}
	if v, ok := avg(func(y *YearlyAnalysis) *float64 { return y.DepreciationToRevenue }); ok {
		out.DepreciationToRevenue = v
	}
	if v, ok := avg(func(y *YearlyAnalysis) *float64 { return y.NWCToRevenue }); ok {
		out.NWCToRevenue = v
	}
	return out
}

// =============================================================================
// HELPERS
// =============================================================================

func ptr(v float64) *float64 { return &v }

func ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	return ptr(*num / *den)
}

func diff(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	return ptr(*a - *b)
}

func abs(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(math.Abs(*v))
}

func growth(cur, prev *float64) *float64 {
	if cur == nil || prev == nil || *prev == 0 {
		return nil
	}
	return ptr(*cur / *prev - 1)
}

func days(balance, flow *float64) *float64 {
	r := ratio(balance, flow)
	if r == nil {
		return nil
	}
	return ptr(*r * daysPerYear)
}

func nwc(r models.FinancialRow) *float64 {
	if r.AccountsReceivable == nil && r.Inventory == nil && r.AccountsPayable == nil {
		return nil
	}
	return ptr(models.Value(r.AccountsReceivable) + models.Value(r.Inventory) - models.Value(r.AccountsPayable))
}

// investedCapital = total assets - cash - (current liabilities - short-term debt).
func investedCapital(r models.FinancialRow) *float64 {
	if r.TotalAssets == nil || r.TotalCurrentLiabilities == nil {
		return nil
	}
	nonDebtCL := *r.TotalCurrentLiabilities - models.Value(r.ShortTermDebt)
	return ptr(*r.TotalAssets - r.Cash - nonDebtCL)
}
