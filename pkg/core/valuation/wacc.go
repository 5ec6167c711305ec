package valuation

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/models"
)

// WeightTolerance is the allowed deviation of we + wd from 1.
const WeightTolerance = 0.01

const (
	FallbackCostOfDebt = 0.03
	FallbackTaxRate    = 0.15
)

// Source records where a WACC component came from.
type Source string

const (
	SourceConfig   Source = "config"
	SourceData     Source = "data"
	SourceFallback Source = "fallback"
)

// CostOfEquity is the CAPM rate: Re = Rf + beta*ERP + CRP.
func CostOfEquity(riskFree, beta, erp, crp float64) float64 {
	return riskFree + beta*erp + crp
}

// CostOfDebt returns the after-tax cost of debt.
func CostOfDebt(preTax, taxRate float64) float64 {
	return preTax * (1 - taxRate)
}

// WACC blends the two rates. rdAfterTax is already tax-adjusted.
func WACC(re, rdAfterTax, we, wd float64) (float64, error) {
	if math.Abs(we+wd-1) > WeightTolerance {
		return 0, fmt.Errorf("%w: we=%.4f wd=%.4f", ErrCapitalWeights, we, wd)
	}
	return we*re + wd*rdAfterTax, nil
}

// CostOfDebtFromData averages interest expense over total debt for the
// trailing window. Years without a positive debt balance or interest line
// are skipped; if none remain the fallback rate is used.
func CostOfDebtFromData(rows models.Financials, window int) (float64, Source) {
	var rates []float64
	for _, r := range rows.Trailing(window) {
		if r.InterestExpense == nil || r.TotalDebt <= 0 {
			continue
		}
		rates = append(rates, math.Abs(*r.InterestExpense)/r.TotalDebt)
	}
	mean, err := stats.Mean(rates)
	if err != nil || math.IsNaN(mean) {
		return FallbackCostOfDebt, SourceFallback
	}
	return mean, SourceData
}

// EffectiveTaxRate is sum(tax) / sum(pre-tax income) over the trailing
// window, with pre-tax income = net income + tax. Net tax benefits give
// a negative rate.
func EffectiveTaxRate(rows models.Financials, window int) (float64, Source) {
	var tax, pretax float64
	for _, r := range rows.Trailing(window) {
		tax += r.IncomeTaxExpense
		pretax += r.NetIncome + r.IncomeTaxExpense
	}
	if pretax <= 0 {
		return FallbackTaxRate, SourceFallback
	}
	return tax / pretax, SourceData
}

// CapitalWeights uses market equity (converted by fx) and book debt.
// A company with neither is treated as all-equity.
func CapitalWeights(marketCap, fx, debt float64) (we, wd float64) {
	if fx == 0 {
		fx = 1
	}
	equity := marketCap * fx
	total := equity + debt
	if total <= 0 {
		return 1, 0
	}
	return equity / total, debt / total
}

// =============================================================================
// WACC BUILD
// =============================================================================

// WACCResult holds every component of the discount rate.
type WACCResult struct {
	CostOfEquity       float64           `json:"cost_of_equity"`
	PreTaxCostOfDebt   float64           `json:"pre_tax_cost_of_debt"`
	AfterTaxCostOfDebt float64           `json:"after_tax_cost_of_debt"`
	TaxRate            float64           `json:"tax_rate"`
	EquityWeight       float64           `json:"equity_weight"`
	DebtWeight         float64           `json:"debt_weight"`
	WACC               float64           `json:"wacc"`
	Sources            map[string]Source `json:"sources"`
}

// CalculateWACC builds the rate purely from config.
func CalculateWACC(cfg assumption.Config) (WACCResult, error) {
	cc := cfg.CostOfCapital
	taxRate := cfg.Tax.MarginalRate
	if taxRate == 0 {
		taxRate = cfg.Tax.EffectiveRate
	}

	res := WACCResult{
		CostOfEquity:     CostOfEquity(cc.RiskFreeRate, cc.Beta, cc.EquityRiskPremium, cc.CountryRiskPremium),
		PreTaxCostOfDebt: cc.PreTaxCostOfDebt,
		TaxRate:          taxRate,
		DebtWeight:       cc.TargetDebtToCapital,
		EquityWeight:     1 - cc.TargetDebtToCapital,
		Sources: map[string]Source{
			"cost_of_debt": SourceConfig,
			"tax_rate":     SourceConfig,
			"weights":      SourceConfig,
		},
	}
	res.AfterTaxCostOfDebt = CostOfDebt(res.PreTaxCostOfDebt, taxRate)

	w, err := WACC(res.CostOfEquity, res.AfterTaxCostOfDebt, res.EquityWeight, res.DebtWeight)
	if err != nil {
		return res, err
	}
	res.WACC = w
	return res, nil
}

// CalculateWACCFromData derives cost of debt, tax shield and weights from
// the statements and the market cap. CAPM inputs still come from config.
func CalculateWACCFromData(cfg assumption.Config, fin models.Financials, market models.MarketData) (WACCResult, error) {
	if len(fin) == 0 {
		return WACCResult{}, ErrNoFinancials
	}
	cc := cfg.CostOfCapital
	window := cc.TrailingYears
	if window <= 0 {
		window = assumption.DefaultTrailingYears
	}
	sorted := fin.Sorted()

	// 1. Cost of equity (CAPM)
	re := CostOfEquity(cc.RiskFreeRate, cc.Beta, cc.EquityRiskPremium, cc.CountryRiskPremium)

	// 2. Cost of debt and tax shield
	rd, rdSrc := CostOfDebtFromData(sorted, window)
	tax, taxSrc := EffectiveTaxRate(sorted, window)

	// 3. Weights from market equity and book debt
	we, wd := CapitalWeights(market.MarketCap, cfg.Market.FXToReporting, sorted.Latest().TotalDebt)

	res := WACCResult{
		CostOfEquity:       re,
		PreTaxCostOfDebt:   rd,
		AfterTaxCostOfDebt: CostOfDebt(rd, tax),
		TaxRate:            tax,
		EquityWeight:       we,
		DebtWeight:         wd,
		Sources: map[string]Source{
			"cost_of_debt": rdSrc,
			"tax_rate":     taxSrc,
			"weights":      SourceData,
		},
	}

	w, err := WACC(re, res.AfterTaxCostOfDebt, we, wd)
	if err != nil {
		return res, err
	}
	res.WACC = w
	return res, nil
}
