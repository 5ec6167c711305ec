package valuation

import (
	"fmt"
	"math"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/models"
)

// TerminalValue is the Gordon growth value at the end of the horizon:
// FCFF_T * (1+g) / (wacc-g).
func TerminalValue(finalFCFF, growth, wacc float64) (float64, error) {
	if growth >= wacc {
		return 0, fmt.Errorf("%w: g=%.4f wacc=%.4f", ErrTerminalGrowthAboveWACC, growth, wacc)
	}
	return finalFCFF * (1 + growth) / (wacc - growth), nil
}

// EVBreakdown splits enterprise value into its explicit and terminal parts.
type EVBreakdown struct {
	PVExplicit      float64   `json:"pv_explicit"`
	PVTerminal      float64   `json:"pv_terminal"`
	EnterpriseValue float64   `json:"enterprise_value"`
	TerminalPct     float64   `json:"terminal_pct"` // 0-100
	DiscountFactors []float64 `json:"discount_factors"`
}

// EnterpriseValue discounts year t at (1+wacc)^t and the terminal value
// at (1+wacc)^terminalYear.
func EnterpriseValue(fcff []float64, wacc, terminalValue float64, terminalYear int) EVBreakdown {
	var out EVBreakdown
	out.DiscountFactors = make([]float64, len(fcff))
	for i, cf := range fcff {
		df := 1 / math.Pow(1+wacc, float64(i+1))
		out.DiscountFactors[i] = df
		out.PVExplicit += cf * df
	}
	out.PVTerminal = terminalValue / math.Pow(1+wacc, float64(terminalYear))
	out.EnterpriseValue = out.PVExplicit + out.PVTerminal
	if out.EnterpriseValue > 0 {
		out.TerminalPct = out.PVTerminal / out.EnterpriseValue * 100
	}
	return out
}

// EquityBridge walks from enterprise value to value per share.
type EquityBridge struct {
	EquityValue       float64 `json:"equity_value"`
	NetDebt           float64 `json:"net_debt"`
	ValuePerShare     float64 `json:"value_per_share"`
	SharesOutstanding float64 `json:"shares_outstanding"`
}

// EquityValuePerShare subtracts net debt (negative for net cash) and
// divides by shares. Shares must be > 0.
func EquityValuePerShare(ev, netDebt, shares float64) EquityBridge {
	equity := ev - netDebt
	return EquityBridge{
		EquityValue:       equity,
		NetDebt:           netDebt,
		ValuePerShare:     equity / shares,
		SharesOutstanding: shares,
	}
}

// =============================================================================
// DCF ORCHESTRATOR
// =============================================================================

// MarketComparison relates intrinsic value to the quoted price.
type MarketComparison struct {
	MarketCap   float64 `json:"market_cap"` // reporting currency
	MarketPrice float64 `json:"market_price"`
	Upside      float64 `json:"upside"` // vps/price - 1
}

// DCFInputs records every scalar that went into a run.
type DCFInputs struct {
	BaseYear              int       `json:"base_year"`
	BaseRevenue           float64   `json:"base_revenue"`
	CurrentMargin         float64   `json:"current_margin"`
	TargetMargin          float64   `json:"target_margin"`
	FadeYears             int       `json:"fade_years"`
	GrowthSchedule        []float64 `json:"growth_schedule"`
	MarginSchedule        []float64 `json:"margin_schedule"`
	TaxRate               float64   `json:"tax_rate"`
	CapexToRevenue        float64   `json:"capex_to_revenue"`
	DepreciationToRevenue float64   `json:"depreciation_to_revenue"`
	NWCToRevenue          float64   `json:"nwc_to_revenue"`
	WACC                  float64   `json:"wacc"`
	TerminalGrowth        float64   `json:"terminal_growth"`
	ExplicitYears         int       `json:"explicit_years"`
}

// DCFResult bundles a full valuation.
type DCFResult struct {
	Inputs        DCFInputs         `json:"inputs"`
	Projection    []ProjectionRow   `json:"projection"`
	TerminalValue float64           `json:"terminal_value"`
	EV            EVBreakdown       `json:"ev"`
	Equity        EquityBridge      `json:"equity"`
	Market        *MarketComparison `json:"market,omitempty"`
}

// RunDCF values the company off its latest financial row. The market
// comparison is filled only when market carries a positive market cap.
func RunDCF(cfg assumption.Config, fin models.Financials, wacc float64, market *models.MarketData) (*DCFResult, error) {
	if len(fin) == 0 {
		return nil, ErrNoFinancials
	}
	latest := fin.Sorted().Latest()

	years := cfg.Projection.ExplicitYears
	if years <= 0 {
		years = assumption.DefaultExplicitYears
	}
	fade := cfg.Margins.FadeYears
	if fade <= 0 {
		fade = DefaultFadeYears
	}

	// 1. Base year
	target := cfg.Margins.OperatingMargin
	current, ok := latest.OperatingMargin()
	if !ok {
		current = target
	}

	// 2. Schedules
	growth := BuildGrowthSchedule(years, cfg.Revenue.NearTermGrowthRates, cfg.Revenue.LongTermGrowthRate)
	margins := BuildMarginSchedule(years, current, target, fade)

	inputs := DCFInputs{
		BaseYear:              latest.FiscalYear(),
		BaseRevenue:           latest.Revenue,
		CurrentMargin:         current,
		TargetMargin:          target,
		FadeYears:             fade,
		GrowthSchedule:        growth,
		MarginSchedule:        margins,
		TaxRate:               cfg.Tax.EffectiveRate,
		CapexToRevenue:        cfg.CapitalIntensity.CapexToRevenue,
		DepreciationToRevenue: cfg.CapitalIntensity.DepreciationToRevenue,
		NWCToRevenue:          cfg.CapitalIntensity.NWCToRevenue,
		WACC:                  wacc,
		TerminalGrowth:        cfg.Projection.TerminalGrowthRate,
		ExplicitYears:         years,
	}

	// 3. Projection, terminal value, EV
	rows := ProjectFCF(ProjectionInput{
		BaseRevenue:           inputs.BaseRevenue,
		GrowthRates:           growth,
		OperatingMargins:      margins,
		TaxRate:               inputs.TaxRate,
		CapexToRevenue:        inputs.CapexToRevenue,
		DepreciationToRevenue: inputs.DepreciationToRevenue,
		NWCToRevenue:          inputs.NWCToRevenue,
	})
	tv, err := TerminalValue(rows[len(rows)-1].FCFF, inputs.TerminalGrowth, wacc)
	if err != nil {
		return nil, err
	}
	ev := EnterpriseValue(FCFFSeries(rows), wacc, tv, years)

	// 4. Equity bridge
	bridge := EquityValuePerShare(ev.EnterpriseValue, latest.NetDebt(), latest.SharesOutstanding)

	res := &DCFResult{
		Inputs:        inputs,
		Projection:    rows,
		TerminalValue: tv,
		EV:            ev,
		Equity:        bridge,
	}

	// 5. Market comparison
	if market != nil && market.MarketCap > 0 {
		price := MarketPrice(*market, cfg.Market.FXToReporting, latest.SharesOutstanding)
		res.Market = &MarketComparison{
			MarketCap:   market.MarketCapIn(cfg.Market.FXToReporting),
			MarketPrice: price,
			Upside:      bridge.ValuePerShare/price - 1,
		}
	}
	return res, nil
}

// MarketPrice converts a market cap to a per-share price in reporting currency.
func MarketPrice(market models.MarketData, fx, shares float64) float64 {
	return market.MarketCapIn(fx) / shares
}
