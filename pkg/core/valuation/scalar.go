package valuation

import (
	"fmt"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/models"
)

// ParamName identifies one overridable scalar of Params.
type ParamName string

const (
	ParamWACC                  ParamName = "wacc_rate"
	ParamTerminalGrowth        ParamName = "terminal_growth"
	ParamGrowthRate            ParamName = "growth_rate"
	ParamOperatingMargin       ParamName = "operating_margin"
	ParamTaxRate               ParamName = "tax_rate"
	ParamCapexToRevenue        ParamName = "capex_to_revenue"
	ParamDepreciationToRevenue ParamName = "depreciation_to_revenue"
	ParamNWCToRevenue          ParamName = "nwc_to_revenue"
)

// ParamNames lists every overridable scalar.
var ParamNames = []ParamName{
	ParamWACC, ParamTerminalGrowth, ParamGrowthRate, ParamOperatingMargin,
	ParamTaxRate, ParamCapexToRevenue, ParamDepreciationToRevenue, ParamNWCToRevenue,
}

// Params is the flat parameter set of the scalar valuation. It is a value
// type: With returns a modified copy and never touches the receiver.
// Financials is shared and must be treated as read-only.
type Params struct {
	Financials            models.Financials
	WACC                  float64
	TerminalGrowth        float64
	GrowthRate            float64 // constant over the horizon
	OperatingMargin       float64 // target margin
	TaxRate               float64
	CapexToRevenue        float64
	DepreciationToRevenue float64
	NWCToRevenue          float64
	ExplicitYears         int
	FadeYears             int
}

// ParamsFromConfig builds the base case from config at the given WACC.
func ParamsFromConfig(cfg assumption.Config, fin models.Financials, wacc float64) Params {
	return Params{
		Financials:            fin.Sorted(),
		WACC:                  wacc,
		TerminalGrowth:        cfg.Projection.TerminalGrowthRate,
		GrowthRate:            cfg.Revenue.LongTermGrowthRate,
		OperatingMargin:       cfg.Margins.OperatingMargin,
		TaxRate:               cfg.Tax.EffectiveRate,
		CapexToRevenue:        cfg.CapitalIntensity.CapexToRevenue,
		DepreciationToRevenue: cfg.CapitalIntensity.DepreciationToRevenue,
		NWCToRevenue:          cfg.CapitalIntensity.NWCToRevenue,
		ExplicitYears:         cfg.Projection.ExplicitYears,
		FadeYears:             cfg.Margins.FadeYears,
	}
}

func (p *Params) field(name ParamName) (*float64, error) {
	switch name {
	case ParamWACC:
		return &p.WACC, nil
	case ParamTerminalGrowth:
		return &p.TerminalGrowth, nil
	case ParamGrowthRate:
		return &p.GrowthRate, nil
	case ParamOperatingMargin:
		return &p.OperatingMargin, nil
	case ParamTaxRate:
		return &p.TaxRate, nil
	case ParamCapexToRevenue:
		return &p.CapexToRevenue, nil
	case ParamDepreciationToRevenue:
		return &p.DepreciationToRevenue, nil
	case ParamNWCToRevenue:
		return &p.NWCToRevenue, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownParam, name)
}

// With returns a copy of p with name set to v.
func (p Params) With(name ParamName, v float64) (Params, error) {
	f, err := p.field(name)
	if err != nil {
		return p, err
	}
	*f = v
	return p, nil
}

// Get reads a named scalar.
func (p Params) Get(name ParamName) (float64, error) {
	f, err := p.field(name)
	if err != nil {
		return 0, err
	}
	return *f, nil
}

// ValuePerShare runs projector, terminal value, EV and equity bridge off
// the latest row and returns only value per share. The current margin is
// taken from the latest row, falling back to the target margin.
func ValuePerShare(p Params) (float64, error) {
	if len(p.Financials) == 0 {
		return 0, ErrNoFinancials
	}
	latest := p.Financials.Latest()

	years := p.ExplicitYears
	if years <= 0 {
		years = assumption.DefaultExplicitYears
	}
	fade := p.FadeYears
	if fade <= 0 {
		fade = DefaultFadeYears
	}

	current, ok := latest.OperatingMargin()
	if !ok {
		current = p.OperatingMargin
	}

	growth := make([]float64, years)
	for i := range growth {
		growth[i] = p.GrowthRate
	}

	rows := ProjectFCF(ProjectionInput{
		BaseRevenue:           latest.Revenue,
		GrowthRates:           growth,
		OperatingMargins:      BuildMarginSchedule(years, current, p.OperatingMargin, fade),
		TaxRate:               p.TaxRate,
		CapexToRevenue:        p.CapexToRevenue,
		DepreciationToRevenue: p.DepreciationToRevenue,
		NWCToRevenue:          p.NWCToRevenue,
	})

	tv, err := TerminalValue(rows[len(rows)-1].FCFF, p.TerminalGrowth, p.WACC)
	if err != nil {
		return 0, err
	}
	ev := EnterpriseValue(FCFFSeries(rows), p.WACC, tv, years)
	return EquityValuePerShare(ev.EnterpriseValue, latest.NetDebt(), latest.SharesOutstanding).ValuePerShare, nil
}
