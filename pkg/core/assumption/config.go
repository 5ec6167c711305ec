// Package assumption holds the analyst-supplied valuation assumptions.
// Values are decimals (0.05 for 5%) unless noted otherwise.
package assumption

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// CONFIG SECTIONS
// =============================================================================

// Company identifies the valued company.
type Company struct {
	Name          string `yaml:"name" json:"name"`
	Ticker        string `yaml:"ticker" json:"ticker"`
	Currency      string `yaml:"currency" json:"currency"`
	FiscalYearEnd string `yaml:"fiscal_year_end" json:"fiscal_year_end"`
	Description   string `yaml:"description" json:"description"`
}

// Tax rates.
type Tax struct {
	EffectiveRate float64 `yaml:"effective_rate" json:"effective_rate"`
	MarginalRate  float64 `yaml:"marginal_rate" json:"marginal_rate"`
}

// CostOfCapital holds the CAPM and capital-structure inputs.
type CostOfCapital struct {
	RiskFreeRate        float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
	EquityRiskPremium   float64 `yaml:"equity_risk_premium" json:"equity_risk_premium"`
	Beta                float64 `yaml:"beta" json:"beta"`
	CountryRiskPremium  float64 `yaml:"country_risk_premium" json:"country_risk_premium"`
	PreTaxCostOfDebt    float64 `yaml:"pre_tax_cost_of_debt" json:"pre_tax_cost_of_debt"`
	TargetDebtToCapital float64 `yaml:"target_debt_to_capital" json:"target_debt_to_capital"`

	// DeriveFromData switches cost of debt, tax shield and weights to the
	// values implied by the statements and market cap.
	DeriveFromData bool `yaml:"derive_from_data" json:"derive_from_data"`
	TrailingYears  int  `yaml:"trailing_years" json:"trailing_years"`
}

// Projection controls the explicit forecast horizon.
type Projection struct {
	ExplicitYears      int     `yaml:"explicit_years" json:"explicit_years"`
	TerminalGrowthRate float64 `yaml:"terminal_growth_rate" json:"terminal_growth_rate"`
}

// Revenue growth assumptions.
type Revenue struct {
	NearTermGrowthRates []float64 `yaml:"near_term_growth_rates,omitempty" json:"near_term_growth_rates"`
	LongTermGrowthRate  float64   `yaml:"long_term_growth_rate" json:"long_term_growth_rate"`
}

// Margins holds the target operating margin and fade window.
type Margins struct {
	GrossMargin     float64 `yaml:"gross_margin" json:"gross_margin"`
	OperatingMargin float64 `yaml:"operating_margin" json:"operating_margin"`
	FadeYears       int     `yaml:"fade_years" json:"fade_years"`
}

// CapitalIntensity ratios, all relative to revenue.
type CapitalIntensity struct {
	CapexToRevenue        float64 `yaml:"capex_to_revenue" json:"capex_to_revenue"`
	DepreciationToRevenue float64 `yaml:"depreciation_to_revenue" json:"depreciation_to_revenue"`
	NWCToRevenue          float64 `yaml:"nwc_to_revenue" json:"nwc_to_revenue"`
}

// Range is a low/high pair used by tornado specs.
type Range struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// Sensitivity holds the sweep ranges. Empty ranges fall back to defaults.
type Sensitivity struct {
	WACCRange           []float64        `yaml:"wacc_range,omitempty" json:"wacc_range"`
	TerminalGrowthRange []float64        `yaml:"terminal_growth_range,omitempty" json:"terminal_growth_range"`
	GrowthRange         []float64        `yaml:"growth_range,omitempty" json:"growth_range"`
	MarginRange         []float64        `yaml:"margin_range,omitempty" json:"margin_range"`
	Tornado             map[string]Range `yaml:"tornado,omitempty" json:"tornado"`
}

// Market holds the currency conversion applied to the quoted market cap.
type Market struct {
	// FXToReporting is reporting-currency units per unit of quote currency.
	FXToReporting float64 `yaml:"fx_to_reporting" json:"fx_to_reporting"`
	QuoteCurrency string  `yaml:"quote_currency" json:"quote_currency"`
}

// Solver tunes the reverse-DCF bisection.
type Solver struct {
	MaxIter   int     `yaml:"max_iter" json:"max_iter"`
	Tolerance float64 `yaml:"tolerance" json:"tolerance"`
}

// SEC configures the XBRL companyfacts download.
type SEC struct {
	CIK         string   `yaml:"cik" json:"cik"`
	UserAgent   string   `yaml:"user_agent" json:"user_agent"`
	BaseURL     string   `yaml:"base_url" json:"base_url"`
	AnnualForms []string `yaml:"annual_forms,omitempty" json:"annual_forms"`
	YearsToKeep int      `yaml:"years_to_keep" json:"years_to_keep"`
}

// =============================================================================
// CONFIG
// =============================================================================

// Config is the full assumption set for one company.
type Config struct {
	Company          Company          `yaml:"company" json:"company"`
	Tax              Tax              `yaml:"tax" json:"tax"`
	CostOfCapital    CostOfCapital    `yaml:"cost_of_capital" json:"cost_of_capital"`
	Projection       Projection       `yaml:"projection" json:"projection"`
	Revenue          Revenue          `yaml:"revenue" json:"revenue"`
	Margins          Margins          `yaml:"margins" json:"margins"`
	CapitalIntensity CapitalIntensity `yaml:"capital_intensity" json:"capital_intensity"`
	Sensitivity      Sensitivity      `yaml:"sensitivity" json:"sensitivity"`
	Market           Market           `yaml:"market" json:"market"`
	Solver           Solver           `yaml:"solver" json:"solver"`
	SEC              SEC              `yaml:"sec" json:"sec"`
}

const (
	DefaultExplicitYears = 10
	DefaultFadeYears     = 5
	DefaultTrailingYears = 3
	DefaultMaxIter       = 100
	DefaultTolerance     = 0.01
	DefaultYearsToKeep   = 10
)

// ApplyDefaults fills zero-valued knobs with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Projection.ExplicitYears == 0 {
		c.Projection.ExplicitYears = DefaultExplicitYears
	}
	if c.Margins.FadeYears == 0 {
		c.Margins.FadeYears = DefaultFadeYears
	}
	if c.CostOfCapital.TrailingYears == 0 {
		c.CostOfCapital.TrailingYears = DefaultTrailingYears
	}
	if c.Market.FXToReporting == 0 {
		c.Market.FXToReporting = 1.0
	}
	if c.Solver.MaxIter == 0 {
		c.Solver.MaxIter = DefaultMaxIter
	}
	if c.Solver.Tolerance == 0 {
		c.Solver.Tolerance = DefaultTolerance
	}
	if c.SEC.YearsToKeep == 0 {
		c.SEC.YearsToKeep = DefaultYearsToKeep
	}
	c.Company.Ticker = strings.ToUpper(c.Company.Ticker)
}

// Validate reports every structural problem in the config at once.
// It does not judge whether the numbers are sensible.
func (c *Config) Validate() error {
	var errs []error
	if c.Projection.ExplicitYears <= 0 {
		errs = append(errs, fmt.Errorf("projection.explicit_years must be > 0, got %d", c.Projection.ExplicitYears))
	}
	if c.Margins.FadeYears <= 0 {
		errs = append(errs, fmt.Errorf("margins.fade_years must be > 0, got %d", c.Margins.FadeYears))
	}
	if c.CostOfCapital.TargetDebtToCapital < 0 || c.CostOfCapital.TargetDebtToCapital > 1 {
		errs = append(errs, fmt.Errorf("cost_of_capital.target_debt_to_capital must be within [0, 1], got %.4f", c.CostOfCapital.TargetDebtToCapital))
	}
	if c.Solver.MaxIter < 0 {
		errs = append(errs, fmt.Errorf("solver.max_iter must be >= 0, got %d", c.Solver.MaxIter))
	}
	for name, r := range c.Sensitivity.Tornado {
		if r.Low > r.High {
			errs = append(errs, fmt.Errorf("sensitivity.tornado.%s: low %.4f above high %.4f", name, r.Low, r.High))
		}
	}
	return errors.Join(errs...)
}

// SortedTornadoNames returns tornado parameter names in a stable order.
func (s Sensitivity) SortedTornadoNames() []string {
	names := make([]string, 0, len(s.Tornado))
	for name := range s.Tornado {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
