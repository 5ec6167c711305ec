package assumption

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
company:
  name: Example Corp
  ticker: exm
  currency: USD
tax:
  effective_rate: 0.20
cost_of_capital:
  risk_free_rate: 0.04
  equity_risk_premium: 0.05
  beta: 1.1
  pre_tax_cost_of_debt: 0.05
  target_debt_to_capital: 0.2
projection:
  terminal_growth_rate: 0.025
revenue:
  near_term_growth_rates: [0.05, 0.05]
  long_term_growth_rate: 0.05
margins:
  operating_margin: 0.30
capital_intensity:
  capex_to_revenue: 0.05
  depreciation_to_revenue: 0.04
  nwc_to_revenue: 0.10
sensitivity:
  tornado:
    growth_rate: {low: 0.03, high: 0.18}
`

func TestParse_YAMLAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML), ".yaml")
	require.NoError(t, err)

	require.Equal(t, "EXM", cfg.Company.Ticker)
	require.Equal(t, DefaultExplicitYears, cfg.Projection.ExplicitYears)
	require.Equal(t, DefaultFadeYears, cfg.Margins.FadeYears)
	require.Equal(t, DefaultTrailingYears, cfg.CostOfCapital.TrailingYears)
	require.Equal(t, 1.0, cfg.Market.FXToReporting)
	require.Equal(t, DefaultMaxIter, cfg.Solver.MaxIter)
	require.InDelta(t, DefaultTolerance, cfg.Solver.Tolerance, 1e-12)
	require.Equal(t, []float64{0.05, 0.05}, cfg.Revenue.NearTermGrowthRates)
	require.InDelta(t, 0.18, cfg.Sensitivity.Tornado["growth_rate"].High, 1e-12)
}

func TestParse_HJSONAndRepairedJSON(t *testing.T) {
	hj := []byte(`{
  # comments are fine
  company: { ticker: "abc" }
  projection: { explicit_years: 7, terminal_growth_rate: 0.02 }
}`)
	cfg, err := Parse(hj, ".hjson")
	require.NoError(t, err)
	require.Equal(t, "ABC", cfg.Company.Ticker)
	require.Equal(t, 7, cfg.Projection.ExplicitYears)

	broken := []byte(`{"projection": {"explicit_years": 6, "terminal_growth_rate": 0.02,},}`)
	cfg, err = Parse(broken, ".json")
	require.NoError(t, err)
	require.Equal(t, 6, cfg.Projection.ExplicitYears)
}

func TestParse_UnsupportedExtension(t *testing.T) {
	_, err := Parse([]byte("x"), ".toml")
	require.Error(t, err)
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.Projection.ExplicitYears = -1
	cfg.CostOfCapital.TargetDebtToCapital = 1.5
	cfg.Sensitivity.Tornado = map[string]Range{"wacc_rate": {Low: 0.2, High: 0.1}}

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "explicit_years")
	require.Contains(t, err.Error(), "target_debt_to_capital")
	require.Contains(t, err.Error(), "wacc_rate")
}

func TestLoad_RoundTripsThroughFile(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML), ".yml")
	require.NoError(t, err)

	out, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "assumptions.yaml")
	require.NoError(t, os.WriteFile(path, out, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestSortedTornadoNames(t *testing.T) {
	s := Sensitivity{Tornado: map[string]Range{"wacc_rate": {}, "growth_rate": {}, "tax_rate": {}}}
	require.Equal(t, []string{"growth_rate", "tax_rate", "wacc_rate"}, s.SortedTornadoNames())
}
