package reverse

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/valuation"
	"dcf_valuation/pkg/models"
)

func fixture() (assumption.Config, models.Financials) {
	cfg := assumption.Config{}
	cfg.Projection.TerminalGrowthRate = 0.025
	cfg.Revenue.LongTermGrowthRate = 0.05
	cfg.Margins.OperatingMargin = 0.30
	cfg.Tax.EffectiveRate = 0.20
	cfg.CapitalIntensity = assumption.CapitalIntensity{CapexToRevenue: 0.05, DepreciationToRevenue: 0.03, NWCToRevenue: 0.02}
	cfg.ApplyDefaults()

	fin := models.Financials{{
		FiscalYearEnd:     time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Revenue:           10000,
		OperatingIncome:   models.Float(3000),
		Cash:              1000,
		TotalDebt:         400,
		SharesOutstanding: 100,
	}}
	return cfg, fin
}

func basePrice(t *testing.T, cfg assumption.Config, fin models.Financials, wacc float64) float64 {
	t.Helper()
	v, err := valuation.ValuePerShare(valuation.ParamsFromConfig(cfg, fin, wacc))
	require.NoError(t, err)
	return v
}

func TestBisect_IncreasingAndDecreasing(t *testing.T) {
	inc := func(x float64) (float64, error) { return x * x, nil }
	sol, err := Bisect(4, inc, 0, 10, Increasing, Options{Tolerance: 1e-9})
	require.NoError(t, err)
	require.True(t, sol.Converged)
	require.True(t, sol.Bracketed)
	require.True(t, sol.Monotone)
	require.InDelta(t, 2, sol.Value, 1e-6)

	dec := func(x float64) (float64, error) { return 100 / x, nil }
	sol, err = Bisect(25, dec, 1, 10, Decreasing, Options{Tolerance: 1e-9})
	require.NoError(t, err)
	require.True(t, sol.Converged)
	require.InDelta(t, 4, sol.Value, 1e-6)
}

func TestBisect_NonConvergenceIsReported(t *testing.T) {
	inc := func(x float64) (float64, error) { return x, nil }
	sol, err := Bisect(50, inc, 0, 1, Increasing, Options{MaxIter: 20})
	require.NoError(t, err)
	require.False(t, sol.Converged)
	require.False(t, sol.Bracketed)
	require.Equal(t, 20, sol.Iterations)
	// Pinned against the upper bound
	require.InDelta(t, 1, sol.Value, 1e-5)
	require.InDelta(t, sol.Value-50, sol.Residual, 1e-12)

	// Wrong direction is flagged
	sol, err = Bisect(0.5, inc, 0, 1, Decreasing, Options{})
	require.NoError(t, err)
	require.False(t, sol.Monotone)
}

func TestBisect_Errors(t *testing.T) {
	_, err := Bisect(1, func(x float64) (float64, error) { return x, nil }, 1, 1, Increasing, Options{})
	require.ErrorIs(t, err, ErrInvalidBracket)

	boom := errors.New("boom")
	_, err = Bisect(1, func(float64) (float64, error) { return 0, boom }, 0, 1, Increasing, Options{})
	require.ErrorIs(t, err, boom)
}

func TestImplied_RoundTrip(t *testing.T) {
	cfg, fin := fixture()
	target := basePrice(t, cfg, fin, 0.09)

	g, err := ImpliedGrowthRate(target, fin, cfg, 0.09)
	require.NoError(t, err)
	require.True(t, g.Converged)
	require.InDelta(t, 0.05, g.Value, 1e-3)

	m, err := ImpliedOperatingMargin(target, fin, cfg, 0.09)
	require.NoError(t, err)
	require.True(t, m.Converged)
	require.InDelta(t, 0.30, m.Value, 1e-3)

	w, err := ImpliedWACC(target, fin, cfg)
	require.NoError(t, err)
	require.True(t, w.Converged)
	require.True(t, w.Monotone)
	require.InDelta(t, 0.09, w.Value, 1e-3)

	tg, err := ImpliedTerminalGrowth(target, fin, cfg, 0.09)
	require.NoError(t, err)
	require.True(t, tg.Converged)
	require.InDelta(t, 0.025, tg.Value, 1e-3)
}

func TestImpliedWACC_HigherPriceMeansLowerRate(t *testing.T) {
	cfg, fin := fixture()
	target := basePrice(t, cfg, fin, 0.09)

	w, err := ImpliedWACC(target*1.5, fin, cfg)
	require.NoError(t, err)
	require.Less(t, w.Value, 0.09)
}

func TestSolveAll(t *testing.T) {
	cfg, fin := fixture()
	target := basePrice(t, cfg, fin, 0.09)

	res, err := SolveAll(context.Background(), target, fin, cfg, 0.09)
	require.NoError(t, err)
	require.Equal(t, target, res.TargetPrice)
	require.InDelta(t, 0.05, res.Growth.Value, 1e-3)
	require.InDelta(t, 0.09, res.WACC.Value, 1e-3)
}

func TestSolveAll_CancelledContext(t *testing.T) {
	cfg, fin := fixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := SolveAll(ctx, 400, fin, cfg, 0.09)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, res)
}

func TestAssess(t *testing.T) {
	r := Result{
		Growth:          Solution{Value: 0.25},
		OperatingMargin: Solution{Value: 0.40},
		TerminalGrowth:  Solution{Value: 0.02},
		WACC:            Solution{Value: 0.065},
	}
	findings := Assess(r, 0.09)
	require.Len(t, findings, 4)

	levels := map[string]Level{}
	for _, f := range findings {
		levels[f.Param] = f.Level
	}
	require.Equal(t, LevelAggressive, levels["growth_rate"])
	require.Equal(t, LevelStretch, levels["operating_margin"])
	require.Equal(t, LevelOK, levels["terminal_growth"])
	require.Equal(t, LevelStretch, levels["wacc"])
}

func TestImpliedRevenue(t *testing.T) {
	require.InDelta(t, 10000*math.Pow(1.05, 10), ImpliedRevenue(10000, 0.05, 10), 1e-9)
}
