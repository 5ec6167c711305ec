package reverse

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/valuation"
	"dcf_valuation/pkg/models"
)

// Search brackets per parameter.
const (
	GrowthLo, GrowthHi = 0.0, 0.40
	MarginLo, MarginHi = 0.10, 0.70
	WACCLo, WACCHi     = 0.03, 0.20

	// TerminalGap keeps the terminal growth bracket off the WACC and zero.
	TerminalGap = 0.005

	// PlaceholderWACC seeds the non-WACC parameters when solving for WACC.
	PlaceholderWACC = 0.09
)

// Solve inverts valuation.ValuePerShare on one parameter with every other
// parameter held at base.
func Solve(target float64, base valuation.Params, name valuation.ParamName, lo, hi float64, dir Direction, opts Options) (Solution, error) {
	f := func(x float64) (float64, error) {
		p, err := base.With(name, x)
		if err != nil {
			return 0, err
		}
		return valuation.ValuePerShare(p)
	}
	return Bisect(target, f, lo, hi, dir, opts)
}

func optionsFrom(cfg assumption.Config) Options {
	return Options{MaxIter: cfg.Solver.MaxIter, Tolerance: cfg.Solver.Tolerance}
}

// ImpliedGrowthRate solves the constant revenue growth in [0, 0.40].
func ImpliedGrowthRate(target float64, fin models.Financials, cfg assumption.Config, wacc float64) (Solution, error) {
	base := valuation.ParamsFromConfig(cfg, fin, wacc)
	return Solve(target, base, valuation.ParamGrowthRate, GrowthLo, GrowthHi, Increasing, optionsFrom(cfg))
}

// ImpliedOperatingMargin solves the target operating margin in [0.10, 0.70].
func ImpliedOperatingMargin(target float64, fin models.Financials, cfg assumption.Config, wacc float64) (Solution, error) {
	base := valuation.ParamsFromConfig(cfg, fin, wacc)
	return Solve(target, base, valuation.ParamOperatingMargin, MarginLo, MarginHi, Increasing, optionsFrom(cfg))
}

// ImpliedWACC solves the discount rate in [0.03, 0.20]. Value falls as WACC
// rises. The lower bound is lifted above terminal growth so every probe
// keeps the Gordon model defined.
func ImpliedWACC(target float64, fin models.Financials, cfg assumption.Config) (Solution, error) {
	base := valuation.ParamsFromConfig(cfg, fin, PlaceholderWACC)
	lo := math.Max(WACCLo, base.TerminalGrowth+TerminalGap)
	return Solve(target, base, valuation.ParamWACC, lo, WACCHi, Decreasing, optionsFrom(cfg))
}

// ImpliedTerminalGrowth solves terminal growth in [0.005, wacc-0.005].
func ImpliedTerminalGrowth(target float64, fin models.Financials, cfg assumption.Config, wacc float64) (Solution, error) {
	base := valuation.ParamsFromConfig(cfg, fin, wacc)
	return Solve(target, base, valuation.ParamTerminalGrowth, TerminalGap, wacc-TerminalGap, Increasing, optionsFrom(cfg))
}

// Result holds four independent one-dimensional inversions. They are not
// a joint solution.
type Result struct {
	TargetPrice     float64  `json:"target_price"`
	BaseWACC        float64  `json:"base_wacc"`
	Growth          Solution `json:"growth_rate"`
	OperatingMargin Solution `json:"operating_margin"`
	WACC            Solution `json:"wacc"`
	TerminalGrowth  Solution `json:"terminal_growth"`
}

// SolveAll runs the four solvers concurrently. They share only read-only
// inputs.
func SolveAll(ctx context.Context, target float64, fin models.Financials, cfg assumption.Config, wacc float64) (*Result, error) {
	res := &Result{TargetPrice: target, BaseWACC: wacc}
	g, gctx := errgroup.WithContext(ctx)
	solve := func(dst *Solution, fn func() (Solution, error)) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sol, err := fn()
			if err != nil {
				return err
			}
			*dst = sol
			return nil
		})
	}

	solve(&res.Growth, func() (Solution, error) { return ImpliedGrowthRate(target, fin, cfg, wacc) })
	solve(&res.OperatingMargin, func() (Solution, error) { return ImpliedOperatingMargin(target, fin, cfg, wacc) })
	solve(&res.WACC, func() (Solution, error) { return ImpliedWACC(target, fin, cfg) })
	solve(&res.TerminalGrowth, func() (Solution, error) { return ImpliedTerminalGrowth(target, fin, cfg, wacc) })

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
