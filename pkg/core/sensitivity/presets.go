package sensitivity

import (
	"sort"

	"github.com/montanaflynn/stats"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/valuation"
)

// Default sweep ranges.
var (
	DefaultWACCRange           = []float64{0.070, 0.075, 0.080, 0.085, 0.090, 0.095, 0.100, 0.105, 0.110}
	DefaultTerminalGrowthRange = []float64{0.015, 0.020, 0.025, 0.030, 0.035}
	DefaultGrowthRange         = []float64{0.04, 0.06, 0.08, 0.10, 0.12, 0.14, 0.16, 0.18}
	DefaultMarginRange         = []float64{0.30, 0.32, 0.35, 0.38, 0.40}
)

// DefaultTornadoSpecs are the low/high bounds used when config names none.
var DefaultTornadoSpecs = []TornadoSpec{
	{Param: valuation.ParamGrowthRate, Low: 0.03, High: 0.18},
	{Param: valuation.ParamOperatingMargin, Low: 0.28, High: 0.42},
	{Param: valuation.ParamWACC, Low: 0.07, High: 0.11},
	{Param: valuation.ParamTerminalGrowth, Low: 0.015, High: 0.035},
	{Param: valuation.ParamTaxRate, Low: 0.10, High: 0.20},
	{Param: valuation.ParamCapexToRevenue, Low: 0.04, High: 0.10},
	{Param: valuation.ParamNWCToRevenue, Low: 0.10, High: 0.20},
}

// NormalizeRange rounds to the given decimals, drops duplicates and sorts.
func NormalizeRange(values []float64, decimals int) []float64 {
	seen := make(map[float64]bool, len(values))
	out := make([]float64, 0, len(values))
	for _, v := range values {
		r, err := stats.Round(v, decimals)
		if err != nil {
			continue
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Float64s(out)
	return out
}

// WithBase adds base to a range and normalizes it to 4 decimals.
func WithBase(values []float64, base float64) []float64 {
	return NormalizeRange(append(append([]float64(nil), values...), base), 4)
}

// Preset is a named two-way table definition.
type Preset struct {
	Name    string
	ParamX  valuation.ParamName
	XValues []float64
	ParamY  valuation.ParamName
	YValues []float64
}

func orDefault(v, def []float64) []float64 {
	if len(v) > 0 {
		return v
	}
	return def
}

// Presets returns the standard tables: WACC x terminal growth,
// growth x margin, and growth x WACC. The base WACC is always on the WACC axis.
func Presets(cfg assumption.Sensitivity, baseWACC float64) []Preset {
	wacc := WithBase(orDefault(cfg.WACCRange, DefaultWACCRange), baseWACC)
	tg := NormalizeRange(orDefault(cfg.TerminalGrowthRange, DefaultTerminalGrowthRange), 4)
	growth := NormalizeRange(orDefault(cfg.GrowthRange, DefaultGrowthRange), 4)
	margin := NormalizeRange(orDefault(cfg.MarginRange, DefaultMarginRange), 4)

	return []Preset{
		{Name: "wacc_x_terminal_growth", ParamX: valuation.ParamWACC, XValues: wacc, ParamY: valuation.ParamTerminalGrowth, YValues: tg},
		{Name: "growth_x_margin", ParamX: valuation.ParamGrowthRate, XValues: growth, ParamY: valuation.ParamOperatingMargin, YValues: margin},
		{Name: "growth_x_wacc", ParamX: valuation.ParamGrowthRate, XValues: growth, ParamY: valuation.ParamWACC, YValues: wacc},
	}
}

// TornadoSpecs reads tornado bounds from config, falling back to the defaults.
func TornadoSpecs(cfg assumption.Sensitivity) []TornadoSpec {
	if len(cfg.Tornado) == 0 {
		return append([]TornadoSpec(nil), DefaultTornadoSpecs...)
	}
	specs := make([]TornadoSpec, 0, len(cfg.Tornado))
	for _, name := range cfg.SortedTornadoNames() {
		r := cfg.Tornado[name]
		specs = append(specs, TornadoSpec{Param: valuation.ParamName(name), Low: r.Low, High: r.High})
	}
	return specs
}

// RunPreset evaluates a preset as a two-way table.
func RunPreset(f Func, base valuation.Params, p Preset) (*Table, error) {
	t, err := TwoWay(f, base, p.ParamX, p.XValues, p.ParamY, p.YValues)
	if err != nil {
		return nil, err
	}
	t.Name = p.Name
	return t, nil
}
