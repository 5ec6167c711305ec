package reverse

import (
	"fmt"
	"math"
)

// Level grades how demanding an implied assumption is.
type Level string

const (
	LevelOK         Level = "ok"
	LevelStretch    Level = "stretch"
	LevelAggressive Level = "aggressive"
)

// Finding is one plausibility verdict.
type Finding struct {
	Param   string  `json:"param"`
	Value   float64 `json:"value"`
	Level   Level   `json:"level"`
	Message string  `json:"message"`
}

// Assess grades the implied values against fixed thresholds. actualWACC is
// the rate the forward valuation used.
func Assess(r Result, actualWACC float64) []Finding {
	g := r.Growth.Value
	m := r.OperatingMargin.Value
	tg := r.TerminalGrowth.Value
	w := r.WACC.Value

	findings := make([]Finding, 0, 4)

	switch {
	case g > 0.20:
		findings = append(findings, Finding{"growth_rate", g, LevelAggressive, fmt.Sprintf("growth %.1f%% p.a. is beyond sustained historical rates", g*100)})
	case g > 0.12:
		findings = append(findings, Finding{"growth_rate", g, LevelStretch, fmt.Sprintf("growth %.1f%% p.a. is ambitious", g*100)})
	default:
		findings = append(findings, Finding{"growth_rate", g, LevelOK, fmt.Sprintf("growth %.1f%% p.a. is within reasonable bounds", g*100)})
	}

	switch {
	case m > 0.45:
		findings = append(findings, Finding{"operating_margin", m, LevelAggressive, fmt.Sprintf("margin %.1f%% would exceed almost any peer", m*100)})
	case m > 0.38:
		findings = append(findings, Finding{"operating_margin", m, LevelStretch, fmt.Sprintf("margin %.1f%% needs significant mix improvement", m*100)})
	default:
		findings = append(findings, Finding{"operating_margin", m, LevelOK, fmt.Sprintf("margin %.1f%% is achievable", m*100)})
	}

	switch {
	case tg > 0.04:
		findings = append(findings, Finding{"terminal_growth", tg, LevelAggressive, fmt.Sprintf("terminal growth %.2f%% exceeds nominal GDP", tg*100)})
	case tg > 0.03:
		findings = append(findings, Finding{"terminal_growth", tg, LevelStretch, fmt.Sprintf("terminal growth %.2f%% is at the upper bound", tg*100)})
	default:
		findings = append(findings, Finding{"terminal_growth", tg, LevelOK, fmt.Sprintf("terminal growth %.2f%% is reasonable", tg*100)})
	}

	switch {
	case w < 0.06:
		findings = append(findings, Finding{"wacc", w, LevelAggressive, fmt.Sprintf("implied WACC %.2f%% is too low for equity risk", w*100)})
	case w < actualWACC-0.02:
		findings = append(findings, Finding{"wacc", w, LevelStretch, fmt.Sprintf("implied WACC %.2f%% is well below the calculated %.2f%%", w*100, actualWACC*100)})
	default:
		findings = append(findings, Finding{"wacc", w, LevelOK, fmt.Sprintf("implied WACC %.2f%% is consistent with fundamentals", w*100)})
	}

	return findings
}

// ImpliedRevenue compounds base revenue at g for the given number of years.
func ImpliedRevenue(base, g float64, years int) float64 {
	return base * math.Pow(1+g, float64(years))
}
