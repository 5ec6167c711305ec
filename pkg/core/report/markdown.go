package report

import (
	"errors"
	"fmt"
	"strings"

	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/sensitivity"
	"dcf_valuation/pkg/core/utils"
	"dcf_valuation/pkg/core/valuation"
)

// ErrInvalidMarkdown is returned when the rendered document does not parse.
var ErrInvalidMarkdown = errors.New("rendered report is not valid markdown")

// paramFormat says how sweep axis values are printed.
var paramFormat = map[valuation.ParamName]func(float64) string{
	valuation.ParamWACC:                  func(v float64) string { return Pct(v, 2) },
	valuation.ParamTerminalGrowth:        func(v float64) string { return Pct(v, 2) },
	valuation.ParamGrowthRate:            func(v float64) string { return Pct(v, 1) },
	valuation.ParamOperatingMargin:       func(v float64) string { return Pct(v, 1) },
	valuation.ParamTaxRate:               func(v float64) string { return Pct(v, 1) },
	valuation.ParamCapexToRevenue:        func(v float64) string { return Pct(v, 1) },
	valuation.ParamDepreciationToRevenue: func(v float64) string { return Pct(v, 1) },
	valuation.ParamNWCToRevenue:          func(v float64) string { return Pct(v, 1) },
}

func axis(name valuation.ParamName, v float64) string {
	if f, ok := paramFormat[name]; ok {
		return f(v)
	}
	return Num(v, 4)
}

// RenderMarkdown renders the full valuation report as GFM markdown.
func RenderMarkdown(r *pipeline.Report) (string, error) {
	if r == nil || r.DCF == nil {
		return "", fmt.Errorf("report has no DCF result")
	}
	cur := r.Company.Currency
	var b strings.Builder

	title := r.Company.Name
	if title == "" {
		title = r.Company.Ticker
	}
	fmt.Fprintf(&b, "# %s DCF Valuation\n\n", title)
	fmt.Fprintf(&b, "Run `%s` at %s.\n\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04 MST"))

	// Summary
	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	row(&b, "Enterprise value", Money(r.DCF.EV.EnterpriseValue, cur))
	row(&b, "Net debt", Money(r.DCF.Equity.NetDebt, cur))
	row(&b, "Equity value", Money(r.DCF.Equity.EquityValue, cur))
	row(&b, "Shares outstanding", Num(r.DCF.Equity.SharesOutstanding, 0))
	row(&b, "Value per share", Money(r.DCF.Equity.ValuePerShare, cur))
	if m := r.DCF.Market; m != nil {
		row(&b, "Market price", Money(m.MarketPrice, cur))
		row(&b, "Upside", Pct(m.Upside, 1))
	}
	row(&b, "Terminal value share of EV", fmt.Sprintf("%s%%", Num(r.DCF.EV.TerminalPct, 1)))
	b.WriteString("\n")

	// WACC
	w := r.WACC
	b.WriteString("## Cost of Capital\n\n")
	b.WriteString("| Component | Value | Source |\n|---|---|---|\n")
	fmt.Fprintf(&b, "| Cost of equity | %s | capm |\n", Pct(w.CostOfEquity, 2))
	fmt.Fprintf(&b, "| Pre-tax cost of debt | %s | %s |\n", Pct(w.PreTaxCostOfDebt, 2), w.Sources["cost_of_debt"])
	fmt.Fprintf(&b, "| Tax rate | %s | %s |\n", Pct(w.TaxRate, 1), w.Sources["tax_rate"])
	fmt.Fprintf(&b, "| Equity / debt weight | %s / %s | %s |\n", Pct(w.EquityWeight, 1), Pct(w.DebtWeight, 1), w.Sources["weights"])
	fmt.Fprintf(&b, "| **WACC** | **%s** | |\n\n", Pct(w.WACC, 2))

	// Projection
	b.WriteString("## Free Cash Flow Projection\n\n")
	b.WriteString("| Year | Revenue | Growth | Op. margin | NOPAT | Net capex | ΔNWC | FCFF |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, p := range r.DCF.Projection {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s | %s |\n",
			p.Year, Num(p.Revenue, 0), Pct(p.Growth, 1), Pct(p.OperatingMargin, 1),
			Num(p.NOPAT, 0), Num(p.NetCapex, 0), Num(p.DeltaNWC, 0), Num(p.FCFF, 0))
	}
	fmt.Fprintf(&b, "\nTerminal value %s (PV %s), PV of explicit flows %s.\n\n",
		Money(r.DCF.TerminalValue, cur), Money(r.DCF.EV.PVTerminal, cur), Money(r.DCF.EV.PVExplicit, cur))

	// Sensitivity
	if len(r.Tables) > 0 {
		b.WriteString("## Sensitivity\n\n")
		for _, t := range r.Tables {
			writeTable(&b, t, cur)
		}
	}
	if len(r.Tornado) > 0 {
		b.WriteString("## Tornado\n\n")
		b.WriteString("| Parameter | Low | High | Value at low | Value at high | Swing |\n|---|---|---|---|---|---|\n")
		for _, t := range r.Tornado {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n", t.Param,
				axis(t.Param, t.LowValue), axis(t.Param, t.HighValue),
				Money(t.LowResult, cur), Money(t.HighResult, cur), Money(t.Swing, cur))
		}
		b.WriteString("\n")
	}

	// Reverse DCF
	if rev := r.Reverse; rev != nil {
		b.WriteString("## Reverse DCF\n\n")
		fmt.Fprintf(&b, "What the price of %s implies, one parameter at a time.\n\n", Money(rev.TargetPrice, cur))
		b.WriteString("| Parameter | Implied | Converged | Iterations |\n|---|---|---|---|\n")
		for _, s := range []struct {
			name valuation.ParamName
			v    float64
			ok   bool
			n    int
		}{
			{valuation.ParamGrowthRate, rev.Growth.Value, rev.Growth.Converged, rev.Growth.Iterations},
			{valuation.ParamOperatingMargin, rev.OperatingMargin.Value, rev.OperatingMargin.Converged, rev.OperatingMargin.Iterations},
			{valuation.ParamWACC, rev.WACC.Value, rev.WACC.Converged, rev.WACC.Iterations},
			{valuation.ParamTerminalGrowth, rev.TerminalGrowth.Value, rev.TerminalGrowth.Converged, rev.TerminalGrowth.Iterations},
		} {
			fmt.Fprintf(&b, "| %s | %s | %t | %d |\n", s.name, axis(s.name, s.v), s.ok, s.n)
		}
		b.WriteString("\n")
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", f.Param, f.Level, f.Message)
		}
		if len(r.Findings) > 0 {
			b.WriteString("\n")
		}
	}

	// History
	if a := r.Analysis; a != nil && len(a.Timeline) > 0 {
		b.WriteString("## Historical Performance\n\n")
		b.WriteString("| Year | Revenue growth | Gross margin | Op. margin | ROIC | Capex/Rev | CCC (days) |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, y := range a.Timeline {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s |\n", y.FiscalYear,
				OptPct(y.Growth.RevenueGrowth, 1), OptPct(y.GrossMargin, 1), OptPct(y.OperatingMargin, 1),
				OptPct(y.ROIC, 1), OptPct(y.CapexToRevenue, 1), OptNum(y.WorkingCapital.CCC, 0))
		}
		fmt.Fprintf(&b, "\nRevenue CAGR %s over %d years.\n\n", OptPct(a.Summary.RevenueCAGR, 1), a.Summary.Years)
	}

	if len(r.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	out := b.String()
	if !utils.ValidateMarkdown(out) || utils.CountTables(out) < 3 {
		return "", ErrInvalidMarkdown
	}
	return out, nil
}

// RenderHTML renders the markdown report to HTML.
func RenderHTML(r *pipeline.Report) (string, error) {
	md, err := RenderMarkdown(r)
	if err != nil {
		return "", err
	}
	return utils.MarkdownToHTML(md)
}

func row(b *strings.Builder, k, v string) {
	fmt.Fprintf(b, "| %s | %s |\n", k, v)
}

func writeTable(b *strings.Builder, t *sensitivity.Table, cur string) {
	// Rows follow ParamX, columns follow ParamY, matching Values[x][y].
	fmt.Fprintf(b, "### %s\n\n", t.Name)
	fmt.Fprintf(b, "| %s \\ %s |", t.ParamX, t.ParamY)
	for _, y := range t.YValues {
		fmt.Fprintf(b, " %s |", axis(t.ParamY, y))
	}
	b.WriteString("\n|---|")
	b.WriteString(strings.Repeat("---|", len(t.YValues)))
	b.WriteString("\n")
	for i, x := range t.XValues {
		fmt.Fprintf(b, "| %s |", axis(t.ParamX, x))
		for _, v := range t.Values[i] {
			fmt.Fprintf(b, " %s |", Money(v, cur))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
