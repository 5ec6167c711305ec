package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/reverse"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Background(lipgloss.Color("#1F2937")).
		Padding(0, 1).
		MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 2).
		Width(72)

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Width(28)

	valueStyle = lipgloss.NewStyle().
		Bold(true)

	upStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	downStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	levelStyles = map[reverse.Level]lipgloss.Style{
		reverse.LevelOK:         lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")),
		reverse.LevelStretch:    lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		reverse.LevelAggressive: lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
	}
)

func line(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

// RenderTerminal renders a compact, styled summary for the CLI.
func RenderTerminal(r *pipeline.Report) string {
	if r == nil || r.DCF == nil {
		return ""
	}
	cur := r.Company.Currency
	var blocks []string

	name := r.Company.Name
	if name == "" {
		name = r.Company.Ticker
	}
	blocks = append(blocks, titleStyle.Render(fmt.Sprintf("DCF · %s (%s)", name, r.Company.Ticker)))

	valuation := []string{
		line("Enterprise value", Compact(r.DCF.EV.EnterpriseValue, cur)),
		line("Equity value", Compact(r.DCF.Equity.EquityValue, cur)),
		line("Value per share", Money(r.DCF.Equity.ValuePerShare, cur)),
		line("WACC / terminal growth", fmt.Sprintf("%s / %s", Pct(r.WACC.WACC, 2), Pct(r.DCF.Inputs.TerminalGrowth, 2))),
		line("Terminal value share", fmt.Sprintf("%s%%", Num(r.DCF.EV.TerminalPct, 1))),
	}
	if m := r.DCF.Market; m != nil {
		style := upStyle
		if m.Upside < 0 {
			style = downStyle
		}
		valuation = append(valuation,
			line("Market price", Money(m.MarketPrice, cur)),
			lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("Upside"), style.Render(Pct(m.Upside, 1))),
		)
	}
	blocks = append(blocks, panelStyle.Render(strings.Join(valuation, "\n")))

	if len(r.Tornado) > 0 {
		var rows []string
		rows = append(rows, valueStyle.Render("Largest drivers"))
		for i, t := range r.Tornado {
			if i == 3 {
				break
			}
			rows = append(rows, line(string(t.Param), "swing "+Money(t.Swing, cur)))
		}
		blocks = append(blocks, panelStyle.Render(strings.Join(rows, "\n")))
	}

	if len(r.Findings) > 0 {
		var rows []string
		rows = append(rows, valueStyle.Render(fmt.Sprintf("Market-implied at %s", Money(r.Reverse.TargetPrice, cur))))
		for _, f := range r.Findings {
			style, ok := levelStyles[f.Level]
			if !ok {
				style = lipgloss.NewStyle()
			}
			rows = append(rows, style.Render(fmt.Sprintf("[%s] %s", f.Level, f.Message)))
		}
		blocks = append(blocks, panelStyle.Render(strings.Join(rows, "\n")))
	}

	for _, w := range r.Warnings {
		blocks = append(blocks, downStyle.Render("! "+w))
	}

	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}
