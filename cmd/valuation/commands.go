package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dcf_valuation/pkg/core/analysis"
	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/ingest"
	"dcf_valuation/pkg/core/logger"
	"dcf_valuation/pkg/core/marketdata"
	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/report"
	"dcf_valuation/pkg/core/reverse"
	"dcf_valuation/pkg/core/sensitivity"
	"dcf_valuation/pkg/core/store"
	"dcf_valuation/pkg/core/valuation"
	"dcf_valuation/pkg/models"
)

const (
	cacheDirEnv  = "VALUATION_CACHE_DIR"
	userAgentEnv = "SEC_USER_AGENT"

	defaultAssumptions = "assumptions.yaml"
	defaultFinancials  = "financials.csv"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath     string
	financialsPath string
	format         string
	marketCap      float64
	liveQuote      bool
	save           bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "valuation",
		Short: "DCF valuation engine",
		Long: `Values a company with a free-cash-flow-to-firm DCF, sweeps the result
over its key assumptions and solves for what a market price implies.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithContext(cmd.Context(), logger.New())
			cmd.SetContext(ctx)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", defaultAssumptions, "assumptions file (.yaml, .hjson or .json)")
	pf.StringVarP(&opts.financialsPath, "financials", "f", defaultFinancials, "historical financials CSV")
	pf.StringVar(&opts.format, "format", "terminal", "output format: terminal, markdown, html or json")
	pf.Float64Var(&opts.marketCap, "market-cap", 0, "market capitalisation in the quote currency")
	pf.BoolVar(&opts.liveQuote, "live-quote", false, "fetch market cap from Yahoo Finance")

	root.AddCommand(newDCFCmd(opts))
	root.AddCommand(newSensitivityCmd(opts))
	root.AddCommand(newReverseCmd(opts))
	root.AddCommand(newAnalyzeCmd(opts))
	root.AddCommand(newBatchCmd(opts))
	root.AddCommand(newFetchCmd(opts))

	return root
}

// =============================================================================
// INPUTS
// =============================================================================

func loadInputs(opts *options) (*assumption.Config, models.Financials, error) {
	cfg, err := assumption.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	fin, err := ingest.LoadFinancialsFile(opts.financialsPath)
	if err != nil {
		return nil, nil, err
	}
	if err := ingest.Validate(fin); err != nil {
		return nil, nil, err
	}
	return cfg, fin.Sorted(), nil
}

// quoteProvider picks the market data source: a fixed market cap from the
// flag, Yahoo Finance, or none.
func quoteProvider(opts *options, ticker string) marketdata.Provider {
	switch {
	case opts.marketCap > 0 && ticker != "":
		return marketdata.StaticProvider{
			strings.ToUpper(ticker): {Ticker: ticker, MarketCap: opts.marketCap, AsOf: time.Now().UTC()},
		}
	case opts.liveQuote:
		return marketdata.NewCachedProvider(marketdata.NewYahooProvider(), 15*time.Minute)
	}
	return nil
}

func openStore(ctx context.Context) (store.RunRepository, error) {
	return store.Open(ctx, os.Getenv(cacheDirEnv))
}

func printReport(w io.Writer, format string, rep *pipeline.Report) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "markdown", "md":
		md, err := report.RenderMarkdown(rep)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, md)
		return err
	case "html":
		html, err := report.RenderHTML(rep)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, html)
		return err
	default:
		_, err := fmt.Fprintln(w, report.RenderTerminal(rep))
		return err
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func newDCFCmd(opts *options) *cobra.Command {
	var (
		targetPrice float64
		derive      bool
	)
	cmd := &cobra.Command{
		Use:   "dcf",
		Short: "Run the full valuation: WACC, DCF, sensitivity, tornado and reverse DCF",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, fin, err := loadInputs(opts)
			if err != nil {
				return err
			}

			var repo store.RunRepository
			if opts.save {
				if repo, err = openStore(ctx); err != nil {
					return err
				}
				defer store.Close()
			}

			p := pipeline.NewPipelineOrchestrator(quoteProvider(opts, cfg.Company.Ticker), repo)
			rep, err := p.Run(ctx, *cfg, fin, pipeline.Options{TargetPrice: targetPrice, DeriveCapitalIntensity: derive})
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), opts.format, rep)
		},
	}
	cmd.Flags().Float64Var(&targetPrice, "target-price", 0, "price for the reverse DCF (defaults to the market price)")
	cmd.Flags().BoolVar(&derive, "derive-capital-intensity", false, "use trailing historical capex, depreciation and NWC ratios")
	cmd.Flags().BoolVar(&opts.save, "save", false, "persist the report (Postgres when DATABASE_URL is set, files otherwise)")
	return cmd
}

func newSensitivityCmd(opts *options) *cobra.Command {
	var csvDir string
	cmd := &cobra.Command{
		Use:   "sensitivity",
		Short: "Print the two-way sensitivity tables and the tornado ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, fin, err := loadInputs(opts)
			if err != nil {
				return err
			}
			w, err := valuation.CalculateWACC(*cfg)
			if err != nil {
				return err
			}

			base := valuation.ParamsFromConfig(*cfg, fin, w.WACC)
			var tables []*sensitivity.Table
			for _, preset := range sensitivity.Presets(cfg.Sensitivity, w.WACC) {
				t, err := sensitivity.RunPreset(valuation.ValuePerShare, base, preset)
				if err != nil {
					return fmt.Errorf("%s: %w", preset.Name, err)
				}
				tables = append(tables, t)
			}
			tornado, err := sensitivity.Tornado(valuation.ValuePerShare, base, sensitivity.TornadoSpecs(cfg.Sensitivity))
			if err != nil {
				return err
			}

			if csvDir != "" {
				return writeSensitivityCSV(csvDir, tables, tornado)
			}
			out := cmd.OutOrStdout()
			for _, t := range tables {
				fmt.Fprintf(out, "%s (%s rows x %s columns)\n", t.Name, t.ParamX, t.ParamY)
				for i, x := range t.XValues {
					fmt.Fprintf(out, "  %-10s", report.Num(x, 4))
					for _, v := range t.Values[i] {
						fmt.Fprintf(out, " %10s", report.Num(v, 2))
					}
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, "tornado")
			for _, r := range tornado {
				fmt.Fprintf(out, "  %-24s swing %s\n", r.Param, report.Num(r.Swing, 2))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvDir, "csv", "", "write tables.csv and tornado.csv to this directory instead of printing")
	return cmd
}

func writeSensitivityCSV(dir string, tables []*sensitivity.Table, tornado []sensitivity.TornadoRecord) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	write := func(name string, fn func(io.Writer) error) error {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		defer f.Close()
		return fn(f)
	}
	if err := write("tables.csv", func(w io.Writer) error { return report.WriteTablesCSV(w, tables) }); err != nil {
		return err
	}
	return write("tornado.csv", func(w io.Writer) error { return report.WriteTornadoCSV(w, tornado) })
}

func newReverseCmd(opts *options) *cobra.Command {
	var price float64
	cmd := &cobra.Command{
		Use:   "reverse",
		Short: "Solve for the growth, margin, WACC and terminal growth a price implies",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, fin, err := loadInputs(opts)
			if err != nil {
				return err
			}
			w, err := valuation.CalculateWACC(*cfg)
			if err != nil {
				return err
			}
			if price <= 0 {
				return fmt.Errorf("--price must be positive")
			}

			res, err := reverse.SolveAll(ctx, price, fin, *cfg, w.WACC)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Implied by %.2f (base WACC %s)\n", price, report.Pct(w.WACC, 2))
			for _, s := range []struct {
				name string
				sol  reverse.Solution
			}{
				{"growth_rate", res.Growth},
				{"operating_margin", res.OperatingMargin},
				{"wacc", res.WACC},
				{"terminal_growth", res.TerminalGrowth},
			} {
				note := ""
				if !s.sol.Converged {
					note = " (not converged)"
				}
				fmt.Fprintf(out, "  %-18s %s%s\n", s.name, report.Pct(s.sol.Value, 2), note)
			}
			years := cfg.Projection.ExplicitYears
			fmt.Fprintf(out, "Year-%d revenue at implied growth: %s\n", years,
				report.Num(reverse.ImpliedRevenue(fin.Latest().Revenue, res.Growth.Value, years), 0))
			for _, f := range reverse.Assess(*res, w.WACC) {
				fmt.Fprintf(out, "  [%s] %s\n", f.Level, f.Message)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&price, "price", 0, "target share price in reporting currency")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Historical margins, ROIC and working capital",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, fin, err := loadInputs(opts)
			if err != nil {
				return err
			}
			a, err := analysis.NewAnalysisEngine().Analyze(cfg.Company.Ticker, fin, cfg.Tax.EffectiveRate)
			if err != nil {
				return err
			}
			if opts.format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-6s %9s %9s %9s %9s %9s %9s\n", "year", "growth", "gross", "op", "roic", "capex", "ccc")
			for _, y := range a.Timeline {
				fmt.Fprintf(out, "%-6d %9s %9s %9s %9s %9s %9s\n", y.FiscalYear,
					report.OptPct(y.Growth.RevenueGrowth, 1), report.OptPct(y.GrossMargin, 1),
					report.OptPct(y.OperatingMargin, 1), report.OptPct(y.ROIC, 1),
					report.OptPct(y.CapexToRevenue, 1), report.OptNum(y.WorkingCapital.CCC, 0))
			}
			ci := analysis.DeriveCapitalIntensity(a, cfg.CostOfCapital.TrailingYears, cfg.CapitalIntensity)
			fmt.Fprintf(out, "\nrevenue CAGR %s; trailing capex/rev %s, dep/rev %s, nwc/rev %s\n",
				report.OptPct(a.Summary.RevenueCAGR, 1), report.Pct(ci.CapexToRevenue, 1),
				report.Pct(ci.DepreciationToRevenue, 1), report.Pct(ci.NWCToRevenue, 1))
			return nil
		},
	}
}

func newBatchCmd(opts *options) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "batch DIR...",
		Short: "Value several companies; each DIR holds assumptions.yaml and financials.csv",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger.FromContext(ctx)

			var jobs []pipeline.Job
			for _, dir := range args {
				cfg, err := assumption.Load(filepath.Join(dir, defaultAssumptions))
				if err != nil {
					log.Warnw("skipping company", "dir", dir, "error", err)
					continue
				}
				fin, err := ingest.LoadFinancialsFile(filepath.Join(dir, defaultFinancials))
				if err != nil {
					log.Warnw("skipping company", "dir", dir, "error", err)
					continue
				}
				jobs = append(jobs, pipeline.Job{Config: *cfg, Financials: fin})
			}

			var repo store.RunRepository
			if opts.save {
				r, err := openStore(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
				repo = r
			}

			var quotes marketdata.Provider
			if opts.liveQuote {
				quotes = marketdata.NewCachedProvider(marketdata.NewYahooProvider(), 15*time.Minute)
			}
			results := pipeline.NewPipelineOrchestrator(quotes, repo).RunBatch(ctx, jobs, concurrency)

			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "%-8s FAILED  %v\n", r.Ticker, r.Err)
					continue
				}
				fmt.Fprintf(out, "%-8s %12s per share  (%s)\n", r.Ticker,
					report.Num(r.Report.DCF.Equity.ValuePerShare, 2), r.Elapsed.Round(time.Millisecond))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d companies failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", pipeline.DefaultConcurrency, "companies valued in parallel")
	cmd.Flags().BoolVar(&opts.save, "save", false, "persist each report")
	return cmd
}

func newFetchCmd(opts *options) *cobra.Command {
	var (
		ticker, cik, out, userAgent string
		years                       int
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download annual financials from SEC XBRL companyfacts into a CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			xo := ingest.XBRLOptions{YearsToKeep: years}

			// The sec section of an assumptions file fills anything not given as a flag.
			var sec assumption.SEC
			if cfg, err := assumption.Load(opts.configPath); err == nil {
				sec = cfg.SEC
				if ticker == "" {
					ticker = cfg.Company.Ticker
				}
				if !cmd.Flags().Changed("years") {
					xo.YearsToKeep = sec.YearsToKeep
				}
				xo.AnnualForms = sec.AnnualForms
			}
			if cik == "" {
				cik = sec.CIK
			}
			if userAgent == "" {
				userAgent = sec.UserAgent
			}
			if userAgent == "" {
				userAgent = os.Getenv(userAgentEnv)
			}
			client := ingest.NewEDGARClient(userAgent)
			if sec.BaseURL != "" {
				client.BaseURL = sec.BaseURL
			}

			if cik == "" {
				if ticker == "" {
					return fmt.Errorf("--ticker or --cik is required")
				}
				var err error
				if cik, err = client.LookupCIKByTicker(ctx, ticker); err != nil {
					return err
				}
			}

			facts, _, err := client.FetchFinancials(ctx, cik, xo)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := ingest.SaveFinancialsCSV(f, facts.Financials); err != nil {
				return err
			}
			logger.FromContext(ctx).Infow("financials saved",
				"entity", facts.EntityName, "cik", ingest.PadCIK(cik), "years", len(facts.Financials), "path", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker to resolve to a CIK")
	cmd.Flags().StringVar(&cik, "cik", "", "SEC central index key")
	cmd.Flags().StringVarP(&out, "out", "o", defaultFinancials, "output CSV path")
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "SEC User-Agent (defaults to "+userAgentEnv+")")
	cmd.Flags().IntVar(&years, "years", assumption.DefaultYearsToKeep, "fiscal years to keep")
	return cmd
}
