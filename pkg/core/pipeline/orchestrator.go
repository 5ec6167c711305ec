package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"dcf_valuation/pkg/core/analysis"
	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/ingest"
	"dcf_valuation/pkg/core/logger"
	"dcf_valuation/pkg/core/marketdata"
	"dcf_valuation/pkg/core/reverse"
	"dcf_valuation/pkg/core/sensitivity"
	"dcf_valuation/pkg/core/store"
	"dcf_valuation/pkg/core/valuation"
	"dcf_valuation/pkg/models"
)

// ValidationConfig defines thresholds for the pre-valuation data checks.
type ValidationConfig struct {
	EnableStrictValidation bool    // If true, validation failures stop the run
	ShareChangeTolerance   float64 // Max year-over-year share count change in % (default 25)
	MarginCeiling          float64 // Operating margin above this is suspicious (default 1.0)
}

// Options tune a single run.
type Options struct {
	// TargetPrice drives the reverse DCF. Zero uses the market price.
	TargetPrice float64
	// DeriveCapitalIntensity replaces the configured capex, depreciation
	// and NWC ratios with trailing historical averages.
	DeriveCapitalIntensity bool
}

// Report bundles everything one valuation run produced.
type Report struct {
	ID        string                      `json:"id"`
	CreatedAt time.Time                   `json:"created_at"`
	Company   assumption.Company          `json:"company"`
	Config    assumption.Config           `json:"config"`
	Quote     *models.MarketData          `json:"quote,omitempty"` // reporting currency
	WACC      valuation.WACCResult        `json:"wacc"`
	DCF       *valuation.DCFResult        `json:"dcf"`
	Tables    []*sensitivity.Table        `json:"tables"`
	Tornado   []sensitivity.TornadoRecord `json:"tornado"`
	Reverse   *reverse.Result             `json:"reverse,omitempty"`
	Findings  []reverse.Finding           `json:"findings,omitempty"`
	Analysis  *analysis.CompanyAnalysis   `json:"analysis"`
	Warnings  []string                    `json:"warnings,omitempty"`
}

// PipelineOrchestrator runs one valuation end to end:
// validate -> analysis -> WACC -> DCF -> sensitivity -> tornado -> reverse DCF -> storage.
type PipelineOrchestrator struct {
	quotes           marketdata.Provider
	analyzer         *analysis.AnalysisEngine
	repo             store.RunRepository
	validationConfig ValidationConfig
	now              func() time.Time
}

// NewPipelineOrchestrator creates an orchestrator. quotes and repo may be nil:
// the run then skips the market comparison or persistence.
func NewPipelineOrchestrator(quotes marketdata.Provider, repo store.RunRepository) *PipelineOrchestrator {
	return &PipelineOrchestrator{
		quotes:   quotes,
		analyzer: analysis.NewAnalysisEngine(),
		repo:     repo,
		validationConfig: ValidationConfig{
			EnableStrictValidation: false, // Default: Log warnings but proceed
			ShareChangeTolerance:   25,
			MarginCeiling:          1.0,
		},
		now: time.Now,
	}
}

// SetRepository allows injecting a custom repository (e.g., for testing).
func (p *PipelineOrchestrator) SetRepository(repo store.RunRepository) {
	p.repo = repo
}

// SetValidationConfig updates the validation configuration
func (p *PipelineOrchestrator) SetValidationConfig(config ValidationConfig) {
	p.validationConfig = config
}

// Run executes the full valuation for one company.
func (p *PipelineOrchestrator) Run(ctx context.Context, cfg assumption.Config, fin models.Financials, opts Options) (*Report, error) {
	log := logger.FromContext(ctx).With("ticker", cfg.Company.Ticker)
	start := p.now()

	// 0. Data checks
	if err := ingest.Validate(fin); err != nil {
		return nil, err
	}
	fin = fin.Sorted()
	warnings, err := p.validateFinancials(ctx, fin)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:        uuid.NewString(),
		CreatedAt: start.UTC(),
		Company:   cfg.Company,
		Warnings:  warnings,
	}

	// 1. Market data
	var market *models.MarketData
	if p.quotes != nil && cfg.Company.Ticker != "" {
		md, err := p.quotes.Quote(ctx, cfg.Company.Ticker)
		if err != nil {
			log.Warnw("market quote unavailable", "error", err)
			report.Warnings = append(report.Warnings, fmt.Sprintf("market quote unavailable: %v", err))
		} else {
			market = md
			q := marketdata.ToReporting(*md, cfg.Market.FXToReporting, cfg.Company.Currency)
			report.Quote = &q
		}
	}

	// 2. Historical analysis
	hist, err := p.analyzer.Analyze(cfg.Company.Ticker, fin, cfg.Tax.EffectiveRate)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	report.Analysis = hist
	if opts.DeriveCapitalIntensity {
		cfg.CapitalIntensity = analysis.DeriveCapitalIntensity(hist, cfg.CostOfCapital.TrailingYears, cfg.CapitalIntensity)
		log.Infow("capital intensity derived from history",
			"capex_to_revenue", cfg.CapitalIntensity.CapexToRevenue,
			"depreciation_to_revenue", cfg.CapitalIntensity.DepreciationToRevenue,
			"nwc_to_revenue", cfg.CapitalIntensity.NWCToRevenue)
	}
	report.Config = cfg

	// 3. WACC
	report.WACC, err = p.wacc(ctx, cfg, fin, market, report)
	if err != nil {
		return nil, fmt.Errorf("wacc: %w", err)
	}
	wacc := report.WACC.WACC
	log.Infow("wacc computed", "wacc", wacc, "sources", report.WACC.Sources)

	// 4. DCF
	report.DCF, err = valuation.RunDCF(cfg, fin, wacc, market)
	if err != nil {
		return nil, fmt.Errorf("dcf: %w", err)
	}
	log.Infow("dcf complete",
		"enterprise_value", report.DCF.EV.EnterpriseValue,
		"value_per_share", report.DCF.Equity.ValuePerShare,
		"terminal_pct", report.DCF.EV.TerminalPct)

	// 5. Sensitivity tables and tornado
	base := valuation.ParamsFromConfig(cfg, fin, wacc)
	for _, preset := range sensitivity.Presets(cfg.Sensitivity, wacc) {
		table, err := sensitivity.RunPreset(valuation.ValuePerShare, base, preset)
		if err != nil {
			log.Warnw("sensitivity table skipped", "table", preset.Name, "error", err)
			report.Warnings = append(report.Warnings, fmt.Sprintf("sensitivity %s skipped: %v", preset.Name, err))
			continue
		}
		report.Tables = append(report.Tables, table)
	}
	report.Tornado, err = sensitivity.Tornado(valuation.ValuePerShare, base, sensitivity.TornadoSpecs(cfg.Sensitivity))
	if err != nil {
		log.Warnw("tornado skipped", "error", err)
		report.Warnings = append(report.Warnings, fmt.Sprintf("tornado skipped: %v", err))
	}

	// 6. Reverse DCF
	target := opts.TargetPrice
	if target <= 0 && report.DCF.Market != nil {
		target = report.DCF.Market.MarketPrice
	}
	if target > 0 && !math.IsInf(target, 0) {
		rev, err := reverse.SolveAll(ctx, target, fin, cfg, wacc)
		if err != nil {
			log.Warnw("reverse dcf failed", "target", target, "error", err)
			report.Warnings = append(report.Warnings, fmt.Sprintf("reverse dcf failed: %v", err))
		} else {
			report.Reverse = rev
			report.Findings = reverse.Assess(*rev, wacc)
		}
	}

	// 7. Storage
	if p.repo != nil {
		if err := p.save(ctx, report); err != nil {
			return nil, fmt.Errorf("storage failed: %w", err)
		}
	}

	log.Infow("pipeline completed", "run_id", report.ID, "elapsed", time.Since(start))
	return report, nil
}

func (p *PipelineOrchestrator) wacc(ctx context.Context, cfg assumption.Config, fin models.Financials, market *models.MarketData, report *Report) (valuation.WACCResult, error) {
	if cfg.CostOfCapital.DeriveFromData {
		if market != nil && market.MarketCap > 0 {
			return valuation.CalculateWACCFromData(cfg, fin, *market)
		}
		logger.FromContext(ctx).Warnw("no market cap for data-driven WACC, using configured weights")
		report.Warnings = append(report.Warnings, "data-driven WACC needs a market cap; configured inputs used")
	}
	return valuation.CalculateWACC(cfg)
}

func (p *PipelineOrchestrator) save(ctx context.Context, report *Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return p.repo.Save(ctx, &store.Run{
		ID:        report.ID,
		Ticker:    report.Company.Ticker,
		CreatedAt: report.CreatedAt,
		Report:    data,
	})
}

// validateFinancials runs plausibility checks on the statements and returns
// the warnings raised. In strict mode the first failure is an error.
func (p *PipelineOrchestrator) validateFinancials(ctx context.Context, fin models.Financials) ([]string, error) {
	var warnings []string
	for i, r := range fin {
		year := r.FiscalYear()

		if m, ok := r.OperatingMargin(); ok && math.Abs(m) > p.validationConfig.MarginCeiling {
			msg := fmt.Sprintf("%d: operating margin %.1f%% outside +/-%.0f%%", year, m*100, p.validationConfig.MarginCeiling*100)
			if err := p.checkTolerance(ctx, msg); err != nil {
				return nil, err
			}
			warnings = append(warnings, msg)
		}

		if i > 0 && fin[i-1].SharesOutstanding > 0 {
			change := math.Abs(r.SharesOutstanding/fin[i-1].SharesOutstanding-1) * 100
			if change > p.validationConfig.ShareChangeTolerance {
				msg := fmt.Sprintf("%d: shares outstanding changed %.1f%% (> %.0f%%)", year, change, p.validationConfig.ShareChangeTolerance)
				if err := p.checkTolerance(ctx, msg); err != nil {
					return nil, err
				}
				warnings = append(warnings, msg)
			}
		}

		if r.Revenue <= 0 && i < len(fin)-1 {
			msg := fmt.Sprintf("%d: non-positive revenue", year)
			if err := p.checkTolerance(ctx, msg); err != nil {
				return nil, err
			}
			warnings = append(warnings, msg)
		}
	}
	return warnings, nil
}

// checkTolerance logs a failed check; strict mode turns it into an error.
func (p *PipelineOrchestrator) checkTolerance(ctx context.Context, msg string) error {
	log := logger.FromContext(ctx)
	if p.validationConfig.EnableStrictValidation {
		log.Errorw("validation failed", "check", msg)
		return fmt.Errorf("%w: %s", ingest.ErrInvalidFinancials, msg)
	}
	log.Warnw("validation warning", "check", msg)
	return nil
}
