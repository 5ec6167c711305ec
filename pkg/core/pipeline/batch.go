package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/logger"
	"dcf_valuation/pkg/models"
)

// DefaultConcurrency bounds RunBatch when no limit is given.
const DefaultConcurrency = 4

// Job is one company in a batch.
type Job struct {
	Config     assumption.Config
	Financials models.Financials
	Options    Options
}

// BatchResult is the outcome for one job. Err is nil on success.
type BatchResult struct {
	Ticker  string        `json:"ticker"`
	Report  *Report       `json:"report,omitempty"`
	Err     error         `json:"-"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// RunBatch values each job concurrently. A failing job does not stop the
// others; results keep the order of jobs.
func (p *PipelineOrchestrator) RunBatch(ctx context.Context, jobs []Job, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	log := logger.FromContext(ctx)
	results := make([]BatchResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			start := time.Now()
			res := BatchResult{Ticker: job.Config.Company.Ticker}
			if err := gctx.Err(); err != nil {
				res.Err = err
			} else {
				res.Report, res.Err = p.Run(gctx, job.Config, job.Financials, job.Options)
			}
			res.Elapsed = time.Since(start)
			if res.Err != nil {
				res.Error = res.Err.Error()
				log.Warnw("batch job failed", "ticker", res.Ticker, "error", res.Err)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
