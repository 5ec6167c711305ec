package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/ingest"
	"dcf_valuation/pkg/core/logger"
	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/report"
	"dcf_valuation/pkg/core/reverse"
	"dcf_valuation/pkg/core/store"
	"dcf_valuation/pkg/core/utils"
	coreValuation "dcf_valuation/pkg/core/valuation"
	"dcf_valuation/pkg/models"
)

const (
	maxBodyBytes   = 10 << 20
	requestTimeout = 60 * time.Second
)

// DCFRequest runs the full pipeline for one company.
type DCFRequest struct {
	Config     assumption.Config `json:"config"`
	Financials models.Financials `json:"financials"`
	Options    struct {
		TargetPrice            float64 `json:"target_price"`
		DeriveCapitalIntensity bool    `json:"derive_capital_intensity"`
	} `json:"options"`
}

// ReverseRequest solves for the parameters a target price implies.
// WACC is computed from config when omitted.
type ReverseRequest struct {
	Config      assumption.Config `json:"config"`
	Financials  models.Financials `json:"financials"`
	TargetPrice float64           `json:"target_price"`
	WACC        float64           `json:"wacc"`
}

// ReverseResponse is the reverse-DCF result with its assessment.
type ReverseResponse struct {
	Result          *reverse.Result   `json:"result"`
	Findings        []reverse.Finding `json:"findings"`
	ImpliedRevenue  float64           `json:"implied_revenue"`
	ProjectionYears int               `json:"projection_years"`
}

// Handler holds dependencies for valuation endpoints
type Handler struct {
	Pipeline *pipeline.PipelineOrchestrator
	Repo     store.RunRepository
	Log      *zap.SugaredLogger
}

// NewHandler creates a new valuation handler
func NewHandler(p *pipeline.PipelineOrchestrator, repo store.RunRepository, log *zap.SugaredLogger) *Handler {
	return &Handler{Pipeline: p, Repo: repo, Log: log}
}

// Register mounts the valuation endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/valuation/dcf", h.HandleDCF)
	mux.HandleFunc("/api/valuation/reverse", h.HandleReverse)
	mux.HandleFunc("/api/valuation/report", h.HandleReport)
}

func cors(w http.ResponseWriter, r *http.Request, methods string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return true
	}
	return false
}

func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx := r.Context()
	if h.Log != nil {
		ctx = logger.WithContext(ctx, h.Log.With("path", r.URL.Path))
	}
	return context.WithTimeout(ctx, requestTimeout)
}

// decode reads the body leniently: strict JSON first, then a repaired copy.
func decode(r *http.Request, out interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errors.New("empty request body")
	}
	return utils.DecodeLenientJSON(body, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func prepareConfig(cfg *assumption.Config) error {
	cfg.ApplyDefaults()
	return cfg.Validate()
}

// HandleDCF runs the pipeline. ?format=markdown|html returns a rendered report.
func (h *Handler) HandleDCF(w http.ResponseWriter, r *http.Request) {
	if cors(w, r, "POST") {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
		return
	}

	var req DCFRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := utils.RequireFields(&req, "Financials", "Config.Company.Ticker"); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := prepareConfig(&req.Config); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	log := logger.FromContext(ctx)
	log.Infow("dcf request", "ticker", req.Config.Company.Ticker, "years", len(req.Financials))

	rep, err := h.Pipeline.Run(ctx, req.Config, req.Financials, pipeline.Options{
		TargetPrice:            req.Options.TargetPrice,
		DeriveCapitalIntensity: req.Options.DeriveCapitalIntensity,
	})
	if err != nil {
		log.Warnw("dcf failed", "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	h.respondReport(w, r, rep)
}

// HandleReverse solves the four implied parameters for a target price.
func (h *Handler) HandleReverse(w http.ResponseWriter, r *http.Request) {
	if cors(w, r, "POST") {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
		return
	}

	var req ReverseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := utils.RequireFields(&req, "Financials", "TargetPrice"); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := ingest.Validate(req.Financials); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := prepareConfig(&req.Config); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	wacc := req.WACC
	if wacc == 0 {
		res, err := coreValuation.CalculateWACC(req.Config)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		wacc = res.WACC
	}

	result, err := reverse.SolveAll(ctx, req.TargetPrice, req.Financials, req.Config, wacc)
	if err != nil {
		logger.FromContext(ctx).Warnw("reverse dcf failed", "error", err)
		writeError(w, statusFor(err), err)
		return
	}

	years := req.Config.Projection.ExplicitYears
	writeJSON(w, http.StatusOK, ReverseResponse{
		Result:          result,
		Findings:        reverse.Assess(*result, wacc),
		ImpliedRevenue:  reverse.ImpliedRevenue(req.Financials.Sorted().Latest().Revenue, result.Growth.Value, years),
		ProjectionYears: years,
	})
}

// HandleReport returns a stored run by ?id= or the latest for ?ticker=.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	if cors(w, r, "GET") {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("GET required"))
		return
	}
	if h.Repo == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no report store configured"))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	var (
		run *store.Run
		err error
	)
	q := r.URL.Query()
	switch {
	case q.Get("id") != "":
		run, err = h.Repo.Load(ctx, q.Get("id"))
	case q.Get("ticker") != "":
		run, err = h.Repo.Latest(ctx, strings.ToUpper(q.Get("ticker")))
	default:
		writeError(w, http.StatusBadRequest, errors.New("id or ticker query parameter required"))
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var rep pipeline.Report
	if err := json.Unmarshal(run.Report, &rep); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("stored report is corrupt: %w", err))
		return
	}
	h.respondReport(w, r, &rep)
}

func (h *Handler) respondReport(w http.ResponseWriter, r *http.Request, rep *pipeline.Report) {
	switch r.URL.Query().Get("format") {
	case "markdown", "md":
		md, err := report.RenderMarkdown(rep)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = io.WriteString(w, md)
	case "html":
		html, err := report.RenderHTML(rep)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, html)
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrInvalidFinancials),
		errors.Is(err, coreValuation.ErrTerminalGrowthAboveWACC),
		errors.Is(err, coreValuation.ErrCapitalWeights),
		errors.Is(err, coreValuation.ErrNoFinancials),
		errors.Is(err, reverse.ErrInvalidBracket):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
