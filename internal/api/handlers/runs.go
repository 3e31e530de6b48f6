package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"rec-lem-prices/internal/analysis"
	"rec-lem-prices/internal/api/models"
	"rec-lem-prices/internal/data"
	"rec-lem-prices/internal/equilibrium"
	"rec-lem-prices/internal/ledger"
	"rec-lem-prices/internal/model"
	"rec-lem-prices/internal/pricing"
	"rec-lem-prices/internal/schedule"

	"github.com/gin-gonic/gin"
)

// SchedulerFactory builds the scheduler a run uses.
type SchedulerFactory func(cfg schedule.Config) schedule.Scheduler

// RunHandler handles price discovery runs
type RunHandler struct {
	newScheduler SchedulerFactory
	base         schedule.Config
	store        *data.RunStore
	logger       *slog.Logger
}

// NewRunHandler creates a new run handler. A nil store disables run
// retrieval; runs still execute.
func NewRunHandler(newScheduler SchedulerFactory, base schedule.Config, store *data.RunStore, logger *slog.Logger) *RunHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunHandler{
		newScheduler: newScheduler,
		base:         base,
		store:        store,
		logger:       logger,
	}
}

// RunPrices handles POST /api/v1/runs
func (h *RunHandler) RunPrices(c *gin.Context) {
	var req models.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err)
		return
	}

	tf, rounding, ok := h.checkCommunity(c, req.Community, req.Timeframe, req.Rounding)
	if !ok {
		return
	}
	params := req.Pricing.WithDefaults()
	if err := params.Validate(); err != nil {
		writeError(c, err)
		return
	}
	market := schedule.Market(req.Market)
	if err := market.Validate(); err != nil {
		writeError(c, err)
		return
	}

	cfg := h.base
	if req.Options.SocSteps > 0 {
		cfg.SocSteps = req.Options.SocSteps
	}
	if req.Options.PowerSteps > 0 {
		cfg.PowerSteps = req.Options.PowerSteps
	}
	loop := equilibrium.NewLoop(h.newScheduler(cfg), rounding, h.logger).WithMarket(market)

	out, err := loop.Run(c.Request.Context(), req.Community, tf, params)
	if err != nil {
		h.logger.Warn("run failed", "mechanism", params.Name(), "timeframe", tf, "error", err)
		writeError(c, err)
		return
	}
	led, err := ledger.Build(req.Community, out.Members, out.Prices)
	if err != nil {
		writeError(c, err)
		return
	}

	run := &data.Run{
		Community: req.Community,
		Timeframe: tf,
		Params:    params,
		Outcome:   out,
		Ledger:    led,
	}
	if h.store != nil {
		h.store.Put(run)
	}

	response := models.RunResponse{
		ID:        run.ID,
		Status:    "completed",
		CreatedAt: run.CreatedAt,
		Summary:   summarize(params, tf, out, led),
	}
	if req.Options.IncludeHistory {
		response.History = out.History
	}
	if req.Options.IncludeLedger {
		response.Ledger = led.Rows
	}
	c.JSON(http.StatusOK, response)
}

// GetLedger handles GET /api/v1/runs/:id/ledger
func (h *RunHandler) GetLedger(c *gin.Context) {
	id := c.Param("id")
	var (
		run *data.Run
		ok  bool
	)
	if h.store != nil {
		run, ok = h.store.Get(id)
	}
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "NOT_FOUND",
				Message: fmt.Sprintf("run %q not found or expired", id),
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.LedgerResponse{
		ID:        run.ID,
		TradedKWh: run.Ledger.TradedKWh,
		Value:     run.Ledger.Value,
		Ledger:    run.Ledger.Rows,
	})
}

// CompareRuns handles POST /api/v1/runs/compare
func (h *RunHandler) CompareRuns(c *gin.Context) {
	var req models.CompareRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err)
		return
	}

	tf, rounding, ok := h.checkCommunity(c, req.Community, req.Timeframe, req.Rounding)
	if !ok {
		return
	}
	market := schedule.Market(req.Market)
	if err := market.Validate(); err != nil {
		writeError(c, err)
		return
	}

	variants := analysis.DefaultVariants()
	names := make([]string, len(variants))
	if len(req.Variations) > 0 {
		variants = make([]pricing.Params, len(req.Variations))
		names = make([]string, len(req.Variations))
		for i, v := range req.Variations {
			variants[i] = v.Pricing
			names[i] = v.Name
		}
	}

	loop := equilibrium.NewLoop(h.newScheduler(h.base), rounding, h.logger).WithMarket(market)
	ranked, err := analysis.CompareMechanisms(c.Request.Context(), loop, req.Community, tf, variants)
	if err != nil {
		writeError(c, err)
		return
	}

	comparison := make([]models.ComparisonResult, 0, len(ranked))
	for _, cmp := range ranked {
		res := models.ComparisonResult{
			Rank: cmp.Rank,
			Name: cmp.Name,
		}
		if names[cmp.Index] != "" {
			res.Name = names[cmp.Index]
		}
		if cmp.Err != nil {
			_, detail := errorDetail(cmp.Err)
			res.Error = &detail
		} else {
			summary := summarize(cmp.Params, tf, cmp.Outcome, nil)
			res.Summary = &summary
		}
		comparison = append(comparison, res)
	}

	c.JSON(http.StatusOK, models.CompareRunResponse{
		Comparison: comparison,
	})
}

// Helper methods

// checkCommunity resolves the timeframe and rounding defaults and validates
// the community. It writes the error response itself and reports false on
// failure.
func (h *RunHandler) checkCommunity(c *gin.Context, community model.Community, timeframe, rounding string) (schedule.Timeframe, model.Rounding, bool) {
	tf := schedule.Timeframe(timeframe)
	switch tf {
	case "":
		tf = schedule.TimeframePre
	case schedule.TimeframePre, schedule.TimeframePost:
	default:
		writeError(c, fmt.Errorf("%w: timeframe must be pre or post, got %q", model.ErrInvalidParameter, timeframe))
		return "", "", false
	}

	r := model.Rounding(rounding)
	if r == "" {
		r = model.RoundingTruncate
	}
	if _, err := community.Validate(r); err != nil {
		if errors.Is(err, model.ErrShapeMismatch) || errors.Is(err, model.ErrInvalidParameter) {
			writeError(c, err)
		} else {
			badRequest(c, "INVALID_COMMUNITY", err)
		}
		return "", "", false
	}
	return tf, r, true
}

func summarize(params pricing.Params, tf schedule.Timeframe, out *equilibrium.Outcome, led *ledger.Result) models.RunSummary {
	s := models.RunSummary{
		Mechanism:  params.Name(),
		Timeframe:  string(tf),
		State:      string(out.State),
		Prices:     out.Prices,
		Criterion:  out.Criterion,
		Iterations: out.Iterations,
		Objective:  out.Objective,
		Stats:      analysis.ComputePriceStats(out.Prices),
	}
	if led != nil {
		s.TradedKWh = led.TradedKWh
	}
	return s
}
