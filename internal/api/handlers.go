package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"event-impact-lab/internal/analysis"
	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/ingestion"
	"event-impact-lab/internal/metrics"
	"event-impact-lab/internal/verification"
)

// Analyzer is the analysis surface served over HTTP (analysis.Service).
type Analyzer interface {
	VolatilityMetrics(ctx context.Context, symbol string, eventTime time.Time, windowMinutes, baselineDays int) (domain.VolatilityMetrics, error)
	ImpactProfile(ctx context.Context, symbol, eventType string) (*domain.ImpactProfile, error)
	StraddleParameters(ctx context.Context, symbol, eventType string, mode domain.StraddleMode) (domain.StraddleParameters, error)
	Backtest(ctx context.Context, req analysis.BacktestRequest) (*domain.BacktestResult, error)
	Decay(ctx context.Context, symbol, eventType string) (domain.DecayProfile, error)
	Heatmap(ctx context.Context, req analysis.HeatmapRequest) (*domain.Heatmap, error)
	HourlyVolatility(ctx context.Context, symbol string, hour, quarter int) (domain.HourlyVolatility, error)
	Backtests(ctx context.Context, symbol, eventType string) ([]*domain.BacktestResult, error)
	CompareScenarios(ctx context.Context, symbol, eventType string) ([]metrics.ScenarioSummary, error)
	VerifyBacktest(ctx context.Context, runID string) (*verification.Report, error)
	EventTypes(ctx context.Context, symbol string, minImpact domain.Impact) ([]string, error)
	Reload(ctx context.Context, symbol string) error
}

// Handler serves the analysis endpoints.
type Handler struct {
	svc Analyzer
	log zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc Analyzer, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes mounts every endpoint on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1")
	g.GET("/volatility", h.Volatility)
	g.GET("/impact", h.Impact)
	g.GET("/straddle", h.Straddle)
	g.POST("/backtest", h.Backtest)
	g.GET("/backtests", h.ListBacktests)
	g.GET("/backtests/:run_id/verify", h.VerifyBacktest)
	g.GET("/scenarios", h.Scenarios)
	g.GET("/event-types", h.EventTypes)
	g.GET("/decay", h.Decay)
	g.POST("/heatmap", h.Heatmap)
	g.GET("/hourly", h.Hourly)
	g.POST("/symbols/:symbol/reload", h.Reload)
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return SuccessResponse(c, map[string]string{"status": "ok"})
}

// Volatility serves GET /api/v1/volatility: event vs baseline range for one
// event time.
func (h *Handler) Volatility(c echo.Context) error {
	req := &VolatilityRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	at, err := ingestion.ParseTime(req.EventTime)
	if err != nil {
		return BadRequestResponse(c, []ErrorItem{{Code: "ERR_TIME", Field: "event_time", Message: err.Error()}})
	}

	res, err := h.svc.VolatilityMetrics(c.Request().Context(), req.Symbol, at, req.WindowMinutes, req.BaselineDays)
	if err != nil {
		return h.fail(c, "volatility", err)
	}
	return SuccessResponse(c, res)
}

// Impact serves GET /api/v1/impact.
func (h *Handler) Impact(c echo.Context) error {
	req := &EventTypeRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	res, err := h.svc.ImpactProfile(c.Request().Context(), req.Symbol, req.EventType)
	if err != nil {
		return h.fail(c, "impact", err)
	}
	return SuccessResponse(c, res)
}

// Straddle serves GET /api/v1/straddle with the parameters in pips and in
// broker points.
func (h *Handler) Straddle(c echo.Context) error {
	req := &StraddleRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	params, err := h.svc.StraddleParameters(c.Request().Context(), req.Symbol, req.EventType, domain.StraddleMode(req.Mode))
	if err != nil {
		return h.fail(c, "straddle", err)
	}
	return SuccessResponse(c, StraddleResponse{Parameters: params, Points: params.ToPoints(req.PointsPerPip)})
}

// Backtest serves POST /api/v1/backtest. Without params the parameters are
// derived from the impact profile.
func (h *Handler) Backtest(c echo.Context) error {
	req := &BacktestRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	in := analysis.BacktestRequest{
		Symbol:    req.Symbol,
		EventType: req.EventType,
		Mode:      domain.StraddleMode(req.Mode),
		Scenario:  req.Scenario,
	}
	if p := req.Params; p != nil {
		in.Params = &domain.StraddleParameters{
			Mode:             domain.StraddleMode(req.Mode),
			OffsetPips:       p.OffsetPips,
			StopLossPips:     p.StopLossPips,
			TrailingStopPips: p.TrailingStopPips,
			TimeoutMinutes:   p.TimeoutMinutes,
			SLRecoveryPips:   p.SLRecoveryPips,
			EntryLeadMinutes: p.EntryLeadMinutes,
		}
	}

	res, err := h.svc.Backtest(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, "backtest", err)
	}
	return SuccessResponse(c, res)
}

// ListBacktests serves GET /api/v1/backtests, newest first.
func (h *Handler) ListBacktests(c echo.Context) error {
	req := &BacktestListRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	runs, err := h.svc.Backtests(c.Request().Context(), req.Symbol, req.EventType)
	if err != nil {
		return h.fail(c, "backtests", err)
	}
	if runs == nil {
		runs = []*domain.BacktestResult{}
	}
	return SuccessResponse(c, runs)
}

// VerifyBacktest serves GET /api/v1/backtests/:run_id/verify.
func (h *Handler) VerifyBacktest(c echo.Context) error {
	req := &VerifyRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	res, err := h.svc.VerifyBacktest(c.Request().Context(), req.RunID)
	if err != nil {
		return h.fail(c, "verify_backtest", err)
	}
	return SuccessResponse(c, res)
}

// EventTypes serves GET /api/v1/event-types.
func (h *Handler) EventTypes(c echo.Context) error {
	req := &EventTypesRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	minImpact, err := domain.ParseImpact(req.MinImpact)
	if err != nil {
		return BadRequestResponse(c, []ErrorItem{{Code: "ERR_IMPACT", Field: "min_impact", Message: err.Error()}})
	}

	types, err := h.svc.EventTypes(c.Request().Context(), req.Symbol, minImpact)
	if err != nil {
		return h.fail(c, "event_types", err)
	}
	if types == nil {
		types = []string{}
	}
	return SuccessResponse(c, types)
}

// Scenarios serves GET /api/v1/scenarios: the newest run per cost scenario.
func (h *Handler) Scenarios(c echo.Context) error {
	req := &BacktestListRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	res, err := h.svc.CompareScenarios(c.Request().Context(), req.Symbol, req.EventType)
	if err != nil {
		return h.fail(c, "scenarios", err)
	}
	return SuccessResponse(c, res)
}

// Decay serves GET /api/v1/decay.
func (h *Handler) Decay(c echo.Context) error {
	req := &EventTypeRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	res, err := h.svc.Decay(c.Request().Context(), req.Symbol, req.EventType)
	if err != nil {
		return h.fail(c, "decay", err)
	}
	return SuccessResponse(c, res)
}

// Heatmap serves POST /api/v1/heatmap.
func (h *Handler) Heatmap(c echo.Context) error {
	req := &HeatmapRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	minImpact, err := domain.ParseImpact(req.MinImpact)
	if err != nil {
		return BadRequestResponse(c, []ErrorItem{{Code: "ERR_IMPACT", Field: "min_impact", Message: err.Error()}})
	}

	res, err := h.svc.Heatmap(c.Request().Context(), analysis.HeatmapRequest{
		Symbols:       req.Symbols,
		EventTypes:    req.EventTypes,
		MinImpact:     minImpact,
		CalendarID:    req.CalendarID,
		WindowMinutes: req.WindowMinutes,
		BaselineDays:  req.BaselineDays,
	})
	if err != nil {
		return h.fail(c, "heatmap", err)
	}
	return SuccessResponse(c, res)
}

// Hourly serves GET /api/v1/hourly.
func (h *Handler) Hourly(c echo.Context) error {
	req := &HourlyRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	res, err := h.svc.HourlyVolatility(c.Request().Context(), req.Symbol, req.Hour, req.Quarter)
	if err != nil {
		return h.fail(c, "hourly", err)
	}
	return SuccessResponse(c, res)
}

// Reload serves POST /api/v1/symbols/:symbol/reload: reloads the symbol's
// candles from storage and drops its cached profiles.
func (h *Handler) Reload(c echo.Context) error {
	req := &ReloadRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	if err := h.svc.Reload(c.Request().Context(), req.Symbol); err != nil {
		return h.fail(c, "reload", err)
	}
	return SuccessResponse(c, map[string]string{"symbol": req.Symbol, "status": "reloaded"})
}

func (h *Handler) fail(c echo.Context, op string, err error) error {
	if status := StatusFor(err); status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("op", op).Msg("request failed")
	} else {
		h.log.Debug().Err(err).Str("op", op).Msg("request rejected")
	}
	return ErrorResponse(c, err)
}
