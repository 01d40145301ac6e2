package api

import "event-impact-lab/internal/domain"

// VolatilityRequest is the query of GET /api/v1/volatility.
// EventTime accepts RFC3339, "2006-01-02 15:04" or unix seconds/milliseconds.
type VolatilityRequest struct {
	Symbol        string `query:"symbol" validate:"required"`
	EventTime     string `query:"event_time" validate:"required"`
	WindowMinutes int    `query:"window_minutes" validate:"gte=0,lte=720"`
	BaselineDays  int    `query:"baseline_days" validate:"gte=0,lte=3650"`
}

// EventTypeRequest is the query of the per-event-type GET endpoints.
type EventTypeRequest struct {
	Symbol    string `query:"symbol" validate:"required"`
	EventType string `query:"event_type" validate:"required"`
}

// StraddleRequest is the query of GET /api/v1/straddle.
type StraddleRequest struct {
	Symbol       string `query:"symbol" validate:"required"`
	EventType    string `query:"event_type" validate:"required"`
	Mode         string `query:"mode" default:"directional" validate:"oneof=directional simultaneous"`
	PointsPerPip int64  `query:"points_per_pip" default:"10" validate:"gt=0"`
}

// StraddleResponse carries the parameters in pips and broker points.
type StraddleResponse struct {
	Parameters domain.StraddleParameters `json:"parameters"`
	Points     domain.PointDistances     `json:"points"`
}

// ParamsBody overrides derived straddle parameters. Distances are in pips.
type ParamsBody struct {
	OffsetPips       float64 `json:"offset_pips" validate:"gt=0"`
	StopLossPips     float64 `json:"stop_loss_pips" validate:"gt=0"`
	TrailingStopPips float64 `json:"trailing_stop_pips" validate:"gte=0"`
	TimeoutMinutes   int     `json:"timeout_minutes" validate:"gt=0,lte=240"`
	SLRecoveryPips   float64 `json:"sl_recovery_pips" validate:"gte=0"`
	EntryLeadMinutes int     `json:"entry_lead_minutes" validate:"gte=0,lte=29"`
}

// BacktestRequest is the body of POST /api/v1/backtest.
type BacktestRequest struct {
	Symbol    string      `json:"symbol" validate:"required"`
	EventType string      `json:"event_type" validate:"required"`
	Mode      string      `json:"mode" default:"directional" validate:"oneof=directional simultaneous"`
	Scenario  string      `json:"scenario" validate:"omitempty,oneof=optimistic realistic pessimistic degraded"`
	Params    *ParamsBody `json:"params" validate:"omitempty"`
}

// HeatmapRequest is the body of POST /api/v1/heatmap.
type HeatmapRequest struct {
	Symbols       []string `json:"symbols" validate:"required,min=1,dive,required"`
	EventTypes    []string `json:"event_types" validate:"dive,required"`
	MinImpact     string   `json:"min_impact" default:"HIGH"`
	CalendarID    string   `json:"calendar_id"`
	WindowMinutes int      `json:"window_minutes" validate:"gte=0,lte=720"`
	BaselineDays  int      `json:"baseline_days" validate:"gte=0,lte=3650"`
}

// HourlyRequest is the query of GET /api/v1/hourly.
type HourlyRequest struct {
	Symbol  string `query:"symbol" validate:"required"`
	Hour    int    `query:"hour" validate:"gte=0,lte=23"`
	Quarter int    `query:"quarter" validate:"gte=0,lte=3"`
}

// BacktestListRequest is the query of GET /api/v1/backtests and
// GET /api/v1/scenarios.
type BacktestListRequest struct {
	Symbol    string `query:"symbol" validate:"required"`
	EventType string `query:"event_type"`
}

// VerifyRequest is the path of GET /api/v1/backtests/:run_id/verify.
type VerifyRequest struct {
	RunID string `param:"run_id" validate:"required"`
}

// EventTypesRequest is the query of GET /api/v1/event-types.
type EventTypesRequest struct {
	Symbol    string `query:"symbol" validate:"required"`
	MinImpact string `query:"min_impact" default:"LOW"`
}

// ReloadRequest is the path of POST /api/v1/symbols/:symbol/reload.
type ReloadRequest struct {
	Symbol string `param:"symbol" validate:"required"`
}
