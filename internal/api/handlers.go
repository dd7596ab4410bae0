package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"trade-analytics-go/internal/analytics"
	"trade-analytics-go/internal/database"
	"trade-analytics-go/internal/goals"
	"trade-analytics-go/internal/mll"
	"trade-analytics-go/internal/models"
)

// Statistics builds account summaries and curves.
type Statistics interface {
	Statistics(ctx context.Context, accountID uint, r analytics.Range) (analytics.Summary, error)
	EquityCurve(ctx context.Context, accountID uint, r analytics.Range) (analytics.Curve, error)
}

// Recomputer replays the MLL state machine of an account.
type Recomputer interface {
	RecomputeFromDate(ctx context.Context, accountID uint, from time.Time) ([]mll.DayState, error)
	RecomputeAll(ctx context.Context, accountID uint) ([]mll.DayState, error)
}

// MetricsReader reads persisted daily metrics.
type MetricsReader interface {
	DailyMetrics(ctx context.Context, accountID uint, from, to time.Time) ([]models.DailyAccountMetrics, error)
}

// GoalEvaluator evaluates one goal.
type GoalEvaluator interface {
	Progress(ctx context.Context, id uint) (goals.Progress, error)
}

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log        *zap.Logger
	statistics Statistics
	recompute  Recomputer
	metrics    MetricsReader
	goals      GoalEvaluator
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, statistics Statistics, recompute Recomputer, metrics MetricsReader, goals GoalEvaluator) *APIHandler {
	return &APIHandler{
		log:        log,
		statistics: statistics,
		recompute:  recompute,
		metrics:    metrics,
		goals:      goals,
	}
}

// Routes registers every endpoint on mux.
func (h *APIHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthHandler)
	mux.HandleFunc("GET /api/accounts/{id}/statistics", h.StatisticsHandler)
	mux.HandleFunc("GET /api/accounts/{id}/equity-curve", h.EquityCurveHandler)
	mux.HandleFunc("GET /api/accounts/{id}/daily-metrics", h.DailyMetricsHandler)
	mux.HandleFunc("POST /api/accounts/{id}/mll/recompute", h.RecomputeHandler)
	mux.HandleFunc("GET /api/goals/{id}/progress", h.GoalProgressHandler)
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// StatisticsHandler returns the statistics summary of an account.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	id, rng, ok := h.accountAndRange(w, r)
	if !ok {
		return
	}
	summary, err := h.statistics.Statistics(r.Context(), id, rng)
	if err != nil {
		h.fail(w, "Failed to compute statistics", err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// CurvePoint is one equity-curve point on the wire.
type CurvePoint struct {
	Time     time.Time `json:"time"`
	Balance  string    `json:"balance"`
	TradeDay string    `json:"trade_day"`
	TradeID  uint      `json:"trade_id,omitempty"`
}

// EquityCurveHandler returns the equity curve of an account.
func (h *APIHandler) EquityCurveHandler(w http.ResponseWriter, r *http.Request) {
	id, rng, ok := h.accountAndRange(w, r)
	if !ok {
		return
	}
	curve, err := h.statistics.EquityCurve(r.Context(), id, rng)
	if err != nil {
		h.fail(w, "Failed to build equity curve", err)
		return
	}
	points := make([]CurvePoint, len(curve))
	for i, p := range curve {
		points[i] = CurvePoint{
			Time:     p.Time,
			Balance:  p.Balance.String(),
			TradeDay: p.TradeDay.Format(models.DateFormat),
			TradeID:  p.TradeID,
		}
	}
	h.writeJSON(w, http.StatusOK, points)
}

// DailyMetricsHandler lists the stored MLL rows of an account.
func (h *APIHandler) DailyMetricsHandler(w http.ResponseWriter, r *http.Request) {
	id, rng, ok := h.accountAndRange(w, r)
	if !ok {
		return
	}
	rows, err := h.metrics.DailyMetrics(r.Context(), id, rng.From, rng.To)
	if err != nil {
		h.fail(w, "Failed to get daily metrics", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

// RecomputeResponse summarizes an MLL recompute.
type RecomputeResponse struct {
	AccountID uint           `json:"account_id"`
	Days      []mll.DayState `json:"days"`
}

// RecomputeHandler replays MLL from ?from, or from the first trade day when omitted.
func (h *APIHandler) RecomputeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var (
		days []mll.DayState
		err  error
	)
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, perr := models.ParseDay(raw)
		if perr != nil {
			http.Error(w, "Invalid from date", http.StatusBadRequest)
			return
		}
		days, err = h.recompute.RecomputeFromDate(r.Context(), id, from)
	} else {
		days, err = h.recompute.RecomputeAll(r.Context(), id)
	}
	if err != nil {
		h.fail(w, "Failed to recompute daily metrics", err)
		return
	}
	if days == nil {
		days = []mll.DayState{}
	}
	h.writeJSON(w, http.StatusOK, RecomputeResponse{AccountID: id, Days: days})
}

// GoalProgressHandler evaluates a goal and returns its progress.
func (h *APIHandler) GoalProgressHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	progress, err := h.goals.Progress(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to evaluate goal", err)
		return
	}
	h.writeJSON(w, http.StatusOK, progress)
}

func (h *APIHandler) pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

func (h *APIHandler) accountAndRange(w http.ResponseWriter, r *http.Request) (uint, analytics.Range, bool) {
	id, ok := h.pathID(w, r)
	if !ok {
		return 0, analytics.Range{}, false
	}

	var from, to time.Time
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &from}, {"to", &to}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		day, err := models.ParseDay(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid %s date", p.name), http.StatusBadRequest)
			return 0, analytics.Range{}, false
		}
		*p.dst = day
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		http.Error(w, "to must not be before from", http.StatusBadRequest)
		return 0, analytics.Range{}, false
	}
	return id, analytics.NewRange(from, to), true
}

// statusFor maps domain failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, mll.ErrMLLDisabled), errors.Is(err, mll.ErrMLLNotConfigured):
		return http.StatusConflict
	case errors.Is(err, mll.ErrStaleState), errors.Is(err, mll.ErrNotTradeDay), errors.Is(err, goals.ErrUnknownGoalType):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *APIHandler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error(msg, zap.Error(err))
	} else {
		h.log.Debug(msg, zap.Int("status", status), zap.Error(err))
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}
