package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trade-analytics-go/internal/analytics"
	"trade-analytics-go/internal/database"
	"trade-analytics-go/internal/goals"
	"trade-analytics-go/internal/mll"
	"trade-analytics-go/internal/models"
	"trade-analytics-go/internal/retry"
)

var day0 = time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	server *httptest.Server
	store  *database.Store
	funded uint
	plain  uint
	goalID uint
}

func pathf(format string, args ...interface{}) string { return fmt.Sprintf(format, args...) }

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	store := database.NewStore(db)

	funded := &models.Account{
		Name:           "funded",
		InitialCapital: decimal.NewFromInt(1000),
		MLLEnabled:     true,
		MLLInitial:     decimal.NewNullDecimal(decimal.NewFromInt(100)),
	}
	require.NoError(t, store.CreateAccount(ctx, funded))
	plain := &models.Account{Name: "plain", InitialCapital: decimal.NewFromInt(500)}
	require.NoError(t, store.CreateAccount(ctx, plain))

	var trades []models.Trade
	for i, pnl := range []int64{100, -50, 30} {
		at := day0.AddDate(0, 0, i).Add(14 * time.Hour)
		trades = append(trades, models.Trade{
			AccountID: funded.ID, Symbol: "ES", EnteredAt: at, TradeDay: at, NetPnL: decimal.NewFromInt(pnl),
		})
	}
	require.NoError(t, store.CreateTrades(ctx, trades))

	today := models.Day(time.Now())
	goal := &models.Goal{
		Name:            "monthly",
		Type:            models.GoalTradeCount,
		Direction:       models.DirectionMinimum,
		ThresholdTarget: decimal.NewFromInt(10),
		PeriodStart:     day0,
		PeriodEnd:       today.AddDate(0, 0, 10),
		AccountID:       &funded.ID,
		Status:          models.GoalActive,
	}
	require.NoError(t, store.CreateGoal(ctx, goal))

	log := zap.NewNop()
	handler := NewAPIHandler(log,
		analytics.NewService(store, log, analytics.Options{}),
		mll.NewService(store, log, retry.Policy{Attempts: 1}, 1),
		store,
		goals.NewService(store, log),
	)
	mux := http.NewServeMux()
	handler.Routes(mux)
	server := httptest.NewServer(withRequestLog(mux, log))
	t.Cleanup(server.Close)

	return testEnv{server: server, store: store, funded: funded.ID, plain: plain.ID, goalID: goal.ID}
}

func (e testEnv) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK\n", string(body))
}

func TestStatisticsHandler(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Whole history", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, pathf("/api/accounts/%d/statistics", env.funded))
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var summary analytics.Summary
		require.NoError(t, json.Unmarshal(body, &summary))
		assert.Equal(t, 3, summary.Counts.Total)
		assert.True(t, summary.PnL.Total.Equal(decimal.NewFromInt(80)))
		assert.True(t, summary.Period.Drawdown.Absolute.Equal(decimal.NewFromInt(50)))
		assert.InDelta(t, 2.6, summary.Ratios.ProfitFactor, 1e-9)
	})

	t.Run("Range", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, pathf("/api/accounts/%d/statistics?from=%s", env.funded, day0.AddDate(0, 0, 1).Format(models.DateFormat)))
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var summary analytics.Summary
		require.NoError(t, json.Unmarshal(body, &summary))
		assert.Equal(t, 2, summary.Counts.Total)
		assert.True(t, summary.StartBalance.Equal(decimal.NewFromInt(1100)))
	})

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown account", "/api/accounts/999/statistics", http.StatusNotFound},
		{"bad id", "/api/accounts/abc/statistics", http.StatusBadRequest},
		{"bad date", pathf("/api/accounts/%d/statistics?from=06-05-2024", env.funded), http.StatusBadRequest},
		{"inverted range", pathf("/api/accounts/%d/statistics?from=2024-05-10&to=2024-05-01", env.funded), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.do(t, http.MethodGet, tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestEquityCurveHandler(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, pathf("/api/accounts/%d/equity-curve", env.funded))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var points []CurvePoint
	require.NoError(t, json.Unmarshal(body, &points))
	require.Len(t, points, 4)
	balances := make([]string, len(points))
	days := make([]string, len(points))
	for i, p := range points {
		balances[i] = p.Balance
		days[i] = p.TradeDay
	}
	assert.Equal(t, []string{"1000", "1100", "1050", "1080"}, balances)
	assert.Equal(t, []string{"2024-05-06", "2024-05-06", "2024-05-07", "2024-05-08"}, days)
}

func TestRecomputeAndDailyMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, pathf("/api/accounts/%d/mll/recompute", env.funded))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out struct {
		AccountID uint `json:"account_id"`
		Days      []struct {
			Date             time.Time       `json:"date"`
			MaximumLossLimit decimal.Decimal `json:"maximum_loss_limit"`
			Lock             string          `json:"lock"`
		} `json:"days"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, env.funded, out.AccountID)
	require.Len(t, out.Days, 3)
	assert.Equal(t, "unlocked", out.Days[0].Lock)
	assert.True(t, out.Days[2].MaximumLossLimit.Equal(decimal.NewFromInt(1000)))

	resp, body = env.do(t, http.MethodGet, pathf("/api/accounts/%d/daily-metrics?from=%s", env.funded, day0.AddDate(0, 0, 1).Format(models.DateFormat)))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var rows []models.DailyAccountMetrics
	require.NoError(t, json.Unmarshal(body, &rows))
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Balance.Equal(decimal.NewFromInt(1050)))

	t.Run("Replay from a later day", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, pathf("/api/accounts/%d/mll/recompute?from=%s", env.funded, day0.AddDate(0, 0, 2).Format(models.DateFormat)))
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	})

	t.Run("Account without MLL", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPost, pathf("/api/accounts/%d/mll/recompute", env.plain))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("Bad from date", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPost, pathf("/api/accounts/%d/mll/recompute?from=yesterday", env.funded))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Wrong method", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodGet, pathf("/api/accounts/%d/mll/recompute", env.funded))
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestRecomputeStaleState(t *testing.T) {
	env := newTestEnv(t)
	// Nothing stored yet, so day 2 has no predecessor.
	resp, body := env.do(t, http.MethodPost, pathf("/api/accounts/%d/mll/recompute?from=%s", env.funded, day0.AddDate(0, 0, 2).Format(models.DateFormat)))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "predecessor")
}

func TestGoalProgressHandler(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, pathf("/api/goals/%d/progress", env.goalID))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var progress goals.Progress
	require.NoError(t, json.Unmarshal(body, &progress))
	assert.True(t, progress.CurrentValue.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, 30.0, progress.Percentage)
	assert.Equal(t, models.GoalActive, progress.Status)
	assert.Equal(t, 10, progress.RemainingDays)

	resp, _ = env.do(t, http.MethodGet, "/api/goals/77/progress")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{database.ErrNotFound, http.StatusNotFound},
		{mll.ErrMLLNotConfigured, http.StatusConflict},
		{mll.ErrStaleState, http.StatusUnprocessableEntity},
		{goals.ErrUnknownGoalType, http.StatusUnprocessableEntity},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
