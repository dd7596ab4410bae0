package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trade-analytics-go/internal/config"
	"trade-analytics-go/internal/models"
)

// setupTestServer creates a new test server and a Client configured to use it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	c := NewClient(&config.Client{
		BaseURL:        server.URL,
		RateLimit:      1000,
		RateLimitBurst: 10,
		Timeout:        5,
	}, zap.NewNop())
	c.backoff = time.Millisecond

	return c, server
}

var may6 = time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC)

func TestGetStatistics(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/accounts/3/statistics", r.URL.Path)
			assert.Equal(t, "2024-05-06", r.URL.Query().Get("from"))
			assert.Empty(t, r.URL.Query().Get("to"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"account_id":3,"counts":{"total":3},"win_rate":66.67,"pnl":{"total":"80"},"period":{"drawdown":{"absolute":"50","percent":4.55}}}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		summary, err := c.GetStatistics(context.Background(), 3, may6, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, uint(3), summary.AccountID)
		assert.Equal(t, 3, summary.Counts.Total)
		assert.Equal(t, "80", summary.PnL.Total.String())
		assert.Equal(t, "50", summary.Period.Drawdown.Absolute.String())
	})

	t.Run("NotFound is not retried", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"record not found"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.GetStatistics(context.Background(), 9, time.Time{}, time.Time{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get statistics")

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "record not found", apiErr.Message)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestDoRequestRetries(t *testing.T) {
	t.Run("Server errors are retried", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"goal_id":4,"current_value":"1000","percentage":100,"status":"achieved"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		progress, err := c.GetGoalProgress(context.Background(), 4)
		require.NoError(t, err)
		assert.Equal(t, models.GoalAchieved, progress.Status)
		assert.Equal(t, 100.0, progress.Percentage)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("Gives up after max retries", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.GetGoalProgress(context.Background(), 4)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "request failed after 3 attempts")
		assert.Equal(t, int32(maxRetries), atomic.LoadInt32(&calls))
	})

	t.Run("Cancelled context stops retrying", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := c.GetGoalProgress(ctx, 4)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRecomputeMLL(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/accounts/1/mll/recompute", r.URL.Path)
		assert.Equal(t, "2024-05-06", r.URL.Query().Get("from"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"account_id":1,"days":[` +
			`{"date":"2024-05-06T00:00:00Z","balance":"49500","balance_high":"50000","maximum_loss_limit":"50000","lock":"locked"},` +
			`{"date":"2024-05-07T00:00:00Z","balance":"51000","balance_high":"51000","maximum_loss_limit":"50000","lock":"locked"}]}`))
	})

	c, server := setupTestServer(handler)
	defer server.Close()

	res, err := c.RecomputeMLL(context.Background(), 1, may6)
	require.NoError(t, err)
	require.Len(t, res.Days, 2)
	assert.True(t, res.Days[1].Locked())
	assert.Equal(t, "50000", res.Days[1].MaximumLossLimit.String())
	assert.Equal(t, may6.AddDate(0, 0, 1), res.Days[1].Date)
}

func TestGetEquityCurveAndDailyMetrics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/accounts/2/equity-curve", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"time":"2024-05-06T00:00:00Z","balance":"1000","trade_day":"2024-05-06"},{"time":"2024-05-07T01:00:00Z","balance":"1100","trade_day":"2024-05-06","trade_id":1},{"time":"2024-05-07T14:00:00Z","balance":"1150","trade_id":2}]`))
	})
	mux.HandleFunc("/api/accounts/2/daily-metrics", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-05-31", r.URL.Query().Get("to"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"account_id":2,"date":"2024-05-06T00:00:00Z","balance":"1100","balance_high":"1100","maximum_loss_limit":"1000","mll_is_locked":false}]`))
	})

	c, server := setupTestServer(mux)
	defer server.Close()

	points, err := c.GetEquityCurve(context.Background(), 2, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "1100", points[1].Balance.String())
	assert.Equal(t, uint(1), points[1].TradeID)
	assert.Equal(t, "2024-05-06", points[1].Day(), "trade day wins over the UTC entry date")
	assert.Equal(t, "2024-05-07", points[2].Day(), "older servers omit trade_day")

	rows, err := c.GetDailyMetrics(context.Background(), 2, time.Time{}, time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1000", rows[0].MaximumLossLimit.String())
}
