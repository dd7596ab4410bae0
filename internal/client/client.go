package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"trade-analytics-go/internal/analytics"
	"trade-analytics-go/internal/config"
	"trade-analytics-go/internal/goals"
	"trade-analytics-go/internal/models"
)

const maxRetries = 3

// APIError is a non-retryable error response of the analytics API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// ClientInterface defines the analytics API operations reporting layers use.
type ClientInterface interface {
	GetStatistics(ctx context.Context, accountID uint, from, to time.Time) (*analytics.Summary, error)
	GetEquityCurve(ctx context.Context, accountID uint, from, to time.Time) ([]CurvePoint, error)
	GetDailyMetrics(ctx context.Context, accountID uint, from, to time.Time) ([]models.DailyAccountMetrics, error)
	RecomputeMLL(ctx context.Context, accountID uint, from time.Time) (*RecomputeResult, error)
	GetGoalProgress(ctx context.Context, goalID uint) (*goals.Progress, error)
}

// Client is a rate-limited, retrying client for the analytics HTTP API.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	backoff time.Duration
}

var _ ClientInterface = (*Client)(nil)

// NewClient creates a client for the API at cfg.BaseURL.
func NewClient(cfg *config.Client, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(time.Duration(cfg.Timeout) * time.Second)
	}

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:  client,
		logger:  logger.Named("client"),
		limiter: limiter,
		backoff: time.Second,
	}
}

// doRequest executes req with rate limiting, retrying throttled, server and
// network failures with exponential backoff.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	req.SetContext(ctx)
	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)
		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			switch {
			case statusCode == http.StatusTooManyRequests:
				shouldRetry = true
				if seconds, perr := strconv.Atoi(resp.Header().Get("Retry-After")); perr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case statusCode >= 500:
				shouldRetry = true
			}
			err = apiError(resp)
		} else {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, err
		}

		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

func apiError(resp *resty.Response) *APIError {
	var body struct {
		Error string `json:"error"`
	}
	msg := resp.String()
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: msg}
}

func rangeParams(req *resty.Request, from, to time.Time) *resty.Request {
	if !from.IsZero() {
		req.SetQueryParam("from", from.Format(models.DateFormat))
	}
	if !to.IsZero() {
		req.SetQueryParam("to", to.Format(models.DateFormat))
	}
	return req
}

// GetStatistics fetches the statistics summary of an account. Zero bounds are open.
func (c *Client) GetStatistics(ctx context.Context, accountID uint, from, to time.Time) (*analytics.Summary, error) {
	req := rangeParams(c.client.R().SetResult(&analytics.Summary{}), from, to)

	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/accounts/%d/statistics", accountID), req)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	return resp.Result().(*analytics.Summary), nil
}

// CurvePoint is one point of an equity curve.
type CurvePoint struct {
	Time     time.Time       `json:"time"`
	Balance  decimal.Decimal `json:"balance"`
	TradeDay string          `json:"trade_day"`
	TradeID  uint            `json:"trade_id,omitempty"`
}

// Day returns the trading day of the point, falling back to the UTC date of
// its time when the server did not send one.
func (p CurvePoint) Day() string {
	if p.TradeDay != "" {
		return p.TradeDay
	}
	return p.Time.UTC().Format(models.DateFormat)
}

// GetEquityCurve fetches the equity curve of an account.
func (c *Client) GetEquityCurve(ctx context.Context, accountID uint, from, to time.Time) ([]CurvePoint, error) {
	var points []CurvePoint
	req := rangeParams(c.client.R().SetResult(&points), from, to)

	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/accounts/%d/equity-curve", accountID), req)
	if err != nil {
		return nil, fmt.Errorf("failed to get equity curve: %w", err)
	}
	return *resp.Result().(*[]CurvePoint), nil
}

// GetDailyMetrics fetches the stored MLL rows of an account.
func (c *Client) GetDailyMetrics(ctx context.Context, accountID uint, from, to time.Time) ([]models.DailyAccountMetrics, error) {
	var rows []models.DailyAccountMetrics
	req := rangeParams(c.client.R().SetResult(&rows), from, to)

	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/accounts/%d/daily-metrics", accountID), req)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily metrics: %w", err)
	}
	return *resp.Result().(*[]models.DailyAccountMetrics), nil
}

// RecomputedDay is one replayed day of an MLL recompute.
type RecomputedDay struct {
	Date             time.Time       `json:"date"`
	Balance          decimal.Decimal `json:"balance"`
	BalanceHigh      decimal.Decimal `json:"balance_high"`
	MaximumLossLimit decimal.Decimal `json:"maximum_loss_limit"`
	Lock             string          `json:"lock"`
}

// Locked reports whether the day closed with the loss limit locked.
func (d RecomputedDay) Locked() bool { return d.Lock == "locked" }

// RecomputeResult is the outcome of an MLL recompute.
type RecomputeResult struct {
	AccountID uint            `json:"account_id"`
	Days      []RecomputedDay `json:"days"`
}

// RecomputeMLL replays the loss limit of an account from from, or from its
// first trade day when from is zero.
func (c *Client) RecomputeMLL(ctx context.Context, accountID uint, from time.Time) (*RecomputeResult, error) {
	req := rangeParams(c.client.R().SetResult(&RecomputeResult{}), from, time.Time{})

	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/accounts/%d/mll/recompute", accountID), req)
	if err != nil {
		c.logger.Error("Failed to recompute MLL", zap.Uint("account_id", accountID), zap.Error(err))
		return nil, fmt.Errorf("failed to recompute mll: %w", err)
	}
	return resp.Result().(*RecomputeResult), nil
}

// GetGoalProgress evaluates a goal on the server.
func (c *Client) GetGoalProgress(ctx context.Context, goalID uint) (*goals.Progress, error) {
	req := c.client.R().SetResult(&goals.Progress{})

	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/goals/%d/progress", goalID), req)
	if err != nil {
		return nil, fmt.Errorf("failed to get goal progress: %w", err)
	}
	return resp.Result().(*goals.Progress), nil
}
