package goals

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trade-analytics-go/internal/database"
	"trade-analytics-go/internal/models"
)

// Store is the persistence goal evaluation reads from and writes to.
type Store interface {
	Goal(ctx context.Context, id uint) (models.Goal, error)
	ActiveGoals(ctx context.Context) ([]models.Goal, error)
	TradesBetween(ctx context.Context, accountID *uint, from, to time.Time) ([]models.Trade, error)
	NetPnLBefore(ctx context.Context, accountID *uint, day time.Time) (decimal.Decimal, error)
	InitialCapital(ctx context.Context, accountID *uint) (decimal.Decimal, error)
	SaveGoalProgress(ctx context.Context, id uint, current decimal.Decimal, status models.GoalStatus) error
}

var _ Store = (*database.Store)(nil)

// Service evaluates goals against the ledger and caches the result.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a goal service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.Named("goals"),
		now:    time.Now,
	}
}

// Progress evaluates one goal and stores its current value and status.
func (s *Service) Progress(ctx context.Context, id uint) (Progress, error) {
	goal, err := s.store.Goal(ctx, id)
	if err != nil {
		return Progress{}, fmt.Errorf("could not load goal %d: %w", id, err)
	}
	return s.evaluate(ctx, goal)
}

func (s *Service) evaluate(ctx context.Context, goal models.Goal) (Progress, error) {
	trades, err := s.store.TradesBetween(ctx, goal.AccountID, goal.PeriodStart, goal.PeriodEnd)
	if err != nil {
		return Progress{}, fmt.Errorf("could not load trades for goal %d: %w", goal.ID, err)
	}
	initial, err := s.store.InitialCapital(ctx, goal.AccountID)
	if err != nil {
		return Progress{}, fmt.Errorf("could not load capital for goal %d: %w", goal.ID, err)
	}
	before, err := s.store.NetPnLBefore(ctx, goal.AccountID, goal.PeriodStart)
	if err != nil {
		return Progress{}, fmt.Errorf("could not load period baseline for goal %d: %w", goal.ID, err)
	}

	progress, err := Evaluate(goal, trades, initial.Add(before), s.now())
	if err != nil {
		return Progress{}, fmt.Errorf("goal %d: %w", goal.ID, err)
	}

	if err := s.store.SaveGoalProgress(ctx, goal.ID, progress.CurrentValue, progress.Status); err != nil {
		return Progress{}, fmt.Errorf("could not save progress of goal %d: %w", goal.ID, err)
	}

	if progress.Status != goal.Status {
		s.logger.Info("Goal status changed",
			zap.Uint("goal_id", goal.ID),
			zap.String("from", string(goal.Status)),
			zap.String("to", string(progress.Status)),
			zap.String("current_value", progress.CurrentValue.String()),
		)
	}
	return progress, nil
}

// SweepResult counts the outcome of one sweep over active goals.
type SweepResult struct {
	Evaluated int
	Failed    int
	Achieved  int
	Expired   int
}

// SweepActive re-evaluates every active goal. A goal that cannot be evaluated
// is logged and skipped; the sweep carries on with the rest.
func (s *Service) SweepActive(ctx context.Context) (SweepResult, error) {
	goals, err := s.store.ActiveGoals(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("could not list active goals: %w", err)
	}

	var res SweepResult
	for _, goal := range goals {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		progress, err := s.evaluate(ctx, goal)
		if err != nil {
			res.Failed++
			s.logger.Error("Failed to evaluate goal", zap.Uint("goal_id", goal.ID), zap.Error(err))
			continue
		}
		res.Evaluated++
		switch progress.Status {
		case models.GoalAchieved:
			res.Achieved++
		case models.GoalFailed:
			res.Expired++
		}
	}

	s.logger.Info("Swept active goals",
		zap.Int("evaluated", res.Evaluated),
		zap.Int("failed", res.Failed),
		zap.Int("achieved", res.Achieved),
		zap.Int("expired", res.Expired),
	)
	return res, nil
}
