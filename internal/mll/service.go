package mll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trade-analytics-go/internal/database"
	"trade-analytics-go/internal/models"
	"trade-analytics-go/internal/retry"
)

// Store is the persistence the recompute service needs.
type Store interface {
	Account(ctx context.Context, id uint) (models.Account, error)
	AccountIDs(ctx context.Context) ([]uint, error)
	Trades(ctx context.Context, accountID uint) ([]models.Trade, error)
	DailyMetricsBefore(ctx context.Context, accountID uint, day time.Time) (models.DailyAccountMetrics, error)
	UpsertDailyMetrics(ctx context.Context, row *models.DailyAccountMetrics) error
	DeleteDailyMetricsFrom(ctx context.Context, accountID uint, from time.Time, keep []time.Time) (int64, error)
}

var _ Store = (*database.Store)(nil)

// Service recomputes and persists DailyAccountMetrics. Work on one account
// is serialized; different accounts may run concurrently.
type Service struct {
	store   Store
	logger  *zap.Logger
	retry   retry.Policy
	workers int

	mu    sync.Mutex
	locks map[uint]*accountLock
}

// accountLock is released from the map once nobody holds or waits for it.
type accountLock struct {
	sync.Mutex
	refs int
}

// NewService creates a recompute service. workers bounds RecomputeAccounts.
func NewService(store Store, logger *zap.Logger, policy retry.Policy, workers int) *Service {
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		store:   store,
		logger:  logger.Named("mll"),
		retry:   policy,
		workers: workers,
		locks:   make(map[uint]*accountLock),
	}
}

func (s *Service) lockAccount(accountID uint) func() {
	s.mu.Lock()
	l, ok := s.locks[accountID]
	if !ok {
		l = &accountLock{}
		s.locks[accountID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, accountID)
		}
		s.mu.Unlock()
	}
}

// heldLocks is the number of accounts currently locked or waited on.
func (s *Service) heldLocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

// snapshot is everything one recompute reads up front.
type snapshot struct {
	rules Rules
	days  []DayPnL
}

func (s *Service) load(ctx context.Context, accountID uint) (snapshot, error) {
	account, err := s.store.Account(ctx, accountID)
	if err != nil {
		return snapshot{}, fmt.Errorf("could not load account %d: %w", accountID, err)
	}
	rules, err := RulesFor(account)
	if err != nil {
		return snapshot{}, fmt.Errorf("account %d: %w", accountID, err)
	}
	trades, err := s.store.Trades(ctx, accountID)
	if err != nil {
		return snapshot{}, fmt.Errorf("could not load trades for account %d: %w", accountID, err)
	}
	return snapshot{rules: rules, days: CumulativeByDay(trades)}, nil
}

// predecessor returns the stored state of the last trade day before day, nil
// when day is on or before the account's first trade day.
func (s *Service) predecessor(ctx context.Context, accountID uint, days []DayPnL, day time.Time) (*DayState, error) {
	var prevDay time.Time
	for _, d := range days {
		if !d.Day.Before(day) {
			break
		}
		prevDay = d.Day
	}
	if prevDay.IsZero() {
		return nil, nil
	}

	row, err := s.store.DailyMetricsBefore(ctx, accountID, day)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("account %d on %s: %w", accountID, day.Format(models.DateFormat), ErrStaleState)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load predecessor of %s: %w", day.Format(models.DateFormat), err)
	}
	if !models.Day(row.Date).Equal(prevDay) {
		return nil, fmt.Errorf("account %d on %s: latest row is %s, expected %s: %w",
			accountID, day.Format(models.DateFormat),
			row.Date.Format(models.DateFormat), prevDay.Format(models.DateFormat), ErrStaleState)
	}
	prev := FromRow(row)
	return &prev, nil
}

func (s *Service) persist(ctx context.Context, accountID uint, state DayState) error {
	row := state.Row(accountID)
	return retry.Do(ctx, s.retry, s.logger, "upsert daily metrics", func(ctx context.Context) error {
		r := row
		return s.store.UpsertDailyMetrics(ctx, &r)
	})
}

// ComputeForDate computes and stores the state of one trade day. The
// previous trade day must already be stored, unless day is the account's
// first trade day.
func (s *Service) ComputeForDate(ctx context.Context, accountID uint, day time.Time) (DayState, error) {
	unlock := s.lockAccount(accountID)
	defer unlock()

	day = models.Day(day)
	snap, err := s.load(ctx, accountID)
	if err != nil {
		return DayState{}, err
	}

	var current *DayPnL
	for i := range snap.days {
		if snap.days[i].Day.Equal(day) {
			current = &snap.days[i]
			break
		}
	}
	if current == nil {
		return DayState{}, fmt.Errorf("account %d on %s: %w", accountID, day.Format(models.DateFormat), ErrNotTradeDay)
	}

	prev, err := s.predecessor(ctx, accountID, snap.days, day)
	if err != nil {
		return DayState{}, err
	}

	state := Step(snap.rules, prev, day, current.Cumulative)
	if err := s.persist(ctx, accountID, state); err != nil {
		return DayState{}, err
	}
	return state, nil
}

// RecomputeFromDate replays every trade day on or after from, in order, and
// removes stored rows on or after from that no longer match a trade day.
func (s *Service) RecomputeFromDate(ctx context.Context, accountID uint, from time.Time) ([]DayState, error) {
	unlock := s.lockAccount(accountID)
	defer unlock()

	snap, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.replayFrom(ctx, accountID, snap, models.Day(from))
}

// RecomputeAll replays the account from its earliest trade day.
func (s *Service) RecomputeAll(ctx context.Context, accountID uint) ([]DayState, error) {
	unlock := s.lockAccount(accountID)
	defer unlock()

	snap, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var from time.Time
	if len(snap.days) > 0 {
		from = snap.days[0].Day
	}
	return s.replayFrom(ctx, accountID, snap, from)
}

func (s *Service) replayFrom(ctx context.Context, accountID uint, snap snapshot, from time.Time) ([]DayState, error) {
	l := s.logger.With(zap.Uint("account_id", accountID), zap.Time("from", from))

	prev, err := s.predecessor(ctx, accountID, snap.days, from)
	if err != nil {
		return nil, err
	}

	var pending []DayPnL
	for _, d := range snap.days {
		if !d.Day.Before(from) {
			pending = append(pending, d)
		}
	}

	states := Replay(snap.rules, prev, pending)
	keep := make([]time.Time, 0, len(states))
	for _, st := range states {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.persist(ctx, accountID, st); err != nil {
			l.Error("Failed to persist daily metrics", zap.Time("day", st.Date), zap.Error(err))
			return nil, err
		}
		keep = append(keep, st.Date)
	}

	removed, err := s.store.DeleteDailyMetricsFrom(ctx, accountID, from, keep)
	if err != nil {
		return nil, fmt.Errorf("could not remove stale daily metrics: %w", err)
	}

	locked := len(states) > 0 && states[len(states)-1].Lock.IsLocked()
	l.Info("Recomputed daily metrics",
		zap.Int("days", len(states)),
		zap.Int64("removed", removed),
		zap.Bool("locked", locked),
	)
	return states, nil
}

// RecomputeAccounts runs RecomputeAll for every given account, or every
// account when ids is empty, with at most workers accounts in flight.
// Accounts without MLL are skipped. A failing account does not stop the
// others; every failure is logged and returned joined.
func (s *Service) RecomputeAccounts(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		var err error
		if ids, err = s.store.AccountIDs(ctx); err != nil {
			return fmt.Errorf("could not list accounts: %w", err)
		}
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, id := range ids {
		g.Go(func() error {
			_, err := s.RecomputeAll(ctx, id)
			switch {
			case err == nil:
			case errors.Is(err, ErrMLLDisabled):
				s.logger.Debug("Skipping account without MLL", zap.Uint("account_id", id))
			default:
				s.logger.Error("Failed to recompute account", zap.Uint("account_id", id), zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
