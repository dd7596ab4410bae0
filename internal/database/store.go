package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"trade-analytics-go/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the gorm-backed ledger accessor and metrics repository.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an opened database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB { return s.db }

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- accounts ---------------------------------------------------------------

// CreateAccount inserts a new account.
func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Account loads one account by id.
func (s *Store) Account(ctx context.Context, id uint) (models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return models.Account{}, notFound(err)
	}
	return account, nil
}

// AccountIDs lists every account id in ascending order.
func (s *Store) AccountIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Account{}).Order("id asc").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// --- trades -----------------------------------------------------------------

// CreateTrades inserts trades in one batch.
func (s *Store) CreateTrades(ctx context.Context, trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&trades).Error; err != nil {
		return fmt.Errorf("failed to create trades: %w", err)
	}
	return nil
}

// Trades returns all trades of an account ordered by entry time then id.
func (s *Store) Trades(ctx context.Context, accountID uint) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("entered_at asc, id asc").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	normalizeTradeDays(trades)
	return trades, nil
}

// TradesBetween returns trades with a trade day in [from, to], across all
// accounts when accountID is nil. Ordered by entry time then id.
func (s *Store) TradesBetween(ctx context.Context, accountID *uint, from, to time.Time) ([]models.Trade, error) {
	query := s.db.WithContext(ctx).Model(&models.Trade{}).
		Where("trade_day >= ? AND trade_day <= ?", models.Day(from), models.Day(to))
	if accountID != nil {
		query = query.Where("account_id = ?", *accountID)
	}
	var trades []models.Trade
	if err := query.Order("entered_at asc, id asc").Find(&trades).Error; err != nil {
		return nil, err
	}
	normalizeTradeDays(trades)
	return trades, nil
}

// NetPnLBefore sums the net PnL of trades with a trade day before day.
func (s *Store) NetPnLBefore(ctx context.Context, accountID *uint, day time.Time) (decimal.Decimal, error) {
	query := s.db.WithContext(ctx).Model(&models.Trade{}).Where("trade_day < ?", models.Day(day))
	if accountID != nil {
		query = query.Where("account_id = ?", *accountID)
	}
	var trades []models.Trade
	if err := query.Select("id", "net_pnl").Find(&trades).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, t := range trades {
		sum = sum.Add(t.NetPnL)
	}
	return sum, nil
}

// InitialCapital is the initial capital of one account, or the total of all
// accounts when accountID is nil.
func (s *Store) InitialCapital(ctx context.Context, accountID *uint) (decimal.Decimal, error) {
	if accountID != nil {
		account, err := s.Account(ctx, *accountID)
		if err != nil {
			return decimal.Zero, err
		}
		return account.InitialCapital, nil
	}
	var accounts []models.Account
	if err := s.db.WithContext(ctx).Find(&accounts).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, a := range accounts {
		sum = sum.Add(a.InitialCapital)
	}
	return sum, nil
}

func normalizeTradeDays(trades []models.Trade) {
	for i := range trades {
		trades[i].TradeDay = models.Day(trades[i].TradeDay)
	}
}

// --- daily account metrics --------------------------------------------------

// UpsertDailyMetrics replaces the row of (account, date) in one statement.
func (s *Store) UpsertDailyMetrics(ctx context.Context, row *models.DailyAccountMetrics) error {
	row.Date = models.Day(row.Date)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"balance",
			"balance_high",
			"maximum_loss_limit",
			"mll_is_locked",
			"updated_at",
		}),
	}).Create(row).Error
}

// DailyMetricsBefore returns the latest row of the account dated before day.
func (s *Store) DailyMetricsBefore(ctx context.Context, accountID uint, day time.Time) (models.DailyAccountMetrics, error) {
	var row models.DailyAccountMetrics
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND date < ?", accountID, models.Day(day)).
		Order("date desc").
		First(&row).Error
	if err != nil {
		return models.DailyAccountMetrics{}, notFound(err)
	}
	row.Date = models.Day(row.Date)
	return row, nil
}

// DailyMetrics lists the account's rows with a date in [from, to]; zero
// bounds are open. Ordered by date.
func (s *Store) DailyMetrics(ctx context.Context, accountID uint, from, to time.Time) ([]models.DailyAccountMetrics, error) {
	query := s.db.WithContext(ctx).Where("account_id = ?", accountID)
	if !from.IsZero() {
		query = query.Where("date >= ?", models.Day(from))
	}
	if !to.IsZero() {
		query = query.Where("date <= ?", models.Day(to))
	}
	var rows []models.DailyAccountMetrics
	if err := query.Order("date asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Date = models.Day(rows[i].Date)
	}
	return rows, nil
}

// DeleteDailyMetricsFrom removes the account's rows dated on or after from,
// except those whose date is in keep.
func (s *Store) DeleteDailyMetricsFrom(ctx context.Context, accountID uint, from time.Time, keep []time.Time) (int64, error) {
	query := s.db.WithContext(ctx).Where("account_id = ? AND date >= ?", accountID, models.Day(from))
	if len(keep) > 0 {
		days := make([]time.Time, len(keep))
		for i, d := range keep {
			days[i] = models.Day(d)
		}
		query = query.Where("date NOT IN ?", days)
	}
	res := query.Delete(&models.DailyAccountMetrics{})
	return res.RowsAffected, res.Error
}

// --- goals ------------------------------------------------------------------

// CreateGoal inserts a new goal.
func (s *Store) CreateGoal(ctx context.Context, goal *models.Goal) error {
	if err := s.db.WithContext(ctx).Create(goal).Error; err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// Goal loads one goal by id.
func (s *Store) Goal(ctx context.Context, id uint) (models.Goal, error) {
	var goal models.Goal
	if err := s.db.WithContext(ctx).First(&goal, id).Error; err != nil {
		return models.Goal{}, notFound(err)
	}
	return goal, nil
}

// ActiveGoals lists every goal whose status is active.
func (s *Store) ActiveGoals(ctx context.Context) ([]models.Goal, error) {
	var goals []models.Goal
	err := s.db.WithContext(ctx).
		Where("status = ?", models.GoalActive).
		Order("id asc").
		Find(&goals).Error
	if err != nil {
		return nil, err
	}
	return goals, nil
}

// SaveGoalProgress stores the cached current value and status of a goal.
func (s *Store) SaveGoalProgress(ctx context.Context, id uint, current decimal.Decimal, status models.GoalStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Goal{}).Where("id = ?", id).Updates(map[string]interface{}{
		"current_value": current,
		"status":        status,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
