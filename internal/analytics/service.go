package analytics

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"trade-analytics-go/internal/models"
)

// Ledger supplies accounts and their closed trades.
type Ledger interface {
	Account(ctx context.Context, id uint) (models.Account, error)
	// Trades returns the account's trades ordered by entry time then id.
	Trades(ctx context.Context, accountID uint) ([]models.Trade, error)
}

// Service loads ledger snapshots and summarizes them.
type Service struct {
	ledger Ledger
	logger *zap.Logger
	opts   Options
}

// NewService creates a statistics service.
func NewService(ledger Ledger, logger *zap.Logger, opts Options) *Service {
	return &Service{
		ledger: ledger,
		logger: logger.Named("statistics"),
		opts:   opts,
	}
}

// Statistics returns the summary of one account over r.
func (s *Service) Statistics(ctx context.Context, accountID uint, r Range) (Summary, error) {
	account, err := s.ledger.Account(ctx, accountID)
	if err != nil {
		return Summary{}, fmt.Errorf("could not load account %d: %w", accountID, err)
	}
	trades, err := s.ledger.Trades(ctx, accountID)
	if err != nil {
		return Summary{}, fmt.Errorf("could not load trades for account %d: %w", accountID, err)
	}

	summary := Summarize(account, trades, r, s.opts)
	s.logger.Debug("Computed statistics",
		zap.Uint("account_id", accountID),
		zap.Int("trades", summary.Counts.Total),
		zap.String("total_pnl", summary.PnL.Total.String()),
	)
	return summary, nil
}

// EquityCurve returns the account's curve over r, starting at the period-start capital.
func (s *Service) EquityCurve(ctx context.Context, accountID uint, r Range) (Curve, error) {
	account, err := s.ledger.Account(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("could not load account %d: %w", accountID, err)
	}
	trades, err := s.ledger.Trades(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("could not load trades for account %d: %w", accountID, err)
	}
	baseline := PeriodBaseline(account.InitialCapital, trades, r.From)
	return BuildCurve(baseline, r.From, r.Filter(trades)), nil
}
