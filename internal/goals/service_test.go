package goals

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trade-analytics-go/internal/database"
	"trade-analytics-go/internal/models"
)

type fixture struct {
	store   *database.Store
	service *Service
	account uint
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "goals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	store := database.NewStore(db)

	account := &models.Account{Name: "main", InitialCapital: dec("10000")}
	require.NoError(t, store.CreateAccount(ctx, account))
	other := &models.Account{Name: "side", InitialCapital: dec("5000")}
	require.NoError(t, store.CreateAccount(ctx, other))

	book := func(accountID uint, day int, pnl string) models.Trade {
		at := periodStart.AddDate(0, 0, day).Add(11 * time.Hour)
		return models.Trade{AccountID: accountID, Symbol: "NQ", EnteredAt: at, TradeDay: at, NetPnL: dec(pnl)}
	}
	require.NoError(t, store.CreateTrades(ctx, []models.Trade{
		book(account.ID, -3, "-400"), // before the period
		book(account.ID, 0, "600"),
		book(account.ID, 1, "400"),
		book(other.ID, 2, "-100"),
	}))

	svc := NewService(store, zap.NewNop())
	svc.now = func() time.Time { return periodStart.AddDate(0, 0, 5) }
	return fixture{store: store, service: svc, account: account.ID}
}

func (f fixture) createGoal(t *testing.T, g models.Goal) uint {
	t.Helper()
	require.NoError(t, f.store.CreateGoal(context.Background(), &g))
	return g.ID
}

func TestService_Progress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("Account scoped pnl goal reaches its target", func(t *testing.T) {
		g := goal(models.GoalPnLTotal, models.DirectionMinimum, "1000")
		g.AccountID = &f.account
		id := f.createGoal(t, g)

		p, err := f.service.Progress(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "1000", p.CurrentValue.String())
		assert.Equal(t, 100.0, p.Percentage)
		assert.Equal(t, models.GoalAchieved, p.Status)
		assert.Equal(t, 24, p.RemainingDays)

		stored, err := f.store.Goal(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.GoalAchieved, stored.Status)
		assert.True(t, stored.CurrentValue.Equal(dec("1000")))
	})

	t.Run("Unscoped goal spans every account", func(t *testing.T) {
		id := f.createGoal(t, goal(models.GoalTradeCount, models.DirectionMinimum, "6"))

		p, err := f.service.Progress(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "3", p.CurrentValue.String())
		assert.Equal(t, models.GoalActive, p.Status)
		assert.Equal(t, "3", p.RemainingAmount.String())
	})

	t.Run("Unknown goal", func(t *testing.T) {
		_, err := f.service.Progress(ctx, 4242)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestService_SweepActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	achieved := goal(models.GoalPnLTotal, models.DirectionMinimum, "500")
	achieved.AccountID = &f.account
	f.createGoal(t, achieved)

	expired := goal(models.GoalTradeCount, models.DirectionMinimum, "50")
	expired.PeriodEnd = periodStart.AddDate(0, 0, 2)
	f.createGoal(t, expired)

	f.createGoal(t, goal("unsupported", models.DirectionMinimum, "1"))

	cancelled := goal(models.GoalPnLTotal, models.DirectionMinimum, "1")
	cancelled.Status = models.GoalCancelled
	cancelledID := f.createGoal(t, cancelled)

	res, err := f.service.SweepActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Evaluated: 2, Failed: 1, Achieved: 1, Expired: 1}, res)

	active, err := f.store.ActiveGoals(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, models.GoalType("unsupported"), active[0].Type)

	stored, err := f.store.Goal(ctx, cancelledID)
	require.NoError(t, err)
	assert.Equal(t, models.GoalCancelled, stored.Status)
	assert.True(t, stored.CurrentValue.IsZero(), "cancelled goals are not swept")
}

func TestSweeper_Run(t *testing.T) {
	f := newFixture(t)
	g := goal(models.GoalPnLTotal, models.DirectionMinimum, "100")
	g.AccountID = &f.account
	id := f.createGoal(t, g)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSweeper(f.service, zap.NewNop(), time.Hour).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		stored, err := f.store.Goal(context.Background(), id)
		return err == nil && stored.Status == models.GoalAchieved
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestService_PeriodBaselineFeedsDrawdown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	g := goal(models.GoalMaxDrawdown, models.DirectionMaximum, "1")
	g.AccountID = &f.account
	id := f.createGoal(t, g)

	p, err := f.service.Progress(ctx, id)
	require.NoError(t, err)
	// 9600 -> 10200 -> 10600 never falls.
	assert.True(t, p.CurrentValue.Equal(decimal.Zero))
	assert.Equal(t, models.GoalAchieved, p.Status)
}
