package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/frostu8/ring-channel/internal/database"
	"github.com/frostu8/ring-channel/internal/db"
	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/glicko2"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.June, 1, 9, 30, 0, 0, time.UTC)

func openTestDB(t *testing.T) (*sql.DB, *db.Queries) {
	t.Helper()
	sqlDB, err := database.Open(filepath.Join(t.TempDir(), "repo.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB, db.New(sqlDB)
}

func grant(t *testing.T, tx *TxManager, ledger *LedgerRepository, userID, amount int64, ref string) {
	t.Helper()
	err := tx.InTx(context.Background(), func(qtx *db.Queries) error {
		l := ledger.WithQueries(qtx)
		txn, err := l.BeginTransaction(context.Background(), TransactionParams{Reference: ref, Kind: KindGrant}, now)
		if err != nil {
			return err
		}
		_, err = l.Credit(context.Background(), txn.ID, userID, amount, 0, 0, now)
		return err
	})
	require.NoError(t, err)
}

func TestLedgerDebitNeverGoesNegative(t *testing.T) {
	sqlDB, queries := openTestDB(t)
	ctx := context.Background()
	log := zerolog.Nop()
	tx := NewTxManager(sqlDB, queries, log)
	ledger := NewLedgerRepository(sqlDB, queries, log)

	user, err := ledger.CreateUser(ctx, "rouge", "Rouge", now)
	require.NoError(t, err)
	assert.Zero(t, user.Mobiums)
	grant(t, tx, ledger, user.ID, 100, "grant:rouge")

	debit := func(amount int64, ref string) error {
		return tx.InTx(ctx, func(qtx *db.Queries) error {
			l := ledger.WithQueries(qtx)
			txn, err := l.BeginTransaction(ctx, TransactionParams{Reference: ref, Kind: KindWager}, now)
			if err != nil {
				return err
			}
			_, err = l.Debit(ctx, txn.ID, user.ID, amount, now)
			return err
		})
	}

	assert.ErrorIs(t, debit(101, "wager:1"), domain.ErrInsufficientFunds)
	assert.ErrorIs(t, debit(0, "wager:2"), domain.ErrInvalidInput)
	require.NoError(t, debit(100, "wager:3"))
	assert.ErrorIs(t, debit(1, "wager:4"), domain.ErrInsufficientFunds)

	got, err := ledger.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Mobiums)

	// failed debits roll back their ledger transaction too
	_, err = ledger.TransactionByReference(ctx, "wager:1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = ledger.Debit(ctx, 1, 9999, 5, now)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedgerConcurrentDebits(t *testing.T) {
	sqlDB, queries := openTestDB(t)
	ctx := context.Background()
	log := zerolog.Nop()
	tx := NewTxManager(sqlDB, queries, log)
	ledger := NewLedgerRepository(sqlDB, queries, log)

	user, err := ledger.CreateUser(ctx, "espio", "Espio", now)
	require.NoError(t, err)
	grant(t, tx, ledger, user.ID, 500, "grant:espio")

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := tx.InTx(ctx, func(qtx *db.Queries) error {
				l := ledger.WithQueries(qtx)
				txn, err := l.BeginTransaction(ctx, TransactionParams{Reference: fmt.Sprintf("wager:%d", i), Kind: KindWager}, now)
				if err != nil {
					return err
				}
				_, err = l.Debit(ctx, txn.ID, user.ID, 100, now)
				return err
			})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, success)

	got, err := ledger.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Mobiums)

	sum, err := ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Mobiums, sum)

	entries, err := ledger.Entries(ctx, user.ID, 100)
	require.NoError(t, err)
	assert.Len(t, entries, 6)
	for _, e := range entries {
		assert.GreaterOrEqual(t, e.BalanceAfter, int64(0))
	}
}

func TestLedgerReferenceIsUnique(t *testing.T) {
	sqlDB, queries := openTestDB(t)
	ctx := context.Background()
	ledger := NewLedgerRepository(sqlDB, queries, zerolog.Nop())

	_, err := ledger.BeginTransaction(ctx, TransactionParams{Reference: "settlement:1", Kind: KindSettlement}, now)
	require.NoError(t, err)
	_, err = ledger.BeginTransaction(ctx, TransactionParams{Reference: "settlement:1", Kind: KindSettlement}, now)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRatingAppendRefreshesCache(t *testing.T) {
	sqlDB, queries := openTestDB(t)
	ctx := context.Background()
	log := zerolog.Nop()
	players := NewPlayerRepository(sqlDB, queries, log)
	periods := NewPeriodRepository(sqlDB, queries, log)
	ratings := NewRatingRepository(sqlDB, queries, log)

	player, err := players.Upsert(ctx, "123456", fmt.Sprintf("%064x", 1), "Silver", now)
	require.NoError(t, err)
	assert.False(t, player.Rated)

	first, err := periods.Open(ctx, now, now)
	require.NoError(t, err)
	_, err = periods.Open(ctx, now, now)
	assert.ErrorIs(t, err, domain.ErrConflict, "only one period is open at a time")

	r1 := glicko2.Rating{Rating: 1610, Deviation: 120, Volatility: 0.0601}
	_, err = ratings.Append(ctx, player.ID, first.ID, r1, now)
	require.NoError(t, err)

	_, err = ratings.Append(ctx, player.ID, first.ID, r1, now)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation, "one snapshot per player and period")

	marked, err := periods.MarkClosing(ctx, first.ID, now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, marked)
	marked, err = periods.MarkClosing(ctx, first.ID, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, marked)
	require.NoError(t, periods.MarkClosed(ctx, first.ID, now.Add(time.Hour)))
	assert.ErrorIs(t, periods.MarkClosed(ctx, first.ID, now.Add(time.Hour)), domain.ErrConflict)

	second, err := periods.Open(ctx, now.Add(time.Hour), now.Add(time.Hour))
	require.NoError(t, err)

	r2 := glicko2.Rating{Rating: 1590, Deviation: 110, Volatility: 0.06}
	_, err = ratings.Append(ctx, player.ID, second.ID, r2, now.Add(time.Hour))
	require.NoError(t, err)

	cached, err := players.GetByID(ctx, player.ID)
	require.NoError(t, err)
	assert.True(t, cached.Rated)
	assert.Equal(t, r2, cached.Rating)
	require.NotNil(t, cached.RatedAt)
	assert.True(t, cached.RatedAt.Equal(now.Add(time.Hour)))

	history, err := ratings.History(ctx, player.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, r2, history[0].Rating, "newest first")
	assert.Equal(t, r1, history[1].Rating)

	next, err := periods.Next(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, next.ID)

	_, err = ratings.Append(ctx, 4242, second.ID, r2, now)
	assert.Error(t, err)
}
