package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/frostu8/ring-channel/internal/db"
	"github.com/frostu8/ring-channel/internal/domain"

	"github.com/rs/zerolog"
)

type WagerRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewWagerRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *WagerRepository {
	return &WagerRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *WagerRepository) WithQueries(qtx *db.Queries) *WagerRepository {
	return &WagerRepository{queries: qtx, db: r.db, logger: r.logger}
}

func (r *WagerRepository) Get(ctx context.Context, userID, battleID int64) (*domain.Wager, error) {
	wager, err := r.queries.GetWager(ctx, db.GetWagerParams{UserID: userID, BattleID: battleID})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wager of user %d: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	return toDomainWager(wager), nil
}

func (r *WagerRepository) Insert(ctx context.Context, userID, battleID int64, victor domain.Team, mobiums int64, now time.Time) (*domain.Wager, error) {
	wager, err := r.queries.InsertWager(ctx, db.InsertWagerParams{
		UserID:     userID,
		BattleID:   battleID,
		Victor:     int64(victor),
		Mobiums:    mobiums,
		InsertedAt: now,
		UpdatedAt:  now,
	})
	if IsUniqueViolation(err) {
		return nil, fmt.Errorf("user %d already wagered: %w", userID, domain.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert wager: %w", err)
	}
	return toDomainWager(wager), nil
}

func (r *WagerRepository) Update(ctx context.Context, id int64, victor domain.Team, mobiums int64, now time.Time) (*domain.Wager, error) {
	wager, err := r.queries.UpdateWager(ctx, db.UpdateWagerParams{
		Victor:    int64(victor),
		Mobiums:   mobiums,
		UpdatedAt: now,
		ID:        id,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wager %d is settled: %w", id, domain.ErrWagersClosed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update wager: %w", err)
	}
	return toDomainWager(wager), nil
}

func (r *WagerRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteWager(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete wager: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("wager %d is settled: %w", id, domain.ErrWagersClosed)
	}
	return nil
}

func (r *WagerRepository) ListByBattle(ctx context.Context, battleID int64) ([]domain.Wager, error) {
	wagers, err := r.queries.ListWagersByBattle(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}
	return toDomainWagers(wagers), nil
}

func (r *WagerRepository) ListUnsettled(ctx context.Context, battleID int64) ([]domain.Wager, error) {
	wagers, err := r.queries.ListUnsettledWagersByBattle(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsettled wagers: %w", err)
	}
	return toDomainWagers(wagers), nil
}

func (r *WagerRepository) ListBySettlement(ctx context.Context, transactionID int64) ([]db.Wager, error) {
	wagers, err := r.queries.ListWagersByTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list settled wagers: %w", err)
	}
	return wagers, nil
}

// MarkSettled links the wager to its settlement transaction. A wager can only
// be settled once.
func (r *WagerRepository) MarkSettled(ctx context.Context, id, transactionID, payout int64, now time.Time) error {
	n, err := r.queries.SettleWager(ctx, db.SettleWagerParams{
		TransactionID: transactionID,
		Payout:        payout,
		UpdatedAt:     now,
		ID:            id,
	})
	if err != nil {
		return fmt.Errorf("failed to settle wager: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("wager %d settled twice: %w", id, domain.ErrInvariantViolation)
	}
	return nil
}

func toDomainWagers(wagers []db.Wager) []domain.Wager {
	result := make([]domain.Wager, len(wagers))
	for i, w := range wagers {
		result[i] = *toDomainWager(w)
	}
	return result
}

func toDomainWager(w db.Wager) *domain.Wager {
	return &domain.Wager{
		ID:        w.ID,
		UserID:    w.UserID,
		BattleID:  w.BattleID,
		Victor:    domain.Team(w.Victor),
		Mobiums:   w.Mobiums,
		Settled:   w.TransactionID != nil,
		Payout:    w.Payout,
		CreatedAt: w.InsertedAt,
		UpdatedAt: w.UpdatedAt,
	}
}
