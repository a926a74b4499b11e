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

type PeriodRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewPeriodRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *PeriodRepository {
	return &PeriodRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *PeriodRepository) WithQueries(qtx *db.Queries) *PeriodRepository {
	return &PeriodRepository{queries: qtx, db: r.db, logger: r.logger}
}

func (r *PeriodRepository) Get(ctx context.Context, id int64) (*domain.RatingPeriod, error) {
	period, err := r.queries.GetRatingPeriod(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rating period %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rating period: %w", err)
	}
	return toDomainPeriod(period), nil
}

// ByStatus returns the newest period in status, or domain.ErrNotFound.
func (r *PeriodRepository) ByStatus(ctx context.Context, status domain.PeriodStatus) (*domain.RatingPeriod, error) {
	period, err := r.queries.GetRatingPeriodByStatus(ctx, int64(status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s rating period: %w", status, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s rating period: %w", status, err)
	}
	return toDomainPeriod(period), nil
}

func (r *PeriodRepository) Next(ctx context.Context, id int64) (*domain.RatingPeriod, error) {
	period, err := r.queries.GetNextRatingPeriod(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rating period after %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next rating period: %w", err)
	}
	return toDomainPeriod(period), nil
}

func (r *PeriodRepository) Open(ctx context.Context, startedAt, now time.Time) (*domain.RatingPeriod, error) {
	period, err := r.queries.CreateRatingPeriod(ctx, db.CreateRatingPeriodParams{
		StartedAt:  startedAt,
		InsertedAt: now,
	})
	if IsUniqueViolation(err) {
		return nil, fmt.Errorf("a rating period is already open: %w", domain.ErrConflict)
	}
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to open rating period")
		return nil, fmt.Errorf("failed to open rating period: %w", err)
	}
	return toDomainPeriod(period), nil
}

// MarkClosing moves an open period to closing. It reports false when the
// period was not open.
func (r *PeriodRepository) MarkClosing(ctx context.Context, id int64, endsAt time.Time) (bool, error) {
	n, err := r.queries.MarkRatingPeriodClosing(ctx, db.MarkRatingPeriodClosingParams{
		EndsAt: endsAt,
		ID:     id,
	})
	if IsUniqueViolation(err) {
		return false, fmt.Errorf("another rating period is closing: %w", domain.ErrConflict)
	}
	if err != nil {
		return false, fmt.Errorf("failed to mark rating period closing: %w", err)
	}
	return n > 0, nil
}

func (r *PeriodRepository) MarkClosed(ctx context.Context, id int64, closedAt time.Time) error {
	n, err := r.queries.MarkRatingPeriodClosed(ctx, db.MarkRatingPeriodClosedParams{
		ClosedAt: closedAt,
		ID:       id,
	})
	if err != nil {
		return fmt.Errorf("failed to mark rating period closed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rating period %d is not closing: %w", id, domain.ErrConflict)
	}
	return nil
}

func toDomainPeriod(p db.RatingPeriod) *domain.RatingPeriod {
	return &domain.RatingPeriod{
		ID:        p.ID,
		Status:    domain.PeriodStatus(p.Status),
		StartedAt: p.StartedAt,
		EndsAt:    p.EndsAt,
		ClosedAt:  p.ClosedAt,
	}
}
