package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/frostu8/ring-channel/internal/db"
	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/glicko2"

	"github.com/rs/zerolog"
)

type RatingRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewRatingRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *RatingRepository {
	return &RatingRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *RatingRepository) WithQueries(qtx *db.Queries) *RatingRepository {
	return &RatingRepository{queries: qtx, db: r.db, logger: r.logger}
}

// Append stores a new snapshot and refreshes the player's cached rating from
// the snapshot table. Both writes share the repository's queries, so callers
// get atomicity by binding the repository to a transaction.
func (r *RatingRepository) Append(ctx context.Context, playerID, periodID int64, rating glicko2.Rating, at time.Time) (*domain.RatingSnapshot, error) {
	snapshot, err := r.queries.InsertRating(ctx, db.InsertRatingParams{
		PlayerID:   playerID,
		PeriodID:   periodID,
		Rating:     rating.Rating,
		Deviation:  rating.Deviation,
		Volatility: rating.Volatility,
		InsertedAt: at,
	})
	if IsUniqueViolation(err) {
		return nil, fmt.Errorf("player %d already rated in period %d: %w", playerID, periodID, domain.ErrInvariantViolation)
	}
	if err != nil {
		r.logger.Error().Err(err).Int64("player_id", playerID).Int64("period_id", periodID).Msg("failed to insert rating")
		return nil, fmt.Errorf("failed to insert rating: %w", err)
	}

	n, err := r.queries.RefreshPlayerRating(ctx, db.RefreshPlayerRatingParams{
		UpdatedAt: at,
		ID:        playerID,
	})
	if err != nil {
		r.logger.Error().Err(err).Int64("player_id", playerID).Msg("failed to refresh rating cache")
		return nil, fmt.Errorf("failed to refresh rating cache: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("player %d: %w", playerID, domain.ErrNotFound)
	}

	return toDomainSnapshot(snapshot), nil
}

func (r *RatingRepository) Latest(ctx context.Context, playerID int64) (*domain.RatingSnapshot, error) {
	snapshot, err := r.queries.GetLatestRating(ctx, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rating for player %d: %w", playerID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest rating: %w", err)
	}
	return toDomainSnapshot(snapshot), nil
}

func (r *RatingRepository) History(ctx context.Context, playerID int64, limit int) ([]domain.RatingSnapshot, error) {
	records, err := r.queries.ListRatingsByPlayer(ctx, db.ListRatingsByPlayerParams{
		PlayerID: playerID,
		Limit:    int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	return toDomainSnapshots(records), nil
}

func (r *RatingRepository) ListByPeriod(ctx context.Context, periodID int64) ([]domain.RatingSnapshot, error) {
	records, err := r.queries.ListRatingsByPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings for period: %w", err)
	}
	return toDomainSnapshots(records), nil
}

func toDomainSnapshots(records []db.Rating) []domain.RatingSnapshot {
	result := make([]domain.RatingSnapshot, len(records))
	for i, rec := range records {
		result[i] = *toDomainSnapshot(rec)
	}
	return result
}

func toDomainSnapshot(r db.Rating) *domain.RatingSnapshot {
	return &domain.RatingSnapshot{
		ID:       r.ID,
		PlayerID: r.PlayerID,
		PeriodID: r.PeriodID,
		Rating: glicko2.Rating{
			Rating:     r.Rating,
			Deviation:  r.Deviation,
			Volatility: r.Volatility,
		},
		CreatedAt: r.InsertedAt,
	}
}
