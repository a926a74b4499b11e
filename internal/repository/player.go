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

type PlayerRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// WithQueries returns a copy of the repository bound to qtx, usually a
// transaction from TxManager.
func (r *PlayerRepository) WithQueries(qtx *db.Queries) *PlayerRepository {
	return &PlayerRepository{queries: qtx, db: r.db, logger: r.logger}
}

func (r *PlayerRepository) Get(ctx context.Context, shortID string) (*domain.Player, error) {
	player, err := r.queries.GetPlayerByShortID(ctx, shortID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %s: %w", shortID, domain.ErrNotFound)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("short_id", shortID).Msg("failed to get player")
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return toDomainPlayer(player), nil
}

func (r *PlayerRepository) GetByID(ctx context.Context, id int64) (*domain.Player, error) {
	player, err := r.queries.GetPlayerByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		r.logger.Error().Err(err).Int64("player_id", id).Msg("failed to get player")
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return toDomainPlayer(player), nil
}

func (r *PlayerRepository) GetByPublicKey(ctx context.Context, publicKey string) (*domain.Player, error) {
	player, err := r.queries.GetPlayerByPublicKey(ctx, publicKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player with public key: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return toDomainPlayer(player), nil
}

// Upsert creates the player with shortID, or renames the existing player that
// owns publicKey. An existing player keeps its short id.
func (r *PlayerRepository) Upsert(ctx context.Context, shortID, publicKey, displayName string, now time.Time) (*domain.Player, error) {
	player, err := r.queries.UpsertPlayer(ctx, db.UpsertPlayerParams{
		ShortID:     shortID,
		PublicKey:   publicKey,
		DisplayName: displayName,
		InsertedAt:  now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert player: %w", err)
	}
	return toDomainPlayer(player), nil
}

func (r *PlayerRepository) ListRated(ctx context.Context) ([]domain.Player, error) {
	players, err := r.queries.ListRatedPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rated players: %w", err)
	}

	result := make([]domain.Player, len(players))
	for i, p := range players {
		result[i] = *toDomainPlayer(p)
	}
	return result, nil
}

// RatingCandidates lists every player that must receive a snapshot when the
// window [from, to) closes: anyone already rated plus anyone who played.
func (r *PlayerRepository) RatingCandidates(ctx context.Context, from, to time.Time) ([]int64, error) {
	ids, err := r.queries.ListRatingCandidates(ctx, db.ListRatingCandidatesParams{
		From: from,
		To:   to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rating candidates: %w", err)
	}
	return ids, nil
}

func toDomainPlayer(p db.Player) *domain.Player {
	player := &domain.Player{
		ID:          p.ID,
		ShortID:     p.ShortID,
		PublicKey:   p.PublicKey,
		DisplayName: p.DisplayName,
		RatedAt:     p.RatedAt,
		CreatedAt:   p.InsertedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Rating != nil && p.Deviation != nil && p.Volatility != nil {
		player.Rated = true
		player.Rating = glicko2.Rating{
			Rating:     *p.Rating,
			Deviation:  *p.Deviation,
			Volatility: *p.Volatility,
		}
	}
	return player
}
