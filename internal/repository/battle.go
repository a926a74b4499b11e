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

type BattleRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewBattleRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *BattleRepository {
	return &BattleRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *BattleRepository) WithQueries(qtx *db.Queries) *BattleRepository {
	return &BattleRepository{queries: qtx, db: r.db, logger: r.logger}
}

type NewParticipant struct {
	PlayerID int64
	Team     domain.Team
}

// Create inserts a battle and its participants in one transaction.
func (r *BattleRepository) Create(ctx context.Context, uuid, levelName string, closedAt, now time.Time, participants []NewParticipant) (*domain.Battle, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	battle, err := qtx.CreateBattle(ctx, db.CreateBattleParams{
		Uuid:       uuid,
		LevelName:  levelName,
		ClosedAt:   closedAt,
		InsertedAt: now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create battle: %w", err)
	}

	for _, p := range participants {
		_, err := qtx.InsertParticipant(ctx, db.InsertParticipantParams{
			BattleID: battle.ID,
			PlayerID: p.PlayerID,
			Team:     int64(p.Team),
		})
		if IsUniqueViolation(err) {
			return nil, fmt.Errorf("player %d listed twice: %w", p.PlayerID, domain.ErrInvalidInput)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert participant %d: %w", p.PlayerID, err)
		}
	}

	rows, err := qtx.ListParticipants(ctx, battle.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit battle: %w", err)
	}

	r.logger.Debug().Str("battle", uuid).Int("participants", len(rows)).Msg("battle created")
	return toDomainBattle(battle, rows), nil
}

func (r *BattleRepository) GetByUUID(ctx context.Context, uuid string) (*domain.Battle, error) {
	battle, err := r.queries.GetBattleByUUID(ctx, uuid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("battle %s: %w", uuid, domain.ErrNotFound)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("battle", uuid).Msg("failed to get battle")
		return nil, fmt.Errorf("failed to get battle: %w", err)
	}

	rows, err := r.queries.ListParticipants(ctx, battle.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return toDomainBattle(battle, rows), nil
}

// Conclude marks the battle concluded. It reports false when the battle was
// already concluded.
func (r *BattleRepository) Conclude(ctx context.Context, id int64, at time.Time) (bool, error) {
	n, err := r.queries.ConcludeBattle(ctx, db.ConcludeBattleParams{
		ConcludedAt: at,
		UpdatedAt:   at,
		ID:          id,
	})
	if err != nil {
		return false, fmt.Errorf("failed to conclude battle: %w", err)
	}
	return n > 0, nil
}

func (r *BattleRepository) UpdateResult(ctx context.Context, battleID, playerID int64, finishTime *int64, noContest bool) error {
	_, err := r.queries.UpdateParticipantResult(ctx, db.UpdateParticipantResultParams{
		FinishTime: finishTime,
		NoContest:  noContest,
		BattleID:   battleID,
		PlayerID:   playerID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("player %d in battle %d: %w", playerID, battleID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}
	return nil
}

func (r *BattleRepository) MatchupRows(ctx context.Context, playerID int64, from, to time.Time) ([]db.FindMatchupsRow, error) {
	rows, err := r.queries.FindMatchups(ctx, db.FindMatchupsParams{
		PlayerID: playerID,
		From:     from,
		To:       to,
	})
	if err != nil {
		r.logger.Error().Err(err).Int64("player_id", playerID).Msg("failed to find matchups")
		return nil, fmt.Errorf("failed to find matchups: %w", err)
	}
	return rows, nil
}

func toDomainBattle(b db.Battle, rows []db.ListParticipantsRow) *domain.Battle {
	participants := make([]domain.Participant, len(rows))
	for i, p := range rows {
		participants[i] = domain.Participant{
			PlayerID:   p.PlayerID,
			ShortID:    p.ShortID,
			Team:       domain.Team(p.Team),
			FinishTime: p.FinishTime,
			NoContest:  p.NoContest,
		}
	}
	return &domain.Battle{
		ID:           b.ID,
		UUID:         b.Uuid,
		LevelName:    b.LevelName,
		Concluded:    b.Concluded,
		ConcludedAt:  b.ConcludedAt,
		ClosedAt:     b.ClosedAt,
		Participants: participants,
		CreatedAt:    b.InsertedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}
