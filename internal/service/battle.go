package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/frostu8/ring-channel/internal/config"
	"github.com/frostu8/ring-channel/internal/constants"
	"github.com/frostu8/ring-channel/internal/db"
	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type BattleService struct {
	tx         *repository.TxManager
	battles    *repository.BattleRepository
	players    *repository.PlayerRepository
	settlement *SettlementService
	betWindow  time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

func NewBattleService(
	tx *repository.TxManager,
	battles *repository.BattleRepository,
	players *repository.PlayerRepository,
	settlement *SettlementService,
	cfg *config.Config,
	logger zerolog.Logger,
) *BattleService {
	return &BattleService{
		tx:         tx,
		battles:    battles,
		players:    players,
		settlement: settlement,
		betWindow:  cfg.Wager.DefaultBetWindow,
		now:        utcNow,
		logger:     logger,
	}
}

type Entrant struct {
	Player string
	Team   domain.Team
}

// CreateBattle starts a battle between entrants. Wagers close at closedAt, or
// after the default bet window when closedAt is nil.
func (s *BattleService) CreateBattle(ctx context.Context, levelName string, closedAt *time.Time, entrants []Entrant) (*domain.Battle, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	levelName = strings.TrimSpace(levelName)
	if levelName == "" {
		return nil, fmt.Errorf("level name is required: %w", domain.ErrInvalidInput)
	}
	if len(entrants) == 0 {
		return nil, fmt.Errorf("battle needs participants: %w", domain.ErrInvalidInput)
	}

	participants := make([]repository.NewParticipant, len(entrants))
	for i, e := range entrants {
		if !e.Team.Valid() {
			return nil, fmt.Errorf("team %d: %w", e.Team, domain.ErrInvalidInput)
		}
		player, err := s.players.Get(ctx, e.Player)
		if err != nil {
			return nil, err
		}
		participants[i] = repository.NewParticipant{PlayerID: player.ID, Team: e.Team}
	}

	now := s.now()
	closes := now.Add(s.betWindow)
	if closedAt != nil {
		closes = closedAt.UTC()
	}

	battle, err := s.battles.Create(ctx, uuid.New().String(), levelName, closes, now, participants)
	if err != nil {
		s.logger.Error().Err(err).Str("level", levelName).Msg("failed to create battle")
		return nil, err
	}

	s.logger.Info().Str("battle", battle.UUID).Str("level", levelName).Int("participants", len(participants)).Msg("battle created")
	return battle, nil
}

func (s *BattleService) GetBattle(ctx context.Context, battleUUID string) (*domain.Battle, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	return s.battles.GetByUUID(ctx, battleUUID)
}

// ReportResult records a participant's finish time and no-contest flag.
// Results of a concluded battle can no longer change.
func (s *BattleService) ReportResult(ctx context.Context, battleUUID, shortID string, finishTime *int64, noContest bool) (*domain.Battle, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if finishTime != nil && *finishTime < 0 {
		return nil, fmt.Errorf("finish time %d: %w", *finishTime, domain.ErrInvalidInput)
	}

	var battle *domain.Battle
	err := s.tx.InTx(ctx, func(qtx *db.Queries) error {
		battles := s.battles.WithQueries(qtx)

		b, err := battles.GetByUUID(ctx, battleUUID)
		if err != nil {
			return err
		}
		if b.Concluded {
			return fmt.Errorf("battle %s: %w", battleUUID, domain.ErrAlreadyConcluded)
		}
		player, err := s.players.WithQueries(qtx).Get(ctx, shortID)
		if err != nil {
			return err
		}
		if err := battles.UpdateResult(ctx, b.ID, player.ID, finishTime, noContest); err != nil {
			return err
		}

		battle, err = battles.GetByUUID(ctx, battleUUID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return battle, nil
}

// Conclude ends the battle and settles its wagers. Concluding twice is
// harmless: the battle stays as it was and settlement returns the stored
// result. If settlement fails the battle stays concluded and can be settled
// again later.
func (s *BattleService) Conclude(ctx context.Context, battleUUID string) (*domain.Battle, *domain.SettlementResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	var battle *domain.Battle
	err := s.tx.InTx(ctx, func(qtx *db.Queries) error {
		battles := s.battles.WithQueries(qtx)

		b, err := battles.GetByUUID(ctx, battleUUID)
		if err != nil {
			return err
		}
		if !b.Concluded {
			if _, err := battles.Conclude(ctx, b.ID, s.now()); err != nil {
				return err
			}
			if b, err = battles.GetByUUID(ctx, battleUUID); err != nil {
				return err
			}
		}
		battle = b
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("battle", battleUUID).Msg("failed to conclude battle")
		return nil, nil, err
	}

	result, err := s.settlement.Settle(ctx, battleUUID)
	if err != nil {
		return battle, nil, fmt.Errorf("failed to settle battle: %w", err)
	}
	return battle, result, nil
}
