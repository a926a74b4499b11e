package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frostu8/ring-channel/internal/config"
	"github.com/frostu8/ring-channel/internal/constants"
	"github.com/frostu8/ring-channel/internal/db"
	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/repository"

	"github.com/rs/zerolog"
)

// WagerService takes wagers on open battles. Stakes are held by the ledger
// from the moment a wager is placed until the battle settles.
type WagerService struct {
	tx      *repository.TxManager
	battles *repository.BattleRepository
	wagers  *repository.WagerRepository
	ledger  *repository.LedgerRepository
	grace   time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

func NewWagerService(
	tx *repository.TxManager,
	battles *repository.BattleRepository,
	wagers *repository.WagerRepository,
	ledger *repository.LedgerRepository,
	cfg *config.Config,
	logger zerolog.Logger,
) *WagerService {
	return &WagerService{
		tx:      tx,
		battles: battles,
		wagers:  wagers,
		ledger:  ledger,
		grace:   cfg.Wager.Grace,
		now:     utcNow,
		logger:  logger,
	}
}

// PlaceWager places or changes the user's wager on a battle. Only the
// difference to a previous stake moves through the ledger. A stake of zero
// withdraws the wager and returns nil.
func (s *WagerService) PlaceWager(ctx context.Context, battleUUID string, userID int64, victor domain.Team, mobiums int64) (*domain.Wager, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if !victor.Valid() {
		return nil, fmt.Errorf("team %d: %w", victor, domain.ErrInvalidInput)
	}
	if mobiums < 0 {
		return nil, fmt.Errorf("stake of %d: %w", mobiums, domain.ErrInvalidInput)
	}

	var wager *domain.Wager
	err := s.tx.InTx(ctx, func(qtx *db.Queries) error {
		w, err := s.place(ctx, qtx, battleUUID, userID, victor, mobiums)
		wager = w
		return err
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("battle", battleUUID).Int64("user_id", userID).Msg("wager rejected")
		return nil, err
	}

	s.logger.Info().
		Str("battle", battleUUID).
		Int64("user_id", userID).
		Int64("victor", int64(victor)).
		Int64("mobiums", mobiums).
		Msg("wager placed")
	return wager, nil
}

func (s *WagerService) place(ctx context.Context, qtx *db.Queries, battleUUID string, userID int64, victor domain.Team, mobiums int64) (*domain.Wager, error) {
	battles := s.battles.WithQueries(qtx)
	wagers := s.wagers.WithQueries(qtx)
	ledger := s.ledger.WithQueries(qtx)
	now := s.now()

	battle, err := battles.GetByUUID(ctx, battleUUID)
	if err != nil {
		return nil, err
	}
	if battle.Concluded || now.After(battle.ClosedAt.Add(s.grace)) {
		return nil, fmt.Errorf("battle %s: %w", battleUUID, domain.ErrWagersClosed)
	}
	if !hasTeam(battle.Participants, victor) {
		return nil, fmt.Errorf("team %d has no participants: %w", victor, domain.ErrInvalidInput)
	}
	if _, err := ledger.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	existing, err := wagers.Get(ctx, userID, battle.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Settled {
		return nil, fmt.Errorf("wager %d: %w", existing.ID, domain.ErrWagersClosed)
	}

	var previous int64
	if existing != nil {
		previous = existing.Mobiums
	}
	if mobiums == 0 && existing == nil {
		return nil, fmt.Errorf("stake must be positive: %w", domain.ErrInvalidInput)
	}

	if delta := mobiums - previous; delta != 0 {
		txn, err := newLedgerTransaction(ctx, ledger, repository.KindWager, &battle.ID, now)
		if err != nil {
			return nil, err
		}
		if delta > 0 {
			_, err = ledger.Debit(ctx, txn.ID, userID, delta, now)
		} else {
			_, err = ledger.Credit(ctx, txn.ID, userID, -delta, 0, 0, now)
		}
		if err != nil {
			return nil, err
		}
	}

	switch {
	case mobiums == 0:
		return nil, wagers.Delete(ctx, existing.ID)
	case existing == nil:
		return wagers.Insert(ctx, userID, battle.ID, victor, mobiums, now)
	default:
		return wagers.Update(ctx, existing.ID, victor, mobiums, now)
	}
}

func (s *WagerService) ListWagers(ctx context.Context, battleUUID string) ([]domain.Wager, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	battle, err := s.battles.GetByUUID(ctx, battleUUID)
	if err != nil {
		return nil, err
	}
	return s.wagers.ListByBattle(ctx, battle.ID)
}

func hasTeam(participants []domain.Participant, team domain.Team) bool {
	for _, p := range participants {
		if p.Team == team {
			return true
		}
	}
	return false
}
