package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frostu8/ring-channel/internal/constants"
	"github.com/frostu8/ring-channel/internal/db"
	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/repository"

	"github.com/rs/zerolog"
)

// SettlementService resolves every wager on a concluded battle exactly once.
// The settlement ledger transaction, every credit and every wager stamp are
// written in one database transaction, and the transaction's unique reference
// marks the battle as settled.
type SettlementService struct {
	tx       *repository.TxManager
	battles  *repository.BattleRepository
	wagers   *repository.WagerRepository
	ledger   *repository.LedgerRepository
	notifier Notifier
	now      func() time.Time
	logger   zerolog.Logger
}

func NewSettlementService(
	tx *repository.TxManager,
	battles *repository.BattleRepository,
	wagers *repository.WagerRepository,
	ledger *repository.LedgerRepository,
	notifier Notifier,
	logger zerolog.Logger,
) *SettlementService {
	return &SettlementService{
		tx:       tx,
		battles:  battles,
		wagers:   wagers,
		ledger:   ledger,
		notifier: notifier,
		now:      utcNow,
		logger:   logger,
	}
}

// Settle settles the battle. Calling it again, concurrently or later, returns
// the stored result with AlreadySettled set and moves no mobiums.
func (s *SettlementService) Settle(ctx context.Context, battleUUID string) (*domain.SettlementResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.SettlementTimeout)
	defer cancel()

	var result *domain.SettlementResult
	err := s.tx.InTx(ctx, func(qtx *db.Queries) error {
		r, err := s.settle(ctx, qtx, battleUUID)
		result = r
		return err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotConcluded) && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error().Err(err).Str("battle", battleUUID).Msg("failed to settle battle")
		}
		return nil, err
	}

	if result.AlreadySettled {
		s.logger.Debug().Str("battle", battleUUID).Msg("battle already settled")
		return result, nil
	}

	s.logger.Info().
		Str("battle", battleUUID).
		Str("victor", result.Victor.String()).
		Int("wagers", len(result.Payouts)).
		Msg("battle settled")
	s.notifier.SettlementCompleted(ctx, result)
	return result, nil
}

func (s *SettlementService) settle(ctx context.Context, qtx *db.Queries, battleUUID string) (*domain.SettlementResult, error) {
	battles := s.battles.WithQueries(qtx)
	wagers := s.wagers.WithQueries(qtx)
	ledger := s.ledger.WithQueries(qtx)

	battle, err := battles.GetByUUID(ctx, battleUUID)
	if err != nil {
		return nil, err
	}
	if !battle.Concluded {
		return nil, fmt.Errorf("battle %s: %w", battleUUID, domain.ErrNotConcluded)
	}

	reference := settlementReference(battle.ID)
	existing, err := ledger.TransactionByReference(ctx, reference)
	if err == nil {
		return s.storedResult(ctx, wagers, battle, existing)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	victor := DetermineVictor(battle.Participants)
	open, err := wagers.ListUnsettled(ctx, battle.ID)
	if err != nil {
		return nil, err
	}
	payouts := ComputePayouts(victor, open)

	now := s.now()
	txn, err := ledger.BeginTransaction(ctx, repository.TransactionParams{
		Reference: reference,
		Kind:      repository.KindSettlement,
		BattleID:  &battle.ID,
		Victor:    victorColumn(victor),
	}, now)
	if err != nil {
		return nil, err
	}

	for _, p := range payouts {
		gained, lost := max(p.Delta, 0), max(-p.Delta, 0)
		if _, err := ledger.Credit(ctx, txn.ID, p.UserID, p.Payout, gained, lost, now); err != nil {
			return nil, err
		}
		if err := wagers.MarkSettled(ctx, p.WagerID, txn.ID, p.Payout, now); err != nil {
			return nil, err
		}
	}

	return &domain.SettlementResult{
		BattleID:  battle.UUID,
		Victor:    victor,
		Payouts:   payouts,
		SettledAt: txn.InsertedAt,
	}, nil
}

func (s *SettlementService) storedResult(ctx context.Context, wagers *repository.WagerRepository, battle *domain.Battle, txn *db.LedgerTransaction) (*domain.SettlementResult, error) {
	settled, err := wagers.ListBySettlement(ctx, txn.ID)
	if err != nil {
		return nil, err
	}

	payouts := make([]domain.Payout, len(settled))
	for i, w := range settled {
		if w.Payout == nil {
			return nil, fmt.Errorf("settled wager %d has no payout: %w", w.ID, domain.ErrInvariantViolation)
		}
		payouts[i] = domain.Payout{
			WagerID: w.ID,
			UserID:  w.UserID,
			Victor:  domain.Team(w.Victor),
			Stake:   w.Mobiums,
			Payout:  *w.Payout,
			Delta:   *w.Payout - w.Mobiums,
		}
	}

	victor := domain.VictorVoid
	if txn.Victor != nil {
		victor = domain.Victor(*txn.Victor)
	}

	return &domain.SettlementResult{
		BattleID:       battle.UUID,
		Victor:         victor,
		AlreadySettled: true,
		Payouts:        payouts,
		SettledAt:      txn.InsertedAt,
	}, nil
}

func settlementReference(battleID int64) string {
	return fmt.Sprintf("settlement:%d", battleID)
}

func victorColumn(v domain.Victor) *int64 {
	if v.IsVoid() {
		return nil
	}
	team := int64(v)
	return &team
}
