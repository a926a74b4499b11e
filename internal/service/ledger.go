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

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type LedgerService struct {
	tx       *repository.TxManager
	ledger   *repository.LedgerRepository
	starting int64
	now      func() time.Time
	logger   zerolog.Logger
}

func NewLedgerService(tx *repository.TxManager, ledger *repository.LedgerRepository, cfg *config.Config, logger zerolog.Logger) *LedgerService {
	return &LedgerService{
		tx:       tx,
		ledger:   ledger,
		starting: cfg.Wager.StartingMobiums,
		now:      utcNow,
		logger:   logger,
	}
}

// CreateUser registers a user and grants the starting balance.
func (s *LedgerService) CreateUser(ctx context.Context, username, displayName string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", domain.ErrInvalidInput)
	}
	if displayName == "" {
		displayName = username
	}

	var user *domain.User
	err := s.tx.InTx(ctx, func(qtx *db.Queries) error {
		ledger := s.ledger.WithQueries(qtx)
		now := s.now()

		u, err := ledger.CreateUser(ctx, username, displayName, now)
		if err != nil {
			return err
		}

		if s.starting > 0 {
			txn, err := newLedgerTransaction(ctx, ledger, repository.KindGrant, nil, now)
			if err != nil {
				return err
			}
			if u.Mobiums, err = ledger.Credit(ctx, txn.ID, u.ID, s.starting, 0, 0, now); err != nil {
				return err
			}
		}
		user = u
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("failed to create user")
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("username", username).Int64("mobiums", user.Mobiums).Msg("user created")
	return user, nil
}

func (s *LedgerService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	return s.ledger.GetUser(ctx, id)
}

func (s *LedgerService) History(ctx context.Context, userID int64) ([]domain.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if _, err := s.ledger.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.ledger.Entries(ctx, userID, constants.LedgerHistoryLimit)
}

// newLedgerTransaction opens a ledger transaction with a random reference.
func newLedgerTransaction(ctx context.Context, ledger *repository.LedgerRepository, kind string, battleID *int64, now time.Time) (db.LedgerTransaction, error) {
	id, err := gonanoid.New()
	if err != nil {
		return db.LedgerTransaction{}, fmt.Errorf("failed to generate nanoid: %w", err)
	}
	return ledger.BeginTransaction(ctx, repository.TransactionParams{
		Reference: kind + ":" + id,
		Kind:      kind,
		BattleID:  battleID,
	}, now)
}
