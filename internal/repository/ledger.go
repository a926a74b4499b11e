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

const (
	KindGrant      = "grant"
	KindWager      = "wager"
	KindSettlement = "settlement"
)

// LedgerRepository owns every change to a user's balance. Each change is an
// entry under a ledger transaction and records the resulting balance.
type LedgerRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewLedgerRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *LedgerRepository {
	return &LedgerRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *LedgerRepository) WithQueries(qtx *db.Queries) *LedgerRepository {
	return &LedgerRepository{queries: qtx, db: r.db, logger: r.logger}
}

func (r *LedgerRepository) CreateUser(ctx context.Context, username, displayName string, now time.Time) (*domain.User, error) {
	user, err := r.queries.CreateUser(ctx, db.CreateUserParams{
		Username:    username,
		DisplayName: displayName,
		InsertedAt:  now,
		UpdatedAt:   now,
	})
	if IsUniqueViolation(err) {
		return nil, fmt.Errorf("username %q taken: %w", username, domain.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return toDomainUser(user), nil
}

func (r *LedgerRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := r.queries.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return toDomainUser(user), nil
}

type TransactionParams struct {
	Reference string
	Kind      string
	BattleID  *int64
	Victor    *int64
}

func (r *LedgerRepository) BeginTransaction(ctx context.Context, arg TransactionParams, now time.Time) (db.LedgerTransaction, error) {
	txn, err := r.queries.CreateLedgerTransaction(ctx, db.CreateLedgerTransactionParams{
		Reference:  arg.Reference,
		Kind:       arg.Kind,
		BattleID:   arg.BattleID,
		Victor:     arg.Victor,
		InsertedAt: now,
	})
	if IsUniqueViolation(err) {
		return db.LedgerTransaction{}, fmt.Errorf("ledger transaction %s exists: %w", arg.Reference, domain.ErrConflict)
	}
	if err != nil {
		return db.LedgerTransaction{}, fmt.Errorf("failed to create ledger transaction: %w", err)
	}
	return txn, nil
}

func (r *LedgerRepository) TransactionByReference(ctx context.Context, reference string) (*db.LedgerTransaction, error) {
	txn, err := r.queries.GetLedgerTransactionByReference(ctx, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger transaction %s: %w", reference, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger transaction: %w", err)
	}
	return &txn, nil
}

// Debit removes amount from the user's balance. The balance never goes below
// zero: a debit the balance cannot cover fails with domain.ErrInsufficientFunds
// and changes nothing.
func (r *LedgerRepository) Debit(ctx context.Context, transactionID, userID, amount int64, now time.Time) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit of %d: %w", amount, domain.ErrInvalidInput)
	}

	balance, err := r.queries.DebitUser(ctx, db.DebitUserParams{
		Amount:    amount,
		UpdatedAt: now,
		ID:        userID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := r.GetUser(ctx, userID); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("user %d cannot cover %d: %w", userID, amount, domain.ErrInsufficientFunds)
	}
	if err != nil {
		r.logger.Error().Err(err).Int64("user_id", userID).Int64("amount", amount).Msg("failed to debit user")
		return 0, fmt.Errorf("failed to debit user: %w", err)
	}

	if err := r.record(ctx, transactionID, userID, -amount, balance, now); err != nil {
		return 0, err
	}
	return balance, nil
}

// Credit adds amount to the user's balance. gained and lost update the user's
// lifetime statistics and do not affect the balance.
func (r *LedgerRepository) Credit(ctx context.Context, transactionID, userID, amount, gained, lost int64, now time.Time) (int64, error) {
	if amount < 0 || gained < 0 || lost < 0 {
		return 0, fmt.Errorf("credit of %d: %w", amount, domain.ErrInvalidInput)
	}

	balance, err := r.queries.CreditUser(ctx, db.CreditUserParams{
		Amount:    amount,
		Gained:    gained,
		Lost:      lost,
		UpdatedAt: now,
		ID:        userID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		r.logger.Error().Err(err).Int64("user_id", userID).Int64("amount", amount).Msg("failed to credit user")
		return 0, fmt.Errorf("failed to credit user: %w", err)
	}

	if err := r.record(ctx, transactionID, userID, amount, balance, now); err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *LedgerRepository) record(ctx context.Context, transactionID, userID, amount, balance int64, now time.Time) error {
	_, err := r.queries.InsertLedgerEntry(ctx, db.InsertLedgerEntryParams{
		TransactionID: transactionID,
		UserID:        userID,
		Amount:        amount,
		BalanceAfter:  balance,
		InsertedAt:    now,
	})
	if IsCheckViolation(err) {
		return fmt.Errorf("negative balance for user %d: %w", userID, domain.ErrInvariantViolation)
	}
	if err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Entries(ctx context.Context, userID int64, limit int) ([]domain.LedgerEntry, error) {
	entries, err := r.queries.ListLedgerEntriesByUser(ctx, db.ListLedgerEntriesByUserParams{
		UserID: userID,
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	return toDomainEntries(entries), nil
}

// TransactionEntries lists the entries written under one ledger transaction.
func (r *LedgerRepository) TransactionEntries(ctx context.Context, transactionID int64) ([]domain.LedgerEntry, error) {
	entries, err := r.queries.ListLedgerEntriesByTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return toDomainEntries(entries), nil
}

// Balance sums every entry of the user. It always equals the stored balance.
func (r *LedgerRepository) Balance(ctx context.Context, userID int64) (int64, error) {
	total, err := r.queries.SumLedgerEntriesByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return total, nil
}

func toDomainUser(u db.User) *domain.User {
	return &domain.User{
		ID:            u.ID,
		Username:      u.Username,
		DisplayName:   u.DisplayName,
		Mobiums:       u.Mobiums,
		MobiumsGained: u.MobiumsGained,
		MobiumsLost:   u.MobiumsLost,
		CreatedAt:     u.InsertedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func toDomainEntries(entries []db.LedgerEntry) []domain.LedgerEntry {
	result := make([]domain.LedgerEntry, len(entries))
	for i, e := range entries {
		result[i] = domain.LedgerEntry{
			ID:            e.ID,
			TransactionID: e.TransactionID,
			UserID:        e.UserID,
			Amount:        e.Amount,
			BalanceAfter:  e.BalanceAfter,
			CreatedAt:     e.InsertedAt,
		}
	}
	return result
}
