package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/frostu8/ring-channel/internal/constants"
	"github.com/frostu8/ring-channel/internal/db"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// TxManager runs units of work in a single SQLite transaction, retrying the
// whole unit when the database is busy.
type TxManager struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewTxManager(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *TxManager {
	return &TxManager{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// InTx calls fn inside a transaction and commits if it returns nil. fn may be
// called more than once and must not keep state between calls.
func (m *TxManager) InTx(ctx context.Context, fn func(qtx *db.Queries) error) error {
	backoff := retry.WithMaxRetries(constants.DBRetryMax, retry.NewExponential(constants.DBRetryBase))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := m.run(ctx, fn)
		if IsBusy(err) {
			m.logger.Warn().Err(err).Int("attempt", attempt).Msg("database busy, retrying transaction")
			return retry.RetryableError(err)
		}
		return err
	})
}

func (m *TxManager) run(ctx context.Context, fn func(qtx *db.Queries) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(m.queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func IsCheckViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck
	}
	return false
}
