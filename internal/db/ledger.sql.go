package db

import (
	"context"
	"time"
)

const userColumns = `id, username, display_name, mobiums, mobiums_gained, mobiums_lost, inserted_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.DisplayName,
		&i.Mobiums,
		&i.MobiumsGained,
		&i.MobiumsLost,
		&i.InsertedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createUser = `
INSERT INTO user (username, display_name, inserted_at, updated_at)
VALUES (?, ?, ?, ?)
RETURNING ` + userColumns

type CreateUserParams struct {
	Username    string
	DisplayName string
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.Username,
		arg.DisplayName,
		arg.InsertedAt,
		arg.UpdatedAt,
	)
	return scanUser(row)
}

const getUserByID = `SELECT ` + userColumns + ` FROM user WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const debitUser = `
UPDATE user
SET mobiums = mobiums - ?1, updated_at = ?2
WHERE id = ?3 AND mobiums >= ?1
RETURNING mobiums`

type DebitUserParams struct {
	Amount    int64
	UpdatedAt time.Time
	ID        int64
}

// DebitUser returns sql.ErrNoRows when the balance does not cover the amount.
func (q *Queries) DebitUser(ctx context.Context, arg DebitUserParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, debitUser, arg.Amount, arg.UpdatedAt, arg.ID)
	var mobiums int64
	err := row.Scan(&mobiums)
	return mobiums, err
}

const creditUser = `
UPDATE user
SET mobiums = mobiums + ?,
    mobiums_gained = mobiums_gained + ?,
    mobiums_lost = mobiums_lost + ?,
    updated_at = ?
WHERE id = ?
RETURNING mobiums`

type CreditUserParams struct {
	Amount    int64
	Gained    int64
	Lost      int64
	UpdatedAt time.Time
	ID        int64
}

func (q *Queries) CreditUser(ctx context.Context, arg CreditUserParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, creditUser,
		arg.Amount,
		arg.Gained,
		arg.Lost,
		arg.UpdatedAt,
		arg.ID,
	)
	var mobiums int64
	err := row.Scan(&mobiums)
	return mobiums, err
}

const ledgerTransactionColumns = `id, reference, kind, battle_id, victor, inserted_at`

func scanLedgerTransaction(row interface{ Scan(...interface{}) error }) (LedgerTransaction, error) {
	var i LedgerTransaction
	err := row.Scan(
		&i.ID,
		&i.Reference,
		&i.Kind,
		&i.BattleID,
		&i.Victor,
		&i.InsertedAt,
	)
	return i, err
}

const createLedgerTransaction = `
INSERT INTO ledger_transaction (reference, kind, battle_id, victor, inserted_at)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + ledgerTransactionColumns

type CreateLedgerTransactionParams struct {
	Reference  string
	Kind       string
	BattleID   *int64
	Victor     *int64
	InsertedAt time.Time
}

func (q *Queries) CreateLedgerTransaction(ctx context.Context, arg CreateLedgerTransactionParams) (LedgerTransaction, error) {
	row := q.db.QueryRowContext(ctx, createLedgerTransaction,
		arg.Reference,
		arg.Kind,
		arg.BattleID,
		arg.Victor,
		arg.InsertedAt,
	)
	return scanLedgerTransaction(row)
}

const getLedgerTransactionByReference = `SELECT ` + ledgerTransactionColumns + ` FROM ledger_transaction WHERE reference = ?`

func (q *Queries) GetLedgerTransactionByReference(ctx context.Context, reference string) (LedgerTransaction, error) {
	return scanLedgerTransaction(q.db.QueryRowContext(ctx, getLedgerTransactionByReference, reference))
}

const ledgerEntryColumns = `id, transaction_id, user_id, amount, balance_after, inserted_at`

func scanLedgerEntry(row interface{ Scan(...interface{}) error }) (LedgerEntry, error) {
	var i LedgerEntry
	err := row.Scan(
		&i.ID,
		&i.TransactionID,
		&i.UserID,
		&i.Amount,
		&i.BalanceAfter,
		&i.InsertedAt,
	)
	return i, err
}

const insertLedgerEntry = `
INSERT INTO ledger_entry (transaction_id, user_id, amount, balance_after, inserted_at)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + ledgerEntryColumns

type InsertLedgerEntryParams struct {
	TransactionID int64
	UserID        int64
	Amount        int64
	BalanceAfter  int64
	InsertedAt    time.Time
}

func (q *Queries) InsertLedgerEntry(ctx context.Context, arg InsertLedgerEntryParams) (LedgerEntry, error) {
	row := q.db.QueryRowContext(ctx, insertLedgerEntry,
		arg.TransactionID,
		arg.UserID,
		arg.Amount,
		arg.BalanceAfter,
		arg.InsertedAt,
	)
	return scanLedgerEntry(row)
}

const listLedgerEntriesByUser = `
SELECT ` + ledgerEntryColumns + `
FROM ledger_entry
WHERE user_id = ?
ORDER BY id DESC
LIMIT ?`

type ListLedgerEntriesByUserParams struct {
	UserID int64
	Limit  int64
}

func (q *Queries) ListLedgerEntriesByUser(ctx context.Context, arg ListLedgerEntriesByUserParams) ([]LedgerEntry, error) {
	return q.listLedgerEntries(ctx, listLedgerEntriesByUser, arg.UserID, arg.Limit)
}

const listLedgerEntriesByTransaction = `
SELECT ` + ledgerEntryColumns + `
FROM ledger_entry
WHERE transaction_id = ?
ORDER BY id`

func (q *Queries) ListLedgerEntriesByTransaction(ctx context.Context, transactionID int64) ([]LedgerEntry, error) {
	return q.listLedgerEntries(ctx, listLedgerEntriesByTransaction, transactionID)
}

func (q *Queries) listLedgerEntries(ctx context.Context, query string, args ...interface{}) ([]LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LedgerEntry
	for rows.Next() {
		i, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const sumLedgerEntriesByUser = `SELECT COALESCE(SUM(amount), 0) FROM ledger_entry WHERE user_id = ?`

func (q *Queries) SumLedgerEntriesByUser(ctx context.Context, userID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, sumLedgerEntriesByUser, userID)
	var total int64
	err := row.Scan(&total)
	return total, err
}
