package db

import (
	"context"
	"time"
)

const wagerColumns = `id, user_id, battle_id, victor, mobiums, transaction_id, payout, inserted_at, updated_at`

func scanWager(row interface{ Scan(...interface{}) error }) (Wager, error) {
	var i Wager
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.BattleID,
		&i.Victor,
		&i.Mobiums,
		&i.TransactionID,
		&i.Payout,
		&i.InsertedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getWager = `SELECT ` + wagerColumns + ` FROM wager WHERE user_id = ? AND battle_id = ?`

type GetWagerParams struct {
	UserID   int64
	BattleID int64
}

func (q *Queries) GetWager(ctx context.Context, arg GetWagerParams) (Wager, error) {
	return scanWager(q.db.QueryRowContext(ctx, getWager, arg.UserID, arg.BattleID))
}

const insertWager = `
INSERT INTO wager (user_id, battle_id, victor, mobiums, inserted_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + wagerColumns

type InsertWagerParams struct {
	UserID     int64
	BattleID   int64
	Victor     int64
	Mobiums    int64
	InsertedAt time.Time
	UpdatedAt  time.Time
}

func (q *Queries) InsertWager(ctx context.Context, arg InsertWagerParams) (Wager, error) {
	row := q.db.QueryRowContext(ctx, insertWager,
		arg.UserID,
		arg.BattleID,
		arg.Victor,
		arg.Mobiums,
		arg.InsertedAt,
		arg.UpdatedAt,
	)
	return scanWager(row)
}

const updateWager = `
UPDATE wager
SET victor = ?, mobiums = ?, updated_at = ?
WHERE id = ? AND transaction_id IS NULL
RETURNING ` + wagerColumns

type UpdateWagerParams struct {
	Victor    int64
	Mobiums   int64
	UpdatedAt time.Time
	ID        int64
}

func (q *Queries) UpdateWager(ctx context.Context, arg UpdateWagerParams) (Wager, error) {
	row := q.db.QueryRowContext(ctx, updateWager,
		arg.Victor,
		arg.Mobiums,
		arg.UpdatedAt,
		arg.ID,
	)
	return scanWager(row)
}

const deleteWager = `DELETE FROM wager WHERE id = ? AND transaction_id IS NULL`

func (q *Queries) DeleteWager(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteWager, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listWagersByBattle = `
SELECT ` + wagerColumns + `
FROM wager
WHERE battle_id = ?
ORDER BY id`

func (q *Queries) ListWagersByBattle(ctx context.Context, battleID int64) ([]Wager, error) {
	return q.listWagers(ctx, listWagersByBattle, battleID)
}

const listUnsettledWagersByBattle = `
SELECT ` + wagerColumns + `
FROM wager
WHERE battle_id = ? AND transaction_id IS NULL
ORDER BY id`

func (q *Queries) ListUnsettledWagersByBattle(ctx context.Context, battleID int64) ([]Wager, error) {
	return q.listWagers(ctx, listUnsettledWagersByBattle, battleID)
}

const listWagersByTransaction = `
SELECT ` + wagerColumns + `
FROM wager
WHERE transaction_id = ?
ORDER BY id`

func (q *Queries) ListWagersByTransaction(ctx context.Context, transactionID int64) ([]Wager, error) {
	return q.listWagers(ctx, listWagersByTransaction, transactionID)
}

const settleWager = `
UPDATE wager
SET transaction_id = ?, payout = ?, updated_at = ?
WHERE id = ? AND transaction_id IS NULL`

type SettleWagerParams struct {
	TransactionID int64
	Payout        int64
	UpdatedAt     time.Time
	ID            int64
}

func (q *Queries) SettleWager(ctx context.Context, arg SettleWagerParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, settleWager,
		arg.TransactionID,
		arg.Payout,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *Queries) listWagers(ctx context.Context, query string, args ...interface{}) ([]Wager, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Wager
	for rows.Next() {
		i, err := scanWager(rows)
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
