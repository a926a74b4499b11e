package db

import (
	"context"
	"time"
)

const playerColumns = `id, short_id, public_key, display_name, rating, deviation, volatility, rated_at, inserted_at, updated_at`

func scanPlayer(row interface{ Scan(...interface{}) error }) (Player, error) {
	var i Player
	err := row.Scan(
		&i.ID,
		&i.ShortID,
		&i.PublicKey,
		&i.DisplayName,
		&i.Rating,
		&i.Deviation,
		&i.Volatility,
		&i.RatedAt,
		&i.InsertedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertPlayer = `
INSERT INTO player (short_id, public_key, display_name, inserted_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (public_key) DO UPDATE SET
    display_name = excluded.display_name,
    updated_at = excluded.updated_at
RETURNING ` + playerColumns

type UpsertPlayerParams struct {
	ShortID     string
	PublicKey   string
	DisplayName string
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

func (q *Queries) UpsertPlayer(ctx context.Context, arg UpsertPlayerParams) (Player, error) {
	row := q.db.QueryRowContext(ctx, upsertPlayer,
		arg.ShortID,
		arg.PublicKey,
		arg.DisplayName,
		arg.InsertedAt,
		arg.UpdatedAt,
	)
	return scanPlayer(row)
}

const getPlayerByID = `SELECT ` + playerColumns + ` FROM player WHERE id = ?`

func (q *Queries) GetPlayerByID(ctx context.Context, id int64) (Player, error) {
	return scanPlayer(q.db.QueryRowContext(ctx, getPlayerByID, id))
}

const getPlayerByShortID = `SELECT ` + playerColumns + ` FROM player WHERE short_id = ?`

func (q *Queries) GetPlayerByShortID(ctx context.Context, shortID string) (Player, error) {
	return scanPlayer(q.db.QueryRowContext(ctx, getPlayerByShortID, shortID))
}

const getPlayerByPublicKey = `SELECT ` + playerColumns + ` FROM player WHERE public_key = ?`

func (q *Queries) GetPlayerByPublicKey(ctx context.Context, publicKey string) (Player, error) {
	return scanPlayer(q.db.QueryRowContext(ctx, getPlayerByPublicKey, publicKey))
}

const listRatedPlayers = `
SELECT ` + playerColumns + `
FROM player
WHERE rating IS NOT NULL
ORDER BY rating DESC, id`

func (q *Queries) ListRatedPlayers(ctx context.Context) ([]Player, error) {
	rows, err := q.db.QueryContext(ctx, listRatedPlayers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Player
	for rows.Next() {
		i, err := scanPlayer(rows)
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

// The cache columns are always copied from the newest snapshot, never
// written directly.
const refreshPlayerRating = `
UPDATE player SET
    (rating, deviation, volatility, rated_at) = (
        SELECT r.rating, r.deviation, r.volatility, r.inserted_at
        FROM rating r
        WHERE r.player_id = player.id
        ORDER BY r.inserted_at DESC, r.id DESC
        LIMIT 1
    ),
    updated_at = ?
WHERE id = ?`

type RefreshPlayerRatingParams struct {
	UpdatedAt time.Time
	ID        int64
}

func (q *Queries) RefreshPlayerRating(ctx context.Context, arg RefreshPlayerRatingParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, refreshPlayerRating, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listRatingCandidates = `
SELECT DISTINCT player_id FROM rating
UNION
SELECT p.player_id
FROM participant p
JOIN battle b ON b.id = p.battle_id
WHERE b.concluded = 1 AND b.concluded_at >= ? AND b.concluded_at < ?
  AND (SELECT COUNT(*) FROM participant c WHERE c.battle_id = b.id) = 2
ORDER BY 1`

type ListRatingCandidatesParams struct {
	From time.Time
	To   time.Time
}

func (q *Queries) ListRatingCandidates(ctx context.Context, arg ListRatingCandidatesParams) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listRatingCandidates, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var playerID int64
		if err := rows.Scan(&playerID); err != nil {
			return nil, err
		}
		items = append(items, playerID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
