package db

import (
	"context"
	"time"
)

const ratingPeriodColumns = `id, status, started_at, ends_at, closed_at, inserted_at`

func scanRatingPeriod(row interface{ Scan(...interface{}) error }) (RatingPeriod, error) {
	var i RatingPeriod
	err := row.Scan(
		&i.ID,
		&i.Status,
		&i.StartedAt,
		&i.EndsAt,
		&i.ClosedAt,
		&i.InsertedAt,
	)
	return i, err
}

const createRatingPeriod = `
INSERT INTO rating_period (status, started_at, inserted_at)
VALUES (0, ?, ?)
RETURNING ` + ratingPeriodColumns

type CreateRatingPeriodParams struct {
	StartedAt  time.Time
	InsertedAt time.Time
}

func (q *Queries) CreateRatingPeriod(ctx context.Context, arg CreateRatingPeriodParams) (RatingPeriod, error) {
	return scanRatingPeriod(q.db.QueryRowContext(ctx, createRatingPeriod, arg.StartedAt, arg.InsertedAt))
}

const getRatingPeriod = `SELECT ` + ratingPeriodColumns + ` FROM rating_period WHERE id = ?`

func (q *Queries) GetRatingPeriod(ctx context.Context, id int64) (RatingPeriod, error) {
	return scanRatingPeriod(q.db.QueryRowContext(ctx, getRatingPeriod, id))
}

const getRatingPeriodByStatus = `
SELECT ` + ratingPeriodColumns + `
FROM rating_period
WHERE status = ?
ORDER BY id DESC
LIMIT 1`

func (q *Queries) GetRatingPeriodByStatus(ctx context.Context, status int64) (RatingPeriod, error) {
	return scanRatingPeriod(q.db.QueryRowContext(ctx, getRatingPeriodByStatus, status))
}

const getNextRatingPeriod = `
SELECT ` + ratingPeriodColumns + `
FROM rating_period
WHERE id > ?
ORDER BY id
LIMIT 1`

func (q *Queries) GetNextRatingPeriod(ctx context.Context, id int64) (RatingPeriod, error) {
	return scanRatingPeriod(q.db.QueryRowContext(ctx, getNextRatingPeriod, id))
}

const markRatingPeriodClosing = `
UPDATE rating_period
SET status = 1, ends_at = ?
WHERE id = ? AND status = 0`

type MarkRatingPeriodClosingParams struct {
	EndsAt time.Time
	ID     int64
}

func (q *Queries) MarkRatingPeriodClosing(ctx context.Context, arg MarkRatingPeriodClosingParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markRatingPeriodClosing, arg.EndsAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markRatingPeriodClosed = `
UPDATE rating_period
SET status = 2, closed_at = ?
WHERE id = ? AND status = 1`

type MarkRatingPeriodClosedParams struct {
	ClosedAt time.Time
	ID       int64
}

func (q *Queries) MarkRatingPeriodClosed(ctx context.Context, arg MarkRatingPeriodClosedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markRatingPeriodClosed, arg.ClosedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const ratingColumns = `id, player_id, period_id, rating, deviation, volatility, inserted_at`

func scanRating(row interface{ Scan(...interface{}) error }) (Rating, error) {
	var i Rating
	err := row.Scan(
		&i.ID,
		&i.PlayerID,
		&i.PeriodID,
		&i.Rating,
		&i.Deviation,
		&i.Volatility,
		&i.InsertedAt,
	)
	return i, err
}

const insertRating = `
INSERT INTO rating (player_id, period_id, rating, deviation, volatility, inserted_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + ratingColumns

type InsertRatingParams struct {
	PlayerID   int64
	PeriodID   int64
	Rating     float64
	Deviation  float64
	Volatility float64
	InsertedAt time.Time
}

func (q *Queries) InsertRating(ctx context.Context, arg InsertRatingParams) (Rating, error) {
	row := q.db.QueryRowContext(ctx, insertRating,
		arg.PlayerID,
		arg.PeriodID,
		arg.Rating,
		arg.Deviation,
		arg.Volatility,
		arg.InsertedAt,
	)
	return scanRating(row)
}

const getLatestRating = `
SELECT ` + ratingColumns + `
FROM rating
WHERE player_id = ?
ORDER BY inserted_at DESC, id DESC
LIMIT 1`

func (q *Queries) GetLatestRating(ctx context.Context, playerID int64) (Rating, error) {
	return scanRating(q.db.QueryRowContext(ctx, getLatestRating, playerID))
}

const listRatingsByPeriod = `
SELECT ` + ratingColumns + `
FROM rating
WHERE period_id = ?
ORDER BY player_id`

func (q *Queries) ListRatingsByPeriod(ctx context.Context, periodID int64) ([]Rating, error) {
	return q.listRatings(ctx, listRatingsByPeriod, periodID)
}

const listRatingsByPlayer = `
SELECT ` + ratingColumns + `
FROM rating
WHERE player_id = ?
ORDER BY inserted_at DESC, id DESC
LIMIT ?`

type ListRatingsByPlayerParams struct {
	PlayerID int64
	Limit    int64
}

func (q *Queries) ListRatingsByPlayer(ctx context.Context, arg ListRatingsByPlayerParams) ([]Rating, error) {
	return q.listRatings(ctx, listRatingsByPlayer, arg.PlayerID, arg.Limit)
}

func (q *Queries) listRatings(ctx context.Context, query string, args ...interface{}) ([]Rating, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Rating
	for rows.Next() {
		i, err := scanRating(rows)
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
