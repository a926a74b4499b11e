package db

import (
	"context"
	"time"
)

// Opponent ratings are the latest snapshot inserted no later than the
// battle's conclusion. Battles without exactly two participants never match.
const findMatchups = `
SELECT
    b.id,
    me.finish_time,
    me.no_contest,
    opp.player_id,
    opp.finish_time,
    opp.no_contest,
    (SELECT r.rating FROM rating r
        WHERE r.player_id = opp.player_id AND r.inserted_at <= b.concluded_at
        ORDER BY r.inserted_at DESC, r.id DESC LIMIT 1),
    (SELECT r.deviation FROM rating r
        WHERE r.player_id = opp.player_id AND r.inserted_at <= b.concluded_at
        ORDER BY r.inserted_at DESC, r.id DESC LIMIT 1),
    (SELECT r.volatility FROM rating r
        WHERE r.player_id = opp.player_id AND r.inserted_at <= b.concluded_at
        ORDER BY r.inserted_at DESC, r.id DESC LIMIT 1)
FROM battle b
JOIN participant me ON me.battle_id = b.id AND me.player_id = ?
JOIN participant opp ON opp.battle_id = b.id AND opp.player_id != me.player_id
WHERE b.concluded = 1
    AND b.concluded_at >= ?
    AND b.concluded_at < ?
    AND (SELECT COUNT(*) FROM participant c WHERE c.battle_id = b.id) = 2
ORDER BY b.inserted_at, b.id`

type FindMatchupsParams struct {
	PlayerID int64
	From     time.Time
	To       time.Time
}

type FindMatchupsRow struct {
	BattleID           int64
	FinishTime         *int64
	NoContest          bool
	OpponentID         int64
	OpponentFinishTime *int64
	OpponentNoContest  bool
	OpponentRating     *float64
	OpponentDeviation  *float64
	OpponentVolatility *float64
}

func (q *Queries) FindMatchups(ctx context.Context, arg FindMatchupsParams) ([]FindMatchupsRow, error) {
	rows, err := q.db.QueryContext(ctx, findMatchups, arg.PlayerID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FindMatchupsRow
	for rows.Next() {
		var i FindMatchupsRow
		if err := rows.Scan(
			&i.BattleID,
			&i.FinishTime,
			&i.NoContest,
			&i.OpponentID,
			&i.OpponentFinishTime,
			&i.OpponentNoContest,
			&i.OpponentRating,
			&i.OpponentDeviation,
			&i.OpponentVolatility,
		); err != nil {
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
