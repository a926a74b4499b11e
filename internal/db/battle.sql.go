package db

import (
	"context"
	"time"
)

const battleColumns = `id, uuid, level_name, concluded, concluded_at, closed_at, inserted_at, updated_at`

func scanBattle(row interface{ Scan(...interface{}) error }) (Battle, error) {
	var i Battle
	err := row.Scan(
		&i.ID,
		&i.Uuid,
		&i.LevelName,
		&i.Concluded,
		&i.ConcludedAt,
		&i.ClosedAt,
		&i.InsertedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createBattle = `
INSERT INTO battle (uuid, level_name, closed_at, inserted_at, updated_at)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + battleColumns

type CreateBattleParams struct {
	Uuid       string
	LevelName  string
	ClosedAt   time.Time
	InsertedAt time.Time
	UpdatedAt  time.Time
}

func (q *Queries) CreateBattle(ctx context.Context, arg CreateBattleParams) (Battle, error) {
	row := q.db.QueryRowContext(ctx, createBattle,
		arg.Uuid,
		arg.LevelName,
		arg.ClosedAt,
		arg.InsertedAt,
		arg.UpdatedAt,
	)
	return scanBattle(row)
}

const getBattleByUUID = `SELECT ` + battleColumns + ` FROM battle WHERE uuid = ?`

func (q *Queries) GetBattleByUUID(ctx context.Context, uuid string) (Battle, error) {
	return scanBattle(q.db.QueryRowContext(ctx, getBattleByUUID, uuid))
}

const concludeBattle = `
UPDATE battle
SET concluded = 1, concluded_at = ?, updated_at = ?
WHERE id = ? AND concluded = 0`

type ConcludeBattleParams struct {
	ConcludedAt time.Time
	UpdatedAt   time.Time
	ID          int64
}

func (q *Queries) ConcludeBattle(ctx context.Context, arg ConcludeBattleParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, concludeBattle, arg.ConcludedAt, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const participantColumns = `id, battle_id, player_id, team, finish_time, no_contest`

func scanParticipant(row interface{ Scan(...interface{}) error }) (Participant, error) {
	var i Participant
	err := row.Scan(
		&i.ID,
		&i.BattleID,
		&i.PlayerID,
		&i.Team,
		&i.FinishTime,
		&i.NoContest,
	)
	return i, err
}

const insertParticipant = `
INSERT INTO participant (battle_id, player_id, team)
VALUES (?, ?, ?)
RETURNING ` + participantColumns

type InsertParticipantParams struct {
	BattleID int64
	PlayerID int64
	Team     int64
}

func (q *Queries) InsertParticipant(ctx context.Context, arg InsertParticipantParams) (Participant, error) {
	return scanParticipant(q.db.QueryRowContext(ctx, insertParticipant, arg.BattleID, arg.PlayerID, arg.Team))
}

const updateParticipantResult = `
UPDATE participant
SET finish_time = ?, no_contest = ?
WHERE battle_id = ? AND player_id = ?
RETURNING ` + participantColumns

type UpdateParticipantResultParams struct {
	FinishTime *int64
	NoContest  bool
	BattleID   int64
	PlayerID   int64
}

func (q *Queries) UpdateParticipantResult(ctx context.Context, arg UpdateParticipantResultParams) (Participant, error) {
	row := q.db.QueryRowContext(ctx, updateParticipantResult,
		arg.FinishTime,
		arg.NoContest,
		arg.BattleID,
		arg.PlayerID,
	)
	return scanParticipant(row)
}

const listParticipants = `
SELECT p.id, p.battle_id, p.player_id, p.team, p.finish_time, p.no_contest, pl.short_id
FROM participant p
JOIN player pl ON pl.id = p.player_id
WHERE p.battle_id = ?
ORDER BY p.id`

type ListParticipantsRow struct {
	Participant
	ShortID string
}

func (q *Queries) ListParticipants(ctx context.Context, battleID int64) ([]ListParticipantsRow, error) {
	rows, err := q.db.QueryContext(ctx, listParticipants, battleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListParticipantsRow
	for rows.Next() {
		var i ListParticipantsRow
		if err := rows.Scan(
			&i.ID,
			&i.BattleID,
			&i.PlayerID,
			&i.Team,
			&i.FinishTime,
			&i.NoContest,
			&i.ShortID,
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
