package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/frostu8/ring-channel/internal/glicko2"
)

type Team int64

const (
	TeamRed  Team = 0
	TeamBlue Team = 1
)

func (t Team) Valid() bool {
	return t == TeamRed || t == TeamBlue
}

// Victor is the winning team of a battle, or VictorVoid when no single team
// won.
type Victor int64

const VictorVoid Victor = -1

func (v Victor) IsVoid() bool {
	return v == VictorVoid
}

func (v Victor) String() string {
	if v.IsVoid() {
		return "void"
	}
	return strconv.FormatInt(int64(v), 10)
}

func (v Victor) MarshalJSON() ([]byte, error) {
	if v.IsVoid() {
		return json.Marshal("void")
	}
	return json.Marshal(int64(v))
}

func (v *Victor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "void" {
			return fmt.Errorf("unknown victor %q", s)
		}
		*v = VictorVoid
		return nil
	}
	var team int64
	if err := json.Unmarshal(data, &team); err != nil {
		return err
	}
	*v = Victor(team)
	return nil
}

type Position int

const (
	PositionDraw Position = 0
	PositionWin  Position = 1
	PositionLoss Position = 2
)

func (p Position) Score() float64 {
	switch p {
	case PositionWin:
		return glicko2.Win
	case PositionLoss:
		return glicko2.Loss
	default:
		return glicko2.Draw
	}
}

type PeriodStatus int64

const (
	PeriodOpen    PeriodStatus = 0
	PeriodClosing PeriodStatus = 1
	PeriodClosed  PeriodStatus = 2
)

func (s PeriodStatus) String() string {
	switch s {
	case PeriodOpen:
		return "open"
	case PeriodClosing:
		return "closing"
	case PeriodClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s PeriodStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *PeriodStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, status := range []PeriodStatus{PeriodOpen, PeriodClosing, PeriodClosed} {
		if status.String() == name {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown period status %q", name)
}

type Player struct {
	ID          int64          `json:"-"`
	ShortID     string         `json:"id"`
	PublicKey   string         `json:"public_key"`
	DisplayName string         `json:"display_name"`
	Rating      glicko2.Rating `json:"rating"`
	Rated       bool           `json:"rated"`
	RatedAt     *time.Time     `json:"rated_at,omitempty"`
	CreatedAt   time.Time      `json:"inserted_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type RatingSnapshot struct {
	ID        int64          `json:"-"`
	PlayerID  int64          `json:"-"`
	PeriodID  int64          `json:"period_id"`
	Rating    glicko2.Rating `json:"rating"`
	CreatedAt time.Time      `json:"inserted_at"`
}

type RatingPeriod struct {
	ID        int64        `json:"id"`
	Status    PeriodStatus `json:"status"`
	StartedAt time.Time    `json:"started_at"`
	EndsAt    *time.Time   `json:"ends_at,omitempty"`
	ClosedAt  *time.Time   `json:"closed_at,omitempty"`
}

// Matchup is one eligible game a player played during a rating period.
type Matchup struct {
	BattleID          int64
	OpponentID        int64
	Opponent          glicko2.Rating
	Position          Position
	NoContest         bool
	OpponentNoContest bool
}

type Battle struct {
	ID           int64         `json:"-"`
	UUID         string        `json:"id"`
	LevelName    string        `json:"level_name"`
	Concluded    bool          `json:"concluded"`
	ConcludedAt  *time.Time    `json:"concluded_at,omitempty"`
	ClosedAt     time.Time     `json:"closed_at"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"inserted_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type Participant struct {
	PlayerID   int64  `json:"-"`
	ShortID    string `json:"player"`
	Team       Team   `json:"team"`
	FinishTime *int64 `json:"finish_time"`
	NoContest  bool   `json:"no_contest"`
}

type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"display_name"`
	Mobiums       int64     `json:"mobiums"`
	MobiumsGained int64     `json:"mobiums_gained"`
	MobiumsLost   int64     `json:"mobiums_lost"`
	CreatedAt     time.Time `json:"inserted_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Wager struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	BattleID  int64     `json:"-"`
	Victor    Team      `json:"victor"`
	Mobiums   int64     `json:"mobiums"`
	Settled   bool      `json:"settled"`
	Payout    *int64    `json:"payout,omitempty"`
	CreatedAt time.Time `json:"inserted_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LedgerEntry struct {
	ID            int64     `json:"id"`
	TransactionID int64     `json:"transaction_id"`
	UserID        int64     `json:"user_id"`
	Amount        int64     `json:"amount"`
	BalanceAfter  int64     `json:"balance_after"`
	CreatedAt     time.Time `json:"inserted_at"`
}

// Payout is the resolution of a single wager.
type Payout struct {
	WagerID int64 `json:"wager_id"`
	UserID  int64 `json:"user_id"`
	Victor  Team  `json:"victor"`
	Stake   int64 `json:"stake"`
	Payout  int64 `json:"payout"`
	// Delta is the net balance change of the wager, payout minus stake.
	Delta int64 `json:"delta"`
}

type SettlementResult struct {
	BattleID       string    `json:"battle_id"`
	Victor         Victor    `json:"victor"`
	AlreadySettled bool      `json:"already_settled"`
	Payouts        []Payout  `json:"payouts"`
	SettledAt      time.Time `json:"settled_at"`
}

type PeriodCloseResult struct {
	PeriodID     int64   `json:"period_id,omitempty"`
	NextPeriodID int64   `json:"next_period_id,omitempty"`
	Rated        int     `json:"rated"`
	Skipped      []int64 `json:"skipped,omitempty"`
	// AlreadyClosed is set when the period had been closed by an earlier call.
	AlreadyClosed bool `json:"already_closed"`
	// Noop is set when there was no period to close.
	Noop bool `json:"noop"`
}
