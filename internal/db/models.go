package db

import (
	"time"
)

type Battle struct {
	ID          int64
	Uuid        string
	LevelName   string
	Concluded   bool
	ConcludedAt *time.Time
	ClosedAt    time.Time
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

type LedgerEntry struct {
	ID            int64
	TransactionID int64
	UserID        int64
	Amount        int64
	BalanceAfter  int64
	InsertedAt    time.Time
}

type LedgerTransaction struct {
	ID         int64
	Reference  string
	Kind       string
	BattleID   *int64
	Victor     *int64
	InsertedAt time.Time
}

type Participant struct {
	ID         int64
	BattleID   int64
	PlayerID   int64
	Team       int64
	FinishTime *int64
	NoContest  bool
}

type Player struct {
	ID          int64
	ShortID     string
	PublicKey   string
	DisplayName string
	Rating      *float64
	Deviation   *float64
	Volatility  *float64
	RatedAt     *time.Time
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

type Rating struct {
	ID         int64
	PlayerID   int64
	PeriodID   int64
	Rating     float64
	Deviation  float64
	Volatility float64
	InsertedAt time.Time
}

type RatingPeriod struct {
	ID         int64
	Status     int64
	StartedAt  time.Time
	EndsAt     *time.Time
	ClosedAt   *time.Time
	InsertedAt time.Time
}

type User struct {
	ID            int64
	Username      string
	DisplayName   string
	Mobiums       int64
	MobiumsGained int64
	MobiumsLost   int64
	InsertedAt    time.Time
	UpdatedAt     time.Time
}

type Wager struct {
	ID            int64
	UserID        int64
	BattleID      int64
	Victor        int64
	Mobiums       int64
	TransactionID *int64
	Payout        *int64
	InsertedAt    time.Time
	UpdatedAt     time.Time
}
