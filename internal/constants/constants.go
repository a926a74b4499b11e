package constants

import "time"

const (
	DatabaseTimeout     = 5 * time.Second
	RequestTimeout      = 30 * time.Second
	SettlementTimeout   = 15 * time.Second
	PeriodCloseTimeout  = 2 * time.Minute
	NotificationTimeout = 10 * time.Second
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBusyTimeoutMS   = 5000
)

// Retries for SQLITE_BUSY and SQLITE_LOCKED.
const (
	DBRetryBase = 10 * time.Millisecond
	DBRetryMax  = 8
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// RatingWorkers bounds concurrent Glicko-2 computations during a period close.
	RatingWorkers      = 8
	RatingHistoryLimit = 50
	LedgerHistoryLimit = 100
)

const (
	ShortIDAlphabet = "0123456789"
	ShortIDLength   = 6
	ShortIDAttempts = 5
	PublicKeyLength = 64
)
