package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/frostu8/ring-channel/internal/config"
	"github.com/frostu8/ring-channel/internal/database"
	"github.com/frostu8/ring-channel/internal/db"
	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu          sync.Mutex
	settlements []*domain.SettlementResult
	periods     []*domain.PeriodCloseResult
}

func (n *recordingNotifier) SettlementCompleted(_ context.Context, result *domain.SettlementResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.settlements = append(n.settlements, result)
}

func (n *recordingNotifier) PeriodClosed(_ context.Context, result *domain.PeriodCloseResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.periods = append(n.periods, result)
}

type testEnv struct {
	cfg      *config.Config
	clock    *fakeClock
	notifier *recordingNotifier

	playerRepo *repository.PlayerRepository
	ratingRepo *repository.RatingRepository
	periodRepo *repository.PeriodRepository
	ledgerRepo *repository.LedgerRepository
	wagerRepo  *repository.WagerRepository

	players    *PlayerService
	ratings    *RatingService
	battles    *BattleService
	wagers     *WagerService
	ledger     *LedgerService
	settlement *SettlementService
	scheduler  *PeriodScheduler
	aggregator *MatchupAggregator
}

func testConfig() *config.Config {
	return &config.Config{
		Rating: config.RatingConfig{
			Period:            24 * time.Hour,
			CheckInterval:     time.Minute,
			Tau:               0.5,
			DefaultRating:     1500,
			DefaultDeviation:  350,
			DefaultVolatility: 0.06,
			MaxDeviation:      350,
		},
		Wager: config.WagerConfig{
			Grace:            3 * time.Second,
			DefaultBetWindow: 30 * time.Second,
			StartingMobiums:  1000,
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := zerolog.Nop()
	sqlDB, err := database.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	cfg := testConfig()
	queries := db.New(sqlDB)
	clock := &fakeClock{now: epoch}
	notifier := &recordingNotifier{}

	tx := repository.NewTxManager(sqlDB, queries, log)
	playerRepo := repository.NewPlayerRepository(sqlDB, queries, log)
	ratingRepo := repository.NewRatingRepository(sqlDB, queries, log)
	periodRepo := repository.NewPeriodRepository(sqlDB, queries, log)
	battleRepo := repository.NewBattleRepository(sqlDB, queries, log)
	ledgerRepo := repository.NewLedgerRepository(sqlDB, queries, log)
	wagerRepo := repository.NewWagerRepository(sqlDB, queries, log)

	aggregator := NewMatchupAggregator(battleRepo, cfg, log)
	settlement := NewSettlementService(tx, battleRepo, wagerRepo, ledgerRepo, notifier, log)

	env := &testEnv{
		cfg:        cfg,
		clock:      clock,
		notifier:   notifier,
		playerRepo: playerRepo,
		ratingRepo: ratingRepo,
		periodRepo: periodRepo,
		ledgerRepo: ledgerRepo,
		wagerRepo:  wagerRepo,
		players:    NewPlayerService(playerRepo, cfg, log),
		ratings:    NewRatingService(playerRepo, ratingRepo, periodRepo, aggregator, cfg, log),
		battles:    NewBattleService(tx, battleRepo, playerRepo, settlement, cfg, log),
		wagers:     NewWagerService(tx, battleRepo, wagerRepo, ledgerRepo, cfg, log),
		ledger:     NewLedgerService(tx, ledgerRepo, cfg, log),
		settlement: settlement,
		scheduler:  NewPeriodScheduler(tx, periodRepo, playerRepo, ratingRepo, aggregator, notifier, cfg, log),
		aggregator: aggregator,
	}

	env.players.now = clock.Now
	env.ratings.now = clock.Now
	env.battles.now = clock.Now
	env.wagers.now = clock.Now
	env.ledger.now = clock.Now
	env.settlement.now = clock.Now
	env.scheduler.now = clock.Now

	return env
}

var keySeq int

func (e *testEnv) player(t *testing.T, name string) *domain.Player {
	t.Helper()
	keySeq++
	p, err := e.players.RegisterPlayer(context.Background(), fmt.Sprintf("%064x", keySeq), name)
	require.NoError(t, err)
	return p
}

func (e *testEnv) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u, err := e.ledger.CreateUser(context.Background(), name, "")
	require.NoError(t, err)
	return u
}

func (e *testEnv) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	u, err := e.ledger.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Mobiums
}

// duel creates a battle between red and blue.
func (e *testEnv) duel(t *testing.T, red, blue *domain.Player) *domain.Battle {
	t.Helper()
	b, err := e.battles.CreateBattle(context.Background(), "Green Hills", nil, []Entrant{
		{Player: red.ShortID, Team: domain.TeamRed},
		{Player: blue.ShortID, Team: domain.TeamBlue},
	})
	require.NoError(t, err)
	return b
}

func (e *testEnv) finish(t *testing.T, battle *domain.Battle, p *domain.Player, tics int64) {
	t.Helper()
	_, err := e.battles.ReportResult(context.Background(), battle.UUID, p.ShortID, &tics, false)
	require.NoError(t, err)
}

// conclude ends the battle and returns the settlement that came with it.
func (e *testEnv) conclude(t *testing.T, battle *domain.Battle) *domain.SettlementResult {
	t.Helper()
	_, result, err := e.battles.Conclude(context.Background(), battle.UUID)
	require.NoError(t, err)
	return result
}

// play runs a full duel that winner wins.
func (e *testEnv) play(t *testing.T, winner, loser *domain.Player) {
	t.Helper()
	b := e.duel(t, winner, loser)
	e.finish(t, b, winner, 1000)
	e.finish(t, b, loser, 1200)
	e.conclude(t, b)
}

// closeNow closes the open period without waiting for it to be due.
func (e *testEnv) closeNow(t *testing.T) *domain.PeriodCloseResult {
	t.Helper()
	current, err := e.scheduler.CurrentPeriod(context.Background())
	require.NoError(t, err)
	result, err := e.scheduler.ClosePeriod(context.Background(), current.ID)
	require.NoError(t, err)
	return result
}
