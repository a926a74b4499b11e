package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/frostu8/ring-channel/internal/config"
	"github.com/frostu8/ring-channel/internal/database"
	"github.com/frostu8/ring-channel/internal/db"
	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/repository"
	"github.com/frostu8/ring-channel/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts, _ := newTestServerWithScheduler(t)
	return ts
}

func newTestServerWithScheduler(t *testing.T) (*httptest.Server, *service.PeriodScheduler) {
	t.Helper()

	log := zerolog.Nop()
	sqlDB, err := database.Open(filepath.Join(t.TempDir(), "server.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	cfg := &config.Config{
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
			DefaultBetWindow: time.Minute,
			StartingMobiums:  1000,
		},
	}

	queries := db.New(sqlDB)
	tx := repository.NewTxManager(sqlDB, queries, log)
	players := repository.NewPlayerRepository(sqlDB, queries, log)
	ratings := repository.NewRatingRepository(sqlDB, queries, log)
	periods := repository.NewPeriodRepository(sqlDB, queries, log)
	battles := repository.NewBattleRepository(sqlDB, queries, log)
	ledger := repository.NewLedgerRepository(sqlDB, queries, log)
	wagers := repository.NewWagerRepository(sqlDB, queries, log)

	aggregator := service.NewMatchupAggregator(battles, cfg, log)
	settlement := service.NewSettlementService(tx, battles, wagers, ledger, service.NopNotifier(), log)
	scheduler := service.NewPeriodScheduler(tx, periods, players, ratings, aggregator, service.NopNotifier(), cfg, log)

	srv := NewServer(
		service.NewPlayerService(players, cfg, log),
		service.NewRatingService(players, ratings, periods, aggregator, cfg, log),
		service.NewBattleService(tx, battles, players, settlement, cfg, log),
		service.NewWagerService(tx, battles, wagers, ledger, cfg, log),
		service.NewLedgerService(tx, ledger, cfg, log),
		settlement,
		scheduler,
	)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, scheduler
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestBattleLifecycle(t *testing.T) {
	ts := newTestServer(t)

	var red, blue domain.Player
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/players", map[string]string{
		"public_key":   strings.Repeat("a1", 32),
		"display_name": "Sonic",
	}, &red))
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/players", map[string]string{
		"public_key":   strings.Repeat("b2", 32),
		"display_name": "Shadow",
	}, &blue))

	var user domain.User
	require.Equal(t, http.StatusCreated, do(t, ts, http.MethodPost, "/users", map[string]string{"username": "amy"}, &user))
	assert.Equal(t, int64(1000), user.Mobiums)

	var battle domain.Battle
	require.Equal(t, http.StatusCreated, do(t, ts, http.MethodPost, "/battles", map[string]any{
		"level_name": "Green Hill",
		"participants": []map[string]any{
			{"player": red.ShortID, "team": 0},
			{"player": blue.ShortID, "team": 1},
		},
	}, &battle))
	require.Len(t, battle.Participants, 2)

	var wager domain.Wager
	path := fmt.Sprintf("/battles/%s/wagers/%d", battle.UUID, user.ID)
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPut, path, map[string]any{"victor": 0, "mobiums": 200}, &wager))
	assert.Equal(t, int64(200), wager.Mobiums)

	assert.Equal(t, http.StatusPaymentRequired, do(t, ts, http.MethodPut, path, map[string]any{"victor": 0, "mobiums": 5000}, nil))

	assert.Equal(t, http.StatusConflict, do(t, ts, http.MethodPost, "/battles/"+battle.UUID+"/settle", nil, nil))

	result := fmt.Sprintf("/battles/%s/participants/%s", battle.UUID, red.ShortID)
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPatch, result, map[string]any{"finish_time": 1234}, nil))

	var concluded struct {
		Battle     domain.Battle           `json:"battle"`
		Settlement domain.SettlementResult `json:"settlement"`
	}
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/battles/"+battle.UUID+"/conclude", nil, &concluded))
	assert.True(t, concluded.Battle.Concluded)
	assert.Equal(t, domain.Victor(domain.TeamRed), concluded.Settlement.Victor)
	require.Len(t, concluded.Settlement.Payouts, 1)
	assert.Equal(t, int64(200), concluded.Settlement.Payouts[0].Payout, "nobody backed blue, stake is refunded")

	assert.Equal(t, http.StatusConflict, do(t, ts, http.MethodPatch, result, map[string]any{"finish_time": 1}, nil))

	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, fmt.Sprintf("/users/%d", user.ID), nil, &user))
	assert.Equal(t, int64(1000), user.Mobiums)

	var entries []domain.LedgerEntry
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, fmt.Sprintf("/users/%d/ledger", user.ID), nil, &entries))
	assert.Len(t, entries, 3)
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown player", http.MethodGet, "/players/123456", nil, http.StatusNotFound},
		{"unknown battle", http.MethodGet, "/battles/nope", nil, http.StatusNotFound},
		{"malformed body", http.MethodPost, "/players", "{", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/users", `{"username":"x","admin":true}`, http.StatusBadRequest},
		{"bad user id", http.MethodGet, "/users/abc", nil, http.StatusBadRequest},
		{"invalid key", http.MethodPost, "/players", map[string]string{"public_key": "xyz", "display_name": "x"}, http.StatusBadRequest},
		{"no period", http.MethodGet, "/rating-periods/current", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(t, ts, tt.method, tt.path, tt.body, nil))
		})
	}
}

func TestRatingEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var player domain.Player
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/players", map[string]string{
		"public_key":   strings.Repeat("c3", 32),
		"display_name": "Tails",
	}, &player))

	var rating struct {
		Rating     float64 `json:"rating"`
		Deviation  float64 `json:"deviation"`
		Volatility float64 `json:"volatility"`
	}
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/players/"+player.ShortID+"/rating", nil, &rating))
	assert.Equal(t, 1500.0, rating.Rating)
	assert.Equal(t, 350.0, rating.Deviation)

	var closed domain.PeriodCloseResult
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/rating-periods/close", nil, &closed))
	assert.True(t, closed.Noop)
}

func TestClosePeriodByID(t *testing.T) {
	ts, scheduler := newTestServerWithScheduler(t)

	period, err := scheduler.EnsureOpenPeriod(context.Background())
	require.NoError(t, err)
	path := fmt.Sprintf("/rating-periods/%d/close", period.ID)

	var first, second domain.PeriodCloseResult
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, path, nil, &first))
	assert.Equal(t, period.ID, first.PeriodID)
	assert.False(t, first.AlreadyClosed)

	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, path, nil, &second))
	assert.True(t, second.AlreadyClosed)
	assert.Equal(t, first.NextPeriodID, second.NextPeriodID)

	// the fresh period is not due, so the plain trigger repeats the last close
	var current domain.PeriodCloseResult
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/rating-periods/close", nil, &current))
	assert.True(t, current.AlreadyClosed)
	assert.Equal(t, period.ID, current.PeriodID)

	var open domain.RatingPeriod
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/rating-periods/current", nil, &open))
	assert.Equal(t, first.NextPeriodID, open.ID)

	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodPost, "/rating-periods/99/close", nil, nil))
	assert.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodPost, "/rating-periods/abc/close", nil, nil))
}
