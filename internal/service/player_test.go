package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/frostu8/ring-channel/internal/constants"
	"github.com/frostu8/ring-channel/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPlayer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key := strings.Repeat("ab", 32)
	p, err := env.players.RegisterPlayer(ctx, strings.ToUpper(key), "  Sonic ")
	require.NoError(t, err)
	assert.Len(t, p.ShortID, constants.ShortIDLength)
	assert.Equal(t, key, p.PublicKey)
	assert.Equal(t, "Sonic", p.DisplayName)
	assert.False(t, p.Rated)
	assert.Equal(t, 1500.0, p.Rating.Rating)

	renamed, err := env.players.RegisterPlayer(ctx, key, "Super Sonic")
	require.NoError(t, err)
	assert.Equal(t, p.ID, renamed.ID)
	assert.Equal(t, p.ShortID, renamed.ShortID)
	assert.Equal(t, "Super Sonic", renamed.DisplayName)

	got, err := env.players.GetPlayer(ctx, p.ShortID)
	require.NoError(t, err)
	assert.Equal(t, "Super Sonic", got.DisplayName)

	_, err = env.players.GetPlayer(ctx, "000000x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegisterPlayerValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		key  string
		disp string
	}{
		{"short key", "abcd", "Tails"},
		{"not hex", strings.Repeat("zz", 32), "Tails"},
		{"blank name", strings.Repeat("01", 32), "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.players.RegisterPlayer(context.Background(), tt.key, tt.disp)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.ledger.CreateUser(ctx, "knuckles", "")
	require.NoError(t, err)
	assert.Equal(t, "knuckles", u.DisplayName)
	assert.Equal(t, env.cfg.Wager.StartingMobiums, u.Mobiums)

	entries, err := env.ledger.History(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, env.cfg.Wager.StartingMobiums, entries[0].Amount)
	assert.Equal(t, env.cfg.Wager.StartingMobiums, entries[0].BalanceAfter)

	_, err = env.ledger.CreateUser(ctx, "knuckles", "Knux")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = env.ledger.CreateUser(ctx, " ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.ledger.History(ctx, 4242)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRatingExport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.scheduler.EnsureOpenPeriod(ctx)
	require.NoError(t, err)

	alice := env.player(t, "alice")
	bob := env.player(t, "bob")
	env.player(t, "unrated")

	env.play(t, alice, bob)
	env.play(t, alice, bob)
	env.play(t, bob, alice)
	env.clock.Advance(env.cfg.Rating.Period)
	_, err = env.scheduler.CloseCurrentPeriod(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	exporter := NewRatingExporter(env.playerRepo, env.aggregator, zerolog.Nop())
	require.NoError(t, exporter.Export(ctx, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header and the two rated players")
	assert.Equal(t, exportHeader, records[0])

	byID := make(map[string][]string)
	for _, r := range records[1:] {
		byID[r[0]] = r
	}
	require.Contains(t, byID, alice.ShortID)
	assert.Equal(t, "alice", byID[alice.ShortID][1])
	assert.Equal(t, "3", byID[alice.ShortID][2])
	assert.Equal(t, "0.667", byID[alice.ShortID][3])
	assert.Equal(t, "0.333", byID[bob.ShortID][3])
}
