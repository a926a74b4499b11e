package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "ring.db", cfg.DBPath)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 24*time.Hour, cfg.Rating.Period)
	assert.Equal(t, 0.5, cfg.Rating.Tau)
	assert.Equal(t, 1500.0, cfg.Rating.DefaultRating)
	assert.Equal(t, 350.0, cfg.Rating.DefaultDeviation)
	assert.Equal(t, 0.06, cfg.Rating.DefaultVolatility)
	assert.Equal(t, 350.0, cfg.Rating.MaxDeviation)
	assert.Equal(t, 3*time.Second, cfg.Wager.Grace)
	assert.Equal(t, int64(1000), cfg.Wager.StartingMobiums)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RATING_PERIOD", "1h")
	t.Setenv("RATING_TAU", "0.3")
	t.Setenv("DEVIATION_MAX", "500")
	t.Setenv("STARTING_MOBIUMS", "250")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.Rating.Period)
	assert.Equal(t, 0.3, cfg.Rating.Tau)
	assert.Equal(t, 500.0, cfg.Rating.MaxDeviation)
	assert.Equal(t, int64(250), cfg.Wager.StartingMobiums)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unparseable duration", key: "RATING_PERIOD", value: "daily"},
		{name: "negative period", key: "RATING_PERIOD", value: "-1h"},
		{name: "unparseable tau", key: "RATING_TAU", value: "half"},
		{name: "ceiling below default", key: "DEVIATION_MAX", value: "100"},
		{name: "negative grant", key: "STARTING_MOBIUMS", value: "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load(zerolog.Nop())
			assert.Error(t, err)
		})
	}
}
