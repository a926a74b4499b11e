package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath     string
	ServerPort string
	LogLevel   string
	WebhookURL string

	Rating RatingConfig
	Wager  WagerConfig
}

type RatingConfig struct {
	// Period is how long a rating period stays open.
	Period        time.Duration
	CheckInterval time.Duration
	Tau           float64

	DefaultRating     float64
	DefaultDeviation  float64
	DefaultVolatility float64
	MaxDeviation      float64
}

type WagerConfig struct {
	// Grace is how long after a battle closes wagers are still accepted.
	Grace            time.Duration
	DefaultBetWindow time.Duration
	StartingMobiums  int64
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:     getEnv("DB_PATH", "ring.db"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		WebhookURL: getEnv("WEBHOOK_URL", ""),
	}

	var err error
	if cfg.Rating, err = loadRating(); err != nil {
		return nil, err
	}
	if cfg.Wager, err = loadWager(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Dur("rating_period", cfg.Rating.Period).
		Float64("rating_tau", cfg.Rating.Tau).
		Dur("wager_grace", cfg.Wager.Grace).
		Bool("webhook", cfg.WebhookURL != "").
		Msg("configuration loaded")

	return cfg, nil
}

func loadRating() (RatingConfig, error) {
	var (
		rc  RatingConfig
		err error
	)
	if rc.Period, err = getEnvDuration("RATING_PERIOD", 24*time.Hour); err != nil {
		return rc, err
	}
	if rc.CheckInterval, err = getEnvDuration("RATING_CHECK_INTERVAL", time.Minute); err != nil {
		return rc, err
	}
	if rc.Tau, err = getEnvFloat("RATING_TAU", 0.5); err != nil {
		return rc, err
	}
	if rc.DefaultRating, err = getEnvFloat("RATING_DEFAULT", 1500); err != nil {
		return rc, err
	}
	if rc.DefaultDeviation, err = getEnvFloat("DEVIATION_DEFAULT", 350); err != nil {
		return rc, err
	}
	if rc.DefaultVolatility, err = getEnvFloat("VOLATILITY_DEFAULT", 0.06); err != nil {
		return rc, err
	}
	if rc.MaxDeviation, err = getEnvFloat("DEVIATION_MAX", rc.DefaultDeviation); err != nil {
		return rc, err
	}
	return rc, nil
}

func loadWager() (WagerConfig, error) {
	var (
		wc  WagerConfig
		err error
	)
	if wc.Grace, err = getEnvDuration("WAGER_GRACE", 3*time.Second); err != nil {
		return wc, err
	}
	if wc.DefaultBetWindow, err = getEnvDuration("DEFAULT_BET_WINDOW", 30*time.Second); err != nil {
		return wc, err
	}
	if wc.StartingMobiums, err = getEnvInt("STARTING_MOBIUMS", 1000); err != nil {
		return wc, err
	}
	return wc, nil
}

func (c *Config) Validate() error {
	if c.Rating.Period <= 0 {
		return fmt.Errorf("RATING_PERIOD must be positive")
	}
	if c.Rating.CheckInterval <= 0 {
		return fmt.Errorf("RATING_CHECK_INTERVAL must be positive")
	}
	if c.Rating.Tau <= 0 {
		return fmt.Errorf("RATING_TAU must be positive")
	}
	if c.Rating.DefaultDeviation <= 0 || c.Rating.DefaultVolatility <= 0 {
		return fmt.Errorf("DEVIATION_DEFAULT and VOLATILITY_DEFAULT must be positive")
	}
	if c.Rating.MaxDeviation < c.Rating.DefaultDeviation {
		return fmt.Errorf("DEVIATION_MAX must not be below DEVIATION_DEFAULT")
	}
	if c.Wager.Grace < 0 {
		return fmt.Errorf("WAGER_GRACE must not be negative")
	}
	if c.Wager.StartingMobiums < 0 {
		return fmt.Errorf("STARTING_MOBIUMS must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvInt(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

var Module = fx.Provide(Load)
