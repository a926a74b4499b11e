// Command ratingdump writes the current leaderboard as CSV.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/frostu8/ring-channel/internal/config"
	"github.com/frostu8/ring-channel/internal/database"
	"github.com/frostu8/ring-channel/internal/db"
	"github.com/frostu8/ring-channel/internal/logger"
	"github.com/frostu8/ring-channel/internal/repository"
	"github.com/frostu8/ring-channel/internal/service"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	log := logger.New().Output(os.Stderr)

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	dbPath := pflag.StringP("db", "d", cfg.DBPath, "path to the sqlite database")
	outPath := pflag.StringP("out", "o", "", "file to write, stdout when empty")
	pflag.Parse()

	if err := run(context.Background(), cfg, log, *dbPath, *outPath); err != nil {
		log.Error().Err(err).Msg("failed to export ratings")
		os.Exit(1)
	}
}

// run owns every resource it opens, so they are closed before main exits.
func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, dbPath, outPath string) (err error) {
	sqlDB, err := database.Open(dbPath, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer sqlDB.Close()

	queries := db.New(sqlDB)
	exporter := service.NewRatingExporter(
		repository.NewPlayerRepository(sqlDB, queries, log),
		service.NewMatchupAggregator(repository.NewBattleRepository(sqlDB, queries, log), cfg, log),
		log,
	)

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", outPath, err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close %s: %w", outPath, cerr)
			}
		}()
		out = f
	}

	return exporter.Export(ctx, out)
}
