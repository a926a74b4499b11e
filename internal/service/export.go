package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/repository"

	"github.com/rs/zerolog"
)

var exportHeader = []string{"id", "name", "matches", "win_rate", "rating", "deviation", "volatility"}

// RatingExporter writes the leaderboard of rated players as CSV.
type RatingExporter struct {
	players    *repository.PlayerRepository
	aggregator *MatchupAggregator
	logger     zerolog.Logger
}

func NewRatingExporter(players *repository.PlayerRepository, aggregator *MatchupAggregator, logger zerolog.Logger) *RatingExporter {
	return &RatingExporter{players: players, aggregator: aggregator, logger: logger}
}

func (e *RatingExporter) Export(ctx context.Context, w io.Writer) error {
	players, err := e.players.ListRated(ctx)
	if err != nil {
		return err
	}

	out := csv.NewWriter(w)
	if err := out.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	from, to := time.Unix(0, 0).UTC(), time.Now().UTC().Add(time.Hour)
	for _, p := range players {
		matchups, err := e.aggregator.FindMatchups(ctx, p.ID, from, to)
		if err != nil {
			return err
		}

		var wins int
		for _, m := range matchups {
			if m.Position == domain.PositionWin {
				wins++
			}
		}
		winRate := 0.0
		if len(matchups) > 0 {
			winRate = float64(wins) / float64(len(matchups))
		}

		record := []string{
			p.ShortID,
			p.DisplayName,
			strconv.Itoa(len(matchups)),
			strconv.FormatFloat(winRate, 'f', 3, 64),
			strconv.FormatFloat(p.Rating.Rating, 'f', 2, 64),
			strconv.FormatFloat(p.Rating.Deviation, 'f', 2, 64),
			strconv.FormatFloat(p.Rating.Volatility, 'f', 6, 64),
		}
		if err := out.Write(record); err != nil {
			return fmt.Errorf("failed to write player %s: %w", p.ShortID, err)
		}
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	e.logger.Info().Int("players", len(players)).Msg("ratings exported")
	return nil
}
