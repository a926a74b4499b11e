package service

import (
	"context"
	"fmt"
	"time"

	"github.com/frostu8/ring-channel/internal/config"
	"github.com/frostu8/ring-channel/internal/db"
	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/glicko2"
	"github.com/frostu8/ring-channel/internal/repository"

	"github.com/rs/zerolog"
)

type MatchupAggregator struct {
	battles  *repository.BattleRepository
	defaults glicko2.Rating
	logger   zerolog.Logger
}

func NewMatchupAggregator(battles *repository.BattleRepository, cfg *config.Config, logger zerolog.Logger) *MatchupAggregator {
	return &MatchupAggregator{
		battles:  battles,
		defaults: defaultRating(cfg),
		logger:   logger,
	}
}

func (a *MatchupAggregator) WithQueries(qtx *db.Queries) *MatchupAggregator {
	return &MatchupAggregator{battles: a.battles.WithQueries(qtx), defaults: a.defaults, logger: a.logger}
}

// FindMatchups lists the 1v1 games playerID finished in concluded battles
// with a conclusion time in [from, to), oldest battle first.
func (a *MatchupAggregator) FindMatchups(ctx context.Context, playerID int64, from, to time.Time) ([]domain.Matchup, error) {
	rows, err := a.battles.MatchupRows(ctx, playerID, from, to)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(rows))
	matchups := make([]domain.Matchup, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.BattleID]; ok {
			a.logger.Error().Int64("battle_id", row.BattleID).Int64("player_id", playerID).Msg("rated battle has more than one opponent")
			return nil, fmt.Errorf("battle %d has more than one opponent: %w", row.BattleID, domain.ErrInvariantViolation)
		}
		seen[row.BattleID] = struct{}{}

		opponent := a.defaults
		if row.OpponentRating != nil && row.OpponentDeviation != nil && row.OpponentVolatility != nil {
			opponent = glicko2.Rating{
				Rating:     *row.OpponentRating,
				Deviation:  *row.OpponentDeviation,
				Volatility: *row.OpponentVolatility,
			}
		}

		matchups = append(matchups, domain.Matchup{
			BattleID:          row.BattleID,
			OpponentID:        row.OpponentID,
			Opponent:          opponent,
			Position:          derivePosition(row.FinishTime, row.NoContest, row.OpponentFinishTime, row.OpponentNoContest),
			NoContest:         row.NoContest,
			OpponentNoContest: row.OpponentNoContest,
		})
	}

	return matchups, nil
}

// derivePosition decides a 1v1 game. A no-contest never beats anyone, the
// lower finish time wins, and a participant that finished beats one that did
// not. Anything left undecided is a draw.
func derivePosition(finish *int64, noContest bool, oppFinish *int64, oppNoContest bool) domain.Position {
	switch {
	case noContest && oppNoContest:
		return domain.PositionDraw
	case noContest:
		return domain.PositionLoss
	case oppNoContest:
		return domain.PositionWin
	case finish == nil && oppFinish == nil:
		return domain.PositionDraw
	case oppFinish == nil:
		return domain.PositionWin
	case finish == nil:
		return domain.PositionLoss
	case *finish < *oppFinish:
		return domain.PositionWin
	case *finish > *oppFinish:
		return domain.PositionLoss
	default:
		return domain.PositionDraw
	}
}

func toResults(matchups []domain.Matchup) []glicko2.Result {
	results := make([]glicko2.Result, len(matchups))
	for i, m := range matchups {
		results[i] = glicko2.Result{Opponent: m.Opponent, Score: m.Position.Score()}
	}
	return results
}

func defaultRating(cfg *config.Config) glicko2.Rating {
	return glicko2.Rating{
		Rating:     cfg.Rating.DefaultRating,
		Deviation:  cfg.Rating.DefaultDeviation,
		Volatility: cfg.Rating.DefaultVolatility,
	}
}

func newCalculator(cfg *config.Config) glicko2.Calculator {
	calc := glicko2.NewCalculator()
	calc.Tau = cfg.Rating.Tau
	calc.MaxDeviation = cfg.Rating.MaxDeviation
	return calc
}
