package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frostu8/ring-channel/internal/config"
	"github.com/frostu8/ring-channel/internal/constants"
	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/glicko2"
	"github.com/frostu8/ring-channel/internal/repository"

	"github.com/rs/zerolog"
)

type RatingService struct {
	players    *repository.PlayerRepository
	ratings    *repository.RatingRepository
	periods    *repository.PeriodRepository
	aggregator *MatchupAggregator
	calc       glicko2.Calculator
	defaults   glicko2.Rating
	period     time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

func NewRatingService(
	players *repository.PlayerRepository,
	ratings *repository.RatingRepository,
	periods *repository.PeriodRepository,
	aggregator *MatchupAggregator,
	cfg *config.Config,
	logger zerolog.Logger,
) *RatingService {
	return &RatingService{
		players:    players,
		ratings:    ratings,
		periods:    periods,
		aggregator: aggregator,
		calc:       newCalculator(cfg),
		defaults:   defaultRating(cfg),
		period:     cfg.Rating.Period,
		now:        utcNow,
		logger:     logger,
	}
}

// GetCurrentRating returns the player's cached rating, or the default rating
// if the player has never been rated.
func (s *RatingService) GetCurrentRating(ctx context.Context, shortID string) (glicko2.Rating, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	player, err := s.players.Get(ctx, shortID)
	if err != nil {
		return glicko2.Rating{}, err
	}
	if !player.Rated {
		return s.defaults, nil
	}
	return player.Rating, nil
}

func (s *RatingService) History(ctx context.Context, shortID string) ([]domain.RatingSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	player, err := s.players.Get(ctx, shortID)
	if err != nil {
		return nil, err
	}
	return s.ratings.History(ctx, player.ID, constants.RatingHistoryLimit)
}

// ProvisionalRating previews what the player's rating would be if the open
// period closed now, scaling deviation growth by how much of the period has
// elapsed.
func (s *RatingService) ProvisionalRating(ctx context.Context, shortID string) (glicko2.Rating, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	player, err := s.players.Get(ctx, shortID)
	if err != nil {
		return glicko2.Rating{}, err
	}
	current := s.defaults
	if player.Rated {
		current = player.Rating
	}

	period, err := s.periods.ByStatus(ctx, domain.PeriodOpen)
	if errors.Is(err, domain.ErrNotFound) {
		return current, nil
	}
	if err != nil {
		return glicko2.Rating{}, err
	}

	now := s.now()
	matchups, err := s.aggregator.FindMatchups(ctx, player.ID, period.StartedAt, now.Add(time.Nanosecond))
	if err != nil {
		return glicko2.Rating{}, err
	}

	elapsed := float64(now.Sub(period.StartedAt)) / float64(s.period)
	if elapsed > 1 {
		elapsed = 1
	}

	rating, err := s.calc.Rate(current, toResults(matchups), elapsed)
	if err != nil {
		s.logger.Warn().Err(err).Str("player", shortID).Msg("failed to compute provisional rating")
		return glicko2.Rating{}, fmt.Errorf("failed to compute provisional rating: %w", err)
	}
	return rating, nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}
