package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frostu8/ring-channel/internal/config"
	"github.com/frostu8/ring-channel/internal/constants"
	"github.com/frostu8/ring-channel/internal/db"
	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/glicko2"
	"github.com/frostu8/ring-channel/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PeriodScheduler closes rating periods. Closing happens in two
// transactions: the first moves the period to closing and fixes its end, the
// second rates every candidate and opens the next period. A failure in the
// second leaves the period closing, and closing it again redoes the same work.
type PeriodScheduler struct {
	tx         *repository.TxManager
	periods    *repository.PeriodRepository
	players    *repository.PlayerRepository
	ratings    *repository.RatingRepository
	aggregator *MatchupAggregator
	notifier   Notifier
	calc       glicko2.Calculator
	defaults   glicko2.Rating
	period     time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

func NewPeriodScheduler(
	tx *repository.TxManager,
	periods *repository.PeriodRepository,
	players *repository.PlayerRepository,
	ratings *repository.RatingRepository,
	aggregator *MatchupAggregator,
	notifier Notifier,
	cfg *config.Config,
	logger zerolog.Logger,
) *PeriodScheduler {
	return &PeriodScheduler{
		tx:         tx,
		periods:    periods,
		players:    players,
		ratings:    ratings,
		aggregator: aggregator,
		notifier:   notifier,
		calc:       newCalculator(cfg),
		defaults:   defaultRating(cfg),
		period:     cfg.Rating.Period,
		now:        utcNow,
		logger:     logger,
	}
}

// EnsureOpenPeriod opens the first rating period if none exists yet.
func (s *PeriodScheduler) EnsureOpenPeriod(ctx context.Context) (*domain.RatingPeriod, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var period *domain.RatingPeriod
	err := s.tx.InTx(ctx, func(qtx *db.Queries) error {
		periods := s.periods.WithQueries(qtx)

		for _, status := range []domain.PeriodStatus{domain.PeriodOpen, domain.PeriodClosing} {
			p, err := periods.ByStatus(ctx, status)
			if err == nil {
				period = p
				return nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}

		now := s.now()
		p, err := periods.Open(ctx, now, now)
		if err != nil {
			return err
		}
		period = p
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to ensure open rating period")
		return nil, err
	}

	s.logger.Info().Int64("period_id", period.ID).Str("status", period.Status.String()).Time("started_at", period.StartedAt).Msg("rating period ready")
	return period, nil
}

func (s *PeriodScheduler) CurrentPeriod(ctx context.Context) (*domain.RatingPeriod, error) {
	return s.periods.ByStatus(ctx, domain.PeriodOpen)
}

// Due reports whether a period should be closed now: either the open period
// has run its full length or an earlier close was left unfinished.
func (s *PeriodScheduler) Due(ctx context.Context) (bool, error) {
	if _, err := s.periods.ByStatus(ctx, domain.PeriodClosing); err == nil {
		return true, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	period, err := s.periods.ByStatus(ctx, domain.PeriodOpen)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !s.now().Before(period.StartedAt.Add(s.period)), nil
}

// CloseCurrentPeriod resumes a closing period, or closes the open one once it
// has run its full length. Before that it returns the outcome of the newest
// closed period, so a repeated trigger never closes a fresh period. Without
// any period it does nothing.
func (s *PeriodScheduler) CloseCurrentPeriod(ctx context.Context) (*domain.PeriodCloseResult, error) {
	period, err := s.periods.ByStatus(ctx, domain.PeriodClosing)
	if err == nil {
		return s.ClosePeriod(ctx, period.ID)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	open, err := s.periods.ByStatus(ctx, domain.PeriodOpen)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if open != nil && !s.now().Before(open.StartedAt.Add(s.period)) {
		return s.ClosePeriod(ctx, open.ID)
	}

	closed, err := s.periods.ByStatus(ctx, domain.PeriodClosed)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info().Msg("no rating period to close")
		return &domain.PeriodCloseResult{Noop: true}, nil
	}
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int64("period_id", closed.ID).Msg("rating period not due, returning last close")
	return s.closedResult(ctx, s.periods, s.ratings, closed)
}

// ClosePeriod closes the period with the given id. Closing an already closed
// period returns its stored outcome.
func (s *PeriodScheduler) ClosePeriod(ctx context.Context, periodID int64) (*domain.PeriodCloseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.PeriodCloseTimeout)
	defer cancel()

	var period *domain.RatingPeriod
	err := s.tx.InTx(ctx, func(qtx *db.Queries) error {
		periods := s.periods.WithQueries(qtx)

		p, err := periods.Get(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status == domain.PeriodOpen {
			endsAt := s.now()
			if endsAt.Before(p.StartedAt) {
				endsAt = p.StartedAt
			}
			if _, err := periods.MarkClosing(ctx, p.ID, endsAt); err != nil {
				return err
			}
			p.Status = domain.PeriodClosing
			p.EndsAt = &endsAt
		}
		period = p
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("period_id", periodID).Msg("failed to mark rating period closing")
		return nil, err
	}
	s.logger.Debug().Int64("period_id", period.ID).Str("status", period.Status.String()).Msg("closing rating period")

	var result *domain.PeriodCloseResult
	err = s.tx.InTx(ctx, func(qtx *db.Queries) error {
		r, err := s.close(ctx, qtx, periodID)
		result = r
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("period_id", periodID).Msg("failed to close rating period, it stays closing")
		return nil, err
	}

	if !result.AlreadyClosed {
		s.logger.Info().
			Int64("period_id", result.PeriodID).
			Int64("next_period_id", result.NextPeriodID).
			Int("rated", result.Rated).
			Int("skipped", len(result.Skipped)).
			Msg("rating period closed")
		s.notifier.PeriodClosed(ctx, result)
	}
	return result, nil
}

type pendingRating struct {
	playerID int64
	current  glicko2.Rating
	results  []glicko2.Result
	rating   glicko2.Rating
	skipped  bool
}

func (s *PeriodScheduler) close(ctx context.Context, qtx *db.Queries, periodID int64) (*domain.PeriodCloseResult, error) {
	periods := s.periods.WithQueries(qtx)
	players := s.players.WithQueries(qtx)
	ratings := s.ratings.WithQueries(qtx)
	aggregator := s.aggregator.WithQueries(qtx)

	period, err := periods.Get(ctx, periodID)
	if err != nil {
		return nil, err
	}
	switch period.Status {
	case domain.PeriodClosed:
		return s.closedResult(ctx, periods, ratings, period)
	case domain.PeriodOpen:
		return nil, fmt.Errorf("rating period %d is not closing: %w", periodID, domain.ErrConflict)
	}
	if period.EndsAt == nil {
		return nil, fmt.Errorf("closing rating period %d has no end: %w", periodID, domain.ErrInvariantViolation)
	}
	from, to := period.StartedAt, *period.EndsAt

	candidates, err := players.RatingCandidates(ctx, from, to)
	if err != nil {
		return nil, err
	}

	pending := make([]pendingRating, len(candidates))
	for i, playerID := range candidates {
		player, err := players.GetByID(ctx, playerID)
		if err != nil {
			return nil, err
		}
		matchups, err := aggregator.FindMatchups(ctx, playerID, from, to)
		if err != nil {
			return nil, err
		}

		current := s.defaults
		if player.Rated {
			current = player.Rating
		}
		pending[i] = pendingRating{playerID: playerID, current: current, results: toResults(matchups)}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(constants.RatingWorkers)
	for i := range pending {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			p := &pending[i]
			rating, err := s.calc.Rate(p.current, p.results, 1)
			if errors.Is(err, glicko2.ErrConvergence) {
				p.skipped = true
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to rate player %d: %w", p.playerID, err)
			}
			p.rating = rating
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &domain.PeriodCloseResult{PeriodID: periodID}
	for _, p := range pending {
		if p.skipped {
			s.logger.Warn().Int64("player_id", p.playerID).Int64("period_id", periodID).Int("games", len(p.results)).Msg("rating did not converge, skipping player")
			result.Skipped = append(result.Skipped, p.playerID)
			continue
		}
		if _, err := ratings.Append(ctx, p.playerID, periodID, p.rating, to); err != nil {
			return nil, err
		}
		result.Rated++
	}

	now := s.now()
	if err := periods.MarkClosed(ctx, periodID, now); err != nil {
		return nil, err
	}
	next, err := periods.Open(ctx, to, now)
	if err != nil {
		return nil, err
	}
	result.NextPeriodID = next.ID

	return result, nil
}

func (s *PeriodScheduler) closedResult(ctx context.Context, periods *repository.PeriodRepository, ratings *repository.RatingRepository, period *domain.RatingPeriod) (*domain.PeriodCloseResult, error) {
	snapshots, err := ratings.ListByPeriod(ctx, period.ID)
	if err != nil {
		return nil, err
	}
	result := &domain.PeriodCloseResult{
		PeriodID:      period.ID,
		Rated:         len(snapshots),
		AlreadyClosed: true,
	}

	next, err := periods.Next(ctx, period.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if next != nil {
		result.NextPeriodID = next.ID
	}
	return result, nil
}
