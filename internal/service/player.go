package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/frostu8/ring-channel/internal/config"
	"github.com/frostu8/ring-channel/internal/constants"
	"github.com/frostu8/ring-channel/internal/domain"
	"github.com/frostu8/ring-channel/internal/glicko2"
	"github.com/frostu8/ring-channel/internal/repository"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type PlayerService struct {
	repo     *repository.PlayerRepository
	defaults glicko2.Rating
	now      func() time.Time
	logger   zerolog.Logger
}

func NewPlayerService(repo *repository.PlayerRepository, cfg *config.Config, logger zerolog.Logger) *PlayerService {
	return &PlayerService{
		repo:     repo,
		defaults: defaultRating(cfg),
		now:      utcNow,
		logger:   logger,
	}
}

// RegisterPlayer creates a player for publicKey, or renames the player that
// already owns it.
func (s *PlayerService) RegisterPlayer(ctx context.Context, publicKey, displayName string) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	publicKey = strings.ToLower(strings.TrimSpace(publicKey))
	if err := validatePublicKey(publicKey); err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("display name is required: %w", domain.ErrInvalidInput)
	}

	for attempt := 1; ; attempt++ {
		shortID, err := gonanoid.Generate(constants.ShortIDAlphabet, constants.ShortIDLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate short id: %w", err)
		}

		player, err := s.repo.Upsert(ctx, shortID, publicKey, displayName, s.now())
		if repository.IsUniqueViolation(err) && attempt < constants.ShortIDAttempts {
			s.logger.Debug().Str("short_id", shortID).Int("attempt", attempt).Msg("short id taken, retrying")
			continue
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to register player")
			return nil, err
		}

		s.logger.Info().Str("short_id", player.ShortID).Str("name", displayName).Msg("player registered")
		return s.withDefaults(player), nil
	}
}

func (s *PlayerService) GetPlayer(ctx context.Context, shortID string) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	player, err := s.repo.Get(ctx, shortID)
	if err != nil {
		return nil, err
	}
	return s.withDefaults(player), nil
}

func (s *PlayerService) withDefaults(player *domain.Player) *domain.Player {
	if !player.Rated {
		player.Rating = s.defaults
	}
	return player
}

func validatePublicKey(key string) error {
	if len(key) != constants.PublicKeyLength {
		return fmt.Errorf("public key must be %d hex characters: %w", constants.PublicKeyLength, domain.ErrInvalidInput)
	}
	if _, err := hex.DecodeString(key); err != nil {
		return fmt.Errorf("public key is not hex: %w", domain.ErrInvalidInput)
	}
	return nil
}
