package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/frostu8/ring-channel/internal/config"
	"github.com/frostu8/ring-channel/internal/constants"
	fxmodules "github.com/frostu8/ring-channel/internal/fx"
	"github.com/frostu8/ring-channel/internal/middleware"
	"github.com/frostu8/ring-channel/internal/server"
	"github.com/frostu8/ring-channel/internal/service"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer, runPeriodTicker),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	apiServer *server.Server,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := middleware.Chain(
		apiServer.Routes(),
		middleware.RequestID(logger),
		middleware.Recover,
		c.Handler,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           handler,
		ReadHeaderTimeout: constants.RequestTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}

// runPeriodTicker closes the open rating period once it has run its course.
func runPeriodTicker(
	lc fx.Lifecycle,
	scheduler *service.PeriodScheduler,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	tick := func() {
		due, err := scheduler.Due(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("failed to check rating period")
			return
		}
		if !due {
			return
		}
		if _, err := scheduler.CloseCurrentPeriod(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to close rating period")
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			period, err := scheduler.EnsureOpenPeriod(startCtx)
			if err != nil {
				return fmt.Errorf("failed to open rating period: %w", err)
			}
			logger.Info().
				Int64("period_id", period.ID).
				Time("started_at", period.StartedAt).
				Dur("check_interval", cfg.Rating.CheckInterval).
				Msg("rating periods scheduled")

			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.Rating.CheckInterval)
				defer ticker.Stop()

				tick()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						tick()
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			return nil
		},
	})
}
