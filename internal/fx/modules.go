package fx

import (
	"database/sql"

	"github.com/frostu8/ring-channel/internal/config"
	"github.com/frostu8/ring-channel/internal/database"
	"github.com/frostu8/ring-channel/internal/db"
	"github.com/frostu8/ring-channel/internal/logger"
	"github.com/frostu8/ring-channel/internal/notify"
	"github.com/frostu8/ring-channel/internal/repository"
	"github.com/frostu8/ring-channel/internal/server"
	"github.com/frostu8/ring-channel/internal/service"

	"go.uber.org/fx"
)

func ProvideQueries(sqlDB *sql.DB) *db.Queries {
	return db.New(sqlDB)
}

// Storage provides the database and everything that reads or writes it.
var Storage = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	fx.Provide(ProvideQueries),
	// repos
	fx.Provide(repository.NewTxManager),
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewRatingRepository),
	fx.Provide(repository.NewPeriodRepository),
	fx.Provide(repository.NewBattleRepository),
	fx.Provide(repository.NewLedgerRepository),
	fx.Provide(repository.NewWagerRepository),
)

var Module = fx.Options(
	Storage,
	// notifier
	fx.Provide(fx.Annotate(notify.NewWebhook, fx.As(new(service.Notifier)))),
	// svc
	fx.Provide(service.NewMatchupAggregator),
	fx.Provide(service.NewRatingService),
	fx.Provide(service.NewPeriodScheduler),
	fx.Provide(service.NewSettlementService),
	fx.Provide(service.NewLedgerService),
	fx.Provide(service.NewWagerService),
	fx.Provide(service.NewBattleService),
	fx.Provide(service.NewPlayerService),
	fx.Provide(service.NewRatingExporter),
	// server
	fx.Provide(server.NewServer),
)
