// Package app assembles the fight engine from configuration. The injector in
// wire.go is expanded into wire_gen.go by google/wire.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fightsheet/internal/clock"
	"github.com/cory-johannsen/fightsheet/internal/config"
	"github.com/cory-johannsen/fightsheet/internal/game/catalog"
	"github.com/cory-johannsen/fightsheet/internal/game/death"
	"github.com/cory-johannsen/fightsheet/internal/game/dice"
	"github.com/cory-johannsen/fightsheet/internal/game/equipment"
	"github.com/cory-johannsen/fightsheet/internal/game/fight"
	"github.com/cory-johannsen/fightsheet/internal/game/stats"
	"github.com/cory-johannsen/fightsheet/internal/observability"
	"github.com/cory-johannsen/fightsheet/internal/storage"
	"github.com/cory-johannsen/fightsheet/internal/storage/memstore"
	"github.com/cory-johannsen/fightsheet/internal/storage/postgres"
	"github.com/cory-johannsen/fightsheet/internal/storage/sqlite"
)

// App holds the assembled engine.
type App struct {
	Store   storage.Store
	Catalog *catalog.Catalog
	Service *fight.Service
	// Sweeper is nil when fight.sweep_interval is zero.
	Sweeper *death.Sweeper
}

// ProviderSet provides every App dependency from a config.Config, a
// *zap.Logger and a context.Context.
var ProviderSet = wire.NewSet(
	OpenStore,
	LoadCatalog,
	clock.System,
	provideEngine,
	provideManager,
	fight.NewCompositor,
	wire.Bind(new(death.MaxHealthResolver), new(*fight.Compositor)),
	provideMachine,
	provideRoller,
	provideService,
	provideSweeper,
	wire.Struct(new(App), "*"),
)

// OpenStore opens the record store selected by cfg.Storage.Driver.
//
// Postcondition: on success the returned cleanup closes the store.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Store, func(), error) {
	start := time.Now()
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(start)),
		)
		return postgres.NewPlayerStore(pool.DB()), pool.Close, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Info("sqlite store opened",
			zap.String("path", cfg.Storage.SQLitePath),
			zap.Duration("elapsed", time.Since(start)),
		)
		return s, func() { _ = s.Close() }, nil
	case config.DriverMemory:
		logger.Warn("using in-memory store, records are lost on exit")
		s := memstore.New()
		return s, func() { _ = s.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// LoadCatalog loads the gear catalog from cfg.Fight.CatalogDir.
func LoadCatalog(cfg config.Config, logger *zap.Logger) (*catalog.Catalog, error) {
	cat, err := catalog.LoadDir(cfg.Fight.CatalogDir)
	if err != nil {
		return nil, fmt.Errorf("loading gear catalog: %w", err)
	}
	logger.Info("gear catalog loaded",
		zap.String("dir", cfg.Fight.CatalogDir),
		zap.Int("items", cat.Len()),
	)
	return cat, nil
}

func provideEngine(store storage.Store, logger *zap.Logger) *stats.Engine {
	return stats.NewEngine(store, observability.Named(logger, "stats"))
}

func provideManager(store storage.Store, cat *catalog.Catalog, logger *zap.Logger) *equipment.Manager {
	return equipment.NewManager(store, cat, observability.Named(logger, "equipment"))
}

func provideMachine(store storage.Store, resolver death.MaxHealthResolver, clk clock.Clock, cfg config.Config, logger *zap.Logger) *death.Machine {
	return death.NewMachine(store, resolver, clk, cfg.Fight.GracePeriod, observability.Named(logger, "death"))
}

func provideRoller(logger *zap.Logger) *dice.Roller {
	return dice.NewLoggedRoller(dice.NewCryptoSource(), observability.Named(logger, "dice"))
}

func provideService(
	engine *stats.Engine,
	manager *equipment.Manager,
	compositor *fight.Compositor,
	machine *death.Machine,
	roller *dice.Roller,
	cfg config.Config,
	logger *zap.Logger,
) *fight.Service {
	return fight.NewService(engine, manager, compositor, machine, roller, cfg.Fight.StoreTimeout, observability.Named(logger, "fight"))
}

func provideSweeper(machine *death.Machine, store storage.Store, cfg config.Config, logger *zap.Logger) *death.Sweeper {
	if cfg.Fight.SweepInterval <= 0 {
		return nil
	}
	return death.NewSweeper(machine, store, cfg.Fight.SweepInterval, observability.Named(logger, "sweeper"))
}
