// Package app composes the daemon out of the store, lock, bus, ingestion
// engine, and retry runner.
package app

import (
	"context"
	"time"

	"github.com/pvanzin/taverna/internal/bus"
	"github.com/pvanzin/taverna/internal/config"
	"github.com/pvanzin/taverna/internal/ingest"
	"github.com/pvanzin/taverna/internal/lock"
	"github.com/pvanzin/taverna/internal/logging"
	"github.com/pvanzin/taverna/internal/profile"
	"github.com/pvanzin/taverna/internal/retry"
	"github.com/pvanzin/taverna/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	DBPath      string // optional override for testing; empty = use profile default
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideLock,
			provideStore,
			provideEngine,
			provideSender,
			provideRunner,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		logger.Warn("failed to load config, using defaults", zap.Error(err))
		return &config.Config{}
	}
	return cfg
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	dbPath := p.DBPath
	if dbPath == "" {
		dbPath = profile.DBPath(p.ProfileName)
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(dbPath)
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := p.DBPath
	if dbPath == "" {
		dbPath = profile.DBPath(p.ProfileName)
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	if pruned, err := db.Maintain(); err != nil {
		logger.Warn("maintenance failed", zap.Error(err))
	} else if pruned > 0 {
		logger.Info("pruned unreferenced addresses", zap.Int64("count", pruned))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *ingest.Engine {
	return ingest.NewEngine(db, b, logger)
}

func provideSender(b *bus.Bus) *retry.BusSender {
	return retry.NewBusSender(b)
}

func provideRunner(db *store.DB, sender *retry.BusSender, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *retry.Runner {
	interval := time.Duration(cfg.RetryIntervalSeconds) * time.Second
	return retry.NewRunner(db, sender, b, logger, interval)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, engine *ingest.Engine, runner *retry.Runner, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Ingestion engine subscribes to proto.* bus events.
			engine.Start(context.Background())
			runner.Start(context.Background())
			return nil
		},
		OnStop: func(_ context.Context) error {
			runner.Stop()
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
