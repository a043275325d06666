package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-quest/internal/config"
	"github.com/Veraticus/spice-quest/internal/engine"
	"github.com/Veraticus/spice-quest/internal/indicator"
	"github.com/Veraticus/spice-quest/internal/ledger"
	"github.com/Veraticus/spice-quest/internal/metrics"
	"github.com/Veraticus/spice-quest/internal/mission"
	"github.com/Veraticus/spice-quest/internal/reward"
	"github.com/Veraticus/spice-quest/internal/service"
	"github.com/Veraticus/spice-quest/internal/storage"
)

// metricsNamespace prefixes every exported prometheus metric.
const metricsNamespace = "spice_quest"

// app bundles the wired services a command works with.
type app struct {
	cfg        *config.Config
	store      *storage.SQLiteStorage
	metrics    *metrics.Collector
	indicators *indicator.Engine
	rewards    *reward.Engine
	missions   *engine.Orchestrator
	ledger     *ledger.Service
}

// openApp loads the configuration, opens and migrates the database and
// wires the engines together.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, store), nil
}

func newApp(cfg *config.Config, store *storage.SQLiteStorage) *app {
	collector := metrics.NewCollector(metricsNamespace)
	clock := service.SystemClock

	indicators := indicator.New(store, clock, collector, indicator.Config{
		Freshness:     cfg.Indicators.Freshness,
		WindowDays:    cfg.Indicators.WindowDays,
		EssentialDays: cfg.Indicators.EssentialDays,
	})
	rewards := reward.New(store, collector, reward.Config{
		LockTimeout: cfg.Reward.LockTimeout,
		MaxAttempts: cfg.Reward.MaxAttempts,
	})
	missions := engine.New(store, indicators, mission.NewRegistry(), rewards, clock, collector, engine.Config{
		MaxActive:    cfg.Missions.MaxActive,
		TrivialRatio: cfg.Missions.TrivialRatio,
		AutoActivate: cfg.Missions.AutoActivate,
		LockTimeout:  cfg.Reward.LockTimeout,
		MaxAttempts:  cfg.Reward.MaxAttempts,
	})

	return &app{
		cfg:        cfg,
		store:      store,
		metrics:    collector,
		indicators: indicators,
		rewards:    rewards,
		missions:   missions,
		ledger:     ledger.New(store, indicators, missions, clock),
	}
}

// Close releases the database.
func (a *app) Close() error {
	return a.store.Close()
}

// initStorage opens the database at the configured path and applies
// pending migrations.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}
