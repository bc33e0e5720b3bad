package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/oriys/tetra/internal/cache"
	"github.com/oriys/tetra/internal/config"
	"github.com/oriys/tetra/internal/deploy"
	"github.com/oriys/tetra/internal/invoke"
	"github.com/oriys/tetra/internal/manifest"
	"github.com/oriys/tetra/internal/output"
	"github.com/oriys/tetra/internal/persistence"
	"github.com/oriys/tetra/internal/provider"
	"github.com/oriys/tetra/internal/reliability"
	"github.com/oriys/tetra/internal/resourcemanager"
)

// environment bundles the object graph every subcommand wires together,
// built fresh per invocation rather than through the process-wide
// singletons, so a CLI run never outlives the daemon's lifecycle.
type environment struct {
	cfg         *config.Config
	client      *provider.HTTPClient
	remote      *persistence.RemoteStore
	manager     *resourcemanager.Manager
	orch        *deploy.Orchestrator
	fetcher     *manifest.Fetcher
	invalidator *cache.CacheInvalidator // nil when Redis is disabled
	dispatcher  *invoke.Dispatcher
	printer     *output.Printer
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if flagConfigFile != "" {
		loaded, err := config.LoadFromFile(flagConfigFile)
		if err != nil {
			return nil, fmt.Errorf("load config file %s: %w", flagConfigFile, err)
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}
	config.LoadFromEnv(cfg)
	if flagStateDir != "" {
		cfg.Daemon.StateDir = flagStateDir
	}
	return cfg, nil
}

// sharedCache builds the manifest's cross-process tier: in-memory L1 over
// a Redis L2, plus the Pub/Sub invalidator that evicts the L1 when a
// sibling instance announces a manifest change. Both are nil when Redis is
// disabled.
func sharedCache(cfg *config.Config) (cache.Cache, *cache.CacheInvalidator) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	l1 := cache.NewInMemoryCache()
	l2 := cache.NewRedisCacheFromClient(client, "tetra:manifest:")
	tiered := cache.NewTieredCache(l1, l2, 30*time.Second)
	return tiered, cache.NewCacheInvalidator(l1, client)
}

// buildEnvironment constructs the full collaborator graph for one CLI
// invocation: provider client, optional postgres mirror, Resource Manager,
// Deployment Orchestrator, Manifest Fetcher, and Dispatcher.
func buildEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	client, err := provider.NewFromEnv(cfg.Provider.BaseURL, cfg.Provider.AWSSigning, cfg.Provider.AWSRegion, cfg.Provider.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("build provider client: %w", err)
	}

	remote, err := persistence.NewRemoteStore(ctx, cfg.Postgres.DSN)
	if err != nil {
		slog.Warn("tetractl: postgres mirror unavailable, continuing without it", "error", err)
		remote = nil
	}

	manager, err := resourcemanager.New(client, cfg.Daemon.StateDir, flagEnvID, remote)
	if err != nil {
		return nil, fmt.Errorf("build resource manager: %w", err)
	}

	shared, invalidator := sharedCache(cfg)
	if invalidator != nil {
		manager.SetInvalidationPublisher(invalidator)
	}

	fetcher, err := manifest.New(client, cfg.Daemon.StateDir, manifest.DefaultTTL, shared)
	if err != nil {
		return nil, fmt.Errorf("build manifest fetcher: %w", err)
	}

	dispatcher := invoke.NewDispatcher(manager, client, reliability.FromEnv(), invoke.DefaultInvokeTimeout)

	return &environment{
		cfg:         cfg,
		client:      client,
		remote:      remote,
		manager:     manager,
		orch:        deploy.New(manager),
		fetcher:     fetcher,
		invalidator: invalidator,
		dispatcher:  dispatcher,
		printer:     output.NewPrinter(output.ParseFormat(flagOutput)),
	}, nil
}

func (e *environment) Close() {
	if e.invalidator != nil {
		e.invalidator.Close()
	}
	e.remote.Close()
}
