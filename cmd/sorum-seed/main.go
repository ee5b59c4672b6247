package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/sorumcars/sorum/pkg/config"
	"github.com/sorumcars/sorum/pkg/observability"
	"github.com/sorumcars/sorum/pkg/policy"
	"github.com/sorumcars/sorum/pkg/rbac"
	"github.com/sorumcars/sorum/pkg/seed"
	"github.com/sorumcars/sorum/pkg/storage"
	"github.com/sorumcars/sorum/pkg/storage/backend"
)

func main() {
	file := flag.String("file", "seed.yaml", "Seed file to apply")
	validateOnly := flag.Bool("validate", false, "Validate the seed file and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: "text",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	seedFile, err := seed.LoadFile(*file)
	if err != nil {
		logger.WithError(err).Fatal("failed to load seed file")
	}

	if errs := seed.Validate(seedFile); len(errs) > 0 {
		for _, e := range errs {
			logger.WithField("field", e.Field).Error(e.Message)
		}
		os.Exit(1)
	}
	if *validateOnly {
		logger.WithField("file", *file).Info("seed file is valid")
		return
	}

	if err := apply(cfg, seedFile, logger); err != nil {
		logger.WithError(err).Fatal("seeding failed")
	}
}

func apply(cfg *config.Config, seedFile *seed.File, logger *logrus.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	store, err := backend.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.WithError(err).Warn("failed to close store")
		}
	}()

	var opts []seed.Option
	opts = append(opts, seed.WithLogger(logger))

	// Servers sharing a role cache must not keep serving a stale role
	if cfg.RoleCache.URL != "" {
		cache, err := rbac.NewRedisRoleCache(cfg.RoleCache)
		if err != nil {
			return err
		}
		defer cache.Close()
		gate := rbac.NewGate(store.Collection(storage.CollectionUsers), rbac.WithCache(cache), rbac.WithLogger(logger))
		opts = append(opts, seed.WithRoleInvalidator(gate))
	}

	guards := policy.NewGuards(store, policy.WithLogger(logger))
	_, err = seed.NewSeeder(store, guards, opts...).Apply(ctx, seedFile)
	return err
}
