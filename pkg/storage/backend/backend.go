// Package backend opens the storage.Store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/sorumcars/sorum/pkg/storage"
	"github.com/sorumcars/sorum/pkg/storage/mongodb"
	"github.com/sorumcars/sorum/pkg/storage/postgres"
)

// Open connects to the configured backend
func Open(ctx context.Context, cfg storage.Config, log logrus.FieldLogger) (storage.Store, error) {
	log = log.WithField("store", cfg.Type)

	switch cfg.Type {
	case "", "memory":
		log.Warn("using in-memory store, data is lost on exit")
		return storage.NewMemoryStorage(), nil
	case "mongo":
		store, err := mongodb.NewMongoStorage(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		log.WithField("database", cfg.MongoDatabase).Info("connected to mongo")
		return store, nil
	case "postgres":
		store, err := postgres.NewPostgresStorage(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		log.Info("connected to postgres")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
