// Package storage provides the document persistence layer for the Sorum
// car catalog.
//
// # Overview
//
// Records live in four collections: cars, orders, review and users. Each
// record is a schemaless Document keyed by an _id, and every backend exposes
// the same Collection contract: FindOne, Find, InsertOne, UpdateOne (with
// optional upsert), ReplaceOne and DeleteOne. There are no joins and no
// transactions, so any check-then-act sequence built on top of a Collection
// is not atomic across processes.
//
// # Backends
//
// MemoryStorage keeps everything in process and is used for development and
// tests:
//
//	store := storage.NewMemoryStorage()
//
// The mongodb package stores records in MongoDB, the deployment the catalog
// was built for:
//
//	store, err := mongodb.NewMongoStorage(ctx, "mongodb://localhost:27017", "sorumCars", 10*time.Second)
//
// The postgres package keeps one table per collection with the body in a
// JSONB column and serves listings from read replicas:
//
//	store, err := postgres.NewPostgresStorage(ctx, storage.Config{
//		PostgresURL:      "postgres://localhost/sorum",
//		PostgresMaxConns: 20,
//	}, logrus.StandardLogger())
//
// # Identifiers
//
// Identifiers are 12-byte object ids rendered as 24 hex characters. Path
// parameters must go through ParseID before they become part of a Filter;
// a malformed id never reaches a backend.
//
// # Users
//
// The users collection is keyed by email. A user is an administrator when
// its role field equals "admin"; GrantAdmin sets it and RevokeRole removes
// it by replacing the whole document without that field.
package storage
