// Package mongodb implements storage.Store on a MongoDB database, the
// document store the catalog was designed around.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/sorumcars/sorum/pkg/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStorage holds the single long-lived client shared by all requests
type MongoStorage struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStorage connects once and verifies the deployment is reachable
func NewMongoStorage(ctx context.Context, uri, database string, timeout time.Duration) (*MongoStorage, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Nested documents decode as maps so they encode back to JSON objects
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoStorage{
		client: client,
		db:     client.Database(database),
	}, nil
}

// Collection implements storage.Store.Collection
func (s *MongoStorage) Collection(name string) storage.Collection {
	return NewCollection(s.db.Collection(name))
}

// Ping implements storage.Store.Ping
func (s *MongoStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close implements storage.Store.Close
func (s *MongoStorage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Collection adapts a driver collection to storage.Collection
type Collection struct {
	coll *mongo.Collection
}

// NewCollection wraps an existing driver collection
func NewCollection(coll *mongo.Collection) *Collection {
	return &Collection{coll: coll}
}

// Name implements storage.Collection.Name
func (c *Collection) Name() string {
	return c.coll.Name()
}

// FindOne implements storage.Collection.FindOne
func (c *Collection) FindOne(ctx context.Context, filter storage.Filter) (storage.Document, bool, error) {
	var doc bson.M
	err := c.coll.FindOne(ctx, toBSON(filter)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find one in %s: %w", c.Name(), err)
	}
	return storage.Document(doc), true, nil
}

// Find implements storage.Collection.Find
func (c *Collection) Find(ctx context.Context, filter storage.Filter, opts ...storage.FindOption) iter.Seq2[storage.Document, error] {
	o := storage.ApplyFindOptions(opts...)

	return func(yield func(storage.Document, error) bool) {
		findOpts := options.Find()
		if o.Limit > 0 {
			findOpts.SetLimit(o.Limit)
		}

		cursor, err := c.coll.Find(ctx, toBSON(filter), findOpts)
		if err != nil {
			yield(nil, fmt.Errorf("find in %s: %w", c.Name(), err))
			return
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var doc bson.M
			if err := cursor.Decode(&doc); err != nil {
				yield(nil, fmt.Errorf("decode %s document: %w", c.Name(), err))
				return
			}
			if !yield(storage.Document(doc), nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate %s: %w", c.Name(), err))
		}
	}
}

// InsertOne implements storage.Collection.InsertOne
func (c *Collection) InsertOne(ctx context.Context, doc storage.Document) (*storage.InsertResult, error) {
	res, err := c.coll.InsertOne(ctx, bson.M(doc))
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", c.Name(), err)
	}
	return &storage.InsertResult{Acknowledged: true, InsertedID: res.InsertedID}, nil
}

// UpdateOne implements storage.Collection.UpdateOne
func (c *Collection) UpdateOne(ctx context.Context, filter storage.Filter, set storage.Document, upsert bool) (*storage.UpdateResult, error) {
	update := bson.M{"$set": bson.M(storage.Without(set, storage.FieldID))}
	res, err := c.coll.UpdateOne(ctx, toBSON(filter), update, options.Update().SetUpsert(upsert))
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", c.Name(), err)
	}
	return fromUpdateResult(res), nil
}

// ReplaceOne implements storage.Collection.ReplaceOne
func (c *Collection) ReplaceOne(ctx context.Context, filter storage.Filter, replacement storage.Document) (*storage.UpdateResult, error) {
	res, err := c.coll.ReplaceOne(ctx, toBSON(filter), bson.M(storage.Without(replacement, storage.FieldID)))
	if err != nil {
		return nil, fmt.Errorf("replace in %s: %w", c.Name(), err)
	}
	return fromUpdateResult(res), nil
}

// DeleteOne implements storage.Collection.DeleteOne
func (c *Collection) DeleteOne(ctx context.Context, filter storage.Filter) (*storage.DeleteResult, error) {
	res, err := c.coll.DeleteOne(ctx, toBSON(filter))
	if err != nil {
		return nil, fmt.Errorf("delete from %s: %w", c.Name(), err)
	}
	return &storage.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}

func toBSON(filter storage.Filter) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}

func fromUpdateResult(res *mongo.UpdateResult) *storage.UpdateResult {
	return &storage.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
		UpsertedID:    res.UpsertedID,
	}
}
