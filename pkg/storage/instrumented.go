package storage

import (
	"context"
	"iter"
	"time"
)

// OperationObserver receives the outcome of every collection call
type OperationObserver interface {
	ObserveStorageOperation(collection, operation string, err error, d time.Duration)
}

// Instrument wraps store so every collection call is reported to observer
func Instrument(store Store, observer OperationObserver) Store {
	if observer == nil {
		return store
	}
	return &instrumentedStore{Store: store, observer: observer}
}

type instrumentedStore struct {
	Store
	observer OperationObserver
}

func (s *instrumentedStore) Collection(name string) Collection {
	return &instrumentedCollection{Collection: s.Store.Collection(name), observer: s.observer}
}

type instrumentedCollection struct {
	Collection
	observer OperationObserver
}

func (c *instrumentedCollection) observe(op string, start time.Time, err error) {
	c.observer.ObserveStorageOperation(c.Name(), op, err, time.Since(start))
}

func (c *instrumentedCollection) FindOne(ctx context.Context, filter Filter) (Document, bool, error) {
	start := time.Now()
	doc, found, err := c.Collection.FindOne(ctx, filter)
	c.observe("find_one", start, err)
	return doc, found, err
}

// Find reports once the sequence is drained or abandoned
func (c *instrumentedCollection) Find(ctx context.Context, filter Filter, opts ...FindOption) iter.Seq2[Document, error] {
	inner := c.Collection.Find(ctx, filter, opts...)
	return func(yield func(Document, error) bool) {
		start := time.Now()
		var failed error
		defer func() { c.observe("find", start, failed) }()

		for doc, err := range inner {
			if err != nil {
				failed = err
			}
			if !yield(doc, err) {
				return
			}
		}
	}
}

func (c *instrumentedCollection) InsertOne(ctx context.Context, doc Document) (*InsertResult, error) {
	start := time.Now()
	res, err := c.Collection.InsertOne(ctx, doc)
	c.observe("insert_one", start, err)
	return res, err
}

func (c *instrumentedCollection) UpdateOne(ctx context.Context, filter Filter, set Document, upsert bool) (*UpdateResult, error) {
	start := time.Now()
	res, err := c.Collection.UpdateOne(ctx, filter, set, upsert)
	c.observe("update_one", start, err)
	return res, err
}

func (c *instrumentedCollection) ReplaceOne(ctx context.Context, filter Filter, replacement Document) (*UpdateResult, error) {
	start := time.Now()
	res, err := c.Collection.ReplaceOne(ctx, filter, replacement)
	c.observe("replace_one", start, err)
	return res, err
}

func (c *instrumentedCollection) DeleteOne(ctx context.Context, filter Filter) (*DeleteResult, error) {
	start := time.Now()
	res, err := c.Collection.DeleteOne(ctx, filter)
	c.observe("delete_one", start, err)
	return res, err
}
