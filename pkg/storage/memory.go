package storage

import (
	"context"
	"iter"
	"reflect"
	"sync"
)

// MemoryStorage implements Store in process memory. It backs local
// development and the handler tests; data does not survive a restart.
type MemoryStorage struct {
	mu          sync.Mutex
	collections map[string]*MemoryCollection
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		collections: make(map[string]*MemoryCollection),
	}
}

// Collection implements Store.Collection
func (s *MemoryStorage) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &MemoryCollection{name: name}
		s.collections[name] = c
	}
	return c
}

// Ping implements Store.Ping
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Store.Close
func (s *MemoryStorage) Close(ctx context.Context) error {
	return nil
}

// MemoryCollection keeps documents in insertion order
type MemoryCollection struct {
	name string
	mu   sync.RWMutex
	docs []Document
}

// Name implements Collection.Name
func (c *MemoryCollection) Name() string {
	return c.name
}

// FindOne implements Collection.FindOne
func (c *MemoryCollection) FindOne(ctx context.Context, filter Filter) (Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexOf(filter); i >= 0 {
		return cloneDocument(c.docs[i]), true, nil
	}
	return nil, false, nil
}

// Find implements Collection.Find
func (c *MemoryCollection) Find(ctx context.Context, filter Filter, opts ...FindOption) iter.Seq2[Document, error] {
	o := ApplyFindOptions(opts...)

	return func(yield func(Document, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}

		// Snapshot under the lock, yield outside it
		c.mu.RLock()
		var matched []Document
		for _, doc := range c.docs {
			if o.Limit > 0 && int64(len(matched)) >= o.Limit {
				break
			}
			if Matches(doc, filter) {
				matched = append(matched, cloneDocument(doc))
			}
		}
		c.mu.RUnlock()

		for _, doc := range matched {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// InsertOne implements Collection.InsertOne
func (c *MemoryCollection) InsertOne(ctx context.Context, doc Document) (*InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := cloneDocument(doc)
	if _, ok := stored[FieldID]; !ok {
		stored[FieldID] = NewID()
	}

	c.mu.Lock()
	c.docs = append(c.docs, stored)
	c.mu.Unlock()

	return &InsertResult{Acknowledged: true, InsertedID: stored[FieldID]}, nil
}

// UpdateOne implements Collection.UpdateOne
func (c *MemoryCollection) UpdateOne(ctx context.Context, filter Filter, set Document, upsert bool) (*UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(filter)
	if i < 0 {
		if !upsert {
			return &UpdateResult{Acknowledged: true}, nil
		}
		created := make(Document, len(filter)+len(set)+1)
		for k, v := range filter {
			created[k] = cloneValue(v)
		}
		for k, v := range set {
			created[k] = cloneValue(v)
		}
		if _, ok := created[FieldID]; !ok {
			created[FieldID] = NewID()
		}
		c.docs = append(c.docs, created)
		return &UpdateResult{
			Acknowledged:  true,
			UpsertedCount: 1,
			UpsertedID:    created[FieldID],
		}, nil
	}

	doc := c.docs[i]
	modified := false
	for k, v := range set {
		if k == FieldID {
			continue
		}
		if existing, ok := doc[k]; !ok || !reflect.DeepEqual(existing, v) {
			doc[k] = cloneValue(v)
			modified = true
		}
	}

	result := &UpdateResult{Acknowledged: true, MatchedCount: 1}
	if modified {
		result.ModifiedCount = 1
	}
	return result, nil
}

// ReplaceOne implements Collection.ReplaceOne
func (c *MemoryCollection) ReplaceOne(ctx context.Context, filter Filter, replacement Document) (*UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(filter)
	if i < 0 {
		return &UpdateResult{Acknowledged: true}, nil
	}

	old := c.docs[i]
	next := cloneDocument(replacement)
	next[FieldID] = old[FieldID]
	c.docs[i] = next

	result := &UpdateResult{Acknowledged: true, MatchedCount: 1}
	if !reflect.DeepEqual(old, next) {
		result.ModifiedCount = 1
	}
	return result, nil
}

// DeleteOne implements Collection.DeleteOne
func (c *MemoryCollection) DeleteOne(ctx context.Context, filter Filter) (*DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(filter)
	if i < 0 {
		return &DeleteResult{Acknowledged: true}, nil
	}
	c.docs = append(c.docs[:i], c.docs[i+1:]...)
	return &DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}

// indexOf must be called with the lock held
func (c *MemoryCollection) indexOf(filter Filter) int {
	for i, doc := range c.docs {
		if Matches(doc, filter) {
			return i
		}
	}
	return -1
}

// Matches reports whether every filter field equals the document field
func Matches(doc Document, filter Filter) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Document:
		return cloneDocument(t)
	case map[string]interface{}:
		return map[string]interface{}(cloneDocument(Document(t)))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
