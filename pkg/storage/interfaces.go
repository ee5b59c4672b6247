package storage

import (
	"context"
	"iter"
	"time"
)

// Collection names as they exist in the document store
const (
	CollectionCars    = "cars"
	CollectionOrders  = "orders"
	CollectionReviews = "review"
	CollectionUsers   = "users"
)

// Well-known document fields
const (
	FieldID        = "_id"
	FieldEmail     = "email"
	FieldName      = "name"
	FieldRole      = "role"
	FieldMainAdmin = "mainAdmin"
	FieldMain      = "main"
	FieldTitle     = "title"
	FieldStatus    = "status"
	FieldUniqueID  = "uniqueId"
	FieldUser      = "user"
)

// RoleAdmin is the only stored role value; a user without the field has no role
const RoleAdmin = "admin"

// Document is a schemaless record as stored in a collection
type Document map[string]interface{}

// Filter selects documents by top-level field equality
type Filter map[string]interface{}

// FindOptions controls Find
type FindOptions struct {
	Limit int64 // 0 means no limit
}

// FindOption mutates FindOptions
type FindOption func(*FindOptions)

// WithLimit caps the number of documents yielded by Find
func WithLimit(n int64) FindOption {
	return func(o *FindOptions) {
		o.Limit = n
	}
}

// ApplyFindOptions folds opts into a FindOptions value
func ApplyFindOptions(opts ...FindOption) FindOptions {
	var o FindOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Collection is the uniform access contract every backend implements for
// each of the four record collections. There are no cross-collection joins
// and no transactions.
type Collection interface {
	// Name returns the collection name
	Name() string

	// FindOne returns the first document matching filter. The bool reports
	// presence; a missing document is not an error.
	FindOne(ctx context.Context, filter Filter) (Document, bool, error)

	// Find lazily yields documents matching filter. Iteration stops at the
	// first error, which is yielded with a nil document.
	Find(ctx context.Context, filter Filter, opts ...FindOption) iter.Seq2[Document, error]

	// InsertOne stores doc, generating an _id when absent
	InsertOne(ctx context.Context, doc Document) (*InsertResult, error)

	// UpdateOne sets the fields of set on the first document matching
	// filter. With upsert, a missing document is created from the filter
	// equality fields plus set.
	UpdateOne(ctx context.Context, filter Filter, set Document, upsert bool) (*UpdateResult, error)

	// ReplaceOne swaps the whole body of the first document matching
	// filter for replacement, keeping the stored _id. Fields absent from
	// replacement are removed.
	ReplaceOne(ctx context.Context, filter Filter, replacement Document) (*UpdateResult, error)

	// DeleteOne removes the first document matching filter
	DeleteOne(ctx context.Context, filter Filter) (*DeleteResult, error)
}

// Store owns the process-wide connection and hands out collections
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// InsertResult mirrors the document-store insert acknowledgement
type InsertResult struct {
	Acknowledged bool        `json:"acknowledged"`
	InsertedID   interface{} `json:"insertedId"`
}

// UpdateResult mirrors the document-store update acknowledgement
type UpdateResult struct {
	Acknowledged  bool        `json:"acknowledged"`
	MatchedCount  int64       `json:"matchedCount"`
	ModifiedCount int64       `json:"modifiedCount"`
	UpsertedCount int64       `json:"upsertedCount"`
	UpsertedID    interface{} `json:"upsertedId"`
}

// DeleteResult mirrors the document-store delete acknowledgement
type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

// Collect drains a Find sequence. The result is never nil so it encodes as [].
func Collect(seq iter.Seq2[Document, error]) ([]Document, error) {
	docs := make([]Document, 0)
	for doc, err := range seq {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Config selects and tunes the storage backend
type Config struct {
	Type string // "memory", "mongo", "postgres"

	// MongoDB config
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration

	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             "memory",
		MongoDatabase:    "sorumCars",
		MongoTimeout:     10 * time.Second,
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
	}
}
