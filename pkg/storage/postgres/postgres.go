package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/sorumcars/sorum/pkg/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// replicaHealthInterval is how often unreachable replicas are pruned
const replicaHealthInterval = 30 * time.Second

// collections created by Migrate
var collections = []string{
	storage.CollectionCars,
	storage.CollectionOrders,
	storage.CollectionReviews,
	storage.CollectionUsers,
}

// emailKeyed collections hold at most one document per email
var emailKeyed = map[string]bool{
	storage.CollectionReviews: true,
	storage.CollectionUsers:   true,
}

// PostgresStorage keeps each collection as a table of JSONB documents.
// The record identifier lives in its own column; every other field is in doc.
type PostgresStorage struct {
	conns      *ConnectionManager
	stopHealth context.CancelFunc
}

// NewPostgresStorage connects using config and ensures the schema exists
func NewPostgresStorage(ctx context.Context, config storage.Config, log logrus.FieldLogger) (*PostgresStorage, error) {
	conns, err := NewConnectionManager(connectionConfig(config, log))
	if err != nil {
		return nil, err
	}

	s := NewPostgresStorageFromManager(conns)
	if err := s.Migrate(ctx); err != nil {
		conns.Close()
		return nil, err
	}

	if len(conns.replicas) > 0 {
		healthCtx, cancel := context.WithCancel(context.Background())
		conns.StartHealthCheckRoutine(healthCtx, replicaHealthInterval)
		s.stopHealth = cancel
	}
	return s, nil
}

func connectionConfig(config storage.Config, log logrus.FieldLogger) ConnectionConfig {
	return ConnectionConfig{
		PrimaryURL:  config.PostgresURL,
		ReplicaURLs: ParseReplicaURLs(config.PostgresReplicaURLs),
		MaxConns:    config.PostgresMaxConns,
		MinConns:    config.PostgresMinConns,
		Timeout:     config.PostgresTimeout,
		MaxLifetime: 1 * time.Hour,
		MaxIdleTime: 10 * time.Minute,
		Logger:      log,
	}
}

// NewPostgresStorageFromManager wraps an existing connection manager
func NewPostgresStorageFromManager(conns *ConnectionManager) *PostgresStorage {
	return &PostgresStorage{conns: conns}
}

// Migrate creates the collection tables when missing.
// Email-keyed tables also get a unique index on the document email.
func (s *PostgresStorage) Migrate(ctx context.Context) error {
	for _, name := range collections {
		table := pq.QuoteIdentifier(name)
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			doc JSONB NOT NULL DEFAULT '{}'::jsonb
		)`, table)
		if _, err := s.conns.Primary().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", name, err)
		}

		index := pq.QuoteIdentifier(name + "_doc_gin")
		stmt = fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (doc jsonb_path_ops)`, index, table)
		if _, err := s.conns.Primary().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to index table %s: %w", name, err)
		}

		if !emailKeyed[name] {
			continue
		}
		index = pq.QuoteIdentifier(name + "_email_key")
		stmt = fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s ((doc->>'email'))`, index, table)
		if _, err := s.conns.Primary().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to index table %s: %w", name, err)
		}
	}
	return nil
}

// Collection implements storage.Store.Collection
func (s *PostgresStorage) Collection(name string) storage.Collection {
	return &Collection{name: name, table: pq.QuoteIdentifier(name), conns: s.conns}
}

// Ping implements storage.Store.Ping
func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.conns.HealthCheck(ctx)
}

// Close implements storage.Store.Close
func (s *PostgresStorage) Close(_ context.Context) error {
	if s.stopHealth != nil {
		s.stopHealth()
	}
	return s.conns.Close()
}

// Collection is a single JSONB table
type Collection struct {
	name  string
	table string
	conns *ConnectionManager
}

// Name implements storage.Collection.Name
func (c *Collection) Name() string {
	return c.name
}

// FindOne implements storage.Collection.FindOne. It reads from the primary
// so a check that precedes a write sees the latest state.
func (c *Collection) FindOne(ctx context.Context, filter storage.Filter) (storage.Document, bool, error) {
	where, args, err := buildWhere(filter, 1)
	if err != nil {
		return nil, false, err
	}

	query := fmt.Sprintf(`SELECT id, doc FROM %s WHERE %s ORDER BY seq LIMIT 1`, c.table, where)
	var (
		id  string
		raw []byte
	)
	err = c.conns.Primary().QueryRowContext(ctx, query, args...).Scan(&id, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find one in %s: %w", c.name, err)
	}

	doc, err := decode(id, raw)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s document: %w", c.name, err)
	}
	return doc, true, nil
}

// Find implements storage.Collection.Find. Listings are served by a replica.
func (c *Collection) Find(ctx context.Context, filter storage.Filter, opts ...storage.FindOption) iter.Seq2[storage.Document, error] {
	o := storage.ApplyFindOptions(opts...)

	return func(yield func(storage.Document, error) bool) {
		where, args, err := buildWhere(filter, 1)
		if err != nil {
			yield(nil, err)
			return
		}

		query := fmt.Sprintf(`SELECT id, doc FROM %s WHERE %s ORDER BY seq`, c.table, where)
		if o.Limit > 0 {
			query += fmt.Sprintf(` LIMIT %d`, o.Limit)
		}

		rows, err := c.conns.Replica().QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("find in %s: %w", c.name, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id  string
				raw []byte
			)
			if err := rows.Scan(&id, &raw); err != nil {
				yield(nil, fmt.Errorf("scan %s document: %w", c.name, err))
				return
			}
			doc, err := decode(id, raw)
			if err != nil {
				yield(nil, fmt.Errorf("decode %s document: %w", c.name, err))
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate %s: %w", c.name, err))
		}
	}
}

// InsertOne implements storage.Collection.InsertOne
func (c *Collection) InsertOne(ctx context.Context, doc storage.Document) (*storage.InsertResult, error) {
	id, err := idFor(doc[storage.FieldID])
	if err != nil {
		return nil, err
	}

	body, err := encode(doc)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)`, c.table)
	if _, err := c.conns.Primary().ExecContext(ctx, query, id.key, body); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", c.name, err)
	}
	return &storage.InsertResult{Acknowledged: true, InsertedID: id.value}, nil
}

// UpdateOne implements storage.Collection.UpdateOne
func (c *Collection) UpdateOne(ctx context.Context, filter storage.Filter, set storage.Document, upsert bool) (*storage.UpdateResult, error) {
	body, err := encode(set)
	if err != nil {
		return nil, err
	}

	result, err := c.rewrite(ctx, filter, `t.doc || $1::jsonb`, body)
	if err != nil || result.MatchedCount > 0 || !upsert {
		return result, err
	}

	seed := storage.Document{}
	for k, v := range filter {
		seed[k] = v
	}
	for k, v := range set {
		seed[k] = v
	}
	id, err := idFor(seed[storage.FieldID])
	if err != nil {
		return nil, err
	}
	seedBody, err := encode(seed)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb) ON CONFLICT DO NOTHING`, c.table)
	res, err := c.conns.Primary().ExecContext(ctx, query, id.key, seedBody)
	if err != nil {
		return nil, fmt.Errorf("upsert into %s: %w", c.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("upsert into %s: %w", c.name, err)
	}
	if n == 0 {
		// a concurrent upsert created the document first
		result, err = c.rewrite(ctx, filter, `t.doc || $1::jsonb`, body)
		if err != nil {
			return nil, err
		}
		if result.MatchedCount == 0 {
			return nil, fmt.Errorf("upsert into %s: conflicting document does not match filter", c.name)
		}
		return result, nil
	}
	return &storage.UpdateResult{
		Acknowledged:  true,
		UpsertedCount: 1,
		UpsertedID:    id.value,
	}, nil
}

// ReplaceOne implements storage.Collection.ReplaceOne
func (c *Collection) ReplaceOne(ctx context.Context, filter storage.Filter, replacement storage.Document) (*storage.UpdateResult, error) {
	body, err := encode(replacement)
	if err != nil {
		return nil, err
	}
	return c.rewrite(ctx, filter, `$1::jsonb`, body)
}

// rewrite sets doc to expr on the first row matching filter and reports
// whether the stored body changed
func (c *Collection) rewrite(ctx context.Context, filter storage.Filter, expr string, body []byte) (*storage.UpdateResult, error) {
	where, args, err := buildWhere(filter, 2)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`WITH target AS (
		SELECT id, doc FROM %[1]s WHERE %[2]s ORDER BY seq LIMIT 1 FOR UPDATE
	)
	UPDATE %[1]s AS t SET doc = %[3]s FROM target
	WHERE t.id = target.id
	RETURNING t.doc IS DISTINCT FROM target.doc`, c.table, where, expr)

	var changed bool
	err = c.conns.Primary().QueryRowContext(ctx, query, append([]interface{}{body}, args...)...).Scan(&changed)
	if errors.Is(err, sql.ErrNoRows) {
		return &storage.UpdateResult{Acknowledged: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", c.name, err)
	}

	result := &storage.UpdateResult{Acknowledged: true, MatchedCount: 1}
	if changed {
		result.ModifiedCount = 1
	}
	return result, nil
}

// DeleteOne implements storage.Collection.DeleteOne
func (c *Collection) DeleteOne(ctx context.Context, filter storage.Filter) (*storage.DeleteResult, error) {
	where, args, err := buildWhere(filter, 1)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`DELETE FROM %[1]s WHERE id = (SELECT id FROM %[1]s WHERE %[2]s ORDER BY seq LIMIT 1)`, c.table, where)
	res, err := c.conns.Primary().ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("delete from %s: %w", c.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("delete from %s: %w", c.name, err)
	}
	return &storage.DeleteResult{Acknowledged: true, DeletedCount: n}, nil
}

// buildWhere turns an equality filter into a predicate. The identifier is
// matched on its column, every other field by JSONB containment. Placeholders
// are numbered from first.
func buildWhere(filter storage.Filter, first int) (string, []interface{}, error) {
	var (
		conds []string
		args  []interface{}
	)

	if raw, ok := filter[storage.FieldID]; ok {
		id, err := idFor(raw)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, fmt.Sprintf("id = $%d", first))
		args = append(args, id.key)
		first++
	}

	rest := storage.Without(storage.Document(filter), storage.FieldID)
	if len(rest) > 0 {
		body, err := json.Marshal(rest)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter: %w", err)
		}
		conds = append(conds, fmt.Sprintf("doc @> $%d::jsonb", first))
		args = append(args, body)
	}

	if len(conds) == 0 {
		return "TRUE", nil, nil
	}
	return strings.Join(conds, " AND "), args, nil
}

type recordID struct {
	key   string
	value interface{}
}

// idFor normalizes an identifier to its column key. A nil id gets a fresh one.
func idFor(raw interface{}) (recordID, error) {
	switch v := raw.(type) {
	case nil:
		id := storage.NewID()
		return recordID{key: id.Hex(), value: id}, nil
	case primitive.ObjectID:
		return recordID{key: v.Hex(), value: v}, nil
	case string:
		return recordID{key: v, value: v}, nil
	default:
		return recordID{}, fmt.Errorf("unsupported identifier type %T", raw)
	}
}

func encode(doc storage.Document) ([]byte, error) {
	body, err := json.Marshal(storage.Without(doc, storage.FieldID))
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return body, nil
}

func decode(id string, raw []byte) (storage.Document, error) {
	doc := storage.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		doc[storage.FieldID] = oid
	} else {
		doc[storage.FieldID] = id
	}
	return doc, nil
}
