// Package store persists imported collections in PostgreSQL. It implements
// the persistence contract the format handler registry expects; preview
// imports never reach it.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/apiscribe/apiscribe/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL persistence layer for collections, requests, and
// environments.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// CreateCollection inserts a collection and all of its requests, including
// those in nested folders, in one transaction. A missing ID is assigned.
func (s *Store) CreateCollection(ctx context.Context, col *schemas.Collection) error {
	if col.ID == "" {
		col.ID = uuid.NewString()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	variables, err := encodeJSONB(col.Variables)
	if err != nil {
		return fmt.Errorf("failed to encode collection variables: %w", err)
	}
	_, err = tx.Exec(ctx, `
        INSERT INTO collections (id, name, description, variables, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            description = EXCLUDED.description,
            variables = EXCLUDED.variables;
    `, col.ID, col.Name, col.Description, variables, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}

	if err := s.insertRequests(ctx, tx, col); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) insertRequests(ctx context.Context, tx pgx.Tx, col *schemas.Collection) error {
	var requests []schemas.Request
	col.WalkRequests(func(r *schemas.Request) {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		requests = append(requests, *r)
	})
	if len(requests) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	sql := `
        INSERT INTO requests (id, collection_id, name, protocol, method, url, definition, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            protocol = EXCLUDED.protocol,
            method = EXCLUDED.method,
            url = EXCLUDED.url,
            definition = EXCLUDED.definition;
    `
	for _, r := range requests {
		definition, err := encodeJSONB(r)
		if err != nil {
			return fmt.Errorf("failed to encode request %s: %w", r.Name, err)
		}
		batch.Queue(sql, r.ID, col.ID, r.Name, string(r.Protocol), r.Method, r.URL, definition, now)
	}

	br := tx.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send batch: batch results is nil")
	}
	defer func() {
		_ = br.Close()
	}()
	for i := range requests {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert request %s: %w", requests[i].Name, err)
		}
	}
	return nil
}

// CreateRequest inserts a single request under an existing collection.
func (s *Store) CreateRequest(ctx context.Context, collectionID string, req *schemas.Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	definition, err := encodeJSONB(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
        INSERT INTO requests (id, collection_id, name, protocol, method, url, definition, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
    `, req.ID, collectionID, req.Name, string(req.Protocol), req.Method, req.URL, definition, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

// CreateEnvironment inserts an environment with its variables.
func (s *Store) CreateEnvironment(ctx context.Context, env *schemas.Environment) error {
	variables, err := encodeJSONB(env.Variables)
	if err != nil {
		return fmt.Errorf("failed to encode environment variables: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
        INSERT INTO environments (name, variables, created_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (name) DO UPDATE SET variables = EXCLUDED.variables;
    `, env.Name, variables, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert environment: %w", err)
	}
	return nil
}

// SetVariable upserts one variable inside an environment's JSONB map.
func (s *Store) SetVariable(ctx context.Context, environment, key, value string) error {
	_, err := s.pool.Exec(ctx, `
        UPDATE environments
        SET variables = jsonb_set(COALESCE(variables, '{}'::jsonb), ARRAY[$2], to_jsonb($3::text))
        WHERE name = $1;
    `, environment, key, value)
	if err != nil {
		return fmt.Errorf("failed to set variable %s: %w", key, err)
	}
	return nil
}

// GetCollection loads a collection and its requests.
func (s *Store) GetCollection(ctx context.Context, id string) (*schemas.Collection, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT definition
        FROM requests
        WHERE collection_id = $1
        ORDER BY created_at ASC, name ASC;
    `, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	col := &schemas.Collection{ID: id}
	for rows.Next() {
		var definition []byte
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("failed to scan request row: %w", err)
		}
		var req schemas.Request
		if err := json.Unmarshal(definition, &req); err != nil {
			return nil, fmt.Errorf("failed to decode request definition: %w", err)
		}
		col.Requests = append(col.Requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return col, nil
}

func encodeJSONB(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		data = []byte("{}")
	}
	return data, nil
}
