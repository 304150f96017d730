// Package postgres stores session state in PostgreSQL, one row per session key.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/storefront/internal/storage"
	"github.com/utafrali/storefront/pkg/database"
)

// Migrations holds the schema for the session_store table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// DB is the subset of pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements storage.Store for one session using PostgreSQL.
type Store struct {
	db        DB
	sessionID string
}

// NewStore creates a PostgreSQL-backed store for sessionID.
func NewStore(db DB, sessionID string) *Store {
	return &Store{db: db, sessionID: sessionID}
}

// Get retrieves the JSON value of key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM session_store WHERE session_id = $1 AND key = $2`

	ctx, end := database.Instrument(ctx, "postgresql", "get", query)
	var value []byte
	err := s.db.QueryRow(ctx, query, s.sessionID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		end(nil)
		return nil, storage.KeyNotFound(key)
	}
	end(err)
	if err != nil {
		return nil, fmt.Errorf("select session key %s: %w", key, err)
	}
	return value, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO session_store (session_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	ctx, end := database.Instrument(ctx, "postgresql", "set", query)
	_, err := s.db.Exec(ctx, query, s.sessionID, key, value)
	end(err)
	if err != nil {
		return fmt.Errorf("upsert session key %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM session_store WHERE session_id = $1 AND key = $2`

	ctx, end := database.Instrument(ctx, "postgresql", "delete", query)
	_, err := s.db.Exec(ctx, query, s.sessionID, key)
	end(err)
	if err != nil {
		return fmt.Errorf("delete session key %s: %w", key, err)
	}
	return nil
}

// Factory opens PostgreSQL stores sharing one pool.
type Factory struct {
	db DB
}

// NewFactory creates a factory of PostgreSQL session stores.
func NewFactory(db DB) *Factory {
	return &Factory{db: db}
}

// ForSession returns the store of sessionID.
func (f *Factory) ForSession(sessionID string) storage.Store {
	return NewStore(f.db, sessionID)
}

// PurgeStale deletes every session key not written since before cutoff and
// returns the number of rows removed.
func (f *Factory) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM session_store WHERE updated_at < $1`

	ctx, end := database.Instrument(ctx, "postgresql", "purge", query)
	ct, err := f.db.Exec(ctx, query, cutoff)
	end(err)
	if err != nil {
		return 0, fmt.Errorf("purge stale sessions: %w", err)
	}
	return ct.RowsAffected(), nil
}
