package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rpggio/blueprint/internal/repository"
)

// KVStore implements repository.KeyValueRepository for SQLite.
// A positive capacity bounds the total bytes of keys and values.
type KVStore struct {
	db       *DB
	capacity int64
}

// NewKVStore creates a new KVStore. capacity <= 0 disables the quota.
func NewKVStore(db *DB, capacity int64) *KVStore {
	return &KVStore{db: db, capacity: capacity}
}

// Get returns the value stored under key
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return value, nil
}

// Set writes value under key, rejecting the write if it would exceed capacity
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return repository.ErrInvalidInput
	}
	if value == nil {
		value = []byte{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if s.capacity > 0 {
		var used int64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(length(CAST(key AS BLOB)) + length(value)), 0) FROM kv WHERE key != ?`,
			key,
		).Scan(&used)
		if err != nil {
			return fmt.Errorf("failed to measure usage: %w", err)
		}
		if used+int64(len(key)+len(value)) > s.capacity {
			return repository.ErrQuotaExceeded
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		if isStorageFull(err) {
			return repository.ErrQuotaExceeded
		}
		return fmt.Errorf("failed to set key: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isStorageFull(err) {
			return repository.ErrQuotaExceeded
		}
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Keys lists keys starting with prefix in lexical order
func (s *KVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	// substr avoids LIKE wildcard escaping for '_' and '%' in ids.
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`,
		utf8.RuneCountInString(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keys: %w", err)
	}
	return keys, nil
}

// Usage returns the bytes counted against capacity
func (s *KVStore) Usage(ctx context.Context) (int64, error) {
	var used int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(length(CAST(key AS BLOB)) + length(value)), 0) FROM kv`,
	).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("failed to measure usage: %w", err)
	}
	return used, nil
}
