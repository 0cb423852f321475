package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/sqlc-dev/pqtype"
)

// PostgresStorage implements Storage on the client_storage table.
//
// Values must be valid JSON; they are stored in a JSONB column. The table is
// created by the goose migrations in internal/migrations.
type PostgresStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStorage wraps an open database handle.
func NewPostgresStorage(db *sql.DB, logger *slog.Logger) *PostgresStorage {
	return &PostgresStorage{db: db, logger: logger}
}

const (
	getValueQuery = `SELECT value FROM client_storage WHERE key = $1`

	setValueQuery = `
INSERT INTO client_storage (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	deleteValueQuery = `DELETE FROM client_storage WHERE key = $1`
)

// Get retrieves the value at key.
func (s *PostgresStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, &StorageError{Op: "Get", Key: key, Err: err}
	}

	var value pqtype.NullRawMessage
	err := s.db.QueryRowContext(ctx, getValueQuery, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &StorageError{Op: "Get", Key: key, Err: ErrNotFound}
		}
		return nil, &StorageError{Op: "Get", Key: key, Err: err}
	}
	if !value.Valid {
		return nil, &StorageError{Op: "Get", Key: key, Err: ErrNotFound}
	}
	return value.RawMessage, nil
}

// Set upserts value at key.
func (s *PostgresStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Set", Key: key, Err: err}
	}
	if len(value) > MaxValueSize {
		return &StorageError{Op: "Set", Key: key, Err: ErrTooLarge}
	}
	if !json.Valid(value) {
		return &StorageError{Op: "Set", Key: key, Err: errors.New("value is not valid JSON")}
	}

	raw := pqtype.NullRawMessage{RawMessage: json.RawMessage(value), Valid: true}
	if _, err := s.db.ExecContext(ctx, setValueQuery, key, raw); err != nil {
		return &StorageError{Op: "Set", Key: key, Err: err}
	}

	s.logger.Debug("stored value in postgres", "key", key, "size", len(value))
	return nil
}

// Delete removes key.
func (s *PostgresStorage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}

	if _, err := s.db.ExecContext(ctx, deleteValueQuery, key); err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}
	return nil
}
