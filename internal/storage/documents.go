package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domerrors "github.com/garyellow/lullabot-go/internal/errors"
)

const slowQueryThreshold = 100 * time.Millisecond

// Load decodes the document stored under key into dst. It reports false,
// leaving dst untouched, when no document exists.
func (db *DB) Load(ctx context.Context, key string, dst any) (bool, error) {
	start := time.Now()
	defer func() {
		if d := time.Since(start); d > slowQueryThreshold {
			logSlow(ctx, "Load", d)
		}
	}()

	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM documents WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: load %s: %w", domerrors.ErrStorage, key, err)
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("%w: decode %s: %w", domerrors.ErrStorage, key, err)
	}
	return true, nil
}

// Save replaces the document stored under key. Concurrent writers to the
// same key are last-writer-wins.
func (db *DB) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", domerrors.ErrStorage, key, err)
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO documents (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, string(data), time.Now().Unix())
	if err != nil {
		slog.ErrorContext(ctx, "failed to save document", "key", key, "error", err)
		return fmt.Errorf("%w: save %s: %w", domerrors.ErrStorage, key, err)
	}

	if d := time.Since(start); d > slowQueryThreshold {
		logSlow(ctx, "Save", d)
	}
	return nil
}

// Keys lists stored document keys in order. Used by the import tool's
// dry-run output.
func (db *DB) Keys(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT key FROM documents ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("%w: list keys: %w", domerrors.ErrStorage, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%w: scan key: %w", domerrors.ErrStorage, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list keys: %w", domerrors.ErrStorage, err)
	}
	return keys, nil
}

func logSlow(ctx context.Context, op string, d time.Duration) {
	slog.WarnContext(ctx, "slow database operation",
		"operation", op,
		"duration_ms", d.Milliseconds())
}
