package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

// Settings returns nil, nil when key has never been saved. A stored value
// that no longer decodes is treated the same way, so callers fall back to
// defaults.
func (s *Store) Settings(ctx context.Context, key string) (*types.NotificationSettings, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?;`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Settings query: %w", err)
	}

	var v types.NotificationSettings
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.skip("settings", key, err.Error())
		return nil, nil
	}
	return &v, nil
}

func (s *Store) SaveSettings(ctx context.Context, key string, v types.NotificationSettings) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("SaveSettings encode: %w", err)
	}
	now := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO settings(key, value, updated_at_ms) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  value         = excluded.value,
  updated_at_ms = excluded.updated_at_ms;
`, key, string(raw), now); err != nil {
			return fmt.Errorf("SaveSettings upsert: %w", err)
		}
		return nil
	})
}
