package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/store"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

func (s *Store) AllUsers(ctx context.Context) ([]types.User, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, department, primary_method, sync_status, enrolled_at_ms
FROM users
ORDER BY id;
`)
	if err != nil {
		return nil, fmt.Errorf("AllUsers query: %w", err)
	}
	defer rows.Close()

	var out []types.User
	for rows.Next() {
		var (
			u          types.User
			method     string
			syncStatus string
			enrolledMs int64
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Department, &method, &syncStatus, &enrolledMs); err != nil {
			s.skip("users", u.ID, err.Error())
			continue
		}
		u.PrimaryMethod = types.Method(method)
		if !u.PrimaryMethod.Valid() {
			s.skip("users", u.ID, "unknown method "+method)
			continue
		}
		u.SyncStatus = types.SyncStatus(syncStatus)
		u.EnrollmentDate = time.UnixMilli(enrolledMs).UTC()
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("AllUsers rows: %w", err)
	}
	return out, nil
}

// SaveUser upserts u. The original enrollment date survives updates that
// leave EnrollmentDate zero.
func (s *Store) SaveUser(ctx context.Context, u types.User) error {
	now := time.Now().UTC()
	var enrolledMs any
	if !u.EnrollmentDate.IsZero() {
		enrolledMs = u.EnrollmentDate.UTC().UnixMilli()
	}
	if u.SyncStatus == "" {
		u.SyncStatus = types.SyncPending
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO users(id, name, department, primary_method, sync_status, enrolled_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, COALESCE(?, ?), ?)
ON CONFLICT(id) DO UPDATE SET
  name           = excluded.name,
  department     = excluded.department,
  primary_method = excluded.primary_method,
  sync_status    = excluded.sync_status,
  enrolled_at_ms = COALESCE(?, users.enrolled_at_ms),
  updated_at_ms  = excluded.updated_at_ms;
`,
			u.ID, u.Name, u.Department, string(u.PrimaryMethod), string(u.SyncStatus),
			enrolledMs, now.UnixMilli(), now.UnixMilli(), enrolledMs,
		); err != nil {
			return fmt.Errorf("SaveUser upsert: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?;`, id)
		if err != nil {
			return fmt.Errorf("DeleteUser: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("DeleteUser rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}
