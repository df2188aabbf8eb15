package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/store"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

func (s *Store) AllLogs(ctx context.Context) ([]types.AccessEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, occurred_at_ms, user_id, user_name, department,
       device_id, device_name, method, status, detail, notification_sent
FROM access_logs
ORDER BY occurred_at_ms DESC, id DESC;
`)
	if err != nil {
		return nil, fmt.Errorf("AllLogs query: %w", err)
	}
	defer rows.Close()

	var out []types.AccessEvent
	for rows.Next() {
		var (
			id                     string
			occurredMs             sql.NullInt64
			userID, userName, dept sql.NullString
			deviceID, deviceName   sql.NullString
			method, status, detail sql.NullString
			notified               int
		)
		if err := rows.Scan(&id, &occurredMs, &userID, &userName, &dept,
			&deviceID, &deviceName, &method, &status, &detail, &notified); err != nil {
			s.skip("access_logs", id, err.Error())
			continue
		}

		ev := types.AccessEvent{
			ID:               id,
			UserID:           userID.String,
			UserName:         userName.String,
			Department:       dept.String,
			DeviceID:         deviceID.String,
			DeviceName:       deviceName.String,
			Method:           types.Method(method.String),
			Status:           types.Status(status.String),
			Detail:           detail.String,
			NotificationSent: notified == 1,
		}
		switch {
		case id == "":
			s.skip("access_logs", id, "empty id")
			continue
		case !occurredMs.Valid:
			s.skip("access_logs", id, "missing timestamp")
			continue
		case !ev.Status.Valid():
			s.skip("access_logs", id, "unknown status "+status.String)
			continue
		case !ev.Method.Valid():
			s.skip("access_logs", id, "unknown method "+method.String)
			continue
		case ev.DeviceID == "":
			s.skip("access_logs", id, "missing device")
			continue
		}
		ev.Timestamp = time.UnixMilli(occurredMs.Int64).UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("AllLogs rows: %w", err)
	}
	return out, nil
}

// SaveLog inserts ev; an id that is already stored is left untouched.
func (s *Store) SaveLog(ctx context.Context, ev types.AccessEvent) error {
	if ev.ID == "" {
		return errors.New("SaveLog: empty id")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	var notified int
	if ev.NotificationSent {
		notified = 1
	}
	storedMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO access_logs(
  id, occurred_at_ms, user_id, user_name, department,
  device_id, device_name, method, status, detail, notification_sent, stored_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING;
`,
			ev.ID, ev.Timestamp.UTC().UnixMilli(), ev.UserID, ev.UserName, ev.Department,
			ev.DeviceID, ev.DeviceName, string(ev.Method), string(ev.Status), ev.Detail,
			notified, storedMs,
		)
		if err != nil {
			return fmt.Errorf("SaveLog insert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("SaveLog rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("access log %s: %w", ev.ID, store.ErrDuplicate)
		}
		return nil
	})
}
