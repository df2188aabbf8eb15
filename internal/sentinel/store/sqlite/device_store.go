package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/store"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

func (s *Store) AllDevices(ctx context.Context) ([]types.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, location, ip_address, port, model, status, last_seen_at_ms
FROM devices
ORDER BY id;
`)
	if err != nil {
		return nil, fmt.Errorf("AllDevices query: %w", err)
	}
	defer rows.Close()

	var out []types.Device
	for rows.Next() {
		var (
			d        types.Device
			status   string
			lastSeen sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Location, &d.IPAddress, &d.Port,
			&d.Model, &status, &lastSeen); err != nil {
			s.skip("devices", d.ID, err.Error())
			continue
		}
		d.Status = types.DeviceStatus(status)
		if lastSeen.Valid {
			t := time.UnixMilli(lastSeen.Int64).UTC()
			d.LastSeen = &t
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("AllDevices rows: %w", err)
	}
	return out, nil
}

func (s *Store) SaveDevice(ctx context.Context, d types.Device) error {
	now := time.Now().UTC().UnixMilli()
	var lastSeen any
	if d.LastSeen != nil {
		lastSeen = d.LastSeen.UTC().UnixMilli()
	}
	if d.Status == "" {
		d.Status = types.DeviceOffline
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO devices(id, name, location, ip_address, port, model, status, last_seen_at_ms, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name            = excluded.name,
  location        = excluded.location,
  ip_address      = excluded.ip_address,
  port            = excluded.port,
  model           = excluded.model,
  status          = excluded.status,
  last_seen_at_ms = COALESCE(excluded.last_seen_at_ms, devices.last_seen_at_ms),
  updated_at_ms   = excluded.updated_at_ms;
`,
			d.ID, d.Name, d.Location, d.IPAddress, d.Port, d.Model, string(d.Status),
			lastSeen, now, now,
		); err != nil {
			return fmt.Errorf("SaveDevice upsert: %w", err)
		}
		return nil
	})
}

// MarkDeviceSeen flips a registered device online. Unlike terminals, devices
// are never created implicitly by a heartbeat.
func (s *Store) MarkDeviceSeen(ctx context.Context, id string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE devices
SET status          = 'online',
    last_seen_at_ms = ?,
    updated_at_ms   = ?
WHERE id = ?;
`, ms, ms, id)
		if err != nil {
			return fmt.Errorf("MarkDeviceSeen update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("MarkDeviceSeen rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *Store) MarkDevicesOfflineBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()
	now := time.Now().UTC().UnixMilli()

	var affected int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE devices
SET status        = 'offline',
    updated_at_ms = ?
WHERE status = 'online'
  AND (last_seen_at_ms IS NULL OR last_seen_at_ms < ?);
`, now, cutoffMs)
		if err != nil {
			return fmt.Errorf("MarkDevicesOfflineBefore: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}
