package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type seedDevice struct {
	id, name, location, ip, model string
}

type seedUser struct {
	id, name, department, method string
}

var (
	devDevices = []seedDevice{
		{"dev-main", "Main Entrance", "Lobby", "192.168.1.201", "ZKTeco F22"},
		{"dev-srv-a", "Server Hall A", "Floor 2", "192.168.1.202", "ZKTeco F22"},
		{"dev-cage-7", "Cage 7", "Floor 2", "192.168.1.203", "ZKTeco SpeedFace-V5L"},
	}
	devUsers = []seedUser{
		{"u-1001", "Alice Moreno", "Network Ops", "FINGERPRINT"},
		{"u-1002", "Bilal Haddad", "Facilities", "RFID_CARD"},
		{"u-1003", "Chen Wei", "Security", "FACE"},
		{"u-1004", "Dana Kowalski", "Customer Success", "PASSCODE"},
	}
)

// SeedDev inserts a demo device/user set. Existing rows are left alone, so
// it is safe to run on every dev start.
func SeedDev(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC().UnixMilli()

	for _, d := range devDevices {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO devices(id, name, location, ip_address, port, model, status, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, '4370', ?, 'offline', ?, ?);`,
			d.id, d.name, d.location, d.ip, d.model, now, now); err != nil {
			return fmt.Errorf("seed device %s: %w", d.id, err)
		}
	}

	for _, u := range devUsers {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO users(id, name, department, primary_method, sync_status, enrolled_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, 'synced', ?, ?);`,
			u.id, u.name, u.department, u.method, now, now); err != nil {
			return fmt.Errorf("seed user %s: %w", u.id, err)
		}
	}

	return nil
}
