package store

import (
	"context"
	"errors"
	"time"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate reports a write that found its id already stored. The
	// stored row is left as it was.
	ErrDuplicate = errors.New("record already exists")
)

// LogStore persists access events. SaveLog inserts by event id; saving an id
// that already exists leaves the stored row untouched and returns
// ErrDuplicate.
type LogStore interface {
	AllLogs(ctx context.Context) ([]types.AccessEvent, error)
	SaveLog(ctx context.Context, ev types.AccessEvent) error
}

type UserStore interface {
	AllUsers(ctx context.Context) ([]types.User, error)
	SaveUser(ctx context.Context, u types.User) error
	DeleteUser(ctx context.Context, id string) error
}

type DeviceStore interface {
	AllDevices(ctx context.Context) ([]types.Device, error)
	SaveDevice(ctx context.Context, d types.Device) error
	// MarkDeviceSeen flips a known device online and stamps last_seen.
	// Returns ErrNotFound for unregistered devices.
	MarkDeviceSeen(ctx context.Context, id string, t time.Time) error
	// MarkDevicesOfflineBefore flips every online device whose last_seen is
	// older than cutoff to offline and returns how many changed.
	MarkDevicesOfflineBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type SettingsStore interface {
	// Settings returns nil, nil when nothing is stored under key.
	Settings(ctx context.Context, key string) (*types.NotificationSettings, error)
	SaveSettings(ctx context.Context, key string, v types.NotificationSettings) error
}

// Gateway is the full durable store the monitor depends on.
type Gateway interface {
	LogStore
	UserStore
	DeviceStore
	SettingsStore
	Ping(ctx context.Context) error
}
