package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/store"
	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

// ErrInjected is returned by operations failed on purpose via FailLogWrites
// or FailReads.
var ErrInjected = errors.New("memory store: injected failure")

// Store is an in-memory Gateway. It is intended for use in tests and dev
// environments.
type Store struct {
	mu sync.RWMutex

	logs     []types.AccessEvent
	logIndex map[string]int
	users    map[string]types.User
	devices  map[string]types.Device
	settings map[string]types.NotificationSettings

	failLogWrites bool
	failReads     bool
	saveLogCalls  int
}

func New() *Store {
	return &Store{
		logIndex: make(map[string]int),
		users:    make(map[string]types.User),
		devices:  make(map[string]types.Device),
		settings: make(map[string]types.NotificationSettings),
	}
}

// FailLogWrites makes every SaveLog call fail until turned off.
func (s *Store) FailLogWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogWrites = fail
}

// FailReads makes every All* and Settings call fail until turned off.
func (s *Store) FailReads(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads = fail
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failReads {
		return ErrInjected
	}
	return nil
}

// ── Logs ─────────────────────────────────────────────────────────────────────

func (s *Store) AllLogs(_ context.Context) ([]types.AccessEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failReads {
		return nil, ErrInjected
	}
	out := make([]types.AccessEvent, len(s.logs))
	copy(out, s.logs)
	return out, nil
}

func (s *Store) SaveLog(_ context.Context, ev types.AccessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLogCalls++
	if s.failLogWrites {
		return ErrInjected
	}
	if _, ok := s.logIndex[ev.ID]; ok {
		return store.ErrDuplicate
	}
	s.logIndex[ev.ID] = len(s.logs)
	s.logs = append(s.logs, ev)
	return nil
}

// SaveLogCalls returns how many times SaveLog was invoked. Test-only helper.
func (s *Store) SaveLogCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLogCalls
}

// ── Users ────────────────────────────────────────────────────────────────────

func (s *Store) AllUsers(_ context.Context) ([]types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failReads {
		return nil, ErrInjected
	}
	out := make([]types.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveUser(_ context.Context, u types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.ID]; ok && u.EnrollmentDate.IsZero() {
		u.EnrollmentDate = existing.EnrollmentDate
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// ── Devices ──────────────────────────────────────────────────────────────────

func (s *Store) AllDevices(_ context.Context) ([]types.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failReads {
		return nil, ErrInjected
	}
	out := make([]types.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveDevice(_ context.Context, d types.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.ID] = d
	return nil
}

func (s *Store) MarkDeviceSeen(_ context.Context, id string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return store.ErrNotFound
	}
	d.Status = types.DeviceOnline
	d.LastSeen = &t
	s.devices[id] = d
	return nil
}

func (s *Store) MarkDevicesOfflineBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, d := range s.devices {
		if d.Status != types.DeviceOnline {
			continue
		}
		if d.LastSeen == nil || d.LastSeen.Before(cutoff) {
			d.Status = types.DeviceOffline
			s.devices[id] = d
			n++
		}
	}
	return n, nil
}

// ── Settings ─────────────────────────────────────────────────────────────────

func (s *Store) Settings(_ context.Context, key string) (*types.NotificationSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failReads {
		return nil, ErrInjected
	}
	v, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *Store) SaveSettings(_ context.Context, key string, v types.NotificationSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = v
	return nil
}
