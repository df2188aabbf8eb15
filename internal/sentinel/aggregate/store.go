package aggregate

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

const (
	LogWindowSize   = 100
	AlertWindowSize = 15

	DefaultNotificationLimit = 10
)

// AlertFor derives the alert raised by a denied event. The alert id is the
// event id, which keeps rebuilds reproducible.
func AlertFor(ev types.AccessEvent) *types.SecurityAlert {
	if ev.Status != types.StatusDenied {
		return nil
	}
	return &types.SecurityAlert{
		ID:        ev.ID,
		Timestamp: ev.Timestamp,
		Severity:  types.SeverityHigh,
		Message:   fmt.Sprintf("BREACH ALERT: Access Denied for %s at %s", ev.UserName, ev.DeviceLabel()),
		DeviceID:  ev.DeviceID,
	}
}

// DeltaFor is the counter change an event contributes.
func DeltaFor(ev types.AccessEvent) types.StatsDelta {
	switch ev.Status {
	case types.StatusGranted:
		return types.StatsDelta{Granted: 1}
	case types.StatusDenied:
		return types.StatsDelta{Denied: 1}
	}
	return types.StatsDelta{}
}

// NewerEvent orders events most recent first: by timestamp, then by id
// descending so equal timestamps still have one order.
func NewerEvent(a, b types.AccessEvent) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

func newerAlert(a, b types.SecurityAlert) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

// Store owns the recent log and alert windows and the dashboard counters.
// All writes are single locked commits, so readers never see an event
// without its alert or counter update.
type Store struct {
	mu     sync.RWMutex
	logs   *Window[types.AccessEvent]
	alerts *Window[types.SecurityAlert]
	stats  types.DashboardStats
}

func NewStore() *Store {
	return &Store{
		logs:   NewWindow[types.AccessEvent](LogWindowSize),
		alerts: NewWindow[types.SecurityAlert](AlertWindowSize),
	}
}

// Apply commits one processed event. Counters always move; the event and
// its alert land at their timestamp position in the windows, so a
// back-dated event may sit behind newer ones or fall off entirely.
func (s *Store) Apply(ev types.AccessEvent, alert *types.SecurityAlert, activeUsers int, now time.Time) {
	delta := DeltaFor(ev)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs.Insert(ev, NewerEvent)
	if alert != nil {
		s.alerts.Insert(*alert, newerAlert)
	}
	s.stats.TotalEntries += delta.Granted
	s.stats.FailedAttempts += delta.Denied
	s.stats.ActiveUsers = activeUsers
	s.stats.LastSync = now
}

// SetActiveUsers updates the user count outside of an event commit, e.g.
// after a user is added or removed.
func (s *Store) SetActiveUsers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ActiveUsers = n
}

// Rebuild replaces all state from the full durable log set. The result
// depends only on the input set, not its order.
func (s *Store) Rebuild(events []types.AccessEvent, activeUsers int, now time.Time) {
	sorted := make([]types.AccessEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return NewerEvent(sorted[i], sorted[j]) })

	var (
		stats  types.DashboardStats
		alerts []types.SecurityAlert
	)
	for _, ev := range sorted {
		d := DeltaFor(ev)
		stats.TotalEntries += d.Granted
		stats.FailedAttempts += d.Denied
		if len(alerts) < AlertWindowSize {
			if a := AlertFor(ev); a != nil {
				alerts = append(alerts, *a)
			}
		}
	}
	stats.ActiveUsers = activeUsers
	stats.LastSync = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs.Reset(sorted)
	s.alerts.Reset(alerts)
	s.stats = stats
}

// Log returns the windowed event with the given id.
func (s *Store) Log(id string) (types.AccessEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logs.Find(func(ev types.AccessEvent) bool { return ev.ID == id })
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Logs:   s.logs.Items(),
		Alerts: s.alerts.Items(),
		Stats:  s.stats,
	}
}
