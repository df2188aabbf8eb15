package aggregate

import "github.com/sentinel-access/sentinel/server/internal/sentinel/types"

// AllDevices selects every device in the filtered projections.
const AllDevices = "all"

// Snapshot is an immutable view of the store at one point in time. Logs and
// Alerts are newest first.
type Snapshot struct {
	Logs   []types.AccessEvent
	Alerts []types.SecurityAlert
	Stats  types.DashboardStats
}

func matchesDevice(filter, deviceID string) bool {
	return filter == "" || filter == AllDevices || filter == deviceID
}

func (s Snapshot) FilteredLogs(deviceID string) []types.AccessEvent {
	out := make([]types.AccessEvent, 0, len(s.Logs))
	for _, ev := range s.Logs {
		if matchesDevice(deviceID, ev.DeviceID) {
			out = append(out, ev)
		}
	}
	return out
}

func (s Snapshot) FilteredAlerts(deviceID string) []types.SecurityAlert {
	out := make([]types.SecurityAlert, 0, len(s.Alerts))
	for _, a := range s.Alerts {
		if matchesDevice(deviceID, a.DeviceID) {
			out = append(out, a)
		}
	}
	return out
}

// RecentNotifications returns up to limit notified events, newest first.
// A non-positive limit means DefaultNotificationLimit.
func (s Snapshot) RecentNotifications(limit int) []types.AccessEvent {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	out := make([]types.AccessEvent, 0, min(limit, len(s.Logs)))
	for _, ev := range s.Logs {
		if len(out) == limit {
			break
		}
		if ev.NotificationSent {
			out = append(out, ev)
		}
	}
	return out
}
