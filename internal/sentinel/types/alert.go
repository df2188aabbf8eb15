package types

import "time"

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type SecurityAlert struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Resolved  bool      `json:"resolved"`
	DeviceID  string    `json:"device_id,omitempty"`
}

type DashboardStats struct {
	TotalEntries   int       `json:"total_entries"`
	FailedAttempts int       `json:"failed_attempts"`
	ActiveUsers    int       `json:"active_users"`
	LastSync       time.Time `json:"last_sync"`
}

// StatsDelta is the counter change produced by one processed event.
type StatsDelta struct {
	Granted int `json:"granted"`
	Denied  int `json:"denied"`
}
