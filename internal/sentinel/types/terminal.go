package types

// TerminalEvent is what a door terminal reports for one access attempt.
type TerminalEvent struct {
	ID         string `json:"id,omitempty"`
	DeviceID   string `json:"device_id"`
	UserID     string `json:"user_id,omitempty"`
	Method     Method `json:"method"`
	Status     Status `json:"status"`
	Detail     string `json:"detail,omitempty"`
	OccurredAt string `json:"occurred_at,omitempty"` // optional device timestamp
}

type TerminalEventResponse struct {
	OK               bool   `json:"ok"`
	EventID          string `json:"event_id"`
	Status           Status `json:"status"`
	NotificationSent bool   `json:"notification_sent"`
	Persisted        bool   `json:"persisted"`
	Duplicate        bool   `json:"duplicate,omitempty"`
	ServerTime       string `json:"server_time"`
}

type HeartbeatRequest struct {
	DeviceID        string `json:"device_id"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	UptimeSeconds   uint64 `json:"uptime_s,omitempty"`
	IP              string `json:"ip,omitempty"`
}

type HeartbeatResponse struct {
	OK         bool   `json:"ok"`
	Known      bool   `json:"known"`
	DeviceID   string `json:"device_id"`
	ServerTime string `json:"server_time"`
}
