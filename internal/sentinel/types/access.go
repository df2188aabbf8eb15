package types

import "time"

type Status string

const (
	StatusGranted Status = "GRANTED"
	StatusDenied  Status = "DENIED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusGranted, StatusDenied:
		return true
	}
	return false
}

type Method string

const (
	MethodFingerprint Method = "FINGERPRINT"
	MethodCard        Method = "RFID_CARD"
	MethodPasscode    Method = "PASSCODE"
	MethodFace        Method = "FACE"
)

// Methods lists every access method in a fixed order.
var Methods = [...]Method{MethodFingerprint, MethodCard, MethodPasscode, MethodFace}

func (m Method) Valid() bool {
	switch m {
	case MethodFingerprint, MethodCard, MethodPasscode, MethodFace:
		return true
	}
	return false
}

// Unknown subject recorded on unauthorized attempts.
const (
	UnknownUserID     = "N/A"
	UnknownUserName   = "Restricted User"
	UnknownDepartment = "Unknown"
)

type AccessEvent struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	UserID           string    `json:"user_id"`
	UserName         string    `json:"user_name"`
	Department       string    `json:"department"`
	DeviceID         string    `json:"device_id"`
	DeviceName       string    `json:"device_name,omitempty"`
	Method           Method    `json:"method"`
	Status           Status    `json:"status"`
	Detail           string    `json:"detail,omitempty"`
	NotificationSent bool      `json:"notification_sent"`
}

// IsUnknownSubject reports whether the event carries the unknown sentinel subject.
func (e AccessEvent) IsUnknownSubject() bool {
	return e.UserID == UnknownUserID
}

// DeviceLabel is the device name when known, otherwise its id.
func (e AccessEvent) DeviceLabel() string {
	if e.DeviceName != "" {
		return e.DeviceName
	}
	return e.DeviceID
}
