package types

import "time"

type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
)

const (
	DefaultDevicePort  = "4370"
	DefaultDeviceModel = "ZKTeco F22"
)

type Device struct {
	ID        string       `json:"id"`
	Name      string       `json:"name" validate:"required,max=128,nocontrol"`
	Location  string       `json:"location" validate:"max=128,nocontrol"`
	IPAddress string       `json:"ip_address" validate:"omitempty,ip"`
	Port      string       `json:"port" validate:"omitempty,numeric"`
	Model     string       `json:"model" validate:"max=64"`
	Status    DeviceStatus `json:"status"`
	LastSeen  *time.Time   `json:"last_seen,omitempty"`
}

type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncPending SyncStatus = "pending"
	SyncError   SyncStatus = "error"
)

type User struct {
	ID             string     `json:"id" validate:"required,max=64"`
	Name           string     `json:"name" validate:"required,max=128,nocontrol"`
	Department     string     `json:"department" validate:"max=128,nocontrol"`
	PrimaryMethod  Method     `json:"primary_method" validate:"required"`
	EnrollmentDate time.Time  `json:"enrollment_date"`
	SyncStatus     SyncStatus `json:"sync_status"`
}
