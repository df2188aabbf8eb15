package service

import "errors"

var (
	ErrInvalidDeviceID = errors.New("device_id is required")
	ErrInvalidDevice   = errors.New("invalid device")
	ErrInvalidUser     = errors.New("invalid user")
	ErrInvalidSettings = errors.New("invalid notification settings")
	ErrInvalidEvent    = errors.New("invalid terminal event")

	ErrUnknownDevice = errors.New("unknown device")
	ErrUnknownUser   = errors.New("unknown user")
	ErrDuplicateUser = errors.New("user already exists")

	// ErrSyncInProgress rejects a manual sync while another one is running.
	ErrSyncInProgress = errors.New("manual sync already in progress")
)
