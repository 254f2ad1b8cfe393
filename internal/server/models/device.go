package models

import "time"

// Device is one registered playback device of a user. The set is bounded by
// the per-user device quota, enforced across all uploads.
type Device struct {
	UserID       string
	DeviceID     string
	RegisteredAt time.Time
	LastSeen     time.Time
}
