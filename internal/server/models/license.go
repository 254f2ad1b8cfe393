package models

import "time"

// License is a time-boxed grant binding a user+device to a device-wrapped
// content key for one upload. Licenses are never updated in place: each
// issuance inserts a new row, and Revoked flips to true only through the
// revocation cascade, never back.
type License struct {
	ID               string
	UploadID         string
	UserID           string
	DeviceID         string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	DeviceWrappedKey string
	Revoked          bool
}
