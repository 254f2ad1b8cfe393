package models

import "time"

// Session is a live-use handle tied to a license, kept alive by client
// heartbeats. One active session exists per (LicenseID, DeviceID); opening
// the pair again refreshes LastHeartbeat instead of inserting. INACTIVE is
// terminal: a revoked session requires a brand-new license.
type Session struct {
	ID            string
	LicenseID     string
	Token         string
	DeviceID      string
	StartedAt     time.Time
	LastHeartbeat time.Time
	Active        bool
}
