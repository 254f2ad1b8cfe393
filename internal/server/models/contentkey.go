// Package models defines the persistence types owned by the DRM subsystem.
package models

import "time"

// ContentKey is one row of the per-upload content-key lifecycle. The key
// material itself is stored wrapped under the process master secret; the
// plaintext exists only transiently during license issuance and rotation.
//
// Invariant: for a given UploadID at most one row has Active=true. Rows are
// deactivated on revoke, never deleted, and superseded by a new active row
// on rotation.
type ContentKey struct {
	ID           string
	UploadID     string
	EncryptedKey string
	StorageKey   string
	Active       bool
	CreatedAt    time.Time
}
