// Package devices provides the PostgreSQL-backed registry of a user's
// playback devices and the per-user quota enforcement.
package devices

import (
	"context"

	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
)

// Repository is the storage contract for device registrations.
type Repository interface {
	// LockUser serializes concurrent quota checks for one user for the
	// duration of the surrounding transaction.
	LockUser(ctx context.Context, userID string) error

	// RegisterOrTouch registers a new device for the user, or refreshes
	// last-seen when the device is already registered. Registering a new
	// device while the user already holds maxDevices registrations fails
	// with common.ErrDeviceLimitExceeded; a repeat of a known device never
	// counts against the quota.
	RegisterOrTouch(ctx context.Context, userID, deviceID string, maxDevices int) error

	// ListForUser returns the user's registrations, oldest first.
	ListForUser(ctx context.Context, userID string) ([]*models.Device, error)

	// Remove deletes a registration, freeing a quota slot.
	Remove(ctx context.Context, userID, deviceID string) error
}
