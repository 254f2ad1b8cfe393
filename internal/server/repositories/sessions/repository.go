// Package sessions provides the PostgreSQL-backed repository for viewing
// sessions tracked per license and device.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
)

// RevokedSession carries the bits of a deactivated session needed to notify
// the owning user's live clients after a revocation cascade.
type RevokedSession struct {
	SessionID string
	Token     string
	UserID    string
}

// Repository is the storage contract for session rows.
type Repository interface {
	// Upsert opens a session for (LicenseID, DeviceID) or, when the pair
	// already has a row, refreshes its last-heartbeat and token instead
	// of inserting. The generated ID is filled in.
	Upsert(ctx context.Context, s *models.Session) (*models.Session, error)

	// GetActiveByToken resolves an active session by its opaque token.
	// Inactive or unknown tokens yield common.ErrSessionNotFound, which
	// makes INACTIVE a terminal state for heartbeat callers.
	GetActiveByToken(ctx context.Context, token string) (*models.Session, error)

	// Touch records a successful heartbeat.
	Touch(ctx context.Context, id string, at time.Time) error

	// Deactivate marks a single session inactive.
	Deactivate(ctx context.Context, id string) error

	// DeactivateAllForUpload marks every active session belonging to any
	// license of the upload as inactive and returns what was deactivated,
	// joined with the owning user for best-effort notification.
	DeactivateAllForUpload(ctx context.Context, uploadID string) ([]*RevokedSession, error)
}
