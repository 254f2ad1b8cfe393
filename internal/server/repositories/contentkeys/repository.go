// Package contentkeys provides the PostgreSQL-backed repository that owns
// the per-upload content-key rows.
package contentkeys

import (
	"context"

	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
)

// Repository is the storage contract for content-key rows. Implementations
// must uphold the at-most-one-active-per-upload invariant; the PostgreSQL
// implementation does so with a partial unique index.
type Repository interface {
	// GetActive returns the single active key for an upload, or
	// common.ErrKeyNotFound when the upload is unprotected or currently
	// revoked-and-not-yet-rotated.
	GetActive(ctx context.Context, uploadID string) (*models.ContentKey, error)

	// Create inserts a new active key row. It returns
	// common.ErrKeyAlreadyActive when an active row already exists.
	Create(ctx context.Context, key *models.ContentKey) (*models.ContentKey, error)

	// Deactivate clears the active flag on the current active row and
	// reports how many rows changed (0 when nothing was active).
	Deactivate(ctx context.Context, uploadID string) (int64, error)

	// GetLatest returns the most recent key row regardless of the active
	// flag, or common.ErrorNotFound. Rotation uses it to locate the old
	// encrypted blob.
	GetLatest(ctx context.Context, uploadID string) (*models.ContentKey, error)
}
