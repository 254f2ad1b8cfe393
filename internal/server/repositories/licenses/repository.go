// Package licenses provides the PostgreSQL-backed repository for license
// rows issued by the DRM subsystem.
package licenses

import (
	"context"

	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
)

// Repository is the storage contract for license rows. Licenses are
// insert-only apart from the revoked flag, which only ever flips to true.
type Repository interface {
	// Create inserts a new license row and fills in the generated ID.
	Create(ctx context.Context, lic *models.License) (*models.License, error)

	// GetByID returns a license or common.ErrLicenseNotFound.
	GetByID(ctx context.Context, id string) (*models.License, error)

	// RevokeAllForUpload marks every non-revoked license of an upload as
	// revoked and returns the affected rows. An already-revoked upload
	// yields an empty slice, making the revocation cascade idempotent.
	RevokeAllForUpload(ctx context.Context, uploadID string) ([]*models.License, error)
}
