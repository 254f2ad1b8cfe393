package licenses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
	"github.com/dmitrijs2005/drmkeeper/internal/dbx"
	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
)

// PostgresRepository implements license storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, lic *models.License) (*models.License, error) {
	query := `
		INSERT INTO licenses (upload_id, user_id, device_id, issued_at, expires_at, device_wrapped_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		lic.UploadID, lic.UserID, lic.DeviceID, lic.IssuedAt, lic.ExpiresAt, lic.DeviceWrappedKey,
	).Scan(&lic.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return lic, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.License, error) {
	query := `
		SELECT id, upload_id, user_id, device_id, issued_at, expires_at, device_wrapped_key, revoked
		FROM licenses
		WHERE id = $1
	`
	lic := &models.License{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&lic.ID, &lic.UploadID, &lic.UserID, &lic.DeviceID,
		&lic.IssuedAt, &lic.ExpiresAt, &lic.DeviceWrappedKey, &lic.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrLicenseNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return lic, nil
}

func (r *PostgresRepository) RevokeAllForUpload(ctx context.Context, uploadID string) ([]*models.License, error) {
	query := `
		UPDATE licenses SET revoked = TRUE
		WHERE upload_id = $1 AND NOT revoked
		RETURNING id, upload_id, user_id, device_id, issued_at, expires_at, device_wrapped_key, revoked
	`
	rows, err := r.db.QueryContext(ctx, query, uploadID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.License
	for rows.Next() {
		lic := &models.License{}
		if err := rows.Scan(
			&lic.ID, &lic.UploadID, &lic.UserID, &lic.DeviceID,
			&lic.IssuedAt, &lic.ExpiresAt, &lic.DeviceWrappedKey, &lic.Revoked,
		); err != nil {
			return nil, err
		}
		result = append(result, lic)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
