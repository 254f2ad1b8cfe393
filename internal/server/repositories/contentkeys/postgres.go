package contentkeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
	"github.com/dmitrijs2005/drmkeeper/internal/dbx"
	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository implements content-key storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetActive(ctx context.Context, uploadID string) (*models.ContentKey, error) {
	query := `
		SELECT id, upload_id, encrypted_key, storage_key, active, created_at
		FROM content_keys
		WHERE upload_id = $1 AND active
	`
	key := &models.ContentKey{}
	err := r.db.QueryRowContext(ctx, query, uploadID).Scan(
		&key.ID, &key.UploadID, &key.EncryptedKey, &key.StorageKey, &key.Active, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrKeyNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return key, nil
}

func (r *PostgresRepository) Create(ctx context.Context, key *models.ContentKey) (*models.ContentKey, error) {
	query := `
		INSERT INTO content_keys (upload_id, encrypted_key, storage_key, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		key.UploadID, key.EncryptedKey, key.StorageKey).Scan(&key.ID, &key.CreatedAt)
	if err != nil {
		// The partial unique index rejects a second active row per upload.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, common.ErrKeyAlreadyActive
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	key.Active = true
	return key, nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, uploadID string) (int64, error) {
	query := `
		UPDATE content_keys SET active = FALSE
		WHERE upload_id = $1 AND active
	`
	res, err := r.db.ExecContext(ctx, query, uploadID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) GetLatest(ctx context.Context, uploadID string) (*models.ContentKey, error) {
	query := `
		SELECT id, upload_id, encrypted_key, storage_key, active, created_at
		FROM content_keys
		WHERE upload_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	key := &models.ContentKey{}
	err := r.db.QueryRowContext(ctx, query, uploadID).Scan(
		&key.ID, &key.UploadID, &key.EncryptedKey, &key.StorageKey, &key.Active, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return key, nil
}
