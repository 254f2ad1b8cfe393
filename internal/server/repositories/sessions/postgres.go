package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
	"github.com/dmitrijs2005/drmkeeper/internal/dbx"
	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
)

// PostgresRepository implements session storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, s *models.Session) (*models.Session, error) {
	query := `
		INSERT INTO sessions (license_id, token, device_id, started_at, last_heartbeat)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (license_id, device_id)
		DO UPDATE SET last_heartbeat = EXCLUDED.last_heartbeat, token = EXCLUDED.token
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		s.LicenseID, s.Token, s.DeviceID, s.StartedAt).Scan(&s.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.LastHeartbeat = s.StartedAt
	s.Active = true
	return s, nil
}

func (r *PostgresRepository) GetActiveByToken(ctx context.Context, token string) (*models.Session, error) {
	query := `
		SELECT id, license_id, token, device_id, started_at, last_heartbeat, active
		FROM sessions
		WHERE token = $1 AND active
	`
	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&s.ID, &s.LicenseID, &s.Token, &s.DeviceID, &s.StartedAt, &s.LastHeartbeat, &s.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrSessionNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE sessions SET last_heartbeat = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE sessions SET active = FALSE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeactivateAllForUpload(ctx context.Context, uploadID string) ([]*RevokedSession, error) {
	query := `
		UPDATE sessions SET active = FALSE
		FROM licenses
		WHERE sessions.license_id = licenses.id
		  AND licenses.upload_id = $1
		  AND sessions.active
		RETURNING sessions.id, sessions.token, licenses.user_id
	`
	rows, err := r.db.QueryContext(ctx, query, uploadID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*RevokedSession
	for rows.Next() {
		rs := &RevokedSession{}
		if err := rows.Scan(&rs.SessionID, &rs.Token, &rs.UserID); err != nil {
			return nil, err
		}
		result = append(result, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
