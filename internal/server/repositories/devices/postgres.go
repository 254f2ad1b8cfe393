package devices

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
	"github.com/dmitrijs2005/drmkeeper/internal/dbx"
	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
)

// PostgresRepository implements the device registry over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// LockUser takes a transaction-scoped advisory lock keyed by the user ID.
// Two concurrent issuances for the same user cannot both observe
// "count < max" and both insert; the lock is released at commit/rollback.
func (r *PostgresRepository) LockUser(ctx context.Context, userID string) error {
	query := `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RegisterOrTouch(ctx context.Context, userID, deviceID string, maxDevices int) error {
	// The insert is attempted only while the user's other registrations
	// stay under the quota; an already-registered device always takes the
	// conflict path and just refreshes last_seen. Zero rows affected means
	// the device was new and the quota was full.
	query := `
		INSERT INTO devices (user_id, device_id)
		SELECT $1, $2
		WHERE (SELECT COUNT(*) FROM devices WHERE user_id = $1 AND device_id <> $2) < $3
		ON CONFLICT (user_id, device_id)
		DO UPDATE SET last_seen = now()
	`
	res, err := r.db.ExecContext(ctx, query, userID, deviceID, maxDevices)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrDeviceLimitExceeded
	}
	return nil
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]*models.Device, error) {
	query := `
		SELECT user_id, device_id, registered_at, last_seen
		FROM devices
		WHERE user_id = $1
		ORDER BY registered_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Device
	for rows.Next() {
		d := &models.Device{}
		if err := rows.Scan(&d.UserID, &d.DeviceID, &d.RegisteredAt, &d.LastSeen); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Remove(ctx context.Context, userID, deviceID string) error {
	query := `DELETE FROM devices WHERE user_id = $1 AND device_id = $2`
	res, err := r.db.ExecContext(ctx, query, userID, deviceID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
