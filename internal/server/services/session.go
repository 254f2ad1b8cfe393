package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/repomanager"
)

// SessionService processes client heartbeats. The heartbeat is the
// authoritative enforcement point for revocation: every beat re-reads the
// license row, so a revoked license is detected within one interval even if
// the push notification was lost.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewSessionService constructs a SessionService.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager) *SessionService {
	return &SessionService{db: db, repomanager: m}
}

// Heartbeat validates a session token and records the beat. An unknown or
// inactive token yields common.ErrSessionNotFound. A beat against a revoked
// license deactivates the session and yields common.ErrLicenseRevoked; the
// next beat with the same token then gets common.ErrSessionNotFound, making
// deactivation terminal.
func (s *SessionService) Heartbeat(ctx context.Context, token string) (*models.Session, error) {
	sessionRepo := s.repomanager.Sessions(s.db)
	licenseRepo := s.repomanager.Licenses(s.db)

	sess, err := sessionRepo.GetActiveByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	lic, err := licenseRepo.GetByID(ctx, sess.LicenseID)
	if err != nil {
		// a session pointing at a missing license is a data-integrity
		// fault; surface it as-is rather than masking it
		if errors.Is(err, common.ErrLicenseNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error loading license: %v", err)
	}

	if lic.Revoked {
		if err := sessionRepo.Deactivate(ctx, sess.ID); err != nil {
			return nil, fmt.Errorf("error deactivating session: %v", err)
		}
		return nil, common.ErrLicenseRevoked
	}

	now := time.Now()
	if err := sessionRepo.Touch(ctx, sess.ID, now); err != nil {
		return nil, fmt.Errorf("error recording heartbeat: %v", err)
	}

	sess.LastHeartbeat = now
	return sess, nil
}
