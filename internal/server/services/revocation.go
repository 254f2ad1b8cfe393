package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/drmkeeper/internal/dbx"
	"github.com/dmitrijs2005/drmkeeper/internal/logging"
	sc "github.com/dmitrijs2005/drmkeeper/internal/server/config"
	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/sessions"
)

// Publisher delivers a revocation event to a user's live clients.
// Implementations must be non-blocking; delivery is best effort.
type Publisher interface {
	PublishToUser(ctx context.Context, userID string, event models.RevocationEvent) error
}

// RevocationResult summarizes one revocation cascade.
type RevocationResult struct {
	LicensesRevoked     int
	SessionsDeactivated int
}

// RevocationService runs the revocation cascade for an upload: revoke all
// licenses, deactivate the content key, deactivate all sessions, then push
// best-effort notifications. The cascade is one transaction; the pushes
// happen only after it commits.
type RevocationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	publisher   Publisher
	logger      logging.Logger
}

// NewRevocationService constructs a RevocationService.
func NewRevocationService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config,
	publisher Publisher, logger logging.Logger) *RevocationService {
	return &RevocationService{
		db:          db,
		repomanager: m,
		config:      cfg,
		publisher:   publisher,
		logger:      logger.With("module", "revocation"),
	}
}

// Revoke cascades a revocation across the upload's licenses, key, and
// sessions. Revoking an upload with nothing active is a no-op, not an
// error, so retries are safe. Push failures are logged and never fail the
// call: the database state is already committed and heartbeats will catch
// any client the push missed.
func (s *RevocationService) Revoke(ctx context.Context, uploadID string) (*RevocationResult, error) {
	var (
		revokedLicenses []*models.License
		closedSessions  []*sessions.RevokedSession
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		licenseRepo := s.repomanager.Licenses(tx)
		keyRepo := s.repomanager.ContentKeys(tx)
		sessionRepo := s.repomanager.Sessions(tx)

		var err error
		revokedLicenses, err = licenseRepo.RevokeAllForUpload(ctx, uploadID)
		if err != nil {
			return fmt.Errorf("error revoking licenses: %v", err)
		}

		if _, err := keyRepo.Deactivate(ctx, uploadID); err != nil {
			return fmt.Errorf("error deactivating key: %v", err)
		}

		closedSessions, err = sessionRepo.DeactivateAllForUpload(ctx, uploadID)
		if err != nil {
			return fmt.Errorf("error deactivating sessions: %v", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, uploadID, closedSessions)

	return &RevocationResult{
		LicensesRevoked:     len(revokedLicenses),
		SessionsDeactivated: len(closedSessions),
	}, nil
}

func (s *RevocationService) notify(ctx context.Context, uploadID string, closed []*sessions.RevokedSession) {
	for _, sess := range closed {
		pushCtx, cancel := context.WithTimeout(ctx, s.config.PushTimeout)
		err := s.publisher.PublishToUser(pushCtx, sess.UserID, models.RevocationEvent{
			Action:       models.ActionRevoked,
			UploadID:     uploadID,
			SessionToken: sess.Token,
		})
		cancel()
		if err != nil {
			s.logger.Warn(ctx, "revocation push failed",
				"upload_id", uploadID, "user_id", sess.UserID, "session_id", sess.SessionID, "error", err)
		}
	}
}
