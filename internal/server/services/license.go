package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
	"github.com/dmitrijs2005/drmkeeper/internal/cryptox"
	"github.com/dmitrijs2005/drmkeeper/internal/dbx"
	sc "github.com/dmitrijs2005/drmkeeper/internal/server/config"
	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/repomanager"
)

// AccessChecker answers whether a user currently holds an approved access
// grant for an upload. The verdict is consulted fresh on every issuance and
// never cached.
type AccessChecker interface {
	HasValidAccess(ctx context.Context, uploadID, userID string) (bool, error)
}

// IssueRequest carries everything needed to issue one license.
type IssueRequest struct {
	UploadID           string
	UserID             string
	DeviceID           string
	DevicePublicKeyPEM []byte
	Profile            cryptox.DeviceProfile
}

// IssueResult is the successful outcome of license issuance: a license row,
// the device-wrapped content key, and an open session.
type IssueResult struct {
	LicenseID        string
	SessionToken     string
	DeviceWrappedKey string
	ExpiresAt        time.Time
}

// LicenseService issues licenses: it checks access, enforces the device
// quota, unwraps the upload's active content key, rewraps it for the
// requesting device, and opens a session, all atomically.
type LicenseService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	envelope    *cryptox.Envelope
	access      AccessChecker
}

// NewLicenseService constructs a LicenseService.
func NewLicenseService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config,
	env *cryptox.Envelope, access AccessChecker) *LicenseService {
	return &LicenseService{
		db:          db,
		repomanager: m,
		config:      cfg,
		envelope:    env,
		access:      access,
	}
}

// Issue runs the issuance chain for one request. Failures surface as
// sentinel errors: common.ErrAccessDenied without an approved grant,
// common.ErrDeviceLimitExceeded when a new device would exceed the quota,
// common.ErrKeyNotFound when the upload has no active key, and
// common.ErrInvalidPublicKey for an unparsable device key. Nothing persists
// unless every step succeeds.
func (s *LicenseService) Issue(ctx context.Context, req *IssueRequest) (*IssueResult, error) {
	ok, err := s.access.HasValidAccess(ctx, req.UploadID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("error checking access: %v", err)
	}
	if !ok {
		return nil, common.ErrAccessDenied
	}

	token, err := common.MakeRandHexString(common.SessionTokenSize)
	if err != nil {
		return nil, common.ErrorInternal
	}

	var result *IssueResult
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		deviceRepo := s.repomanager.Devices(tx)
		keyRepo := s.repomanager.ContentKeys(tx)
		licenseRepo := s.repomanager.Licenses(tx)
		sessionRepo := s.repomanager.Sessions(tx)

		if err := deviceRepo.LockUser(ctx, req.UserID); err != nil {
			return fmt.Errorf("error locking user: %v", err)
		}
		if err := deviceRepo.RegisterOrTouch(ctx, req.UserID, req.DeviceID, s.config.MaxDevices); err != nil {
			return err
		}

		key, err := keyRepo.GetActive(ctx, req.UploadID)
		if err != nil {
			return err
		}

		contentKey, err := s.envelope.DecryptKey(key.EncryptedKey)
		if err != nil {
			return common.ErrorInternal
		}

		wrapped, err := cryptox.WrapKeyForDevice(contentKey, req.DevicePublicKeyPEM, req.Profile)
		if err != nil {
			return err
		}

		now := time.Now()
		lic, err := licenseRepo.Create(ctx, &models.License{
			UploadID:         req.UploadID,
			UserID:           req.UserID,
			DeviceID:         req.DeviceID,
			IssuedAt:         now,
			ExpiresAt:        now.Add(s.config.LicenseTTL),
			DeviceWrappedKey: wrapped,
		})
		if err != nil {
			return fmt.Errorf("error creating license: %v", err)
		}

		sess, err := sessionRepo.Upsert(ctx, &models.Session{
			LicenseID:     lic.ID,
			Token:         token,
			DeviceID:      req.DeviceID,
			StartedAt:     now,
			LastHeartbeat: now,
			Active:        true,
		})
		if err != nil {
			return fmt.Errorf("error opening session: %v", err)
		}

		result = &IssueResult{
			LicenseID:        lic.ID,
			SessionToken:     sess.Token,
			DeviceWrappedKey: wrapped,
			ExpiresAt:        lic.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		if isIssuanceSentinel(err) {
			return nil, err
		}
		return nil, fmt.Errorf("error issuing license: %v", err)
	}

	return result, nil
}

func isIssuanceSentinel(err error) bool {
	return errors.Is(err, common.ErrDeviceLimitExceeded) ||
		errors.Is(err, common.ErrKeyNotFound) ||
		errors.Is(err, common.ErrInvalidPublicKey) ||
		errors.Is(err, common.ErrPlaintextTooLarge) ||
		errors.Is(err, common.ErrorInternal)
}
