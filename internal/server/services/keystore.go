// Package services contains server-side business logic. This file implements
// KeyService, which owns the per-upload content-key lifecycle: initial
// protection of an upload and key rotation after a revocation.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
	"github.com/dmitrijs2005/drmkeeper/internal/cryptox"
	"github.com/dmitrijs2005/drmkeeper/internal/logging"
	sc "github.com/dmitrijs2005/drmkeeper/internal/server/config"
	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/drmkeeper/internal/server/storage"
)

// KeyService manages content keys and the encrypted blobs they protect.
// The plaintext content key exists only inside these methods; at rest it is
// always wrapped under the process master secret.
type KeyService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	envelope    *cryptox.Envelope
	store       storage.ObjectStorage
	logger      logging.Logger
}

// NewKeyService constructs a KeyService.
func NewKeyService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config,
	env *cryptox.Envelope, store storage.ObjectStorage, logger logging.Logger) *KeyService {
	return &KeyService{
		db:          db,
		repomanager: m,
		config:      cfg,
		envelope:    env,
		store:       store,
		logger:      logger.With("module", "keystore"),
	}
}

// ProtectUpload generates a fresh content key for the upload, encrypts the
// raw bytes under it, stores the encrypted blob, and commits the wrapped key
// as the upload's single active key. A second call while a key is active
// fails with common.ErrKeyAlreadyActive.
//
// The blob is stored before the key row commits so a crash in between leaves
// an orphan blob, never a key row pointing at nothing.
func (s *KeyService) ProtectUpload(ctx context.Context, uploadID string) (*models.ContentKey, error) {
	keyRepo := s.repomanager.ContentKeys(s.db)

	if _, err := keyRepo.GetActive(ctx, uploadID); err == nil {
		return nil, common.ErrKeyAlreadyActive
	} else if !errors.Is(err, common.ErrKeyNotFound) {
		return nil, fmt.Errorf("error checking active key: %v", err)
	}

	return s.issueNewKey(ctx, uploadID)
}

// Rotate replaces a revoked upload's key material: a new content key, a
// freshly encrypted blob, and a new active key row. Rotation is only legal
// while no key is active, i.e. after a revocation; otherwise it fails with
// common.ErrKeyAlreadyActive. The superseded blob is deleted best-effort
// after the new key row has committed.
func (s *KeyService) Rotate(ctx context.Context, uploadID string) (*models.ContentKey, error) {
	keyRepo := s.repomanager.ContentKeys(s.db)

	if _, err := keyRepo.GetActive(ctx, uploadID); err == nil {
		return nil, common.ErrKeyAlreadyActive
	} else if !errors.Is(err, common.ErrKeyNotFound) {
		return nil, fmt.Errorf("error checking active key: %v", err)
	}

	old, err := keyRepo.GetLatest(ctx, uploadID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrKeyNotFound
		}
		return nil, fmt.Errorf("error loading previous key: %v", err)
	}

	created, err := s.issueNewKey(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	if err := s.store.Delete(ctx, old.StorageKey); err != nil {
		s.logger.Warn(ctx, "failed to delete superseded blob",
			"upload_id", uploadID, "storage_key", old.StorageKey, "error", err)
	}

	return created, nil
}

func (s *KeyService) issueNewKey(ctx context.Context, uploadID string) (*models.ContentKey, error) {
	keyRepo := s.repomanager.ContentKeys(s.db)

	contentKey, err := cryptox.NewContentKey()
	if err != nil {
		return nil, common.ErrorInternal
	}

	raw, err := s.store.LoadRaw(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("error loading raw upload: %v", err)
	}

	blob, err := cryptox.EncryptContent(raw, contentKey)
	common.WipeByteArray(raw)
	if err != nil {
		return nil, common.ErrorInternal
	}

	storageKey, err := s.store.StoreEncrypted(ctx, uploadID, blob)
	if err != nil {
		return nil, fmt.Errorf("error storing encrypted blob: %v", err)
	}

	wrapped, err := s.envelope.EncryptKey(contentKey)
	if err != nil {
		return nil, common.ErrorInternal
	}

	created, err := keyRepo.Create(ctx, &models.ContentKey{
		UploadID:     uploadID,
		EncryptedKey: wrapped,
		StorageKey:   storageKey,
		Active:       true,
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, storageKey); delErr != nil {
			s.logger.Warn(ctx, "failed to delete orphan blob",
				"upload_id", uploadID, "storage_key", storageKey, "error", delErr)
		}
		if errors.Is(err, common.ErrKeyAlreadyActive) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating key row: %v", err)
	}

	return created, nil
}
