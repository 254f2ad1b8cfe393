package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
	"github.com/dmitrijs2005/drmkeeper/internal/server/repositories/repomanager"
)

// DeviceService exposes a user's device registrations. Removing a device
// frees one quota slot; it does not touch licenses or sessions already
// issued to that device.
type DeviceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewDeviceService constructs a DeviceService.
func NewDeviceService(db *sql.DB, m repomanager.RepositoryManager) *DeviceService {
	return &DeviceService{db: db, repomanager: m}
}

// List returns the user's registered devices, oldest first.
func (s *DeviceService) List(ctx context.Context, userID string) ([]*models.Device, error) {
	repo := s.repomanager.Devices(s.db)

	devices, err := repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing devices: %v", err)
	}
	return devices, nil
}

// Remove deletes one registration. Unknown devices yield
// common.ErrorNotFound.
func (s *DeviceService) Remove(ctx context.Context, userID, deviceID string) error {
	repo := s.repomanager.Devices(s.db)

	if err := repo.Remove(ctx, userID, deviceID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error removing device: %v", err)
	}
	return nil
}
