package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
)

type deviceResponse struct {
	DeviceID     string    `json:"device_id"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeen     time.Time `json:"last_seen"`
}

// ListDevices handles GET /api/devices.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	devices, err := h.devices.List(r.Context(), userID)
	if err != nil {
		h.logger.Error(r.Context(), "device list failed", "user_id", userID, "error", err)
		writeError(w, err)
		return
	}

	body := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		body = append(body, deviceResponse{
			DeviceID:     d.DeviceID,
			RegisteredAt: d.RegisteredAt,
			LastSeen:     d.LastSeen,
		})
	}

	writeJSON(w, http.StatusOK, body)
}

// RemoveDevice handles DELETE /api/devices/{deviceID}: it frees one quota
// slot. Licenses and sessions already issued to the device are untouched;
// revocation is the only way to cut those off.
func (h *Handler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	if err := h.devices.Remove(r.Context(), userID, deviceID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
