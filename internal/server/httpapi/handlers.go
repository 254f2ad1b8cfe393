// Package httpapi exposes the DRM operations over HTTP: upload protection,
// license issuance, session heartbeats, revocation, key rotation, and an SSE
// stream of revocation events.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
	"github.com/dmitrijs2005/drmkeeper/internal/cryptox"
	"github.com/dmitrijs2005/drmkeeper/internal/logging"
	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
	"github.com/dmitrijs2005/drmkeeper/internal/server/services"
)

// KeyManager covers the content-key lifecycle operations.
type KeyManager interface {
	ProtectUpload(ctx context.Context, uploadID string) (*models.ContentKey, error)
	Rotate(ctx context.Context, uploadID string) (*models.ContentKey, error)
}

// LicenseIssuer runs the license issuance chain.
type LicenseIssuer interface {
	Issue(ctx context.Context, req *services.IssueRequest) (*services.IssueResult, error)
}

// Heartbeater processes session heartbeats.
type Heartbeater interface {
	Heartbeat(ctx context.Context, token string) (*models.Session, error)
}

// Revoker runs the revocation cascade.
type Revoker interface {
	Revoke(ctx context.Context, uploadID string) (*services.RevocationResult, error)
}

// Subscriber provides per-user revocation event streams for SSE.
type Subscriber interface {
	Subscribe(userID string) (<-chan models.RevocationEvent, func())
}

// DeviceManager exposes a user's device registrations.
type DeviceManager interface {
	List(ctx context.Context, userID string) ([]*models.Device, error)
	Remove(ctx context.Context, userID, deviceID string) error
}

// Handler holds the service dependencies of the HTTP surface.
type Handler struct {
	keys     KeyManager
	licenses LicenseIssuer
	sessions Heartbeater
	revoker  Revoker
	events   Subscriber
	devices  DeviceManager
	logger   logging.Logger
}

// NewHandler constructs a Handler.
func NewHandler(keys KeyManager, licenses LicenseIssuer, sessions Heartbeater,
	revoker Revoker, events Subscriber, devices DeviceManager, logger logging.Logger) *Handler {
	return &Handler{
		keys:     keys,
		licenses: licenses,
		sessions: sessions,
		revoker:  revoker,
		events:   events,
		devices:  devices,
		logger:   logger.With("module", "httpapi"),
	}
}

// NewRouter builds the chi router with authentication applied to every route.
func NewRouter(h *Handler, jwtSecret []byte) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(Authenticator(jwtSecret))

		r.Post("/api/uploads/{uploadID}/protect", h.ProtectUpload)
		r.Post("/api/uploads/{uploadID}/revoke", h.Revoke)
		r.Post("/api/uploads/{uploadID}/rotate", h.Rotate)
		r.Post("/api/licenses", h.IssueLicense)
		r.Post("/api/sessions/heartbeat", h.Heartbeat)
		r.Get("/api/events", h.Events)
		r.Get("/api/devices", h.ListDevices)
		r.Delete("/api/devices/{deviceID}", h.RemoveDevice)
	})

	return r
}

type protectResponse struct {
	KeyID      string `json:"key_id"`
	StorageKey string `json:"storage_key"`
}

// ProtectUpload handles POST /api/uploads/{uploadID}/protect.
func (h *Handler) ProtectUpload(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	key, err := h.keys.ProtectUpload(r.Context(), uploadID)
	if err != nil {
		h.logger.Warn(r.Context(), "protect failed", "upload_id", uploadID, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, protectResponse{KeyID: key.ID, StorageKey: key.StorageKey})
}

// Rotate handles POST /api/uploads/{uploadID}/rotate.
func (h *Handler) Rotate(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	key, err := h.keys.Rotate(r.Context(), uploadID)
	if err != nil {
		h.logger.Warn(r.Context(), "rotate failed", "upload_id", uploadID, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, protectResponse{KeyID: key.ID, StorageKey: key.StorageKey})
}

type issueRequest struct {
	UploadID        string `json:"upload_id"`
	DeviceID        string `json:"device_id"`
	DevicePublicKey string `json:"device_public_key"`
	Profile         string `json:"profile"`
}

type issueResponse struct {
	LicenseID        string    `json:"license_id"`
	SessionToken     string    `json:"session_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	DeviceWrappedKey string    `json:"device_wrapped_key"`
}

// IssueLicense handles POST /api/licenses.
func (h *Handler) IssueLicense(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.ErrMalformedInput)
		return
	}
	if req.UploadID == "" || req.DeviceID == "" || req.DevicePublicKey == "" {
		writeError(w, common.ErrMalformedInput)
		return
	}

	profile, err := cryptox.ParseDeviceProfile(req.Profile)
	if err != nil {
		writeError(w, common.ErrMalformedInput)
		return
	}

	res, err := h.licenses.Issue(r.Context(), &services.IssueRequest{
		UploadID:           req.UploadID,
		UserID:             userID,
		DeviceID:           req.DeviceID,
		DevicePublicKeyPEM: []byte(req.DevicePublicKey),
		Profile:            profile,
	})
	if err != nil {
		h.logger.Warn(r.Context(), "issue failed",
			"upload_id", req.UploadID, "user_id", userID, "device_id", req.DeviceID, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, issueResponse{
		LicenseID:        res.LicenseID,
		SessionToken:     res.SessionToken,
		ExpiresAt:        res.ExpiresAt,
		DeviceWrappedKey: res.DeviceWrappedKey,
	})
}

type heartbeatRequest struct {
	SessionToken string `json:"session_token"`
}

// Heartbeat handles POST /api/sessions/heartbeat.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionToken == "" {
		writeError(w, common.ErrMalformedInput)
		return
	}

	if _, err := h.sessions.Heartbeat(r.Context(), req.SessionToken); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type revokeResponse struct {
	LicensesRevoked     int `json:"licenses_revoked"`
	SessionsDeactivated int `json:"sessions_deactivated"`
}

// Revoke handles POST /api/uploads/{uploadID}/revoke.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	res, err := h.revoker.Revoke(r.Context(), uploadID)
	if err != nil {
		h.logger.Error(r.Context(), "revoke failed", "upload_id", uploadID, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, revokeResponse{
		LicensesRevoked:     res.LicensesRevoked,
		SessionsDeactivated: res.SessionsDeactivated,
	})
}
