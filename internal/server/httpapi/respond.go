package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinel errors to HTTP status codes. Anything
// unmapped is an internal error and its detail stays out of the response.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrAccessDenied):
		status, msg = http.StatusForbidden, "access denied"
	case errors.Is(err, common.ErrKeyNotFound):
		status, msg = http.StatusNotFound, "no active key"
	case errors.Is(err, common.ErrSessionNotFound):
		status, msg = http.StatusNotFound, "session not found"
	case errors.Is(err, common.ErrLicenseNotFound):
		status, msg = http.StatusNotFound, "license not found"
	case errors.Is(err, common.ErrorNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrDeviceLimitExceeded):
		status, msg = http.StatusConflict, "device limit exceeded"
	case errors.Is(err, common.ErrKeyAlreadyActive):
		status, msg = http.StatusConflict, "active key already exists"
	case errors.Is(err, common.ErrInvalidPublicKey):
		status, msg = http.StatusBadRequest, "invalid device public key"
	case errors.Is(err, common.ErrPlaintextTooLarge):
		status, msg = http.StatusBadRequest, "key too large for device key"
	case errors.Is(err, common.ErrMalformedInput):
		status, msg = http.StatusBadRequest, "malformed input"
	case errors.Is(err, common.ErrLicenseRevoked):
		status, msg = http.StatusGone, "license revoked"
	}

	writeJSON(w, status, errorResponse{Error: msg})
}
