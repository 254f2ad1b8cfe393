// Package common defines shared constants and sentinel errors used across
// the DRM server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Content-key lifecycle errors.
	ErrKeyNotFound      = errors.New("no active content key")
	ErrKeyAlreadyActive = errors.New("content key already active")

	// License issuance errors.
	ErrAccessDenied        = errors.New("access denied")
	ErrDeviceLimitExceeded = errors.New("device limit exceeded")

	// Crypto errors. ErrAuthenticationFailure means the AEAD tag did not
	// verify (tampering or wrong key) and is always fatal for that blob.
	ErrInvalidPublicKey      = errors.New("invalid public key")
	ErrPlaintextTooLarge     = errors.New("plaintext too large for key")
	ErrAuthenticationFailure = errors.New("authentication failure")
	ErrMalformedInput        = errors.New("malformed input")

	// Session/heartbeat errors.
	ErrSessionNotFound = errors.New("session not found")
	ErrLicenseNotFound = errors.New("license not found")
	ErrLicenseRevoked  = errors.New("license revoked")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
