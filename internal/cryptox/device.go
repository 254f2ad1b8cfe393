package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
)

// DeviceProfile selects the asymmetric padding used when wrapping a content
// key for a device. The caller passes it explicitly; the wrap never guesses
// from the key format, so malformed input fails instead of silently falling
// back to another scheme.
type DeviceProfile string

const (
	// ProfileGeneric is RSA-OAEP with SHA-256, for clients with a modern
	// crypto runtime. Keys arrive as PKIX "PUBLIC KEY" PEM.
	ProfileGeneric DeviceProfile = "generic"

	// ProfileLegacy is RSA-PKCS1v1.5 for constrained mobile runtimes that
	// lack OAEP. Keys arrive as PKCS#1 "RSA PUBLIC KEY" PEM.
	ProfileLegacy DeviceProfile = "legacy"
)

// ParseDeviceProfile validates a profile string from the wire.
func ParseDeviceProfile(s string) (DeviceProfile, error) {
	switch DeviceProfile(s) {
	case ProfileGeneric, ProfileLegacy:
		return DeviceProfile(s), nil
	default:
		return "", fmt.Errorf("unknown device profile %q", s)
	}
}

// WrapKeyForDevice encrypts a plaintext content key for the device holding
// the private half of devicePublicKeyPEM, using the padding selected by
// profile. The result is base64 and safe to transmit; the plaintext key
// never leaves the server in any other form.
//
// Errors: ErrInvalidPublicKey when the PEM/DER cannot be parsed for the
// chosen profile, ErrPlaintextTooLarge when the content key exceeds the
// modulus payload capacity for that padding.
func WrapKeyForDevice(contentKey string, devicePublicKeyPEM []byte, profile DeviceProfile) (string, error) {
	var wrapped []byte
	var err error

	switch profile {
	case ProfileGeneric:
		pub, perr := parsePKIXPublicKey(devicePublicKeyPEM)
		if perr != nil {
			return "", perr
		}
		wrapped, err = rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(contentKey), nil)
	case ProfileLegacy:
		pub, perr := parsePKCS1PublicKey(devicePublicKeyPEM)
		if perr != nil {
			return "", perr
		}
		wrapped, err = rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(contentKey))
	default:
		return "", fmt.Errorf("unknown device profile %q", profile)
	}

	if err != nil {
		if errors.Is(err, rsa.ErrMessageTooLong) {
			return "", common.ErrPlaintextTooLarge
		}
		return "", err
	}

	return base64.StdEncoding.EncodeToString(wrapped), nil
}

func parsePKIXPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, common.ErrInvalidPublicKey
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, common.ErrInvalidPublicKey
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, common.ErrInvalidPublicKey
	}
	return pub, nil
}

func parsePKCS1PublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, common.ErrInvalidPublicKey
	}
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, common.ErrInvalidPublicKey
	}
	return pub, nil
}
