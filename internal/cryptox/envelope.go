package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
)

// Envelope holds the process-wide master secret used to wrap content keys at
// rest, plus the server's own RSA private key for unwrapping key-exchange
// material sent by clients. Both are loaded once at process start and never
// mutated; construct with NewEnvelope rather than sharing a global.
type Envelope struct {
	master    string
	serverKey *rsa.PrivateKey
}

// NewEnvelope builds an Envelope from the master secret and an optional
// PEM-encoded RSA private key (PKCS#1 or PKCS#8). Passing nil serverKeyPEM
// yields an envelope that can wrap/unwrap content keys but cannot serve
// client key-exchange material.
func NewEnvelope(masterSecret string, serverKeyPEM []byte) (*Envelope, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("empty master secret")
	}

	e := &Envelope{master: masterSecret}

	if serverKeyPEM != nil {
		key, err := parsePrivateKey(serverKeyPEM)
		if err != nil {
			return nil, err
		}
		e.serverKey = key
	}

	return e, nil
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("server key: %w", common.ErrMalformedInput)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("server key: %w", common.ErrMalformedInput)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("server key is not RSA: %w", common.ErrMalformedInput)
	}
	return key, nil
}

// EncryptKey wraps a plaintext content key under the master secret using the
// same salt||nonce||ciphertext AEAD scheme as content encryption. The result
// is base64 for storage in a text column.
func (e *Envelope) EncryptKey(plaintext string) (string, error) {
	blob, err := EncryptContent([]byte(plaintext), e.master)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// DecryptKey reverses EncryptKey. It returns ErrMalformedInput for input
// that is not valid base64 and ErrAuthenticationFailure when the stored
// wrapping does not verify under the master secret.
func (e *Envelope) DecryptKey(encrypted string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", common.ErrMalformedInput
	}
	plaintext, err := DecryptContent(blob, e.master)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// UnwrapWithServerKey decrypts base64 OAEP/SHA-256 ciphertext produced
// against the server's public key. It is used only for server-held
// key-exchange material, never for device-wrapped content keys.
func (e *Envelope) UnwrapWithServerKey(ciphertext string) ([]byte, error) {
	if e.serverKey == nil {
		return nil, fmt.Errorf("no server private key configured")
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, common.ErrMalformedInput
	}
	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, e.serverKey, raw, nil)
	if err != nil {
		return nil, common.ErrAuthenticationFailure
	}
	return plaintext, nil
}
