// Package cryptox implements the envelope-encryption primitives of the DRM
// subsystem: symmetric encryption of protected content, wrapping of content
// keys under the process-wide master secret, and asymmetric wrapping of
// content keys for individual devices.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the length of the random PBKDF2 salt prefixed to every
	// encrypted blob.
	SaltSize = 16

	// NonceSize is the length of the AES-GCM nonce that follows the salt.
	NonceSize = 12

	// derivedKeySize is the PBKDF2 output length (AES-256).
	derivedKeySize = 32

	// pbkdf2Iterations is fixed: changing it breaks decryption of every
	// blob already on disk.
	pbkdf2Iterations = 10000
)

// headerSize is the fixed-width prefix of an encrypted blob: salt || nonce.
const headerSize = SaltSize + NonceSize

// NewContentKey generates a fresh random content key in its transport form,
// a 64-character hex string.
func NewContentKey() (string, error) {
	return common.MakeRandHexString(common.ContentKeySize)
}

func deriveKey(contentKey string, salt []byte) []byte {
	return pbkdf2.Key([]byte(contentKey), salt, pbkdf2Iterations, derivedKeySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptContent encrypts plaintext under a key derived from contentKey and
// a fresh random salt, with a fresh random nonce. The output layout is
//
//	salt(16) || nonce(12) || AES-GCM ciphertext with 16-byte tag
//
// Two calls with identical inputs produce different blobs; callers must not
// compare ciphertexts, only round-trip them.
func EncryptContent(plaintext []byte, contentKey string) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	key := deriveKey(contentKey, salt)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerSize+len(plaintext)+aesgcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aesgcm.Seal(out, nonce, plaintext, nil)

	return out, nil
}

// DecryptContent reverses EncryptContent. It returns ErrMalformedInput when
// the blob is shorter than the fixed salt+nonce header and
// ErrAuthenticationFailure when the GCM tag does not verify (tampered blob
// or wrong key). A failed blob must never be retried with the same key.
func DecryptContent(blob []byte, contentKey string) ([]byte, error) {
	if len(blob) < headerSize {
		return nil, common.ErrMalformedInput
	}

	salt := blob[:SaltSize]
	nonce := blob[SaltSize:headerSize]
	ciphertext := blob[headerSize:]

	key := deriveKey(contentKey, salt)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrAuthenticationFailure
	}

	return plaintext, nil
}
