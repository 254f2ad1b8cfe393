package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
	"github.com/stretchr/testify/require"
)

func generateDeviceKey(t *testing.T, bits int) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, bits)
	require.NoError(t, err)
	return key
}

func pkixPEM(t *testing.T, pub *rsa.PublicKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func pkcs1PEM(t *testing.T, pub *rsa.PublicKey) []byte {
	t.Helper()
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(pub)})
}

func TestWrapKeyForDevice_GenericRoundTrip(t *testing.T) {
	device := generateDeviceKey(t, 2048)
	contentKey, err := NewContentKey()
	require.NoError(t, err)

	wrapped, err := WrapKeyForDevice(contentKey, pkixPEM(t, &device.PublicKey), ProfileGeneric)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(wrapped)
	require.NoError(t, err)

	unwrapped, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, device, raw, nil)
	require.NoError(t, err)
	require.Equal(t, contentKey, string(unwrapped))
}

func TestWrapKeyForDevice_LegacyRoundTrip(t *testing.T) {
	device := generateDeviceKey(t, 2048)
	contentKey, err := NewContentKey()
	require.NoError(t, err)

	wrapped, err := WrapKeyForDevice(contentKey, pkcs1PEM(t, &device.PublicKey), ProfileLegacy)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(wrapped)
	require.NoError(t, err)

	unwrapped, err := rsa.DecryptPKCS1v15(rand.Reader, device, raw)
	require.NoError(t, err)
	require.Equal(t, contentKey, string(unwrapped))
}

func TestWrapKeyForDevice_InvalidPEM(t *testing.T) {
	contentKey, err := NewContentKey()
	require.NoError(t, err)

	for _, profile := range []DeviceProfile{ProfileGeneric, ProfileLegacy} {
		_, err := WrapKeyForDevice(contentKey, []byte("not a pem at all"), profile)
		require.ErrorIs(t, err, common.ErrInvalidPublicKey, "profile %s", profile)
	}
}

// A PKCS#1 key presented to the generic profile (and vice versa) must fail
// parsing instead of silently switching padding schemes.
func TestWrapKeyForDevice_NoProfileAutodetect(t *testing.T) {
	device := generateDeviceKey(t, 2048)
	contentKey, err := NewContentKey()
	require.NoError(t, err)

	_, err = WrapKeyForDevice(contentKey, pkcs1PEM(t, &device.PublicKey), ProfileGeneric)
	require.ErrorIs(t, err, common.ErrInvalidPublicKey)

	_, err = WrapKeyForDevice(contentKey, pkixPEM(t, &device.PublicKey), ProfileLegacy)
	require.ErrorIs(t, err, common.ErrInvalidPublicKey)
}

func TestWrapKeyForDevice_PlaintextTooLarge(t *testing.T) {
	// A 1024-bit modulus holds 62 bytes under OAEP/SHA-256 and 117 bytes
	// under PKCS1v1.5; a 64-byte content key overflows the former and a
	// long payload overflows both.
	device := generateDeviceKey(t, 1024)
	contentKey, err := NewContentKey()
	require.NoError(t, err)

	_, err = WrapKeyForDevice(contentKey, pkixPEM(t, &device.PublicKey), ProfileGeneric)
	require.ErrorIs(t, err, common.ErrPlaintextTooLarge)

	long := strings.Repeat("k", 200)
	_, err = WrapKeyForDevice(long, pkcs1PEM(t, &device.PublicKey), ProfileLegacy)
	require.ErrorIs(t, err, common.ErrPlaintextTooLarge)
}

func TestParseDeviceProfile(t *testing.T) {
	p, err := ParseDeviceProfile("generic")
	require.NoError(t, err)
	require.Equal(t, ProfileGeneric, p)

	p, err = ParseDeviceProfile("legacy")
	require.NoError(t, err)
	require.Equal(t, ProfileLegacy, p)

	_, err = ParseDeviceProfile("widevine")
	require.Error(t, err)
}
