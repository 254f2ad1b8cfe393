// Package storage holds the durable object-store client used by upload
// protection and key rotation. Raw upload bytes are owned by the upload
// collaborator; this subsystem only reads them and swaps encrypted blobs.
package storage

import "context"

// ObjectStorage is the durable-storage contract of the DRM subsystem.
type ObjectStorage interface {
	// LoadRaw fetches the original plaintext bytes of an upload.
	LoadRaw(ctx context.Context, uploadID string) ([]byte, error)

	// StoreEncrypted writes an encrypted blob under a fresh storage key
	// and returns that key. A new key per write keeps the old blob intact
	// until the caller has committed the new content-key row.
	StoreEncrypted(ctx context.Context, uploadID string, blob []byte) (string, error)

	// Delete removes a blob by storage key.
	Delete(ctx context.Context, storageKey string) error
}
