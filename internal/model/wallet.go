package model

import "context"

// WalletKeyMaterial holds the encrypted private key for one user's wallet.
// Material is written once at phantom creation and never re-keyed or
// deleted; a merged user's key stays decryptable so value accumulated at
// its address remains recoverable.
type WalletKeyMaterial struct {
	Address    string
	Ciphertext []byte
	Nonce      []byte
	AuthTag    []byte
}

// KeyStore persists wallet key material. Implementations exist for the
// in-memory store, postgres, and a MinIO bucket.
type KeyStore interface {
	Save(ctx context.Context, material WalletKeyMaterial) error
	Get(ctx context.Context, address string) (WalletKeyMaterial, error)
}
