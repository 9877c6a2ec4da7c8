package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/phantomlaunch/identity-server/internal/model"
)

var _ model.KeyStore = (*KeyStore)(nil)

// KeyStore holds encrypted wallet key material in memory.
type KeyStore struct {
	mu       sync.RWMutex
	material map[string]model.WalletKeyMaterial
}

// NewKeyStore creates an empty in-memory key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		material: make(map[string]model.WalletKeyMaterial),
	}
}

// Save stores key material for an address. Wallets are never re-keyed, so
// a second write for the same address is refused.
func (s *KeyStore) Save(ctx context.Context, material model.WalletKeyMaterial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.material[material.Address]; ok {
		return fmt.Errorf("key material already exists for address %s", material.Address)
	}
	s.material[material.Address] = material
	return nil
}

func (s *KeyStore) Get(ctx context.Context, address string) (model.WalletKeyMaterial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	material, ok := s.material[address]
	if !ok {
		return model.WalletKeyMaterial{}, model.ErrNotFound
	}
	return material, nil
}
