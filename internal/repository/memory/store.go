package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phantomlaunch/identity-server/internal/model"
)

var _ model.IdentityStore = (*Store)(nil)

// Store is the reference in-memory identity store. One RWMutex guards the
// record maps and all three indexes, so check-then-create and merge
// re-pointing are atomic for every reader and writer.
type Store struct {
	mu sync.RWMutex

	users      map[uuid.UUID]model.User
	identities map[uuid.UUID]model.Identity

	// Derived indexes, rebuildable from the record maps.
	byPlatform map[string]uuid.UUID // natural key -> identity id
	byAccount  map[string]uuid.UUID // external account id -> user id
	byWallet   map[string]uuid.UUID // wallet address -> user id
}

// NewStore creates an empty in-memory identity store.
func NewStore() *Store {
	return &Store{
		users:      make(map[uuid.UUID]model.User),
		identities: make(map[uuid.UUID]model.Identity),
		byPlatform: make(map[string]uuid.UUID),
		byAccount:  make(map[string]uuid.UUID),
		byWallet:   make(map[string]uuid.UUID),
	}
}

// CreatePhantom inserts user and identity as one unit, or returns the
// existing identity when the natural key is already taken.
func (s *Store) CreatePhantom(ctx context.Context, user model.User, identity model.Identity) (model.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.NaturalKey(identity.Platform, identity.PlatformID)
	if existingID, ok := s.byPlatform[key]; ok {
		return s.identities[existingID], false, nil
	}

	s.users[user.ID] = user
	s.identities[identity.ID] = identity
	s.byPlatform[key] = identity.ID
	s.byWallet[user.WalletAddress] = user.ID

	return identity, true, nil
}

// PutUser inserts or replaces a user record directly, bypassing the
// phantom-creation protocol. Intended for fixtures and recovery tooling.
func (s *Store) PutUser(ctx context.Context, user model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = user
	s.byWallet[user.WalletAddress] = user.ID
	return nil
}

func (s *Store) GetIdentity(ctx context.Context, platform model.Platform, platformID string) (model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPlatform[model.NaturalKey(platform, platformID)]
	if !ok {
		return model.Identity{}, model.ErrNotFound
	}
	return s.identities[id], nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return user, nil
}

func (s *Store) GetUserByExternalAccount(ctx context.Context, externalAccountID string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAccount[externalAccountID]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) GetUserByWallet(ctx context.Context, address string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byWallet[address]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) GetIdentitiesByUser(ctx context.Context, userID uuid.UUID) ([]model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var identities []model.Identity
	for _, identity := range s.identities {
		if identity.UserID == userID {
			identities = append(identities, identity)
		}
	}
	return identities, nil
}

func (s *Store) ListPhantomUsers(ctx context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []model.User
	for _, user := range s.users {
		if user.Status == model.UserStatusPhantom && user.MergedInto == nil {
			users = append(users, user)
		}
	}
	return users, nil
}

func (s *Store) PromoteUser(ctx context.Context, userID uuid.UUID, externalAccountID string, claimedAt time.Time) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return model.User{}, model.ErrNotFound
	}

	user.Status = model.UserStatusClaimed
	user.ExternalAccountID = &externalAccountID
	if user.ClaimedAt == nil {
		user.ClaimedAt = &claimedAt
	}

	s.users[userID] = user
	s.byAccount[externalAccountID] = userID

	return user, nil
}

func (s *Store) MergeUsers(ctx context.Context, primaryID, phantomID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[primaryID]; !ok {
		return fmt.Errorf("primary user %s: %w", primaryID, model.ErrNotFound)
	}
	phantom, ok := s.users[phantomID]
	if !ok {
		return fmt.Errorf("phantom user %s: %w", phantomID, model.ErrNotFound)
	}

	// Every identity of the phantom moves over, not just the one that
	// triggered the merge.
	for id, identity := range s.identities {
		if identity.UserID == phantomID {
			identity.UserID = primaryID
			s.identities[id] = identity
		}
	}

	phantom.MergedInto = &primaryID
	phantom.Status = model.UserStatusClaimed
	s.users[phantomID] = phantom

	return nil
}
