package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/phantomlaunch/identity-server/internal/logger"
	"github.com/phantomlaunch/identity-server/internal/model"
	"github.com/phantomlaunch/identity-server/internal/security"
	"github.com/phantomlaunch/identity-server/internal/token"
	"github.com/phantomlaunch/identity-server/internal/wallet"
)

const resolutionTTL = 5 * time.Minute

// Identity owns the phantom-user lifecycle: speculative creation keyed by
// platform accounts, claims by verified owners, and the merges that fold
// multiple phantom users into one person.
type Identity struct {
	store       model.IdentityStore
	keys        model.KeyStore
	provisioner *wallet.Provisioner
	cipher      *security.KeyCipher
	proofs      *token.ProofManager
	sweeps      model.SweepSink
	logger      *logger.Logger

	locks *keyLock
	// resolved caches user id -> canonical user id. Purged wholesale on
	// every claim or merge so in-process readers never see a stale root.
	resolved *ttlcache.Cache[uuid.UUID, uuid.UUID]
}

// NewIdentity creates the identity service.
func NewIdentity(
	store model.IdentityStore,
	keys model.KeyStore,
	provisioner *wallet.Provisioner,
	cipher *security.KeyCipher,
	proofs *token.ProofManager,
	sweeps model.SweepSink,
	logger *logger.Logger,
) *Identity {
	cache := ttlcache.New[uuid.UUID, uuid.UUID](
		ttlcache.WithTTL[uuid.UUID, uuid.UUID](resolutionTTL),
	)
	go cache.Start()

	return &Identity{
		store:       store,
		keys:        keys,
		provisioner: provisioner,
		cipher:      cipher,
		proofs:      proofs,
		sweeps:      sweeps,
		logger:      logger,
		locks:       newKeyLock(),
		resolved:    cache,
	}
}

// PhantomResult is the outcome of CreatePhantomUser.
type PhantomResult struct {
	User          model.User
	Identity      model.Identity
	WalletAddress string
	IsNew         bool
}

// ClaimResult is the outcome of ClaimIdentity.
type ClaimResult struct {
	User          model.User
	Merged        bool
	WalletAddress string
	// PrivateKey is only populated on the very first claim of a user, so
	// the rightful owner can take custody. Never returned again.
	PrivateKey []byte
	Message    string
}

func accountLockKey(externalAccountID string) string {
	return "account:" + externalAccountID
}

// CreatePhantomUser returns the user owning the (platform, platformID)
// binding, creating a fresh phantom user with its own wallet when the
// binding is seen for the first time. Repeated calls with the same inputs
// are idempotent: the wallet is allocated exactly once.
func (s *Identity) CreatePhantomUser(ctx context.Context, platform model.Platform, platformID, createdBy string) (PhantomResult, error) {
	unlock := s.locks.lock(model.NaturalKey(platform, platformID))
	defer unlock()

	existing, err := s.store.GetIdentity(ctx, platform, platformID)
	if err == nil {
		owner, err := s.resolveByID(ctx, existing.UserID)
		if err != nil {
			return PhantomResult{}, fmt.Errorf("failed to resolve identity owner: %w", err)
		}
		return PhantomResult{
			User:          owner,
			Identity:      existing,
			WalletAddress: owner.WalletAddress,
			IsNew:         false,
		}, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return PhantomResult{}, fmt.Errorf("failed to look up identity: %w", err)
	}

	// The idempotency check above must precede wallet generation: a new
	// address is an externally visible side effect.
	w, err := s.provisioner.Generate()
	if err != nil {
		return PhantomResult{}, fmt.Errorf("failed to generate wallet: %w", err)
	}

	ciphertext, nonce, tag, err := s.cipher.Encrypt(w.PrivateKey)
	if err != nil {
		return PhantomResult{}, fmt.Errorf("failed to encrypt private key: %w", err)
	}
	zeroBytes(w.PrivateKey)

	material := model.WalletKeyMaterial{
		Address:    w.Address,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		AuthTag:    tag,
	}
	if err := s.keys.Save(ctx, material); err != nil {
		return PhantomResult{}, fmt.Errorf("failed to store key material: %w", err)
	}

	now := time.Now()
	user := model.User{
		ID:            uuid.New(),
		WalletAddress: w.Address,
		Status:        model.UserStatusPhantom,
		CreatedAt:     now,
	}
	identity := model.Identity{
		ID:         uuid.New(),
		UserID:     user.ID,
		Platform:   platform,
		PlatformID: platformID,
		CreatedBy:  createdBy,
		CreatedAt:  now,
	}

	saved, created, err := s.store.CreatePhantom(ctx, user, identity)
	if err != nil {
		// The sealed key blob may now be orphaned; keep a trail for manual
		// reconciliation.
		s.logger.Error("Identity service: phantom creation failed after key material write",
			"wallet_address", w.Address,
			"error", err.Error())
		return PhantomResult{}, fmt.Errorf("failed to create phantom user: %w", err)
	}
	if !created {
		// Lost a cross-process race on the natural key.
		s.logger.Warn("Identity service: lost create race, key material orphaned",
			"platform", platform,
			"platform_id", platformID,
			"wallet_address", w.Address)
		owner, err := s.resolveByID(ctx, saved.UserID)
		if err != nil {
			return PhantomResult{}, fmt.Errorf("failed to resolve winning identity owner: %w", err)
		}
		return PhantomResult{
			User:          owner,
			Identity:      saved,
			WalletAddress: owner.WalletAddress,
			IsNew:         false,
		}, nil
	}

	s.logger.Info("Identity service: phantom user created",
		"platform", platform,
		"platform_id", platformID,
		"user_id", user.ID,
		"wallet_address", w.Address)

	return PhantomResult{
		User:          user,
		Identity:      identity,
		WalletAddress: w.Address,
		IsNew:         true,
	}, nil
}

// ClaimIdentity associates a verified (platform, platformID) binding with
// the authenticated external account. Verification itself is the caller's
// prior responsibility; see ClaimWithProof for the token-based handoff.
func (s *Identity) ClaimIdentity(ctx context.Context, platform model.Platform, platformID, externalAccountID string) (ClaimResult, error) {
	unlock := s.locks.lock(model.NaturalKey(platform, platformID), accountLockKey(externalAccountID))
	defer unlock()

	identity, err := s.store.GetIdentity(ctx, platform, platformID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return ClaimResult{}, fmt.Errorf("no phantom identity found for %s/%s: %w", platform, platformID, model.ErrNotFound)
		}
		return ClaimResult{}, fmt.Errorf("failed to look up identity: %w", err)
	}

	phantomUser, err := s.resolveByID(ctx, identity.UserID)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("failed to resolve identity owner: %w", err)
	}

	primary, err := s.store.GetUserByExternalAccount(ctx, externalAccountID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return ClaimResult{}, fmt.Errorf("failed to look up external account: %w", err)
		}
		return s.promote(ctx, phantomUser, externalAccountID)
	}

	primary, err = s.resolveUser(ctx, primary)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("failed to resolve primary user: %w", err)
	}

	if primary.ID == phantomUser.ID {
		return ClaimResult{
			User:          primary,
			Merged:        false,
			WalletAddress: primary.WalletAddress,
			Message:       "identity already belongs to this user",
		}, nil
	}

	if err := s.mergeUsers(ctx, primary, phantomUser, identity, externalAccountID); err != nil {
		return ClaimResult{}, err
	}

	return ClaimResult{
		User:          primary,
		Merged:        true,
		WalletAddress: primary.WalletAddress,
		Message:       "identity merged into existing user",
	}, nil
}

// ClaimWithProof parses a verifier proof token and claims the identity it
// attests for the token's subject.
func (s *Identity) ClaimWithProof(ctx context.Context, proofToken string) (ClaimResult, error) {
	if s.proofs == nil {
		return ClaimResult{}, fmt.Errorf("proof manager is not configured: %w", model.ErrMisconfigured)
	}

	proof, err := s.proofs.Parse(proofToken)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("failed to validate proof: %w", err)
	}

	return s.ClaimIdentity(ctx, proof.Platform, proof.PlatformID, proof.ExternalAccountID)
}

// promote claims phantomUser in place for an account with no prior claims.
func (s *Identity) promote(ctx context.Context, phantomUser model.User, externalAccountID string) (ClaimResult, error) {
	firstClaim := phantomUser.ClaimedAt == nil

	promoted, err := s.store.PromoteUser(ctx, phantomUser.ID, externalAccountID, time.Now())
	if err != nil {
		return ClaimResult{}, fmt.Errorf("failed to promote user: %w", err)
	}
	s.resolved.DeleteAll()

	s.logger.Info("Identity service: phantom user claimed",
		"user_id", promoted.ID,
		"external_account_id", externalAccountID,
		"wallet_address", promoted.WalletAddress)

	result := ClaimResult{
		User:          promoted,
		Merged:        false,
		WalletAddress: promoted.WalletAddress,
		Message:       "identity claimed",
	}

	if firstClaim {
		material, err := s.keys.Get(ctx, promoted.WalletAddress)
		if err != nil {
			return ClaimResult{}, fmt.Errorf("failed to get key material: %w", err)
		}
		privateKey, err := s.cipher.Decrypt(material.Ciphertext, material.Nonce, material.AuthTag)
		if err != nil {
			return ClaimResult{}, fmt.Errorf("failed to decrypt private key: %w", err)
		}
		result.PrivateKey = privateKey
	}

	return result, nil
}

// mergeUsers folds phantomUser into primary: every identity the phantom
// accumulated moves over in one batch, the phantom becomes a tombstone,
// and a sweep candidate is emitted for its wallet.
func (s *Identity) mergeUsers(ctx context.Context, primary, phantomUser model.User, triggering model.Identity, externalAccountID string) error {
	if err := s.store.MergeUsers(ctx, primary.ID, phantomUser.ID); err != nil {
		return fmt.Errorf("failed to merge users: %w", err)
	}
	s.resolved.DeleteAll()

	s.logger.Info("Identity service: merged phantom user",
		"primary_user_id", primary.ID,
		"merged_user_id", phantomUser.ID,
		"external_account_id", externalAccountID,
		"triggering_platform", triggering.Platform,
		"triggering_platform_id", triggering.PlatformID)

	ticket := model.SweepTicket{
		FromAddress:   phantomUser.WalletAddress,
		ToAddress:     primary.WalletAddress,
		MergedUserID:  phantomUser.ID,
		PrimaryUserID: primary.ID,
		At:            time.Now(),
	}
	if err := s.sweeps.RecordSweepCandidate(ctx, ticket); err != nil {
		// The merge is already committed; a sink failure must not unwind it.
		s.logger.Error("Identity service: failed to record sweep candidate",
			"from_address", ticket.FromAddress,
			"to_address", ticket.ToAddress,
			"error", err.Error())
	}

	return nil
}

// FindIdentity reports whether the binding exists, without resolving
// ownership.
func (s *Identity) FindIdentity(ctx context.Context, platform model.Platform, platformID string) (model.Identity, error) {
	return s.store.GetIdentity(ctx, platform, platformID)
}

// FindUserByPlatform returns the canonical user owning the binding.
func (s *Identity) FindUserByPlatform(ctx context.Context, platform model.Platform, platformID string) (model.User, error) {
	identity, err := s.store.GetIdentity(ctx, platform, platformID)
	if err != nil {
		return model.User{}, err
	}
	return s.resolveByID(ctx, identity.UserID)
}

// FindUserByExternalAccount returns the canonical user claimed by the
// account. Only ever returns claimed users; the index is populated on
// claim.
func (s *Identity) FindUserByExternalAccount(ctx context.Context, externalAccountID string) (model.User, error) {
	user, err := s.store.GetUserByExternalAccount(ctx, externalAccountID)
	if err != nil {
		return model.User{}, err
	}
	return s.resolveUser(ctx, user)
}

// FindUserByWallet returns the user that owns this exact address. It
// deliberately does NOT resolve merge chains: the result may be a merged
// tombstone. Callers wanting the canonical owner must resolve explicitly;
// wallet lookups answer "who controls this address", not "who is credited
// for it".
func (s *Identity) FindUserByWallet(ctx context.Context, address string) (model.User, error) {
	return s.store.GetUserByWallet(ctx, address)
}

// GetIdentitiesForUser returns all identities owned by the canonical user
// the given id resolves to. Merges re-point every identity of the absorbed
// user in one batch, so ownership rows always reference live users and a
// direct index query suffices.
func (s *Identity) GetIdentitiesForUser(ctx context.Context, userID uuid.UUID) ([]model.Identity, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	canonical, err := s.resolveUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.store.GetIdentitiesByUser(ctx, canonical.ID)
}

// ListPhantomUsers returns live unclaimed users, for operational
// visibility and sweep-candidate discovery.
func (s *Identity) ListPhantomUsers(ctx context.Context) ([]model.User, error) {
	return s.store.ListPhantomUsers(ctx)
}

// GetUserSigner reconstructs the signer for the given user's own wallet.
// The input is intentionally not resolved through merge chains: a merged
// phantom's wallet stays controllable so its accumulated value can be
// swept.
func (s *Identity) GetUserSigner(ctx context.Context, userID uuid.UUID) (*wallet.Signer, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	material, err := s.keys.Get(ctx, user.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to get key material: %w", err)
	}

	privateKey, err := s.cipher.Decrypt(material.Ciphertext, material.Nonce, material.AuthTag)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt private key: %w", err)
	}
	defer zeroBytes(privateKey)

	signer, err := wallet.NewSigner(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build signer: %w", err)
	}

	return signer, nil
}

// resolveByID loads a user and resolves it to its canonical root.
func (s *Identity) resolveByID(ctx context.Context, userID uuid.UUID) (model.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, fmt.Errorf("identity references nonexistent user %s: %w", userID, model.ErrCorruptChain)
		}
		return model.User{}, err
	}
	return s.resolveUser(ctx, user)
}

// resolveUser walks the merge chain to the canonical user. Walks are
// bounded; exceeding the cap fails loudly instead of returning a possibly
// stale owner.
func (s *Identity) resolveUser(ctx context.Context, user model.User) (model.User, error) {
	start := user.ID

	if item := s.resolved.Get(start); item != nil {
		cached, err := s.store.GetUserByID(ctx, item.Value())
		if err == nil && !cached.IsTombstone() {
			return cached, nil
		}
		s.resolved.Delete(start)
	}

	depth := 0
	for user.MergedInto != nil {
		depth++
		if depth > model.MaxMergeDepth {
			return model.User{}, fmt.Errorf("resolving user %s exceeded depth %d: %w", start, model.MaxMergeDepth, model.ErrCorruptChain)
		}
		next, err := s.store.GetUserByID(ctx, *user.MergedInto)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.User{}, fmt.Errorf("user %s merged into nonexistent user %s: %w", user.ID, *user.MergedInto, model.ErrCorruptChain)
			}
			return model.User{}, err
		}
		user = next
	}

	if start != user.ID {
		s.resolved.Set(start, user.ID, ttlcache.DefaultTTL)
	}

	return user, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
