package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IdentityStore defines persistence operations for users and identities.
//
// CreatePhantom must behave as a compare-and-insert on the
// (platform, platformID) natural key: exactly one caller wins, losers get
// the winner's identity back with created=false. PromoteUser and
// MergeUsers must each apply their writes atomically with respect to
// concurrent readers.
type IdentityStore interface {
	// CreatePhantom inserts the user and its first identity as one unit.
	// When the identity's natural key already exists, nothing is written
	// and the pre-existing identity is returned with created=false.
	CreatePhantom(ctx context.Context, user User, identity Identity) (Identity, bool, error)

	GetIdentity(ctx context.Context, platform Platform, platformID string) (Identity, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	GetUserByExternalAccount(ctx context.Context, externalAccountID string) (User, error)
	GetUserByWallet(ctx context.Context, address string) (User, error)
	GetIdentitiesByUser(ctx context.Context, userID uuid.UUID) ([]Identity, error)
	ListPhantomUsers(ctx context.Context) ([]User, error)

	// PromoteUser marks the user claimed by the given external account and
	// registers the account index entry. ClaimedAt is only written if the
	// user was never claimed before.
	PromoteUser(ctx context.Context, userID uuid.UUID, externalAccountID string, claimedAt time.Time) (User, error)

	// MergeUsers re-points every identity owned by phantomID to primaryID
	// and tombstones phantomID, all as one atomic batch.
	MergeUsers(ctx context.Context, primaryID, phantomID uuid.UUID) error
}
