package model

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus describes whether a user has a verified owner.
type UserStatus string

const (
	// UserStatusPhantom marks a user created speculatively, before any
	// real owner has proven control of one of its identities.
	UserStatusPhantom UserStatus = "phantom"
	// UserStatusClaimed marks a user with at least one verified identity,
	// either claimed directly or absorbed through a merge.
	UserStatusClaimed UserStatus = "claimed"
)

// User is the canonical identity-bearing entity. A user keeps the wallet
// it was born with forever; merging re-routes other users' identities to
// this user, it never changes this user's address.
type User struct {
	ID                uuid.UUID
	WalletAddress     string
	ExternalAccountID *string
	Status            UserStatus
	CreatedAt         time.Time
	ClaimedAt         *time.Time
	MergedInto        *uuid.UUID
}

// IsTombstone reports whether this user has been superseded by another
// user. Reads must resolve through MergedInto before trusting any field.
func (u User) IsTombstone() bool {
	return u.MergedInto != nil
}
