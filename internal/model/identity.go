package model

import (
	"time"

	"github.com/google/uuid"
)

// Platform tags the external system an identity binds to. The set is not
// closed; new platforms can be introduced without a schema change.
type Platform string

const (
	PlatformGitHub    Platform = "github"
	PlatformDomain    Platform = "domain"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
)

// Identity is a claimable binding between a user and one external platform
// account. UserID is the one mutable foreign key in the model: merges
// re-point it to the surviving user.
type Identity struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Platform   Platform
	PlatformID string
	CreatedBy  string
	CreatedAt  time.Time
}

// NaturalKey returns the globally unique business key for a platform
// account binding.
func NaturalKey(platform Platform, platformID string) string {
	return string(platform) + "/" + platformID
}
