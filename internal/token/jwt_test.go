package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomlaunch/identity-server/internal/model"
)

func TestProofManager_RoundTrip(t *testing.T) {
	m := NewProofManager("secret", time.Minute)

	proof := Proof{
		ExternalAccountID: "did:privy:abc123",
		Platform:          model.PlatformGitHub,
		PlatformID:        "acme/rocket",
		WalletAddress:     "0x0123456789abcdef0123456789abcdef01234567",
	}

	tokenString, err := m.Issue(proof)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	parsed, err := m.Parse(tokenString)
	require.NoError(t, err)
	assert.Equal(t, proof, parsed)
}

func TestProofManager_WrongSecret(t *testing.T) {
	m := NewProofManager("secret", time.Minute)
	other := NewProofManager("other-secret", time.Minute)

	tokenString, err := m.Issue(Proof{
		ExternalAccountID: "acct",
		Platform:          model.PlatformDomain,
		PlatformID:        "example.com",
	})
	require.NoError(t, err)

	_, err = other.Parse(tokenString)
	assert.Error(t, err)
}

func TestProofManager_Expired(t *testing.T) {
	m := NewProofManager("secret", -time.Minute)

	tokenString, err := m.Issue(Proof{
		ExternalAccountID: "acct",
		Platform:          model.PlatformTwitter,
		PlatformID:        "somehandle",
	})
	require.NoError(t, err)

	_, err = m.Parse(tokenString)
	assert.Error(t, err)
}

func TestProofManager_MissingClaims(t *testing.T) {
	m := NewProofManager("secret", time.Minute)

	tokenString, err := m.Issue(Proof{
		Platform:   model.PlatformGitHub,
		PlatformID: "acme/rocket",
	})
	require.NoError(t, err)

	_, err = m.Parse(tokenString)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required claims")
}
