package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/phantomlaunch/identity-server/internal/model"
)

// Proof is the verifier handoff: the holder of the external account named
// by ExternalAccountID has proven control of the platform account, and the
// verifier observed WalletAddress during the proof exchange.
type Proof struct {
	ExternalAccountID string
	Platform          model.Platform
	PlatformID        string
	WalletAddress     string
}

// ProofClaims represents JWT claims carried by a verifier proof token.
type ProofClaims struct {
	jwt.RegisteredClaims
	Platform      model.Platform `json:"platform"`
	PlatformID    string         `json:"platform_id"`
	WalletAddress string         `json:"wallet_address,omitempty"`
	TokenType     string         `json:"typ"`
}

// ProofManager issues and validates proof tokens backed by symmetric HMAC.
type ProofManager struct {
	secretKey string
	ttl       time.Duration
}

// NewProofManager creates a new proof token manager with the provided
// secret key and token lifetime.
func NewProofManager(secretKey string, ttl time.Duration) *ProofManager {
	return &ProofManager{secretKey: secretKey, ttl: ttl}
}

const typeProof = "proof"

// Issue creates a short-lived token attesting a completed verification.
func (m *ProofManager) Issue(proof Proof) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ProofClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   proof.ExternalAccountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Platform:      proof.Platform,
		PlatformID:    proof.PlatformID,
		WalletAddress: proof.WalletAddress,
		TokenType:     typeProof,
	})

	tokenString, err := token.SignedString([]byte(m.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign proof token: %w", err)
	}

	return tokenString, nil
}

// Parse validates a proof token and extracts the proof it attests.
func (m *ProofManager) Parse(tokenString string) (Proof, error) {
	claims := &ProofClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return Proof{}, fmt.Errorf("failed to parse proof token: %w", err)
	}
	if !token.Valid {
		return Proof{}, fmt.Errorf("proof token is invalid")
	}
	if claims.TokenType != typeProof {
		return Proof{}, fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}
	if claims.Subject == "" || claims.Platform == "" || claims.PlatformID == "" {
		return Proof{}, fmt.Errorf("proof token is missing required claims")
	}

	return Proof{
		ExternalAccountID: claims.Subject,
		Platform:          claims.Platform,
		PlatformID:        claims.PlatformID,
		WalletAddress:     claims.WalletAddress,
	}, nil
}
