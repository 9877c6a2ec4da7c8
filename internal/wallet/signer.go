package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Signer signs digests with a wallet's private key. Signers for merged
// phantom users stay fully functional so accumulated on-chain value at
// their address remains recoverable.
type Signer struct {
	priv    *btcec.PrivateKey
	address string
}

// NewSigner reconstructs a signer from decrypted 32-byte key material.
func NewSigner(privateKey []byte) (*Signer, error) {
	if len(privateKey) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(privateKey))
	}
	priv, pub := btcec.PrivKeyFromBytes(privateKey)

	return &Signer{
		priv:    priv,
		address: deriveAddress(pub),
	}, nil
}

// Address returns the wallet address this signer controls.
func (s *Signer) Address() string {
	return s.address
}

// Sign produces a DER-encoded ECDSA signature over a 32-byte digest.
func (s *Signer) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	sig := btcecdsa.Sign(s.priv, digest)
	return sig.Serialize(), nil
}
