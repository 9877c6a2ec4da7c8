package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/sha3"
)

// Wallet is a freshly generated keypair. PrivateKey is raw 32-byte scalar
// material; it must be encrypted before it is persisted anywhere.
type Wallet struct {
	Address    string
	PrivateKey []byte
}

// Provisioner generates one wallet per phantom user. It holds no state.
type Provisioner struct{}

// NewProvisioner creates a new Provisioner instance.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Generate creates a fresh secp256k1 keypair and derives its address.
func (p *Provisioner) Generate() (Wallet, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return Wallet{}, fmt.Errorf("failed to generate private key: %w", err)
	}

	return Wallet{
		Address:    deriveAddress(priv.PubKey()),
		PrivateKey: priv.Serialize(),
	}, nil
}

// AddressFromPrivateKey re-derives the wallet address for decrypted key
// material.
func AddressFromPrivateKey(privateKey []byte) (string, error) {
	if len(privateKey) != 32 {
		return "", fmt.Errorf("private key must be 32 bytes, got %d", len(privateKey))
	}
	priv, _ := btcec.PrivKeyFromBytes(privateKey)
	return deriveAddress(priv.PubKey()), nil
}

// deriveAddress returns the EVM address for a public key: the last 20
// bytes of the Keccak-256 of the uncompressed key, checksum-cased.
func deriveAddress(pub *btcec.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()

	h := sha3.NewLegacyKeccak256()
	h.Write(uncompressed[1:]) // drop the 0x04 prefix byte
	digest := h.Sum(nil)

	return "0x" + checksumHex(digest[12:])
}

// checksumHex applies EIP-55 mixed-case encoding to a 20-byte address.
func checksumHex(addr []byte) string {
	lower := hex.EncodeToString(addr)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}
