package eufy

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// uncompressedPointLen is the length of an uncompressed P-256 point:
// 0x04 prefix, 32-byte X, 32-byte Y.
const uncompressedPointLen = 65

// ServerPublicKey is the vendor's static P-256 public key used for the
// first key agreement of every login.
const ServerPublicKey = "04c5c00c4f8d1197cc7c3167c52bf7acb054d722f0ef08dcd7e0883236e0d72a3868d9750cb47fa4619248f3d83f0f662671dadc6e2d31c2f41db0161651c7c076"

// KeyPair is an ephemeral P-256 keypair owned by a single login attempt.
type KeyPair struct {
	private *ecdh.PrivateKey
}

// GenerateKeyPair creates a fresh ephemeral keypair from crypto/rand.
func GenerateKeyPair() (*KeyPair, error) {
	return generateKeyPair(rand.Reader)
}

func generateKeyPair(r io.Reader) (*KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("generating P-256 key: %w", err)
	}
	return &KeyPair{private: priv}, nil
}

// PublicHex returns the public point in uncompressed hex form
// (04 ‖ X ‖ Y, zero-padded, 130 characters).
func (k *KeyPair) PublicHex() string {
	return hex.EncodeToString(k.private.PublicKey().Bytes())
}

// DeriveSharedSecret performs ECDH between the local private key and the
// peer's uncompressed hex public point.
func (k *KeyPair) DeriveSharedSecret(peerHex string) ([]byte, error) {
	return DeriveSharedSecret(k.private, peerHex)
}

// DeriveSharedSecret parses peerHex as an uncompressed P-256 point,
// validates that it lies on the curve, and returns the ECDH shared secret.
//
// Returns an error wrapping ErrInvalidPeerKey if the point is malformed,
// off-curve, or the resulting secret is too short for the cipher key.
func DeriveSharedSecret(priv *ecdh.PrivateKey, peerHex string) ([]byte, error) {
	raw, err := hex.DecodeString(peerHex)
	if err != nil {
		return nil, fmt.Errorf("%w: not hex: %w", ErrInvalidPeerKey, err)
	}
	if len(raw) != uncompressedPointLen || raw[0] != 0x04 {
		return nil, fmt.Errorf("%w: want %d-byte uncompressed point, got %d bytes", ErrInvalidPeerKey, uncompressedPointLen, len(raw))
	}

	peer, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPeerKey, err)
	}

	secret, err := priv.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPeerKey, err)
	}
	if len(secret) < cipherKeyLen {
		return nil, fmt.Errorf("%w: shared secret is %d bytes, need %d", ErrInvalidPeerKey, len(secret), cipherKeyLen)
	}
	return secret, nil
}
