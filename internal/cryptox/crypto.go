// Package cryptox holds the credential primitives shared by the relay and the
// chat client: password verifiers, the challenge digest and the client key pair.
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/jimrelay/internal/common"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// NonceSize is the length of a server challenge.
	NonceSize = 64

	verifierIterations = 10000
	verifierKeyLen     = 64
)

// MakeVerifier derives the stored password verifier for a user. The salt is
// the lowercased username, so the same password yields different verifiers
// for different accounts.
func MakeVerifier(userName string, password []byte) string {
	salt := []byte(strings.ToLower(userName))
	key := pbkdf2.Key(password, salt, verifierIterations, verifierKeyLen, sha512.New)
	return hex.EncodeToString(key)
}

// NewNonce returns a fresh random challenge.
func NewNonce() []byte {
	return common.GenerateRandByteArray(NonceSize)
}

// ChallengeDigest is HMAC-SHA256 keyed with the verifier over the nonce.
func ChallengeDigest(verifier string, nonce []byte) []byte {
	mac := hmac.New(sha256.New, []byte(verifier))
	mac.Write(nonce)
	return mac.Sum(nil)
}

// CheckDigest compares digests in constant time.
func CheckDigest(expected, got []byte) bool {
	return hmac.Equal(expected, got)
}

// KeyPair is an X25519 key pair. Only PublicKey ever leaves the client.
type KeyPair struct {
	PrivateKey []byte
	PublicKey  []byte
}

// GenerateKeyPair creates a new X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	priv := common.GenerateRandByteArray(curve25519.ScalarSize)
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	return &KeyPair{PrivateKey: priv, PublicKey: pub}, nil
}

// EncodePublicKey renders a public key the way it travels in user.pubkey.
func EncodePublicKey(pub []byte) string {
	return base64.StdEncoding.EncodeToString(pub)
}
