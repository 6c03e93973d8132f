package cryptox

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"
)

func TestMakeVerifier_KnownValue(t *testing.T) {
	v := MakeVerifier("alice", []byte("secret"))
	assert.Equal(t, "3f00bffa36d84b8dd72b5526be5b8ed17404f72c9559b4098f6af8f4fa9c91ae"+
		"fe8b4b2d9ba12cae8addda1102645f86f57399d2ab529b7d5346adc3439269e4", v)
}

func TestMakeVerifier_SaltIsCaseInsensitiveUserName(t *testing.T) {
	assert.Equal(t, MakeVerifier("Alice", []byte("secret")), MakeVerifier("alice", []byte("secret")))
	assert.NotEqual(t, MakeVerifier("alice", []byte("secret")), MakeVerifier("bob", []byte("secret")))
	assert.NotEqual(t, MakeVerifier("alice", []byte("secret")), MakeVerifier("alice", []byte("Secret")))
}

func TestChallengeDigest_KnownValue(t *testing.T) {
	v := MakeVerifier("alice", []byte("secret"))
	d := ChallengeDigest(v, []byte("nonce"))
	assert.Equal(t, "f191bb1fada0405c9ac3ced8a15d89214008586480fe1b9527a36acb66405383", hex.EncodeToString(d))
}

func TestCheckDigest(t *testing.T) {
	v := MakeVerifier("alice", []byte("secret"))
	nonce := NewNonce()
	require.Len(t, nonce, NonceSize)

	good := ChallengeDigest(v, nonce)
	assert.True(t, CheckDigest(good, ChallengeDigest(v, nonce)))

	wrong := ChallengeDigest(MakeVerifier("alice", []byte("guess")), nonce)
	assert.False(t, CheckDigest(good, wrong))
	assert.False(t, CheckDigest(good, good[:10]))
	assert.False(t, CheckDigest(good, nil))
}

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	require.Len(t, kp.PrivateKey, curve25519.ScalarSize)
	require.Len(t, kp.PublicKey, curve25519.PointSize)

	pub, err := curve25519.X25519(kp.PrivateKey, curve25519.Basepoint)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, pub)

	enc := EncodePublicKey(kp.PublicKey)
	dec, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, dec)
}
