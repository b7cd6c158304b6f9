package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityRoundTrip(t *testing.T) {
	var key [KeySize]byte
	for i := range key {
		key[i] = byte(i * 7)
	}

	id := Identity(key)
	require.Len(t, id, IdentityLength)
	assert.True(t, ValidIdentity(id))

	back, err := PublicKeyFromIdentity(id)
	require.NoError(t, err)
	assert.Equal(t, key, back)
}

func TestIdentityZeroKeyPrefix(t *testing.T) {
	id := Identity([KeySize]byte{})
	assert.Equal(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", id[:64])
}

func TestPublicKeyFromIdentityRejects(t *testing.T) {
	var key [KeySize]byte
	key[0] = 0x12
	id := Identity(key)

	_, err := PublicKeyFromIdentity(id[:69])
	assert.Error(t, err, "short identity")

	_, err = PublicKeyFromIdentity("a" + id[1:])
	assert.Error(t, err, "lower case letter")

	// change the first key nibble, the checksum no longer matches
	tampered := "C" + id[1:]
	_, err = PublicKeyFromIdentity(tampered)
	assert.NoError(t, err)
	assert.False(t, ValidIdentity(tampered))

	assert.False(t, ValidIdentity(id[:69]))
}

func TestAdminIDDecodes(t *testing.T) {
	key, err := PublicKeyFromIdentity(AdminID)
	require.NoError(t, err)
	assert.Equal(t, AdminID[:2*KeySize], Identity(key)[:2*KeySize])
}

func TestMockValidator(t *testing.T) {
	m := NewMockValidator()

	var key [KeySize]byte
	key[3] = 9
	digest := m.Hash([]byte("tick"))

	sig := m.Sign(key, digest)
	assert.True(t, m.Verify(key, digest, sig))

	sig[0] ^= 0xff
	assert.False(t, m.Verify(key, digest, sig))

	other := key
	other[3] = 10
	assert.False(t, m.Verify(other, digest, m.Sign(key, digest)))
}

func TestK12Deterministic(t *testing.T) {
	a := K12Digest([]byte("qubic"))
	b := K12Digest([]byte("qubic"))
	c := K12Digest([]byte("qubid"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
