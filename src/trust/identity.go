package trust

import (
	"strings"

	"github.com/pkg/errors"
)

// IdentityLength is the length of a textual identity.
const IdentityLength = 2*KeySize + checksumLength

const checksumLength = 6

// AdminID is the identity whose key signs committee rosters.
const AdminID = "EEDMBLDKFLBNKDPFHDHOOOFLHBDCHNCJMODFMLCLGAPMLDCOAMDDCEKMBBBKHEGGLIAFFK"

// Identity encodes publicKey as 64 letters 'A'..'P', one per nibble, followed
// by 6 letters encoding the first 3 bytes of its K12 digest.
func Identity(publicKey [KeySize]byte) string {
	var sb strings.Builder
	sb.Grow(IdentityLength)
	writeNibbles(&sb, publicKey[:])
	sum := K12Digest(publicKey[:])
	writeNibbles(&sb, sum[:checksumLength/2])
	return sb.String()
}

func writeNibbles(sb *strings.Builder, b []byte) {
	for _, c := range b {
		sb.WriteByte('A' + c>>4)
		sb.WriteByte('A' + c&0x0f)
	}
}

// PublicKeyFromIdentity decodes the key part of an identity. Only the length
// and the alphabet are checked, see ValidIdentity for the checksum.
func PublicKeyFromIdentity(id string) ([KeySize]byte, error) {
	var key [KeySize]byte
	if len(id) != IdentityLength {
		return key, errors.Errorf("identity has %d characters, expected %d", len(id), IdentityLength)
	}
	for i := 0; i < IdentityLength; i++ {
		if id[i] < 'A' || id[i] > 'P' {
			return key, errors.Errorf("invalid character %q at %d", id[i], i)
		}
	}
	for i := range key {
		key[i] = (id[2*i]-'A')<<4 | (id[2*i+1] - 'A')
	}
	return key, nil
}

// ValidIdentity reports whether id decodes and carries the checksum of its
// key.
func ValidIdentity(id string) bool {
	key, err := PublicKeyFromIdentity(id)
	return err == nil && Identity(key) == id
}
