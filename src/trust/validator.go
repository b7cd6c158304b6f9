package trust

import (
	"github.com/cloudflare/circl/xof"
)

// Sizes of the primitives handled by a Validator.
const (
	KeySize       = 32
	DigestSize    = 32
	SignatureSize = 64
)

// Validator is the narrow crypto contract used by the network layer.
type Validator interface {
	// Verify checks signature over digest against publicKey.
	Verify(publicKey [KeySize]byte, digest [DigestSize]byte, signature [SignatureSize]byte) bool

	// Hash returns the 32 byte KangarooTwelve digest of data.
	Hash(data []byte) [DigestSize]byte

	// Identity returns the 70 character textual form of publicKey.
	Identity(publicKey [KeySize]byte) string
}

// K12 hashes data with KangarooTwelve and fills out.
func K12(data []byte, out []byte) {
	h := xof.K12D10.New()
	h.Write(data)
	h.Read(out)
}

// K12Digest returns the 32 byte KangarooTwelve digest of data.
func K12Digest(data []byte) [DigestSize]byte {
	var d [DigestSize]byte
	K12(data, d[:])
	return d
}
