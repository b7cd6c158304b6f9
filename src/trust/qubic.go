package trust

import (
	"github.com/qubic/go-schnorrq"
)

// QubicValidator verifies SchnorrQ signatures over FourQ keys.
type QubicValidator struct{}

// NewQubicValidator ...
func NewQubicValidator() *QubicValidator {
	return &QubicValidator{}
}

// Verify implements the Validator interface.
func (v *QubicValidator) Verify(publicKey [KeySize]byte, digest [DigestSize]byte, signature [SignatureSize]byte) bool {
	return schnorrq.Verify(publicKey, digest, signature) == nil
}

// Hash implements the Validator interface.
func (v *QubicValidator) Hash(data []byte) [DigestSize]byte {
	return K12Digest(data)
}

// Identity implements the Validator interface.
func (v *QubicValidator) Identity(publicKey [KeySize]byte) string {
	return Identity(publicKey)
}
