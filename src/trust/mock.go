package trust

// MockValidator produces and checks deterministic signatures: the signature
// of a digest under a key is the 64 byte K12 output of key||digest. Only for
// tests.
type MockValidator struct{}

// NewMockValidator ...
func NewMockValidator() *MockValidator {
	return &MockValidator{}
}

// Sign returns the signature Verify accepts for publicKey and digest.
func (m *MockValidator) Sign(publicKey [KeySize]byte, digest [DigestSize]byte) [SignatureSize]byte {
	var sig [SignatureSize]byte
	buf := make([]byte, 0, KeySize+DigestSize)
	buf = append(buf, publicKey[:]...)
	buf = append(buf, digest[:]...)
	K12(buf, sig[:])
	return sig
}

// Verify implements the Validator interface.
func (m *MockValidator) Verify(publicKey [KeySize]byte, digest [DigestSize]byte, signature [SignatureSize]byte) bool {
	return m.Sign(publicKey, digest) == signature
}

// Hash implements the Validator interface.
func (m *MockValidator) Hash(data []byte) [DigestSize]byte {
	return K12Digest(data)
}

// Identity implements the Validator interface.
func (m *MockValidator) Identity(publicKey [KeySize]byte) string {
	return Identity(publicKey)
}
