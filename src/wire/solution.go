package wire

// ResourceTestingSolutionSize is the payload size of
// BROADCAST_RESOURCE_TESTING_SOLUTION.
const ResourceTestingSolutionSize = KeySize + NumberOfSolutionNonces*32

// ResourceTestingSolution is a proof-of-work submission. Scoring it is left to
// downstream consumers; only its size is checked here.
type ResourceTestingSolution struct {
	PublicKey [KeySize]byte
	Nonces    [NumberOfSolutionNonces][32]byte
}

// DecodeResourceTestingSolution ...
func DecodeResourceTestingSolution(b []byte) (*ResourceTestingSolution, error) {
	if err := expectSize("decode resource testing solution", b, ResourceTestingSolutionSize); err != nil {
		return nil, err
	}
	s := &ResourceTestingSolution{}
	copy(s.PublicKey[:], b[:KeySize])
	off := KeySize
	for i := range s.Nonces {
		copy(s.Nonces[i][:], b[off:off+32])
		off += 32
	}
	return s, nil
}

// Bytes ...
func (s *ResourceTestingSolution) Bytes() []byte {
	b := make([]byte, ResourceTestingSolutionSize)
	copy(b, s.PublicKey[:])
	off := KeySize
	for i := range s.Nonces {
		copy(b[off:], s.Nonces[i][:])
		off += 32
	}
	return b
}
