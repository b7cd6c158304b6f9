package wire

import "encoding/binary"

// ComputorsSize is the payload size of BROADCAST_COMPUTORS.
const ComputorsSize = 2 + NumberOfComputors*KeySize + SignatureSize

// Computors is the committee roster of an epoch, signed by the admin key. It
// travels as the payload of BROADCAST_COMPUTORS.
type Computors struct {
	Epoch      uint16
	PublicKeys [NumberOfComputors][KeySize]byte
	Signature  [SignatureSize]byte
}

// DecodeComputors ...
func DecodeComputors(b []byte) (*Computors, error) {
	if err := expectSize("decode computors", b, ComputorsSize); err != nil {
		return nil, err
	}
	c := &Computors{}
	c.Epoch = binary.LittleEndian.Uint16(b[0:2])
	off := 2
	for i := range c.PublicKeys {
		copy(c.PublicKeys[i][:], b[off:off+KeySize])
		off += KeySize
	}
	copy(c.Signature[:], b[off:off+SignatureSize])
	return c, nil
}

// Bytes ...
func (c *Computors) Bytes() []byte {
	b := make([]byte, ComputorsSize)
	binary.LittleEndian.PutUint16(b[0:2], c.Epoch)
	off := 2
	for i := range c.PublicKeys {
		copy(b[off:], c.PublicKeys[i][:])
		off += KeySize
	}
	copy(b[off:], c.Signature[:])
	return b
}

// Digest hashes everything but the signature.
func (c *Computors) Digest(v Verifier) [DigestSize]byte {
	return v.Hash(c.Bytes()[:ComputorsSize-SignatureSize])
}

// Verify checks the signature against key, normally the admin key.
func (c *Computors) Verify(v Verifier, key [KeySize]byte) bool {
	return v.Verify(key, c.Digest(v), c.Signature)
}

// Frame wraps the roster into a BROADCAST_COMPUTORS frame.
func (c *Computors) Frame(protocol uint16) []byte {
	return NewFrame(TypeBroadcastComputors, protocol, c.Bytes())
}

// Copy returns a deep copy.
func (c *Computors) Copy() *Computors {
	cp := *c
	return &cp
}
