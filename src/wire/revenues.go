package wire

import "encoding/binary"

// RevenuesSize is the payload size of BROADCAST_REVENUES.
const RevenuesSize = 4 + NumberOfComputors*4 + SignatureSize

// Revenues is one member's view of what every member earned in an epoch.
type Revenues struct {
	ComputorIndex uint16
	Epoch         uint16
	Values        [NumberOfComputors]uint32
	Signature     [SignatureSize]byte
}

// DecodeRevenues ...
func DecodeRevenues(b []byte) (*Revenues, error) {
	if err := expectSize("decode revenues", b, RevenuesSize); err != nil {
		return nil, err
	}
	r := &Revenues{
		ComputorIndex: binary.LittleEndian.Uint16(b[0:2]),
		Epoch:         binary.LittleEndian.Uint16(b[2:4]),
	}
	off := 4
	for i := range r.Values {
		r.Values[i] = binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
	}
	copy(r.Signature[:], b[off:off+SignatureSize])
	return r, nil
}

// Bytes ...
func (r *Revenues) Bytes() []byte {
	return r.encode(r.ComputorIndex)
}

func (r *Revenues) encode(index uint16) []byte {
	b := make([]byte, RevenuesSize)
	binary.LittleEndian.PutUint16(b[0:2], index)
	binary.LittleEndian.PutUint16(b[2:4], r.Epoch)
	off := 4
	for _, v := range r.Values {
		binary.LittleEndian.PutUint32(b[off:off+4], v)
		off += 4
	}
	copy(b[off:], r.Signature[:])
	return b
}

// InRange checks the index and that no value exceeds MaxRevenue.
func (r *Revenues) InRange() bool {
	if r.ComputorIndex >= NumberOfComputors {
		return false
	}
	for _, v := range r.Values {
		if uint64(v) > MaxRevenue {
			return false
		}
	}
	return true
}

// Digest hashes the body with the index XORed with the message type. The
// decoded value is left untouched.
func (r *Revenues) Digest(v Verifier) [DigestSize]byte {
	b := r.encode(r.ComputorIndex ^ uint16(TypeBroadcastRevenues))
	return v.Hash(b[:RevenuesSize-SignatureSize])
}

// Verify checks the signature against the key of the member at ComputorIndex.
func (r *Revenues) Verify(v Verifier, key [KeySize]byte) bool {
	return v.Verify(key, r.Digest(v), r.Signature)
}
