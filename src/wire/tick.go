package wire

import "encoding/binary"

// TickSize is the payload size of BROADCAST_TICK.
const TickSize = 16 + NumberOfTickDigests*DigestSize + SignatureSize

// Tick is the periodic signed heartbeat of a committee member.
type Tick struct {
	ComputorIndex uint16
	Epoch         uint16
	Tick          uint32

	Millisecond uint16
	Second      uint8
	Minute      uint8
	Hour        uint8
	Day         uint8
	Month       uint8
	Year        uint8

	// Three triples: previous state, salted state and next-tick digests.
	Digests [NumberOfTickDigests][DigestSize]byte

	Signature [SignatureSize]byte
}

// DecodeTick ...
func DecodeTick(b []byte) (*Tick, error) {
	if err := expectSize("decode tick", b, TickSize); err != nil {
		return nil, err
	}
	t := &Tick{
		ComputorIndex: binary.LittleEndian.Uint16(b[0:2]),
		Epoch:         binary.LittleEndian.Uint16(b[2:4]),
		Tick:          binary.LittleEndian.Uint32(b[4:8]),
		Millisecond:   binary.LittleEndian.Uint16(b[8:10]),
		Second:        b[10],
		Minute:        b[11],
		Hour:          b[12],
		Day:           b[13],
		Month:         b[14],
		Year:          b[15],
	}
	off := 16
	for i := range t.Digests {
		copy(t.Digests[i][:], b[off:off+DigestSize])
		off += DigestSize
	}
	copy(t.Signature[:], b[off:off+SignatureSize])
	return t, nil
}

// Bytes ...
func (t *Tick) Bytes() []byte {
	return t.encode(t.ComputorIndex)
}

func (t *Tick) encode(index uint16) []byte {
	b := make([]byte, TickSize)
	binary.LittleEndian.PutUint16(b[0:2], index)
	binary.LittleEndian.PutUint16(b[2:4], t.Epoch)
	binary.LittleEndian.PutUint32(b[4:8], t.Tick)
	binary.LittleEndian.PutUint16(b[8:10], t.Millisecond)
	b[10] = t.Second
	b[11] = t.Minute
	b[12] = t.Hour
	b[13] = t.Day
	b[14] = t.Month
	b[15] = t.Year
	off := 16
	for i := range t.Digests {
		copy(b[off:], t.Digests[i][:])
		off += DigestSize
	}
	copy(b[off:], t.Signature[:])
	return b
}

// InRange checks the bounded fields.
func (t *Tick) InRange() bool {
	return t.Hour <= 23 &&
		t.Minute <= 59 &&
		t.Second <= 59 &&
		t.Millisecond <= 999 &&
		t.ComputorIndex < NumberOfComputors
}

// Digest hashes the body with the index XORed with the message type, which is
// how members sign ticks.
func (t *Tick) Digest(v Verifier) [DigestSize]byte {
	b := t.encode(t.ComputorIndex ^ uint16(TypeBroadcastTick))
	return v.Hash(b[:TickSize-SignatureSize])
}

// Verify checks the signature against the key of the member at ComputorIndex.
func (t *Tick) Verify(v Verifier, key [KeySize]byte) bool {
	return v.Verify(key, t.Digest(v), t.Signature)
}
