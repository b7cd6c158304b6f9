package wire

import "encoding/binary"

// Header precedes every frame.
type Header struct {
	Size     uint32
	Protocol uint16
	Type     MessageType
}

// PayloadSize is the number of bytes following the header.
func (h Header) PayloadSize() int {
	if h.Size < HeaderSize {
		return 0
	}
	return int(h.Size) - HeaderSize
}

// EncodeHeader returns the 8 byte representation of h.
func EncodeHeader(h Header) []byte {
	b := make([]byte, HeaderSize)
	putHeader(b, h)
	return b
}

func putHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint32(b[0:4], h.Size)
	binary.LittleEndian.PutUint16(b[4:6], h.Protocol)
	binary.LittleEndian.PutUint16(b[6:8], uint16(h.Type))
}

// DecodeHeader reads a header from the first 8 bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, formatErr("decode header", "%d bytes, need %d", len(b), HeaderSize)
	}
	return Header{
		Size:     binary.LittleEndian.Uint32(b[0:4]),
		Protocol: binary.LittleEndian.Uint16(b[4:6]),
		Type:     MessageType(binary.LittleEndian.Uint16(b[6:8])),
	}, nil
}

// ExtractPayload returns the payload of the frame b described by h.
func ExtractPayload(b []byte, h Header) ([]byte, error) {
	if h.Size < HeaderSize {
		return nil, formatErr("extract payload", "header size %d below %d", h.Size, HeaderSize)
	}
	if uint64(len(b)) < uint64(h.Size) {
		return nil, formatErr("extract payload", "%d bytes available, header declares %d", len(b), h.Size)
	}
	return b[HeaderSize:h.Size], nil
}

// HeaderIsAcceptable reports whether a header announces a frame worth
// reading: non-zero size and a protocol version within one of ours.
func HeaderIsAcceptable(h Header, localProtocol uint16) bool {
	if h.Size == 0 {
		return false
	}
	delta := int(h.Protocol) - int(localProtocol)
	return delta >= -1 && delta <= 1
}

// NewFrame builds a complete frame from a type and a payload.
func NewFrame(t MessageType, protocol uint16, payload []byte) []byte {
	b := make([]byte, HeaderSize+len(payload))
	putHeader(b, Header{
		Size:     uint32(HeaderSize + len(payload)),
		Protocol: protocol,
		Type:     t,
	})
	copy(b[HeaderSize:], payload)
	return b
}
