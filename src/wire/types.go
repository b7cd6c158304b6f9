package wire

import "fmt"

// Protocol constants of the network.
const (
	HeaderSize             = 8
	NumberOfExchangedPeers = 4
	NumberOfComputors      = 26 * 26
	Quorum                 = NumberOfComputors*2/3 + 1
	KeySize                = 32
	DigestSize             = 32
	SignatureSize          = 64
	NumberOfSolutionNonces = 1000
	NumberOfTickDigests    = 9

	// IssuanceRate is the number of units issued per epoch.
	IssuanceRate uint64 = 1000000000000
	// MaxRevenue is the largest revenue a single committee member can be
	// credited with in one epoch.
	MaxRevenue = IssuanceRate / NumberOfComputors

	// MaxFrameSize bounds the size a header may declare.
	MaxFrameSize = 1 << 24
)

// MessageType selects the payload layout of a frame.
type MessageType uint16

// Message types.
const (
	TypeExchangePublicPeers              MessageType = 0
	TypeBroadcastResourceTestingSolution MessageType = 1
	TypeBroadcastComputors               MessageType = 2
	TypeBroadcastTick                    MessageType = 3
	TypeBroadcastRevenues                MessageType = 4
	TypeRequestComputors                 MessageType = 11
)

// String ...
func (t MessageType) String() string {
	switch t {
	case TypeExchangePublicPeers:
		return "EXCHANGE_PUBLIC_PEERS"
	case TypeBroadcastResourceTestingSolution:
		return "BROADCAST_RESOURCE_TESTING_SOLUTION"
	case TypeBroadcastComputors:
		return "BROADCAST_COMPUTORS"
	case TypeBroadcastTick:
		return "BROADCAST_TICK"
	case TypeBroadcastRevenues:
		return "BROADCAST_REVENUES"
	case TypeRequestComputors:
		return "REQUEST_COMPUTORS"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
	}
}

// Known reports whether t is one of the message types above.
func (t MessageType) Known() bool {
	switch t {
	case TypeExchangePublicPeers,
		TypeBroadcastResourceTestingSolution,
		TypeBroadcastComputors,
		TypeBroadcastTick,
		TypeBroadcastRevenues,
		TypeRequestComputors:
		return true
	default:
		return false
	}
}

// Relayable reports whether an accepted frame of this type is flooded to the
// other peers.
func (t MessageType) Relayable() bool {
	switch t {
	case TypeBroadcastResourceTestingSolution,
		TypeBroadcastComputors,
		TypeBroadcastTick,
		TypeBroadcastRevenues:
		return true
	default:
		return false
	}
}

// Verifier is the part of the crypto collaborator the codec needs.
type Verifier interface {
	Hash(data []byte) [DigestSize]byte
	Verify(publicKey [KeySize]byte, digest [DigestSize]byte, signature [SignatureSize]byte) bool
}
