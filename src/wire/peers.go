package wire

import (
	"strconv"
	"strings"
)

// IPv4 is a 4 octet address as carried on the wire.
type IPv4 [4]byte

// String returns the dotted-decimal form.
func (ip IPv4) String() string {
	var sb strings.Builder
	for i, o := range ip {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(int(o)))
	}
	return sb.String()
}

// IsZero reports whether ip is 0.0.0.0, which marks an unused slot.
func (ip IPv4) IsZero() bool {
	return ip == IPv4{}
}

// IsValidIP reports whether s is four dot-separated decimal octets, each of one
// to three digits and at most 255.
func IsValidIP(s string) bool {
	_, ok := ParseIPv4(s)
	return ok
}

// ParseIPv4 converts the textual form into an IPv4.
func ParseIPv4(s string) (IPv4, bool) {
	var ip IPv4
	octets := strings.Split(s, ".")
	if len(octets) != 4 {
		return ip, false
	}
	for i, octet := range octets {
		if len(octet) == 0 || len(octet) > 3 {
			return IPv4{}, false
		}
		v := 0
		for _, c := range octet {
			if c < '0' || c > '9' {
				return IPv4{}, false
			}
			v = v*10 + int(c-'0')
		}
		if v > 255 {
			return IPv4{}, false
		}
		ip[i] = byte(v)
	}
	return ip, true
}

// ExchangePublicPeersSize is the payload size of EXCHANGE_PUBLIC_PEERS.
const ExchangePublicPeersSize = NumberOfExchangedPeers * 4

// ExchangePublicPeers carries a sample of the sender's known addresses.
type ExchangePublicPeers struct {
	Peers [NumberOfExchangedPeers]IPv4
}

// NewExchangePublicPeers fills the slots from ips, skipping invalid entries.
// Unused slots stay 0.0.0.0.
func NewExchangePublicPeers(ips []string) *ExchangePublicPeers {
	e := &ExchangePublicPeers{}
	n := 0
	for _, s := range ips {
		if n == NumberOfExchangedPeers {
			break
		}
		if ip, ok := ParseIPv4(s); ok {
			e.Peers[n] = ip
			n++
		}
	}
	return e
}

// DecodeExchangePublicPeers ...
func DecodeExchangePublicPeers(b []byte) (*ExchangePublicPeers, error) {
	if err := expectSize("decode exchange public peers", b, ExchangePublicPeersSize); err != nil {
		return nil, err
	}
	e := &ExchangePublicPeers{}
	for i := range e.Peers {
		copy(e.Peers[i][:], b[i*4:i*4+4])
	}
	return e, nil
}

// Bytes ...
func (e *ExchangePublicPeers) Bytes() []byte {
	b := make([]byte, ExchangePublicPeersSize)
	for i, ip := range e.Peers {
		copy(b[i*4:], ip[:])
	}
	return b
}

// IPs returns the textual form of every non-zero slot.
func (e *ExchangePublicPeers) IPs() []string {
	res := make([]string, 0, NumberOfExchangedPeers)
	for _, ip := range e.Peers {
		if !ip.IsZero() {
			res = append(res, ip.String())
		}
	}
	return res
}
