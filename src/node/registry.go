package node

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/qubicnet/qgossip/src/net"
	"github.com/qubicnet/qgossip/src/wire"
)

// Membership is the state of an IP in the Registry.
type Membership uint8

const (
	// Known IPs are idle and may be dialed.
	Known Membership = iota
	// Active IPs have a dial pending or a live connection.
	Active
	// Forgotten IPs failed at dial, handshake or protocol level and are not
	// dialed until the pool runs dry.
	Forgotten
)

// String ...
func (m Membership) String() string {
	switch m {
	case Known:
		return "Known"
	case Active:
		return "Active"
	case Forgotten:
		return "Forgotten"
	default:
		return "Unknown"
	}
}

// restoreThreshold is the pool size at or below which forgotten IPs are given
// another chance.
const restoreThreshold = 2

// Registry tracks every IP the node knows about together with the live peer
// handles. An IP has exactly one Membership. The known pool is Active plus
// Known.
type Registry struct {
	l       sync.Mutex
	members map[string]Membership
	peers   map[string]*net.Peer
}

// NewRegistry ...
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[string]Membership),
		peers:   make(map[string]*net.Peer),
	}
}

// AddIPs records valid IPs never seen before as Known and returns them.
// Forgotten IPs stay forgotten.
func (r *Registry) AddIPs(ips []string) []string {
	r.l.Lock()
	defer r.l.Unlock()

	var added []string
	for _, ip := range ips {
		if !wire.IsValidIP(ip) {
			continue
		}
		if _, ok := r.members[ip]; ok {
			continue
		}
		r.members[ip] = Known
		added = append(added, ip)
	}
	return added
}

// Activate marks ip Active. It fails if ip is already Active or Forgotten.
func (r *Registry) Activate(ip string) bool {
	r.l.Lock()
	defer r.l.Unlock()

	if m, ok := r.members[ip]; ok && m != Known {
		return false
	}
	r.members[ip] = Active
	return true
}

// Attach records the handle of an Active IP.
func (r *Registry) Attach(ip string, p *net.Peer) bool {
	r.l.Lock()
	defer r.l.Unlock()

	if r.members[ip] != Active {
		return false
	}
	r.peers[ip] = p
	return true
}

// Remove drops the handle of ip, if p is still the one attached, and returns
// an Active ip to Known.
func (r *Registry) Remove(ip string, p *net.Peer) {
	r.l.Lock()
	defer r.l.Unlock()

	r.detach(ip, p)
	if r.members[ip] == Active {
		r.members[ip] = Known
	}
}

// Forget drops the handle of ip and marks it Forgotten.
func (r *Registry) Forget(ip string, p *net.Peer) {
	r.l.Lock()
	defer r.l.Unlock()

	r.detach(ip, p)
	r.members[ip] = Forgotten
}

func (r *Registry) detach(ip string, p *net.Peer) {
	if cur, ok := r.peers[ip]; ok && (p == nil || cur == p) {
		delete(r.peers, ip)
	}
}

// Restore moves every Forgotten IP back to Known when the pool has shrunk to
// restoreThreshold entries or fewer. It returns the number of restored IPs.
func (r *Registry) Restore() int {
	r.l.Lock()
	defer r.l.Unlock()

	pool := 0
	for _, m := range r.members {
		if m != Forgotten {
			pool++
		}
	}
	if pool > restoreThreshold {
		return 0
	}

	n := 0
	for ip, m := range r.members {
		if m == Forgotten {
			r.members[ip] = Known
			n++
		}
	}
	return n
}

// Membership returns the state of ip and whether it is registered at all.
func (r *Registry) Membership(ip string) (Membership, bool) {
	r.l.Lock()
	defer r.l.Unlock()
	m, ok := r.members[ip]
	return m, ok
}

// Known returns the idle, dialable IPs.
func (r *Registry) Known() []string {
	return r.list(func(m Membership) bool { return m == Known })
}

// Pool returns the known pool: Active and Known IPs.
func (r *Registry) Pool() []string {
	return r.list(func(m Membership) bool { return m != Forgotten })
}

// Forgotten ...
func (r *Registry) Forgotten() []string {
	return r.list(func(m Membership) bool { return m == Forgotten })
}

// Active ...
func (r *Registry) Active() []string {
	return r.list(func(m Membership) bool { return m == Active })
}

func (r *Registry) list(filter func(Membership) bool) []string {
	r.l.Lock()
	defer r.l.Unlock()

	res := []string{}
	for ip, m := range r.members {
		if filter(m) {
			res = append(res, ip)
		}
	}
	sort.Strings(res)
	return res
}

// Sample returns up to n random IPs of the pool, excluding exclude.
func (r *Registry) Sample(n int, exclude string) []string {
	pool := r.Pool()
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	res := make([]string, 0, n)
	for _, ip := range pool {
		if len(res) == n {
			break
		}
		if ip != exclude {
			res = append(res, ip)
		}
	}
	return res
}

// Peers returns the attached handles.
func (r *Registry) Peers() []*net.Peer {
	r.l.Lock()
	defer r.l.Unlock()

	res := make([]*net.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		res = append(res, p)
	}
	return res
}

// Counts returns the number of IPs in each Membership.
func (r *Registry) Counts() (active, known, forgotten int) {
	r.l.Lock()
	defer r.l.Unlock()

	for _, m := range r.members {
		switch m {
		case Active:
			active++
		case Known:
			known++
		case Forgotten:
			forgotten++
		}
	}
	return
}
