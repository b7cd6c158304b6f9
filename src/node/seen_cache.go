package node

import (
	"sync"

	"github.com/qubicnet/qgossip/src/wire"
)

// seenCache remembers the digests of the last size relayed frames.
type seenCache struct {
	l    sync.Mutex
	size int
	set  map[[wire.DigestSize]byte]struct{}
	ring [][wire.DigestSize]byte
	next int
}

func newSeenCache(size int) *seenCache {
	if size <= 0 {
		return nil
	}
	return &seenCache{
		size: size,
		set:  make(map[[wire.DigestSize]byte]struct{}, size),
		ring: make([][wire.DigestSize]byte, 0, size),
	}
}

// Add records key and reports whether it was new. The oldest key is evicted
// once the cache is full.
func (c *seenCache) Add(key [wire.DigestSize]byte) bool {
	c.l.Lock()
	defer c.l.Unlock()

	if _, ok := c.set[key]; ok {
		return false
	}

	if len(c.ring) < c.size {
		c.ring = append(c.ring, key)
	} else {
		delete(c.set, c.ring[c.next])
		c.ring[c.next] = key
		c.next = (c.next + 1) % c.size
	}
	c.set[key] = struct{}{}
	return true
}
