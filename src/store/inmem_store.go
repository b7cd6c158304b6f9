package store

import (
	"sync"

	cm "github.com/qubicnet/qgossip/src/common"
	"github.com/qubicnet/qgossip/src/wire"
)

// InmemStore keeps everything in memory. Used in tests and when nothing should
// survive a restart.
type InmemStore struct {
	l         sync.Mutex
	computors *wire.Computors
	peers     []string
	closed    bool
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{}
}

// LoadComputors implements the Store interface.
func (s *InmemStore) LoadComputors() (*wire.Computors, error) {
	s.l.Lock()
	defer s.l.Unlock()
	if s.closed {
		return nil, cm.NewStoreErr("Computors", cm.Closed, "")
	}
	if s.computors == nil {
		return nil, cm.NewStoreErr("Computors", cm.KeyNotFound, "")
	}
	return s.computors.Copy(), nil
}

// SaveComputors implements the Store interface.
func (s *InmemStore) SaveComputors(c *wire.Computors) error {
	s.l.Lock()
	defer s.l.Unlock()
	if s.closed {
		return cm.NewStoreErr("Computors", cm.Closed, "")
	}
	s.computors = c.Copy()
	return nil
}

// LoadPeers implements the Store interface.
func (s *InmemStore) LoadPeers() ([]string, error) {
	s.l.Lock()
	defer s.l.Unlock()
	if s.closed {
		return nil, cm.NewStoreErr("Peers", cm.Closed, "")
	}
	if s.peers == nil {
		return nil, cm.NewStoreErr("Peers", cm.KeyNotFound, "")
	}
	return append([]string(nil), s.peers...), nil
}

// SavePeers implements the Store interface.
func (s *InmemStore) SavePeers(ips []string) error {
	s.l.Lock()
	defer s.l.Unlock()
	if s.closed {
		return cm.NewStoreErr("Peers", cm.Closed, "")
	}
	s.peers = append([]string{}, ips...)
	return nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	s.l.Lock()
	defer s.l.Unlock()
	s.closed = true
	return nil
}
