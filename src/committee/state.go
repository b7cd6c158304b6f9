// Package committee holds the cached committee roster: the latest epoch's
// ordered public keys, signed by the admin key.
package committee

import (
	"sync"

	"github.com/sirupsen/logrus"

	cm "github.com/qubicnet/qgossip/src/common"
	"github.com/qubicnet/qgossip/src/store"
	"github.com/qubicnet/qgossip/src/wire"
)

// State is the single owner of the cached roster. Replacing it is an atomic
// check-verify-replace-persist step.
type State struct {
	l         sync.RWMutex
	computors *wire.Computors

	adminKey [wire.KeySize]byte
	verifier wire.Verifier
	store    store.Store
	logger   *logrus.Entry
}

// NewState ...
func NewState(adminKey [wire.KeySize]byte, verifier wire.Verifier, s store.Store, logger *logrus.Entry) *State {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &State{
		adminKey: adminKey,
		verifier: verifier,
		store:    s,
		logger:   logger.WithField("prefix", "committee"),
	}
}

// Load reads the persisted roster. A missing or damaged record is ignored and
// the node starts without a committee. The record must still carry a valid
// admin signature.
func (s *State) Load() {
	if s.store == nil {
		return
	}
	c, err := s.store.LoadComputors()
	if err != nil {
		if cm.IsStore(err, cm.KeyNotFound) {
			s.logger.Debug("No cached computors")
		} else {
			s.logger.WithError(err).Warn("Ignoring cached computors")
		}
		return
	}
	if !c.Verify(s.verifier, s.adminKey) {
		s.logger.WithField("epoch", c.Epoch).Warn("Ignoring cached computors with a bad signature")
		return
	}

	s.l.Lock()
	s.computors = c
	s.l.Unlock()

	s.logger.WithField("epoch", c.Epoch).Info("Loaded cached computors")
}

// Apply replaces the cached roster with c if c is from a strictly newer epoch
// and carries a valid admin signature. A rejection is a ValidationError. A
// persistence failure is logged and does not undo the replacement.
func (s *State) Apply(c *wire.Computors) error {
	s.l.Lock()
	defer s.l.Unlock()

	if s.computors != nil && c.Epoch <= s.computors.Epoch {
		return cm.Validationf("apply computors", "epoch %d not newer than %d", c.Epoch, s.computors.Epoch)
	}
	if !c.Verify(s.verifier, s.adminKey) {
		return cm.Validationf("apply computors", "bad admin signature for epoch %d", c.Epoch)
	}

	s.computors = c.Copy()

	if s.store != nil {
		if err := s.store.SaveComputors(s.computors); err != nil {
			s.logger.WithError(err).Error("Persisting computors")
		}
	}
	return nil
}

// Epoch returns the cached epoch and whether a roster is cached.
func (s *State) Epoch() (uint16, bool) {
	s.l.RLock()
	defer s.l.RUnlock()
	if s.computors == nil {
		return 0, false
	}
	return s.computors.Epoch, true
}

// Current returns a copy of the cached roster, or nil.
func (s *State) Current() *wire.Computors {
	s.l.RLock()
	defer s.l.RUnlock()
	if s.computors == nil {
		return nil
	}
	return s.computors.Copy()
}

// KeyAt returns the public key of the committee member at index together with
// the cached epoch.
func (s *State) KeyAt(index uint16) (key [wire.KeySize]byte, epoch uint16, ok bool) {
	s.l.RLock()
	defer s.l.RUnlock()
	if s.computors == nil || int(index) >= wire.NumberOfComputors {
		return key, 0, false
	}
	return s.computors.PublicKeys[index], s.computors.Epoch, true
}

// Frame returns the cached roster as a BROADCAST_COMPUTORS frame, or nil.
func (s *State) Frame(protocol uint16) []byte {
	s.l.RLock()
	defer s.l.RUnlock()
	if s.computors == nil {
		return nil
	}
	return s.computors.Frame(protocol)
}
