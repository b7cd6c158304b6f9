package store

import (
	"os"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	cm "github.com/qubicnet/qgossip/src/common"
	"github.com/qubicnet/qgossip/src/wire"
)

const (
	computorsKey = "computors"
	peersKey     = "peers_known"
)

// BadgerStore keeps the roster and the known pool in a badger database.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore opens, or creates, the database at path.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, errors.Wrapf(err, "creating %s", path)
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	if logger != nil {
		opts.Logger = logger.WithField("prefix", "badger")
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{
		db:   handle,
		path: path,
	}, nil
}

// StorePath ...
func (s *BadgerStore) StorePath() string {
	return s.path
}

// LoadComputors implements the Store interface.
func (s *BadgerStore) LoadComputors() (*wire.Computors, error) {
	buf, err := s.get(computorsKey)
	if err != nil {
		return nil, mapError(err, "Computors", computorsKey)
	}
	if len(buf) != wire.ComputorsSize {
		return nil, cm.NewStoreErr("Computors", cm.Corrupted, computorsKey)
	}
	return wire.DecodeComputors(buf)
}

// SaveComputors implements the Store interface.
func (s *BadgerStore) SaveComputors(c *wire.Computors) error {
	return s.set(computorsKey, c.Bytes())
}

// LoadPeers implements the Store interface.
func (s *BadgerStore) LoadPeers() ([]string, error) {
	buf, err := s.get(peersKey)
	if err != nil {
		return nil, mapError(err, "Peers", peersKey)
	}
	ips, err := decodePeers(buf, msgpackHandle())
	if err != nil {
		return nil, cm.NewStoreErr("Peers", cm.Corrupted, peersKey)
	}
	return ips, nil
}

// SavePeers implements the Store interface.
func (s *BadgerStore) SavePeers(ips []string) error {
	buf, err := encodePeers(ips, msgpackHandle())
	if err != nil {
		return err
	}
	return s.set(peersKey, buf)
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) get(key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

func (s *BadgerStore) set(key string, val []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if isDBKeyNotFound(err) {
		return cm.NewStoreErr(name, cm.KeyNotFound, key)
	}
	return err
}
