package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	cm "github.com/qubicnet/qgossip/src/common"
	"github.com/qubicnet/qgossip/src/wire"
)

const (
	computorsFile = "system.data"
	peersFile     = "peers.json"
)

// FileStore persists the committee roster verbatim in system.data and the
// known pool as JSON in peers.json, both under one directory.
type FileStore struct {
	l    sync.Mutex
	path string
}

// NewFileStore creates the directory if needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, errors.Wrapf(err, "creating %s", path)
	}
	return &FileStore{path: path}, nil
}

// ComputorsPath is the location of the committee roster file.
func (s *FileStore) ComputorsPath() string {
	return filepath.Join(s.path, computorsFile)
}

// LoadComputors implements the Store interface.
func (s *FileStore) LoadComputors() (*wire.Computors, error) {
	s.l.Lock()
	defer s.l.Unlock()
	return ReadComputorsFile(s.ComputorsPath())
}

// ReadComputorsFile decodes a roster file written by a FileStore. Any other
// size, a full node state snapshot included, is Corrupted.
func ReadComputorsFile(path string) (*wire.Computors, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cm.NewStoreErr("Computors", cm.KeyNotFound, path)
		}
		return nil, err
	}
	if len(buf) != wire.ComputorsSize {
		return nil, cm.NewStoreErr("Computors", cm.Corrupted, path)
	}
	return wire.DecodeComputors(buf)
}

// SaveComputors implements the Store interface. The file is replaced
// atomically.
func (s *FileStore) SaveComputors(c *wire.Computors) error {
	s.l.Lock()
	defer s.l.Unlock()
	return writeFileAtomic(s.ComputorsPath(), c.Bytes())
}

// LoadPeers implements the Store interface.
func (s *FileStore) LoadPeers() ([]string, error) {
	s.l.Lock()
	defer s.l.Unlock()

	path := filepath.Join(s.path, peersFile)
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cm.NewStoreErr("Peers", cm.KeyNotFound, path)
		}
		return nil, err
	}
	if len(buf) == 0 {
		return nil, cm.NewStoreErr("Peers", cm.KeyNotFound, path)
	}
	ips, err := decodePeers(buf, jsonHandle())
	if err != nil {
		return nil, cm.NewStoreErr("Peers", cm.Corrupted, path)
	}
	return ips, nil
}

// SavePeers implements the Store interface.
func (s *FileStore) SavePeers(ips []string) error {
	s.l.Lock()
	defer s.l.Unlock()

	buf, err := encodePeers(ips, jsonHandle())
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.path, peersFile), buf)
}

// Close implements the Store interface.
func (s *FileStore) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "replacing %s", path)
	}
	return nil
}
