// Package store persists the state a node carries between runs: the last
// accepted committee roster and the pool of known peer addresses.
package store

import (
	"bytes"

	"github.com/ugorji/go/codec"

	"github.com/qubicnet/qgossip/src/wire"
)

// Store ...
type Store interface {
	// LoadComputors returns the persisted committee roster. A missing record
	// is a KeyNotFound StoreErr and a record of the wrong size is Corrupted.
	LoadComputors() (*wire.Computors, error)
	SaveComputors(*wire.Computors) error
	LoadPeers() ([]string, error)
	SavePeers([]string) error
	Close() error
}

// peerList is the persisted form of the known pool.
type peerList struct {
	IPs []string `json:"ips"`
}

func encodePeers(ips []string, h codec.Handle) ([]byte, error) {
	var b bytes.Buffer
	enc := codec.NewEncoder(&b, h)
	if err := enc.Encode(&peerList{IPs: ips}); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decodePeers(data []byte, h codec.Handle) ([]string, error) {
	var pl peerList
	dec := codec.NewDecoderBytes(data, h)
	if err := dec.Decode(&pl); err != nil {
		return nil, err
	}
	return pl.IPs, nil
}

func jsonHandle() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	jh.Indent = 1
	return jh
}

func msgpackHandle() *codec.MsgpackHandle {
	mh := new(codec.MsgpackHandle)
	mh.Canonical = true
	mh.WriteExt = true
	return mh
}
