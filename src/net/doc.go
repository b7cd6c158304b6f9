// Package net implements a single gossip connection.
//
// A Peer wraps one TCP socket. It dials (or adopts an accepted socket), sends
// the handshake, then reads frames until the connection dies. Every frame is
// decoded and validated by type, published on the event bus, and flood-relayed
// through the Host when its type calls for it.
//
// Frames are an 8 byte little-endian header, size:uint32 protocol:uint16
// type:uint16, followed by a fixed-size payload. There is no other framing.
//
// Failures are classified with common.NetErr so the owner can decide what to
// do with the remote address: dial, handshake and format errors get the
// address forgotten, ordinary connection errors do not.
package net
