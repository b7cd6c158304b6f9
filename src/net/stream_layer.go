package net

import (
	"context"
	"net"
	"time"
)

// StreamLayer provides the low level stream abstraction peers dial through.
// Tests swap the TCP implementation for one that maps addresses to local
// listeners.
type StreamLayer interface {
	// Dial is used to create a new outgoing connection
	Dial(ctx context.Context, address string, timeout time.Duration) (net.Conn, error)
}

// ListenerStreamLayer is a StreamLayer that also accepts inbound connections.
type ListenerStreamLayer interface {
	StreamLayer
	net.Listener

	// Listening reports whether Accept can return connections.
	Listening() bool
}
