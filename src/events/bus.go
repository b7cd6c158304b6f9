// Package events delivers validated network state to subscribers outside the
// gossip layer.
package events

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Kind enumerates the events published by the network layer.
type Kind uint32

const (
	// ComputorsUpdated carries a *wire.Computors, either a newly accepted
	// roster or a periodic re-announce of the cached one.
	ComputorsUpdated Kind = iota
	// TickObserved carries a *wire.Tick.
	TickObserved
	// ResourceTestingSolutionObserved carries a *wire.ResourceTestingSolution.
	ResourceTestingSolutionObserved
	// RevenuesObserved carries a *wire.Revenues.
	RevenuesObserved
	// PeerListObserved carries the []string of addresses a peer shared.
	PeerListObserved
)

// String ...
func (k Kind) String() string {
	switch k {
	case ComputorsUpdated:
		return "ComputorsUpdated"
	case TickObserved:
		return "TickObserved"
	case ResourceTestingSolutionObserved:
		return "ResourceTestingSolutionObserved"
	case RevenuesObserved:
		return "RevenuesObserved"
	case PeerListObserved:
		return "PeerListObserved"
	default:
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
}

// Event is what handlers receive.
type Event struct {
	Kind    Kind
	Payload interface{}
	// Source is the IP of the peer the data came from, empty for events
	// raised locally.
	Source string
	// Reannounce marks a ComputorsUpdated repeating the cached roster.
	Reannounce bool
}

// Handler ...
type Handler func(Event)

type subscription struct {
	handler Handler
	async   bool
}

// Bus fans events out to the registered handlers. Synchronous handlers run in
// the publisher's goroutine, in registration order. Asynchronous handlers get
// a goroutine per event that the publisher does not wait for.
type Bus struct {
	l      sync.RWMutex
	subs   []subscription
	wg     sync.WaitGroup
	closed bool

	logger *logrus.Entry
}

// NewBus ...
func NewBus(logger *logrus.Entry) *Bus {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Bus{
		logger: logger.WithField("prefix", "events"),
	}
}

// Subscribe registers a handler run synchronously on every Publish.
func (b *Bus) Subscribe(h Handler) {
	b.add(subscription{handler: h})
}

// SubscribeAsync registers a handler run in its own goroutine per event.
func (b *Bus) SubscribeAsync(h Handler) {
	b.add(subscription{handler: h, async: true})
}

func (b *Bus) add(s subscription) {
	b.l.Lock()
	defer b.l.Unlock()
	b.subs = append(b.subs, s)
}

// Publish delivers ev to every handler. Events published after Close are
// dropped.
func (b *Bus) Publish(ev Event) {
	b.l.RLock()
	if b.closed {
		b.l.RUnlock()
		return
	}
	subs := b.subs
	for _, s := range subs {
		if s.async {
			b.wg.Add(1)
		}
	}
	b.l.RUnlock()

	for _, s := range subs {
		if s.async {
			go func(h Handler) {
				defer b.wg.Done()
				b.call(h, ev)
			}(s.handler)
			continue
		}
		b.call(s.handler, ev)
	}
}

// call runs h, recovering and logging a panic.
func (b *Bus) call(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{
				"kind":  ev.Kind,
				"panic": r,
			}).Error("Event handler panicked")
		}
	}()
	h(ev)
}

// Close stops delivery and waits for running asynchronous handlers.
func (b *Bus) Close() {
	b.l.Lock()
	b.closed = true
	b.l.Unlock()

	b.wg.Wait()
}
