package net

import (
	"sync"
	"sync/atomic"
)

// State captures the lifecycle of a peer connection, and of the manager that
// owns the peers: None, Connecting, Connected, Closed. Closed is terminal.
type State uint32

const (
	// None is the initial state.
	None State = iota
	// Connecting is dialing, or waiting for the first frames.
	Connecting
	// Connected is exchanging frames.
	Connected
	// Closed is closed
	Closed
)

// String ...
func (s State) String() string {
	switch s {
	case None:
		return "None"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// StateMachine holds a State and the goroutines started on its behalf. It is
// embedded by peers and by the manager.
type StateMachine struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
}

// GetState ...
func (b *StateMachine) GetState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

// SetState ...
func (b *StateMachine) SetState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// TransitionState moves from one state to another, failing if the current
// state is not from.
func (b *StateMachine) TransitionState(from, to State) bool {
	stateAddr := (*uint32)(&b.state)
	return atomic.CompareAndSwapUint32(stateAddr, uint32(from), uint32(to))
}

// GoFunc starts a goroutine and adds it to the waitgroup.
func (b *StateMachine) GoFunc(f func()) {
	b.wg.Add(1)
	atomic.AddInt32(&b.wgCount, 1)
	go func() {
		defer b.wg.Done()
		defer atomic.AddInt32(&b.wgCount, -1)
		f()
	}()
}

// RoutineCount is the number of goroutines started with GoFunc still running.
func (b *StateMachine) RoutineCount() int {
	return int(atomic.LoadInt32(&b.wgCount))
}

// WaitRoutines blocks until every goroutine started with GoFunc returned.
func (b *StateMachine) WaitRoutines() {
	b.wg.Wait()
}
