package turn

import (
	"fmt"
	"sync/atomic"
)

// State is the per-session turn state. Exactly one turn may be in flight per
// session at any time; the state transitions protect that invariant.
type State int32

const (
	// StateIdle means no turn is in flight; a finalized utterance may start one.
	StateIdle State = iota

	// StateProcessing means reply generation and/or synthesis is in flight.
	StateProcessing

	// StateDelivering means playback has been instructed.
	StateDelivering
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateDelivering:
		return "delivering"
	default:
		return "unknown"
	}
}

// Busy reports whether a turn is in flight.
func (s State) Busy() bool {
	return s != StateIdle
}

// Gate is the single-flight turn gate. Transitions are restricted to
// idle → processing → delivering → idle; any attempt to start a turn while
// one is in flight fails rather than erroring, because concurrent
// finalization triggers are expected, not exceptional.
//
// The gate is atomic so monitoring code may read State from outside the
// session's event path.
type Gate struct {
	state atomic.Int32
}

// TryBegin attempts the idle → processing transition. It returns false when a
// turn already owns the floor; the caller must treat that as a no-op.
func (g *Gate) TryBegin() bool {
	return g.state.CompareAndSwap(int32(StateIdle), int32(StateProcessing))
}

// MarkDelivering performs the processing → delivering transition.
func (g *Gate) MarkDelivering() error {
	if !g.state.CompareAndSwap(int32(StateProcessing), int32(StateDelivering)) {
		return fmt.Errorf("invalid turn transition: %s -> delivering", g.State())
	}
	return nil
}

// Finish returns the gate to idle from any in-flight state, re-arming the
// single-flight gate. Finishing an idle gate is a no-op, so teardown paths
// may call it unconditionally.
func (g *Gate) Finish() {
	g.state.Store(int32(StateIdle))
}

// State returns the current turn state.
func (g *Gate) State() State {
	return State(g.state.Load())
}
