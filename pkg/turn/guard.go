// Package turn provides the single-flight guard that keeps the command
// loop, the wake bridge, and the hub from colliding mid-conversation. At
// most one turn body runs at any instant; triggers arriving while busy
// are rejected, never queued.
package turn

import "sync/atomic"

// Guard is the process-wide busy flag. TryEnter and Leave are safe under
// concurrent callers (command loop and the wake engine's callback
// context).
type Guard struct {
	busy  atomic.Bool
	phase atomic.Int32
}

func NewGuard() *Guard {
	return &Guard{}
}

// TryEnter atomically claims the guard. It returns false when another
// turn is already in flight.
func (g *Guard) TryEnter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Leave releases the guard. It must be called exactly once per accepted
// TryEnter, normally via defer so a failing turn body never leaves the
// system permanently busy.
func (g *Guard) Leave() {
	g.phase.Store(int32(PhaseIdle))
	g.busy.Store(false)
}

// Busy reports whether a turn is currently in flight.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}

// SetPhase records the active turn's phase for status display.
func (g *Guard) SetPhase(p Phase) {
	g.phase.Store(int32(p))
}

func (g *Guard) Phase() Phase {
	return Phase(g.phase.Load())
}
