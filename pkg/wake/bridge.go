package wake

import (
	"log/slog"
	"sync/atomic"

	"github.com/niahub/voicecli/pkg/turn"
)

// Bridge state: armed means the detector is actively listening,
// suspended means it is paused while a wake-triggered turn runs.
const (
	stateArmed int32 = iota
	stateSuspended
)

// Bridge routes wake events through the turn guard. A detection while a
// turn is in flight resumes the detector immediately instead of queuing
// a second turn.
type Bridge struct {
	engine Engine
	guard  *turn.Guard
	// runTurn executes one full voice turn synchronously. The turn body
	// does its own TryEnter/Leave; the bridge only pre-checks Busy.
	runTurn func()
	logger  *slog.Logger

	state atomic.Int32
}

func NewBridge(engine Engine, guard *turn.Guard, runTurn func(), logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{engine: engine, guard: guard, runTurn: runTurn, logger: logger}
}

// HandleDetection is the engine's detection callback. The engine has
// already paused itself when this fires.
func (b *Bridge) HandleDetection() {
	if b.guard.Busy() {
		// A manual or inline turn is running. Keep listening; that turn's
		// executor will not resume us because it did not suspend us.
		b.logger.Debug("wake event ignored, turn already in flight")
		b.engine.Resume()
		return
	}
	b.state.Store(stateSuspended)
	go func() {
		defer func() {
			b.state.Store(stateArmed)
			b.engine.Resume()
		}()
		b.runTurn()
	}()
}

// Suspended reports whether the bridge is holding the detector paused
// for a turn it launched.
func (b *Bridge) Suspended() bool {
	return b.state.Load() == stateSuspended
}
