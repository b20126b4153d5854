// Package wake couples an asynchronous wake-word detector to the turn
// guard so a detection can never start a second turn while one is in
// flight.
package wake

// Engine is the detection-engine contract. Implementations invoke the
// registered detection callback from their own goroutine and pause
// themselves before doing so; the bridge resumes them when the turn (or
// the rejection) is done.
type Engine interface {
	// Start begins listening. A failure degrades the client to no-wake
	// mode and is reported, not fatal.
	Start() error
	Stop()
	Pause()
	Resume()
}
