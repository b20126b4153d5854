// Package mic captures utterances from the default input device. The
// recorder blocks until the speaker goes quiet, then hands back a WAV
// container ready for the hub's voice endpoint.
package mic

import "context"

// Recorder is the capture contract consumed by the turn executor.
type Recorder interface {
	// Record blocks until trailing silence (or ctx cancellation) ends the
	// capture and returns the WAV-encoded audio.
	Record(ctx context.Context) ([]byte, error)
	Close() error
}
