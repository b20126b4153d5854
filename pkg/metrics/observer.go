// Package metrics records per-turn timing events (turn.duration,
// turn.capture_bytes) to pluggable observers. The default is a noop;
// NIA_METRICS_FILE enables an async JSONL sink.
package metrics

import "time"

// Event is a single recorded measurement.
type Event struct {
	Name  string            `json:"name"`
	Time  time.Time         `json:"time"`
	Value float64           `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// Observer receives events. Implementations must be safe for
// concurrent use; turns may record from different goroutines.
type Observer interface {
	RecordEvent(ev Event)
}

// NoopObserver discards everything.
type NoopObserver struct{}

func (NoopObserver) RecordEvent(Event) {}
