package metrics

import (
	"encoding/json"
	"io"
	"sync"
)

// JSONLObserver appends one JSON object per event to a writer,
// typically the file named by NIA_METRICS_FILE.
type JSONLObserver struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		w = io.Discard
	}
	return &JSONLObserver{enc: json.NewEncoder(w)}
}

func (o *JSONLObserver) RecordEvent(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	// Encode failures are not worth surfacing per event.
	_ = o.enc.Encode(ev)
}
