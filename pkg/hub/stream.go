package hub

import "sync"

// VoiceResult is the final text pair of a voice turn.
type VoiceResult struct {
	Transcript string
	Reply      string
}

// VoiceStream carries reply audio from the hub to the playback sink.
// Chunks arrive in order and are never buffered beyond the single
// in-flight chunk; once the channel closes, Wait returns the final
// texts (or the error that ended the stream).
type VoiceStream struct {
	chunks chan []byte
	done   chan struct{}

	once   sync.Once
	result VoiceResult
	err    error
}

func NewVoiceStream() *VoiceStream {
	return &VoiceStream{
		chunks: make(chan []byte, 1),
		done:   make(chan struct{}),
	}
}

// Chunks is the consumer side: range over it until it closes.
func (s *VoiceStream) Chunks() <-chan []byte {
	return s.chunks
}

// Wait blocks until the stream has finished and returns the final
// result. It is valid to call Wait without draining Chunks first, but
// the producer only finishes after all chunks were delivered, so
// consumers that care about ordering drain first.
func (s *VoiceStream) Wait() (VoiceResult, error) {
	<-s.done
	return s.result, s.err
}

// Emit delivers one chunk to the consumer. Producer side only.
func (s *VoiceStream) Emit(chunk []byte) {
	s.chunks <- chunk
}

// Finish closes the chunk channel and publishes the final result.
// Producer side only; subsequent calls are no-ops.
func (s *VoiceStream) Finish(result VoiceResult, err error) {
	s.once.Do(func() {
		close(s.chunks)
		s.result = result
		s.err = err
		close(s.done)
	})
}
