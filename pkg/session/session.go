// Package session tracks the conversation identifier that correlates
// turns on the hub side.
package session

import (
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
)

// IDLength is the number of hex characters in a session token.
const IDLength = 12

// NewID returns a fresh opaque session token.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])[:IDLength]
}

// State holds the current session id. Reset may run concurrently with an
// in-flight turn (the turn keeps the id it read at dispatch), so access
// is mutex-guarded.
type State struct {
	mu sync.Mutex
	id string
}

func NewState() *State {
	return &State{id: NewID()}
}

func (s *State) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Reset installs a fresh id and returns it.
func (s *State) Reset() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = NewID()
	return s.id
}

// Short returns the 8-character display prefix of the current id.
func (s *State) Short() string {
	id := s.ID()
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
