package turn

// Phase describes what the active turn is doing, for prompt/status
// display only. The busy decision is always the Guard, never the Phase.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseListening
	PhaseThinking
	PhaseSpeaking
)

// String returns the string representation of a Phase
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseListening:
		return "LISTENING"
	case PhaseThinking:
		return "THINKING"
	case PhaseSpeaking:
		return "SPEAKING"
	default:
		return "UNKNOWN"
	}
}
