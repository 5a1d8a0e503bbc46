package state

// State identifies a conversation step.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores the current step and the draft accumulated so far.
type Session[D any] struct {
	State State
	Draft D
}

// Active reports whether the session is inside a conversation.
func (s Session[D]) Active() bool {
	return s.State != "" && s.State != StateIdle
}
