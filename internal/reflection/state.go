// Package reflection runs the short follow-up conversation in which a
// participant reacts to their scored interview result.
package reflection

// Phase is a stage of the reflection conversation.
type Phase string

const (
	PhaseOpening      Phase = "opening"
	PhaseConversation Phase = "conversation"
	PhaseClosing      Phase = "closing"
	PhaseCompleted    Phase = "completed"
)

const (
	// WrapUpAfter is the exchange count at which the coach is asked to
	// start wrapping up. It does not change the phase.
	WrapUpAfter = 2
	// CloseAfter is the exchange count that moves the conversation to closing.
	CloseAfter = 3
)

// State is the persisted reflection state.
type State struct {
	Phase         Phase `json:"phase"`
	ExchangeCount int   `json:"exchange_count"`
	IsComplete    bool  `json:"is_complete"`
}

func NewState() State { return State{Phase: PhaseOpening} }

// Transition is the outcome of Advance.
type Transition struct {
	State State
	// WrapUpHint asks the reply being generated to start wrapping up.
	WrapUpHint bool
	// Transitioned is set when the phase changed.
	Transitioned bool
}

// Advance computes the state after a reply is produced for s. userTurn
// reports whether the participant said something this turn. It is pure.
func Advance(s State, userTurn bool) Transition {
	next := s
	if next.Phase == "" {
		next.Phase = PhaseOpening
	}
	t := Transition{}

	switch next.Phase {
	case PhaseOpening:
		// The opening reply is not an exchange.
		next.Phase = PhaseConversation
	case PhaseConversation:
		t.WrapUpHint = next.ExchangeCount >= WrapUpAfter
		if userTurn {
			next.ExchangeCount++
		}
		if next.ExchangeCount >= CloseAfter {
			next.Phase = PhaseClosing
		}
	case PhaseClosing:
		next.Phase = PhaseCompleted
		next.IsComplete = true
	case PhaseCompleted:
		next.IsComplete = true
	}

	t.State = next
	t.Transitioned = next.Phase != s.Phase
	return t
}
