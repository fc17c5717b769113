package interview

// Phase is a stage of the discovery interview.
type Phase string

const (
	PhaseOpening         Phase = "opening"
	PhaseContext         Phase = "context"
	PhaseDefaultMode     Phase = "default_mode"
	PhaseAuthenticMode   Phase = "authentic_mode"
	PhaseFrictionSignals Phase = "friction_signals"
	PhaseClosing         Phase = "closing"
)

// Fixed question-index boundaries of each question-bearing phase.
const (
	lastContextQuestion   = 3
	lastDefaultQuestion   = 12
	lastAuthenticQuestion = 16
	lastFrictionQuestion  = 19
)

// PhaseForIndex derives the phase from a question index: 0 is the greeting,
// 1–3 context, 4–12 default mode, 13–16 authentic mode, 17–19 friction
// signals, anything later closing.
func PhaseForIndex(index int) Phase {
	switch {
	case index <= 0:
		return PhaseOpening
	case index <= lastContextQuestion:
		return PhaseContext
	case index <= lastDefaultQuestion:
		return PhaseDefaultMode
	case index <= lastAuthenticQuestion:
		return PhaseAuthenticMode
	case index <= lastFrictionQuestion:
		return PhaseFrictionSignals
	default:
		return PhaseClosing
	}
}

// QuestionBearing reports whether the phase presents bank questions.
func (p Phase) QuestionBearing() bool {
	switch p {
	case PhaseContext, PhaseDefaultMode, PhaseAuthenticMode, PhaseFrictionSignals:
		return true
	}
	return false
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p == PhaseOpening || p == PhaseClosing || p.QuestionBearing()
}
