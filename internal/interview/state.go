package interview

import "flowforge/internal/archetype"

// Tally counts weighted selections per archetype.
type Tally map[archetype.Key]int

func newTally() Tally {
	t := make(Tally, len(archetype.Keys()))
	for _, k := range archetype.Keys() {
		t[k] = 0
	}
	return t
}

func (t Tally) clone() Tally {
	out := newTally()
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Scores holds the three tally buckets.
type Scores struct {
	Default   Tally `json:"default"`
	Authentic Tally `json:"authentic"`
	Friction  Tally `json:"friction"`
}

// NewScores returns zeroed tallies for every archetype.
func NewScores() Scores {
	return Scores{Default: newTally(), Authentic: newTally(), Friction: newTally()}
}

func (s Scores) Clone() Scores {
	return Scores{Default: s.Default.clone(), Authentic: s.Authentic.clone(), Friction: s.Friction.clone()}
}

// bucket returns the tally a phase's selections count toward, or nil.
func (s Scores) bucket(p Phase) Tally {
	switch p {
	case PhaseDefaultMode:
		return s.Default
	case PhaseAuthenticMode:
		return s.Authentic
	case PhaseFrictionSignals:
		return s.Friction
	}
	return nil
}

// Answer records one resolved selection.
type Answer struct {
	QuestionIndex int         `json:"question_index"`
	Keys          []OptionKey `json:"keys"`
}

// State is the persisted interview state. Callers own persistence; the
// machine only computes the next value.
//
// Tallies accumulate while the interview runs. DefaultArchetype,
// AuthenticArchetype, IsAligned and Scores stay nil until the interview
// reaches closing and are never changed afterwards.
type State struct {
	Phase                Phase          `json:"phase"`
	CurrentQuestionIndex int            `json:"current_question_index"`
	DefaultArchetype     *archetype.Key `json:"default_archetype"`
	AuthenticArchetype   *archetype.Key `json:"authentic_archetype"`
	IsAligned            *bool          `json:"is_aligned"`
	Scores               *Scores        `json:"scores"`
	Tallies              Scores         `json:"tallies"`
	Answers              []Answer       `json:"answers,omitempty"`
}

// NewState is the state of a session that has not greeted the participant.
func NewState() State {
	return State{Phase: PhaseOpening, Tallies: NewScores()}
}

// Clone deep-copies the state so transitions never alias caller data.
func (s State) Clone() State {
	out := s
	if out.Phase == "" {
		out.Phase = PhaseOpening
	}
	out.Tallies = s.Tallies.Clone()
	if s.DefaultArchetype != nil {
		v := *s.DefaultArchetype
		out.DefaultArchetype = &v
	}
	if s.AuthenticArchetype != nil {
		v := *s.AuthenticArchetype
		out.AuthenticArchetype = &v
	}
	if s.IsAligned != nil {
		v := *s.IsAligned
		out.IsAligned = &v
	}
	if s.Scores != nil {
		v := s.Scores.Clone()
		out.Scores = &v
	}
	if s.Answers != nil {
		out.Answers = make([]Answer, len(s.Answers))
		for i, a := range s.Answers {
			out.Answers[i] = Answer{QuestionIndex: a.QuestionIndex, Keys: append([]OptionKey(nil), a.Keys...)}
		}
	}
	return out
}

// Scored reports whether the result fields have been set.
func (s State) Scored() bool {
	return s.DefaultArchetype != nil && s.AuthenticArchetype != nil && s.IsAligned != nil && s.Scores != nil
}

// IsComplete reports whether the interview has reached closing.
func (s State) IsComplete() bool {
	return s.Phase == PhaseClosing
}

// Transition is the outcome of one Step.
type Transition struct {
	State State
	// Advanced is set when a question was answered.
	Advanced bool
	// Answered is the question consumed by this step, when Advanced.
	Answered *Question
	Selected []OptionKey
	// Unmatched is set when the participant replied to a question but no
	// selection could be resolved; the same question is asked again.
	Unmatched bool
}

// Machine advances interview state over a question bank.
type Machine struct {
	bank *Bank
}

func NewMachine(bank *Bank) *Machine {
	if bank == nil {
		bank = DefaultBank()
	}
	return &Machine{bank: bank}
}

func (m *Machine) Bank() *Bank { return m.bank }

// Advance returns the next state for input. It is pure.
func (m *Machine) Advance(s State, in Input) State {
	return m.Step(s, in).State
}

// Step is Advance with details about what happened.
func (m *Machine) Step(s State, in Input) Transition {
	next := s.Clone()
	switch {
	case next.Phase == PhaseOpening:
		// The greeting never consumes a question.
		next.Phase = PhaseContext
		next.CurrentQuestionIndex = 1
		return Transition{State: next}
	case next.Phase == PhaseClosing || !next.Phase.QuestionBearing():
		return Transition{State: next}
	}

	q, ok := m.bank.Question(next.CurrentQuestionIndex)
	if !ok {
		return Transition{State: next}
	}
	keys, ok := ResolveSelection(q, in)
	if !ok {
		return Transition{State: next, Unmatched: !in.Empty()}
	}

	if bucket := next.Tallies.bucket(q.Phase); bucket != nil {
		for i, k := range keys {
			opt, _ := q.Option(k)
			if opt.Archetype == "" {
				continue
			}
			bucket[opt.Archetype] += selectionWeight(q, i)
		}
	}
	next.Answers = append(next.Answers, Answer{QuestionIndex: q.Index, Keys: append([]OptionKey(nil), keys...)})

	idx := next.CurrentQuestionIndex + 1
	next.Phase = PhaseForIndex(idx)
	if idx > m.bank.Total() {
		idx = m.bank.Total()
	}
	next.CurrentQuestionIndex = idx
	return Transition{State: next, Advanced: true, Answered: &q, Selected: keys}
}
