package interview

import "flowforge/internal/archetype"

// Selection weights. The first choice of a ranked question weighs the same as
// a single-select answer; the second choice weighs half.
const (
	WeightSingle       = 2
	WeightRankedFirst  = 2
	WeightRankedSecond = 1
)

func selectionWeight(q Question, rank int) int {
	if q.Select != SelectRanked {
		return WeightSingle
	}
	if rank == 0 {
		return WeightRankedFirst
	}
	return WeightRankedSecond
}

// Result is the scored outcome of an interview.
type Result struct {
	DefaultArchetype   archetype.Key `json:"default_archetype"`
	AuthenticArchetype archetype.Key `json:"authentic_archetype"`
	IsAligned          bool          `json:"is_aligned"`
	Scores             Scores        `json:"scores"`
}

// Score derives the headline archetypes from tallies. Ties resolve to the
// archetype defined earliest in the catalog.
func Score(tallies Scores) Result {
	def := argmax(tallies.Default)
	auth := argmax(tallies.Authentic)
	return Result{
		DefaultArchetype:   def,
		AuthenticArchetype: auth,
		IsAligned:          def == auth,
		Scores:             tallies.Clone(),
	}
}

func argmax(t Tally) archetype.Key {
	keys := archetype.Keys()
	best := keys[0]
	for _, k := range keys[1:] {
		if t[k] > t[best] {
			best = k
		}
	}
	return best
}

// ApplyScore sets the result fields of s from its tallies. A state that is
// already scored is returned unchanged.
func ApplyScore(s State) State {
	if s.Scored() {
		return s
	}
	r := Score(s.Tallies)
	next := s.Clone()
	next.DefaultArchetype = &r.DefaultArchetype
	next.AuthenticArchetype = &r.AuthenticArchetype
	next.IsAligned = &r.IsAligned
	next.Scores = &r.Scores
	return next
}

// Result returns the scored result once the state has been scored.
func (s State) Result() (Result, bool) {
	if !s.Scored() {
		return Result{}, false
	}
	return Result{
		DefaultArchetype:   *s.DefaultArchetype,
		AuthenticArchetype: *s.AuthenticArchetype,
		IsAligned:          *s.IsAligned,
		Scores:             s.Scores.Clone(),
	}, true
}
