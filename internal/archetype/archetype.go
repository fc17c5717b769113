package archetype

import "strings"

// Key identifies an archetype in stored state and question mappings.
type Key string

const (
	Catalyst  Key = "catalyst"
	Guardian  Key = "guardian"
	Architect Key = "architect"
	Connector Key = "connector"
	Pioneer   Key = "pioneer"
	Steward   Key = "steward"
	Sage      Key = "sage"
	Anchor    Key = "anchor"
)

// Archetype is immutable reference data describing one leadership style.
type Archetype struct {
	Key            Key
	Name           string
	CoreTraits     []string
	UnderPressure  string
	WhenGrounded   string
	OveruseSignals []string
}

// catalog order is significant: it is the tie-break order for scoring.
var catalog = []Archetype{
	{
		Key:        Catalyst,
		Name:       "The Catalyst",
		CoreTraits: []string{"energising", "decisive", "action-oriented", "momentum-building"},
		UnderPressure: "Pushes pace harder, makes fast calls with partial information and can leave " +
			"others behind in the rush to get things moving.",
		WhenGrounded: "Creates momentum others can join, channels urgency into clear priorities " +
			"and brings people along with visible energy.",
		OveruseSignals: []string{
			"starting new initiatives before finishing the last ones",
			"impatience in meetings that need deliberation",
			"team fatigue from constant urgency",
		},
	},
	{
		Key:        Guardian,
		Name:       "The Guardian",
		CoreTraits: []string{"protective", "loyal", "principled", "dependable"},
		UnderPressure: "Tightens control, shields the team from risk and can become rigid about " +
			"rules and standards.",
		WhenGrounded: "Creates safety and trust, holds the line on what matters and lets people " +
			"take sensible risks inside clear boundaries.",
		OveruseSignals: []string{
			"absorbing work to protect others",
			"resisting change that feels unsafe",
			"treating disagreement as disloyalty",
		},
	},
	{
		Key:        Architect,
		Name:       "The Architect",
		CoreTraits: []string{"systematic", "analytical", "structured", "long-range"},
		UnderPressure: "Retreats into planning and analysis, asks for more data and delays " +
			"commitment until the model feels complete.",
		WhenGrounded: "Designs clear systems that let others act with confidence and sees " +
			"second-order effects early.",
		OveruseSignals: []string{
			"over-engineering simple problems",
			"decisions stalled waiting for certainty",
			"process valued over people",
		},
	},
	{
		Key:        Connector,
		Name:       "The Connector",
		CoreTraits: []string{"relational", "empathetic", "collaborative", "inclusive"},
		UnderPressure: "Works to keep everyone comfortable, avoids hard conversations and seeks " +
			"consensus at the cost of pace.",
		WhenGrounded: "Builds genuine trust across boundaries and surfaces the voices that would " +
			"otherwise go unheard.",
		OveruseSignals: []string{
			"conflict avoidance",
			"decisions diluted to keep everyone happy",
			"taking on others' emotional load",
		},
	},
	{
		Key:        Pioneer,
		Name:       "The Pioneer",
		CoreTraits: []string{"curious", "inventive", "risk-tolerant", "future-focused"},
		UnderPressure: "Chases the next idea, reframes the problem rather than solving it and " +
			"loses interest in execution.",
		WhenGrounded: "Opens new possibilities, experiments safely and gives others permission " +
			"to try things.",
		OveruseSignals: []string{
			"novelty prioritised over delivery",
			"frequent changes of direction",
			"unfinished experiments piling up",
		},
	},
	{
		Key:        Steward,
		Name:       "The Steward",
		CoreTraits: []string{"conscientious", "service-minded", "reliable", "detail-aware"},
		UnderPressure: "Takes on more personally, checks everything twice and struggles to " +
			"delegate.",
		WhenGrounded: "Quietly holds standards, develops others through trust and makes sure " +
			"nothing important falls through the cracks.",
		OveruseSignals: []string{
			"doing the work instead of leading it",
			"difficulty saying no",
			"burnout masked as commitment",
		},
	},
	{
		Key:        Sage,
		Name:       "The Sage",
		CoreTraits: []string{"reflective", "wise", "perspective-taking", "calm"},
		UnderPressure: "Withdraws to think, offers perspective instead of direction and can seem " +
			"detached.",
		WhenGrounded: "Brings clarity and calm, asks the question that reframes the room and " +
			"helps others find their own answers.",
		OveruseSignals: []string{
			"observing instead of intervening",
			"abstract advice when concrete help is needed",
			"slow to commit publicly",
		},
	},
	{
		Key:        Anchor,
		Name:       "The Anchor",
		CoreTraits: []string{"steady", "resilient", "pragmatic", "grounding"},
		UnderPressure: "Holds position, resists new information and relies on what has worked " +
			"before.",
		WhenGrounded: "Provides stability through turbulence and keeps the team focused on what " +
			"is real and achievable.",
		OveruseSignals: []string{
			"dismissing new approaches",
			"stoicism that hides strain",
			"pace set by caution rather than need",
		},
	},
}

var byKey = func() map[Key]int {
	m := make(map[Key]int, len(catalog))
	for i, a := range catalog {
		m[a.Key] = i
	}
	return m
}()

// All returns the catalog in its canonical order.
func All() []Archetype {
	out := make([]Archetype, len(catalog))
	copy(out, catalog)
	return out
}

// Keys returns archetype keys in catalog order.
func Keys() []Key {
	out := make([]Key, 0, len(catalog))
	for _, a := range catalog {
		out = append(out, a.Key)
	}
	return out
}

// Lookup finds an archetype by key. Matching is case-insensitive.
func Lookup(key Key) (Archetype, bool) {
	i, ok := byKey[Key(strings.ToLower(strings.TrimSpace(string(key))))]
	if !ok {
		return Archetype{}, false
	}
	return catalog[i], true
}

// Order returns the catalog position of key, or -1 if unknown.
func Order(key Key) int {
	i, ok := byKey[key]
	if !ok {
		return -1
	}
	return i
}

// Valid reports whether key names a catalog archetype.
func (k Key) Valid() bool {
	_, ok := byKey[k]
	return ok
}

// DisplayName returns the archetype name, or the raw key when unknown.
func (k Key) DisplayName() string {
	if a, ok := Lookup(k); ok {
		return a.Name
	}
	return string(k)
}
