package interview

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"flowforge/internal/archetype"
)

//go:embed constitution.yaml
var constitutionYAML []byte

// OptionKey is an option letter, A–E.
type OptionKey string

// SelectMode tells the participant how many options to choose.
type SelectMode string

const (
	SelectSingle SelectMode = "single"
	SelectRanked SelectMode = "ranked"
)

// Option is one answer choice. Context-phase options carry no archetype.
type Option struct {
	Key       OptionKey     `yaml:"key"`
	Text      string        `yaml:"text"`
	Archetype archetype.Key `yaml:"archetype,omitempty"`
}

// Question is immutable bank content.
type Question struct {
	Index   int        `yaml:"index"`
	Phase   Phase      `yaml:"phase"`
	Select  SelectMode `yaml:"select"`
	Stem    string     `yaml:"stem"`
	Options []Option   `yaml:"options"`
}

// Option returns the option with key k.
func (q Question) Option(k OptionKey) (Option, bool) {
	for _, o := range q.Options {
		if o.Key == k {
			return o, true
		}
	}
	return Option{}, false
}

// MaxSelections is 2 for ranked questions and 1 otherwise.
func (q Question) MaxSelections() int {
	if q.Select == SelectRanked {
		return 2
	}
	return 1
}

// Bank is the ordered question constitution.
type Bank struct {
	questions []Question
}

// DefaultBank parses the embedded constitution. It panics on an invalid
// embedded document, which is a build defect.
func DefaultBank() *Bank {
	b, err := ParseBank(constitutionYAML)
	if err != nil {
		panic(fmt.Sprintf("interview: embedded constitution: %v", err))
	}
	return b
}

// ParseBank decodes and validates a constitution document.
func ParseBank(raw []byte) (*Bank, error) {
	var doc struct {
		Questions []Question `yaml:"questions"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse constitution: %w", err)
	}
	b := &Bank{questions: doc.Questions}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bank) validate() error {
	if len(b.questions) == 0 {
		return fmt.Errorf("constitution has no questions")
	}
	if len(b.questions) != lastFrictionQuestion {
		return fmt.Errorf("constitution has %d questions, want %d", len(b.questions), lastFrictionQuestion)
	}
	for i, q := range b.questions {
		if q.Index != i+1 {
			return fmt.Errorf("question %d: index %d out of order", i+1, q.Index)
		}
		if want := PhaseForIndex(q.Index); q.Phase != want {
			return fmt.Errorf("question %d: phase %q, want %q", q.Index, q.Phase, want)
		}
		if q.Select != SelectSingle && q.Select != SelectRanked {
			return fmt.Errorf("question %d: unknown select mode %q", q.Index, q.Select)
		}
		if strings.TrimSpace(q.Stem) == "" {
			return fmt.Errorf("question %d: empty stem", q.Index)
		}
		if len(q.Options) < 2 || len(q.Options) > 5 {
			return fmt.Errorf("question %d: %d options", q.Index, len(q.Options))
		}
		seen := map[OptionKey]bool{}
		for _, o := range q.Options {
			if len(o.Key) != 1 || o.Key < "A" || o.Key > "E" {
				return fmt.Errorf("question %d: invalid option key %q", q.Index, o.Key)
			}
			if seen[o.Key] {
				return fmt.Errorf("question %d: duplicate option %s", q.Index, o.Key)
			}
			seen[o.Key] = true
			if strings.TrimSpace(o.Text) == "" {
				return fmt.Errorf("question %d: option %s has no text", q.Index, o.Key)
			}
			switch {
			case q.Phase == PhaseContext && o.Archetype != "":
				return fmt.Errorf("question %d: context option %s maps to an archetype", q.Index, o.Key)
			case q.Phase != PhaseContext && !o.Archetype.Valid():
				return fmt.Errorf("question %d: option %s has unknown archetype %q", q.Index, o.Key, o.Archetype)
			}
		}
	}
	return nil
}

// Total is the number of questions.
func (b *Bank) Total() int { return len(b.questions) }

// Question returns the question with 1-based index i.
func (b *Bank) Question(i int) (Question, bool) {
	if i < 1 || i > len(b.questions) {
		return Question{}, false
	}
	return b.questions[i-1], true
}

// Questions returns a copy of the bank in order.
func (b *Bank) Questions() []Question {
	return append([]Question(nil), b.questions...)
}
