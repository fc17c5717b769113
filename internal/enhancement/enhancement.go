// Package enhancement merges a completed reflection into the scored interview
// result, producing a personalized narrative bundle.
package enhancement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"flowforge/internal/archetype"
	"flowforge/internal/conversation"
	"flowforge/internal/interview"
	"flowforge/internal/llm"
	"flowforge/internal/prompt"
	"flowforge/internal/tenant"
	"flowforge/internal/util/jsonutil"
)

// ErrNoReflection is reported when the transcript has no participant turns.
var ErrNoReflection = errors.New("enhancement: no reflection messages")

// EnhancedResult is written once per session and never changed.
type EnhancedResult struct {
	PersonalizedDefaultNarrative   string    `json:"personalized_default_narrative"`
	PersonalizedAuthenticNarrative string    `json:"personalized_authentic_narrative"`
	PersonalizedTensionInsight     string    `json:"personalized_tension_insight"`
	PersonalizedGuidance           []string  `json:"personalized_guidance"`
	ReflectionThemes               []string  `json:"reflection_themes"`
	GeneratedAt                    time.Time `json:"generated_at"`
}

// Validate reports the first missing field.
func (e EnhancedResult) Validate() error {
	switch {
	case strings.TrimSpace(e.PersonalizedDefaultNarrative) == "":
		return errors.New("missing personalized_default_narrative")
	case strings.TrimSpace(e.PersonalizedAuthenticNarrative) == "":
		return errors.New("missing personalized_authentic_narrative")
	case strings.TrimSpace(e.PersonalizedTensionInsight) == "":
		return errors.New("missing personalized_tension_insight")
	case len(nonEmpty(e.PersonalizedGuidance)) == 0:
		return errors.New("missing personalized_guidance")
	}
	return nil
}

type Request struct {
	Original        interview.Result
	Transcript      []conversation.Message
	ParticipantName string
	Tenant          tenant.Context
}

// Outcome reports a synthesis. Enhanced is set only when Success is true.
type Outcome struct {
	Success  bool            `json:"success"`
	Enhanced *EnhancedResult `json:"enhanced,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func failed(err error) Outcome { return Outcome{Error: err.Error()} }

// Synthesizer runs the one-shot synthesis call.
type Synthesizer struct {
	llm llm.Client
	log *zap.Logger
	now func() time.Time
}

func NewSynthesizer(client llm.Client, log *zap.Logger) *Synthesizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synthesizer{llm: client, log: log, now: time.Now}
}

// WithClock overrides the GeneratedAt clock.
func (s *Synthesizer) WithClock(now func() time.Time) *Synthesizer {
	if now != nil {
		s.now = now
	}
	return s
}

var outputFields = []prompt.Field{
	{Name: "personalized_default_narrative", Type: "string", Required: true,
		Description: "how the participant's default archetype shows up for them, in their own terms"},
	{Name: "personalized_authentic_narrative", Type: "string", Required: true,
		Description: "how their authentic archetype shows up when they are grounded"},
	{Name: "personalized_tension_insight", Type: "string", Required: true,
		Description: "the gap or the consistency between the two, drawing on what they said"},
	{Name: "personalized_guidance", Type: "array of string", Required: true,
		Description: "three to five concrete, specific practices"},
	{Name: "reflection_themes", Type: "array of string", Required: false,
		Description: "short labels for recurring themes in the reflection"},
}

var synthesisRules = []string{
	"Use only what appears in INPUT; quote or paraphrase the participant where possible.",
	"Write in the second person, addressed to the participant.",
	"Keep each narrative under 120 words.",
	"Do not invent events, roles or people.",
}

type transcriptLine struct {
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`
}

type synthesisInput struct {
	Organisation    string           `json:"organisation"`
	Participant     string           `json:"participant"`
	Default         archetypeSummary `json:"default_archetype"`
	Authentic       archetypeSummary `json:"authentic_archetype"`
	IsAligned       bool             `json:"is_aligned"`
	Scores          interview.Scores `json:"scores"`
	ReflectionTurns []transcriptLine `json:"reflection"`
}

type archetypeSummary struct {
	Key            archetype.Key `json:"key"`
	Name           string        `json:"name"`
	CoreTraits     []string      `json:"core_traits,omitempty"`
	OveruseSignals []string      `json:"overuse_signals,omitempty"`
}

func summarize(k archetype.Key) archetypeSummary {
	a, ok := archetype.Lookup(k)
	if !ok {
		return archetypeSummary{Key: k, Name: string(k)}
	}
	return archetypeSummary{Key: a.Key, Name: a.Name, CoreTraits: a.CoreTraits, OveruseSignals: a.OveruseSignals}
}

// BuildPrompt renders the synthesis instructions.
func BuildPrompt() string {
	var b prompt.Builder
	b.Section("PURPOSE", "Merge a participant's reflection conversation into their leadership "+
		"archetype result and write a personalized narrative bundle.")
	b.Section("OUTPUT", prompt.FormatFields(outputFields))
	b.List("RULES", synthesisRules)
	b.Section("OUTPUT_FORMAT", "Return a single JSON object with exactly the OUTPUT keys. No prose, no code fences.")
	return b.String()
}

// Synthesize never returns a partial result: any failure yields
// Success=false with a description.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) Outcome {
	turns := make([]transcriptLine, 0, len(req.Transcript))
	participantTurns := 0
	for _, m := range conversation.ToChat(req.Transcript) {
		if m.Role == llm.RoleUser {
			participantTurns++
		}
		turns = append(turns, transcriptLine{Role: m.Role, Content: m.Content})
	}
	if participantTurns == 0 {
		return failed(ErrNoReflection)
	}

	in := synthesisInput{
		Organisation:    req.Tenant.Name(),
		Participant:     req.ParticipantName,
		Default:         summarize(req.Original.DefaultArchetype),
		Authentic:       summarize(req.Original.AuthenticArchetype),
		IsAligned:       req.Original.IsAligned,
		Scores:          req.Original.Scores,
		ReflectionTurns: turns,
	}

	ctx = llm.WithPhase(ctx, "enhancement")
	raw, err := s.llm.GenerateJSON(ctx, BuildPrompt(), in)
	if err != nil {
		s.log.Warn("enhancement synthesis failed", zap.Error(err))
		return failed(fmt.Errorf("generate enhancement: %w", err))
	}

	var out EnhancedResult
	if err := jsonutil.UnmarshalFlex(raw, &out); err != nil {
		s.log.Warn("enhancement output unparsable", zap.Int("bytes", len(raw)), zap.Error(err))
		return failed(fmt.Errorf("%w: %v", llm.ErrInvalidJSON, err))
	}
	out.PersonalizedGuidance = nonEmpty(out.PersonalizedGuidance)
	out.ReflectionThemes = nonEmpty(out.ReflectionThemes)
	if err := out.Validate(); err != nil {
		s.log.Warn("enhancement output incomplete", zap.Error(err))
		return failed(fmt.Errorf("%w: %v", llm.ErrInvalidJSON, err))
	}
	out.GeneratedAt = s.now().UTC()
	return Outcome{Success: true, Enhanced: &out}
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
