package reflection

import (
	"fmt"
	"strings"

	"flowforge/internal/archetype"
	"flowforge/internal/interview"
	"flowforge/internal/prompt"
	"flowforge/internal/tenant"
)

// MaxReplyWords bounds every reflection reply.
const MaxReplyWords = 200

const coachRole = "You are a thoughtful leadership coach from %s helping %s reflect on the " +
	"results of their leadership archetype discovery interview."

var rules = []string{
	fmt.Sprintf("Keep every reply under %d words.", MaxReplyWords),
	"Ask at most one or two questions per reply.",
	"Be curious rather than prescriptive; do not diagnose or give a verdict.",
	"Refer to archetypes by name and ground observations in their descriptions.",
}

// PromptInput is everything the reflection system prompt depends on.
type PromptInput struct {
	Phase           Phase
	Results         interview.Result
	Tenant          tenant.Context
	ParticipantName string
	WrapUpHint      bool
}

var phaseTasks = map[Phase]func(PromptInput) string{
	PhaseOpening: func(in PromptInput) string {
		def := in.Results.DefaultArchetype.DisplayName()
		if in.Results.IsAligned {
			return fmt.Sprintf("Open the reflection. The participant's default and authentic styles are both %s, "+
				"which suggests how they lead under pressure matches how they lead at their best. "+
				"Briefly share this, then ask two or three open questions about where this consistency "+
				"serves them and where it might hold them back.", def)
		}
		auth := in.Results.AuthenticArchetype.DisplayName()
		task := fmt.Sprintf("Open the reflection. Under pressure the participant defaults to %s, but when grounded "+
			"they lead as %s. Briefly name this tension without judgement, then ask two or three open "+
			"questions about when they notice the shift.", def, auth)
		if a, ok := archetype.Lookup(in.Results.DefaultArchetype); ok && len(a.OveruseSignals) > 0 {
			task += " You may reference these overuse signals of " + def + ": " +
				strings.Join(a.OveruseSignals, "; ") + "."
		}
		return task
	},
	PhaseConversation: func(in PromptInput) string {
		task := "Respond to what the participant just shared. Reflect back one insight in their own words " +
			"and ask one follow-up question."
		if in.WrapUpHint {
			task += " The conversation is nearly over: start wrapping up and ask at most one final question."
		}
		return task
	},
	PhaseClosing: func(in PromptInput) string {
		var b strings.Builder
		fmt.Fprintf(&b, "Close the reflection. Summarise two or three insights %s shared and thank them.",
			participant(in.ParticipantName))
		if msg := strings.TrimSpace(in.Tenant.CompletionMessage); msg != "" {
			fmt.Fprintf(&b, " Include this completion message verbatim: %q.", msg)
		}
		b.WriteString(" Do not ask any further questions.")
		return b.String()
	},
}

// BuildSystemPrompt renders the reflection system prompt for a phase.
func BuildSystemPrompt(in PromptInput) string {
	task, ok := phaseTasks[in.Phase]
	if !ok {
		task = phaseTasks[PhaseClosing]
	}

	var b prompt.Builder
	b.Section("ROLE", fmt.Sprintf(coachRole, in.Tenant.Name(), participant(in.ParticipantName)))
	b.Section("RESULTS", formatResults(in.Results))
	b.Section("PHASE", string(in.Phase))
	b.Section("TASK", task(in))
	b.List("RULES", rules)
	return b.String()
}

func formatResults(r interview.Result) string {
	var b strings.Builder
	describe := func(label string, key archetype.Key) {
		a, ok := archetype.Lookup(key)
		if !ok {
			fmt.Fprintf(&b, "%s: %s\n", label, key)
			return
		}
		fmt.Fprintf(&b, "%s: %s (%s)\n", label, a.Name, strings.Join(a.CoreTraits, ", "))
		fmt.Fprintf(&b, "  Under pressure: %s\n", a.UnderPressure)
		fmt.Fprintf(&b, "  When grounded: %s\n", a.WhenGrounded)
	}
	describe("Default archetype", r.DefaultArchetype)
	describe("Authentic archetype", r.AuthenticArchetype)
	if r.IsAligned {
		b.WriteString("Pattern: aligned")
	} else {
		b.WriteString("Pattern: tension")
	}
	return b.String()
}

func participant(name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return "the participant"
}
