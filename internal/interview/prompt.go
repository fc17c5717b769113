package interview

import (
	"fmt"
	"strings"

	"flowforge/internal/prompt"
	"flowforge/internal/tenant"
)

const coachRole = "You are a warm, perceptive leadership coach running a structured " +
	"leadership archetype discovery interview on behalf of %s. You are speaking with %s."

var toneRules = []string{
	"Keep every reply short: one or two sentences of acknowledgement, then the question.",
	"Never interpret, score or label the participant's answers during the interview.",
	"Never mention archetypes, scores or how answers are weighted.",
	"Present only the question shown under CURRENT QUESTION, with its options exactly as written.",
	"Do not preview or summarise later questions.",
}

// PromptInput is everything the system prompt for one turn depends on.
type PromptInput struct {
	// Phase selects the task instructions.
	Phase           Phase
	Question        *Question
	Total           int
	Tenant          tenant.Context
	ParticipantName string
	// Clarify is set when the previous reply did not select an option.
	Clarify bool
}

type taskFunc func(PromptInput) string

// phaseTasks holds the task instructions for each phase.
var phaseTasks = map[Phase]taskFunc{
	PhaseOpening: func(in PromptInput) string {
		var b strings.Builder
		fmt.Fprintf(&b, "Welcome %s to the interview.", participant(in.ParticipantName))
		if msg := strings.TrimSpace(in.Tenant.WelcomeMessage); msg != "" {
			fmt.Fprintf(&b, " Include this welcome message verbatim: %q.", msg)
		}
		fmt.Fprintf(&b, " Explain that there are %d multiple-choice questions in four short sections and"+
			" that there are no right or wrong answers. Then ask the first question.", in.Total)
		return b.String()
	},
	PhaseContext: func(PromptInput) string {
		return "Briefly acknowledge the previous answer, then ask the current question. " +
			"These questions gather background about the participant's role and environment."
	},
	PhaseDefaultMode: func(PromptInput) string {
		return "Briefly acknowledge the previous answer, then ask the current question. " +
			"This section explores how the participant tends to lead when under pressure, " +
			"so invite them to answer from recent experience rather than aspiration."
	},
	PhaseAuthenticMode: func(PromptInput) string {
		return "Briefly acknowledge the previous answer, then ask the current question. " +
			"This section explores how the participant leads when they feel grounded and at their best."
	},
	PhaseFrictionSignals: func(PromptInput) string {
		return "Briefly acknowledge the previous answer, then ask the current question. " +
			"This section explores where the participant's style creates friction for themselves or others. " +
			"Keep the tone non-judgemental."
	},
	PhaseClosing: func(in PromptInput) string {
		var b strings.Builder
		fmt.Fprintf(&b, "All questions have been answered. Thank %s warmly for their openness.",
			participant(in.ParticipantName))
		if msg := strings.TrimSpace(in.Tenant.CompletionMessage); msg != "" {
			fmt.Fprintf(&b, " Include this completion message verbatim: %q.", msg)
		}
		b.WriteString(" Tell them their results are being prepared. Do not ask any further questions.")
		return b.String()
	},
}

const clarifyTask = "The participant's last reply did not clearly select an option. " +
	"Do not move on. Gently restate the current question and ask them to answer with the option letter"

// BuildSystemPrompt renders the interview system prompt for one turn.
func BuildSystemPrompt(in PromptInput) string {
	phase := in.Phase
	if !phase.Valid() {
		phase = PhaseOpening
	}

	var b prompt.Builder
	b.Section("ROLE", fmt.Sprintf(coachRole, in.Tenant.Name(), participant(in.ParticipantName)))
	b.Section("PHASE", string(phase))
	if in.Question != nil {
		b.Section("CURRENT QUESTION", formatQuestion(*in.Question, in.Total))
	}

	task := phaseTasks[phase](in)
	if in.Clarify && in.Question != nil {
		task = clarifyTask
		if in.Question.Select == SelectRanked {
			task += "s of their first and second choice."
		} else {
			task += "."
		}
	}
	b.Section("TASK", task)
	b.List("RULES", toneRules)
	return b.String()
}

func formatQuestion(q Question, total int) string {
	var b strings.Builder
	if total > 0 {
		fmt.Fprintf(&b, "Question %d of %d\n", q.Index, total)
	}
	b.WriteString(strings.TrimSpace(q.Stem))
	b.WriteString("\n")
	for _, o := range q.Options {
		fmt.Fprintf(&b, "%s. %s\n", o.Key, o.Text)
	}
	if q.Select == SelectRanked {
		b.WriteString("The participant should rank their top two options, first choice then second.")
	} else {
		b.WriteString("The participant should choose one option.")
	}
	return b.String()
}

func participant(name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return "the participant"
}
