// Package conversation holds the ordered, append-only transcripts owned by
// interview and reflection sessions.
package conversation

import (
	"strings"
	"time"

	"flowforge/internal/llm"
)

// Message is one transcript entry.
type Message struct {
	Role      llm.Role  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// User and Assistant build timestamped messages.
func User(content string, at time.Time) Message {
	return Message{Role: llm.RoleUser, Content: content, Timestamp: at.UTC()}
}

func Assistant(content string, at time.Time) Message {
	return Message{Role: llm.RoleAssistant, Content: content, Timestamp: at.UTC()}
}

// ToChat converts a transcript to provider messages, dropping empty entries
// and unknown roles.
func ToChat(msgs []Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			continue
		}
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// Append returns a new slice with msgs appended; the input is never mutated.
func Append(history []Message, msgs ...Message) []Message {
	out := make([]Message, 0, len(history)+len(msgs))
	out = append(out, history...)
	return append(out, msgs...)
}

// Render formats a transcript as plain "Role: content" lines for prompts.
func Render(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleUser:
			b.WriteString("Participant: ")
		case llm.RoleAssistant:
			b.WriteString("Coach: ")
		default:
			continue
		}
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n")
	}
	return b.String()
}
