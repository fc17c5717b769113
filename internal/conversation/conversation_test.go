package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"flowforge/internal/llm"
)

func TestToChatDropsEmptyAndUnknown(t *testing.T) {
	now := time.Now()
	msgs := []Message{
		User("hello", now),
		{Role: "system", Content: "ignored"},
		Assistant("  ", now),
		Assistant("hi there", now),
	}
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "hello"},
		{Role: llm.RoleAssistant, Content: "hi there"},
	}, ToChat(msgs))
}

func TestAppendDoesNotAlias(t *testing.T) {
	base := make([]Message, 1, 4)
	base[0] = User("a", time.Now())
	first := Append(base, User("b", time.Now()))
	second := Append(base, User("c", time.Now()))
	assert.Equal(t, "b", first[1].Content)
	assert.Equal(t, "c", second[1].Content)
	assert.Len(t, base, 1)
}

func TestRender(t *testing.T) {
	now := time.Now()
	out := Render([]Message{Assistant("What stood out?", now), User(" The tension ", now)})
	assert.Equal(t, "Coach: What stood out?\nParticipant: The tension\n", out)
}
