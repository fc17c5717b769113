package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrEmptyReply is returned when the provider answers without any text.
	ErrEmptyReply = errors.New("llm: empty reply from model")
	// ErrInvalidJSON is returned when a JSON-mode call yields unparsable output.
	ErrInvalidJSON = errors.New("llm: invalid JSON from model")
)

// Role tags a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn sent to the provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Client is a language-model provider. Chat drives conversational turns and
// returns free text; GenerateJSON is used for one-shot structured synthesis.
type Client interface {
	Name() string
	Close() error
	Chat(ctx context.Context, system string, messages []Message) (string, error)
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
