package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// FakeClient returns deterministic replies per phase for offline runs.
type FakeClient struct{}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Chat(ctx context.Context, system string, messages []Message) (string, error) {
	phase := PhaseFrom(ctx)
	question := ""
	if i := strings.Index(system, "[CURRENT QUESTION]"); i >= 0 {
		question = strings.TrimSpace(system[i+len("[CURRENT QUESTION]"):])
		if j := strings.Index(question, "\n\n["); j >= 0 {
			question = question[:j]
		}
	}
	switch {
	case strings.HasSuffix(phase, "/opening") && question != "":
		return "Welcome, let's begin.\n\n" + question, nil
	case strings.HasSuffix(phase, "/closing"):
		return "Thank you for taking the time to reflect with me.", nil
	case question != "":
		return "Thank you.\n\n" + question, nil
	default:
		return fmt.Sprintf("(%s) Tell me more about what stood out for you.", phase), nil
	}
}

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	var obj any
	switch PhaseFrom(ctx) {
	case "enhancement":
		obj = map[string]any{
			"personalized_default_narrative":   "fake default narrative",
			"personalized_authentic_narrative": "fake authentic narrative",
			"personalized_tension_insight":     "fake tension insight",
			"personalized_guidance":            []string{"fake guidance"},
			"reflection_themes":                []string{"fake theme"},
		}
	default:
		obj = map[string]any{}
	}
	b, _ := json.Marshal(obj)
	return json.RawMessage(b), nil
}

// ScriptedCall records one request seen by a ScriptedClient.
type ScriptedCall struct {
	Phase    string
	System   string
	Messages []Message
}

// ScriptedClient replays canned replies in order. It is used in tests across
// packages; Err, when set, fails every call.
type ScriptedClient struct {
	mu      sync.Mutex
	Replies []string
	JSON    []json.RawMessage
	Err     error
	Calls   []ScriptedCall
}

func (s *ScriptedClient) Name() string { return "scripted" }
func (s *ScriptedClient) Close() error { return nil }

func (s *ScriptedClient) Chat(ctx context.Context, system string, messages []Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, ScriptedCall{
		Phase:    PhaseFrom(ctx),
		System:   system,
		Messages: append([]Message(nil), messages...),
	})
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Replies) == 0 {
		return "ok", nil
	}
	out := s.Replies[0]
	s.Replies = s.Replies[1:]
	return out, nil
}

func (s *ScriptedClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, ScriptedCall{Phase: PhaseFrom(ctx), System: prompt})
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.JSON) == 0 {
		return json.RawMessage(`{}`), nil
	}
	out := s.JSON[0]
	s.JSON = s.JSON[1:]
	return out, nil
}

// LastCall returns the most recent request.
func (s *ScriptedClient) LastCall() (ScriptedCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Calls) == 0 {
		return ScriptedCall{}, false
	}
	return s.Calls[len(s.Calls)-1], true
}
