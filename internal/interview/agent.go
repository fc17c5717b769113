package interview

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"flowforge/internal/conversation"
	"flowforge/internal/llm"
	"flowforge/internal/metrics"
	"flowforge/internal/tenant"
)

// StartTrigger stands in for the participant when a session starts with no
// history and no input, so the model always produces a greeting.
const StartTrigger = "Hello, I'm ready to begin."

// TurnRequest carries everything one interview turn needs. State and History
// are the last persisted values and are never mutated.
type TurnRequest struct {
	Input           Input
	State           State
	History         []conversation.Message
	Tenant          tenant.Context
	ParticipantName string
}

// TurnResult is returned only when the model replied successfully.
type TurnResult struct {
	Message    string
	State      State
	IsComplete bool
	Advanced   bool
	// Appended holds the transcript entries produced by this turn, in order.
	Appended []conversation.Message
}

// Agent runs interview turns.
type Agent struct {
	llm     llm.Client
	machine *Machine
	log     *zap.Logger
	obs     metrics.Observer
	now     func() time.Time
}

type AgentOption func(*Agent)

func WithLogger(l *zap.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.log = l
		}
	}
}

func WithObserver(o metrics.Observer) AgentOption {
	return func(a *Agent) { a.obs = metrics.OrNop(o) }
}

func WithMachine(m *Machine) AgentOption {
	return func(a *Agent) {
		if m != nil {
			a.machine = m
		}
	}
}

func WithClock(now func() time.Time) AgentOption {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAgent(client llm.Client, opts ...AgentOption) *Agent {
	a := &Agent{
		llm:     client,
		machine: NewMachine(nil),
		log:     zap.NewNop(),
		obs:     metrics.Nop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Machine() *Machine { return a.machine }

// ProcessTurn computes the next state, asks the model for the reply to show
// and returns both. A model failure returns an error and no state.
func (a *Agent) ProcessTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	prev := req.State.Clone()
	step := a.machine.Step(prev, req.Input)
	next := step.State

	in := PromptInput{
		Phase:           next.Phase,
		Total:           a.machine.Bank().Total(),
		Tenant:          req.Tenant,
		ParticipantName: req.ParticipantName,
		Clarify:         step.Unmatched,
	}
	if prev.Phase == PhaseOpening {
		in.Phase = PhaseOpening
	}
	if next.Phase.QuestionBearing() {
		if q, ok := a.machine.Bank().Question(next.CurrentQuestionIndex); ok {
			in.Question = &q
		}
	}
	system := BuildSystemPrompt(in)

	at := a.now()
	var appended []conversation.Message
	messages := conversation.ToChat(req.History)
	if text := req.Input.Text(); text != "" {
		appended = append(appended, conversation.User(text, at))
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})
	} else if len(messages) == 0 {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: StartTrigger})
	}

	ctx = llm.WithPhase(ctx, "interview/"+string(in.Phase))
	reply, err := a.llm.Chat(ctx, system, messages)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = llm.ErrEmptyReply
	}
	if err != nil {
		a.obs.ObserveTurn("interview", string(prev.Phase), err)
		a.log.Warn("interview turn failed",
			zap.String("phase", string(prev.Phase)),
			zap.Int("question", prev.CurrentQuestionIndex),
			zap.Error(err))
		return TurnResult{}, fmt.Errorf("interview: generate reply: %w", err)
	}
	reply = strings.TrimSpace(reply)

	if next.Phase == PhaseClosing {
		next = ApplyScore(next)
	}
	appended = append(appended, conversation.Assistant(reply, at))

	a.obs.ObserveTurn("interview", string(next.Phase), nil)
	a.log.Debug("interview turn",
		zap.String("from", string(prev.Phase)),
		zap.String("to", string(next.Phase)),
		zap.Int("question", next.CurrentQuestionIndex),
		zap.Bool("advanced", step.Advanced),
		zap.Bool("clarify", step.Unmatched))

	return TurnResult{
		Message:    reply,
		State:      next,
		IsComplete: next.IsComplete(),
		Advanced:   step.Advanced,
		Appended:   appended,
	}, nil
}
