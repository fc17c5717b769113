package reflection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"flowforge/internal/conversation"
	"flowforge/internal/interview"
	"flowforge/internal/llm"
	"flowforge/internal/metrics"
	"flowforge/internal/tenant"
)

// ErrCompleted is returned for a turn on a finished reflection.
var ErrCompleted = errors.New("reflection: already completed")

// StartTrigger stands in for the participant on the opening turn.
const StartTrigger = "I've seen my results and I'm ready to reflect."

type TurnRequest struct {
	Message         string
	State           State
	History         []conversation.Message
	Results         interview.Result
	Tenant          tenant.Context
	ParticipantName string
}

type TurnResult struct {
	Message    string
	State      State
	IsComplete bool
	WrapUpHint bool
	Appended   []conversation.Message
}

// Agent runs reflection turns.
type Agent struct {
	llm llm.Client
	log *zap.Logger
	obs metrics.Observer
	now func() time.Time
}

type Option func(*Agent)

func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.log = l
		}
	}
}

func WithObserver(o metrics.Observer) Option {
	return func(a *Agent) { a.obs = metrics.OrNop(o) }
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAgent(client llm.Client, opts ...Option) *Agent {
	a := &Agent{llm: client, log: zap.NewNop(), obs: metrics.Nop{}, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ProcessTurn generates the reply for the current phase and returns the
// advanced state. On failure the caller's state stays authoritative.
func (a *Agent) ProcessTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	prev := req.State
	if prev.Phase == "" {
		prev.Phase = PhaseOpening
	}
	if prev.Phase == PhaseCompleted || prev.IsComplete {
		return TurnResult{}, ErrCompleted
	}

	text := strings.TrimSpace(req.Message)
	tr := Advance(prev, text != "")

	system := BuildSystemPrompt(PromptInput{
		Phase:           prev.Phase,
		Results:         req.Results,
		Tenant:          req.Tenant,
		ParticipantName: req.ParticipantName,
		WrapUpHint:      tr.WrapUpHint,
	})

	at := a.now()
	var appended []conversation.Message
	messages := conversation.ToChat(req.History)
	if text != "" {
		appended = append(appended, conversation.User(text, at))
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})
	} else if len(messages) == 0 {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: StartTrigger})
	}

	ctx = llm.WithPhase(ctx, "reflection/"+string(prev.Phase))
	reply, err := a.llm.Chat(ctx, system, messages)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = llm.ErrEmptyReply
	}
	if err != nil {
		a.obs.ObserveTurn("reflection", string(prev.Phase), err)
		a.log.Warn("reflection turn failed", zap.String("phase", string(prev.Phase)), zap.Error(err))
		return TurnResult{}, fmt.Errorf("reflection: generate reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	appended = append(appended, conversation.Assistant(reply, at))

	a.obs.ObserveTurn("reflection", string(tr.State.Phase), nil)
	a.log.Debug("reflection turn",
		zap.String("from", string(prev.Phase)),
		zap.String("to", string(tr.State.Phase)),
		zap.Int("exchanges", tr.State.ExchangeCount),
		zap.Bool("wrap_up", tr.WrapUpHint))

	return TurnResult{
		Message:    reply,
		State:      tr.State,
		IsComplete: tr.State.IsComplete,
		WrapUpHint: tr.WrapUpHint,
		Appended:   appended,
	}, nil
}
