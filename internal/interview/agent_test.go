package interview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"flowforge/internal/conversation"
	"flowforge/internal/llm"
	"flowforge/internal/tenant"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestAgent(t *testing.T, client llm.Client) *Agent {
	return NewAgent(client,
		WithLogger(zaptest.NewLogger(t)),
		WithClock(func() time.Time { return fixedNow }))
}

func TestProcessTurnOpensWithSyntheticTrigger(t *testing.T) {
	client := &llm.ScriptedClient{Replies: []string{"Welcome! Question 1..."}}
	res, err := newTestAgent(t, client).ProcessTurn(context.Background(), TurnRequest{
		State:           NewState(),
		Tenant:          tenant.Context{DisplayName: "Acme"},
		ParticipantName: "Jo",
	})
	require.NoError(t, err)

	assert.Equal(t, "Welcome! Question 1...", res.Message)
	assert.Equal(t, PhaseContext, res.State.Phase)
	assert.Equal(t, 1, res.State.CurrentQuestionIndex)
	assert.False(t, res.IsComplete)
	assert.False(t, res.Advanced)
	require.Len(t, res.Appended, 1)
	assert.Equal(t, conversation.Assistant("Welcome! Question 1...", fixedNow), res.Appended[0])

	call, ok := client.LastCall()
	require.True(t, ok)
	assert.Equal(t, "interview/opening", call.Phase)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: StartTrigger}}, call.Messages)
	q1, _ := DefaultBank().Question(1)
	assert.Contains(t, call.System, q1.Stem)
}

func TestProcessTurnPromptsWithNextQuestion(t *testing.T) {
	client := &llm.ScriptedClient{}
	a := newTestAgent(t, client)
	state := a.Machine().Advance(NewState(), Input{})
	history := []conversation.Message{conversation.Assistant("Question 1?", fixedNow)}

	res, err := a.ProcessTurn(context.Background(), TurnRequest{Input: Input{Message: "C"}, State: state, History: history})
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, 2, res.State.CurrentQuestionIndex)
	require.Len(t, res.Appended, 2)
	assert.Equal(t, llm.RoleUser, res.Appended[0].Role)
	assert.Equal(t, "C", res.Appended[0].Content)

	call, _ := client.LastCall()
	assert.Equal(t, "interview/context", call.Phase)
	q2, _ := DefaultBank().Question(2)
	assert.Contains(t, call.System, q2.Stem)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleAssistant, Content: "Question 1?"},
		{Role: llm.RoleUser, Content: "C"},
	}, call.Messages)
}

func TestProcessTurnClarifiesUnmatchedAnswer(t *testing.T) {
	client := &llm.ScriptedClient{}
	a := newTestAgent(t, client)
	state := a.Machine().Advance(NewState(), Input{})

	res, err := a.ProcessTurn(context.Background(), TurnRequest{Input: Input{Message: "it depends"}, State: state})
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, state, res.State)

	call, _ := client.LastCall()
	assert.Contains(t, call.System, "did not clearly select an option")
}

func TestProcessTurnFailureLeavesStateUntouched(t *testing.T) {
	boom := errors.New("upstream 503")
	a := newTestAgent(t, &llm.ScriptedClient{Err: boom})

	state := NewState()
	state.Phase = PhaseFrictionSignals
	state.CurrentQuestionIndex = 19
	before := state.Clone()

	res, err := a.ProcessTurn(context.Background(), TurnRequest{Input: Input{Message: "A, B"}, State: state})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, TurnResult{}, res)
	assert.Equal(t, before, state)
}

func TestProcessTurnEmptyReplyFails(t *testing.T) {
	a := newTestAgent(t, &llm.ScriptedClient{Replies: []string{"  "}})
	_, err := a.ProcessTurn(context.Background(), TurnRequest{State: NewState()})
	assert.ErrorIs(t, err, llm.ErrEmptyReply)
}

func TestProcessTurnRunsToCompletion(t *testing.T) {
	a := newTestAgent(t, llm.NewFakeClient())
	ctx := context.Background()

	res, err := a.ProcessTurn(ctx, TurnRequest{State: NewState()})
	require.NoError(t, err)
	history := res.Appended
	state := res.State

	for i := 0; i < 19; i++ {
		require.False(t, res.IsComplete)
		res, err = a.ProcessTurn(ctx, TurnRequest{
			Input:   Input{Selections: []OptionKey{"B", "A"}},
			State:   state,
			History: history,
		})
		require.NoError(t, err)
		state = res.State
		history = append(history, res.Appended...)
	}

	assert.True(t, res.IsComplete)
	assert.Equal(t, PhaseClosing, state.Phase)
	assert.Equal(t, 19, state.CurrentQuestionIndex)
	require.True(t, state.Scored())
	assert.Equal(t, *state.DefaultArchetype == *state.AuthenticArchetype, *state.IsAligned)
	assert.Equal(t, "Thank you for taking the time to reflect with me.", res.Message)

	// Further turns keep the result fixed.
	again, err := a.ProcessTurn(ctx, TurnRequest{Input: Input{Message: "A"}, State: state, History: history})
	require.NoError(t, err)
	assert.Equal(t, state, again.State)
}

func TestNewAgentAppliesOptions(t *testing.T) {
	bank := DefaultBank()
	machine := NewMachine(bank)
	opts := []AgentOption{
		WithLogger(zaptest.NewLogger(t)),
		WithMachine(machine),
		WithClock(func() time.Time { return fixedNow }),
		WithObserver(nil),
	}
	a := NewAgent(&llm.ScriptedClient{}, opts...)
	assert.Same(t, machine, a.Machine())

	res, err := a.ProcessTurn(context.Background(), TurnRequest{State: NewState()})
	require.NoError(t, err)
	require.Len(t, res.Appended, 1)
	assert.Equal(t, fixedNow, res.Appended[0].Timestamp)

	// Answer options and agent options are distinct types.
	q, ok := bank.Question(1)
	require.True(t, ok)
	var choice Option
	choice, ok = q.Option("A")
	require.True(t, ok)
	assert.NotEmpty(t, choice.Text)
}
