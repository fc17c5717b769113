package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"flowforge/internal/archive"
	"flowforge/internal/enhancement"
	"flowforge/internal/interview"
	"flowforge/internal/llm"
	"flowforge/internal/reflection"
	"flowforge/internal/session"
	"flowforge/internal/tenant"
)

type fixture struct {
	svc      *Service
	sessions *session.MemoryStore
	archive  *archive.MemoryStore
}

func newFixture(t *testing.T, chat, synth llm.Client, autoEnhance bool) fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	now := func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	seq := 0
	f := fixture{sessions: session.NewMemoryStore(), archive: archive.NewMemoryStore()}
	f.svc = New(Deps{
		Sessions:    f.sessions,
		Archive:     f.archive,
		Tenants:     tenant.NewStaticDirectory(tenant.Context{ID: "acme", DisplayName: "Acme"}),
		Interview:   interview.NewAgent(chat, interview.WithLogger(log), interview.WithClock(now)),
		Reflection:  reflection.NewAgent(chat, reflection.WithLogger(log), reflection.WithClock(now)),
		Synthesizer: enhancement.NewSynthesizer(synth, log).WithClock(now),
		Logger:      log,
		AutoEnhance: autoEnhance,
		NewID: func() string {
			seq++
			return fmt.Sprintf("s-%d", seq)
		},
	})
	return f
}

func completeInterview(t *testing.T, svc *Service, id string) Reply {
	t.Helper()
	var (
		r   Reply
		err error
	)
	for i := 0; i < 19; i++ {
		r, err = svc.InterviewTurn(context.Background(), id, interview.Input{Selections: []interview.OptionKey{"A", "B"}})
		require.NoError(t, err)
	}
	require.True(t, r.IsComplete)
	return r
}

func completeReflection(t *testing.T, svc *Service, id string) Reply {
	t.Helper()
	var (
		r   Reply
		err error
	)
	for _, msg := range []string{"", "It rings true.", "Mostly at work.", "I want to delegate more.", "Thanks."} {
		r, err = svc.ReflectionTurn(context.Background(), id, msg)
		require.NoError(t, err)
	}
	require.True(t, r.IsComplete)
	return r
}

func TestStartCreatesSessionWithGreeting(t *testing.T) {
	f := newFixture(t, llm.NewFakeClient(), llm.NewFakeClient(), false)

	r, err := f.svc.Start(context.Background(), "acme", " Jo ")
	require.NoError(t, err)
	assert.Equal(t, "s-1", r.SessionID)
	assert.Equal(t, string(interview.PhaseContext), r.Phase)
	assert.Contains(t, r.Message, "Welcome")
	assert.False(t, r.IsComplete)

	rec, err := f.svc.Get(context.Background(), r.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "acme", rec.TenantID)
	assert.Equal(t, "Jo", rec.ParticipantName)
	assert.Equal(t, 1, rec.Interview.CurrentQuestionIndex)
	require.Len(t, rec.Transcript, 1)
	assert.Equal(t, rec.Version, r.Version)
}

func TestInterviewCompletionArchivesResult(t *testing.T) {
	f := newFixture(t, llm.NewFakeClient(), llm.NewFakeClient(), false)
	ctx := context.Background()
	r, err := f.svc.Start(ctx, "acme", "Jo")
	require.NoError(t, err)

	completeInterview(t, f.svc, r.SessionID)

	rec, err := f.svc.Get(ctx, r.SessionID)
	require.NoError(t, err)
	want, ok := rec.Interview.Result()
	require.True(t, ok)

	var got interview.Result
	require.NoError(t, archive.GetJSON(ctx, f.archive, r.SessionID, archive.InterviewResult, &got))
	assert.Equal(t, want, got)
	// greeting + 19 answers with replies
	assert.Len(t, rec.Transcript, 39)
}

func TestInterviewTurnUnknownSession(t *testing.T) {
	f := newFixture(t, llm.NewFakeClient(), llm.NewFakeClient(), false)
	_, err := f.svc.InterviewTurn(context.Background(), "missing", interview.Input{Message: "A"})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestInterviewTurnFailureKeepsSession(t *testing.T) {
	chat := &llm.ScriptedClient{}
	f := newFixture(t, chat, llm.NewFakeClient(), false)
	ctx := context.Background()
	r, err := f.svc.Start(ctx, "", "")
	require.NoError(t, err)

	chat.Err = errors.New("model down")
	_, err = f.svc.InterviewTurn(ctx, r.SessionID, interview.Input{Message: "A"})
	require.Error(t, err)

	rec, err := f.svc.Get(ctx, r.SessionID)
	require.NoError(t, err)
	assert.Equal(t, r.Version, rec.Version)
	assert.Equal(t, 1, rec.Interview.CurrentQuestionIndex)
	assert.Len(t, rec.Transcript, 1)
}

func TestReflectionRequiresCompletedInterview(t *testing.T) {
	f := newFixture(t, llm.NewFakeClient(), llm.NewFakeClient(), false)
	r, err := f.svc.Start(context.Background(), "acme", "Jo")
	require.NoError(t, err)

	_, err = f.svc.ReflectionTurn(context.Background(), r.SessionID, "")
	assert.ErrorIs(t, err, ErrInterviewIncomplete)
}

func TestReflectionThenEnhance(t *testing.T) {
	f := newFixture(t, llm.NewFakeClient(), llm.NewFakeClient(), false)
	ctx := context.Background()
	r, err := f.svc.Start(ctx, "acme", "Jo")
	require.NoError(t, err)
	completeInterview(t, f.svc, r.SessionID)

	_, err = f.svc.Enhance(ctx, r.SessionID)
	assert.ErrorIs(t, err, enhancement.ErrNoReflection)

	last := completeReflection(t, f.svc, r.SessionID)
	assert.Equal(t, string(reflection.PhaseCompleted), last.Phase)

	_, err = f.svc.ReflectionTurn(ctx, r.SessionID, "one more")
	assert.ErrorIs(t, err, reflection.ErrCompleted)

	out, err := f.svc.Enhance(ctx, r.SessionID)
	require.NoError(t, err)
	require.True(t, out.Success, out.Error)

	rec, err := f.svc.Get(ctx, r.SessionID)
	require.NoError(t, err)
	require.NotNil(t, rec.Enhanced)
	assert.Equal(t, "fake default narrative", rec.Enhanced.PersonalizedDefaultNarrative)

	paths, err := f.svc.Artifacts(ctx, r.SessionID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{archive.InterviewResult, archive.ReflectionTranscript, archive.EnhancedResult}, paths)

	links, err := f.svc.ArtifactLinks(ctx, r.SessionID)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, paths, []string{links[0].Path, links[1].Path, links[2].Path})

	_, err = f.svc.Enhance(ctx, r.SessionID)
	assert.ErrorIs(t, err, ErrAlreadyEnhanced)
	assert.True(t, IsSkip(err))
}

func TestEnhanceWaitsForCompletedReflection(t *testing.T) {
	synth := &llm.ScriptedClient{JSON: []json.RawMessage{json.RawMessage(`{
		"personalized_default_narrative": "d",
		"personalized_authentic_narrative": "a",
		"personalized_tension_insight": "t",
		"personalized_guidance": ["g"]
	}`)}}
	f := newFixture(t, llm.NewFakeClient(), synth, true)
	ctx := context.Background()
	r, err := f.svc.Start(ctx, "acme", "Jo")
	require.NoError(t, err)
	completeInterview(t, f.svc, r.SessionID)

	_, err = f.svc.ReflectionTurn(ctx, r.SessionID, "")
	require.NoError(t, err)
	_, err = f.svc.ReflectionTurn(ctx, r.SessionID, "It rings true.")
	require.NoError(t, err)

	_, err = f.svc.Enhance(ctx, r.SessionID)
	assert.ErrorIs(t, err, ErrReflectionOpen)
	assert.True(t, IsSkip(err))
	rec, err := f.svc.Get(ctx, r.SessionID)
	require.NoError(t, err)
	assert.Nil(t, rec.Enhanced)

	for _, msg := range []string{"Mostly at work.", "I want to delegate more.", "Thanks."} {
		_, err = f.svc.ReflectionTurn(ctx, r.SessionID, msg)
		require.NoError(t, err)
	}
	rec, err = f.svc.Get(ctx, r.SessionID)
	require.NoError(t, err)
	require.NotNil(t, rec.Enhanced, "completion enhances over the full transcript")
	assert.Len(t, rec.ReflectionTranscript, 9)
	// The early request never reached the model.
	assert.Len(t, synth.Calls, 1)
}

func TestReflectionAutoEnhances(t *testing.T) {
	f := newFixture(t, llm.NewFakeClient(), llm.NewFakeClient(), true)
	ctx := context.Background()
	r, err := f.svc.Start(ctx, "acme", "Jo")
	require.NoError(t, err)
	completeInterview(t, f.svc, r.SessionID)
	completeReflection(t, f.svc, r.SessionID)

	rec, err := f.svc.Get(ctx, r.SessionID)
	require.NoError(t, err)
	assert.NotNil(t, rec.Enhanced)
}

func TestEnhanceFailureLeavesSessionPending(t *testing.T) {
	synth := &llm.ScriptedClient{JSON: []json.RawMessage{json.RawMessage(`{"personalized_guidance": []}`)}}
	f := newFixture(t, llm.NewFakeClient(), synth, false)
	ctx := context.Background()
	r, err := f.svc.Start(ctx, "acme", "Jo")
	require.NoError(t, err)
	completeInterview(t, f.svc, r.SessionID)
	completeReflection(t, f.svc, r.SessionID)

	out, err := f.svc.Enhance(ctx, r.SessionID)
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Error)

	rec, err := f.svc.Get(ctx, r.SessionID)
	require.NoError(t, err)
	assert.Nil(t, rec.Enhanced)
	pending, _ := rec.EnhancementPending()
	assert.True(t, pending)
}

func TestEnhanceWithoutResults(t *testing.T) {
	f := newFixture(t, llm.NewFakeClient(), llm.NewFakeClient(), false)
	r, err := f.svc.Start(context.Background(), "acme", "Jo")
	require.NoError(t, err)

	_, err = f.svc.Enhance(context.Background(), r.SessionID)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestConcurrentWriterLosesOnVersion(t *testing.T) {
	f := newFixture(t, llm.NewFakeClient(), llm.NewFakeClient(), false)
	ctx := context.Background()
	r, err := f.svc.Start(ctx, "acme", "Jo")
	require.NoError(t, err)

	stale, err := f.sessions.Get(ctx, r.SessionID)
	require.NoError(t, err)
	_, err = f.svc.InterviewTurn(ctx, r.SessionID, interview.Input{Message: "A"})
	require.NoError(t, err)

	stale.ParticipantName = "Other"
	_, err = f.sessions.Update(ctx, stale)
	assert.ErrorIs(t, err, session.ErrVersionConflict)
}
