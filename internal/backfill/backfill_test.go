package backfill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"flowforge/internal/assessment"
	"flowforge/internal/conversation"
	"flowforge/internal/enhancement"
	"flowforge/internal/interview"
	"flowforge/internal/reflection"
	"flowforge/internal/session"
)

type fakeEnhancer struct {
	outcomes map[string]enhancement.Outcome
	errs     map[string]error
	calls    []string
}

func (f *fakeEnhancer) Enhance(_ context.Context, id string) (enhancement.Outcome, error) {
	f.calls = append(f.calls, id)
	if err := f.errs[id]; err != nil {
		return enhancement.Outcome{}, err
	}
	if out, ok := f.outcomes[id]; ok {
		return out, nil
	}
	return enhancement.Outcome{Success: true, Enhanced: &enhancement.EnhancedResult{}}, nil
}

type countingObserver struct {
	backfill map[string]int
}

func (c *countingObserver) ObserveTurn(string, string, error)             {}
func (c *countingObserver) ObserveModelCall(string, time.Duration, error) {}
func (c *countingObserver) ObserveBackfill(outcome string)                { c.backfill[outcome]++ }

func scored() interview.State {
	s := interview.NewState()
	s.Phase = interview.PhaseClosing
	s.CurrentQuestionIndex = 19
	return interview.ApplyScore(s)
}

func completed() *reflection.State {
	return &reflection.State{Phase: reflection.PhaseCompleted, ExchangeCount: reflection.CloseAfter, IsComplete: true}
}

func reflected() []conversation.Message {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return []conversation.Message{
		conversation.Assistant("How does this land?", at),
		conversation.User("It fits.", at),
	}
}

func seed(t *testing.T, recs ...session.Record) *session.MemoryStore {
	t.Helper()
	store := session.NewMemoryStore()
	for _, rec := range recs {
		_, err := store.Create(context.Background(), rec)
		require.NoError(t, err)
	}
	return store
}

func newTestRunner(t *testing.T, store Lister, enh Enhancer, opts ...Option) (*Runner, *[]time.Duration) {
	var slept []time.Duration
	r := NewRunner(store, enh, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, &slept
}

func TestRunEnhancesPendingSessionsSequentially(t *testing.T) {
	store := seed(t,
		session.Record{ID: "a", Interview: scored(), Reflection: completed(), ReflectionTranscript: reflected()},
		session.Record{ID: "b", Interview: interview.NewState()},
		session.Record{ID: "c", Interview: scored()},
		session.Record{ID: "d", Interview: scored(), Reflection: completed(), ReflectionTranscript: reflected()},
		session.Record{ID: "e", Interview: scored(), Reflection: completed(), ReflectionTranscript: reflected(), Enhanced: &enhancement.EnhancedResult{}},
		session.Record{ID: "f", Interview: scored(), Reflection: &reflection.State{Phase: reflection.PhaseConversation, ExchangeCount: 1}, ReflectionTranscript: reflected()},
	)
	enh := &fakeEnhancer{}
	obs := &countingObserver{backfill: map[string]int{}}
	r, slept := newTestRunner(t, store, enh, WithDelay(time.Second), WithObserver(obs))

	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "d"}, enh.calls)
	// "f" is still reflecting and must wait for its full transcript.
	assert.Equal(t, Report{Processed: 2, Skipped: 4}, rep)
	// One pause between the two synthesis calls, none for skipped sessions.
	assert.Equal(t, []time.Duration{time.Second}, *slept)
	assert.Equal(t, map[string]int{OutcomeEnhanced: 2, OutcomeSkipped: 4}, obs.backfill)
}

func TestRunRecordsFailuresAndContinues(t *testing.T) {
	store := seed(t,
		session.Record{ID: "a", Interview: scored(), Reflection: completed(), ReflectionTranscript: reflected()},
		session.Record{ID: "b", Interview: scored(), Reflection: completed(), ReflectionTranscript: reflected()},
		session.Record{ID: "c", Interview: scored(), Reflection: completed(), ReflectionTranscript: reflected()},
		session.Record{ID: "d", Interview: scored(), Reflection: completed(), ReflectionTranscript: reflected()},
	)
	enh := &fakeEnhancer{
		outcomes: map[string]enhancement.Outcome{"a": {Error: "invalid json"}},
		errs: map[string]error{
			"b": errors.New("store offline"),
			"c": assessment.ErrAlreadyEnhanced,
		},
	}
	r, _ := newTestRunner(t, store, enh, WithDelay(0))

	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Processed)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 2, rep.Failed)
	assert.ElementsMatch(t, []Failure{
		{SessionID: "a", Error: "invalid json"},
		{SessionID: "b", Error: "store offline"},
	}, rep.Failures)
}

func TestRunHonoursLimit(t *testing.T) {
	store := seed(t,
		session.Record{ID: "a", Interview: scored(), Reflection: completed(), ReflectionTranscript: reflected()},
		session.Record{ID: "b", Interview: scored(), Reflection: completed(), ReflectionTranscript: reflected()},
		session.Record{ID: "c", Interview: scored(), Reflection: completed(), ReflectionTranscript: reflected()},
	)
	enh := &fakeEnhancer{}
	r, _ := newTestRunner(t, store, enh, WithLimit(2))

	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, enh.calls, 2)
	assert.Equal(t, 2, rep.Processed)
}

func TestRunStopsOnCancelledDelay(t *testing.T) {
	store := seed(t,
		session.Record{ID: "a", Interview: scored(), Reflection: completed(), ReflectionTranscript: reflected()},
		session.Record{ID: "b", Interview: scored(), Reflection: completed(), ReflectionTranscript: reflected()},
	)
	enh := &fakeEnhancer{}
	r := NewRunner(store, enh, WithDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	r.enhancer = enhancerFunc(func(ctx context.Context, id string) (enhancement.Outcome, error) {
		cancel()
		return enh.Enhance(ctx, id)
	})

	rep, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rep.Processed)
	assert.Len(t, enh.calls, 1)
}

type enhancerFunc func(context.Context, string) (enhancement.Outcome, error)

func (f enhancerFunc) Enhance(ctx context.Context, id string) (enhancement.Outcome, error) {
	return f(ctx, id)
}

func TestRunListError(t *testing.T) {
	r := NewRunner(failingLister{}, &fakeEnhancer{})
	_, err := r.Run(context.Background())
	assert.EqualError(t, err, "list failed")
}

type failingLister struct{}

func (failingLister) List(context.Context) ([]session.Record, error) {
	return nil, errors.New("list failed")
}
