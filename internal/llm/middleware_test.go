package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type flakyClient struct {
	ScriptedClient
	failures int32
	calls    int32
	err      error
}

func (f *flakyClient) Chat(ctx context.Context, system string, messages []Message) (string, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failures {
		return "", f.err
	}
	return "recovered", nil
}

func TestWrapOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Client) Client {
			order = append(order, name)
			return next
		}
	}
	Wrap(&ScriptedClient{}, tag("outer"), tag("inner"))
	assert.Equal(t, []string{"inner", "outer"}, order)
}

func TestRetryRecovers(t *testing.T) {
	inner := &flakyClient{failures: 2, err: errors.New("transient")}
	cli := Wrap(inner, Retry(3, time.Millisecond))

	out, err := cli.Chat(context.Background(), "sys", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&inner.calls))
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	inner := &flakyClient{failures: 5, err: NewPermanentError(errors.New("bad request"))}
	cli := Wrap(inner, Retry(3, time.Millisecond))

	_, err := cli.Chat(context.Background(), "sys", nil)
	var pErr *PermanentError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

func TestRetryGivesUp(t *testing.T) {
	inner := &flakyClient{failures: 5, err: errors.New("down")}
	cli := Wrap(inner, Retry(2, time.Millisecond))

	_, err := cli.Chat(context.Background(), "sys", nil)
	require.EqualError(t, err, "down")
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
}

func TestRetryGenerateJSON(t *testing.T) {
	inner := &ScriptedClient{JSON: []json.RawMessage{json.RawMessage(`{"a":1}`)}}
	cli := Wrap(inner, Retry(2, time.Millisecond))

	raw, err := cli.GenerateJSON(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

type recordingHook struct {
	before []string
	after  []error
}

func (h *recordingHook) Before(_ context.Context, phase, _ string, _ any) {
	h.before = append(h.before, phase)
}

func (h *recordingHook) After(_ context.Context, _ string, _ json.RawMessage, err error) {
	h.after = append(h.after, err)
}

func TestHooksSeePhase(t *testing.T) {
	hook := &recordingHook{}
	cli := Wrap(&ScriptedClient{Replies: []string{"hi"}}, WithHooks())
	ctx := WithHook(WithPhase(context.Background(), "interview/opening"), hook)

	_, err := cli.Chat(ctx, "sys", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"interview/opening"}, hook.before)
	assert.Equal(t, []error{nil}, hook.after)
}

func TestPhaseFromDefault(t *testing.T) {
	assert.Equal(t, "unknown", PhaseFrom(context.Background()))
}

func TestLoggingRecordsErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cli := Wrap(&ScriptedClient{Err: errors.New("boom")}, WithLogging(zap.New(core)))

	_, err := cli.Chat(WithPhase(context.Background(), "reflection/opening"), "sys", []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)

	warn := logs.FilterMessage("llm chat error").All()
	require.Len(t, warn, 1)
	assert.Equal(t, "reflection/opening", warn[0].ContextMap()["phase"])
	assert.Equal(t, "scripted", warn[0].ContextMap()["provider"])
}

type countingObserver struct {
	calls int
	errs  int
}

func (c *countingObserver) ObserveTurn(string, string, error) {}
func (c *countingObserver) ObserveBackfill(string)            {}
func (c *countingObserver) ObserveModelCall(_ string, _ time.Duration, err error) {
	c.calls++
	if err != nil {
		c.errs++
	}
}

func TestMetricsMiddleware(t *testing.T) {
	obs := &countingObserver{}
	cli := Wrap(&ScriptedClient{}, WithMetrics(obs))
	_, _ = cli.Chat(context.Background(), "sys", nil)
	_, _ = cli.GenerateJSON(context.Background(), "p", nil)
	assert.Equal(t, 2, obs.calls)
	assert.Equal(t, 0, obs.errs)
}

func TestFactoryUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Options{Provider: "mystery"})
	require.Error(t, err)
}

func TestFakeClientEchoesQuestion(t *testing.T) {
	cli, err := New(context.Background(), Options{Provider: "fake"})
	require.NoError(t, err)
	defer cli.Close()

	system := "intro\n\n[CURRENT QUESTION]\nQuestion 1 of 19: Which role?\nA) One\n\n[TASK]\ngreet"
	out, err := cli.Chat(WithPhase(context.Background(), "interview/opening"), system, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Question 1 of 19")
	assert.NotContains(t, out, "[TASK]")
}
