package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"flowforge/internal/metrics"
)

// Middleware decorates a Client to inject cross-cutting concerns
// (rate limiting, retries, logging, hooks, metrics).
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// call is the shared shape of Chat and GenerateJSON used by decorators that
// treat both the same way.
type call func(ctx context.Context) error

// -------- Rate Limiting --------

// RateLimit limits request rate with a token bucket.
// If rps <= 0, the limiter is disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Client) Client {
		return &rateLimited{next: next, rl: newRPSLimiter(rps, burst)}
	}
}

type rateLimited struct {
	next Client
	rl   *rpsLimiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error {
	c.rl.Stop()
	return c.next.Close()
}

func (c *rateLimited) Chat(ctx context.Context, system string, messages []Message) (string, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return "", err
	}
	return c.next.Chat(ctx, system, messages)
}

func (c *rateLimited) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return nil, err
	}
	return c.next.GenerateJSON(ctx, prompt, input)
}

// -------- Retry with exponential backoff --------

// Retry retries up to maxAttempts with exponential backoff starting at
// baseDelay. PermanentError and context cancellation stop it immediately.
// Conversational turns are not wrapped with Retry; a failed turn is surfaced
// to the caller and resubmitted by the participant.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Client) Client {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Client
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) do(ctx context.Context, fn call) error {
	var last error
	for i := 0; i < r.max; i++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var pErr *PermanentError
		if errors.As(err, &pErr) {
			return err
		}
		last = err
		if i == r.max-1 {
			break
		}
		timer := time.NewTimer(r.base * time.Duration(1<<i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return last
}

func (r *retrying) Chat(ctx context.Context, system string, messages []Message) (string, error) {
	var out string
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.next.Chat(ctx, system, messages)
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (r *retrying) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	var out json.RawMessage
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.next.GenerateJSON(ctx, prompt, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// -------- Logging --------

// WithLogging logs request size and errors. A nil logger disables logging.
func WithLogging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Client) Client {
		return &logging{next: next, log: logger.With(zap.String("provider", next.Name()))}
	}
}

type logging struct {
	next Client
	log  *zap.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) Chat(ctx context.Context, system string, messages []Message) (string, error) {
	size := len(system)
	for _, m := range messages {
		size += len(m.Content)
	}
	l.log.Debug("llm chat request",
		zap.String("phase", PhaseFrom(ctx)),
		zap.Int("messages", len(messages)),
		zap.Int("bytes", size))
	out, err := l.next.Chat(ctx, system, messages)
	if err != nil {
		l.log.Warn("llm chat error", zap.String("phase", PhaseFrom(ctx)), zap.Error(err))
	}
	return out, err
}

func (l *logging) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	in, _ := json.Marshal(input)
	l.log.Debug("llm json request",
		zap.String("phase", PhaseFrom(ctx)),
		zap.Int("bytes", len(prompt)+len(in)))
	raw, err := l.next.GenerateJSON(ctx, prompt, input)
	if err != nil {
		l.log.Warn("llm json error", zap.String("phase", PhaseFrom(ctx)), zap.Error(err))
	}
	return raw, err
}

// -------- Hooks --------

// WithHooks calls HookFrom(ctx).Before/After around each call.
// If no hook is present in the context, it is a no-op.
func WithHooks() Middleware {
	return func(next Client) Client {
		return &hooked{next: next}
	}
}

type hooked struct{ next Client }

func (h *hooked) Name() string { return h.next.Name() }
func (h *hooked) Close() error { return h.next.Close() }

func (h *hooked) Chat(ctx context.Context, system string, messages []Message) (string, error) {
	hook := HookFrom(ctx)
	if hook != nil {
		hook.Before(ctx, PhaseFrom(ctx), system, messages)
	}
	out, err := h.next.Chat(ctx, system, messages)
	if hook != nil {
		var raw json.RawMessage
		if err == nil {
			raw, _ = json.Marshal(out)
		}
		hook.After(ctx, PhaseFrom(ctx), raw, err)
	}
	return out, err
}

func (h *hooked) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	hook := HookFrom(ctx)
	if hook != nil {
		hook.Before(ctx, PhaseFrom(ctx), prompt, input)
	}
	raw, err := h.next.GenerateJSON(ctx, prompt, input)
	if hook != nil {
		hook.After(ctx, PhaseFrom(ctx), raw, err)
	}
	return raw, err
}

// -------- Metrics --------

// WithMetrics records latency and failures of every call.
func WithMetrics(obs metrics.Observer) Middleware {
	obs = metrics.OrNop(obs)
	return func(next Client) Client {
		return &measured{next: next, obs: obs}
	}
}

type measured struct {
	next Client
	obs  metrics.Observer
}

func (m *measured) Name() string { return m.next.Name() }
func (m *measured) Close() error { return m.next.Close() }

func (m *measured) Chat(ctx context.Context, system string, messages []Message) (string, error) {
	start := time.Now()
	out, err := m.next.Chat(ctx, system, messages)
	m.obs.ObserveModelCall(m.next.Name(), time.Since(start), err)
	return out, err
}

func (m *measured) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	start := time.Now()
	raw, err := m.next.GenerateJSON(ctx, prompt, input)
	m.obs.ObserveModelCall(m.next.Name(), time.Since(start), err)
	return raw, err
}
