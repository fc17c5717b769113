package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Options selects and configures a provider.
type Options struct {
	Provider    string // gemini | groq | openai | fake
	Model       string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	RPS         float64
	Burst       int
	Middlewares []Middleware
}

// New builds the configured provider wrapped with a rate limiter and any
// extra middlewares (outermost first).
func New(ctx context.Context, opts Options) (Client, error) {
	var base Client
	switch p := strings.ToLower(strings.TrimSpace(opts.Provider)); p {
	case "", "fake":
		base = NewFakeClient()
	case "gemini":
		cli, err := NewGeminiClient(ctx, opts.APIKey, opts.Model)
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		base = cli
	case "groq", "openai":
		cli, err := NewOpenAIClient(opts.APIKey, opts.Model, opts.BaseURL, opts.Timeout)
		if err != nil {
			return nil, err
		}
		base = cli
	default:
		return nil, fmt.Errorf("unknown llm provider %q", p)
	}
	mws := append([]Middleware(nil), opts.Middlewares...)
	mws = append(mws, RateLimit(opts.RPS, opts.Burst))
	return Wrap(base, mws...), nil
}
