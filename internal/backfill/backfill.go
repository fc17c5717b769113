// Package backfill enhances every stored session that completed a reflection
// but never received an enhanced result.
package backfill

import (
	"context"
	"time"

	"go.uber.org/zap"

	"flowforge/internal/assessment"
	"flowforge/internal/enhancement"
	"flowforge/internal/metrics"
	"flowforge/internal/session"
)

// DefaultDelay spaces synthesis calls to stay under provider rate limits.
const DefaultDelay = 2 * time.Second

// Outcome labels reported to the metrics observer.
const (
	OutcomeEnhanced = "enhanced"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Lister is the part of session.Store the runner reads.
type Lister interface {
	List(ctx context.Context) ([]session.Record, error)
}

// Enhancer synthesizes and persists the enhanced result of one session.
type Enhancer interface {
	Enhance(ctx context.Context, id string) (enhancement.Outcome, error)
}

// Failure describes one session the runner could not enhance.
type Failure struct {
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

// Report summarizes a run.
type Report struct {
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
}

type Runner struct {
	sessions Lister
	enhancer Enhancer
	delay    time.Duration
	log      *zap.Logger
	obs      metrics.Observer
	sleep    func(context.Context, time.Duration) error

	// Limit caps the number of synthesis attempts. Zero means no cap.
	Limit int
}

type Option func(*Runner)

func WithDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.delay = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

func WithObserver(o metrics.Observer) Option {
	return func(r *Runner) { r.obs = metrics.OrNop(o) }
}

func WithLimit(n int) Option {
	return func(r *Runner) { r.Limit = n }
}

func NewRunner(sessions Lister, enhancer Enhancer, opts ...Option) *Runner {
	r := &Runner{
		sessions: sessions,
		enhancer: enhancer,
		delay:    DefaultDelay,
		log:      zap.NewNop(),
		obs:      metrics.Nop{},
		sleep:    sleep,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run visits sessions one at a time in creation order. Per-session failures
// are recorded in the report and do not stop the run; only a listing error or
// cancellation does.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	var rep Report
	recs, err := r.sessions.List(ctx)
	if err != nil {
		return rep, err
	}

	attempts := 0
	for _, rec := range recs {
		if pending, reason := rec.EnhancementPending(); !pending {
			rep.Skipped++
			r.obs.ObserveBackfill(OutcomeSkipped)
			r.log.Debug("backfill skip", zap.String("session", rec.ID), zap.String("reason", reason))
			continue
		}
		if r.Limit > 0 && attempts >= r.Limit {
			break
		}
		if attempts > 0 {
			if err := r.sleep(ctx, r.delay); err != nil {
				return rep, err
			}
		}
		attempts++

		out, err := r.enhancer.Enhance(ctx, rec.ID)
		switch {
		case err != nil && assessment.IsSkip(err):
			// Changed since listing.
			rep.Skipped++
			r.obs.ObserveBackfill(OutcomeSkipped)
		case err != nil:
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			r.fail(&rep, rec.ID, err.Error())
		case !out.Success:
			r.fail(&rep, rec.ID, out.Error)
		default:
			rep.Processed++
			r.obs.ObserveBackfill(OutcomeEnhanced)
			r.log.Info("backfill enhanced", zap.String("session", rec.ID))
		}
	}

	r.log.Info("backfill finished",
		zap.Int("processed", rep.Processed),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed))
	return rep, nil
}

func (r *Runner) fail(rep *Report, id, msg string) {
	rep.Failed++
	rep.Failures = append(rep.Failures, Failure{SessionID: id, Error: msg})
	r.obs.ObserveBackfill(OutcomeFailed)
	r.log.Warn("backfill failed", zap.String("session", id), zap.String("error", msg))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
