package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for conversational turns, model calls and the
// enhancement backfill.
type Observer interface {
	ObserveTurn(agent, phase string, err error)
	ObserveModelCall(provider string, duration time.Duration, err error)
	ObserveBackfill(outcome string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveTurn(string, string, error)             {}
func (Nop) ObserveModelCall(string, time.Duration, error) {}
func (Nop) ObserveBackfill(string)                        {}

// OrNop returns obs, or Nop when obs is nil.
func OrNop(obs Observer) Observer {
	if obs == nil {
		return Nop{}
	}
	return obs
}

// PrometheusObserver exports FlowForge metrics to Prometheus.
type PrometheusObserver struct {
	turns         *prometheus.CounterVec
	turnFailures  *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	modelErrors   *prometheus.CounterVec
	backfill      *prometheus.CounterVec
}

// NewPrometheusObserver registers the collectors on reg. Collectors that are
// already registered are reused.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "flowforge"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversational turns completed, by agent and resulting phase.",
		}, []string{"agent", "phase"}),
		turnFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_failures_total",
			Help:      "Conversational turns aborted by a model failure.",
		}, []string{"agent"}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Latency of language-model calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		modelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_call_errors_total",
			Help:      "Failed language-model calls.",
		}, []string{"provider"}),
		backfill: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_sessions_total",
			Help:      "Sessions visited by the enhancement backfill, by outcome.",
		}, []string{"outcome"}),
	}

	if err := register(reg, &o.turns); err != nil {
		return nil, err
	}
	if err := register(reg, &o.turnFailures); err != nil {
		return nil, err
	}
	if err := register(reg, &o.modelErrors); err != nil {
		return nil, err
	}
	if err := register(reg, &o.backfill); err != nil {
		return nil, err
	}
	if err := reg.Register(o.modelDuration); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register metric: %w", err)
		}
		o.modelDuration = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return o, nil
}

func register(reg prometheus.Registerer, c **prometheus.CounterVec) error {
	if err := reg.Register(*c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return fmt.Errorf("register metric: %w", err)
		}
		*c = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return nil
}

func (o *PrometheusObserver) ObserveTurn(agent, phase string, err error) {
	if o == nil {
		return
	}
	if err != nil {
		o.turnFailures.WithLabelValues(agent).Inc()
		return
	}
	o.turns.WithLabelValues(agent, phase).Inc()
}

func (o *PrometheusObserver) ObserveModelCall(provider string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.modelDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if err != nil {
		o.modelErrors.WithLabelValues(provider).Inc()
	}
}

func (o *PrometheusObserver) ObserveBackfill(outcome string) {
	if o == nil {
		return
	}
	o.backfill.WithLabelValues(outcome).Inc()
}

// WriteTextfile dumps the gatherer in the node-exporter textfile format so
// short-lived commands such as the backfill can publish their counters.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
