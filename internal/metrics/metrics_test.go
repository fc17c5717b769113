package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusObserverCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewPrometheusObserver("test", reg)
	require.NoError(t, err)

	obs.ObserveTurn("interview", "context", nil)
	obs.ObserveTurn("interview", "context", nil)
	obs.ObserveTurn("interview", "", errors.New("boom"))
	obs.ObserveModelCall("fake", 10*time.Millisecond, errors.New("boom"))
	obs.ObserveBackfill("processed")

	assert.Equal(t, 2.0, testutil.ToFloat64(obs.turns.WithLabelValues("interview", "context")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.turnFailures.WithLabelValues("interview")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.modelErrors.WithLabelValues("fake")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.backfill.WithLabelValues("processed")))
}

func TestPrometheusObserverReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusObserver("test", reg)
	require.NoError(t, err)
	second, err := NewPrometheusObserver("test", reg)
	require.NoError(t, err)

	first.ObserveBackfill("skipped")
	second.ObserveBackfill("skipped")
	assert.Equal(t, 2.0, testutil.ToFloat64(second.backfill.WithLabelValues("skipped")))
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop{}, OrNop(nil))
	var obs Observer = &PrometheusObserver{}
	assert.Same(t, obs, OrNop(obs))
}
