package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CandidateEvaluated("defined")
		m.SweepFinished(100, time.Second)
		m.LabelRequested("ok")
		m.GroupingResolved("json")
		m.GroupingViolations("missing", 2)
		m.CacheSize(3)
		m.MatchFinished(time.Millisecond)
	})
	assert.NoError(t, m.Serve(context.Background()))
}

func TestRecording(t *testing.T) {
	m := New(Config{Namespace: "test"})

	m.CandidateEvaluated("defined")
	m.CandidateEvaluated("defined")
	m.CandidateEvaluated("undefined")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.candidates.WithLabelValues("defined")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.candidates.WithLabelValues("undefined")))

	m.GroupingViolations("duplicate", 3)
	m.GroupingViolations("duplicate", 0)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.groupViolations.WithLabelValues("duplicate")))

	m.CacheSize(4)
	m.CacheSize(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheEntries.WithLabelValues()))

	m.SweepFinished(600, time.Second)
	m.MatchFinished(time.Millisecond)
	n, err := testutil.GatherAndCount(m.Registry, "test_search_sweep_seconds", "test_match_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDefaults(t *testing.T) {
	m := New(Config{})
	assert.Equal(t, DefaultAddress, m.Server.Addr)
	m.GroupingResolved("fallback")

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			var service string
			for _, l := range metric.GetLabel() {
				if l.GetName() == "service" {
					service = l.GetValue()
				}
			}
			assert.Equal(t, "resintel", service, f.GetName())
		}
	}
}

func TestSizeClass(t *testing.T) {
	assert.Equal(t, "small", sizeClass(499))
	assert.Equal(t, "medium", sizeClass(500))
	assert.Equal(t, "large", sizeClass(2500))
	assert.Equal(t, "xlarge", sizeClass(10000))
}
