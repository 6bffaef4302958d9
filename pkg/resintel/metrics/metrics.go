// Package metrics exposes Prometheus collectors for the discovery and grouping pipelines.
//
// All recording methods are safe on a nil *Metrics so components can run without a registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultAddress is used when the config leaves the listen address empty.
const DefaultAddress = ":9090"

// Config controls the metrics registry and its HTTP endpoint.
type Config struct {
	Enabled                 bool   `yaml:"enabled"`
	Address                 string `yaml:"address"`
	Namespace               string `yaml:"namespace"`
	ServiceName             string `yaml:"service_name"`
	EnableDefaultCollectors bool   `yaml:"enable_default_collectors"`
}

// Metrics holds the registry and the domain collectors.
type Metrics struct {
	Server   *http.Server
	Registry *prometheus.Registry

	candidates      *prometheus.CounterVec
	sweepDuration   *prometheus.HistogramVec
	labels          *prometheus.CounterVec
	grouping        *prometheus.CounterVec
	groupViolations *prometheus.CounterVec
	cacheEntries    *prometheus.GaugeVec
	matchDuration   *prometheus.HistogramVec
}

// New creates a registry and registers every collector on it.
func New(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()
	service := cfg.ServiceName
	if service == "" {
		service = "resintel"
	}
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, registry)

	if cfg.EnableDefaultCollectors {
		wrapped.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	ns := cfg.Namespace
	m := &Metrics{
		Registry: registry,
		candidates: createCounterVec(ns, "search_candidates_total",
			"Granularity candidates evaluated, by outcome.", []string{"outcome"}),
		sweepDuration: createHistogramVec(ns, "search_sweep_seconds",
			"Wall time of a full granularity sweep.", []string{"corpus_size"}, prometheus.ExponentialBuckets(0.5, 2, 12)),
		labels: createCounterVec(ns, "labeler_requests_total",
			"Topic label requests, by outcome.", []string{"outcome"}),
		grouping: createCounterVec(ns, "grouping_results_total",
			"Grouping results, by the strategy that produced them.", []string{"source"}),
		groupViolations: createCounterVec(ns, "grouping_violations_total",
			"Fields missing, duplicated or unknown in returned groups.", []string{"kind"}),
		cacheEntries: createGaugeVec(ns, "analysis_cache_entries",
			"Corpora currently held in the analysis cache.", nil),
		matchDuration: createHistogramVec(ns, "match_seconds",
			"Wall time of keyword matching over a corpus.", nil, prometheus.DefBuckets),
	}
	wrapped.MustRegister(m.candidates, m.sweepDuration, m.labels, m.grouping, m.groupViolations, m.cacheEntries, m.matchDuration)

	addr := cfg.Address
	if addr == "" {
		addr = DefaultAddress
	}
	m.Server = &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m
}

// Serve runs the HTTP endpoint until ctx is done.
func (m *Metrics) Serve(ctx context.Context) error {
	if m == nil {
		return nil
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Server.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return m.Server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// CandidateEvaluated records one sweep candidate. outcome is "defined", "undefined" or "error".
func (m *Metrics) CandidateEvaluated(outcome string) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(outcome).Inc()
}

// SweepFinished records the duration of a sweep bucketed by corpus size class.
func (m *Metrics) SweepFinished(docs int, d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.WithLabelValues(sizeClass(docs)).Observe(d.Seconds())
}

// LabelRequested records a topic label outcome: "ok", "placeholder", "empty" or "error".
func (m *Metrics) LabelRequested(outcome string) {
	if m == nil {
		return
	}
	m.labels.WithLabelValues(outcome).Inc()
}

// GroupingResolved records which strategy produced a grouping result.
func (m *Metrics) GroupingResolved(source string) {
	if m == nil {
		return
	}
	m.grouping.WithLabelValues(source).Inc()
}

// GroupingViolations adds n violations of the given kind.
func (m *Metrics) GroupingViolations(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.groupViolations.WithLabelValues(kind).Add(float64(n))
}

// CacheSize sets the number of cached corpora.
func (m *Metrics) CacheSize(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.WithLabelValues().Set(float64(n))
}

// MatchFinished records the duration of a matching pass.
func (m *Metrics) MatchFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.matchDuration.WithLabelValues().Observe(d.Seconds())
}

func sizeClass(docs int) string {
	switch {
	case docs < 500:
		return "small"
	case docs < 2500:
		return "medium"
	case docs < 10000:
		return "large"
	default:
		return "xlarge"
	}
}
