// Package metrics provides Prometheus metrics instrumentation for the
// retrieval engine, adapted from the teacher's workflow-oriented metrics
// manager (pkg/metrics/metrics.go) to the engine's own store/search/
// janitor concerns.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every Prometheus collector exposed by the engine.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	storeTotal         *prometheus.CounterVec
	searchDuration      *prometheus.HistogramVec
	indexSize            *prometheus.GaugeVec
	janitorRepairsTotal  prometheus.Counter
	degradedWritesTotal  prometheus.Counter
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Port    int
	Path    string

	SearchDurationBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:               true,
		Port:                  9091,
		Path:                  "/metrics",
		SearchDurationBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// NewManager creates a new metrics manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{enabled: false}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Manager{registry: registry, enabled: true}

	m.storeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recall_store_total",
		Help: "Total number of store operations, labeled by outcome.",
	}, []string{"outcome"})

	m.searchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recall_search_duration_seconds",
		Help:    "Hybrid search latency, labeled by the search mode actually used.",
		Buckets: cfg.SearchDurationBuckets,
	}, []string{"search_mode"})

	m.indexSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "recall_index_size",
		Help: "Current number of entries in an index, labeled by index name.",
	}, []string{"index"})

	m.janitorRepairsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recall_janitor_repairs_total",
		Help: "Total number of cross-store repairs performed by the janitor sweep.",
	})

	m.degradedWritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recall_degraded_writes_total",
		Help: "Total number of writes persisted with neither index accepting them.",
	})

	registry.MustRegister(m.storeTotal, m.searchDuration, m.indexSize, m.janitorRepairsTotal, m.degradedWritesTotal)

	return m
}

// NoOpManager returns a disabled manager whose recording methods are safe
// no-ops.
func NoOpManager() *Manager { return &Manager{enabled: false} }

// Enabled reports whether metrics collection is enabled.
func (m *Manager) Enabled() bool { return m.enabled }

func (m *Manager) ObserveStore(outcome string) {
	if !m.enabled {
		return
	}
	m.storeTotal.WithLabelValues(outcome).Inc()
}

func (m *Manager) ObserveSearch(mode string, d time.Duration) {
	if !m.enabled {
		return
	}
	m.searchDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Manager) SetIndexSize(index string, size int) {
	if !m.enabled {
		return
	}
	m.indexSize.WithLabelValues(index).Set(float64(size))
}

func (m *Manager) IncJanitorRepairs(n int) {
	if !m.enabled || n <= 0 {
		return
	}
	m.janitorRepairsTotal.Add(float64(n))
}

func (m *Manager) IncDegradedWrites() {
	if !m.enabled {
		return
	}
	m.degradedWritesTotal.Inc()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server on the configured port.
func (m *Manager) StartServer(ctx context.Context, port int, path string) error {
	if !m.enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	return server.ListenAndServe()
}
