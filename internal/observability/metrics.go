// Package observability exports per-session build metrics.
package observability

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danmuck/prodebench/internal/ledger"
)

const namespace = "pdbench"

// BuildMetrics collects build outcomes for one session on a private
// registry, so sessions never share counters.
type BuildMetrics struct {
	registry  *prometheus.Registry
	framework string
	textfile  string

	builds   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastCode *prometheus.GaugeVec
}

// NewBuildMetrics returns metrics labelled with framework. When textfile is
// non-empty, WriteTextfile persists the registry there.
func NewBuildMetrics(framework, textfile string) *BuildMetrics {
	m := &BuildMetrics{
		registry:  prometheus.NewRegistry(),
		framework: framework,
		textfile:  textfile,
		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Completed builds by outcome.",
			},
			[]string{"framework", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Wall-clock build duration in whole seconds.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"framework"},
		),
		lastCode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_last_return_code",
				Help:      "Exit status of the most recent build of a project.",
			},
			[]string{"framework", "project"},
		),
	}
	m.registry.MustRegister(m.builds, m.duration, m.lastCode)
	return m
}

// Add records r. It satisfies the runner's recorder contract so it can be
// chained behind the ledger.
func (m *BuildMetrics) Add(r ledger.Result) error {
	outcome := "success"
	if r.ReturnCode != 0 {
		outcome = "failure"
	}
	m.builds.WithLabelValues(m.framework, outcome).Inc()
	m.duration.WithLabelValues(m.framework).Observe(r.Duration.Seconds())
	m.lastCode.WithLabelValues(m.framework, r.Project).Set(float64(r.ReturnCode))
	return nil
}

// Registry exposes the underlying gatherer.
func (m *BuildMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the registry in the node-exporter textfile format.
// It is a no-op without a configured path.
func (m *BuildMetrics) WriteTextfile() error {
	if m.textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.textfile), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(m.textfile, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
