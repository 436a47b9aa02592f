// Package metrics holds the run counters and writes them as a Prometheus
// textfile for node_exporter's textfile collector.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "submerge"

// Metrics holds all counters of a single run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	SourceURLsTotal  *prometheus.CounterVec
	TasksTotal       *prometheus.CounterVec
	TaskDuration     prometheus.Histogram
	NodesTotal       *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	LastRunTimestamp prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		SourceURLsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "source_urls_total",
			Help:      "Subscription URLs harvested, by source.",
		}, []string{"source"}),
		TasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tasks_total",
			Help:      "Conversion tasks finished, by result.",
		}, []string{"result"}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of one conversion task.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~51s
		}),
		NodesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "nodes_total",
			Help:      "Proxy nodes seen, by merge stage.",
		}, []string{"stage"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Errors by stage and code.",
		}, []string{"stage", "code"}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished.",
		}),
	}
}

func (m *Metrics) AddSourceURLs(source string, n int) {
	if m == nil {
		return
	}
	m.SourceURLsTotal.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) ObserveTask(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.TasksTotal.WithLabelValues(result).Inc()
	m.TaskDuration.Observe(d.Seconds())
}

func (m *Metrics) AddNodes(stage string, n int) {
	if m == nil {
		return
	}
	m.NodesTotal.WithLabelValues(stage).Add(float64(n))
}

func (m *Metrics) IncError(stage, code string) {
	if m == nil {
		return
	}
	stage = strings.TrimSpace(stage)
	code = strings.TrimSpace(code)
	if stage == "" {
		stage = "(unknown)"
	}
	if code == "" {
		code = "(unknown)"
	}
	m.ErrorsTotal.WithLabelValues(stage, code).Inc()
}

// WriteTextfile stamps the run time and writes every metric to path in the
// text exposition format. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	m.LastRunTimestamp.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, m.Registry)
}
