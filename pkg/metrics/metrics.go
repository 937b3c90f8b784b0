package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Registry holds all metrics for one merge process. Each Registry owns
// a private prometheus registry, so tests and repeated invocations
// never collide on metric registration.
type Registry struct {
	RecordsMergedTotal *prometheus.CounterVec
	BlocksMergedTotal  *prometheus.CounterVec
	BytesWrittenTotal  *prometheus.CounterVec
	LevelsTotal        prometheus.Counter
	RunsOpenedTotal    prometheus.Counter
	MergeDuration      prometheus.Histogram

	registry *prometheus.Registry
}

// Merge stages used as the "stage" label value.
const (
	StageIntermediate = "intermediate"
	StageTerminal     = "terminal"
)

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{registry: reg}

	r.RecordsMergedTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergelcp_records_merged_total",
			Help: "Total number of pair records written, including block sentinels",
		},
		[]string{"stage"},
	)

	r.BlocksMergedTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergelcp_blocks_merged_total",
			Help: "Total number of run blocks drained through a heap",
		},
		[]string{"stage"},
	)

	r.BytesWrittenTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergelcp_bytes_written_total",
			Help: "Total bytes written to pair and lcp output files",
		},
		[]string{"stage"},
	)

	r.LevelsTotal = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "mergelcp_levels_total",
			Help: "Number of intermediate merge levels performed",
		},
	)

	r.RunsOpenedTotal = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "mergelcp_runs_opened_total",
			Help: "Number of run cursors opened across all levels",
		},
	)

	r.MergeDuration = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mergelcp_merge_duration_seconds",
			Help:    "End to end merge duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
	)

	return r
}

// RecordBlock records one drained block.
func (r *Registry) RecordBlock(stage string, records, bytes uint64) {
	r.BlocksMergedTotal.WithLabelValues(stage).Inc()
	r.RecordsMergedTotal.WithLabelValues(stage).Add(float64(records))
	r.BytesWrittenTotal.WithLabelValues(stage).Add(float64(bytes))
}

// RecordLevel records one completed intermediate level.
func (r *Registry) RecordLevel() {
	r.LevelsTotal.Inc()
}

// RecordRunOpened records one run cursor attached to a heap.
func (r *Registry) RecordRunOpened() {
	r.RunsOpenedTotal.Inc()
}

// ObserveMergeDuration records the total merge wall time.
func (r *Registry) ObserveMergeDuration(d time.Duration) {
	r.MergeDuration.Observe(d.Seconds())
}

// Gatherer exposes the underlying registry for scraping or testing.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Summary gathers every metric and formats a human-readable report,
// used for the elapsed-time diagnostics mode.
func (r *Registry) Summary() string {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Sprintf("metrics gather failed: %v", err)
	}

	var b strings.Builder
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(&b, "%s%s %s\n", mf.GetName(), formatLabels(m), formatValue(mf.GetType(), m))
		}
	}
	return b.String()
}

func formatLabels(m *dto.Metric) string {
	if len(m.GetLabel()) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		parts = append(parts, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func formatValue(t dto.MetricType, m *dto.Metric) string {
	switch t {
	case dto.MetricType_COUNTER:
		return fmt.Sprintf("%g", m.GetCounter().GetValue())
	case dto.MetricType_GAUGE:
		return fmt.Sprintf("%g", m.GetGauge().GetValue())
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		return fmt.Sprintf("count=%d sum=%gs", h.GetSampleCount(), h.GetSampleSum())
	default:
		return "?"
	}
}
