package backfill

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes run statistics to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Runs        *prometheus.CounterVec
	Records     *prometheus.CounterVec
	Collisions  *prometheus.CounterVec
	Confidence  prometheus.Histogram
	RunDuration prometheus.Histogram
}

// NewMetrics registers the backfill metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facility_names",
			Name:      "backfill_runs_total",
			Help:      "Backfill runs by mode and outcome.",
		}, []string{"mode", "outcome"}), // mode: "apply", "dry_run"

		Records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facility_names",
			Name:      "backfill_records_total",
			Help:      "Facilities processed by result.",
		}, []string{"result"}), // result: "updated", "unchanged", "skipped", "unresolved"

		Collisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facility_names",
			Name:      "backfill_collisions_resolved_total",
			Help:      "Slug collisions resolved by fallback tier.",
		}, []string{"tier"}),

		Confidence: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "facility_names",
			Name:      "backfill_confidence",
			Help:      "Distribution of synthesized name confidence.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),

		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "facility_names",
			Name:      "backfill_run_duration_seconds",
			Help:      "Wall time of a backfill run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
	}
}

func (m *Metrics) observeRun(dryRun bool, err error, d time.Duration) {
	if m == nil {
		return
	}
	mode, outcome := "apply", "ok"
	if dryRun {
		mode = "dry_run"
	}
	if err != nil {
		outcome = "error"
	}
	m.Runs.WithLabelValues(mode, outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
}

func (m *Metrics) record(result string) {
	if m != nil {
		m.Records.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) collision(tier string) {
	if m != nil {
		m.Collisions.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) confidence(c float64) {
	if m != nil {
		m.Confidence.Observe(c)
	}
}
