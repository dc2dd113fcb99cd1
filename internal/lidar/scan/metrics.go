package scan

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports scan statistics to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	passes     *prometheus.CounterVec
	rays       *prometheus.CounterVec
	hits       *prometheus.CounterVec
	overrides  *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	batchSize  prometheus.Gauge
	sweepAngle prometheus.Gauge
	sweeping   prometheus.Gauge
}

// NewMetrics creates the scan collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lidarscan",
			Name:      "passes_total",
			Help:      "Scan passes executed, by mode.",
		}, []string{"mode"}),
		rays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lidarscan",
			Name:      "rays_total",
			Help:      "Rays cast, by mode.",
		}, []string{"mode"}),
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lidarscan",
			Name:      "hits_total",
			Help:      "Rays that produced a sample, by mode.",
		}, []string{"mode"}),
		overrides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lidarscan",
			Name:      "override_samples_total",
			Help:      "Samples coloured by a surface tag override, by mode.",
		}, []string{"mode"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lidarscan",
			Name:      "skipped_commits_total",
			Help:      "Passes whose batch was not uploaded because no sink was ready.",
		}, []string{"mode"}),
		batchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lidarscan",
			Name:      "batch_samples",
			Help:      "Samples in the most recent batch.",
		}),
		sweepAngle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lidarscan",
			Name:      "sweep_angle_degrees",
			Help:      "Current vertical angle of the sweep scan.",
		}),
		sweeping: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lidarscan",
			Name:      "sweep_in_progress",
			Help:      "1 while a sweep scan is running.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.passes, m.rays, m.hits, m.overrides, m.skipped,
			m.batchSize, m.sweepAngle, m.sweeping)
	}
	return m
}

func (m *Metrics) observePass(s PassSummary) {
	if m == nil {
		return
	}
	mode := string(s.Mode)
	m.passes.WithLabelValues(mode).Inc()
	m.rays.WithLabelValues(mode).Add(float64(s.Rays))
	m.hits.WithLabelValues(mode).Add(float64(s.Hits))
	m.overrides.WithLabelValues(mode).Add(float64(s.Overrides))
	if !s.Committed {
		m.skipped.WithLabelValues(mode).Inc()
	}
	m.batchSize.Set(float64(s.Hits))
}

func (m *Metrics) observeSweep(s SweepState) {
	if m == nil {
		return
	}
	m.sweepAngle.Set(s.CurrentAngle)
	if s.InProgress {
		m.sweeping.Set(1)
	} else {
		m.sweeping.Set(0)
	}
}
