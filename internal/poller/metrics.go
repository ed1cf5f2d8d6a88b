package poller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the coordinator's prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so tests and SDK users that
// do not care about metrics can pass nil.
type Metrics struct {
	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	revision        prometheus.Gauge
	connected       prometheus.Gauge
	writeTotal      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// Registration errors (e.g. duplicate registration) are returned.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		// result: success/auth/transient
		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raypak_refresh_total",
				Help: "Refresh cycles against the device API, by result.",
			},
			[]string{"result"},
		),
		refreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "raypak_refresh_duration_seconds",
				Help:    "Wall time of a refresh cycle (getAll + isHardwareConnected).",
				Buckets: prometheus.DefBuckets,
			},
		),
		revision: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "raypak_snapshot_revision",
				Help: "Revision of the currently published snapshot.",
			},
		),
		connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "raypak_hardware_connected",
				Help: "Hardware connectivity reported by the last successful refresh (1=connected).",
			},
		),
		writeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raypak_write_total",
				Help: "Pin writes against the device API, by result.",
			},
			[]string{"result"},
		),
	}

	for _, c := range []prometheus.Collector{m.refreshTotal, m.refreshDuration, m.revision, m.connected, m.writeTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRefresh(err error, took time.Duration) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(resultLabel(err)).Inc()
	m.refreshDuration.Observe(took.Seconds())
}

func (m *Metrics) observeSnapshot(s Snapshot) {
	if m == nil {
		return
	}
	m.revision.Set(float64(s.Revision))
	if s.Connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *Metrics) observeWrite(err error) {
	if m == nil {
		return
	}
	m.writeTotal.WithLabelValues(resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return Classify(err).String()
}
