// Package telemetry exposes Prometheus metrics for the dashboard and the API.
package telemetry

import (
	"net/http"
	"time"

	"github.com/beewatch/backend/internal/alert"
	"github.com/beewatch/backend/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusSuccess
}

// DashboardMetrics tracks polling, alerting and sink delivery
type DashboardMetrics struct {
	registry *prometheus.Registry

	pollsTotal       *prometheus.CounterVec
	pollDuration     prometheus.Histogram
	staleDropped     prometheus.Counter
	readingsGauge    prometheus.Gauge
	windowMeanGauge  prometheus.Gauge
	overallMeanGauge prometheus.Gauge
	noiseGauge       prometheus.Gauge
	alertActive      *prometheus.GaugeVec
	alertTransitions *prometheus.CounterVec
	predictionsTotal *prometheus.CounterVec
	deliveriesTotal  *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
}

// NewDashboardMetrics creates and registers the dashboard metrics
func NewDashboardMetrics(registry *prometheus.Registry) (*DashboardMetrics, error) {
	m := &DashboardMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DashboardMetrics) initMetrics() {
	m.pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beewatch_polls_total",
			Help: "Total number of data endpoint polls",
		},
		[]string{"status"},
	)
	m.pollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beewatch_poll_duration_seconds",
			Help:    "Time taken to fetch readings",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)
	m.staleDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "beewatch_stale_polls_dropped_total",
			Help: "Poll results discarded because a newer poll was already applied",
		},
	)
	m.readingsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beewatch_readings",
			Help: "Number of readings in the current window",
		},
	)
	m.windowMeanGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beewatch_active_bees_window_mean",
			Help: "Mean active bee count over the trailing window",
		},
	)
	m.overallMeanGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beewatch_active_bees_mean",
			Help: "Mean active bee count over all fetched readings",
		},
	)
	m.noiseGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beewatch_noise_db",
			Help: "Latest hive noise level in dB",
		},
	)
	m.alertActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beewatch_alert_active",
			Help: "Whether an alert condition currently holds (1) or not (0)",
		},
		[]string{"kind"}, // activity, noise, combined
	)
	m.alertTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beewatch_alert_transitions_total",
			Help: "Total number of combined alert transitions",
		},
		[]string{"kind"},
	)
	m.predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beewatch_predictions_total",
			Help: "Total number of prediction requests",
		},
		[]string{"source", "status"},
	)
	m.deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beewatch_alert_deliveries_total",
			Help: "Total number of alert event deliveries per sink",
		},
		[]string{"sink", "status"},
	)
	m.deliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beewatch_alert_delivery_duration_seconds",
			Help:    "Time taken to deliver an alert event",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"sink"},
	)
}

// Describe implements the Collector interface
func (m *DashboardMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.pollsTotal.Describe(ch)
	m.pollDuration.Describe(ch)
	m.staleDropped.Describe(ch)
	m.readingsGauge.Describe(ch)
	m.windowMeanGauge.Describe(ch)
	m.overallMeanGauge.Describe(ch)
	m.noiseGauge.Describe(ch)
	m.alertActive.Describe(ch)
	m.alertTransitions.Describe(ch)
	m.predictionsTotal.Describe(ch)
	m.deliveriesTotal.Describe(ch)
	m.deliveryDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *DashboardMetrics) Collect(ch chan<- prometheus.Metric) {
	m.pollsTotal.Collect(ch)
	m.pollDuration.Collect(ch)
	m.staleDropped.Collect(ch)
	m.readingsGauge.Collect(ch)
	m.windowMeanGauge.Collect(ch)
	m.overallMeanGauge.Collect(ch)
	m.noiseGauge.Collect(ch)
	m.alertActive.Collect(ch)
	m.alertTransitions.Collect(ch)
	m.predictionsTotal.Collect(ch)
	m.deliveriesTotal.Collect(ch)
	m.deliveryDuration.Collect(ch)
}

// RecordPoll records a completed poll
func (m *DashboardMetrics) RecordPoll(err error, d time.Duration) {
	m.pollsTotal.WithLabelValues(status(err)).Inc()
	m.pollDuration.Observe(d.Seconds())
}

// RecordStaleDropped adds n discarded poll results
func (m *DashboardMetrics) RecordStaleDropped(n uint64) {
	if n > 0 {
		m.staleDropped.Add(float64(n))
	}
}

// RecordSnapshot updates the gauges for a new snapshot and alert state
func (m *DashboardMetrics) RecordSnapshot(s metrics.Snapshot, st alert.State) {
	m.readingsGauge.Set(float64(s.Total))
	m.windowMeanGauge.Set(s.WindowMean)
	m.overallMeanGauge.Set(s.OverallMean)
	if s.LatestNoise != nil {
		m.noiseGauge.Set(*s.LatestNoise)
	}
	m.alertActive.WithLabelValues("activity").Set(boolValue(st.ActivityAlert))
	m.alertActive.WithLabelValues("noise").Set(boolValue(st.NoiseAlert))
	m.alertActive.WithLabelValues("combined").Set(boolValue(st.Combined))
}

// RecordTransition counts a combined alert edge
func (m *DashboardMetrics) RecordTransition(kind string) {
	m.alertTransitions.WithLabelValues(kind).Inc()
}

// RecordPrediction counts a prediction request
func (m *DashboardMetrics) RecordPrediction(source string, ok bool) {
	st := statusSuccess
	if !ok {
		st = statusError
	}
	m.predictionsTotal.WithLabelValues(source, st).Inc()
}

// ObserveDelivery implements alert.DeliveryObserver
func (m *DashboardMetrics) ObserveDelivery(sink string, err error, d time.Duration) {
	m.deliveriesTotal.WithLabelValues(sink, status(err)).Inc()
	m.deliveryDuration.WithLabelValues(sink).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
