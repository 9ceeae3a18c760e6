package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OldStager01/leakwatch/internal/resilience"
)

const namespace = "leakwatch"

// Metrics owns the collectors of one process. Tests build their own with
// New; the service uses the shared instance from Get.
type Metrics struct {
	registry *prometheus.Registry

	readingsTotal       *prometheus.CounterVec
	sourceErrors        *prometheus.CounterVec
	leaksDetected       *prometheus.CounterVec
	alertsTotal         *prometheus.CounterVec
	alertDeliveryErrors *prometheus.CounterVec
	feedbackTotal       *prometheus.CounterVec
	modelReloads        *prometheus.CounterVec
	leakProbability     *prometheus.GaugeVec
	baselineScore       *prometheus.GaugeVec
	calibrationProgress *prometheus.GaugeVec
	threshold           *prometheus.GaugeVec
	circuitBreakerState *prometheus.GaugeVec
	cycleDuration       *prometheus.HistogramVec
	inferenceDuration   *prometheus.HistogramVec
}

var (
	instance *Metrics
	once     sync.Once
)

func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Sensor readings ingested.",
		}, []string{"installation_id"}),
		sourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Failed reading fetches.",
		}, []string{"installation_id"}),
		leaksDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaks_detected_total",
			Help:      "Series flagged as leaks.",
		}, []string{"installation_id", "method"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts raised by level.",
		}, []string{"installation_id", "level"}),
		alertDeliveryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_delivery_errors_total",
			Help:      "Alerts that could not be delivered upstream.",
		}, []string{"installation_id"}),
		feedbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_total",
			Help:      "User feedback records by verdict.",
		}, []string{"installation_id", "correct"}),
		modelReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_reloads_total",
			Help:      "Model bundle reloads by result.",
		}, []string{"result"}),
		leakProbability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "leak_probability",
			Help:      "Last fused leak probability.",
		}, []string{"installation_id"}),
		baselineScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "baseline_anomaly_score",
			Help:      "Last baseline anomaly score.",
		}, []string{"installation_id"}),
		calibrationProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "baseline_calibration_progress_percent",
			Help:      "Baseline calibration progress.",
		}, []string{"installation_id"}),
		threshold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "detection_threshold",
			Help:      "Current adaptive detection threshold.",
		}, []string{"installation_id"}),
		circuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "monitor_cycle_duration_seconds",
			Help:      "Duration of one monitoring cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"installation_id"}),
		inferenceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Duration of scoring operations.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"operation"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.readingsTotal,
		m.sourceErrors,
		m.leaksDetected,
		m.alertsTotal,
		m.alertDeliveryErrors,
		m.feedbackTotal,
		m.modelReloads,
		m.leakProbability,
		m.baselineScore,
		m.calibrationProgress,
		m.threshold,
		m.circuitBreakerState,
		m.cycleDuration,
		m.inferenceDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncReadings(installationID string) {
	m.readingsTotal.WithLabelValues(installationID).Inc()
}

func (m *Metrics) IncSourceErrors(installationID string) {
	m.sourceErrors.WithLabelValues(installationID).Inc()
}

// IncLeaks counts a detection; method is "model" or "rules".
func (m *Metrics) IncLeaks(installationID, method string) {
	m.leaksDetected.WithLabelValues(installationID, method).Inc()
}

func (m *Metrics) IncAlerts(installationID, level string) {
	m.alertsTotal.WithLabelValues(installationID, level).Inc()
}

func (m *Metrics) IncAlertDeliveryErrors(installationID string) {
	m.alertDeliveryErrors.WithLabelValues(installationID).Inc()
}

func (m *Metrics) IncFeedback(installationID string, correct bool) {
	label := "false"
	if correct {
		label = "true"
	}
	m.feedbackTotal.WithLabelValues(installationID, label).Inc()
}

func (m *Metrics) IncModelReload(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.modelReloads.WithLabelValues(result).Inc()
}

func (m *Metrics) SetLeakProbability(installationID string, p float64) {
	m.leakProbability.WithLabelValues(installationID).Set(p)
}

func (m *Metrics) SetBaselineScore(installationID string, score float64) {
	m.baselineScore.WithLabelValues(installationID).Set(score)
}

func (m *Metrics) SetCalibrationProgress(installationID string, percent int) {
	m.calibrationProgress.WithLabelValues(installationID).Set(float64(percent))
}

func (m *Metrics) SetThreshold(installationID string, v float64) {
	m.threshold.WithLabelValues(installationID).Set(v)
}

func (m *Metrics) SetCircuitBreakerState(name string, state resilience.State) {
	m.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) ObserveCycle(installationID string, d time.Duration) {
	m.cycleDuration.WithLabelValues(installationID).Observe(d.Seconds())
}

func (m *Metrics) ObserveInference(operation string, d time.Duration) {
	m.inferenceDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
