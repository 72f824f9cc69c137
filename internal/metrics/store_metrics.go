package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// StoreMetrics — метрики клиентского OrdersStore, реализует store.Recorder.
type StoreMetrics struct {
	started   *prometheus.CounterVec
	collapsed *prometheus.CounterVec
	finished  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  *prometheus.GaugeVec
}

// NewStoreMetrics регистрирует метрики в DefaultRegisterer.
func NewStoreMetrics() *StoreMetrics {
	return NewStoreMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStoreMetricsWithRegisterer регистрирует метрики в заданном registerer.
func NewStoreMetricsWithRegisterer(registerer prometheus.Registerer) *StoreMetrics {
	return &StoreMetrics{
		started: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "minicrm_store_requests_started_total",
			Help: "Requests sent to the orders gateway by operation kind",
		}, []string{"kind"}),
		collapsed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "minicrm_store_requests_collapsed_total",
			Help: "Triggers absorbed by an in-flight request of the same kind",
		}, []string{"kind"}),
		finished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "minicrm_store_requests_finished_total",
			Help: "Finished gateway requests by kind, outcome and error kind",
		}, []string{"kind", "outcome", "error_kind"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "minicrm_store_request_duration_seconds",
			Help:    "Duration of gateway requests issued by the store",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		inFlight: registerGaugeVec(registerer, prometheus.GaugeOpts{
			Name: "minicrm_store_requests_in_flight",
			Help: "Gateway requests currently in flight by kind",
		}, []string{"kind"}),
	}
}

func (m *StoreMetrics) ObserveStarted(kind string) {
	m.started.WithLabelValues(kind).Inc()
	m.inFlight.WithLabelValues(kind).Inc()
}

func (m *StoreMetrics) ObserveCollapsed(kind string) {
	m.collapsed.WithLabelValues(kind).Inc()
}

func (m *StoreMetrics) ObserveFinished(kind string, err error, duration time.Duration) {
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	m.finished.WithLabelValues(kind, outcome, string(domain.KindOf(err))).Inc()
	m.duration.WithLabelValues(kind).Observe(duration.Seconds())
	m.inFlight.WithLabelValues(kind).Dec()
}
