// Package metrics exposes calculation counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the status label.
const (
	StatusOK          = "ok"
	StatusNoPriceData = "no_price_data"
	StatusFailed      = "failed"
)

// Metrics holds the collectors for pipeline runs. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	calculations *prometheus.CounterVec
	warnings     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	price        *prometheus.GaugeVec
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratesentinel",
			Name:      "calculations_total",
			Help:      "Pipeline calculations by outcome.",
		}, []string{"pipeline", "status"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratesentinel",
			Name:      "adjuster_warnings_total",
			Help:      "Soft warnings raised by adjusters.",
		}, []string{"pipeline"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ratesentinel",
			Name:      "calculation_duration_seconds",
			Help:      "Time spent in the calculation engine.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"pipeline"}),
		price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ratesentinel",
			Name:      "recommended_price",
			Help:      "Last successfully calculated price.",
		}, []string{"pipeline"}),
	}
	m.registry.MustRegister(m.calculations, m.warnings, m.duration, m.price)
	return m
}

// ObserveRun records one calculation. price is only used when status is StatusOK.
func (m *Metrics) ObserveRun(pipeline, status string, elapsed time.Duration, price float64, warnings int) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(pipeline, status).Inc()
	m.duration.WithLabelValues(pipeline).Observe(elapsed.Seconds())
	if warnings > 0 {
		m.warnings.WithLabelValues(pipeline).Add(float64(warnings))
	}
	if status == StatusOK {
		m.price.WithLabelValues(pipeline).Set(price)
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
