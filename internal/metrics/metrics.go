// Package metrics provides Prometheus metrics for a prediction run.
//
// The driver is a short-lived command, so metrics live in a private registry
// and are written once at exit in the node exporter textfile format instead
// of being served over HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of one prediction run.
type Metrics struct {
	registry *prometheus.Registry

	Predictions    prometheus.Counter     // Labels emitted
	InputRows      prometheus.Counter     // Rows read from index files or text input
	InputSources   prometheus.Counter     // Index files, text files or stdin consumed
	Scores         *prometheus.CounterVec // Score rows emitted, by scoring method
	Errors         prometheus.Counter     // Failed runs
	PredictLatency prometheus.Histogram   // Duration of pipeline predict calls
	ModelLoad      prometheus.Gauge       // Seconds spent loading the pipeline
}

// New creates metrics in a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates and registers metrics with registry.
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "classy_predictions_total",
			Help: "Total number of labels predicted",
		}),
		InputRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "classy_input_rows_total",
			Help: "Total number of input rows read",
		}),
		InputSources: factory.NewCounter(prometheus.CounterOpts{
			Name: "classy_input_sources_total",
			Help: "Total number of input files or streams consumed",
		}),
		Scores: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classy_scores_total",
			Help: "Total number of score rows emitted, by scoring method",
		}, []string{"method"}),
		Errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "classy_errors_total",
			Help: "Total number of failed prediction runs",
		}),
		PredictLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "classy_predict_latency_seconds",
			Help:    "Pipeline predict call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		ModelLoad: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classy_model_load_seconds",
			Help: "Time spent loading the pipeline in seconds",
		}),
	}
}

// Registry exposes the underlying registry, for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is written to a temporary name and renamed into place.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
