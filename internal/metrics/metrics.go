package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type Metrics struct {
	StageRuns        *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	PipelineRuns     *prometheus.CounterVec
	Predictions      *prometheus.CounterVec
	PredictionTiming prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		StageRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hardhat_stage_runs_total",
				Help: "Number of pipeline stage executions",
			},
			[]string{"stage", "status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hardhat_stage_duration_seconds",
				Help:    "Duration of pipeline stage executions",
				Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
			},
			[]string{"stage"},
		),
		PipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hardhat_pipeline_runs_total",
				Help: "Number of pipeline runs",
			},
			[]string{"status"},
		),
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hardhat_predictions_total",
				Help: "Number of detection requests",
			},
			[]string{"status"},
		),
		PredictionTiming: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "hardhat_prediction_duration_seconds",
				Help: "Duration of detection requests",
			},
		),
		gatherer: reg,
	}

	reg.MustRegister(m.StageRuns, m.StageDuration, m.PipelineRuns, m.Predictions, m.PredictionTiming)
	return m
}

// NewNop returns collectors registered with a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	m.StageRuns.WithLabelValues(stage, status(err)).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ObservePipeline(err error) {
	m.PipelineRuns.WithLabelValues(status(err)).Inc()
}

func (m *Metrics) ObservePrediction(d time.Duration, err error) {
	m.Predictions.WithLabelValues(status(err)).Inc()
	m.PredictionTiming.Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
