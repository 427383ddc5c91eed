package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the signal pipeline and job instruments.
type Recorder struct {
	runs         *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	lastSignal   *prometheus.GaugeVec
	stageLatency *prometheus.HistogramVec
	skipped      *prometheus.CounterVec
	published    *prometheus.CounterVec
}

// New registers the instruments on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdroid_signal_runs_total",
				Help: "Pipeline runs by coin and outcome (ok, fallback or cancelled)",
			},
			[]string{"coin", "outcome"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdroid_signal_fallbacks_total",
				Help: "Runs converted to the fallback signal, by error kind",
			},
			[]string{"coin", "kind"},
		),
		lastSignal: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "newsdroid_signal_last_value",
				Help: "Numeric value of the latest signal per coin",
			},
			[]string{"coin"},
		),
		stageLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newsdroid_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		skipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdroid_job_ticks_skipped_total",
				Help: "Ticks skipped because the previous run for the coin was still in flight",
			},
			[]string{"coin"},
		),
		published: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdroid_publish_total",
				Help: "Report hand-offs by publisher and result",
			},
			[]string{"publisher", "result"},
		),
	}
}

func (r *Recorder) RecordRun(coin, outcome string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(coin, outcome).Inc()
}

func (r *Recorder) RecordFallback(coin, kind string) {
	if r == nil {
		return
	}
	r.fallbacks.WithLabelValues(coin, kind).Inc()
}

func (r *Recorder) RecordSignal(coin string, value float64) {
	if r == nil {
		return
	}
	r.lastSignal.WithLabelValues(coin).Set(value)
}

// RecordLatency records stage latency in seconds.
func (r *Recorder) RecordLatency(stage string, seconds float64) {
	if r == nil {
		return
	}
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

func (r *Recorder) RecordSkipped(coin string) {
	if r == nil {
		return
	}
	r.skipped.WithLabelValues(coin).Inc()
}

func (r *Recorder) RecordPublish(publisher string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.published.WithLabelValues(publisher, result).Inc()
}
