// Package metrics records reconciliation outcomes as prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeCreated        = "created"
	OutcomeMerged         = "merged"
	OutcomeFiltered       = "filtered"
	OutcomeMissingAddress = "missing_address"
	OutcomeInvalid        = "invalid"
	OutcomeFailed         = "failed"
)

// Recorder holds the collectors. A nil *Recorder records nothing.
type Recorder struct {
	observations *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	extractions  *prometheus.CounterVec
	registry     *prometheus.Registry
}

// New creates a Recorder registered on reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		registry: reg,
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civicmap",
			Name:      "observations_total",
			Help:      "Observations processed by the reconciler, by outcome",
		}, []string{"type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "civicmap",
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent reconciling one batch of observations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civicmap",
			Name:      "extraction_attempts_total",
			Help:      "Model extraction attempts, by result",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{r.observations, r.duration, r.extractions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observation counts one processed observation.
func (r *Recorder) Observation(typ, outcome string) {
	if r == nil {
		return
	}
	r.observations.WithLabelValues(typ, outcome).Inc()
}

// Batch records the duration of a reconciliation batch.
func (r *Recorder) Batch(typ string, d time.Duration) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(typ).Observe(d.Seconds())
}

// Extraction counts one model call attempt ("valid", "invalid" or "error").
func (r *Recorder) Extraction(result string) {
	if r == nil {
		return
	}
	r.extractions.WithLabelValues(result).Inc()
}

// WriteFile writes every registered metric to path in the text exposition
// format, for node_exporter's textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
