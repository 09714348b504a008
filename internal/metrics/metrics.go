// Package metrics exposes optimizer activity as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agentctx"

// Recorder holds the optimizer collectors.
type Recorder struct {
	FragmentsIndexed  *prometheus.CounterVec
	SourceErrors      *prometheus.CounterVec
	FragmentsSelected *prometheus.CounterVec
	TokensSelected    *prometheus.CounterVec
	FragmentsExcluded prometheus.Counter
	Runs              prometheus.Counter
	BudgetUtilization prometheus.Histogram
	Duration          prometheus.Histogram
}

// NewRecorder creates the collectors and registers them on reg
// (prometheus.DefaultRegisterer when nil). It panics on duplicate
// registration.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		FragmentsIndexed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fragments_indexed_total",
				Help:      "Fragments produced by indexing, by source",
			},
			[]string{"source"}, // "style_guide" / "templates" / "source"
		),
		SourceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_errors_total",
				Help:      "Sources that failed to index and contributed no fragments",
			},
			[]string{"source"},
		),
		FragmentsSelected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fragments_selected_total",
				Help:      "Fragments selected into prompts, by category",
			},
			[]string{"category"},
		),
		TokensSelected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_selected_total",
				Help:      "Estimated tokens of selected fragments, by category",
			},
			[]string{"category"},
		),
		FragmentsExcluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_excluded_total",
			Help:      "Scored fragments left out of prompts",
		}),
		Runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimize_runs_total",
			Help:      "Completed prompt optimizations",
		}),
		BudgetUtilization: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "budget_utilization_percent",
			Help:      "Share of the token budget used per optimization",
			Buckets:   []float64{10, 25, 50, 75, 90, 100},
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimize_duration_seconds",
			Help:      "Prompt optimization duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
	reg.MustRegister(
		r.FragmentsIndexed,
		r.SourceErrors,
		r.FragmentsSelected,
		r.TokensSelected,
		r.FragmentsExcluded,
		r.Runs,
		r.BudgetUtilization,
		r.Duration,
	)
	return r
}

// ObserveIndexed counts n fragments produced from source.
func (r *Recorder) ObserveIndexed(source string, n int) {
	r.FragmentsIndexed.WithLabelValues(source).Add(float64(n))
}

// ObserveSourceError counts a source that failed to index.
func (r *Recorder) ObserveSourceError(source string) {
	r.SourceErrors.WithLabelValues(source).Inc()
}

// ObserveSelection counts the fragments and tokens selected from one category.
func (r *Recorder) ObserveSelection(category string, selected, tokens int) {
	r.FragmentsSelected.WithLabelValues(category).Add(float64(selected))
	r.TokensSelected.WithLabelValues(category).Add(float64(tokens))
}

// ObserveRun records one completed optimization.
func (r *Recorder) ObserveRun(excluded int, utilization float64, elapsed time.Duration) {
	r.Runs.Inc()
	r.FragmentsExcluded.Add(float64(excluded))
	r.BudgetUtilization.Observe(utilization)
	r.Duration.Observe(elapsed.Seconds())
}
