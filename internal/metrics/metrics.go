package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #region collectors
var (
	// samplesTotal counts telemetry samples accepted into an engine.
	// Labels: subject
	samplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "usage_sentry",
		Subsystem: "engine",
		Name:      "samples_total",
		Help:      "Telemetry samples processed",
	}, []string{"subject"})

	// feedbackTotal counts feedback events by gate decision.
	// Labels: subject, decision (commit, reject)
	feedbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "usage_sentry",
		Subsystem: "engine",
		Name:      "feedback_total",
		Help:      "Feedback events by gate decision",
	}, []string{"subject", "decision"})

	// driftResetsTotal counts model resets fired by the drift detector.
	// Labels: subject
	driftResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "usage_sentry",
		Subsystem: "engine",
		Name:      "drift_resets_total",
		Help:      "Drift-triggered model resets",
	}, []string{"subject"})

	// spcAlarmsTotal counts SPC control-limit breaches.
	// Labels: subject
	spcAlarmsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "usage_sentry",
		Subsystem: "engine",
		Name:      "spc_alarms_total",
		Help:      "SPC control limit breaches",
	}, []string{"subject"})

	// votesTotal counts fused votes by class.
	// Labels: subject, class (productive, neutral, overuse)
	votesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "usage_sentry",
		Subsystem: "engine",
		Name:      "votes_total",
		Help:      "Fused votes by class",
	}, []string{"subject", "class"})

	// splitsTotal counts tree node splits.
	// Labels: subject
	splitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "usage_sentry",
		Subsystem: "engine",
		Name:      "splits_total",
		Help:      "Streaming tree node splits",
	}, []string{"subject"})

	// rateLimitedTotal counts samples dropped by per-subject backpressure.
	// Labels: subject
	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "usage_sentry",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Samples dropped by the per-subject rate limiter",
	}, []string{"subject"})

	// weightTree and weightSPC expose the current vote weights.
	// Labels: subject
	weightTree = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "usage_sentry",
		Subsystem: "engine",
		Name:      "weight_tree",
		Help:      "Current tree vote weight",
	}, []string{"subject"})

	weightSPC = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "usage_sentry",
		Subsystem: "engine",
		Name:      "weight_spc",
		Help:      "Current SPC vote weight",
	}, []string{"subject"})

	// activeSubjects tracks engines resident in the registry.
	activeSubjects = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "usage_sentry",
		Subsystem: "http",
		Name:      "active_subjects",
		Help:      "Engines resident in the registry",
	})
)

// #endregion collectors

// #region recorders
// RecordSample counts one accepted telemetry sample.
func RecordSample(subject string) {
	samplesTotal.WithLabelValues(subject).Inc()
}

// RecordFeedback counts one feedback event with its gate decision.
func RecordFeedback(subject, decision string) {
	feedbackTotal.WithLabelValues(subject, decision).Inc()
}

// RecordDrift counts one drift-triggered model reset.
func RecordDrift(subject string) {
	driftResetsTotal.WithLabelValues(subject).Inc()
}

// RecordAlarm counts one SPC alarm.
func RecordAlarm(subject string) {
	spcAlarmsTotal.WithLabelValues(subject).Inc()
}

// RecordVote counts one fused vote.
func RecordVote(subject string, class int) {
	votesTotal.WithLabelValues(subject, className(class)).Inc()
}

// RecordSplits adds newly created splits.
func RecordSplits(subject string, n int) {
	if n > 0 {
		splitsTotal.WithLabelValues(subject).Add(float64(n))
	}
}

// RecordRateLimited counts one sample dropped by backpressure.
func RecordRateLimited(subject string) {
	rateLimitedTotal.WithLabelValues(subject).Inc()
}

// SetWeights publishes the current vote weights.
func SetWeights(subject string, tree, spc float64) {
	weightTree.WithLabelValues(subject).Set(tree)
	weightSPC.WithLabelValues(subject).Set(spc)
}

// SetActiveSubjects publishes the registry population.
func SetActiveSubjects(n int) {
	activeSubjects.Set(float64(n))
}

// className maps a class label to its metric label value.
func className(class int) string {
	switch class {
	case 0:
		return "productive"
	case 1:
		return "neutral"
	case 2:
		return "overuse"
	default:
		return strconv.Itoa(class)
	}
}

// #endregion recorders
