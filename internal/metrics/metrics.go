package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	inspectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promptshield_inspections_total",
		Help: "Total number of prompts and responses inspected",
	}, []string{"kind"})
	blockedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promptshield_blocked_total",
		Help: "Total number of inspections blocked, by layer",
	}, []string{"layer"})
	classifierErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "promptshield_classifier_errors_total",
		Help: "Total number of classifier scoring failures",
	})
	cyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promptshield_evolution_cycles_total",
		Help: "Total number of evolution cycles, by outcome",
	}, []string{"outcome"})
	candidatesPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "promptshield_candidates_published_total",
		Help: "Total number of candidate rules appended to the pending queue",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		inspectionsTotal,
		blockedTotal,
		classifierErrorsTotal,
		cyclesTotal,
		candidatesPublishedTotal,
	)
}

// IncInspection increments the inspection counter for "prompt" or "response".
func IncInspection(kind string) { inspectionsTotal.WithLabelValues(kind).Inc() }

// IncBlocked increments the blocked counter for the given layer.
func IncBlocked(layer string) { blockedTotal.WithLabelValues(layer).Inc() }

// IncClassifierError increments the classifier failure counter.
func IncClassifierError() { classifierErrorsTotal.Inc() }

// IncCycle increments the evolution cycle counter for the given outcome.
func IncCycle(outcome string) { cyclesTotal.WithLabelValues(outcome).Inc() }

// IncCandidatePublished increments the published candidates counter.
func IncCandidatePublished() { candidatesPublishedTotal.Inc() }
