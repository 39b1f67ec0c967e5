package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	emergenciesTotal    *prometheus.CounterVec
	assignmentsTotal    *prometheus.CounterVec
	responseSeconds     prometheus.Histogram
	outcomesTotal       *prometheus.CounterVec
	availableAmbulances prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Histogram, *prometheus.CounterVec, prometheus.Gauge) {
	em := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emergencies_total",
			Help: "Number of emergency alerts triggered",
		},
		[]string{"priority", "alert_type"},
	)
	asn := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_assignments_total",
			Help: "Number of allocation attempts by outcome",
		},
		[]string{"outcome"},
	)
	resp := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_response_seconds",
			Help:    "Time between acknowledgement and arrival on scene",
			Buckets: []float64{60, 120, 300, 600, 900, 1800, 3600},
		},
	)
	out := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emergencies_closed_total",
			Help: "Number of emergencies reaching a terminal state",
		},
		[]string{"outcome"},
	)
	avail := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ambulances_available",
			Help: "Number of dispatchable ambulances",
		},
	)
	return em, asn, resp, out, avail
}

func init() {
	emergenciesTotal, assignmentsTotal, responseSeconds, outcomesTotal, availableAmbulances = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(emergenciesTotal, assignmentsTotal, responseSeconds, outcomesTotal, availableAmbulances)
}

// ResetMetrics replaces the collectors with fresh instances so tests start
// from zeroed counters. The replacements are not re-registered; use
// MustRegisterMetrics when a registry should scrape them.
func ResetMetrics() {
	emergenciesTotal, assignmentsTotal, responseSeconds, outcomesTotal, availableAmbulances = newCollectors()
}
