// Package metrics provides Prometheus metrics for the assembly engine
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const OutcomeCommitted = "committed"

var (
	AssembliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assembly_requests_total",
			Help: "Assembly requests by aircraft type and outcome (committed or error code)",
		},
		[]string{"aircraft_type", "outcome"},
	)

	AssemblyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assembly_request_duration_seconds",
			Help:    "Time taken to validate and commit an assembly request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"aircraft_type"},
	)

	PartsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assembly_parts_created_total",
			Help: "Total number of parts produced",
		},
		[]string{"aircraft_type", "part_type"},
	)

	PartsRecycledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assembly_parts_recycled_total",
			Help: "Total number of available parts recycled",
		},
		[]string{"aircraft_type", "part_type"},
	)

	AvailabilityChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assembly_availability_checks_total",
			Help: "Availability reports served",
		},
		[]string{"aircraft_type", "can_assemble"},
	)
)

func ObserveAssembly(aircraftType, outcome string, d time.Duration) {
	AssembliesTotal.WithLabelValues(aircraftType, outcome).Inc()
	AssemblyDuration.WithLabelValues(aircraftType).Observe(d.Seconds())
}

func ObserveAvailability(aircraftType string, canAssemble bool) {
	AvailabilityChecksTotal.WithLabelValues(aircraftType, strconv.FormatBool(canAssemble)).Inc()
}
