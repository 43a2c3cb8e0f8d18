// Package metrics exports Prometheus metrics for experiment monitoring:
//   - sighos_patient_events_total: Counter with kind label
//   - sighos_replications_total: Counter with status label (ok, failed)
//   - sighos_replication_duration_seconds: Histogram of wall-clock time per replication
//   - sighos_replications_in_flight: Gauge for replications being simulated
//
// All metrics are registered with the Prometheus default registry during
// package initialization. Experiments are batch jobs, so the registry is
// written to a node-exporter textfile instead of being scraped.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ull-isaatc/sighos-sub008/sim/patient"
)

var (
	PatientEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sighos_patient_events_total",
			Help: "Total patient events executed",
		},
		[]string{"kind"},
	)

	ReplicationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sighos_replications_total",
			Help: "Total replications finished",
		},
		[]string{"status"},
	)

	ReplicationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sighos_replication_duration_seconds",
			Help:    "Wall-clock time to simulate every arm of a replication",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	ReplicationsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sighos_replications_in_flight",
			Help: "Replications currently being simulated",
		},
	)
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

func init() {
	prometheus.MustRegister(PatientEventsTotal)
	prometheus.MustRegister(ReplicationsTotal)
	prometheus.MustRegister(ReplicationDuration)
	prometheus.MustRegister(ReplicationsInFlight)
}

// WriteTextfile writes every registered metric to path in the text
// exposition format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// EventCounter counts the patient events of one arm locally and publishes
// them on Flush, keeping the shared counters off the event loop.
type EventCounter struct {
	counts map[patient.EventKind]int
}

// NewEventCounter creates an empty counter.
func NewEventCounter() *EventCounter {
	return &EventCounter{counts: make(map[patient.EventKind]int)}
}

// OnPatientEvent implements patient.Observer.
func (c *EventCounter) OnPatientEvent(ev patient.EventInfo) {
	c.counts[ev.Kind]++
}

// Flush adds the local counts to PatientEventsTotal and clears them.
func (c *EventCounter) Flush() {
	for kind, n := range c.counts {
		PatientEventsTotal.WithLabelValues(kind.String()).Add(float64(n))
	}
	clear(c.counts)
}
