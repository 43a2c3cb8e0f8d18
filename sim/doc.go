// Package sim provides the discrete-event kernel and the randomness plumbing
// shared by every patient-level simulation.
//
// # Reading Guide
//
// Start with these files:
//   - event.go: the Event contract and the stable EventID handle
//   - kernel.go: the event loop, scheduling and idempotent cancellation
//   - crn.go: the common-random-number cache reused across arms of a replication
//   - rng.go: per-replication keys and partitioned RNG streams
//
// # Architecture
//
// The kernel knows nothing about patients. Domain packages build on it:
//   - sim/disease/: the model context (complications, stages, acute events, interventions)
//   - sim/patient/: the per-patient competing-risk state machine
//   - sim/population/: profile sampling and initial stages
//   - sim/risk/: per-replication parameter draws and time-to-event computations
//   - sim/arm/: one cohort under one intervention, fresh or cloned
//   - sim/experiment/: replication orchestration across worker goroutines
//   - sim/listener/: per-arm collectors and thread-safe aggregates
//   - sim/trace/: optional patient event trace
//   - sim/metrics/: Prometheus instrumentation
package sim
