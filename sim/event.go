package sim

import "math"

// Never is the timestamp of an event that will not happen.
const Never int64 = math.MaxInt64

// EventID is the stable handle the Kernel returns for a scheduled event.
// Handles are assigned in scheduling order and are never reused within a Kernel.
type EventID uint64

// NoEvent is the zero handle; it never identifies a scheduled event.
const NoEvent EventID = 0

// Event defines the interface for all simulation events.
// Each event must have a Timestamp (in ticks), a type Priority used to break
// timestamp ties, and an Execute method that advances simulation state.
type Event interface {
	Timestamp() int64
	Priority() int
	Execute(*Kernel) error
}

// queuedEvent is the kernel's arena entry for a scheduled event.
type queuedEvent struct {
	event Event
	id    EventID
	index int // position in the heap, maintained by eventQueue.Swap
}
