package sim

import (
	"container/heap"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Kernel is the discrete-event core: it holds simulation time and the event
// queue, and executes events one at a time in timestamp order.
//
// Events at the same timestamp execute by type priority, then in the order
// they were scheduled. Cancelling an event that already fired or was already
// cancelled is a no-op.
type Kernel struct {
	Clock   int64
	Horizon int64

	queue       eventQueue
	byID        map[EventID]*queuedEvent
	nextEventID EventID
	executed    int64
}

// NewKernel creates a kernel that stops executing events past horizon.
func NewKernel(horizon int64) *Kernel {
	return &Kernel{
		Horizon: horizon,
		queue:   make(eventQueue, 0),
		byID:    make(map[EventID]*queuedEvent),
	}
}

// Now returns the current simulation time.
func (k *Kernel) Now() int64 {
	return k.Clock
}

// Schedule pushes ev into the queue and returns its handle.
// Scheduling into the past is a programming error and panics.
func (k *Kernel) Schedule(ev Event) EventID {
	if ev.Timestamp() < k.Clock {
		panic(fmt.Sprintf("event %T scheduled in the past: %d < %d", ev, ev.Timestamp(), k.Clock))
	}
	k.nextEventID++
	item := &queuedEvent{event: ev, id: k.nextEventID}
	heap.Push(&k.queue, item)
	k.byID[item.id] = item
	return item.id
}

// Cancel removes the event identified by id from the queue.
// Returns false if the event already fired, was already cancelled, or is unknown.
func (k *Kernel) Cancel(id EventID) bool {
	item, ok := k.byID[id]
	if !ok {
		return false
	}
	delete(k.byID, id)
	heap.Remove(&k.queue, item.index)
	return true
}

// IsPending reports whether the event identified by id is still queued.
func (k *Kernel) IsPending(id EventID) bool {
	_, ok := k.byID[id]
	return ok
}

// Pending returns the number of queued events.
func (k *Kernel) Pending() int {
	return len(k.queue)
}

// Executed returns the number of events executed so far.
func (k *Kernel) Executed() int64 {
	return k.executed
}

// Run executes events until the queue drains or the next event lies beyond
// the horizon. The first event error stops the run and is returned.
func (k *Kernel) Run() error {
	for len(k.queue) > 0 {
		if k.queue[0].event.Timestamp() > k.Horizon {
			break
		}
		item := heap.Pop(&k.queue).(*queuedEvent)
		delete(k.byID, item.id)

		ts := item.event.Timestamp()
		if ts < k.Clock {
			return fmt.Errorf("clock went backwards: %d < %d", ts, k.Clock)
		}
		k.Clock = ts
		logrus.Tracef("[tick %07d] Executing %T", k.Clock, item.event)

		k.executed++
		if err := item.event.Execute(k); err != nil {
			return fmt.Errorf("executing %T at tick %d: %w", item.event, k.Clock, err)
		}
	}
	logrus.Debugf("[tick %07d] Kernel drained, %d events executed, %d left beyond horizon", k.Clock, k.executed, len(k.queue))
	return nil
}
