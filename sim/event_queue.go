package sim

// eventQueue implements heap.Interface with deterministic ordering.
// Order by: timestamp → type priority → event ID (scheduling order).
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-PriorityQueue
type eventQueue []*queuedEvent

func (eq eventQueue) Len() int { return len(eq) }

func (eq eventQueue) Less(i, j int) bool {
	ei, ej := eq[i], eq[j]
	if ti, tj := ei.event.Timestamp(), ej.event.Timestamp(); ti != tj {
		return ti < tj
	}
	if pi, pj := ei.event.Priority(), ej.event.Priority(); pi != pj {
		return pi < pj
	}
	return ei.id < ej.id
}

func (eq eventQueue) Swap(i, j int) {
	eq[i], eq[j] = eq[j], eq[i]
	eq[i].index = i
	eq[j].index = j
}

func (eq *eventQueue) Push(x any) {
	item := x.(*queuedEvent)
	item.index = len(*eq)
	*eq = append(*eq, item)
}

func (eq *eventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*eq = old[0 : n-1]
	return item
}
