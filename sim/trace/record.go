// Package trace records patient events of one arm for offline analysis.
// Records are plain data and hold no references to patients or the model.
package trace

// EventRecord captures a single patient event.
type EventRecord struct {
	Patient int
	Clock   int64
	Kind    string
	Target  string // stage or acute complication; empty for start, effect_lost, death
	Cause   string // death cause; empty for other kinds
}
