package task

// Tracker computes cumulative workflow progress from task weights.
//
// Each task owns a floor (the summed weights of every completed task)
// and a ceiling (floor + its own weight). While a task runs, each output
// event nudges progress toward — but never to — the ceiling. Completing
// a task forces progress to the ceiling; failing or skipping freezes it
// at the last observed value. Progress is non-decreasing and stays in
// [0, 100] for any event sequence.
type Tracker struct {
	weights   []float64
	completed []bool

	active  int
	events  int
	current float64
}

// NewTracker creates a tracker over the given resolved task weights.
// Weights are expected to sum to 100 (definition validation enforces it).
func NewTracker(weights []float64) *Tracker {
	return &Tracker{
		weights:   append([]float64(nil), weights...),
		completed: make([]bool, len(weights)),
		active:    -1,
	}
}

// floor is the summed weight of every completed task.
func (t *Tracker) floor() float64 {
	var sum float64
	for i, done := range t.completed {
		if done {
			sum += t.weights[i]
		}
	}
	return sum
}

// Start begins tracking task i. Resets the per-task event count.
func (t *Tracker) Start(i int) {
	t.active = i
	t.events = 0
}

// Observe records one output event from the active task and returns the
// updated progress: floor + weight * (1 - 1/(1+events)). The value
// approaches the ceiling asymptotically and never reaches it.
func (t *Tracker) Observe() float64 {
	if t.active < 0 {
		return t.current
	}
	t.events++

	floor := t.floor()
	weight := t.weights[t.active]
	candidate := floor + weight*(1-1/float64(1+t.events))

	// Clamp monotonic: a failed predecessor under the Continue policy
	// leaves its weight out of the floor, which could otherwise compute
	// a value below the frozen progress.
	if candidate > t.current {
		t.current = candidate
	}
	return t.current
}

// Complete marks the active task completed and forces progress to its
// ceiling.
func (t *Tracker) Complete() float64 {
	if t.active < 0 {
		return t.current
	}
	ceiling := t.floor() + t.weights[t.active]
	t.completed[t.active] = true
	if ceiling > t.current {
		t.current = ceiling
	}
	t.active = -1
	return t.current
}

// Freeze ends the active task without completing it (failed or skipped),
// leaving progress at its last observed value.
func (t *Tracker) Freeze() float64 {
	t.active = -1
	return t.current
}

// Current returns the current progress value.
func (t *Tracker) Current() float64 { return t.current }

// Restore rebuilds tracker state from checkpointed task statuses and the
// persisted progress value. Used on resume.
func (t *Tracker) Restore(statuses []Status, progress float64) {
	for i, s := range statuses {
		if i < len(t.completed) {
			t.completed[i] = s == StatusCompleted
		}
	}
	t.active = -1
	t.events = 0
	t.current = progress
}
