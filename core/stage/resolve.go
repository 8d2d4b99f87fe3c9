package stage

import "time"

type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Resolution is what a timeline looks like at a given reference time.
type Resolution struct {
	Current  *Stage            // nil only for an empty timeline
	Statuses map[string]Status // by stage key
}

// StatusAt classifies `s` at `ref`: the start bound is inclusive, the end bound exclusive.
func StatusAt(s Stage, ref time.Time) Status {
	if ref.Before(s.StartAt) {
		return StatusUpcoming
	}
	if s.EndAt != nil && !ref.Before(*s.EndAt) {
		return StatusCompleted
	}
	return StatusActive
}

// Resolve finds the current stage of the canonical timeline `tl` at `ref`: the last stage that has started.
// Before the first stage starts, the first stage is still the current one (with an upcoming status).
// The timeline is not modified.
func Resolve(tl Timeline, ref time.Time) Resolution {
	res := Resolution{Statuses: make(map[string]Status, len(tl.Stages))}
	if tl.IsEmpty() {
		return res
	}

	current := 0
	for i, s := range tl.Stages {
		res.Statuses[s.Key] = StatusAt(s, ref)
		if !ref.Before(s.StartAt) {
			current = i
		}
	}
	cur := tl.Stages[current]
	res.Current = &cur
	return res
}
