package stage

import "fmt"

// InvalidTimelineInputError is returned when a stage's start time cannot be parsed and no fallback is usable.
type InvalidTimelineInputError struct {
	Index int // position in the raw input; -1 for a synthesized system stage
	Key   string
	Value string
}

func (e *InvalidTimelineInputError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid timeline input: no start time for stage %q", e.Key)
	}
	if e.Value == "" {
		return fmt.Sprintf("invalid timeline input: stage #%d (%q) has no start time", e.Index+1, e.Key)
	}
	return fmt.Sprintf("invalid timeline input: stage #%d (%q) has an invalid start time %q", e.Index+1, e.Key, e.Value)
}

// OrderingViolationError is returned by Validate when the submitted stages are not acceptable as-is.
type OrderingViolationError struct {
	Index  int
	Key    string
	Name   string
	Reason string
}

func (e *OrderingViolationError) Error() string {
	label := e.Name
	if label == "" {
		label = e.Key
	}
	if label == "" {
		return fmt.Sprintf("stage #%d: %s", e.Index+1, e.Reason)
	}
	return fmt.Sprintf("stage %q: %s", label, e.Reason)
}
