// Package stage schedules the stages of an activity: it turns user-authored stage drafts into a canonical,
// gap-free timeline and tells which stage is current at a given instant.
//
// Nothing in this package reads the wall clock: reference times and fallbacks are always passed in.
package stage

import (
	"strings"
	"time"
)

// System stage keys
const (
	KeyPreparation = "preparation"
	KeyKickoff     = "kickoff"
	KeyClosing     = "closing"
)

var (
	SystemKeys = []string{KeyPreparation, KeyKickoff, KeyClosing}

	systemNames = map[string]string{
		KeyPreparation: "Preparation",
		KeyKickoff:     "Kickoff",
		KeyClosing:     "Closing",
	}
	systemDescriptions = map[string]string{
		KeyPreparation: "The activity is being prepared.",
		KeyKickoff:     "The activity has started.",
		KeyClosing:     "The activity is over.",
	}
)

func IsSystemKey(key string) bool {
	_, ok := systemNames[key]
	return ok
}

// SystemName returns the fixed display name of a system stage.
func SystemName(key string) string {
	return systemNames[key]
}

// systemKeyByName maps a display name back to its system key (case-insensitive).
func systemKeyByName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for key, sysName := range systemNames {
		if strings.EqualFold(name, sysName) {
			return key, true
		}
	}
	return "", false
}

// Stage is one segment of an activity's lifecycle.
// EndAt and Order are derived by Normalize, never taken from input.
type Stage struct {
	Key             string     `json:"key"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	StartAt         time.Time  `json:"startAt"`
	EndAt           *time.Time `json:"endAt"`
	IsSystemDefault bool       `json:"isSystemDefault"`
	AllowEdit       bool       `json:"allowEdit"`
	Order           int        `json:"order"`
}

// Timeline is the canonical, time-ordered sequence of the stages of one activity.
type Timeline struct {
	Stages    []Stage   `json:"stages"`
	StartDate time.Time `json:"startDate"` // kickoff.StartAt
	EndDate   time.Time `json:"endDate"`   // closing.StartAt
}

func (tl Timeline) IsEmpty() bool {
	return len(tl.Stages) == 0
}

func (tl Timeline) Find(key string) (Stage, bool) {
	for _, s := range tl.Stages {
		if s.Key == key {
			return s, true
		}
	}
	return Stage{}, false
}

// Fallbacks returns the system stages' start times, to be reused when re-normalizing.
func (tl Timeline) Fallbacks() Fallbacks {
	var fb Fallbacks
	if s, ok := tl.Find(KeyPreparation); ok {
		fb.Preparation = s.StartAt
	}
	if s, ok := tl.Find(KeyKickoff); ok {
		fb.Kickoff = s.StartAt
	}
	if s, ok := tl.Find(KeyClosing); ok {
		fb.Closing = s.StartAt
	}
	return fb
}

// Inputs turns the timeline back into raw inputs, in canonical order.
func (tl Timeline) Inputs() []Input {
	inputs := make([]Input, 0, len(tl.Stages))
	for _, s := range tl.Stages {
		inputs = append(inputs, Input{
			Key:         s.Key,
			Name:        s.Name,
			Description: s.Description,
			StartAt:     FormatTime(s.StartAt),
		})
	}
	return inputs
}

// Input is a raw, partial stage as submitted by a client.
// IsSystemDefault and AllowEdit are accepted for compatibility but always recomputed from Key.
type Input struct {
	Key             string `json:"key,omitempty" validate:"omitempty,max=64,stagekey"`
	Name            string `json:"name,omitempty" validate:"max=80"`
	Description     string `json:"description,omitempty" validate:"max=1000"`
	StartAt         string `json:"startAt,omitempty"`
	IsSystemDefault *bool  `json:"isSystemDefault,omitempty"`
	AllowEdit       *bool  `json:"allowEdit,omitempty"`
}

// Fallbacks are the start times used for system stages missing from input and for unparseable timestamps.
// A zero time is unusable.
type Fallbacks struct {
	Preparation time.Time
	Kickoff     time.Time
	Closing     time.Time
}

// For returns the fallback applying to a stage key; user stages fall back to the kickoff time.
func (fb Fallbacks) For(key string) time.Time {
	switch key {
	case KeyPreparation:
		return fb.Preparation
	case KeyClosing:
		return fb.Closing
	default:
		return fb.Kickoff
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 timestamp. Zone-less values are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
