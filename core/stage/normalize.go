package stage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Normalizer builds canonical timelines. The zero value is ready to use.
type Normalizer struct {
	// NewKey synthesizes a key for a user stage submitted without one (or with a duplicate one).
	// Defaults to NewStageKey.
	NewKey func() string
}

// NewStageKey returns a fresh user stage key, eg. "stage_kxyz12ab_1f2e3d4c".
func NewStageKey() string {
	ms := time.Now().UnixNano() / int64(time.Millisecond)
	token := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return "stage_" + strconv.FormatInt(ms, 36) + "_" + token
}

var defaultNormalizer Normalizer

// Normalize builds the canonical timeline of `raw` using the default Normalizer.
func Normalize(raw []Input, fb Fallbacks) (Timeline, error) {
	return defaultNormalizer.Normalize(raw, fb)
}

// canonicalTime drops the monotonic clock reading and the location of `t`.
func canonicalTime(t time.Time) time.Time {
	return t.Round(0).UTC()
}

func (n Normalizer) newKey(seen map[string]bool) string {
	gen := n.NewKey
	if gen == nil {
		gen = NewStageKey
	}
	for {
		if key := gen(); key != "" && !seen[key] && !IsSystemKey(key) {
			return key
		}
	}
}

// suppliedKeys returns the keys given explicitly in `raw`.
func suppliedKeys(raw []Input) map[string]bool {
	keys := make(map[string]bool, len(raw))
	for _, in := range raw {
		if key := strings.TrimSpace(in.Key); key != "" {
			keys[key] = true
		}
	}
	return keys
}

// resolveKey picks the key of the raw stage `in`. Duplicates are re-keyed rather than rejected.
// A keyless stage named after a system stage only takes its key if no stage supplies that key.
func (n Normalizer) resolveKey(in Input, seen, supplied map[string]bool) string {
	key := strings.TrimSpace(in.Key)
	if key == "" {
		if sysKey, ok := systemKeyByName(in.Name); ok && !seen[sysKey] && !supplied[sysKey] {
			return sysKey
		}
		return n.newKey(seen)
	}
	if seen[key] {
		return n.newKey(seen)
	}
	return key
}

// Normalize builds the canonical timeline of `raw`:
//  - every stage gets a unique key; the 3 system stages are always present (synthesized from `fb` if missing)
//  - stages are stable-sorted by start time, `Order` is the rank and `EndAt` the next stage's start
//  - StartDate & EndDate are the kickoff & closing start times
//
// It fails with an *InvalidTimelineInputError if a start time can neither be parsed nor taken from `fb`.
func (n Normalizer) Normalize(raw []Input, fb Fallbacks) (Timeline, error) {
	seen := make(map[string]bool, len(raw)+len(SystemKeys))
	stages := make([]Stage, 0, len(raw)+len(SystemKeys))
	supplied := suppliedKeys(raw)
	var userCount int

	for i, in := range raw {
		key := n.resolveKey(in, seen, supplied)
		seen[key] = true

		startAt, ok := ParseTime(in.StartAt)
		if !ok {
			startAt = fb.For(key)
		}
		if startAt.IsZero() {
			return Timeline{}, &InvalidTimelineInputError{Index: i, Key: key, Value: in.StartAt}
		}

		s := Stage{Key: key, StartAt: canonicalTime(startAt)}
		if IsSystemKey(key) {
			s.Name = systemNames[key]
			s.Description = systemDescriptions[key]
			s.IsSystemDefault = true
		} else {
			userCount++
			s.Name = strings.TrimSpace(in.Name)
			if s.Name == "" {
				s.Name = fmt.Sprintf("Stage %d", userCount)
			}
			s.Description = strings.TrimSpace(in.Description)
			s.AllowEdit = true
		}
		stages = append(stages, s)
	}

	for _, key := range SystemKeys {
		if seen[key] {
			continue
		}
		startAt := fb.For(key)
		if startAt.IsZero() {
			return Timeline{}, &InvalidTimelineInputError{Index: -1, Key: key}
		}
		seen[key] = true
		stages = append(stages, Stage{
			Key:             key,
			Name:            systemNames[key],
			Description:     systemDescriptions[key],
			StartAt:         canonicalTime(startAt),
			IsSystemDefault: true,
		})
	}

	return link(stages), nil
}

// link sorts `stages` in place and derives Order, EndAt and the timeline boundaries.
func link(stages []Stage) Timeline {
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].StartAt.Before(stages[j].StartAt) })

	tl := Timeline{Stages: stages}
	for i := range stages {
		stages[i].Order = i
		stages[i].EndAt = nil
		if i+1 < len(stages) {
			end := stages[i+1].StartAt
			stages[i].EndAt = &end
		}
	}
	if len(stages) == 0 {
		return tl
	}

	tl.StartDate = stages[0].StartAt
	tl.EndDate = stages[len(stages)-1].StartAt
	if s, ok := tl.Find(KeyKickoff); ok {
		tl.StartDate = s.StartAt
	}
	if s, ok := tl.Find(KeyClosing); ok {
		tl.EndDate = s.StartAt
	}
	return tl
}
