package stage

import (
	"strconv"
	"strings"
	"time"
)

type ValidateOptions struct {
	// AllowUnordered accepts stages submitted out of chronological order; Normalize sorts them anyway.
	AllowUnordered bool
}

// Validate checks raw stages the way they are checked before submission, and reports the first offending stage:
//  - user stages must have a valid start time; system stages may omit theirs and use `fb`
//  - unless allowed by `opts`, stages must be submitted in chronological order
//  - kickoff cannot start after closing
func Validate(raw []Input, fb Fallbacks, opts ValidateOptions) error {
	var (
		prev      time.Time
		prevIndex = -1
		seen      = make(map[string]bool, len(SystemKeys))
	)
	resolved := make(map[string]time.Time, len(SystemKeys))
	supplied := suppliedKeys(raw)

	for i, in := range raw {
		key := strings.TrimSpace(in.Key)
		if key == "" {
			if sysKey, ok := systemKeyByName(in.Name); ok && !seen[sysKey] && !supplied[sysKey] {
				key = sysKey
			}
		}
		isSystem := IsSystemKey(key) && !seen[key]
		if IsSystemKey(key) {
			seen[key] = true
		}

		startAt, ok := ParseTime(in.StartAt)
		switch {
		case ok:
		case strings.TrimSpace(in.StartAt) != "":
			return &OrderingViolationError{Index: i, Key: key, Name: in.Name, Reason: "invalid start time " + strconv.Quote(in.StartAt)}
		case isSystem && !fb.For(key).IsZero():
			startAt = fb.For(key)
		default:
			return &OrderingViolationError{Index: i, Key: key, Name: in.Name, Reason: "start time is required"}
		}

		if isSystem {
			resolved[key] = startAt
		}
		if !opts.AllowUnordered && prevIndex >= 0 && startAt.Before(prev) {
			return &OrderingViolationError{
				Index:  i,
				Key:    key,
				Name:   in.Name,
				Reason: "starts before the previous stage (" + stageLabel(raw[prevIndex]) + ")",
			}
		}
		prev, prevIndex = startAt, i
	}

	kickoff, ok := resolved[KeyKickoff]
	if !ok {
		kickoff = fb.Kickoff
	}
	closing, ok := resolved[KeyClosing]
	if !ok {
		closing = fb.Closing
	}
	if !kickoff.IsZero() && !closing.IsZero() && kickoff.After(closing) {
		return &OrderingViolationError{
			Index:  indexOfKey(raw, KeyKickoff),
			Key:    KeyKickoff,
			Name:   systemNames[KeyKickoff],
			Reason: "cannot start after closing",
		}
	}
	return nil
}

func stageLabel(in Input) string {
	if name := strings.TrimSpace(in.Name); name != "" {
		return name
	}
	if sysName, ok := systemNames[in.Key]; ok {
		return sysName
	}
	return in.Key
}

func indexOfKey(raw []Input, key string) int {
	for i, in := range raw {
		if strings.TrimSpace(in.Key) == key {
			return i
		}
	}
	return -1
}
