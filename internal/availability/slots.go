// Package availability turns doctor schedules into concrete bookable slots.
//
// Dates are handled as wall-clock values in the clinic timezone encoded
// as UTC timestamps (a schedule on 2026-03-02 from 09:00 yields slots at
// 2026-03-02T09:00:00Z, 09:30Z, ...). Callers convert "now" with WallClock
// before comparing.
package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var ErrInvalidClock = errors.New("invalid time of day, use HH:MM")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// ParseClock parses "HH:MM" or "HH:MM:SS" (as returned by Postgres time
// columns) into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	layout := ClockLayout
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, nil
}

// FormatClock renders an offset from midnight as "HH:MM".
func FormatClock(offset time.Duration) string {
	return time.Time{}.Add(offset).Format(ClockLayout)
}

// NormalizeClock rewrites "09:00:00" as "09:00".
func NormalizeClock(s string) string {
	offset, err := ParseClock(s)
	if err != nil {
		return s
	}
	return FormatClock(offset)
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WallClock re-expresses an instant as the wall-clock time seen in loc,
// encoded in UTC so it can be compared with slot times.
func WallClock(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// At combines a calendar date with an "HH:MM" time of day.
func At(date time.Time, clock string) (time.Time, error) {
	offset, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(date).Add(offset), nil
}

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a booking of
// length duration would not overlap any of the busy intervals.
//
// Only slots starting after now are returned.
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if !t.After(now) {
			continue
		}
		candidate := Interval{Start: t, End: t.Add(duration)}
		if !overlapsAny(candidate, busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

// OnGrid reports whether start is one of the slot starts of the block
// [windowStart, windowEnd) cut into steps.
func OnGrid(windowStart, windowEnd time.Time, duration time.Duration, start time.Time) bool {
	if duration <= 0 || start.Before(windowStart) || start.Add(duration).After(windowEnd) {
		return false
	}
	return start.Sub(windowStart)%duration == 0
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
