// Package timewindow holds pure helpers for parsing times of day and
// reasoning about half-open time ranges.
package timewindow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
)

var timeOfDayPattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(am|pm)?$`)

// ParseTimeOfDay turns "2:30pm", "14:30", "2pm", "14" or "now" into a time on
// reference's date and in its location.
func ParseTimeOfDay(text string, reference time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ".", "")
	if s == "now" {
		return reference, nil
	}

	m := timeOfDayPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: unrecognised time %q", domain.ErrInvalidRequest, text)
	}

	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return time.Time{}, fmt.Errorf("%w: minute out of range in %q", domain.ErrInvalidRequest, text)
	}

	switch m[3] {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return time.Time{}, fmt.Errorf("%w: hour out of range in %q", domain.ErrInvalidRequest, text)
		}
		if hour == 12 {
			hour = 0
		}
		if m[3] == "pm" {
			hour += 12
		}
	default:
		if hour > 23 {
			return time.Time{}, fmt.Errorf("%w: hour out of range in %q", domain.ErrInvalidRequest, text)
		}
	}

	return On(reference, hour, minute), nil
}

// Format renders t as 24-hour "15:04".
func Format(t time.Time) string {
	return t.Format("15:04")
}

// FormatClock renders t as "3:04pm".
func FormatClock(t time.Time) string {
	return t.Format("3:04pm")
}

// FormatRange renders "09:30–09:45".
func FormatRange(start, end time.Time) string {
	return Format(start) + "–" + Format(end)
}

// On returns hour:minute on date's calendar day in date's location.
func On(date time.Time, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return On(t, 0, 0)
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// Window is the half-open range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Minutes returns the window length in whole minutes.
func (w Window) Minutes() int {
	return MinutesBetween(w.Start, w.End)
}

// Contains reports whether t lies inside the window.
func (w Window) Contains(t time.Time) bool {
	ms := millis(t)
	return millis(w.Start) <= ms && ms < millis(w.End)
}

// Covers reports whether other lies entirely inside w.
func (w Window) Covers(other Window) bool {
	return millis(w.Start) <= millis(other.Start) && millis(other.End) <= millis(w.End)
}

// Overlaps reports whether the two half-open windows share any instant.
func Overlaps(a, b Window) bool {
	return millis(a.Start) < millis(b.End) && millis(b.Start) < millis(a.End)
}

// Gap returns the free time between a and b, whichever comes first.
// The result is negative when they overlap.
func Gap(a, b Window) time.Duration {
	if millis(b.Start) < millis(a.Start) {
		a, b = b, a
	}
	return time.Duration(millis(b.Start)-millis(a.End)) * time.Millisecond
}

// MinutesBetween returns whole minutes from a to b, truncated toward zero.
func MinutesBetween(a, b time.Time) int {
	return int((millis(b) - millis(a)) / int64(time.Minute/time.Millisecond))
}

// Max returns the later of a and b.
func Max(a, b time.Time) time.Time {
	if millis(a) >= millis(b) {
		return a
	}
	return b
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
