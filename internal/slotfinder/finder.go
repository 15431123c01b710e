// Package slotfinder places an activity of a given length into a day of
// meetings without conflicts.
package slotfinder

import (
	"fmt"
	"sort"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/timewindow"
)

// Confidence values attached at generation time. They only rank candidates.
const (
	confidenceBetween     = 0.9
	confidenceBeforeFirst = 0.8
	confidenceAfterLast   = 0.7
	confidenceFreeDay     = 0.7
)

// Normalize fills defaults and rejects requests that cannot be computed.
func Normalize(req domain.ActivityRequest) (domain.ActivityRequest, error) {
	if req.DurationMinutes <= 0 {
		return req, fmt.Errorf("%w: duration must be positive, got %d", domain.ErrInvalidRequest, req.DurationMinutes)
	}
	if req.ActivityType == "" {
		req.ActivityType = domain.ActivityGeneral
	}
	if !req.ActivityType.Valid() {
		return req, fmt.Errorf("%w: unknown activity type %q", domain.ErrInvalidRequest, req.ActivityType)
	}
	if req.TimePreference == "" {
		req.TimePreference = domain.PreferAnytime
	}
	if !req.TimePreference.Valid() {
		return req, fmt.Errorf("%w: unknown time preference %q", domain.ErrInvalidRequest, req.TimePreference)
	}
	if req.Now.IsZero() || req.WorkStart.IsZero() || req.WorkEnd.IsZero() {
		return req, fmt.Errorf("%w: reference time and work window are required", domain.ErrInvalidRequest)
	}
	if !req.WorkEnd.After(req.WorkStart) {
		return req, fmt.Errorf("%w: work window ends before it starts", domain.ErrInvalidRequest)
	}
	return req, nil
}

// Find returns the open slots for req in chronological order. The first slot
// is the recommendation; an empty result means the day is packed.
func Find(meetings []domain.Meeting, req domain.ActivityRequest) ([]domain.TimeSlot, error) {
	req, err := Normalize(req)
	if err != nil {
		return nil, err
	}

	anchor := ceilMinute(timewindow.Max(req.Now, req.WorkStart))
	upcoming := upcomingMeetings(meetings, anchor)

	var candidates []domain.TimeSlot
	if len(upcoming) == 0 {
		if slot, ok := freeDaySlot(req, anchor); ok {
			candidates = append(candidates, slot)
		}
	} else {
		candidates = scanGaps(upcoming, req, anchor)
	}

	slots := candidates[:0]
	for _, slot := range candidates {
		if req.TimePreference.Allows(slot.Start) {
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

// upcomingMeetings copies, drops meetings already over at anchor and sorts by start.
func upcomingMeetings(meetings []domain.Meeting, anchor time.Time) []domain.Meeting {
	out := make([]domain.Meeting, 0, len(meetings))
	for _, m := range meetings {
		if m.EndTime.Before(m.StartTime) {
			continue
		}
		if m.EndTime.After(anchor) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// scanGaps walks the meetings once, always starting a candidate at the
// earliest free boundary. cursor is the latest end seen so far, so nested or
// overlapping meetings never produce a slot inside another meeting.
func scanGaps(meetings []domain.Meeting, req domain.ActivityRequest, anchor time.Time) []domain.TimeSlot {
	var (
		slots  []domain.TimeSlot
		cursor = anchor
		prev   *domain.Meeting
		d      = req.Duration()
	)

	for i := range meetings {
		m := meetings[i]
		if timewindow.MinutesBetween(cursor, m.StartTime) >= req.DurationMinutes {
			slot := domain.TimeSlot{
				Start:           cursor,
				End:             cursor.Add(d),
				DurationMinutes: req.DurationMinutes,
			}
			if prev == nil {
				slot.Kind = domain.SlotBeforeFirst
				slot.Description = fmt.Sprintf("Before %s", m.Title)
				slot.Confidence = confidenceBeforeFirst
				slot.Reasoning = fmt.Sprintf("%d free minutes before %s at %s",
					timewindow.MinutesBetween(cursor, m.StartTime), m.Title, timewindow.Format(m.StartTime))
			} else {
				slot.Kind = domain.SlotBetween
				slot.Description = fmt.Sprintf("Between %s and %s", prev.Title, m.Title)
				slot.Confidence = confidenceBetween
				slot.Reasoning = fmt.Sprintf("%d-minute gap after %s ends at %s",
					timewindow.MinutesBetween(cursor, m.StartTime), prev.Title, timewindow.Format(cursor))
			}
			if fitsWorkWindow(slot, req) {
				slots = append(slots, slot)
			}
		}
		if m.EndTime.After(cursor) {
			cursor = m.EndTime
			prev = &meetings[i]
		}
	}

	if prev != nil && timewindow.MinutesBetween(cursor, req.WorkEnd) >= req.DurationMinutes {
		slot := domain.TimeSlot{
			Start:           cursor,
			End:             cursor.Add(d),
			DurationMinutes: req.DurationMinutes,
			Kind:            domain.SlotAfterLast,
			Description:     fmt.Sprintf("After %s", prev.Title),
			Confidence:      confidenceAfterLast,
			Reasoning: fmt.Sprintf("Free from %s until the end of the work day at %s",
				timewindow.Format(cursor), timewindow.Format(req.WorkEnd)),
		}
		if fitsWorkWindow(slot, req) {
			slots = append(slots, slot)
		}
	}
	return slots
}

// freeDaySlot picks the canonical time for the activity when nothing is booked.
func freeDaySlot(req domain.ActivityRequest, anchor time.Time) (domain.TimeSlot, bool) {
	d := req.Duration()
	day := req.WorkStart

	for _, w := range preferredHours[req.ActivityType] {
		start := timewindow.On(day, w.anchor.hour, w.anchor.minute)
		if start.Before(anchor) {
			start = anchor
		}
		slot := domain.TimeSlot{
			Start:           start,
			End:             start.Add(d),
			DurationMinutes: req.DurationMinutes,
			Kind:            domain.SlotFreeDay,
			Description:     fmt.Sprintf("%s at %s", activityLabel(req.ActivityType), timewindow.Format(start)),
			Confidence:      confidenceFreeDay,
			Reasoning: fmt.Sprintf("No meetings scheduled; %s fits best between %s and %s",
				req.ActivityType, timewindow.Format(timewindow.On(day, w.from.hour, w.from.minute)),
				timewindow.Format(timewindow.On(day, w.to.hour, w.to.minute))),
		}
		if slot.End.After(timewindow.On(day, w.to.hour, w.to.minute)) {
			continue
		}
		if !req.TimePreference.Allows(slot.Start) || !fitsWorkWindow(slot, req) {
			continue
		}
		return slot, true
	}

	// Outside every canonical window: offer the earliest moment that still works.
	slot := domain.TimeSlot{
		Start:           anchor,
		End:             anchor.Add(d),
		DurationMinutes: req.DurationMinutes,
		Kind:            domain.SlotFreeDay,
		Description:     fmt.Sprintf("%s at %s", activityLabel(req.ActivityType), timewindow.Format(anchor)),
		Confidence:      confidenceFreeDay,
		Reasoning:       "No meetings scheduled; the usual time has passed, so the earliest free moment is used",
	}
	if req.TimePreference.Allows(slot.Start) && fitsWorkWindow(slot, req) {
		return slot, true
	}
	return domain.TimeSlot{}, false
}

// FindConflict returns the meeting the user is currently in, or else the
// earliest one starting within lookahead of now.
func FindConflict(meetings []domain.Meeting, now time.Time, lookahead time.Duration) (domain.Meeting, bool) {
	var (
		next  domain.Meeting
		found bool
	)
	horizon := now.Add(lookahead)
	for _, m := range meetings {
		if window(m).Contains(now) {
			return m, true
		}
		if m.StartTime.After(now) && !m.StartTime.After(horizon) {
			if !found || m.StartTime.Before(next.StartTime) {
				next = m
				found = true
			}
		}
	}
	return next, found
}

func fitsWorkWindow(slot domain.TimeSlot, req domain.ActivityRequest) bool {
	work := timewindow.Window{Start: req.WorkStart, End: req.WorkEnd}
	return work.Covers(timewindow.Window{Start: slot.Start, End: slot.End})
}

func window(m domain.Meeting) timewindow.Window {
	return timewindow.Window{Start: m.StartTime, End: m.EndTime}
}

func ceilMinute(t time.Time) time.Time {
	truncated := t.Truncate(time.Minute)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Minute)
}

func activityLabel(a domain.ActivityType) string {
	switch a {
	case domain.ActivityWalk:
		return "Walk"
	case domain.ActivityLunch:
		return "Lunch"
	case domain.ActivityCoffee:
		return "Coffee break"
	case domain.ActivityStretch:
		return "Stretch"
	case domain.ActivityMeditation:
		return "Meditation"
	case domain.ActivityBreak:
		return "Break"
	default:
		return "Activity"
	}
}
