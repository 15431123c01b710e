package slotfinder

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/timewindow"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return timewindow.On(day, hour, minute)
}

func meeting(title string, h1, m1, h2, m2 int) domain.Meeting {
	start, end := at(h1, m1), at(h2, m2)
	return domain.Meeting{Title: title, StartTime: start, EndTime: end, DurationMinutes: timewindow.MinutesBetween(start, end)}
}

func request(minutes int, activity domain.ActivityType, pref domain.TimePreference, now time.Time) domain.ActivityRequest {
	return domain.ActivityRequest{
		DurationMinutes: minutes,
		ActivityType:    activity,
		TimePreference:  pref,
		Now:             now,
		WorkStart:       at(9, 0),
		WorkEnd:         at(18, 0),
	}
}

func TestFindBetweenStandupAndClientCall(t *testing.T) {
	meetings := []domain.Meeting{
		meeting("Standup", 9, 0, 9, 30),
		meeting("Client Call", 10, 0, 11, 0),
	}
	slots, err := Find(meetings, request(15, domain.ActivityWalk, domain.PreferAnytime, at(9, 0)))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d: %+v", len(slots), slots)
	}
	first := slots[0]
	if !first.Start.Equal(at(9, 30)) || !first.End.Equal(at(9, 45)) {
		t.Fatalf("expected 09:30-09:45, got %s", timewindow.FormatRange(first.Start, first.End))
	}
	if first.Kind != domain.SlotBetween || first.Description != "Between Standup and Client Call" {
		t.Fatalf("unexpected first slot: %+v", first)
	}
	second := slots[1]
	if !second.Start.Equal(at(11, 0)) || !second.End.Equal(at(11, 15)) || second.Kind != domain.SlotAfterLast {
		t.Fatalf("expected after_last 11:00-11:15, got %+v", second)
	}
}

func TestFindBeforeFirstMeeting(t *testing.T) {
	meetings := []domain.Meeting{meeting("Review", 11, 0, 12, 0)}
	slots, err := Find(meetings, request(30, domain.ActivityGeneral, domain.PreferAnytime, at(9, 40)))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(slots) != 2 || slots[0].Kind != domain.SlotBeforeFirst || !slots[0].Start.Equal(at(9, 40)) {
		t.Fatalf("expected before_first at 09:40, got %+v", slots)
	}
	if slots[0].Description != "Before Review" {
		t.Fatalf("unexpected description %q", slots[0].Description)
	}
}

func TestFindNoMeetingsUsesCanonicalCoffeeWindow(t *testing.T) {
	slots, err := Find(nil, request(10, domain.ActivityCoffee, domain.PreferMorning, at(8, 30)))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected exactly one slot, got %d", len(slots))
	}
	slot := slots[0]
	coffee := timewindow.Window{Start: at(10, 0), End: at(11, 0)}
	if !coffee.Covers(timewindow.Window{Start: slot.Start, End: slot.End}) {
		t.Fatalf("expected slot inside 10:00-11:00, got %s", timewindow.FormatRange(slot.Start, slot.End))
	}
	if slot.Kind != domain.SlotFreeDay || slot.Confidence != 0.7 {
		t.Fatalf("unexpected slot: %+v", slot)
	}
	if got := slot.Reasoning; len(got) < 22 || got[:22] != "No meetings scheduled;" {
		t.Fatalf("reasoning should mention no meetings, got %q", got)
	}
}

func TestFindNoMeetingsAfternoonPreference(t *testing.T) {
	slots, err := Find(nil, request(10, domain.ActivityCoffee, domain.PreferAfternoon, at(9, 0)))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(slots) != 1 || !slots[0].Start.Equal(at(14, 30)) {
		t.Fatalf("expected 14:30 coffee, got %+v", slots)
	}
}

func TestFindNoMeetingsLateInDay(t *testing.T) {
	slots, err := Find(nil, request(15, domain.ActivityWalk, domain.PreferAnytime, at(16, 20)))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(slots) != 1 || !slots[0].Start.Equal(at(16, 20)) {
		t.Fatalf("expected earliest free moment, got %+v", slots)
	}

	slots, err = Find(nil, request(15, domain.ActivityWalk, domain.PreferAnytime, at(17, 50)))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slot after the work day, got %+v", slots)
	}
}

func TestFindPackedDay(t *testing.T) {
	var meetings []domain.Meeting
	for h := 9; h < 17; h++ {
		meetings = append(meetings,
			meeting("Block A", h, 0, h, 25),
			meeting("Block B", h, 40, h+1, 0),
		)
	}
	req := request(20, domain.ActivityBreak, domain.PreferAnytime, at(9, 0))
	req.WorkEnd = at(17, 0)

	slots, err := Find(meetings, req)
	if err != nil {
		t.Fatalf("packed day must not error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected zero slots, got %+v", slots)
	}
}

func TestFindTimePreferenceFilter(t *testing.T) {
	meetings := []domain.Meeting{
		meeting("Standup", 9, 0, 9, 30),
		meeting("Lunch & Learn", 12, 0, 13, 0),
	}
	morning, err := Find(meetings, request(15, domain.ActivityStretch, domain.PreferMorning, at(9, 0)))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	for _, s := range morning {
		if s.Start.Hour() >= 12 {
			t.Fatalf("morning slot starts at %s", timewindow.Format(s.Start))
		}
	}
	afternoon, err := Find(meetings, request(15, domain.ActivityStretch, domain.PreferAfternoon, at(9, 0)))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(afternoon) != 1 || !afternoon[0].Start.Equal(at(13, 0)) {
		t.Fatalf("expected one afternoon slot at 13:00, got %+v", afternoon)
	}
}

func TestFindRejectsNonPositiveDuration(t *testing.T) {
	for _, minutes := range []int{0, -5} {
		_, err := Find(nil, request(minutes, domain.ActivityWalk, domain.PreferAnytime, at(9, 0)))
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("duration %d: expected invalid request, got %v", minutes, err)
		}
	}
	_, err := Find(nil, request(10, "juggling", domain.PreferAnytime, at(9, 0)))
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for unknown activity, got %v", err)
	}
}

func TestFindHandlesZeroLengthAndOverlappingMeetings(t *testing.T) {
	meetings := []domain.Meeting{
		meeting("Marker", 9, 45, 9, 45),
		meeting("Long Workshop", 10, 0, 12, 0),
		meeting("Nested Sync", 10, 30, 11, 0),
		meeting("Retro", 12, 20, 13, 0),
	}
	slots, err := Find(meetings, request(15, domain.ActivityWalk, domain.PreferAnytime, at(9, 0)))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	assertNoOverlap(t, meetings, slots, 15)
	if len(slots) == 0 || !slots[0].Start.Equal(at(9, 0)) {
		t.Fatalf("expected first slot at 09:00, got %+v", slots)
	}
	for _, s := range slots {
		if s.Start.Equal(at(11, 0)) {
			t.Fatalf("nested meeting end must not open a slot inside the workshop")
		}
	}
}

func TestFindPropertiesOnRandomDays(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		var meetings []domain.Meeting
		cursor := at(8, 0)
		for n := rng.Intn(8); n > 0; n-- {
			start := cursor.Add(time.Duration(rng.Intn(90)) * time.Minute)
			end := start.Add(time.Duration(rng.Intn(75)) * time.Minute)
			meetings = append(meetings, domain.Meeting{Title: "m", StartTime: start, EndTime: end})
			cursor = start
		}
		minutes := 5 + rng.Intn(60)
		now := at(8, 0).Add(time.Duration(rng.Intn(240)) * time.Minute)
		slots, err := Find(meetings, request(minutes, domain.ActivityGeneral, domain.PreferAnytime, now))
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		assertNoOverlap(t, meetings, slots, minutes)
		for j := 1; j < len(slots); j++ {
			if slots[j].Start.Before(slots[j-1].Start) {
				t.Fatalf("slots must be chronological: %+v", slots)
			}
		}
	}
}

func TestFindConflict(t *testing.T) {
	meetings := []domain.Meeting{
		meeting("Planning", 10, 0, 11, 0),
		meeting("1:1", 11, 30, 12, 0),
	}
	if m, ok := FindConflict(meetings, at(10, 15), 10*time.Minute); !ok || m.Title != "Planning" {
		t.Fatalf("expected to be inside Planning, got %v %v", m.Title, ok)
	}
	if m, ok := FindConflict(meetings, at(11, 22), 10*time.Minute); !ok || m.Title != "1:1" {
		t.Fatalf("expected upcoming 1:1, got %v %v", m.Title, ok)
	}
	if _, ok := FindConflict(meetings, at(11, 5), 10*time.Minute); ok {
		t.Fatalf("expected no conflict at 11:05")
	}
}

func assertNoOverlap(t *testing.T, meetings []domain.Meeting, slots []domain.TimeSlot, minutes int) {
	t.Helper()
	for _, s := range slots {
		if s.End.Sub(s.Start) != time.Duration(minutes)*time.Minute || s.DurationMinutes != minutes {
			t.Fatalf("slot %s does not last %d minutes", timewindow.FormatRange(s.Start, s.End), minutes)
		}
		for _, m := range meetings {
			if timewindow.Overlaps(timewindow.Window{Start: s.Start, End: s.End}, window(m)) {
				t.Fatalf("slot %s overlaps meeting %s", timewindow.FormatRange(s.Start, s.End), timewindow.FormatRange(m.StartTime, m.EndTime))
			}
		}
	}
}
