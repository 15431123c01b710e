package domain

import "time"

// ActivityType is what the user wants to fit into the day
type ActivityType string

const (
	ActivityWalk       ActivityType = "walk"
	ActivityLunch      ActivityType = "lunch"
	ActivityCoffee     ActivityType = "coffee"
	ActivityStretch    ActivityType = "stretch"
	ActivityMeditation ActivityType = "meditation"
	ActivityBreak      ActivityType = "break"
	ActivityGeneral    ActivityType = "general"
)

// ActivityTypes lists every supported activity.
var ActivityTypes = []ActivityType{
	ActivityWalk, ActivityLunch, ActivityCoffee, ActivityStretch,
	ActivityMeditation, ActivityBreak, ActivityGeneral,
}

// Valid reports whether the activity type is supported
func (a ActivityType) Valid() bool {
	for _, known := range ActivityTypes {
		if a == known {
			return true
		}
	}
	return false
}

// TimePreference narrows slots to part of the day
type TimePreference string

const (
	PreferMorning   TimePreference = "morning"
	PreferAfternoon TimePreference = "afternoon"
	PreferAnytime   TimePreference = "anytime"
)

// Valid reports whether the preference is supported
func (p TimePreference) Valid() bool {
	return p == PreferMorning || p == PreferAfternoon || p == PreferAnytime
}

// Allows reports whether a slot starting at t satisfies the preference
func (p TimePreference) Allows(t time.Time) bool {
	switch p {
	case PreferMorning:
		return t.Hour() < 12
	case PreferAfternoon:
		return t.Hour() >= 12
	default:
		return true
	}
}

// ActivityRequest is the caller's intent for a slot search
type ActivityRequest struct {
	DurationMinutes int
	ActivityType    ActivityType
	TimePreference  TimePreference
	Now             time.Time
	WorkStart       time.Time
	WorkEnd         time.Time
}

// Duration returns the requested length
func (r ActivityRequest) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

// SlotKind tags where a slot was found
type SlotKind string

const (
	SlotBeforeFirst SlotKind = "before_first"
	SlotBetween     SlotKind = "between"
	SlotAfterLast   SlotKind = "after_last"
	SlotFreeDay     SlotKind = "free_day"
)

// TimeSlot is a candidate range for an activity
type TimeSlot struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	Kind            SlotKind  `json:"slot_kind"`
	Description     string    `json:"description"`
	Confidence      float64   `json:"confidence"`
	Reasoning       string    `json:"reasoning"`
}
