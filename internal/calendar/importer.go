// Package calendar loads meeting lists from YAML exports.
package calendar

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/timewindow"
)

// File is the import document:
//
//	user_id: 123
//	timezone: Europe/Berlin
//	meetings:
//	  - title: Standup
//	    date: 2024-03-04
//	    start: "9:30"
//	    end: "9:45"
//	    attendees: 6
//	    type: recurring
type File struct {
	UserID   int64   `yaml:"user_id"`
	Timezone string  `yaml:"timezone"`
	Meetings []Entry `yaml:"meetings"`
}

// Entry is one meeting in a File
type Entry struct {
	Title     string `yaml:"title"`
	Date      string `yaml:"date"`
	Start     string `yaml:"start"`
	End       string `yaml:"end"`
	Attendees int    `yaml:"attendees"`
	Type      string `yaml:"type"`
}

// Parse decodes r and resolves every entry in the file's zone, or loc when
// the file names none.
func Parse(r io.Reader, loc *time.Location) (int64, []domain.Meeting, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return 0, nil, fmt.Errorf("%w: failed to decode meetings: %v", domain.ErrInvalidRequest, err)
	}
	if f.UserID <= 0 {
		return 0, nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidRequest)
	}

	if f.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(f.Timezone)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: unknown time zone %q", domain.ErrInvalidRequest, f.Timezone)
		}
	}
	if loc == nil {
		loc = time.Local
	}

	meetings := make([]domain.Meeting, 0, len(f.Meetings))
	for i, e := range f.Meetings {
		m, err := e.meeting(loc)
		if err != nil {
			return 0, nil, fmt.Errorf("meeting %d (%q): %w", i+1, e.Title, err)
		}
		m.UserID = f.UserID
		meetings = append(meetings, m)
	}
	return f.UserID, meetings, nil
}

func (e Entry) meeting(loc *time.Location) (domain.Meeting, error) {
	if e.Title == "" {
		return domain.Meeting{}, fmt.Errorf("%w: title is required", domain.ErrInvalidRequest)
	}
	day, err := time.ParseInLocation("2006-01-02", e.Date, loc)
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("%w: date must look like 2024-03-04", domain.ErrInvalidRequest)
	}
	start, err := timewindow.ParseTimeOfDay(e.Start, day)
	if err != nil {
		return domain.Meeting{}, err
	}
	end, err := timewindow.ParseTimeOfDay(e.End, day)
	if err != nil {
		return domain.Meeting{}, err
	}
	if end.Before(start) {
		return domain.Meeting{}, fmt.Errorf("%w: ends before it starts", domain.ErrInvalidRequest)
	}

	meetingType := e.Type
	if meetingType == "" {
		meetingType = "imported"
	}
	return domain.Meeting{
		Title:           e.Title,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: timewindow.MinutesBetween(start, end),
		AttendeeCount:   e.Attendees,
		MeetingType:     meetingType,
	}, nil
}

// Import stores every meeting with repo and returns how many were added
func Import(ctx context.Context, repo domain.MeetingRepository, meetings []domain.Meeting) (int, error) {
	for i := range meetings {
		if err := repo.AddMeeting(ctx, &meetings[i]); err != nil {
			return i, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
		}
	}
	return len(meetings), nil
}
