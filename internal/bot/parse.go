package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/slotfinder"
	"github.com/glebk/wellness-bot/internal/timewindow"
)

const maxSlotsShown = 3

// parseFocusArgs reads "[minutes] [start time]". A zero start means now.
func parseFocusArgs(args string, now time.Time) (int, time.Time, error) {
	fields := strings.Fields(args)
	minutes := defaultFocusMinutes
	var start time.Time

	if len(fields) > 0 {
		n, err := strconv.Atoi(fields[0])
		if err != nil || n <= 0 {
			return 0, time.Time{}, fmt.Errorf("%w: %q is not a number of minutes", domain.ErrInvalidRequest, fields[0])
		}
		minutes = n
	}
	if len(fields) > 1 {
		t, err := timewindow.ParseTimeOfDay(strings.Join(fields[1:], " "), now)
		if err != nil {
			return 0, time.Time{}, err
		}
		if t.Before(now) {
			return 0, time.Time{}, fmt.Errorf("%w: %s has already passed", domain.ErrInvalidRequest, timewindow.Format(t))
		}
		start = t
	}
	return minutes, start, nil
}

func parseBreakType(arg string) (domain.BreakType, error) {
	t := domain.BreakType(strings.ToLower(strings.TrimSpace(arg)))
	for _, known := range domain.BreakRotation {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown break type %q", domain.ErrInvalidRequest, arg)
}

// parseSlotArgs reads "<minutes> [activity] [morning|afternoon|anytime]"
func parseSlotArgs(args string) (domain.ActivityRequest, error) {
	fields := strings.Fields(strings.ToLower(args))
	if len(fields) == 0 {
		return domain.ActivityRequest{}, fmt.Errorf("%w: how many minutes do you need?", domain.ErrInvalidRequest)
	}

	minutes, err := strconv.Atoi(fields[0])
	if err != nil {
		return domain.ActivityRequest{}, fmt.Errorf("%w: %q is not a number of minutes", domain.ErrInvalidRequest, fields[0])
	}
	req := domain.ActivityRequest{
		DurationMinutes: minutes,
		ActivityType:    domain.ActivityGeneral,
		TimePreference:  domain.PreferAnytime,
	}

	for _, f := range fields[1:] {
		switch {
		case domain.TimePreference(f).Valid():
			req.TimePreference = domain.TimePreference(f)
		case domain.ActivityType(f).Valid():
			req.ActivityType = domain.ActivityType(f)
		default:
			return domain.ActivityRequest{}, fmt.Errorf("%w: unknown option %q", domain.ErrInvalidRequest, f)
		}
	}
	return req, nil
}

// parseMeetingArgs reads "<start> <end> <title>" on now's day
func parseMeetingArgs(args string, now time.Time) (*domain.Meeting, error) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: start, end and title are required", domain.ErrInvalidRequest)
	}

	start, err := timewindow.ParseTimeOfDay(fields[0], now)
	if err != nil {
		return nil, err
	}
	end, err := timewindow.ParseTimeOfDay(fields[1], now)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: meeting must end after it starts", domain.ErrInvalidRequest)
	}

	return &domain.Meeting{
		Title:           strings.Join(fields[2:], " "),
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: timewindow.MinutesBetween(start, end),
		AttendeeCount:   1,
		MeetingType:     "manual",
	}, nil
}

func parseHours(args string) (int, int, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%w: expected a start and an end hour", domain.ErrInvalidRequest)
	}
	start, err1 := strconv.Atoi(fields[0])
	end, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("%w: hours must be whole numbers", domain.ErrInvalidRequest)
	}
	return start, end, nil
}

// escapeMarkdown makes user text such as meeting titles safe inside a Markdown message
func escapeMarkdown(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, text)
}

func formatSlots(result slotfinder.Result, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("🗓 *Free slots today*\n\n")

	if len(result.Slots) == 0 {
		sb.WriteString(escapeMarkdown(result.Summary()))
		return sb.String()
	}

	for i, slot := range result.Slots {
		if i == maxSlotsShown {
			break
		}
		marker := "▫️"
		if i == 0 {
			marker = "⭐"
		}
		fmt.Fprintf(&sb, "%s %s - %s\n", marker,
			timewindow.FormatRange(slot.Start.In(loc), slot.End.In(loc)), escapeMarkdown(slot.Description))
	}

	if len(result.Insights) > 0 {
		for _, insight := range result.Insights {
			sb.WriteString("\n💡 ")
			sb.WriteString(escapeMarkdown(insight))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
