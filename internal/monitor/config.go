package monitor

import "time"

// Config tunes the proactive break cycle
type Config struct {
	Interval time.Duration
	Weekdays []time.Weekday
	// Default work hours for users without their own.
	WorkStartHour int
	WorkEndHour   int

	Threshold   time.Duration
	MediumAfter time.Duration
	HighAfter   time.Duration
	Cooldown    time.Duration

	ConflictLookahead time.Duration
	RecheckDelay      time.Duration
	MaxDefer          time.Duration
	NotifyTimeout     time.Duration
}

// DefaultConfig returns the standard cadence: every 30 minutes on weekdays,
// suggesting a break after two hours of work.
func DefaultConfig() Config {
	return Config{
		Interval:          30 * time.Minute,
		Weekdays:          []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		WorkStartHour:     9,
		WorkEndHour:       18,
		Threshold:         2 * time.Hour,
		MediumAfter:       150 * time.Minute,
		HighAfter:         3 * time.Hour,
		Cooldown:          2 * time.Hour,
		ConflictLookahead: 10 * time.Minute,
		RecheckDelay:      5 * time.Minute,
		MaxDefer:          24 * time.Hour,
		NotifyTimeout:     5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if len(c.Weekdays) == 0 {
		c.Weekdays = d.Weekdays
	}
	if c.WorkStartHour >= c.WorkEndHour {
		c.WorkStartHour, c.WorkEndHour = d.WorkStartHour, d.WorkEndHour
	}
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.MediumAfter <= 0 {
		c.MediumAfter = d.MediumAfter
	}
	if c.HighAfter <= 0 {
		c.HighAfter = d.HighAfter
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.ConflictLookahead <= 0 {
		c.ConflictLookahead = d.ConflictLookahead
	}
	if c.RecheckDelay <= 0 {
		c.RecheckDelay = d.RecheckDelay
	}
	if c.MaxDefer <= 0 {
		c.MaxDefer = d.MaxDefer
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = d.NotifyTimeout
	}
	return c
}

func (c Config) workday(day time.Weekday) bool {
	for _, d := range c.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}
