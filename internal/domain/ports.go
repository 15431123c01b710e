package domain

import (
	"context"
	"time"
)

// StatusSync updates the user's external presence indicator
type StatusSync interface {
	SetStatus(ctx context.Context, userID int64, text, icon string, expiresAt time.Time) error
	ClearStatus(ctx context.Context, userID int64) error
}

// AlertAction is one of the fixed responses offered with a break alert
type AlertAction string

const (
	ActionAcceptNow AlertAction = "accept_now"
	ActionDelay30   AlertAction = "delay_30"
	ActionDelay60   AlertAction = "delay_60"
	ActionDismiss   AlertAction = "dismiss"
)

// AlertActions is the full set offered on every alert, in display order.
var AlertActions = []AlertAction{ActionAcceptNow, ActionDelay30, ActionDelay60, ActionDismiss}

// Valid reports whether the action is one of AlertActions
func (a AlertAction) Valid() bool {
	for _, known := range AlertActions {
		if a == known {
			return true
		}
	}
	return false
}

// BreakAlert is what the monitor sends to the notification sink
type BreakAlert struct {
	UserID       int64
	SuggestionID string
	Reason       string
	Type         BreakType
	Urgency      Urgency
	Actions      []AlertAction
}

// Notifier delivers break alerts to the user
type Notifier interface {
	SendBreakAlert(ctx context.Context, alert BreakAlert) error
}
