package bot

import (
	"fmt"
	"strings"

	"github.com/glebk/wellness-bot/internal/domain"
)

// CallbackKind tags what an inline button refers to
type CallbackKind string

const (
	CallbackBreak   CallbackKind = "brk"
	CallbackSession CallbackKind = "ses"
)

// sessionCancel is the only session button action
const sessionCancel = "cancel"

// telegram limits callback data to 64 bytes
const maxCallbackData = 64

// Action is the typed payload behind an inline button
type Action struct {
	Kind CallbackKind
	// Alert is set for CallbackBreak.
	Alert domain.AlertAction
	// ID is a suggestion ID for CallbackBreak and a session ID for CallbackSession.
	ID string
}

// BreakAction returns the payload for an alert button
func BreakAction(alert domain.AlertAction, suggestionID string) Action {
	return Action{Kind: CallbackBreak, Alert: alert, ID: suggestionID}
}

// CancelSessionAction returns the payload for a session's cancel button
func CancelSessionAction(sessionID string) Action {
	return Action{Kind: CallbackSession, ID: sessionID}
}

// Encode renders the action as callback data
func (a Action) Encode() string {
	switch a.Kind {
	case CallbackBreak:
		return fmt.Sprintf("%s|%s|%s", CallbackBreak, a.Alert, a.ID)
	default:
		return fmt.Sprintf("%s|%s|%s", CallbackSession, sessionCancel, a.ID)
	}
}

// ParseAction validates callback data coming back from Telegram
func ParseAction(data string) (Action, error) {
	if len(data) > maxCallbackData {
		return Action{}, fmt.Errorf("%w: callback data too long", domain.ErrInvalidRequest)
	}
	parts := strings.Split(data, "|")
	if len(parts) != 3 || parts[2] == "" {
		return Action{}, fmt.Errorf("%w: malformed callback %q", domain.ErrInvalidRequest, data)
	}

	switch CallbackKind(parts[0]) {
	case CallbackBreak:
		alert := domain.AlertAction(parts[1])
		if !alert.Valid() {
			return Action{}, fmt.Errorf("%w: unknown alert action %q", domain.ErrInvalidRequest, parts[1])
		}
		return BreakAction(alert, parts[2]), nil
	case CallbackSession:
		if parts[1] != sessionCancel {
			return Action{}, fmt.Errorf("%w: unknown session action %q", domain.ErrInvalidRequest, parts[1])
		}
		return CancelSessionAction(parts[2]), nil
	default:
		return Action{}, fmt.Errorf("%w: unknown callback kind %q", domain.ErrInvalidRequest, parts[0])
	}
}
