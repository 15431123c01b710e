package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/glebk/wellness-bot/internal/domain"
)

var urgencyIcons = map[domain.Urgency]string{
	domain.UrgencyLow:    "🙂",
	domain.UrgencyMedium: "⏳",
	domain.UrgencyHigh:   "🚨",
}

var actionLabels = map[domain.AlertAction]string{
	domain.ActionAcceptNow: "✅ Take it now",
	domain.ActionDelay30:   "⏱ In 30 min",
	domain.ActionDelay60:   "⏱ In 1 hour",
	domain.ActionDismiss:   "❌ Skip",
}

// Notifier sends break alerts as Telegram messages with inline buttons
type Notifier struct {
	api API
}

// NewNotifier creates a Notifier
func NewNotifier(api API) *Notifier {
	return &Notifier{api: api}
}

// SendBreakAlert delivers alert to the user's private chat
func (n *Notifier) SendBreakAlert(ctx context.Context, alert domain.BreakAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := fmt.Sprintf("%s *%s break*\n\n%s\n\n%s",
		urgencyIcons[alert.Urgency], breakTitle(alert.Type), alert.Reason, breakTip(alert.Type))

	msg := tgbotapi.NewMessage(alert.UserID, text)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = alertKeyboard(alert)

	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send break alert: %w", err)
	}
	return nil
}

func alertKeyboard(alert domain.BreakAlert) tgbotapi.InlineKeyboardMarkup {
	actions := alert.Actions
	if len(actions) == 0 {
		actions = domain.AlertActions
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, a := range actions {
		data := BreakAction(a, alert.SuggestionID).Encode()
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(actionLabels[a], data))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func breakTitle(t domain.BreakType) string {
	switch t {
	case domain.BreakHydration:
		return "Hydration"
	case domain.BreakStretch:
		return "Stretch"
	case domain.BreakWalk:
		return "Walk"
	case domain.BreakMeditation:
		return "Meditation"
	default:
		return "Short"
	}
}

func breakTip(t domain.BreakType) string {
	switch t {
	case domain.BreakHydration:
		return "💧 Grab a glass of water and rest your eyes for a moment."
	case domain.BreakStretch:
		return "🧘 Stand up, roll your shoulders and stretch your back."
	case domain.BreakWalk:
		return "🚶 A 15-minute walk resets focus better than another coffee."
	case domain.BreakMeditation:
		return "🌿 Ten slow minutes of breathing, phone face down."
	default:
		return ""
	}
}
