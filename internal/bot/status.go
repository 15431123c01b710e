package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// StatusSync shows the user's current activity as a pinned message in
// their private chat. Clearing unpins and deletes it.
type StatusSync struct {
	api API

	mu     sync.Mutex
	pinned map[int64]int
}

// NewStatusSync creates a StatusSync
func NewStatusSync(api API) *StatusSync {
	return &StatusSync{api: api, pinned: make(map[int64]int)}
}

// SetStatus replaces the pinned status message
func (s *StatusSync) SetStatus(ctx context.Context, userID int64, text, icon string, expiresAt time.Time) error {
	if err := s.ClearStatus(ctx, userID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(userID, fmt.Sprintf("%s %s", icon, text))
	msg.DisableNotification = true
	sent, err := s.api.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send status: %w", err)
	}

	pin := tgbotapi.PinChatMessageConfig{
		ChatID:              userID,
		MessageID:           sent.MessageID,
		DisableNotification: true,
	}
	if _, err := s.api.Request(pin); err != nil {
		return fmt.Errorf("failed to pin status: %w", err)
	}

	s.mu.Lock()
	s.pinned[userID] = sent.MessageID
	s.mu.Unlock()
	return nil
}

// ClearStatus removes the pinned status message, if any
func (s *StatusSync) ClearStatus(ctx context.Context, userID int64) error {
	s.mu.Lock()
	messageID, ok := s.pinned[userID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unpin := tgbotapi.UnpinChatMessageConfig{ChatID: userID, MessageID: messageID}
	if _, err := s.api.Request(unpin); err != nil {
		return fmt.Errorf("failed to unpin status: %w", err)
	}
	if _, err := s.api.Request(tgbotapi.NewDeleteMessage(userID, messageID)); err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}

	s.mu.Lock()
	if s.pinned[userID] == messageID {
		delete(s.pinned, userID)
	}
	s.mu.Unlock()
	return nil
}
