package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/glebk/wellness-bot/internal/clock"
	"github.com/glebk/wellness-bot/internal/config"
	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/monitor"
	"github.com/glebk/wellness-bot/internal/service"
	"github.com/glebk/wellness-bot/internal/slotfinder"
)

const (
	defaultFocusMinutes = 25
	sweepInterval       = time.Minute

	buttonFocus = "🎯 Focus 25 min"
	buttonBreak = "☕ Take a break"
)

// Deps are the services the bot talks to
type Deps struct {
	Sessions *service.SessionService
	Users    *service.UserService
	Monitor  *monitor.Monitor
	Planner  *slotfinder.Planner
	Meetings domain.MeetingRepository
	Clock    clock.Clock
}

// Bot represents the Telegram bot
type Bot struct {
	api      API
	sessions *service.SessionService
	users    *service.UserService
	monitor  *monitor.Monitor
	planner  *slotfinder.Planner
	meetings domain.MeetingRepository
	clock    clock.Clock
	config   *config.Config
}

// New creates a new Bot instance
func New(api API, deps Deps, cfg *config.Config) *Bot {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	b := &Bot{
		api:      api,
		sessions: deps.Sessions,
		users:    deps.Users,
		monitor:  deps.Monitor,
		planner:  deps.Planner,
		meetings: deps.Meetings,
		clock:    deps.Clock,
		config:   cfg,
	}
	b.sessions.OnTransition(b.notifyTransition)
	return b
}

// Start receives updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	b.trackKnownUsers(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	go b.sweepRoutine(ctx)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

// trackKnownUsers restarts the break monitor for users registered before a restart
func (b *Bot) trackKnownUsers(ctx context.Context) {
	users, err := b.users.GetAllUsers(ctx)
	if err != nil {
		log.Printf("Error loading users: %v", err)
		return
	}
	for _, u := range users {
		b.monitor.Track(ctx, u.ID)
	}
	log.Printf("Monitoring %d users", len(users))
}

// sweepRoutine activates scheduled sessions and completes elapsed ones
func (b *Bot) sweepRoutine(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.sessions.Sweep(ctx); err != nil {
				log.Printf("Error sweeping sessions: %v", err)
			}
		}
	}
}

// notifyTransition tells the user when a session starts or ends on its own
func (b *Bot) notifyTransition(_ context.Context, s domain.Session) {
	switch {
	case s.Status == domain.SessionStatusCompleted && s.Kind == domain.SessionKindFocus:
		sendText(b.api, s.UserID, fmt.Sprintf("✅ Focus session complete (%d min). Nice work!", s.DurationMinutes))
	case s.Status == domain.SessionStatusCompleted && s.Kind == domain.SessionKindBreak:
		sendText(b.api, s.UserID, "⏰ Break is over. Back to it!")
	case s.Status == domain.SessionStatusActive && s.UpdatedAt.After(s.CreatedAt):
		sendText(b.api, s.UserID, fmt.Sprintf("🎯 Your scheduled %s session has started (until %s).",
			s.Kind, s.PlannedEnd().Format("15:04")))
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	b.registerUser(ctx, message.From)

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	switch message.Text {
	case buttonFocus:
		b.handleFocus(ctx, message, "")
	case buttonBreak:
		b.handleBreak(ctx, message, "")
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	args := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "focus":
		b.handleFocus(ctx, message, args)
	case "endfocus":
		b.handleEndFocus(ctx, message)
	case "break":
		b.handleBreak(ctx, message, args)
	case "cancel":
		b.handleCancel(ctx, message)
	case "slot":
		b.handleSlot(ctx, message, args)
	case "meeting":
		b.handleMeeting(ctx, message, args)
	case "status":
		b.handleStatus(ctx, message)
	case "hours":
		b.handleHours(ctx, message, args)
	case "timezone":
		b.handleTimezone(ctx, message, args)
	case "help":
		b.handleHelp(message)
	default:
		sendText(b.api, message.Chat.ID, "Unknown command. Use /help to see what I can do")
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	b.monitor.Track(ctx, message.From.ID)

	text := fmt.Sprintf(
		"👋 Hi %s! I'm your wellness assistant.\n\n"+
			"I keep an eye on your working day and suggest a break when you've been at it for too long, "+
			"working around your meetings.\n\n"+
			"Use /focus to start a focus session\n"+
			"Use /slot to find a free slot for a walk or lunch\n"+
			"Use /help for everything else",
		message.From.FirstName,
	)

	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonFocus),
			tgbotapi.NewKeyboardButton(buttonBreak),
		),
	)

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = keyboard

	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending start message: %v", err)
	}
}

func (b *Bot) handleFocus(ctx context.Context, message *tgbotapi.Message, args string) {
	now := b.userNow(ctx, message.From.ID)
	minutes, start, err := parseFocusArgs(args, now)
	if err != nil {
		sendText(b.api, message.Chat.ID, describeError(err)+"\nUsage: /focus [minutes] [start time]")
		return
	}

	session, err := b.sessions.Create(ctx, service.CreateSessionInput{
		UserID:          message.From.ID,
		Kind:            domain.SessionKindFocus,
		DurationMinutes: minutes,
		StartTime:       start,
	})
	if session == nil {
		sendText(b.api, message.Chat.ID, describeError(err))
		return
	}

	var text string
	if session.Status == domain.SessionStatusScheduled {
		text = fmt.Sprintf("🗓 Focus session scheduled for %s (%d min).",
			session.StartTime.In(now.Location()).Format("15:04"), minutes)
	} else {
		text = fmt.Sprintf("🎯 Focus mode on until %s. I'll hold the break reminders.",
			session.PlannedEnd().In(now.Location()).Format("15:04"))
	}
	text += sessionWarnings(session, err)

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", CancelSessionAction(session.ID).Encode()),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending focus confirmation: %v", err)
	}
}

func (b *Bot) handleEndFocus(ctx context.Context, message *tgbotapi.Message) {
	session, err := b.sessions.EndActive(ctx, message.From.ID, domain.SessionKindFocus)
	if session == nil {
		if errors.Is(err, domain.ErrNotFound) {
			sendText(b.api, message.Chat.ID, "📭 No focus session is running")
			return
		}
		sendText(b.api, message.Chat.ID, describeError(err))
		return
	}
	// the transition listener already congratulated the user
	if err != nil {
		sendText(b.api, message.Chat.ID, describeError(err))
	}
}

func (b *Bot) handleBreak(ctx context.Context, message *tgbotapi.Message, args string) {
	breakType := domain.BreakStretch
	if args != "" {
		t, err := parseBreakType(args)
		if err != nil {
			sendText(b.api, message.Chat.ID, describeError(err)+"\nUsage: /break [hydration|stretch|walk|meditation]")
			return
		}
		breakType = t
	}

	session, err := b.monitor.StartBreak(ctx, message.From.ID, breakType)
	if session == nil {
		sendText(b.api, message.Chat.ID, describeError(err))
		return
	}

	loc := b.userLocation(ctx, message.From.ID)
	text := fmt.Sprintf("☕ %s break until %s. %s",
		breakTitle(breakType), session.PlannedEnd().In(loc).Format("15:04"), breakTip(breakType))
	sendText(b.api, message.Chat.ID, text+sessionWarnings(session, err))
}

func (b *Bot) handleCancel(ctx context.Context, message *tgbotapi.Message) {
	for _, kind := range []domain.SessionKind{domain.SessionKindFocus, domain.SessionKindBreak} {
		active, err := b.sessions.Active(ctx, message.From.ID, kind)
		if err != nil {
			sendText(b.api, message.Chat.ID, describeError(err))
			return
		}
		if active == nil {
			continue
		}
		if _, err := b.sessions.Cancel(ctx, active.ID); err != nil {
			log.Printf("Error canceling session: %v", err)
			sendText(b.api, message.Chat.ID, describeError(err))
			return
		}
		sendText(b.api, message.Chat.ID, fmt.Sprintf("✅ %s session cancelled", titleCase(string(kind))))
		return
	}
	sendText(b.api, message.Chat.ID, "📭 Nothing to cancel")
}

func (b *Bot) handleSlot(ctx context.Context, message *tgbotapi.Message, args string) {
	user, now := b.userContext(ctx, message.From.ID)
	startHour, endHour := b.users.WorkHours(user)

	req, err := parseSlotArgs(args)
	if err != nil {
		sendText(b.api, message.Chat.ID, describeError(err)+"\nUsage: /slot <minutes> [activity] [morning|afternoon]")
		return
	}
	req.Now = now
	req.WorkStart = time.Date(now.Year(), now.Month(), now.Day(), startHour, 0, 0, 0, now.Location())
	req.WorkEnd = time.Date(now.Year(), now.Month(), now.Day(), endHour, 0, 0, 0, now.Location())

	meetings, err := b.meetings.GetMeetingsForUserOnDate(ctx, message.From.ID, now)
	if err != nil {
		log.Printf("Error loading meetings: %v", err)
		sendText(b.api, message.Chat.ID, describeError(fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)))
		return
	}

	result, err := b.planner.Plan(ctx, meetings, req)
	if err != nil {
		sendText(b.api, message.Chat.ID, describeError(err))
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, formatSlots(result, now.Location()))
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending slots: %v", err)
	}
}

func (b *Bot) handleMeeting(ctx context.Context, message *tgbotapi.Message, args string) {
	now := b.userNow(ctx, message.From.ID)
	meeting, err := parseMeetingArgs(args, now)
	if err != nil {
		sendText(b.api, message.Chat.ID, describeError(err)+"\nUsage: /meeting <start> <end> <title>")
		return
	}
	meeting.UserID = message.From.ID

	if err := b.meetings.AddMeeting(ctx, meeting); err != nil {
		log.Printf("Error adding meeting: %v", err)
		sendText(b.api, message.Chat.ID, describeError(fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)))
		return
	}
	sendText(b.api, message.Chat.ID, fmt.Sprintf("📅 Added %q %s-%s",
		meeting.Title, meeting.StartTime.Format("15:04"), meeting.EndTime.Format("15:04")))
}

func (b *Bot) handleStatus(ctx context.Context, message *tgbotapi.Message) {
	user, now := b.userContext(ctx, message.From.ID)
	startHour, endHour := b.users.WorkHours(user)

	var lines []string
	for _, kind := range []domain.SessionKind{domain.SessionKindFocus, domain.SessionKindBreak} {
		active, err := b.sessions.Active(ctx, message.From.ID, kind)
		if err != nil {
			log.Printf("Error getting active session: %v", err)
			sendText(b.api, message.Chat.ID, describeError(err))
			return
		}
		if active != nil {
			lines = append(lines, fmt.Sprintf("%s %s until %s", kindIcon(kind), titleCase(string(kind)),
				active.PlannedEnd().In(now.Location()).Format("15:04")))
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "📭 No active session")
	}

	meetings, err := b.meetings.GetMeetingsForUserOnDate(ctx, message.From.ID, now)
	if err != nil {
		log.Printf("Error loading meetings: %v", err)
	} else {
		upcoming := 0
		for _, m := range meetings {
			if m.EndTime.After(now) {
				upcoming++
			}
		}
		lines = append(lines, fmt.Sprintf("📅 %d meetings left today", upcoming))
	}

	lines = append(lines, fmt.Sprintf("🕘 Work hours %02d:00-%02d:00 (%s)", startHour, endHour, now.Location()))
	if b.monitor.Tracked(message.From.ID) {
		lines = append(lines, "🔔 Break reminders are on")
	} else {
		lines = append(lines, "🔕 Break reminders are off, use /start")
	}

	sendText(b.api, message.Chat.ID, strings.Join(lines, "\n"))
}

func (b *Bot) handleHours(ctx context.Context, message *tgbotapi.Message, args string) {
	start, end, err := parseHours(args)
	if err == nil {
		err = b.users.SetWorkHours(ctx, message.From.ID, start, end)
	}
	if err != nil {
		sendText(b.api, message.Chat.ID, describeError(err)+"\nUsage: /hours <start hour> <end hour>")
		return
	}
	sendText(b.api, message.Chat.ID, fmt.Sprintf("🕘 Work hours set to %02d:00-%02d:00", start, end))
}

func (b *Bot) handleTimezone(ctx context.Context, message *tgbotapi.Message, args string) {
	if args == "" {
		sendText(b.api, message.Chat.ID, "Usage: /timezone <IANA zone>, e.g. /timezone Europe/Berlin")
		return
	}
	if err := b.users.SetTimezone(ctx, message.From.ID, args); err != nil {
		sendText(b.api, message.Chat.ID, describeError(err))
		return
	}
	sendText(b.api, message.Chat.ID, "🌍 Time zone set to "+args)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	interval := 30
	if b.config != nil && b.config.MonitorInterval > 0 {
		interval = int(b.config.MonitorInterval.Minutes())
	}

	text := fmt.Sprintf(`*Wellness bot - Help*

*Commands:*
/start - Turn on break reminders and show the menu
/focus [minutes] [start] - Start or schedule a focus session
/endfocus - Finish the running focus session
/break [type] - Take a break now (hydration, stretch, walk, meditation)
/cancel - Cancel the running session
/slot <minutes> [activity] [morning|afternoon] - Find a free slot today
/meeting <start> <end> <title> - Add a meeting to today's calendar
/status - Show what's running
/hours <start> <end> - Set your work hours
/timezone <zone> - Set your time zone
/help - Show this help

*How reminders work:*
Every %d minutes during work hours I check how long you've been working. After two hours without a break I suggest one, unless you're in a meeting. Then I check again 5 minutes after it ends.`, interval)

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = "Markdown"

	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending help: %v", err)
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	action, err := ParseAction(query.Data)
	if err != nil {
		log.Printf("Rejected callback from %d: %v", query.From.ID, err)
		b.answerCallback(query.ID, "Invalid response")
		return
	}

	b.registerUser(ctx, query.From)

	switch action.Kind {
	case CallbackBreak:
		b.handleAlertResponse(ctx, query, action)
	case CallbackSession:
		b.handleSessionCancel(ctx, query, action)
	}
}

func (b *Bot) handleAlertResponse(ctx context.Context, query *tgbotapi.CallbackQuery, action Action) {
	session, err := b.monitor.HandleResponse(ctx, monitor.Response{
		UserID:       query.From.ID,
		SuggestionID: action.ID,
		Action:       action.Alert,
	})
	if err != nil && session == nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			b.answerCallback(query.ID, "This suggestion was already answered")
		case errors.Is(err, domain.ErrNotFound):
			b.answerCallback(query.ID, "❌ This suggestion is no longer available")
		default:
			log.Printf("Error handling alert response: %v", err)
			b.answerCallback(query.ID, describeError(err))
		}
		return
	}

	var responseText string
	switch action.Alert {
	case domain.ActionAcceptNow:
		loc := b.userLocation(ctx, query.From.ID)
		responseText = fmt.Sprintf("✅ Enjoy your break! Back at %s.", session.PlannedEnd().In(loc).Format("15:04"))
	case domain.ActionDelay30:
		responseText = "⏱ OK, I'll ask again in 30 minutes."
	case domain.ActionDelay60:
		responseText = "⏱ OK, I'll ask again in an hour."
	default:
		responseText = "👌 Skipped. I'll keep an eye on things."
	}

	b.answerCallback(query.ID, responseText)
	b.appendToMessage(query, responseText)
}

func (b *Bot) handleSessionCancel(ctx context.Context, query *tgbotapi.CallbackQuery, action Action) {
	session, err := b.sessions.Get(ctx, action.ID)
	if err != nil || session.UserID != query.From.ID {
		b.answerCallback(query.ID, "❌ This session is no longer active")
		return
	}
	if session.Status.Terminal() {
		b.answerCallback(query.ID, "❌ This session already ended")
		return
	}

	if _, err := b.sessions.Cancel(ctx, session.ID); err != nil {
		log.Printf("Error canceling session: %v", err)
		b.answerCallback(query.ID, "❌ Could not cancel, please try again")
		return
	}

	b.answerCallback(query.ID, "✅ Cancelled")
	b.appendToMessage(query, "❌ *Cancelled*")
}

// appendToMessage edits the message behind a callback and drops its buttons
func (b *Bot) appendToMessage(query *tgbotapi.CallbackQuery, text string) {
	if query.Message == nil {
		return
	}
	editMsg := tgbotapi.NewEditMessageText(
		query.Message.Chat.ID,
		query.Message.MessageID,
		escapeMarkdown(query.Message.Text)+"\n\n"+text,
	)
	editMsg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(editMsg); err != nil {
		log.Printf("Error editing message: %v", err)
	}
}

func (b *Bot) registerUser(ctx context.Context, user *tgbotapi.User) {
	username := user.UserName
	if username == "" {
		username = fmt.Sprintf("user%d", user.ID)
	}

	if _, err := b.users.RegisterUser(ctx, user.ID, username, user.FirstName, user.LastName); err != nil {
		log.Printf("Error registering user %d: %v", user.ID, err)
	}
}

// answerCallback answers a callback query
func (b *Bot) answerCallback(callbackID string, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		log.Printf("Error answering callback: %v", err)
	}
}

func (b *Bot) userContext(ctx context.Context, userID int64) (*domain.User, time.Time) {
	user, err := b.users.GetUser(ctx, userID)
	if err != nil {
		log.Printf("Error getting user %d: %v", userID, err)
	}
	return user, b.clock.Now().In(b.users.Location(user))
}

func (b *Bot) userNow(ctx context.Context, userID int64) time.Time {
	_, now := b.userContext(ctx, userID)
	return now
}

func (b *Bot) userLocation(ctx context.Context, userID int64) *time.Location {
	return b.userNow(ctx, userID).Location()
}

// sessionWarnings explains degraded outcomes that still produced a session
func sessionWarnings(session *domain.Session, err error) string {
	var notes []string
	if !session.StatusSynced {
		notes = append(notes, "⚠️ I couldn't update your pinned status.")
	}
	if errors.Is(err, domain.ErrStorageUnavailable) {
		notes = append(notes, "💾 Storage is slow right now; the session may not survive a restart.")
	}
	if len(notes) == 0 {
		return ""
	}
	return "\n\n" + strings.Join(notes, "\n")
}

func describeError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrActiveSessionConflict):
		return "⚠️ You already have a focus session running. Use /endfocus to finish it first."
	case errors.Is(err, domain.ErrInvalidRequest):
		return "⚠️ " + strings.TrimPrefix(err.Error(), domain.ErrInvalidRequest.Error()+": ")
	case errors.Is(err, domain.ErrNotFound):
		return "📭 Nothing found"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "💾 Storage is having trouble, please try again in a moment."
	default:
		return "❌ Something went wrong. Please try again later."
	}
}

func kindIcon(kind domain.SessionKind) string {
	if kind == domain.SessionKindFocus {
		return "🎯"
	}
	return "☕"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
