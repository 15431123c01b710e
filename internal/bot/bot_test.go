package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/glebk/wellness-bot/internal/clock"
	"github.com/glebk/wellness-bot/internal/config"
	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/monitor"
	"github.com/glebk/wellness-bot/internal/repository/sqlite"
	"github.com/glebk/wellness-bot/internal/service"
	"github.com/glebk/wellness-bot/internal/slotfinder"
)

const (
	alice int64 = 11
	bob   int64 = 22
)

type harness struct {
	bot      *Bot
	api      *fakeAPI
	clock    *clock.Fixed
	sessions *service.SessionService
	meetings *sqlite.MeetingRepository
}

// Monday 2024-03-04 10:00 UTC
func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clk := clock.NewFixed(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	api := newFakeAPI()

	sessions := service.NewSessionService(
		sqlite.NewSessionRepository(db),
		sqlite.NewSuggestionRepository(db, clk),
		NewStatusSync(api),
		clk,
		service.Config{},
	)
	users := service.NewUserService(sqlite.NewUserRepository(db), time.UTC, 9, 18)
	meetings := sqlite.NewMeetingRepository(db)

	mon := monitor.New(monitor.Deps{
		Sessions: sessions,
		Profiles: users,
		Meetings: meetings,
		Activity: sqlite.NewActivityRepository(db),
		Notifier: NewNotifier(api),
		Clock:    clk,
	}, monitor.DefaultConfig())
	t.Cleanup(mon.Stop)

	b := New(api, Deps{
		Sessions: sessions,
		Users:    users,
		Monitor:  mon,
		Planner:  slotfinder.NewPlanner(nil, 0),
		Meetings: meetings,
		Clock:    clk,
	}, &config.Config{MonitorInterval: 30 * time.Minute})

	return &harness{bot: b, api: api, clock: clk, sessions: sessions, meetings: meetings}
}

func command(userID int64, text string) tgbotapi.Update {
	name := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "Test"},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func callback(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: userID, FirstName: "Test"},
		Message: &tgbotapi.Message{
			MessageID: 5,
			Chat:      &tgbotapi.Chat{ID: userID},
			Text:      "original",
		},
		Data: data,
	}}
}

func (h *harness) send(u tgbotapi.Update) {
	h.bot.handleUpdate(context.Background(), u)
}

func (h *harness) active(t *testing.T, userID int64, kind domain.SessionKind) *domain.Session {
	t.Helper()
	s, err := h.sessions.Active(context.Background(), userID, kind)
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	return s
}

func TestFocusCommandStartsSession(t *testing.T) {
	h := newHarness(t)

	h.send(command(alice, "/focus"))

	session := h.active(t, alice, domain.SessionKindFocus)
	if session == nil {
		t.Fatal("no active focus session")
	}
	if session.DurationMinutes != defaultFocusMinutes {
		t.Errorf("duration = %d, want %d", session.DurationMinutes, defaultFocusMinutes)
	}

	msg, ok := h.api.findText(alice, "Focus mode on until 10:25")
	if !ok {
		t.Fatalf("confirmation not sent, last = %q", h.api.lastText(alice))
	}
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) != 1 {
		t.Fatalf("reply markup = %#v", msg.ReplyMarkup)
	}
	data := *markup.InlineKeyboard[0][0].CallbackData
	if data != CancelSessionAction(session.ID).Encode() {
		t.Errorf("cancel data = %q", data)
	}

	if _, ok := h.api.findText(alice, "🎯 Focus mode until 10:25"); !ok {
		t.Error("pinned status not sent")
	}
}

func TestFocusCommandConflict(t *testing.T) {
	h := newHarness(t)

	h.send(command(alice, "/focus 50"))
	h.send(command(alice, "/focus"))

	if got := h.api.lastText(alice); !strings.Contains(got, "already have a focus session") {
		t.Errorf("last message = %q", got)
	}

	// other users are independent
	h.send(command(bob, "/focus"))
	if h.active(t, bob, domain.SessionKindFocus) == nil {
		t.Error("bob's focus session was rejected")
	}
}

func TestFocusCommandScheduled(t *testing.T) {
	h := newHarness(t)

	h.send(command(alice, "/focus 30 14:00"))

	if h.active(t, alice, domain.SessionKindFocus) != nil {
		t.Fatal("scheduled session should not be active yet")
	}
	if _, ok := h.api.findText(alice, "scheduled for 14:00"); !ok {
		t.Errorf("last message = %q", h.api.lastText(alice))
	}
}

func TestFocusCommandInvalid(t *testing.T) {
	tests := []string{"/focus abc", "/focus -5", "/focus 30 9:00", "/focus 30 25:00"}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			h := newHarness(t)
			h.send(command(alice, text))
			if h.active(t, alice, domain.SessionKindFocus) != nil {
				t.Fatal("session created for invalid input")
			}
			if got := h.api.lastText(alice); !strings.Contains(got, "Usage: /focus") {
				t.Errorf("last message = %q", got)
			}
		})
	}
}

func TestEndFocus(t *testing.T) {
	h := newHarness(t)

	h.send(command(alice, "/endfocus"))
	if got := h.api.lastText(alice); !strings.Contains(got, "No focus session") {
		t.Errorf("last message = %q", got)
	}

	h.send(command(alice, "/focus"))
	h.clock.Advance(10 * time.Minute)
	h.send(command(alice, "/endfocus"))

	if h.active(t, alice, domain.SessionKindFocus) != nil {
		t.Fatal("focus session still active")
	}
	if _, ok := h.api.findText(alice, "Focus session complete"); !ok {
		t.Errorf("completion not announced, last = %q", h.api.lastText(alice))
	}
}

func TestCancelSessionCallback(t *testing.T) {
	h := newHarness(t)
	h.send(command(alice, "/focus"))
	session := h.active(t, alice, domain.SessionKindFocus)
	data := CancelSessionAction(session.ID).Encode()

	// someone else's button press is ignored
	h.send(callback(bob, data))
	if h.active(t, alice, domain.SessionKindFocus) == nil {
		t.Fatal("bob cancelled alice's session")
	}

	h.send(callback(alice, data))
	if h.active(t, alice, domain.SessionKindFocus) != nil {
		t.Fatal("session still active after cancel")
	}
	edits := h.api.edits()
	if len(edits) != 1 || !strings.Contains(edits[0].Text, "Cancelled") {
		t.Errorf("edits = %#v", edits)
	}

	h.send(callback(alice, data))
	answers := h.api.callbackAnswers()
	if got := answers[len(answers)-1]; !strings.Contains(got, "already ended") {
		t.Errorf("answer = %q", got)
	}
}

func TestBreakAlertCallbackAccept(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	suggestion, err := h.sessions.SuggestBreak(ctx, service.SuggestBreakInput{
		UserID: alice, Type: domain.BreakWalk, Message: "walk", Reason: "test", Urgency: domain.UrgencyLow,
	})
	if err != nil {
		t.Fatal(err)
	}

	data := BreakAction(domain.ActionAcceptNow, suggestion.ID).Encode()
	h.send(callback(alice, data))

	session := h.active(t, alice, domain.SessionKindBreak)
	if session == nil {
		t.Fatal("no active break")
	}
	if session.DurationMinutes != 15 {
		t.Errorf("duration = %d, want 15", session.DurationMinutes)
	}
	answers := h.api.callbackAnswers()
	if len(answers) != 1 || !strings.Contains(answers[0], "Back at 10:15") {
		t.Errorf("answers = %q", answers)
	}

	// a second press on the same alert does nothing
	h.send(callback(alice, data))
	answers = h.api.callbackAnswers()
	if !strings.Contains(answers[len(answers)-1], "already answered") {
		t.Errorf("answers = %q", answers)
	}
}

func TestBreakAlertCallbackDismiss(t *testing.T) {
	h := newHarness(t)
	suggestion, err := h.sessions.SuggestBreak(context.Background(), service.SuggestBreakInput{
		UserID: alice, Type: domain.BreakHydration, Message: "water", Reason: "test",
	})
	if err != nil {
		t.Fatal(err)
	}

	h.send(callback(alice, BreakAction(domain.ActionDismiss, suggestion.ID).Encode()))

	if h.active(t, alice, domain.SessionKindBreak) != nil {
		t.Fatal("dismiss started a break")
	}
	if edits := h.api.edits(); len(edits) != 1 || !strings.Contains(edits[0].Text, "Skipped") {
		t.Errorf("edits = %#v", edits)
	}
}

func TestBreakAlertCallbackFromAnotherUser(t *testing.T) {
	h := newHarness(t)
	suggestion, err := h.sessions.SuggestBreak(context.Background(), service.SuggestBreakInput{
		UserID: alice, Type: domain.BreakWalk, Message: "walk", Reason: "test",
	})
	if err != nil {
		t.Fatal(err)
	}

	h.send(callback(bob, BreakAction(domain.ActionAcceptNow, suggestion.ID).Encode()))

	answers := h.api.callbackAnswers()
	if len(answers) != 1 || !strings.Contains(answers[0], "no longer available") {
		t.Errorf("answers = %q", answers)
	}
	if h.active(t, alice, domain.SessionKindBreak) != nil || h.active(t, bob, domain.SessionKindBreak) != nil {
		t.Error("a foreign alert must not start a break")
	}
}

func TestFormatSlotsEscapesMarkdown(t *testing.T) {
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	result := slotfinder.Result{
		Slots: []domain.TimeSlot{{
			Start:       start,
			End:         start.Add(30 * time.Minute),
			Description: "Before team_sync *weekly*",
		}},
		Insights: []string{"Quiet after [ops] review"},
	}

	got := formatSlots(result, time.UTC)
	for _, want := range []string{`team\_sync \*weekly\*`, `after \[ops] review`, "🗓 *Free slots today*"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatSlots() missing %q:\n%s", want, got)
		}
	}
}

func TestCallbackEditEscapesOriginalText(t *testing.T) {
	h := newHarness(t)
	suggestion, err := h.sessions.SuggestBreak(context.Background(), service.SuggestBreakInput{
		UserID: alice, Type: domain.BreakWalk, Message: "walk", Reason: "test",
	})
	if err != nil {
		t.Fatal(err)
	}

	u := callback(alice, BreakAction(domain.ActionDismiss, suggestion.ID).Encode())
	u.CallbackQuery.Message.Text = "Walk after design_review"
	h.send(u)

	edits := h.api.edits()
	if len(edits) != 1 {
		t.Fatalf("edits = %#v", edits)
	}
	if !strings.Contains(edits[0].Text, `design\_review`) || edits[0].ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("edit = %q (%s)", edits[0].Text, edits[0].ParseMode)
	}
}

func TestMalformedCallback(t *testing.T) {
	h := newHarness(t)
	h.send(callback(alice, "brk|explode|x"))

	answers := h.api.callbackAnswers()
	if len(answers) != 1 || answers[0] != "Invalid response" {
		t.Errorf("answers = %q", answers)
	}
}

func TestBreakCommand(t *testing.T) {
	h := newHarness(t)

	h.send(command(alice, "/break meditation"))

	session := h.active(t, alice, domain.SessionKindBreak)
	if session == nil {
		t.Fatal("no active break")
	}
	if session.DurationMinutes != 10 {
		t.Errorf("duration = %d, want 10", session.DurationMinutes)
	}
	if _, ok := h.api.findText(alice, "Meditation break until 10:10"); !ok {
		t.Errorf("last message = %q", h.api.lastText(alice))
	}

	h.send(command(alice, "/break nap"))
	if got := h.api.lastText(alice); !strings.Contains(got, "unknown break type") {
		t.Errorf("last message = %q", got)
	}
}

func TestCancelCommand(t *testing.T) {
	h := newHarness(t)

	h.send(command(alice, "/cancel"))
	if got := h.api.lastText(alice); !strings.Contains(got, "Nothing to cancel") {
		t.Errorf("last message = %q", got)
	}

	h.send(command(alice, "/focus"))
	h.send(command(alice, "/cancel"))
	if h.active(t, alice, domain.SessionKindFocus) != nil {
		t.Fatal("focus still active")
	}
	if got := h.api.lastText(alice); !strings.Contains(got, "Focus session cancelled") {
		t.Errorf("last message = %q", got)
	}
}

func TestMeetingAndSlotCommands(t *testing.T) {
	h := newHarness(t)

	h.send(command(alice, "/meeting 10:30 12:00 Planning"))
	if got := h.api.lastText(alice); !strings.Contains(got, `Added "Planning" 10:30-12:00`) {
		t.Fatalf("last message = %q", got)
	}

	h.send(command(alice, "/slot 30 walk"))
	got := h.api.lastText(alice)
	if !strings.Contains(got, "Free slots today") {
		t.Fatalf("last message = %q", got)
	}
	// the gap before the meeting is only 30 minutes long
	if !strings.Contains(got, "10:00–10:30") {
		t.Errorf("slots = %q", got)
	}
	if strings.Contains(got, "11:00–11:30") {
		t.Errorf("slot overlaps the meeting: %q", got)
	}
}

func TestSlotCommandInvalid(t *testing.T) {
	h := newHarness(t)
	for _, text := range []string{"/slot", "/slot ten", "/slot 30 skydiving", "/slot 0"} {
		h.send(command(alice, text))
		if got := h.api.lastText(alice); !strings.Contains(got, "⚠️") {
			t.Errorf("%s: last message = %q", text, got)
		}
	}
}

func TestHoursAndTimezone(t *testing.T) {
	h := newHarness(t)
	h.send(command(alice, "/start"))

	h.send(command(alice, "/hours 8 16"))
	if got := h.api.lastText(alice); !strings.Contains(got, "08:00-16:00") {
		t.Errorf("last message = %q", got)
	}
	h.send(command(alice, "/hours 18 9"))
	if got := h.api.lastText(alice); !strings.Contains(got, "Usage: /hours") {
		t.Errorf("last message = %q", got)
	}
	h.send(command(alice, "/timezone Mars/Olympus"))
	if got := h.api.lastText(alice); !strings.Contains(got, "unknown time zone") {
		t.Errorf("last message = %q", got)
	}
}

func TestStartTracksUser(t *testing.T) {
	h := newHarness(t)
	h.send(command(alice, "/start"))

	if !h.bot.monitor.Tracked(alice) {
		t.Fatal("user not tracked after /start")
	}
	msgs := h.api.messages(alice)
	if _, ok := msgs[0].ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup); !ok {
		t.Errorf("reply markup = %T", msgs[0].ReplyMarkup)
	}

	h.send(command(alice, "/status"))
	if got := h.api.lastText(alice); !strings.Contains(got, "Break reminders are on") {
		t.Errorf("status = %q", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	h.send(command(alice, "/dance"))
	if got := h.api.lastText(alice); !strings.Contains(got, "Unknown command") {
		t.Errorf("last message = %q", got)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.bot.Start(ctx) }()

	h.api.updates <- command(alice, "/help")
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}
	h.api.mu.Lock()
	stopped := h.api.stopped
	h.api.mu.Unlock()
	if !stopped {
		t.Error("updates were not stopped")
	}
}
