// Package httpapi exposes slot search and focus sessions to a dashboard.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/glebk/wellness-bot/internal/clock"
	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/service"
	"github.com/glebk/wellness-bot/internal/slotfinder"
	"github.com/glebk/wellness-bot/internal/timewindow"
)

// Config for the HTTP API handler.
type Config struct {
	Sessions *service.SessionService
	Users    *service.UserService
	Planner  *slotfinder.Planner
	Meetings domain.MeetingRepository
	Clock    clock.Clock
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"active_session_conflict"`
	Message string         `json:"message" example:"active focus session already exists"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError is the {"error":{code,message}} envelope every failure uses.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type server struct {
	Config
}

// New returns an HTTP handler exposing the API.
func New(cfg Config) http.Handler {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	s := &server{Config: cfg}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// malformed paths, queries and bodies are plain bad requests
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	hcfg := huma.DefaultConfig("Wellness Bot API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	s.registerHealth(api)
	s.registerSlots(group)
	s.registerFocus(group)
	s.registerSessions(group)
	return router
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps service errors onto the envelope
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.Is(err, domain.ErrActiveSessionConflict):
		return newAPIError(http.StatusConflict, "active_session_conflict", err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrStorageUnavailable):
		return newAPIError(http.StatusServiceUnavailable, "storage_unavailable", err.Error(), nil)
	default:
		log.Printf("httpapi: %v", err)
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusServiceUnavailable:
		return "storage_unavailable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

var commonErrors = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusServiceUnavailable,
	http.StatusInternalServerError,
}

type userPath struct {
	UserID int64 `path:"userID" minimum:"1" doc:"Telegram user id"`
}

type healthOutput struct {
	Body HealthResponse
}

type slotsInput struct {
	UserID int64 `path:"userID" minimum:"1"`
	Body   SlotRequest
}

type slotsOutput struct {
	Body SlotsResponse
}

type startFocusInput struct {
	UserID int64 `path:"userID" minimum:"1"`
	Body   StartFocusRequest
}

type sessionOutput struct {
	Warning string `header:"Warning"`
	Body    SessionResponse
}

type sessionPath struct {
	SessionID string `path:"sessionID"`
}

type listSessionsInput struct {
	UserID int64  `path:"userID" minimum:"1"`
	Since  string `query:"since" doc:"RFC 3339 lower bound, defaults to the start of today"`
}

type sessionListOutput struct {
	Body []SessionResponse
}

func (s *server) registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*healthOutput, error) {
		return &healthOutput{Body: HealthResponse{Status: "ok", Time: s.Clock.Now()}}, nil
	})
}

func (s *server) registerSlots(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "find-slots",
		Method:      http.MethodPost,
		Path:        "/users/{userID}/slots",
		Summary:     "Find free slots for an activity today",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *slotsInput) (*slotsOutput, error) {
		now, startHour, endHour := s.userClock(ctx, input.UserID)
		req := domain.ActivityRequest{
			DurationMinutes: input.Body.DurationMinutes,
			ActivityType:    domain.ActivityType(input.Body.ActivityType),
			TimePreference:  domain.TimePreference(input.Body.TimePreference),
			Now:             now,
			WorkStart:       timewindow.On(now, startHour, 0),
			WorkEnd:         timewindow.On(now, endHour, 0),
		}

		meetings, err := s.Meetings.GetMeetingsForUserOnDate(ctx, input.UserID, now)
		if err != nil {
			return nil, handleError(fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err))
		}
		result, err := s.Planner.Plan(ctx, meetings, req)
		if err != nil {
			return nil, handleError(err)
		}
		return &slotsOutput{Body: slotsResponse(result)}, nil
	})
}

func (s *server) registerFocus(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-focus",
		Method:        http.MethodPost,
		Path:          "/users/{userID}/focus",
		Summary:       "Start or schedule a focus session",
		DefaultStatus: http.StatusCreated,
		Errors:        append([]int{http.StatusConflict}, commonErrors...),
	}, func(ctx context.Context, input *startFocusInput) (*sessionOutput, error) {
		now, _, _ := s.userClock(ctx, input.UserID)
		start, err := parseStart(input.Body.StartTime, now)
		if err != nil {
			return nil, handleError(err)
		}

		session, err := s.Sessions.Create(ctx, service.CreateSessionInput{
			UserID:          input.UserID,
			Kind:            domain.SessionKindFocus,
			DurationMinutes: input.Body.DurationMinutes,
			StartTime:       start,
		})
		if session == nil {
			return nil, handleError(err)
		}
		out := &sessionOutput{Body: sessionResponse(session)}
		if err != nil {
			// the session exists in memory even though it was not stored
			log.Printf("httpapi: focus session %s: %v", session.ID, err)
			out.Warning = `199 - "session not persisted"`
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "end-focus",
		Method:      http.MethodPost,
		Path:        "/users/{userID}/focus/end",
		Summary:     "End the active focus session",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *userPath) (*sessionOutput, error) {
		session, err := s.Sessions.EndActive(ctx, input.UserID, domain.SessionKindFocus)
		if session == nil {
			return nil, handleError(err)
		}
		return &sessionOutput{Body: sessionResponse(session)}, nil
	})
}

func (s *server) registerSessions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/users/{userID}/sessions",
		Summary:     "List a user's sessions",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *listSessionsInput) (*sessionListOutput, error) {
		since := timewindow.StartOfDay(s.Clock.Now())
		if input.Since != "" {
			var err error
			since, err = time.Parse(time.RFC3339, input.Since)
			if err != nil {
				return nil, handleError(fmt.Errorf("%w: since must be RFC 3339", domain.ErrInvalidRequest))
			}
		}

		sessions, err := s.Sessions.ListSessions(ctx, input.UserID, since)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]SessionResponse, 0, len(sessions))
		for _, sess := range sessions {
			out = append(out, sessionResponse(sess))
		}
		return &sessionListOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-session",
		Method:      http.MethodDelete,
		Path:        "/sessions/{sessionID}",
		Summary:     "Cancel a scheduled or active session",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *sessionPath) (*sessionOutput, error) {
		session, err := s.Sessions.Cancel(ctx, input.SessionID)
		if session == nil {
			return nil, handleError(err)
		}
		return &sessionOutput{Body: sessionResponse(session)}, nil
	})
}

// userClock returns now in the user's zone and their work hours
func (s *server) userClock(ctx context.Context, userID int64) (time.Time, int, int) {
	user, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		log.Printf("httpapi: failed to get user %d: %v", userID, err)
	}
	startHour, endHour := s.Users.WorkHours(user)
	return s.Clock.Now().In(s.Users.Location(user)), startHour, endHour
}

func parseStart(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return timewindow.ParseTimeOfDay(raw, now)
}
