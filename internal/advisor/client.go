// Package advisor is an HTTP client for an external slot-ranking service.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/slotfinder"
)

const rankPath = "v1/rank-slots"

// Client calls the advisor's ranking endpoint. It implements slotfinder.Advisor.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		Timeout:    timeout,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("advisor error: status=%d body=%s", e.StatusCode, e.Body)
}

type meetingPayload struct {
	Title         string    `json:"title"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Duration      int       `json:"duration_minutes"`
	AttendeeCount int       `json:"attendee_count"`
	MeetingType   string    `json:"meeting_type,omitempty"`
}

type rankRequest struct {
	Meetings       []meetingPayload `json:"meetings"`
	Duration       int              `json:"duration_minutes"`
	ActivityType   string           `json:"activity_type"`
	TimePreference string           `json:"time_preference"`
	Now            time.Time        `json:"now"`
	WorkStart      time.Time        `json:"work_start"`
	WorkEnd        time.Time        `json:"work_end"`
}

// RankSlots asks the advisor for ranked slots. Transport failures, non-2xx
// answers and undecodable bodies all wrap domain.ErrAdvisorUnavailable.
func (c *Client) RankSlots(ctx context.Context, meetings []domain.Meeting, req domain.ActivityRequest) (slotfinder.Ranking, error) {
	body := rankRequest{
		Meetings:       make([]meetingPayload, 0, len(meetings)),
		Duration:       req.DurationMinutes,
		ActivityType:   string(req.ActivityType),
		TimePreference: string(req.TimePreference),
		Now:            req.Now,
		WorkStart:      req.WorkStart,
		WorkEnd:        req.WorkEnd,
	}
	for _, m := range meetings {
		body.Meetings = append(body.Meetings, meetingPayload{
			Title:         m.Title,
			StartTime:     m.StartTime,
			EndTime:       m.EndTime,
			Duration:      m.DurationMinutes,
			AttendeeCount: m.AttendeeCount,
			MeetingType:   m.MeetingType,
		})
	}

	var resp slotfinder.Ranking
	if err := c.do(ctx, http.MethodPost, rankPath, body, &resp); err != nil {
		return slotfinder.Ranking{}, fmt.Errorf("%w: %w", domain.ErrAdvisorUnavailable, err)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.BaseURL == "" {
		return errors.New("advisor url is not configured")
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
