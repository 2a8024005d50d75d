package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const wrongPinMessage = "Incorrect PIN."

// ErrWrongPin is returned by Login when the server rejects the submitted PIN
// specifically, as opposed to any other failure.
var ErrWrongPin = errors.New("incorrect pin")

// StatusError describes a non-2xx upstream response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream status %d", e.Code)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Message)
}

// API is the subset of the Waply backend this app calls. Handlers depend on
// this interface so tests can substitute fakes.
type API interface {
	CheckPinStatus(ctx context.Context, urlID string) (PinStatus, error)
	Login(ctx context.Context, urlID, pin string) (string, error)
	SetPin(ctx context.Context, urlID, pin string) error
	ListReminders(ctx context.Context, token string, page int, filter string) ([]Reminder, error)
	UpdateReminder(ctx context.Context, token, id, userInput string, isMeeting bool) error
	DeleteReminder(ctx context.Context, token, id string, isMeeting bool) error
}

// Client talks to the fixed backend host over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client for the given base URL. A zero timeout leaves
// requests unbounded.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CheckPinStatus reports whether a PIN exists for the identifier, plus the
// profile fields forwarded to the PIN pages. The request is uncached.
func (c *Client) CheckPinStatus(ctx context.Context, urlID string) (PinStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/auth/check-pin-status/"+url.PathEscape(urlID), "", nil)
	if err != nil {
		return PinStatus{}, err
	}
	req.Header.Set("Cache-Control", "no-store")

	var status PinStatus
	if err := c.do(req, &status); err != nil {
		return PinStatus{}, err
	}
	return status, nil
}

type loginRequest struct {
	URLID string `json:"urlId"`
	PIN   string `json:"pin"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login submits the 4-digit code and returns the session token on success.
// A wrong-PIN rejection is reported as ErrWrongPin.
func (c *Client) Login(ctx context.Context, urlID, pin string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/auth/login", "", loginRequest{URLID: urlID, PIN: pin})
	if err != nil {
		return "", err
	}

	var res loginResponse
	if err := c.do(req, &res); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Message == wrongPinMessage {
			return "", ErrWrongPin
		}
		return "", err
	}
	return res.Token, nil
}

// SetPin stores a new PIN for the identifier.
func (c *Client) SetPin(ctx context.Context, urlID, pin string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/auth/set-pin/"+url.PathEscape(urlID), "", map[string]string{"pin": pin})
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

type listResponse struct {
	Reminders []Reminder `json:"reminders"`
}

// ListReminders fetches one page of reminders under the given backend filter
// (today, week or month).
func (c *Client) ListReminders(ctx context.Context, token string, page int, filter string) ([]Reminder, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("filter", filter)

	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/reminders?"+q.Encode(), token, nil)
	if err != nil {
		return nil, err
	}

	var res listResponse
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return res.Reminders, nil
}

type updateRequest struct {
	UserInput string `json:"userInput"`
	IsMeeting bool   `json:"isMeeting"`
}

// UpdateReminder tells the server to replace a reminder's schedule with the
// instruction string built from the edit form.
func (c *Client) UpdateReminder(ctx context.Context, token, id, userInput string, isMeeting bool) error {
	req, err := c.newRequest(ctx, http.MethodPut, "/api/v1/reminders/"+url.PathEscape(id), token, updateRequest{UserInput: userInput, IsMeeting: isMeeting})
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// DeleteReminder removes a reminder, carrying the meeting flag the server
// needs to clean up any attached meeting.
func (c *Client) DeleteReminder(ctx context.Context, token, id string, isMeeting bool) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/v1/reminders/"+url.PathEscape(id), token, map[string]bool{"isMeeting": isMeeting})
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// readErrorMessage extracts the server's "message" field when the error body
// is JSON, otherwise returns the raw body text.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(raw))
}
