// Package api is the REST client for the Autumn session service.
package api

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
)

// ErrNotFound reports a distinguishable "not found" response from the
// session service.
var ErrNotFound = errors.New("not found")

// TransportError wraps a network-level failure (DNS, refused connection,
// timeout) as opposed to an answer from the backend. The session liveness
// policy treats the two very differently.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Session is a work session as reported by the timer status endpoint.
type Session struct {
	ID      int     `json:"id"`
	Project string  `json:"project"`
	Active  *bool   `json:"active,omitempty"`
	End     *string `json:"end,omitempty"`
	Elapsed float64 `json:"elapsed"` // minutes
}

// envelope is the common response wrapper used by the timer endpoints.
type envelope struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Session  *Session  `json:"session,omitempty"`
	Sessions []Session `json:"sessions,omitempty"`
	Duration float64   `json:"duration,omitempty"`
}

// Client talks to the session service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a session service client. baseURL must include the
// scheme; a trailing slash is tolerated.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) request(ctx context.Context, method, endpoint string, body any) (*envelope, error) {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("authentication failed: check your API token")
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if env.Error != "" {
			return nil, fmt.Errorf("api error: %s", env.Error)
		}
		return nil, fmt.Errorf("api error: HTTP %d", resp.StatusCode)
	}
	return &env, nil
}

// StartSession starts a new timer for a project.
func (c *Client) StartSession(ctx context.Context, project, note string) (*Session, error) {
	payload := map[string]any{"project": project}
	if note != "" {
		payload["note"] = note
	}

	env, err := c.request(ctx, http.MethodPost, "/api/timer/start/", payload)
	if err != nil {
		return nil, err
	}
	if !env.OK {
		return nil, apiFailure(env)
	}
	if env.Session == nil {
		return nil, fmt.Errorf("api error: start returned no session")
	}
	return env.Session, nil
}

// StopSession stops the timer for the given session id.
func (c *Client) StopSession(ctx context.Context, sessionID int) error {
	env, err := c.request(ctx, http.MethodPost, "/api/timer/stop/", map[string]any{"session_id": sessionID})
	if err != nil {
		return err
	}
	if !env.OK {
		return apiFailure(env)
	}
	return nil
}

// ActiveSessions returns all currently active sessions. It never filters
// by id server-side: an id-scoped query that 404s is indistinguishable
// from a transient failure, so callers search the full list instead.
func (c *Client) ActiveSessions(ctx context.Context) ([]Session, error) {
	env, err := c.request(ctx, http.MethodGet, "/api/timer/status/", nil)
	if err != nil {
		return nil, err
	}
	if !env.OK {
		return nil, apiFailure(env)
	}
	if env.Sessions != nil {
		return env.Sessions, nil
	}
	if env.Session != nil {
		return []Session{*env.Session}, nil
	}
	return nil, nil
}

func apiFailure(env *envelope) error {
	if env.Error != "" {
		if strings.Contains(strings.ToLower(env.Error), "not found") {
			return fmt.Errorf("%s: %w", env.Error, ErrNotFound)
		}
		return fmt.Errorf("api error: %s", env.Error)
	}
	return fmt.Errorf("api error: request not ok")
}
