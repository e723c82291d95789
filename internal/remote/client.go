// Package remote implements the match store contract against a server
// reached over HTTP, with websocket subscriptions.
//
// Every failure to reach the server, and every 502, 503 or 504 answer, is
// a connectivity error. Other error answers carry the server's error code
// so callers classify them with the match.IsXxx helpers as if the store
// were local.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/liveledger/internal/match"
)

// RoleHeader carries the operator role for privileged operations.
const RoleHeader = "X-Role"

// Client talks to a match store server.
type Client struct {
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer
	role   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
// Default: a client with a 10s timeout
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRole sets the role sent on privileged requests.
func WithRole(role string) Option {
	return func(c *Client) { c.role = role }
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 10 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Probe checks the server's health endpoint.
func (c *Client) Probe(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) CreateMatch(ctx context.Context, m match.LiveMatch) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/matches", m, &out); err != nil {
		return "", fmt.Errorf("create match: %w", err)
	}
	return out.ID, nil
}

func (c *Client) GetMatch(ctx context.Context, id string) (*match.LiveMatch, error) {
	var m match.LiveMatch
	if err := c.do(ctx, http.MethodGet, "/api/v1/matches/"+url.PathEscape(id), nil, &m); err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	if m.Events == nil {
		m.Events = []match.Event{}
	}
	return &m, nil
}

func (c *Client) ListMatches(ctx context.Context, f match.Filter) ([]match.LiveMatch, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.ClubID != "" {
		q.Set("clubId", f.ClubID)
	}
	if f.TournamentID != "" {
		q.Set("tournamentId", f.TournamentID)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/api/v1/matches"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	out := []match.LiveMatch{}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return out, nil
}

func (c *Client) Events(ctx context.Context, matchID string) ([]match.Event, error) {
	out := []match.Event{}
	if err := c.do(ctx, http.MethodGet, "/api/v1/matches/"+url.PathEscape(matchID)+"/events", nil, &out); err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	return out, nil
}

func (c *Client) UpdateMatch(ctx context.Context, id string, p match.Patch) error {
	if err := c.do(ctx, http.MethodPatch, "/api/v1/matches/"+url.PathEscape(id), p, nil); err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	return nil
}

func (c *Client) DeleteMatch(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/v1/matches/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	return nil
}

func (c *Client) AppendEvent(ctx context.Context, ev match.Event) (bool, error) {
	var out struct {
		Inserted bool `json:"inserted"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/matches/"+url.PathEscape(ev.MatchID)+"/events", ev, &out); err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	return out.Inserted, nil
}

// do sends one request. in, if non-nil, is sent as JSON; out, if non-nil,
// receives the decoded JSON answer.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.role != "" {
		req.Header.Set(RoleHeader, c.role)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return match.NewConnectivityError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// wireError mirrors the server's error envelope.
type wireError struct {
	Error struct {
		Code    match.ErrorCode `json:"code"`
		Message string          `json:"message"`
		MatchID string          `json:"matchId"`
	} `json:"error"`
}

func decodeError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return match.NewConnectivityError(fmt.Errorf("server answered %s", resp.Status))
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var we wireError
	if err := json.Unmarshal(data, &we); err != nil || we.Error.Code == "" {
		return &match.Error{
			Code:    codeForStatus(resp.StatusCode),
			Message: fmt.Sprintf("server answered %s", resp.Status),
		}
	}
	return &match.Error{
		Code:    we.Error.Code,
		Message: we.Error.Message,
		MatchID: we.Error.MatchID,
	}
}

func codeForStatus(status int) match.ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return match.ErrCodeValidation
	case http.StatusForbidden:
		return match.ErrCodeForbidden
	case http.StatusNotFound:
		return match.ErrCodeNotFound
	case http.StatusConflict:
		return match.ErrCodeInvalidTransition
	}
	return ""
}
