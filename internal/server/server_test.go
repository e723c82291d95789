package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liveledger/internal/match"
	"github.com/roach88/liveledger/internal/store"
)

var kickoff = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*store.Store, *httptest.Server) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "server.db"),
		store.WithIDGenerator(match.NewFixedGenerator("m")))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv := httptest.NewServer(New(st).Handler())
	t.Cleanup(srv.Close)
	return st, srv
}

func doJSON(t *testing.T, method, url string, body any, header http.Header) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createMatch(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches", match.LiveMatch{
		HomeTeamID: "home", AwayTeamID: "away", StartTime: kickoff,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[CreatedBody](t, resp).ID
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMatchCRUD(t *testing.T) {
	_, srv := newTestServer(t)
	id := createMatch(t, srv)
	assert.Equal(t, "m-1", id)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/matches/"+id, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decodeBody[match.LiveMatch](t, resp)
	assert.Equal(t, match.StatusScheduled, m.Status)
	assert.Empty(t, m.Events)

	status := match.StatusInProgress
	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/v1/matches/"+id, match.Patch{Status: &status}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/matches?status=in_progress", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[[]match.LiveMatch](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestAppendEvent_Idempotent(t *testing.T) {
	_, srv := newTestServer(t)
	id := createMatch(t, srv)

	ev := match.Event{ID: "ev-1", Type: match.EventGoal, TeamID: "home", Minute: 23, Timestamp: kickoff, CreatedAt: kickoff}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+id+"/events", ev, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, decodeBody[AppendedBody](t, resp).Inserted)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/matches/"+id+"/events", ev, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeBody[AppendedBody](t, resp).Inserted)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/matches/"+id, nil, nil)
	m := decodeBody[match.LiveMatch](t, resp)
	assert.Equal(t, 1, m.Stats.HomeTeam.Goals)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/matches/"+id+"/events", nil, nil)
	events := decodeBody[[]match.Event](t, resp)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-1", events[0].ID)
}

func TestErrorMapping(t *testing.T) {
	_, srv := newTestServer(t)
	id := createMatch(t, srv)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		header http.Header
		status int
		code   match.ErrorCode
	}{
		{"missing match", http.MethodGet, "/api/v1/matches/nope", nil, nil, http.StatusNotFound, match.ErrCodeNotFound},
		{"invalid create", http.MethodPost, "/api/v1/matches", match.LiveMatch{HomeTeamID: "a"}, nil, http.StatusBadRequest, match.ErrCodeValidation},
		{"create already started", http.MethodPost, "/api/v1/matches",
			match.LiveMatch{HomeTeamID: "a", AwayTeamID: "b", StartTime: kickoff, Status: match.StatusInProgress}, nil, http.StatusBadRequest, match.ErrCodeValidation},
		{"create over existing id", http.MethodPost, "/api/v1/matches",
			match.LiveMatch{ID: id, HomeTeamID: "a", AwayTeamID: "b", StartTime: kickoff}, nil, http.StatusBadRequest, match.ErrCodeValidation},
		{"unknown team", http.MethodPost, "/api/v1/matches/" + id + "/events",
			match.Event{ID: "ev-x", Type: match.EventGoal, TeamID: "ghost"}, nil, http.StatusBadRequest, match.ErrCodeValidation},
		{"mismatched match id", http.MethodPost, "/api/v1/matches/" + id + "/events",
			match.Event{ID: "ev-y", MatchID: "other", Type: match.EventGoal, TeamID: "home"}, nil, http.StatusBadRequest, match.ErrCodeValidation},
		{"bad limit", http.MethodGet, "/api/v1/matches?limit=-2", nil, nil, http.StatusBadRequest, match.ErrCodeValidation},
		{"delete without role", http.MethodDelete, "/api/v1/matches/" + id, nil, nil, http.StatusForbidden, match.ErrCodeForbidden},
		{"delete as referee", http.MethodDelete, "/api/v1/matches/" + id, nil,
			http.Header{RoleHeader: {"referee"}}, http.StatusForbidden, match.ErrCodeForbidden},
		{"delete missing as admin", http.MethodDelete, "/api/v1/matches/nope", nil,
			http.Header{RoleHeader: {"admin"}}, http.StatusNotFound, match.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, tt.method, srv.URL+tt.path, tt.body, tt.header)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeBody[ErrorBody](t, resp)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestDelete_Admin(t *testing.T) {
	_, srv := newTestServer(t)
	id := createMatch(t, srv)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/matches/"+id, nil, http.Header{RoleHeader: {"admin"}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/matches/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusFor(match.NewTransitionError("m", match.StatusCompleted, match.StatusInProgress)))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(match.ErrOffline))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(assert.AnError))
}

func TestStreamEvents(t *testing.T) {
	st, srv := newTestServer(t)
	id := createMatch(t, srv)
	ctx := context.Background()

	_, err := st.AppendEvent(ctx, match.Event{ID: "ev-1", MatchID: id, Type: match.EventGoal, TeamID: "home", Minute: 3})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/matches/" + id + "/events/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first match.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "ev-1", first.ID)

	_, err = st.AppendEvent(ctx, match.Event{ID: "ev-2", MatchID: id, Type: match.EventYellowCard, TeamID: "away", Minute: 40})
	require.NoError(t, err)

	var second match.Event
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "ev-2", second.ID)
	assert.Equal(t, match.EventYellowCard, second.Type)
}

func TestStreamMatch_NotFound(t *testing.T) {
	_, srv := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/matches/nope/stream"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
