package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/liveledger/internal/live"
	"github.com/roach88/liveledger/internal/match"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a match.Error across the wire.
type ErrorDetail struct {
	Code    match.ErrorCode `json:"code"`
	Message string          `json:"message"`
	MatchID string          `json:"matchId,omitempty"`
}

// CreatedBody answers a match create.
type CreatedBody struct {
	ID string `json:"id"`
}

// AppendedBody answers an event append. Inserted is false for a replayed
// event id.
type AppendedBody struct {
	Inserted bool `json:"inserted"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondError(w, match.NewConnectivityError(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	var m match.LiveMatch
	if !decode(w, r, &m) {
		return
	}
	id, err := s.store.CreateMatch(r.Context(), m)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, CreatedBody{ID: id})
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := match.Filter{
		Status:       match.Status(q.Get("status")),
		ClubID:       q.Get("clubId"),
		TournamentID: q.Get("tournamentId"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, match.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		f.Limit = n
	}
	if f.Status != "" && !f.Status.Valid() {
		respondError(w, match.NewValidationError("status", "unknown status "+string(f.Status)))
		return
	}

	matches, err := s.store.ListMatches(r.Context(), f)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, matches)
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.GetMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) updateMatch(w http.ResponseWriter, r *http.Request) {
	var p match.Patch
	if !decode(w, r, &p) {
		return
	}
	if err := s.store.UpdateMatch(r.Context(), chi.URLParam(r, "id"), p); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteMatch(w http.ResponseWriter, r *http.Request) {
	role := r.Header.Get(RoleHeader)
	if !live.CanDelete(s.auth, role) {
		respondError(w, match.NewForbiddenError(role, "delete matches"))
		return
	}
	if err := s.store.DeleteMatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.Events(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (s *Server) appendEvent(w http.ResponseWriter, r *http.Request) {
	var ev match.Event
	if !decode(w, r, &ev) {
		return
	}
	id := chi.URLParam(r, "id")
	if ev.MatchID == "" {
		ev.MatchID = id
	}
	if ev.MatchID != id {
		respondError(w, match.NewValidationError("matchId", "does not match the URL"))
		return
	}

	inserted, err := s.store.AppendEvent(r.Context(), ev)
	if err != nil {
		respondError(w, err)
		return
	}
	status := http.StatusCreated
	if !inserted {
		status = http.StatusOK
	}
	respondJSON(w, status, AppendedBody{Inserted: inserted})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		respondError(w, match.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err)))
		return false
	}
	return true
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch match.CodeOf(err) {
	case match.ErrCodeValidation:
		return http.StatusBadRequest
	case match.ErrCodeForbidden:
		return http.StatusForbidden
	case match.ErrCodeNotFound:
		return http.StatusNotFound
	case match.ErrCodeInvalidTransition:
		return http.StatusConflict
	case match.ErrCodeConnectivity:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	detail := ErrorDetail{Code: match.CodeOf(err), Message: err.Error()}

	var me *match.Error
	if errors.As(err, &me) {
		detail.Message = me.Message
		detail.MatchID = me.MatchID
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}
	respondJSON(w, status, ErrorBody{Error: detail})
}
