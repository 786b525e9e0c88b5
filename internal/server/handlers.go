package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/service"
	"github.com/claude/freecoach/internal/storage"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"user_id": userIDFromContext(r)})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.svc.Templates(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var rc models.RankContext
	if !decodeBody(w, r, &rc) {
		return
	}
	ranked, err := s.svc.Rank(r.Context(), userIDFromContext(r), rc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req service.PlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.Plan(r.Context(), userIDFromContext(r), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	sig, err := s.svc.Signals(r.Context(), userIDFromContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	sessions, err := s.svc.Sessions(r.Context(), userIDFromContext(r), start, end)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleLogSession(w http.ResponseWriter, r *http.Request) {
	var in models.Session
	if !decodeBody(w, r, &in) {
		return
	}
	out, err := s.svc.LogSession(r.Context(), userIDFromContext(r), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

type recoveryCheckRequest struct {
	Signals *models.LoadSignals `json:"signals,omitempty"`
}

func (s *Server) handleRecoveryCheck(w http.ResponseWriter, r *http.Request) {
	var req recoveryCheckRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.CheckRecovery(r.Context(), userIDFromContext(r), req.Signals)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecoveryEvents(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days must be a positive integer"})
			return
		}
		days = n
	}
	events, err := s.svc.RecoveryHistory(r.Context(), userIDFromContext(r), days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if events == nil {
		events = []models.RecoveryEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

type acceptRequest struct {
	Accepted *bool `json:"accepted,omitempty"`
}

func (s *Server) handleRecoveryAccept(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event ID"})
		return
	}
	var req acceptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	accepted := true
	if req.Accepted != nil {
		accepted = *req.Accepted
	}
	if err := s.svc.AcceptRecovery(r.Context(), userIDFromContext(r), id, accepted); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "accepted": accepted})
}

func (s *Server) handleCoach(w http.ResponseWriter, r *http.Request) {
	var req service.CoachRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sug, err := s.svc.CoachText(r.Context(), userIDFromContext(r), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sug)
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// at its zero value. It writes a 400 and returns false on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
	return false
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if endStr == "" {
		end = time.Now()
	} else if end, err = parseFlexTime(endStr, true); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
	}

	if startStr == "" {
		// Default: last 7 days
		start = end.AddDate(0, 0, -7)
	} else if start, err = parseFlexTime(startStr, false); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
	}
	return start, end, nil
}

// parseFlexTime accepts RFC 3339 or YYYY-MM-DD. A date-only end bound covers
// the whole day.
func parseFlexTime(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24 * time.Hour)
	}
	return t, nil
}
