// Package service composes the catalog, ranking, planning, load signals,
// recovery advice and coach text behind one API shared by the HTTP and MCP
// transports.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/catalog"
	"github.com/claude/freecoach/internal/coach"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/planner"
	"github.com/claude/freecoach/internal/ranking"
	"github.com/claude/freecoach/internal/recovery"
	"github.com/claude/freecoach/internal/signals"
	"github.com/claude/freecoach/internal/storage"
)

// ErrInvalid marks a request the caller must fix.
var ErrInvalid = errors.New("invalid request")

// DefaultMinutes is the plan length used when a request names none.
const DefaultMinutes = 20

// PlanRequest asks for a plan. Minutes falls back to Context.TimeAvailable,
// then DefaultMinutes.
type PlanRequest struct {
	Context models.RankContext `json:"context"`
	Minutes int                `json:"minutes,omitempty"`
}

// PlanResult is a plan together with the ranking it was built from.
type PlanResult struct {
	Plan   models.Plan     `json:"plan"`
	Ranked []models.Ranked `json:"ranked"`
}

// RecoveryResult is an advisor decision. EventID is set when the decision
// was shown and therefore logged.
type RecoveryResult struct {
	models.RecoveryDecision
	EventID *uuid.UUID `json:"event_id,omitempty"`
}

// CoachRequest asks for coach text. Without a plan, one is built from
// Context and Minutes first. Date defaults to today.
type CoachRequest struct {
	Date    string             `json:"date,omitempty"`
	Context models.RankContext `json:"context"`
	Plan    *models.Plan       `json:"plan,omitempty"`
	Minutes int                `json:"minutes,omitempty"`
}

// Service is safe for concurrent use.
type Service struct {
	catalog *catalog.Catalog
	engine  *ranking.Engine
	store   storage.Store
	advisor *recovery.Advisor
	coach   *coach.Coach
	log     *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	userLocks map[int]*sync.Mutex
}

// New creates a Service.
func New(cat *catalog.Catalog, store storage.Store, c *coach.Coach, log *slog.Logger) *Service {
	return &Service{
		catalog:   cat,
		engine:    ranking.NewEngine(cat),
		store:     store,
		advisor:   recovery.NewAdvisor(store),
		coach:     c,
		log:       log,
		now:       time.Now,
		userLocks: make(map[int]*sync.Mutex),
	}
}

// lockUser serializes read-then-write sequences on one user's recovery log.
func (s *Service) lockUser(userID int) func() {
	s.mu.Lock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Templates lists the catalog.
func (s *Service) Templates(_ context.Context) ([]models.ExerciseTemplate, error) {
	return s.catalog.Templates(), nil
}

// Rank scores the catalog for rc, computing load signals from the user's
// sessions when rc carries none.
func (s *Service) Rank(ctx context.Context, userID int, rc models.RankContext) ([]models.Ranked, error) {
	rc, err := s.withSignals(ctx, userID, rc)
	if err != nil {
		return nil, err
	}
	return s.engine.Rank(rc), nil
}

// Plan ranks and packs a plan.
func (s *Service) Plan(ctx context.Context, userID int, req PlanRequest) (PlanResult, error) {
	ranked, err := s.Rank(ctx, userID, req.Context)
	if err != nil {
		return PlanResult{}, err
	}
	minutes := req.Minutes
	if minutes <= 0 {
		minutes = req.Context.TimeAvailable
	}
	if minutes <= 0 {
		minutes = DefaultMinutes
	}
	return PlanResult{Plan: planner.BuildWithFallback(ranked, minutes, s.catalog.Templates()), Ranked: ranked}, nil
}

// Signals computes the user's load signals from stored sessions.
func (s *Service) Signals(ctx context.Context, userID int) (models.LoadSignals, error) {
	now := s.now()
	sessions, err := s.store.QuerySessions(ctx, userID, now.Add(-signals.Lookback-24*time.Hour), now.Add(time.Second))
	if err != nil {
		return models.LoadSignals{}, fmt.Errorf("loading sessions: %w", err)
	}
	return signals.Compute(sessions, now), nil
}

// CheckRecovery asks the advisor whether to suggest recovery. Shown
// decisions are appended to the recovery log so later checks see them.
// A nil load uses signals computed from stored sessions.
func (s *Service) CheckRecovery(ctx context.Context, userID int, load *models.LoadSignals) (RecoveryResult, error) {
	var l models.LoadSignals
	if load != nil {
		l = *load
	} else {
		var err error
		if l, err = s.Signals(ctx, userID); err != nil {
			return RecoveryResult{}, err
		}
	}

	unlock := s.lockUser(userID)
	defer unlock()

	now := s.now()
	d, err := s.advisor.CheckAt(ctx, userID, l, now)
	if err != nil {
		return RecoveryResult{}, err
	}
	res := RecoveryResult{RecoveryDecision: d}
	if !d.Show {
		return res, nil
	}

	e := models.RecoveryEvent{ID: uuid.New(), UserID: userID, Date: now.UTC(), Type: d.Type}
	if err := s.store.InsertRecoveryEvent(ctx, e); err != nil {
		return RecoveryResult{}, fmt.Errorf("logging recovery suggestion: %w", err)
	}
	res.EventID = &e.ID
	s.log.Info("recovery suggested", "user_id", userID, "type", d.Type, "reason", d.Reason)
	return res, nil
}

// AcceptRecovery records the user's answer to a shown suggestion.
func (s *Service) AcceptRecovery(ctx context.Context, userID int, id uuid.UUID, accepted bool) error {
	return s.store.MarkRecoveryAccepted(ctx, userID, id, accepted)
}

// RecoveryHistory lists suggestions from the last days days.
func (s *Service) RecoveryHistory(ctx context.Context, userID, days int) ([]models.RecoveryEvent, error) {
	if days <= 0 {
		days = 30
	}
	return s.store.ListRecoveryEvents(ctx, userID, s.now().AddDate(0, 0, -days))
}

// LogSession validates and stores a completed workout. Intensity defaults to
// the template's when TemplateID names a catalog entry.
func (s *Service) LogSession(ctx context.Context, userID int, in models.Session) (models.Session, error) {
	if in.Minutes <= 0 {
		return models.Session{}, fmt.Errorf("%w: minutes must be positive", ErrInvalid)
	}
	if in.RPE < 0 || in.RPE > 10 {
		return models.Session{}, fmt.Errorf("%w: rpe must be between 0 and 10", ErrInvalid)
	}

	if in.TemplateID != "" {
		t, ok := s.catalog.Get(in.TemplateID)
		if !ok {
			return models.Session{}, fmt.Errorf("%w: unknown template %q", ErrInvalid, in.TemplateID)
		}
		if in.Intensity == "" {
			in.Intensity = t.Intensity
		}
	}
	if in.Intensity == "" {
		return models.Session{}, fmt.Errorf("%w: intensity or template_id is required", ErrInvalid)
	}
	in.Intensity, _ = models.ParseIntensity(string(in.Intensity))
	if in.Intensity == "" {
		return models.Session{}, fmt.Errorf("%w: unknown intensity", ErrInvalid)
	}

	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if in.Date.IsZero() {
		in.Date = s.now()
	}
	in.UserID = userID

	if err := s.store.InsertSession(ctx, in); err != nil {
		return models.Session{}, err
	}
	return in, nil
}

// Sessions lists the user's sessions in [start, end).
func (s *Service) Sessions(ctx context.Context, userID int, start, end time.Time) ([]models.Session, error) {
	return s.store.QuerySessions(ctx, userID, start, end)
}

// CoachText returns the coach summary for a plan.
func (s *Service) CoachText(ctx context.Context, userID int, req CoachRequest) (models.Suggestion, error) {
	if req.Date == "" {
		req.Date = s.now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return models.Suggestion{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	}

	var plan models.Plan
	if req.Plan != nil {
		plan = *req.Plan
	} else {
		res, err := s.Plan(ctx, userID, PlanRequest{Context: req.Context, Minutes: req.Minutes})
		if err != nil {
			return models.Suggestion{}, err
		}
		plan = res.Plan
	}

	return s.coach.Suggest(ctx, coach.Request{
		UserID:  userID,
		Date:    req.Date,
		Plan:    plan,
		Context: req.Context,
	})
}

func (s *Service) withSignals(ctx context.Context, userID int, rc models.RankContext) (models.RankContext, error) {
	if !rc.Signals.IsZero() {
		return rc, nil
	}
	sig, err := s.Signals(ctx, userID)
	if err != nil {
		return rc, err
	}
	rc.Signals = sig
	return rc, nil
}
