package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/models"
)

// Memory is an in-process backend for tests and throwaway servers.
type Memory struct {
	mu          sync.RWMutex
	sessions    map[uuid.UUID]models.Session
	events      []models.RecoveryEvent
	suggestions map[string]models.Suggestion
}

func NewMemory() *Memory {
	return &Memory{
		sessions:    make(map[uuid.UUID]models.Session),
		suggestions: make(map[string]models.Suggestion),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) InsertSession(_ context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		m.sessions[s.ID] = s
	}
	return nil
}

func (m *Memory) QuerySessions(_ context.Context, userID int, start, end time.Time) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Session
	for _, s := range m.sessions {
		if s.UserID == userID && !s.Date.Before(start) && s.Date.Before(end) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) InsertRecoveryEvent(_ context.Context, e models.RecoveryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.events {
		if x.ID == e.ID {
			return fmt.Errorf("inserting recovery event: duplicate id %s", e.ID)
		}
	}
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) ListRecoveryEvents(_ context.Context, userID int, since time.Time) ([]models.RecoveryEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.RecoveryEvent
	for _, e := range m.events {
		if e.UserID == userID && e.Date.After(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) MarkRecoveryAccepted(_ context.Context, userID int, id uuid.UUID, accepted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == id && m.events[i].UserID == userID {
			m.events[i].Accepted = accepted
			return nil
		}
	}
	return fmt.Errorf("recovery event %s: %w", id, ErrNotFound)
}

func (m *Memory) GetSuggestion(_ context.Context, key string) (models.Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.suggestions[key]
	if !ok {
		return models.Suggestion{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) PutSuggestion(_ context.Context, s models.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suggestions[s.Key] = s
	return nil
}
