// Package coach produces the narrative text shown alongside a plan. Results
// are content-addressed, de-duplicated in flight and debounced per user.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage"
)

const (
	SourceAI        = "ai"
	SourceHeuristic = "heuristic"

	DefaultDebounce = 250 * time.Millisecond
)

// SuggestionStore is the persistent side of the cache.
type SuggestionStore interface {
	GetSuggestion(ctx context.Context, key string) (models.Suggestion, error)
	PutSuggestion(ctx context.Context, s models.Suggestion) error
}

// Request is one coach-text request.
type Request struct {
	UserID  int
	Date    string // YYYY-MM-DD
	Plan    models.Plan
	Context models.RankContext
}

// Coach generates and caches coach text.
type Coach struct {
	store    SuggestionStore
	polisher Polisher
	debounce *Debouncer
	logger   *slog.Logger
	now      func() time.Time

	group singleflight.Group

	mu   sync.RWMutex
	memo map[string]models.Suggestion
}

// New creates a Coach. polisher may be nil, in which case only heuristic
// text is produced. store may be nil for an in-memory cache only.
func New(store SuggestionStore, polisher Polisher, debounce time.Duration, logger *slog.Logger) *Coach {
	return &Coach{
		store:    store,
		polisher: polisher,
		debounce: NewDebouncer(debounce),
		logger:   logger,
		now:      time.Now,
		memo:     make(map[string]models.Suggestion),
	}
}

// Suggest returns coach text for req. Calls from the same user inside the
// debounce window collapse into the last one.
func (c *Coach) Suggest(ctx context.Context, req Request) (models.Suggestion, error) {
	userKey := fmt.Sprintf("user:%d", req.UserID)
	return c.debounce.Do(ctx, userKey, func() (models.Suggestion, error) {
		return c.Lookup(context.WithoutCancel(ctx), req)
	})
}

// Lookup resolves req without debouncing: memory, then store, then a single
// shared generation per key.
func (c *Coach) Lookup(ctx context.Context, req Request) (models.Suggestion, error) {
	key := Key(req.Date, req.Plan, req.Context)

	c.mu.RLock()
	s, ok := c.memo[key]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if c.store != nil {
			s, err := c.store.GetSuggestion(ctx, key)
			if err == nil {
				c.remember(s)
				return s, nil
			}
			if !errors.Is(err, storage.ErrNotFound) {
				c.logger.Warn("coach cache read failed", "key", key, "error", err)
			}
		}

		s, degraded := c.generate(ctx, key, req)
		if degraded {
			return s, nil
		}
		c.remember(s)
		if c.store != nil {
			if err := c.store.PutSuggestion(ctx, s); err != nil {
				c.logger.Warn("coach cache write failed", "key", key, "error", err)
			}
		}
		return s, nil
	})
	if err != nil {
		return models.Suggestion{}, err
	}
	return v.(models.Suggestion), nil
}

// generate reports degraded when the polisher failed; that text is returned
// but not cached so a later request can retry.
func (c *Coach) generate(ctx context.Context, key string, req Request) (s models.Suggestion, degraded bool) {
	s = models.Suggestion{Key: key, CreatedAt: c.now().UTC()}
	if c.polisher != nil {
		text, err := c.polisher.Polish(ctx, systemPrompt, prompt(req.Date, req.Plan, req.Context))
		if err == nil {
			s.Text, s.Source = text, SourceAI
			return s, false
		}
		c.logger.Warn("coach polish failed, using heuristic text", "error", err)
		degraded = true
	}
	s.Text, s.Source = Heuristic(req.Plan, req.Context), SourceHeuristic
	return s, degraded
}

func (c *Coach) remember(s models.Suggestion) {
	c.mu.Lock()
	c.memo[s.Key] = s
	c.mu.Unlock()
}
