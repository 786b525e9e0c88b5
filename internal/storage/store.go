// Package storage persists logged sessions, the recovery suggestion log and
// cached coach suggestions.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store is implemented by every backend.
type Store interface {
	InsertSession(ctx context.Context, s models.Session) error
	// QuerySessions returns a user's sessions with start <= date < end,
	// oldest first.
	QuerySessions(ctx context.Context, userID int, start, end time.Time) ([]models.Session, error)

	// InsertRecoveryEvent appends to the recovery log. Events are never
	// deleted; only their accepted flag changes.
	InsertRecoveryEvent(ctx context.Context, e models.RecoveryEvent) error
	// ListRecoveryEvents returns a user's events dated after since, oldest first.
	ListRecoveryEvents(ctx context.Context, userID int, since time.Time) ([]models.RecoveryEvent, error)
	MarkRecoveryAccepted(ctx context.Context, userID int, id uuid.UUID, accepted bool) error

	GetSuggestion(ctx context.Context, key string) (models.Suggestion, error)
	PutSuggestion(ctx context.Context, s models.Suggestion) error

	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver string // postgres, sqlite or memory
	DSN    string // postgres connection string
	Path   string // sqlite database file
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "postgres":
		db, err := New(ctx, opts.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "sqlite":
		db, err := OpenSQLite(opts.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
}
