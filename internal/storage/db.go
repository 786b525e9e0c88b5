package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claude/freecoach/internal/models"
)

// DB is the Postgres backend.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new DB with a connection pool.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// InsertSession stores a logged session. Re-inserting an id is a no-op.
func (db *DB) InsertSession(ctx context.Context, s models.Session) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, date, minutes, rpe, intensity, template_id, stopped_early)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT DO NOTHING`,
		s.ID, s.UserID, s.Date, s.Minutes, s.RPE, string(s.Intensity), s.TemplateID, s.StoppedEarly)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// QuerySessions retrieves a user's sessions in [start, end).
func (db *DB) QuerySessions(ctx context.Context, userID int, start, end time.Time) ([]models.Session, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, date, minutes, rpe, intensity, template_id, stopped_early
		 FROM sessions
		 WHERE user_id = $1 AND date >= $2 AND date < $3
		 ORDER BY date ASC`,
		userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		var s models.Session
		var intensity string
		if err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.Minutes, &s.RPE, &intensity, &s.TemplateID, &s.StoppedEarly); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		s.Intensity = models.Intensity(intensity)
		result = append(result, s)
	}
	return result, rows.Err()
}

// InsertRecoveryEvent appends to the recovery log.
func (db *DB) InsertRecoveryEvent(ctx context.Context, e models.RecoveryEvent) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO recovery_events (id, user_id, date, accepted, type)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.ID, e.UserID, e.Date, e.Accepted, string(e.Type))
	if err != nil {
		return fmt.Errorf("inserting recovery event: %w", err)
	}
	return nil
}

// ListRecoveryEvents retrieves a user's events dated after since.
func (db *DB) ListRecoveryEvents(ctx context.Context, userID int, since time.Time) ([]models.RecoveryEvent, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, date, accepted, type
		 FROM recovery_events
		 WHERE user_id = $1 AND date > $2
		 ORDER BY date ASC`,
		userID, since)
	if err != nil {
		return nil, fmt.Errorf("querying recovery events: %w", err)
	}
	defer rows.Close()

	var result []models.RecoveryEvent
	for rows.Next() {
		var e models.RecoveryEvent
		var typ string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Date, &e.Accepted, &typ); err != nil {
			return nil, fmt.Errorf("scanning recovery event: %w", err)
		}
		e.Type = models.RecoveryType(typ)
		result = append(result, e)
	}
	return result, rows.Err()
}

// MarkRecoveryAccepted sets the accepted flag on one of a user's events.
func (db *DB) MarkRecoveryAccepted(ctx context.Context, userID int, id uuid.UUID, accepted bool) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE recovery_events SET accepted = $3 WHERE id = $1 AND user_id = $2`,
		id, userID, accepted)
	if err != nil {
		return fmt.Errorf("updating recovery event %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recovery event %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetSuggestion looks up a cached coach suggestion.
func (db *DB) GetSuggestion(ctx context.Context, key string) (models.Suggestion, error) {
	var s models.Suggestion
	err := db.Pool.QueryRow(ctx,
		`SELECT key, text, source, created_at FROM suggestions WHERE key = $1`,
		key).Scan(&s.Key, &s.Text, &s.Source, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Suggestion{}, ErrNotFound
	}
	if err != nil {
		return models.Suggestion{}, fmt.Errorf("querying suggestion: %w", err)
	}
	return s, nil
}

// PutSuggestion caches a coach suggestion, replacing any previous text.
func (db *DB) PutSuggestion(ctx context.Context, s models.Suggestion) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO suggestions (key, text, source, created_at)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (key) DO UPDATE SET text = EXCLUDED.text, source = EXCLUDED.source, created_at = EXCLUDED.created_at`,
		s.Key, s.Text, s.Source, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("storing suggestion: %w", err)
	}
	return nil
}
