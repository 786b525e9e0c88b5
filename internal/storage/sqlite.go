package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/claude/freecoach/internal/models"
)

// Fixed-width UTC timestamps so text comparison orders them correctly.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	user_id       INTEGER NOT NULL,
	date          TEXT NOT NULL,
	minutes       INTEGER NOT NULL,
	rpe           REAL NOT NULL,
	intensity     TEXT NOT NULL,
	template_id   TEXT NOT NULL DEFAULT '',
	stopped_early INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS sessions_user_date_idx ON sessions (user_id, date);

CREATE TABLE IF NOT EXISTS recovery_events (
	id       TEXT PRIMARY KEY,
	user_id  INTEGER NOT NULL,
	date     TEXT NOT NULL,
	accepted INTEGER NOT NULL DEFAULT 0,
	type     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS recovery_events_user_date_idx ON recovery_events (user_id, date);

CREATE TABLE IF NOT EXISTS suggestions (
	key        TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	source     TEXT NOT NULL,
	created_at TEXT NOT NULL
);`

// SQLite is the single-file backend for local use.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(sqliteTime, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", v, err)
	}
	return t, nil
}

func (s *SQLite) InsertSession(ctx context.Context, x models.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, user_id, date, minutes, rpe, intensity, template_id, stopped_early)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		x.ID.String(), x.UserID, formatTime(x.Date), x.Minutes, x.RPE, string(x.Intensity), x.TemplateID, x.StoppedEarly)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (s *SQLite) QuerySessions(ctx context.Context, userID int, start, end time.Time) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, date, minutes, rpe, intensity, template_id, stopped_early
		 FROM sessions
		 WHERE user_id = ? AND date >= ? AND date < ?
		 ORDER BY date ASC`,
		userID, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		var x models.Session
		var date, intensity string
		if err := rows.Scan(&x.ID, &x.UserID, &date, &x.Minutes, &x.RPE, &intensity, &x.TemplateID, &x.StoppedEarly); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if x.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		x.Intensity = models.Intensity(intensity)
		result = append(result, x)
	}
	return result, rows.Err()
}

func (s *SQLite) InsertRecoveryEvent(ctx context.Context, e models.RecoveryEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recovery_events (id, user_id, date, accepted, type) VALUES (?, ?, ?, ?, ?)`,
		e.ID.String(), e.UserID, formatTime(e.Date), e.Accepted, string(e.Type))
	if err != nil {
		return fmt.Errorf("inserting recovery event: %w", err)
	}
	return nil
}

func (s *SQLite) ListRecoveryEvents(ctx context.Context, userID int, since time.Time) ([]models.RecoveryEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, date, accepted, type
		 FROM recovery_events
		 WHERE user_id = ? AND date > ?
		 ORDER BY date ASC`,
		userID, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("querying recovery events: %w", err)
	}
	defer rows.Close()

	var result []models.RecoveryEvent
	for rows.Next() {
		var e models.RecoveryEvent
		var date, typ string
		if err := rows.Scan(&e.ID, &e.UserID, &date, &e.Accepted, &typ); err != nil {
			return nil, fmt.Errorf("scanning recovery event: %w", err)
		}
		if e.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		e.Type = models.RecoveryType(typ)
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *SQLite) MarkRecoveryAccepted(ctx context.Context, userID int, id uuid.UUID, accepted bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recovery_events SET accepted = ? WHERE id = ? AND user_id = ?`,
		accepted, id.String(), userID)
	if err != nil {
		return fmt.Errorf("updating recovery event %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating recovery event %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("recovery event %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLite) GetSuggestion(ctx context.Context, key string) (models.Suggestion, error) {
	var x models.Suggestion
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT key, text, source, created_at FROM suggestions WHERE key = ?`, key,
	).Scan(&x.Key, &x.Text, &x.Source, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Suggestion{}, ErrNotFound
	}
	if err != nil {
		return models.Suggestion{}, fmt.Errorf("querying suggestion: %w", err)
	}
	if x.CreatedAt, err = parseTime(created); err != nil {
		return models.Suggestion{}, err
	}
	return x, nil
}

func (s *SQLite) PutSuggestion(ctx context.Context, x models.Suggestion) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO suggestions (key, text, source, created_at) VALUES (?, ?, ?, ?)`,
		x.Key, x.Text, x.Source, formatTime(x.CreatedAt))
	if err != nil {
		return fmt.Errorf("storing suggestion: %w", err)
	}
	return nil
}
