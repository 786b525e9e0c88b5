package importer

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ImportedFile is one export recorded as fully imported for a user.
type ImportedFile struct {
	Path       string
	Size       int64
	Hash       string
	Sessions   int
	ImportedAt time.Time
}

// StateDB tracks, per user, which export files have been fully imported so
// reruns skip them. Paths are stored absolute.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS imported_exports (
		user_id     INTEGER NOT NULL,
		path        TEXT NOT NULL,
		size        INTEGER NOT NULL,
		hash        TEXT NOT NULL,
		sessions    INTEGER NOT NULL DEFAULT 0,
		imported_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, path)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsImported reports whether userID already imported path with the same
// size and hash.
func (s *StateDB) IsImported(userID int, path string, size int64, hash string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM imported_exports WHERE user_id = ? AND path = ? AND size = ? AND hash = ?`,
		userID, absPath(path), size, hash,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkImported records a fully imported file and how many sessions it held.
func (s *StateDB) MarkImported(userID int, path string, size int64, hash string, sessions int) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO imported_exports (user_id, path, size, hash, sessions, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, absPath(path), size, hash, sessions, time.Now().UTC(),
	)
	return err
}

// Files lists userID's imported files, oldest first.
func (s *StateDB) Files(userID int) ([]ImportedFile, error) {
	rows, err := s.db.Query(
		`SELECT path, size, hash, sessions, imported_at FROM imported_exports
		 WHERE user_id = ? ORDER BY imported_at, path`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing imported files: %w", err)
	}
	defer rows.Close()

	var out []ImportedFile
	for rows.Next() {
		var f ImportedFile
		if err := rows.Scan(&f.Path, &f.Size, &f.Hash, &f.Sessions, &f.ImportedAt); err != nil {
			return nil, fmt.Errorf("scanning imported file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// HashFile computes the SHA-256 hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
