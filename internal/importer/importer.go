// Package importer loads a logged-session history from JSON or CSV exports
// into FreeCoach, locally or through the REST API.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/models"
)

// rowNamespace scopes the ids derived for export rows that carry none.
var rowNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://freecoach.local/import/session"))

// Stats tracks import progress.
type Stats struct {
	FilesTotal     int
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	SessionsImported int
	SessionsRejected int
}

// SessionLogger stores one session. *service.Service and the MCP HTTPClient
// both satisfy it.
type SessionLogger interface {
	LogSession(ctx context.Context, userID int, in models.Session) (models.Session, error)
}

// Importer walks export files and logs every session they contain.
type Importer struct {
	sessions SessionLogger
	state    *StateDB
	userID   int
	dryRun   bool
	log      *slog.Logger
	stats    Stats
}

// New creates a new Importer. state may be nil, in which case every file
// is imported on each run.
func New(sessions SessionLogger, state *StateDB, userID int, dryRun bool, log *slog.Logger) *Importer {
	return &Importer{sessions: sessions, state: state, userID: userID, dryRun: dryRun, log: log}
}

// Import processes path, which is either a single export file or a
// directory searched recursively for .json and .csv files.
func (imp *Importer) Import(ctx context.Context, path string) (*Stats, error) {
	files, err := exportFiles(path)
	if err != nil {
		return &imp.stats, err
	}
	imp.stats.FilesTotal = len(files)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &imp.stats, err
		}
		imp.importFile(ctx, f)
	}
	return &imp.stats, nil
}

func (imp *Importer) importFile(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		imp.log.Warn("stat failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return
	}
	hash, err := HashFile(path)
	if err != nil {
		imp.log.Warn("hash failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return
	}

	if imp.state != nil {
		done, err := imp.state.IsImported(imp.userID, path, info.Size(), hash)
		if err != nil {
			imp.log.Warn("state lookup failed", "file", path, "error", err)
		} else if done {
			imp.log.Debug("skipping unchanged file", "file", path)
			imp.stats.FilesSkipped++
			return
		}
	}

	sessions, err := ParseFile(path)
	if err != nil {
		imp.log.Warn("parse failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return
	}

	if imp.dryRun {
		imp.log.Info("would import", "file", path, "sessions", len(sessions))
		imp.stats.FilesProcessed++
		imp.stats.SessionsImported += len(sessions)
		return
	}

	rejected := 0
	for i, s := range sessions {
		if s.ID == uuid.Nil {
			s.ID = rowID(imp.userID, path, i, s)
		}
		if _, err := imp.sessions.LogSession(ctx, imp.userID, s); err != nil {
			imp.log.Warn("session rejected", "file", path, "row", i+1, "error", err)
			rejected++
			continue
		}
		imp.stats.SessionsImported++
	}
	imp.stats.SessionsRejected += rejected
	imp.stats.FilesProcessed++
	imp.log.Info("imported file", "file", path, "sessions", len(sessions)-rejected, "rejected", rejected)

	// Files with rejected rows stay pending so a fixed export is retried.
	if imp.state != nil && rejected == 0 {
		if err := imp.state.MarkImported(imp.userID, path, info.Size(), hash, len(sessions)); err != nil {
			imp.log.Warn("state update failed", "file", path, "error", err)
		}
	}
}

// rowID derives a stable session id from the row's position and content, so
// re-running an import over a pending file does not store its rows twice.
func rowID(userID int, path string, row int, s models.Session) uuid.UUID {
	body, _ := json.Marshal(s)
	key := strings.Join([]string{strconv.Itoa(userID), absPath(path), strconv.Itoa(row), string(body)}, "\x00")
	return uuid.NewSHA1(rowNamespace, []byte(key))
}

// exportFiles lists the importable files under path in a stable order.
func exportFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".json", ".csv":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", path, err)
	}
	sort.Strings(files)
	return files, nil
}
