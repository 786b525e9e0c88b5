package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/freecoach/internal/catalog"
	"github.com/claude/freecoach/internal/coach"
	"github.com/claude/freecoach/internal/config"
	"github.com/claude/freecoach/internal/importer"
	"github.com/claude/freecoach/internal/mcp"
	"github.com/claude/freecoach/internal/service"
	"github.com/claude/freecoach/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (import straight into the database)")
	serverURL := flag.String("server", "", "FreeCoach server URL (import through the REST API)")
	apiKey := flag.String("api-key", os.Getenv("FREECOACH_AUTH_API_KEY"), "API key for -server mode")
	exportPath := flag.String("path", "", "export file or directory of .json/.csv files (required)")
	userID := flag.Int("user", 1, "user ID the sessions belong to")
	stateDir := flag.String("state", "", "state directory for skipping imported files (default ~/.freecoach-import)")
	dryRun := flag.Bool("dry-run", false, "parse files and report counts without importing")
	list := flag.Bool("list", false, "list files already imported for -user and exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("freecoach-import", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *list {
		state, err := importer.OpenStateDB(stateDirOrDefault(*stateDir, log))
		if err != nil {
			log.Error("failed to open state database", "error", err)
			os.Exit(1)
		}
		defer state.Close()
		files, err := state.Files(*userID)
		if err != nil {
			log.Error("failed to list imported files", "error", err)
			os.Exit(1)
		}
		for _, f := range files {
			fmt.Printf("%s\t%d sessions\t%s\n", f.ImportedAt.Format(time.RFC3339), f.Sessions, f.Path)
		}
		return
	}

	if *exportPath == "" || (*configPath == "" && *serverURL == "" && !*dryRun) {
		fmt.Fprintf(os.Stderr, "Usage: freecoach-import -path <file|dir> (-config config.yaml | -server <URL>) [-user N] [-dry-run]\n       freecoach-import -list [-user N] [-state dir]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *dryRun {
		log.Info("DRY RUN mode: files will be parsed but no sessions stored")
	}

	var sessions importer.SessionLogger
	switch {
	case *dryRun:
	case *serverURL != "":
		sessions = mcp.NewHTTPClient(*serverURL, *apiKey)
		log.Info("importing through API", "server", *serverURL)
	default:
		svc, closeFn, err := openLocal(*configPath, log)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer closeFn()
		sessions = svc
		log.Info("importing into database", "config", *configPath)
	}

	state, err := importer.OpenStateDB(stateDirOrDefault(*stateDir, log))
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	stats, err := importer.New(sessions, state, *userID, *dryRun, log).Import(context.Background(), *exportPath)
	printStats(log, stats)
	if err != nil {
		log.Error("import failed", "error", err)
		os.Exit(1)
	}
	log.Info("import complete")
}

func stateDirOrDefault(dir string, log *slog.Logger) string {
	if dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error("failed to get home directory", "error", err)
		os.Exit(1)
	}
	return filepath.Join(homeDir, ".freecoach-import")
}

func openLocal(path string, log *slog.Logger) (*service.Service, func(), error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Driver == "postgres" {
		if err := storage.RunMigrations(cfg.Database.DSN(), "migrations"); err != nil {
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(context.Background(), storage.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN(),
		Path:   cfg.Database.Path,
	})
	if err != nil {
		return nil, nil, err
	}
	// Imports never ask for coach text.
	svc := service.New(cat, store, coach.New(store, nil, 0, log), log)
	return svc, func() { _ = store.Close() }, nil
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_total", stats.FilesTotal,
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"sessions_imported", stats.SessionsImported,
		"sessions_rejected", stats.SessionsRejected,
	)
}
