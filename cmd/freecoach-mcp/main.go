package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/freecoach/internal/catalog"
	"github.com/claude/freecoach/internal/coach"
	"github.com/claude/freecoach/internal/config"
	"github.com/claude/freecoach/internal/mcp"
	"github.com/claude/freecoach/internal/service"
	"github.com/claude/freecoach/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "FreeCoach server URL (e.g. https://freecoach.tail1234.ts.net)")
	apiKey := flag.String("api-key", os.Getenv("FREECOACH_AUTH_API_KEY"), "API key for write tools in remote mode")
	configPath := flag.String("config", "", "path to config file for local mode")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("freecoach-mcp", Version)
		return
	}

	// stdout carries the MCP protocol
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource
	switch {
	case *serverURL != "":
		ds = mcp.NewHTTPClient(*serverURL, *apiKey)
		log.Info("remote mode", "server", *serverURL)
	case *configPath != "":
		svc, closeFn, err := openLocal(*configPath, log)
		if err != nil {
			log.Error("local mode failed", "error", err)
			os.Exit(1)
		}
		defer closeFn()
		ds = svc
		log.Info("local mode", "config", *configPath)
	default:
		fmt.Fprintf(os.Stderr, "Usage: freecoach-mcp -server <URL> [-api-key KEY] | -config <file>\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := server.ServeStdio(mcp.New(ds, Version, log)); err != nil {
		log.Error("stdio server stopped", "error", err)
		os.Exit(1)
	}
}

// openLocal builds a service straight on the configured database.
func openLocal(path string, log *slog.Logger) (*service.Service, func(), error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
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

	var polisher coach.Polisher
	if cfg.Coach.BaseURL != "" {
		polisher = coach.NewChatClient(cfg.Coach.BaseURL, cfg.Coach.APIKey, cfg.Coach.Model, cfg.Coach.Timeout)
	}
	svc := service.New(cat, store, coach.New(store, polisher, cfg.Coach.Debounce, log), log)
	return svc, func() { _ = store.Close() }, nil
}
