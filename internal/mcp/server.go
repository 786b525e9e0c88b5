package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("FreeCoach", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("FreeCoach exercise coaching server. Rank exercise templates, build short sessions, read training load signals, check whether a recovery day is due and get a coach summary. All data is scoped to the calling user."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListTemplates, Handler: h.listTemplates},
		server.ServerTool{Tool: toolRankExercises, Handler: h.rankExercises},
		server.ServerTool{Tool: toolBuildPlan, Handler: h.buildPlan},
		server.ServerTool{Tool: toolGetLoadSignals, Handler: h.getLoadSignals},
		server.ServerTool{Tool: toolCheckRecovery, Handler: h.checkRecovery},
		server.ServerTool{Tool: toolLogSession, Handler: h.logSession},
		server.ServerTool{Tool: toolCoachSummary, Handler: h.coachSummary},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resCatalog, Handler: h.catalog},
		server.ServerResource{Resource: resLoadSignals, Handler: h.loadSignals},
	)

	return s
}

// HTTPHandler serves s over streamable HTTP. The caller's X-User-ID header,
// when valid, selects the user the tools act for.
func HTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if n, err := strconv.Atoi(r.Header.Get("X-User-ID")); err == nil && n > 0 {
				return WithUserID(ctx, n)
			}
			return ctx
		}),
	)
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resCatalog = mcp.NewResource(
	"freecoach://catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("All exercise templates with category, intensity, equipment and duration"),
	mcp.WithMIMEType("application/json"),
)

var resLoadSignals = mcp.NewResource(
	"freecoach://load_signals",
	"Load Signals",
	mcp.WithResourceDescription("Training load signals computed from the last seven weeks of logged sessions"),
	mcp.WithMIMEType("application/json"),
)
