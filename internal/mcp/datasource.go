package mcp

import (
	"context"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/service"
)

// DataSource abstracts the coaching backend for MCP tools. Both
// *service.Service (local) and HTTPClient (remote via REST API) satisfy
// this interface.
type DataSource interface {
	Templates(ctx context.Context) ([]models.ExerciseTemplate, error)
	Rank(ctx context.Context, userID int, rc models.RankContext) ([]models.Ranked, error)
	Plan(ctx context.Context, userID int, req service.PlanRequest) (service.PlanResult, error)
	Signals(ctx context.Context, userID int) (models.LoadSignals, error)
	CheckRecovery(ctx context.Context, userID int, load *models.LoadSignals) (service.RecoveryResult, error)
	LogSession(ctx context.Context, userID int, in models.Session) (models.Session, error)
	CoachText(ctx context.Context, userID int, req service.CoachRequest) (models.Suggestion, error)
}

// Compile-time check: *service.Service satisfies DataSource.
var _ DataSource = (*service.Service)(nil)
