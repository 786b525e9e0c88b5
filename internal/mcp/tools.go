package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/service"
)

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// splitList parses a comma-separated argument, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// rankContext builds a RankContext from the shared context arguments.
func rankContext(req mcp.CallToolRequest) (models.RankContext, error) {
	rc := models.RankContext{
		Emotion:       req.GetString("emotion", ""),
		TimeAvailable: req.GetInt("time_available", 0),
		Equipment:     splitList(req.GetString("equipment", "")),
		Constraints:   splitList(req.GetString("constraints", "")),
		Disliked:      splitList(req.GetString("disliked", "")),
	}

	switch f := models.Focus(strings.ToLower(req.GetString("focus", ""))); f {
	case "", models.FocusBoth, models.FocusBody, models.FocusMind:
		rc.Focus = f
	default:
		return rc, fmt.Errorf("unknown focus %q", f)
	}

	if v := req.GetString("intensity_pref", ""); v != "" {
		in, ok := models.ParseIntensity(v)
		if !ok {
			return rc, fmt.Errorf("unknown intensity_pref %q", v)
		}
		rc.IntensityPref = in
	}
	return rc, nil
}

// --- Tool definitions ---

// contextParams are the arguments every ranking-based tool accepts.
var contextParams = []mcp.ToolOption{
	mcp.WithString("focus", mcp.Description("Body, mind or both. Defaults to both."), mcp.Enum("both", "body", "mind")),
	mcp.WithString("emotion", mcp.Description("How the user feels right now (e.g. stressed, tired, energized)")),
	mcp.WithNumber("time_available", mcp.Description("Minutes the user has. Templates longer than this are penalized.")),
	mcp.WithString("intensity_pref", mcp.Description("Preferred intensity"), mcp.Enum("low", "med", "high")),
	mcp.WithString("equipment", mcp.Description("Comma-separated equipment at hand (e.g. 'mat,dumbbells'). Empty means none.")),
	mcp.WithString("constraints", mcp.Description("Comma-separated ids, titles, categories or intensities to exclude (e.g. 'high,cardio')")),
	mcp.WithString("disliked", mcp.Description("Comma-separated ids, titles or categories to rank lower")),
}

func withContext(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append(opts, contextParams...)
}

var toolListTemplates = mcp.NewTool("list_templates",
	mcp.WithDescription("List every exercise template in the catalog."),
)

var toolRankExercises = mcp.NewTool("rank_exercises",
	withContext(
		mcp.WithDescription("Rank exercise templates for the user's current context. Recent training load dampens high-intensity templates when it is elevated."),
	)...,
)

var toolBuildPlan = mcp.NewTool("build_plan",
	withContext(
		mcp.WithDescription("Build a short session that fits a time budget from the best-ranked templates."),
		mcp.WithNumber("minutes", mcp.Description("Session length in minutes (5-60). Defaults to time_available, then 20.")),
	)...,
)

var toolGetLoadSignals = mcp.NewTool("get_load_signals",
	mcp.WithDescription("Get training load signals (acute load, monotony, strain, streak, days since a high-intensity day) computed from logged sessions."),
)

var toolCheckRecovery = mcp.NewTool("check_recovery",
	mcp.WithDescription("Decide whether a recovery day should be suggested today. A shown suggestion is logged and counts against the weekly cap."),
)

var toolLogSession = mcp.NewTool("log_session",
	mcp.WithDescription("Log a completed workout so it feeds the load signals."),
	mcp.WithNumber("minutes", mcp.Required(), mcp.Description("Duration in minutes")),
	mcp.WithNumber("rpe", mcp.Required(), mcp.Description("Rating of perceived exertion, 0-10")),
	mcp.WithString("template_id", mcp.Description("Catalog template the session followed. Supplies the intensity when none is given.")),
	mcp.WithString("intensity", mcp.Description("Session intensity"), mcp.Enum("low", "med", "high")),
	mcp.WithString("date", mcp.Description("When the session happened (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithBoolean("stopped_early", mcp.Description("Whether the session was cut short")),
)

var toolCoachSummary = mcp.NewTool("coach_summary",
	withContext(
		mcp.WithDescription("Get a short, encouraging summary of today's plan written by the coach."),
		mcp.WithString("date", mcp.Description("Day the plan is for (YYYY-MM-DD). Defaults to today.")),
		mcp.WithNumber("minutes", mcp.Description("Session length in minutes. Defaults to time_available, then 20.")),
	)...,
)

// --- Tool handlers ---

func (h *handlers) listTemplates(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates, err := h.ds.Templates(ctx)
	if err != nil {
		h.log.Error("mcp list_templates", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(templates)
}

func (h *handlers) rankExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rc, err := rankContext(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ranked, err := h.ds.Rank(ctx, UserIDFromContext(ctx), rc)
	if err != nil {
		h.log.Error("mcp rank_exercises", "error", err)
		return mcp.NewToolResultError("ranking failed: " + err.Error()), nil
	}
	return jsonResult(ranked)
}

func (h *handlers) buildPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rc, err := rankContext(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := h.ds.Plan(ctx, UserIDFromContext(ctx), service.PlanRequest{
		Context: rc,
		Minutes: req.GetInt("minutes", 0),
	})
	if err != nil {
		h.log.Error("mcp build_plan", "error", err)
		return mcp.NewToolResultError("planning failed: " + err.Error()), nil
	}
	return jsonResult(res.Plan)
}

func (h *handlers) getLoadSignals(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sig, err := h.ds.Signals(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_load_signals", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(sig)
}

func (h *handlers) checkRecovery(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.ds.CheckRecovery(ctx, UserIDFromContext(ctx), nil)
	if err != nil {
		h.log.Error("mcp check_recovery", "error", err)
		return mcp.NewToolResultError("recovery check failed: " + err.Error()), nil
	}
	return jsonResult(res)
}

func (h *handlers) logSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	minutes, err := req.RequireInt("minutes")
	if err != nil {
		return mcp.NewToolResultError("minutes parameter is required"), nil
	}
	rpe, err := req.RequireFloat("rpe")
	if err != nil {
		return mcp.NewToolResultError("rpe parameter is required"), nil
	}

	in := models.Session{
		Minutes:      minutes,
		RPE:          rpe,
		TemplateID:   req.GetString("template_id", ""),
		Intensity:    models.Intensity(req.GetString("intensity", "")),
		StoppedEarly: req.GetBool("stopped_early", false),
	}
	if v := req.GetString("date", ""); v != "" {
		if in.Date, err = parseFlexTime(v); err != nil {
			return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
		}
	}

	out, err := h.ds.LogSession(ctx, UserIDFromContext(ctx), in)
	if err != nil {
		h.log.Error("mcp log_session", "error", err)
		return mcp.NewToolResultError("logging failed: " + err.Error()), nil
	}
	return jsonResult(out)
}

func (h *handlers) coachSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rc, err := rankContext(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sug, err := h.ds.CoachText(ctx, UserIDFromContext(ctx), service.CoachRequest{
		Date:    req.GetString("date", ""),
		Context: rc,
		Minutes: req.GetInt("minutes", 0),
	})
	if err != nil {
		h.log.Error("mcp coach_summary", "error", err)
		return mcp.NewToolResultError("coach failed: " + err.Error()), nil
	}
	return jsonResult(sug)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
