// Package planner packs ranked templates into a time-boxed workout plan.
package planner

import (
	"fmt"
	"strings"
	"sync"

	"github.com/claude/freecoach/internal/catalog"
	"github.com/claude/freecoach/internal/models"
)

const (
	MinMinutes = 5
	MaxMinutes = 60
)

// Why-line thresholds (inclusive).
const (
	whyMonotony = 2.0
	whyStrain   = 1.5
	whyAcute    = 1.6
)

const (
	WhyVariety  = "Your recent sessions look repetitive, so today adds variety."
	WhyEase     = "Weekly strain is elevated, so today eases off the intensity."
	WhyLimit    = "Load over the last few days spiked, so today limits total volume."
	WhyBalanced = "A balanced day: steady movement without piling on load."
)

var categoryLabels = map[string]string{
	"mobility":    "Mobility",
	"core":        "Core",
	"cardio":      "Cardio",
	"strength":    "Strength",
	"mindfulness": "Mindfulness",
	"recovery":    "Recovery",
	"balance":     "Balance",
	"breath":      "Breathwork",
	"breathwork":  "Breathwork",
}

var fallbackCategories = map[string]bool{
	"mobility":    true,
	"mindfulness": true,
	"recovery":    true,
}

// ClampMinutes bounds a requested session length to [MinMinutes, MaxMinutes].
func ClampMinutes(m int) int {
	if m < MinMinutes {
		return MinMinutes
	}
	if m > MaxMinutes {
		return MaxMinutes
	}
	return m
}

// Build greedily selects ranked templates, in order, while they fit in the
// clamped time budget. Blocks are atomic: a template that would overflow the
// budget is skipped and later, shorter ones are still considered. If nothing
// fits, the shortest low-intensity mobility, mindfulness or recovery template
// is used so the plan is never empty.
//
// The why-lines are computed from an empty signal bundle; callers that want
// signal-aware explanations use WhyFromSignals.
func Build(ranked []models.Ranked, minutes int) models.Plan {
	return BuildWithFallback(ranked, minutes, defaultPool())
}

// BuildWithFallback is Build with an explicit fallback pool, searched when the
// ranked input has no safe template.
func BuildWithFallback(ranked []models.Ranked, minutes int, pool []models.ExerciseTemplate) models.Plan {
	limit := ClampMinutes(minutes)

	var blocks []models.PlanBlock
	seen := make(map[string]bool, len(ranked))
	total := 0
	for _, r := range ranked {
		if total == limit {
			break
		}
		if seen[r.ID] || r.Duration <= 0 {
			continue
		}
		if total+r.Duration > limit {
			continue
		}
		seen[r.ID] = true
		blocks = append(blocks, r.Block())
		total += r.Duration
	}

	if len(blocks) == 0 {
		if fb, ok := fallback(ranked, pool, limit); ok {
			blocks = append(blocks, fb.Block())
			total = fb.Duration
		}
	}

	return models.Plan{
		Title:     Title(blocks, total),
		Blocks:    blocks,
		TotalTime: total,
		Why:       WhyFromSignals(models.LoadSignals{}),
	}
}

var defaultPool = sync.OnceValue(func() []models.ExerciseTemplate {
	return catalog.Default().Templates()
})

// fallback picks the shortest safe template that fits limit, else the
// shortest safe template overall. It searches the ranked input first and
// extra only when the input has no safe template at all.
func fallback(ranked []models.Ranked, extra []models.ExerciseTemplate, limit int) (models.ExerciseTemplate, bool) {
	pool := make([]models.ExerciseTemplate, 0, len(ranked))
	for _, r := range ranked {
		pool = append(pool, r.ExerciseTemplate)
	}
	if t, ok := shortestSafe(pool, limit); ok {
		return t, true
	}
	return shortestSafe(extra, limit)
}

func shortestSafe(pool []models.ExerciseTemplate, limit int) (models.ExerciseTemplate, bool) {
	var best, bestFit models.ExerciseTemplate
	var found, foundFit bool
	for _, t := range pool {
		if t.Intensity != models.IntensityLow || !fallbackCategories[strings.ToLower(t.Category)] || t.Duration <= 0 {
			continue
		}
		if !found || shorter(t, best) {
			best, found = t, true
		}
		if t.Duration <= limit && (!foundFit || shorter(t, bestFit)) {
			bestFit, foundFit = t, true
		}
	}
	if foundFit {
		return bestFit, true
	}
	return best, found
}

func shorter(a, b models.ExerciseTemplate) bool {
	if a.Duration != b.Duration {
		return a.Duration < b.Duration
	}
	return a.ID < b.ID
}

// Title names a plan after its first two distinct categories.
func Title(blocks []models.PlanBlock, minutes int) string {
	var labels []string
	seen := make(map[string]bool)
	for _, b := range blocks {
		cat := strings.ToLower(b.Category)
		if seen[cat] {
			continue
		}
		seen[cat] = true
		labels = append(labels, label(cat))
		if len(labels) == 2 {
			break
		}
	}
	if len(labels) == 0 {
		return fmt.Sprintf("Recovery Reset (%dm)", minutes)
	}
	return fmt.Sprintf("%s (%dm)", strings.Join(labels, " + "), minutes)
}

func label(cat string) string {
	if l, ok := categoryLabels[cat]; ok {
		return l
	}
	if cat == "" {
		return "Session"
	}
	return strings.ToUpper(cat[:1]) + cat[1:]
}

// WhyFromSignals explains a plan from load signals. Every rule that fires
// contributes a line; with none firing the balanced-day line is returned.
func WhyFromSignals(s models.LoadSignals) []string {
	var why []string
	if s.Monotony7d >= whyMonotony {
		why = append(why, WhyVariety)
	}
	if s.Strain7d >= whyStrain {
		why = append(why, WhyEase)
	}
	if s.AcuteLoad3d >= whyAcute {
		why = append(why, WhyLimit)
	}
	if len(why) == 0 {
		why = append(why, WhyBalanced)
	}
	return why
}
