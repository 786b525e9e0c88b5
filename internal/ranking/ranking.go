// Package ranking scores exercise templates against a user's context and
// recent training load.
package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/claude/freecoach/internal/catalog"
	"github.com/claude/freecoach/internal/models"
)

const (
	baseWeight = 0.9

	focusMismatch = 0.9

	intensityMatch       = 1.1
	lowPrefHighTemplate  = 0.8
	highPrefLowTemplate  = 0.9
	missingEquipmentGate = 0.3

	minLoadFactor = 0.75
)

// Load thresholds above which a signal starts dampening harder work.
const (
	MonotonyThreshold = 1.8
	StrainThreshold   = 1.4
	AcuteThreshold    = 1.3
	EffortThreshold   = 6.0
)

// Soft penalties applied when hard exclusion would leave nothing.
const (
	penaltyID        = 0.4
	penaltyTitle     = 0.5
	penaltyCategory  = 0.7
	penaltyIntensity = 0.7
)

// Engine ranks the templates of a fixed catalog.
type Engine struct {
	catalog *catalog.Catalog
}

// NewEngine creates an Engine over c.
func NewEngine(c *catalog.Catalog) *Engine {
	return &Engine{catalog: c}
}

// Rank scores the catalog for ctx. Excluded templates are dropped, so the
// result may be shorter than the catalog.
func (e *Engine) Rank(ctx models.RankContext) []models.Ranked {
	return Rank(e.catalog.Templates(), ctx)
}

// Rank scores templates for ctx and returns them best first. Ties are broken
// by ascending id so identical input always yields identical order.
//
// Templates matched by the caller's constraints or dislikes are dropped, so
// the result can be shorter than templates. If that would drop all of them,
// every template is kept and the matched ones are penalised instead.
func Rank(templates []models.ExerciseTemplate, ctx models.RankContext) []models.Ranked {
	p := newPrefs(ctx)

	scored := make([]models.Ranked, len(templates))
	for i, t := range templates {
		scored[i] = models.Ranked{ExerciseTemplate: t, Score: score(t, p)}
	}

	out := make([]models.Ranked, 0, len(scored))
	for _, r := range scored {
		if _, excluded := p.exclusionPenalty(r.ExerciseTemplate); !excluded {
			out = append(out, r)
		}
	}

	if len(out) == 0 {
		for _, r := range scored {
			if penalty, excluded := p.exclusionPenalty(r.ExerciseTemplate); excluded {
				r.Score *= penalty
			}
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func score(t models.ExerciseTemplate, p prefs) float64 {
	s := t.MET * float64(t.Duration) * baseWeight
	s *= focusFactor(t, p.focus)
	s *= intensityFactor(t.Intensity, p.intensity)
	if t.NeedsEquipment() && !p.hasEquipment(t.Equipment) {
		s *= missingEquipmentGate
	}
	s *= LoadFactor(t.Intensity, p.signals)
	return s
}

func focusFactor(t models.ExerciseTemplate, focus models.Focus) float64 {
	if focus == "" || focus == models.FocusBoth || focus == t.Focus() {
		return 1.0
	}
	return focusMismatch
}

func intensityFactor(template, pref models.Intensity) float64 {
	switch {
	case pref == "":
		return 1.0
	case template == pref:
		return intensityMatch
	case pref == models.IntensityLow && template == models.IntensityHigh:
		return lowPrefHighTemplate
	case pref == models.IntensityHigh && template == models.IntensityLow:
		return highPrefLowTemplate
	}
	return 1.0
}

// LoadFactor returns the multiplicative dampening for a template of the
// given intensity under s. The result is always in (0, 1]; low-intensity
// work is never dampened.
func LoadFactor(in models.Intensity, s models.LoadSignals) float64 {
	f := 1.0
	if in == models.IntensityHigh && s.Monotony7d > MonotonyThreshold {
		f *= clampLoad(1 - 0.25*(s.Monotony7d-MonotonyThreshold))
	}
	if in != models.IntensityLow && s.Strain7d > StrainThreshold {
		f *= clampLoad(1 - 0.5*(s.Strain7d-StrainThreshold))
	}
	if in != models.IntensityLow && s.AcuteLoad3d > AcuteThreshold {
		f *= clampLoad(1 - 0.5*(s.AcuteLoad3d-AcuteThreshold))
	}
	if in == models.IntensityHigh && s.RecentAvgIntensity > EffortThreshold {
		f *= clampLoad(1 - 0.05*(s.RecentAvgIntensity-EffortThreshold))
	}
	return f
}

func clampLoad(f float64) float64 {
	return math.Max(minLoadFactor, math.Min(1.0, f))
}

// prefs is RankContext with every optional field resolved to a usable value.
type prefs struct {
	focus      models.Focus
	intensity  models.Intensity
	equipment  map[string]bool
	exclusions map[string]bool
	signals    models.LoadSignals
}

func newPrefs(ctx models.RankContext) prefs {
	p := prefs{
		equipment:  map[string]bool{models.EquipmentNone: true},
		exclusions: make(map[string]bool),
		signals:    sanitizeSignals(ctx.Signals),
	}

	switch models.Focus(strings.ToLower(strings.TrimSpace(string(ctx.Focus)))) {
	case models.FocusBody:
		p.focus = models.FocusBody
	case models.FocusMind:
		p.focus = models.FocusMind
	}

	if in, ok := models.ParseIntensity(string(ctx.IntensityPref)); ok {
		p.intensity = in
	}

	for _, e := range ctx.Equipment {
		if e = normalize(e); e != "" {
			p.equipment[e] = true
		}
	}

	for _, list := range [][]string{ctx.Constraints, ctx.Disliked} {
		for _, x := range list {
			x = normalize(x)
			if x == "" {
				continue
			}
			p.exclusions[x] = true
			if in, ok := models.ParseIntensity(x); ok {
				p.exclusions[string(in)] = true
			}
		}
	}
	return p
}

func (p prefs) hasEquipment(required []string) bool {
	for _, e := range required {
		if p.equipment[normalize(e)] {
			return true
		}
	}
	return false
}

// exclusionPenalty reports whether t is excluded and, if so, the soft
// penalty for the most specific field that matched.
func (p prefs) exclusionPenalty(t models.ExerciseTemplate) (float64, bool) {
	if len(p.exclusions) == 0 {
		return 1.0, false
	}
	switch {
	case p.exclusions[normalize(t.ID)]:
		return penaltyID, true
	case p.exclusions[normalize(t.Title)]:
		return penaltyTitle, true
	case p.exclusions[normalize(t.Category)]:
		return penaltyCategory, true
	case p.exclusions[normalize(string(t.Intensity))]:
		return penaltyIntensity, true
	}
	return 1.0, false
}

func sanitizeSignals(s models.LoadSignals) models.LoadSignals {
	s.RecentAvgIntensity = nonNegative(s.RecentAvgIntensity)
	s.AcuteLoad3d = nonNegative(s.AcuteLoad3d)
	s.Monotony7d = nonNegative(s.Monotony7d)
	s.Strain7d = nonNegative(s.Strain7d)
	s.StrainP75 = nonNegative(s.StrainP75)
	s.EarlyStopRate = nonNegative(s.EarlyStopRate)
	return s
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
