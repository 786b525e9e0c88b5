package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Intensity is the coarse effort level of an exercise template.
type Intensity string

const (
	IntensityLow  Intensity = "low"
	IntensityMed  Intensity = "med"
	IntensityHigh Intensity = "high"
)

// ParseIntensity normalises s into an Intensity. Unknown values report false.
func ParseIntensity(s string) (Intensity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return IntensityLow, true
	case "med", "medium", "moderate":
		return IntensityMed, true
	case "high":
		return IntensityHigh, true
	}
	return "", false
}

// Focus is the caller's preference between physical and mental work.
type Focus string

const (
	FocusBoth Focus = "both"
	FocusBody Focus = "body"
	FocusMind Focus = "mind"
)

// EquipmentNone marks a template that needs no equipment.
const EquipmentNone = "none"

// ExerciseTemplate is a static catalog entry.
type ExerciseTemplate struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Duration  int       `json:"duration" yaml:"duration"`
	MET       float64   `json:"met" yaml:"met"`
	Intensity Intensity `json:"intensity" yaml:"intensity"`
	Category  string    `json:"category" yaml:"category"`
	Equipment []string  `json:"equipment,omitempty" yaml:"equipment"`
}

// NeedsEquipment reports whether the template requires any equipment.
// An empty equipment list counts as "none".
func (t ExerciseTemplate) NeedsEquipment() bool {
	if len(t.Equipment) == 0 {
		return false
	}
	for _, e := range t.Equipment {
		if strings.EqualFold(e, EquipmentNone) {
			return false
		}
	}
	return true
}

// Focus returns the implicit focus of the template, derived from its category.
func (t ExerciseTemplate) Focus() Focus {
	switch strings.ToLower(t.Category) {
	case "mindfulness", "breath", "breathwork", "recovery":
		return FocusMind
	}
	return FocusBody
}

// Block snapshots the template into a plan block.
func (t ExerciseTemplate) Block() PlanBlock {
	return PlanBlock{
		ID:        t.ID,
		Title:     t.Title,
		Duration:  t.Duration,
		MET:       t.MET,
		Intensity: t.Intensity,
		Category:  t.Category,
	}
}

// Ranked is a template with its per-request score.
type Ranked struct {
	ExerciseTemplate
	Score float64 `json:"score"`
}

// PlanBlock is the part of a template copied into a plan. It is decoupled
// from the catalog so later template edits don't rewrite past plans.
type PlanBlock struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Duration  int       `json:"duration"`
	MET       float64   `json:"met"`
	Intensity Intensity `json:"intensity"`
	Category  string    `json:"category"`
}

// Plan is an ordered workout for one day.
type Plan struct {
	Title     string      `json:"title"`
	Blocks    []PlanBlock `json:"blocks"`
	TotalTime int         `json:"total_time"`
	Why       []string    `json:"why"`
}

// LoadSignals is the recent-training bundle shared by ranking, planning and
// recovery. Zero values mean "no signal" except DaysSinceHigh, where a
// negative value means no high-intensity session is on record.
type LoadSignals struct {
	Streak             int     `json:"streak"`
	Sessions7d         int     `json:"sessions_7d"`
	Minutes7d          int     `json:"minutes_7d"`
	RecentAvgIntensity float64 `json:"recent_avg_intensity"`
	AcuteLoad3d        float64 `json:"acute_load_3d"`
	Monotony7d         float64 `json:"monotony_7d"`
	Strain7d           float64 `json:"strain_7d"`
	StrainP75          float64 `json:"strain_p75,omitempty"`
	EarlyStopRate      float64 `json:"early_stop_rate"`
	DaysSinceHigh      float64 `json:"days_since_high"`
}

// UnmarshalJSON decodes a bundle, treating an absent days_since_high as
// "none on record" rather than "today".
func (l *LoadSignals) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	type plain LoadSignals
	p := plain{DaysSinceHigh: -1}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*l = LoadSignals(p)
	return nil
}

// IsZero reports whether l carries no signal at all.
func (l LoadSignals) IsZero() bool {
	return l == LoadSignals{} || l == LoadSignals{DaysSinceHigh: -1}
}

// RankContext is the per-request input to the ranking engine.
type RankContext struct {
	Focus         Focus       `json:"focus,omitempty"`
	Emotion       string      `json:"emotion,omitempty"`
	TimeAvailable int         `json:"time_available,omitempty"`
	IntensityPref Intensity   `json:"intensity_pref,omitempty"`
	Equipment     []string    `json:"equipment,omitempty"`
	Constraints   []string    `json:"constraints,omitempty"`
	Disliked      []string    `json:"disliked,omitempty"`
	Signals       LoadSignals `json:"signals"`
}

// RecoveryType is the kind of recovery day suggested.
type RecoveryType string

const (
	RecoveryRest   RecoveryType = "rest"
	RecoveryActive RecoveryType = "active"
	RecoveryLISS15 RecoveryType = "liss15"
)

// RecoveryEvent is one entry of the append-only recovery suggestion log.
type RecoveryEvent struct {
	ID       uuid.UUID    `json:"id"`
	UserID   int          `json:"user_id"`
	Date     time.Time    `json:"date"`
	Accepted bool         `json:"accepted"`
	Type     RecoveryType `json:"type"`
}

// RecoveryDecision is the advisor's verdict.
type RecoveryDecision struct {
	Show   bool         `json:"show"`
	Reason string       `json:"reason"`
	Type   RecoveryType `json:"type,omitempty"`
}

// Session is one logged workout, the raw material for LoadSignals.
type Session struct {
	ID           uuid.UUID `json:"id"`
	UserID       int       `json:"user_id"`
	Date         time.Time `json:"date"`
	Minutes      int       `json:"minutes"`
	RPE          float64   `json:"rpe"`
	Intensity    Intensity `json:"intensity"`
	TemplateID   string    `json:"template_id,omitempty"`
	StoppedEarly bool      `json:"stopped_early"`
}

// Suggestion is a cached coach summary keyed by content hash.
type Suggestion struct {
	Key       string    `json:"key"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
