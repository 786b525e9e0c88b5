// Package recovery decides whether to suggest a recovery day.
package recovery

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/claude/freecoach/internal/models"
)

const (
	// WeeklyCap is the most suggestions allowed in any trailing Window.
	WeeklyCap = 2
	Window    = 7 * 24 * time.Hour
	// MinGap is the minimum time between two suggestions.
	MinGap = 48 * time.Hour

	DefaultStrainP75 = 1.6

	monotonyTrigger  = 2.0
	acuteTrigger     = 1.6
	earlyStopTrigger = 0.25
)

const (
	labelMonotony = "monotony high"
	labelStrain   = "strain above personal p75"
	labelAcute    = "acute load spike"
	labelGap      = "hard session under a day ago with early stops"

	ReasonNoTriggers = "no triggers met"
)

// Signals is everything Evaluate looks at. History must contain every
// suggestion shown to the user, accepted or not; the caps are computed from
// it alone.
type Signals struct {
	Monotony7d    float64
	Strain7d      float64
	StrainP75     float64 // <= 0 means unknown; DefaultStrainP75 is used
	AcuteLoad3d   float64
	DaysSinceHigh float64 // negative means no high-intensity session on record
	EarlyStopRate float64
	History       []models.RecoveryEvent
	Now           time.Time
}

// SignalsFrom assembles advisor input from a load bundle.
func SignalsFrom(load models.LoadSignals, history []models.RecoveryEvent, now time.Time) Signals {
	return Signals{
		Monotony7d:    load.Monotony7d,
		Strain7d:      load.Strain7d,
		StrainP75:     load.StrainP75,
		AcuteLoad3d:   load.AcuteLoad3d,
		DaysSinceHigh: load.DaysSinceHigh,
		EarlyStopRate: load.EarlyStopRate,
		History:       history,
		Now:           now,
	}
}

// Evaluate applies the weekly cap, then the 48h cap, then the load triggers.
// A day that would otherwise warrant recovery is still suppressed when a cap
// is hit.
func Evaluate(s Signals) models.RecoveryDecision {
	if n := countInWindow(s.History, s.Now); n >= WeeklyCap {
		return models.RecoveryDecision{
			Reason: fmt.Sprintf("weekly cap: %d suggestions in the last 7 days", n),
		}
	}

	if last, ok := latest(s.History); ok {
		if age := s.Now.Sub(last); age < MinGap {
			return models.RecoveryDecision{
				Reason: fmt.Sprintf("48h cap: last suggestion %s ago", formatAge(age)),
			}
		}
	}

	p75 := s.StrainP75
	if !(p75 > 0) {
		p75 = DefaultStrainP75
	}

	monotony := s.Monotony7d >= monotonyTrigger
	strain := s.Strain7d >= p75
	acute := s.AcuteLoad3d >= acuteTrigger
	gap := s.DaysSinceHigh >= 0 && s.DaysSinceHigh < 1 && s.EarlyStopRate >= earlyStopTrigger

	var fired []string
	if monotony {
		fired = append(fired, labelMonotony)
	}
	if strain {
		fired = append(fired, labelStrain)
	}
	if acute {
		fired = append(fired, labelAcute)
	}
	if gap {
		fired = append(fired, labelGap)
	}
	if len(fired) == 0 {
		return models.RecoveryDecision{Reason: ReasonNoTriggers}
	}

	return models.RecoveryDecision{
		Show:   true,
		Reason: "triggers: " + strings.Join(fired, ", "),
		Type:   classify(monotony, strain, acute, gap),
	}
}

func classify(monotony, strain, acute, gap bool) models.RecoveryType {
	switch {
	case acute && strain:
		return models.RecoveryRest
	case strain || monotony:
		return models.RecoveryActive
	case gap || acute:
		return models.RecoveryLISS15
	}
	return models.RecoveryActive
}

func countInWindow(history []models.RecoveryEvent, now time.Time) int {
	cutoff := now.Add(-Window)
	n := 0
	for _, e := range history {
		if e.Date.After(cutoff) {
			n++
		}
	}
	return n
}

func latest(history []models.RecoveryEvent) (time.Time, bool) {
	var t time.Time
	for _, e := range history {
		if e.Date.After(t) {
			t = e.Date
		}
	}
	return t, !t.IsZero()
}

func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%dh", int(math.Floor(d.Hours())))
}

// HistoryReader is the read side of the recovery log.
type HistoryReader interface {
	ListRecoveryEvents(ctx context.Context, userID int, since time.Time) ([]models.RecoveryEvent, error)
}

// Advisor evaluates recovery for a user against their stored history. It
// never writes to the log; whoever shows the decision records it.
type Advisor struct {
	history HistoryReader
	now     func() time.Time
}

// NewAdvisor creates an Advisor reading from h.
func NewAdvisor(h HistoryReader) *Advisor {
	return &Advisor{history: h, now: time.Now}
}

// Check loads the trailing window of history and evaluates load against it.
func (a *Advisor) Check(ctx context.Context, userID int, load models.LoadSignals) (models.RecoveryDecision, error) {
	return a.CheckAt(ctx, userID, load, a.now())
}

// CheckAt is Check evaluated at now, for callers that stamp the shown
// suggestion with the same instant the caps were measured from.
func (a *Advisor) CheckAt(ctx context.Context, userID int, load models.LoadSignals, now time.Time) (models.RecoveryDecision, error) {
	history, err := a.history.ListRecoveryEvents(ctx, userID, now.Add(-Window))
	if err != nil {
		return models.RecoveryDecision{}, fmt.Errorf("loading recovery history: %w", err)
	}
	return Evaluate(SignalsFrom(load, history, now)), nil
}
