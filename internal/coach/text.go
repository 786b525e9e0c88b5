package coach

import (
	"fmt"
	"strings"

	"github.com/claude/freecoach/internal/models"
)

const systemPrompt = "You are a warm, concise fitness coach. In two or three sentences, " +
	"introduce today's workout to the user. Mention only the exercises listed. " +
	"Match the tone to how the user says they feel. No lists, no emojis."

var emotionLeads = map[string]string{
	"stressed":  "Let's keep things calm today.",
	"anxious":   "Let's keep things calm today.",
	"tired":     "Gentle is fine today.",
	"sad":       "A little movement can lift the day.",
	"energized": "Good energy, let's use it.",
	"happy":     "Good energy, let's use it.",
	"motivated": "Good energy, let's use it.",
}

const defaultLead = "Here's today's session."

// Heuristic writes a deterministic summary of the plan without any model.
func Heuristic(plan models.Plan, rc models.RankContext) string {
	lead, ok := emotionLeads[strings.ToLower(strings.TrimSpace(rc.Emotion))]
	if !ok {
		lead = defaultLead
	}

	var b strings.Builder
	b.WriteString(lead)
	fmt.Fprintf(&b, " %s:", plan.Title)
	for i, blk := range plan.Blocks {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, " %s (%dm)", blk.Title, blk.Duration)
	}
	b.WriteString(".")
	if len(plan.Why) > 0 {
		b.WriteString(" ")
		b.WriteString(plan.Why[0])
	}
	return b.String()
}

// prompt renders the user message sent to the polisher.
func prompt(date string, plan models.Plan, rc models.RankContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", date)
	if rc.Emotion != "" {
		fmt.Fprintf(&b, "Feeling: %s\n", rc.Emotion)
	}
	if rc.Focus != "" {
		fmt.Fprintf(&b, "Focus: %s\n", rc.Focus)
	}
	fmt.Fprintf(&b, "Plan: %s\n", plan.Title)
	for _, blk := range plan.Blocks {
		fmt.Fprintf(&b, "- %s, %d min, %s intensity\n", blk.Title, blk.Duration, blk.Intensity)
	}
	for _, w := range plan.Why {
		fmt.Fprintf(&b, "Note: %s\n", w)
	}
	return b.String()
}
