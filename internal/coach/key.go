package coach

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/claude/freecoach/internal/models"
)

// Key returns the content address of a coach request: the SHA-256 of the
// canonical JSON encoding of date, plan and context. Equipment and exclusion
// lists are order- and case-insensitive.
func Key(date string, plan models.Plan, rc models.RankContext) string {
	rc.Equipment = canonicalSet(rc.Equipment)
	rc.Constraints = canonicalSet(rc.Constraints)
	rc.Disliked = canonicalSet(rc.Disliked)
	rc.Emotion = strings.ToLower(strings.TrimSpace(rc.Emotion))

	// Struct encoding is field-ordered, so this is stable across calls.
	data, err := json.Marshal(struct {
		Date    string             `json:"date"`
		Plan    models.Plan        `json:"plan"`
		Context models.RankContext `json:"context"`
	}{date, plan, rc})
	if err != nil {
		// Only non-finite floats fail to encode; hash their textual form.
		data = []byte(date + "|" + plan.Title + "|" + rc.Emotion)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func canonicalSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
