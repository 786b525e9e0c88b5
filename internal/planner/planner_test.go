package planner

import (
	"reflect"
	"testing"

	"github.com/claude/freecoach/internal/catalog"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/ranking"
)

func ranked(id string, dur int, in models.Intensity, cat string) models.Ranked {
	return models.Ranked{ExerciseTemplate: models.ExerciseTemplate{
		ID: id, Title: "T " + id, Duration: dur, MET: 3, Intensity: in, Category: cat,
	}}
}

func blockIDs(p models.Plan) []string {
	out := make([]string, len(p.Blocks))
	for i, b := range p.Blocks {
		out[i] = b.ID
	}
	return out
}

// TestBuildSkipsOverflowAndContinues is the 5/10/10/5 scenario: c would
// overflow the 20 minute cap, so it is skipped and d fills the remainder.
func TestBuildSkipsOverflowAndContinues(t *testing.T) {
	in := []models.Ranked{
		ranked("a", 5, models.IntensityMed, "core"),
		ranked("b", 10, models.IntensityMed, "cardio"),
		ranked("c", 10, models.IntensityMed, "strength"),
		ranked("d", 5, models.IntensityLow, "mobility"),
	}
	p := Build(in, 20)
	if got, want := blockIDs(p), []string{"a", "b", "d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("blocks = %v, want %v", got, want)
	}
	if p.TotalTime != 20 {
		t.Errorf("total = %d, want 20", p.TotalTime)
	}
}

func TestBuildStopsWhenFull(t *testing.T) {
	in := []models.Ranked{
		ranked("a", 5, models.IntensityMed, "core"),
		ranked("b", 10, models.IntensityMed, "cardio"),
		ranked("c", 10, models.IntensityMed, "strength"),
	}
	p := Build(in, 20)
	if got, want := blockIDs(p), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("blocks = %v, want %v", got, want)
	}
	if p.TotalTime != 15 {
		t.Errorf("total = %d, want 15", p.TotalTime)
	}
}

func TestClampMinutes(t *testing.T) {
	tests := []struct{ in, want int }{
		{-10, 5}, {0, 5}, {4, 5}, {5, 5}, {30, 30}, {60, 60}, {61, 60}, {500, 60},
	}
	for _, tt := range tests {
		if got := ClampMinutes(tt.in); got != tt.want {
			t.Errorf("ClampMinutes(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// TestBuildRespectsCap runs the default catalog through every budget and
// checks the total never exceeds it and the plan is never empty.
func TestBuildRespectsCap(t *testing.T) {
	r := ranking.Rank(catalog.Default().Templates(), models.RankContext{})
	for m := MinMinutes; m <= MaxMinutes; m++ {
		p := Build(r, m)
		if len(p.Blocks) == 0 {
			t.Fatalf("minutes=%d: empty plan", m)
		}
		if p.TotalTime > m {
			t.Errorf("minutes=%d: total %d exceeds cap", m, p.TotalTime)
		}
		sum := 0
		for _, b := range p.Blocks {
			sum += b.Duration
		}
		if sum != p.TotalTime {
			t.Errorf("minutes=%d: total %d != sum of blocks %d", m, p.TotalTime, sum)
		}
	}
}

func TestBuildClampsBudget(t *testing.T) {
	in := []models.Ranked{
		ranked("long", 45, models.IntensityMed, "cardio"),
		ranked("longer", 30, models.IntensityMed, "strength"),
	}
	p := Build(in, 240)
	if p.TotalTime != 45 {
		t.Errorf("total = %d, want 45 (second block would exceed 60)", p.TotalTime)
	}
}

// TestBuildFallbackFits verifies that when nothing fits the greedy pass, the
// shortest fitting low-intensity recovery-style template is chosen.
func TestBuildFallbackFits(t *testing.T) {
	in := []models.Ranked{
		ranked("big", 30, models.IntensityHigh, "cardio"),
		ranked("rec10", 10, models.IntensityLow, "recovery"),
		ranked("mob5", 5, models.IntensityLow, "mobility"),
	}
	// cap 5: big and rec10 overflow; mob5 fits the greedy pass directly.
	p := Build(in, 5)
	if got := blockIDs(p); !reflect.DeepEqual(got, []string{"mob5"}) {
		t.Errorf("blocks = %v, want [mob5]", got)
	}
}

// TestBuildFallbackShortestOverall verifies that when no safe template fits,
// the globally shortest safe template is used even though it exceeds the cap.
func TestBuildFallbackShortestOverall(t *testing.T) {
	in := []models.Ranked{
		ranked("hiit", 8, models.IntensityHigh, "cardio"),
		ranked("rec12", 12, models.IntensityLow, "recovery"),
		ranked("mind9", 9, models.IntensityLow, "mindfulness"),
		ranked("core6", 6, models.IntensityLow, "core"),
	}
	p := Build(in, 5)
	if got := blockIDs(p); !reflect.DeepEqual(got, []string{"mind9"}) {
		t.Errorf("blocks = %v, want [mind9]", got)
	}
	if p.TotalTime != 9 {
		t.Errorf("total = %d, want 9", p.TotalTime)
	}
}

// TestBuildEmptyInputUsesCatalog verifies an empty ranked list still yields a block.
func TestBuildEmptyInputUsesCatalog(t *testing.T) {
	p := Build(nil, 30)
	if len(p.Blocks) != 1 {
		t.Fatalf("blocks = %v, want one fallback block", blockIDs(p))
	}
	if p.Blocks[0].Intensity != models.IntensityLow {
		t.Errorf("fallback intensity = %q, want low", p.Blocks[0].Intensity)
	}
}

func TestBuildWithFallbackUsesGivenPool(t *testing.T) {
	pool := []models.ExerciseTemplate{
		{ID: "long-stretch", Title: "Long stretch", Duration: 12, MET: 2, Intensity: models.IntensityLow, Category: "mobility"},
		{ID: "box-breath", Title: "Box breath", Duration: 4, MET: 1, Intensity: models.IntensityLow, Category: "mindfulness"},
		{ID: "sprint", Title: "Sprint", Duration: 3, MET: 9, Intensity: models.IntensityHigh, Category: "cardio"},
	}
	in := []models.Ranked{ranked("heavy", 30, models.IntensityHigh, "strength")}

	p := BuildWithFallback(in, 10, pool)
	if got := blockIDs(p); !reflect.DeepEqual(got, []string{"box-breath"}) {
		t.Fatalf("blocks = %v, want [box-breath]", got)
	}
	if p.TotalTime != 4 {
		t.Errorf("total = %d, want 4", p.TotalTime)
	}

	if p := BuildWithFallback(in, 10, nil); len(p.Blocks) != 0 {
		t.Errorf("blocks = %v, want none without a safe template", blockIDs(p))
	}
}

func TestBuildSkipsDuplicates(t *testing.T) {
	in := []models.Ranked{
		ranked("a", 5, models.IntensityMed, "core"),
		ranked("a", 5, models.IntensityMed, "core"),
		ranked("b", 5, models.IntensityMed, "core"),
	}
	p := Build(in, 10)
	if got := blockIDs(p); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("blocks = %v, want [a b]", got)
	}
}

// TestBuildSnapshotsBlocks verifies plan blocks don't alias the input.
func TestBuildSnapshotsBlocks(t *testing.T) {
	in := []models.Ranked{ranked("a", 5, models.IntensityMed, "core")}
	p := Build(in, 10)
	in[0].Title = "renamed"
	if p.Blocks[0].Title != "T a" {
		t.Errorf("block title = %q, want %q", p.Blocks[0].Title, "T a")
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name    string
		cats    []string
		minutes int
		want    string
	}{
		{"empty", nil, 0, "Recovery Reset (0m)"},
		{"one", []string{"core"}, 10, "Core (10m)"},
		{"two", []string{"mobility", "core"}, 20, "Mobility + Core (20m)"},
		{"dedupe", []string{"core", "core", "cardio"}, 25, "Core + Cardio (25m)"},
		{"only first two", []string{"strength", "cardio", "mindfulness"}, 30, "Strength + Cardio (30m)"},
		{"unknown label", []string{"yoga"}, 15, "Yoga (15m)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var blocks []models.PlanBlock
			for _, c := range tt.cats {
				blocks = append(blocks, models.PlanBlock{Category: c})
			}
			if got := Title(blocks, tt.minutes); got != tt.want {
				t.Errorf("Title = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWhyFromSignals(t *testing.T) {
	tests := []struct {
		name string
		s    models.LoadSignals
		want []string
	}{
		{"none", models.LoadSignals{}, []string{WhyBalanced}},
		{"below", models.LoadSignals{Monotony7d: 1.99, Strain7d: 1.49, AcuteLoad3d: 1.59}, []string{WhyBalanced}},
		{"monotony", models.LoadSignals{Monotony7d: 2.0}, []string{WhyVariety}},
		{"strain", models.LoadSignals{Strain7d: 1.5}, []string{WhyEase}},
		{"acute", models.LoadSignals{AcuteLoad3d: 1.6}, []string{WhyLimit}},
		{"all", models.LoadSignals{Monotony7d: 3, Strain7d: 2, AcuteLoad3d: 2}, []string{WhyVariety, WhyEase, WhyLimit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WhyFromSignals(tt.s); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("WhyFromSignals = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestBuildWhyIgnoresSignals documents that Build explains from an empty
// signal bundle regardless of what drove the ranking.
func TestBuildWhyIgnoresSignals(t *testing.T) {
	ctx := models.RankContext{Signals: models.LoadSignals{Monotony7d: 3}}
	p := Build(ranking.Rank(catalog.Default().Templates(), ctx), 20)
	if !reflect.DeepEqual(p.Why, []string{WhyBalanced}) {
		t.Errorf("why = %v, want balanced line only", p.Why)
	}
}
