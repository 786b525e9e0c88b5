// Package signals derives the recent-training signal bundle from logged
// sessions. Daily load is session-RPE: minutes times RPE, summed per day.
package signals

import (
	"math"
	"sort"
	"time"

	"github.com/claude/freecoach/internal/models"
)

const (
	// MonotonyCap bounds Monotony7d, including the zero-variance case.
	MonotonyCap = 4.0
	// DefaultStrainP75 is reported until three weeks of relative strain exist.
	DefaultStrainP75 = 1.6

	acuteDays    = 3
	baselineDays = 28
	// Seven weeks: the current week plus three earlier relative-strain
	// values, each against the three weeks before it.
	historyDays = 49
)

// Lookback is how far back Compute reads. Callers querying storage should
// fetch at least this much history.
const Lookback = historyDays * 24 * time.Hour

// Compute builds LoadSignals from sessions as of now. Days are calendar days
// in now's location; sessions dated after now are ignored.
func Compute(sessions []models.Session, now time.Time) models.LoadSignals {
	today := dayStart(now)

	var loads [historyDays]float64
	var counts [historyDays]int
	out := models.LoadSignals{DaysSinceHigh: -1}

	var rpeSum float64
	var early int
	for _, s := range sessions {
		if s.Date.After(now) {
			continue
		}
		d := daysBetween(dayStart(s.Date.In(now.Location())), today)
		if d < 0 {
			continue
		}
		if s.Intensity == models.IntensityHigh {
			if out.DaysSinceHigh < 0 || float64(d) < out.DaysSinceHigh {
				out.DaysSinceHigh = float64(d)
			}
		}
		if d >= historyDays {
			continue
		}
		counts[d]++
		loads[d] += load(s)
		if d < 7 {
			out.Sessions7d++
			if s.Minutes > 0 {
				out.Minutes7d += s.Minutes
			}
			rpeSum += clampRPE(s.RPE)
			if s.StoppedEarly {
				early++
			}
		}
	}

	if out.Sessions7d > 0 {
		out.RecentAvgIntensity = rpeSum / float64(out.Sessions7d)
		out.EarlyStopRate = float64(early) / float64(out.Sessions7d)
	}
	out.Streak = streak(counts[:])

	if base := mean(loads[:baselineDays]); base > 0 {
		out.AcuteLoad3d = mean(loads[:acuteDays]) / base
	}
	out.Monotony7d = monotony(loads[0:7])

	var weekly [historyDays / 7]float64
	for w := range weekly {
		days := loads[w*7 : w*7+7]
		weekly[w] = sum(days) * monotony(days)
	}
	out.Strain7d = relative(weekly[:], 0)

	out.StrainP75 = DefaultStrainP75
	prev := make([]float64, 0, 3)
	for w := 1; w <= 3; w++ {
		if mean(weekly[w+1:w+4]) <= 0 {
			break
		}
		prev = append(prev, relative(weekly[:], w))
	}
	if len(prev) == 3 {
		out.StrainP75 = percentile(prev, 0.75)
	}
	return out
}

// relative is week w's strain over the mean of the three weeks before it.
func relative(weekly []float64, w int) float64 {
	base := mean(weekly[w+1 : w+4])
	if base <= 0 {
		return 0
	}
	return weekly[w] / base
}

func load(s models.Session) float64 {
	if s.Minutes <= 0 {
		return 0
	}
	return float64(s.Minutes) * clampRPE(s.RPE)
}

func clampRPE(r float64) float64 {
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	if r > 10 {
		return 10
	}
	return r
}

// streak counts consecutive active days ending today, or yesterday when
// nothing has been logged yet today.
func streak(counts []int) int {
	start := 0
	if counts[0] == 0 {
		start = 1
	}
	n := 0
	for d := start; d < len(counts) && counts[d] > 0; d++ {
		n++
	}
	return n
}

func monotony(days []float64) float64 {
	m := mean(days)
	if m <= 0 {
		return 0
	}
	var ss float64
	for _, v := range days {
		ss += (v - m) * (v - m)
	}
	sd := math.Sqrt(ss / float64(len(days)))
	if sd == 0 {
		return MonotonyCap
	}
	return math.Min(m/sd, MonotonyCap)
}

func percentile(vals []float64, p float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	pos := p * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return s[lo] + (s[hi]-s[lo])*(pos-float64(lo))
}

func sum(v []float64) float64 {
	var t float64
	for _, x := range v {
		t += x
	}
	return t
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return sum(v) / float64(len(v))
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b, both at midnight.
func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}
