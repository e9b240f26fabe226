// Package scoring turns portal skill levels into per-category average points.
package scoring

import (
	"math"

	"github.com/okian/bareme/internal/domain/model"
	"github.com/okian/bareme/internal/domain/types"
)

// DefaultRoundingStep is the multiple averages are rounded to unless configured.
const DefaultRoundingStep = 10

// Level labels used by the portal's competency grid.
const (
	LevelVeryGood     = "Très bonne maîtrise"
	LevelSatisfactory = "Maîtrise satisfaisante"
	LevelAlmost       = "Presque maîtrisé"
	LevelFragile      = "Maîtrise fragile"
	LevelBeginning    = "Début de maîtrise"
	LevelInsufficient = "Maîtrise insuffisante"
)

// Bareme maps a qualitative level label to its point value.
type Bareme map[string]float64

// DefaultBareme returns the standard level-to-points table.
func DefaultBareme() Bareme {
	return Bareme{
		LevelVeryGood:     50,
		LevelSatisfactory: 40,
		LevelAlmost:       40,
		LevelFragile:      25,
		LevelBeginning:    10,
		LevelInsufficient: 10,
	}
}

// Points returns the value of level, 0 when the label is unknown.
func (b Bareme) Points(level string) float64 {
	return b[level]
}

// Merge returns a copy of b with overrides applied on top.
func (b Bareme) Merge(overrides map[string]float64) Bareme {
	out := make(Bareme, len(b)+len(overrides))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithBareme replaces the level table. Empty tables are ignored.
func WithBareme(b Bareme) Option {
	return func(a *Aggregator) {
		if len(b) == 0 {
			return
		}
		// Copy to avoid external modifications
		a.bareme = Bareme{}.Merge(b)
	}
}

// WithRoundingStep sets the multiple averages are rounded to.
func WithRoundingStep(step float64) Option {
	return func(a *Aggregator) {
		if step > 0 {
			a.step = step
		}
	}
}

// Stats counts what went through an Aggregator.
type Stats struct {
	Evaluations   int
	Skills        int
	Contributions int // (skill, prefix) pairs that were summed
	Skipped       int // skills without any usable prefix
}

// Aggregator accumulates weighted points per category prefix.
// It is not safe for concurrent use; one Aggregator serves one report.
type Aggregator struct {
	bareme Bareme
	step   float64

	points map[string]float64
	counts map[string]int
	order  []string
	stats  Stats
}

// NewAggregator creates an empty aggregator with the default bareme.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		bareme: DefaultBareme(),
		step:   DefaultRoundingStep,
		points: make(map[string]float64),
		counts: make(map[string]int),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Add feeds evaluations into the running sums.
func (a *Aggregator) Add(evaluations ...model.Evaluation) {
	for _, ev := range evaluations {
		a.stats.Evaluations++
		for _, skill := range ev.Skills {
			a.addSkill(skill)
		}
	}
}

func (a *Aggregator) addSkill(skill model.Skill) {
	a.stats.Skills++
	prefixes := skill.Prefixes()
	if len(prefixes) == 0 {
		a.stats.Skipped++
		return
	}
	points := a.bareme.Points(skill.Level) * skill.Coefficient
	for _, prefix := range prefixes {
		if _, seen := a.counts[prefix]; !seen {
			a.order = append(a.order, prefix)
		}
		a.points[prefix] += points
		a.counts[prefix]++
		a.stats.Contributions++
	}
}

// Stats returns the counters accumulated so far.
func (a *Aggregator) Stats() Stats {
	return a.stats
}

// Prefixes returns the prefixes seen so far in first-seen order.
func (a *Aggregator) Prefixes() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Result finalizes the averages. It may be called more than once.
func (a *Aggregator) Result() types.Report {
	report := types.Report{
		AveragePointsByPrefix: make(map[string]float64, len(a.order)),
		Details: types.ReportDetails{
			PointsByPrefix: make(map[string]float64, len(a.order)),
			CountByPrefix:  make(map[string]int, len(a.order)),
		},
	}
	for _, prefix := range a.order {
		sum, count := a.points[prefix], a.counts[prefix]
		avg := RoundToStep(sum/float64(count), a.step)

		report.AveragePointsByPrefix[prefix] = avg
		report.Details.PointsByPrefix[prefix] = sum
		report.Details.CountByPrefix[prefix] = count
		report.TotalAveragePoints += avg
	}
	return report
}

// Aggregate is a convenience wrapper that runs evaluations through a fresh Aggregator.
func Aggregate(evaluations []model.Evaluation, opts ...Option) types.Report {
	a := NewAggregator(opts...)
	a.Add(evaluations...)
	return a.Result()
}

// RoundToStep rounds v to the nearest multiple of step, halves rounding up.
func RoundToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Floor(v/step+0.5) * step
}
