// Package scorer converts aggregated incident counts into percentile-
// normalized safety scores against the grid benchmark distribution.
package scorer

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/civicsignal/safescore/internal/config"
	"github.com/civicsignal/safescore/internal/model"
)

// Policy bundles every scoring constant: severity weights, the recency
// decay rate, window sizes, and tag thresholds. Recalibration edits
// configuration, never the percentile math.
type Policy struct {
	RadiusKM     float64
	DecayRate    float64
	WindowDays   int
	HistoryYears int

	DayStartHour int
	DayEndHour   int
	TopSubtypes  int

	LowSafety    float64
	HighSafety   float64
	NightRiskGap float64

	Weights  map[model.Category]float64
	Location *time.Location
}

// NewPolicy resolves a ScoringConfig into a Policy, loading the service
// area's timezone.
func NewPolicy(cfg config.ScoringConfig) (Policy, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return Policy{}, eris.Wrapf(err, "scorer: load timezone %q", cfg.Timezone)
		}
		loc = l
	}

	weights := make(map[model.Category]float64, len(cfg.SeverityWeights))
	for name, w := range cfg.SeverityWeights {
		weights[model.ParseCategory(name)] = w
	}

	return Policy{
		RadiusKM:     cfg.RadiusKM,
		DecayRate:    cfg.DecayRate,
		WindowDays:   cfg.WindowDays,
		HistoryYears: cfg.HistoryYears,
		DayStartHour: cfg.DayStartHour,
		DayEndHour:   cfg.DayEndHour,
		TopSubtypes:  cfg.TopSubtypes,
		LowSafety:    cfg.LowSafetyThreshold,
		HighSafety:   cfg.HighSafetyThreshold,
		NightRiskGap: cfg.NightRiskGap,
		Weights:      weights,
		Location:     loc,
	}, nil
}

// Weight returns the severity weight for a category, defaulting to 1 for
// anything unmapped.
func (p Policy) Weight(cat model.Category) float64 {
	if w, ok := p.Weights[cat]; ok {
		return w
	}
	return 1
}
