package scorer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/civicsignal/safescore/internal/aggregate"
	"github.com/civicsignal/safescore/internal/benchmark"
	"github.com/civicsignal/safescore/internal/model"
)

const (
	hoursPerDay   = 24
	daysPerWeek   = 7
	monthsPerYear = 12

	// peakWindowHours is the width of the rolling window used to label the
	// riskiest stretch of the day.
	peakWindowHours = 3

	// topPremises caps the premises-type breakdown in insights.
	topPremises = 5
)

// insights derives the safety clock, weekly and monthly patterns, and the
// headline labels. The clock uses the full in-radius history so sparse
// hours still carry signal; weekly and monthly patterns use the scoring
// window so they reflect current conditions.
func (e *Engine) insights(nb aggregate.Neighborhood, window []model.Incident, catImpacts map[model.Category]float64, dist *benchmark.Distribution, now time.Time) model.Insights {
	loc := e.policy.Location
	partAll := aggregate.PartitionAll(nb.Incidents, loc)
	partWin := aggregate.PartitionAll(window, loc)

	ins := model.Insights{
		SafetyClock:    make([]float64, hoursPerDay),
		WeeklyPattern:  make([]float64, daysPerWeek),
		MonthlyPattern: make([]float64, monthsPerYear),
		PrimaryRisk:    "None",
		Neighbourhood:  "Unknown",
	}

	// Hourly slices cover 1/24 of the day, so impacts scale back up to a
	// full-day equivalent before hitting the daily-impact distribution.
	peakImpact, peakHour := -1.0, 0
	for h := 0; h < hoursPerDay; h++ {
		impact, _ := e.impacts(partAll.ByHour[h], now)
		ins.SafetyClock[h] = round1(benchmark.SafetyScore(benchmark.Percentile(dist.Overall, impact*hoursPerDay)))
		if impact > peakImpact {
			peakImpact = impact
			peakHour = h
		}
	}
	ins.PeakHour = FormatHour(peakHour)
	ins.PeakTimeRange = peakRange(ins.SafetyClock)

	for d := 0; d < daysPerWeek; d++ {
		impact, _ := e.impacts(partWin.ByWeekday[d], now)
		ins.WeeklyPattern[d] = round1(benchmark.SafetyScore(benchmark.Percentile(dist.Overall, impact*daysPerWeek)))
	}
	for m := 0; m < monthsPerYear; m++ {
		impact, _ := e.impacts(partWin.ByMonth[m], now)
		ins.MonthlyPattern[m] = round1(benchmark.SafetyScore(benchmark.Percentile(dist.Overall, impact*monthsPerYear)))
	}

	var worst float64
	for _, cat := range model.Categories {
		if catImpacts[cat] > worst {
			worst = catImpacts[cat]
			ins.PrimaryRisk = string(cat)
		}
	}

	if name := modeLabel(partWin.Neighbourhoods); name != "" {
		ins.Neighbourhood = name
	}
	ins.Premises = topCounts(partWin.PremisesCounts, topPremises)

	return ins
}

// temporal scores the day and night halves of the window independently.
// Each half covers roughly 12 hours, so impacts double before comparison
// against the full-day distribution.
func (e *Engine) temporal(window []model.Incident, dist *benchmark.Distribution, now time.Time) model.TemporalBreakdown {
	day, night := aggregate.DaySplit(window, e.policy.Location, e.policy.DayStartHour, e.policy.DayEndHour)

	dayImpact, _ := e.impacts(day, now)
	nightImpact, _ := e.impacts(night, now)

	return model.TemporalBreakdown{
		DaySafetyScore:   round1(benchmark.SafetyScore(benchmark.Percentile(dist.Overall, dayImpact*2))),
		NightSafetyScore: round1(benchmark.SafetyScore(benchmark.Percentile(dist.Overall, nightImpact*2))),
	}
}

// riskTags labels the result for quick display. A category earns a
// negative tag only when it is both below the low-safety threshold and
// busier than the city average, so single outlier incidents in quiet
// areas do not alarm.
func (e *Engine) riskTags(res *model.ScoreResult) model.RiskTags {
	var tags model.RiskTags

	for _, cat := range model.Categories {
		stat, ok := res.CategoryBreakdown[cat]
		if !ok {
			continue
		}
		switch {
		case stat.SafetyScore < e.policy.LowSafety && stat.IncidentCount > stat.CityAvgIncidents:
			tags.Negative = append(tags.Negative, "High "+string(cat))
		case stat.SafetyScore >= e.policy.HighSafety:
			tags.Positive = append(tags.Positive, "Low "+string(cat))
		}
	}

	if res.CurrentScore >= e.policy.HighSafety {
		tags.Positive = append(tags.Positive, "High Safety Area")
	}
	if res.CurrentScore <= 40 {
		tags.Negative = append(tags.Negative, "High Crime Area")
	}
	if res.TemporalBreakdown.NightSafetyScore < res.TemporalBreakdown.DaySafetyScore-e.policy.NightRiskGap {
		tags.Negative = append(tags.Negative, "Nighttime Risk")
	}

	return tags
}

// topSubtypes ranks subtype counts descending, breaking ties on name so
// identical data always yields identical output.
func topSubtypes(counts map[string]int, n int) []model.SubtypeCount {
	out := make([]model.SubtypeCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, model.SubtypeCount{Type: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// topCounts keeps the n largest entries of a counter map.
func topCounts(counts map[string]int, n int) map[string]int {
	if len(counts) <= n {
		return counts
	}
	type kv struct {
		name  string
		count int
	}
	all := make([]kv, 0, len(counts))
	for name, count := range counts {
		all = append(all, kv{name, count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].name < all[j].name
	})
	out := make(map[string]int, n)
	for _, e := range all[:n] {
		out[e.name] = e.count
	}
	return out
}

// modeLabel returns the most frequent label, ties broken lexically.
func modeLabel(counts map[string]int) string {
	best, bestCount := "", 0
	for name, count := range counts {
		if count > bestCount || (count == bestCount && count > 0 && name < best) {
			best, bestCount = name, count
		}
	}
	return best
}

// peakRange finds the lowest-safety rolling window on the clock and
// formats it as a local-time span, e.g. "22:00-1:00".
func peakRange(clock []float64) string {
	bestStart, bestAvg := 0, math.MaxFloat64
	for start := 0; start < hoursPerDay; start++ {
		var sum float64
		for i := 0; i < peakWindowHours; i++ {
			sum += clock[(start+i)%hoursPerDay]
		}
		if avg := sum / peakWindowHours; avg < bestAvg {
			bestAvg = avg
			bestStart = start
		}
	}
	return fmt.Sprintf("%d:00-%d:00", bestStart, (bestStart+peakWindowHours)%hoursPerDay)
}

// FormatHour renders an hour index as a 12-hour clock label ("12am",
// "8pm") for display layers.
func FormatHour(h int) string {
	switch {
	case h == 0:
		return "12am"
	case h < 12:
		return fmt.Sprintf("%dam", h)
	case h == 12:
		return "12pm"
	default:
		return fmt.Sprintf("%dpm", h-12)
	}
}
