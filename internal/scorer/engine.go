package scorer

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicsignal/safescore/internal/aggregate"
	"github.com/civicsignal/safescore/internal/benchmark"
	"github.com/civicsignal/safescore/internal/forecast"
	"github.com/civicsignal/safescore/internal/geo"
	"github.com/civicsignal/safescore/internal/model"
)

// IncidentSource is the slice of the store the engine needs: incidents
// inside a bounding box that occurred on or after a cutoff.
type IncidentSource interface {
	QueryWindow(ctx context.Context, bbox geo.BBox, since time.Time) ([]model.Incident, error)
}

// Engine scores coordinates against the benchmark distribution. All reads
// go through the snapshot, so a benchmark regeneration swaps in atomically
// under live traffic.
type Engine struct {
	source     IncidentSource
	snapshot   *benchmark.Snapshot
	boundary   *geo.Boundary
	policy     Policy
	forecaster *forecast.Forecaster

	now func() time.Time
}

func New(source IncidentSource, snap *benchmark.Snapshot, boundary *geo.Boundary, policy Policy, fc *forecast.Forecaster) *Engine {
	return &Engine{
		source:     source,
		snapshot:   snap,
		boundary:   boundary,
		policy:     policy,
		forecaster: fc,
		now:        time.Now,
	}
}

// ScoreCoordinate runs the full pipeline for one point: coverage check,
// radius query, decayed impact, percentile inversion, yearly history with
// forecast, category breakdown, and temporal insights.
func (e *Engine) ScoreCoordinate(ctx context.Context, lat, lon float64) (*model.ScoreResult, error) {
	if !finite(lat) || !finite(lon) {
		return nil, eris.Wrapf(model.ErrInvalidCoordinate, "scorer: (%v, %v)", lat, lon)
	}
	if !e.boundary.Contains(lat, lon) {
		return nil, eris.Wrapf(model.ErrOutOfCoverage, "scorer: (%.5f, %.5f) outside %s", lat, lon, e.boundary.Name())
	}

	dist, err := e.snapshot.Get()
	if err != nil {
		return nil, err
	}

	now := e.now().In(e.policy.Location)
	historyStart := now.AddDate(-e.policy.HistoryYears, 0, 0)
	bbox := geo.RadiusBBox(lat, lon, e.policy.RadiusKM)

	raw, err := e.source.QueryWindow(ctx, bbox, historyStart)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: query incidents")
	}
	nb := aggregate.Select(raw, lat, lon, e.policy.RadiusKM)

	windowStart := now.AddDate(0, 0, -e.policy.WindowDays)
	window := nb.Since(windowStart)

	overallImpact, catImpacts := e.impacts(window, now)
	overallPct := benchmark.Percentile(dist.Overall, overallImpact)

	res := &model.ScoreResult{
		CurrentScore:      round1(benchmark.SafetyScore(overallPct)),
		OverallPercentile: round1(overallPct),
	}

	res.History = e.history(nb, dist, now)
	res.Forecast = e.project(res.History)
	res.CategoryBreakdown = e.categoryBreakdown(nb, window, catImpacts, dist, now)
	res.Insights = e.insights(nb, window, catImpacts, dist, now)
	res.TemporalBreakdown = e.temporal(window, dist, now)
	res.RiskTags = e.riskTags(res)
	res.Benchmark = model.Benchmark{
		Status:           statusBucket(res.OverallPercentile),
		CityPercentile:   res.OverallPercentile,
		CityAverageScore: 50,
	}

	return res, nil
}

// Heatmap projects the benchmark grid into normalized intensities for map
// overlays. Higher intensity means more crime impact relative to the city.
func (e *Engine) Heatmap() ([]model.HeatmapPoint, error) {
	dist, err := e.snapshot.Get()
	if err != nil {
		return nil, err
	}
	points := make([]model.HeatmapPoint, 0, len(dist.Points))
	for _, gp := range dist.Points {
		if gp.Score <= 0 {
			continue
		}
		points = append(points, model.HeatmapPoint{
			Lat:       gp.Lat,
			Lon:       gp.Lon,
			Intensity: round3(benchmark.Percentile(dist.Overall, gp.Score) / 100),
		})
	}
	return points, nil
}

// GridScoreFunc returns the raw-impact scorer the benchmark generator
// exercises over the city grid. It closes over a preloaded incident slice
// and applies the same radius selection and decay math as live scoring,
// which is what keeps live percentiles comparable to the distribution.
func (e *Engine) GridScoreFunc(incidents []model.Incident, now time.Time) benchmark.PointScoreFunc {
	now = now.In(e.policy.Location)
	return func(lat, lon float64) (float64, map[model.Category]float64) {
		bbox := geo.RadiusBBox(lat, lon, e.policy.RadiusKM)
		var candidates []model.Incident
		for _, inc := range incidents {
			if bbox.Contains(inc.Latitude, inc.Longitude) {
				candidates = append(candidates, inc)
			}
		}
		nb := aggregate.Select(candidates, lat, lon, e.policy.RadiusKM)
		return e.impacts(nb.Incidents, now)
	}
}

// impacts sums severity-weighted, recency-decayed impact overall and per
// category for a set of incidents.
func (e *Engine) impacts(incidents []model.Incident, now time.Time) (float64, map[model.Category]float64) {
	byCat := make(map[model.Category]float64, len(model.Categories))
	var total float64
	for _, inc := range incidents {
		w := e.policy.Weight(inc.Category) * math.Exp(-e.policy.DecayRate*inc.YearsOld(now))
		total += w
		byCat[inc.Category] += w
	}
	return total, byCat
}

// history buckets the full lookback into 365-day years, newest first. Each
// year's impact is the undecayed severity sum, scored against the same
// overall distribution so years are comparable to each other.
func (e *Engine) history(nb aggregate.Neighborhood, dist *benchmark.Distribution, now time.Time) []model.YearScore {
	years := make([]model.YearScore, e.policy.HistoryYears)
	for i := range years {
		hi := now.AddDate(0, 0, -i*365)
		lo := now.AddDate(0, 0, -(i+1)*365)
		bucket := nb.Between(lo, hi)

		var impact float64
		for _, inc := range bucket {
			impact += e.policy.Weight(inc.Category)
		}
		years[i] = model.YearScore{
			Year:          now.Year() - i,
			SafetyScore:   round1(benchmark.SafetyScore(benchmark.Percentile(dist.Overall, impact))),
			IncidentCount: len(bucket),
		}
	}
	return years
}

// project runs the forecaster on chronological history. A thin history is
// a normal condition and yields no forecast rather than an error; model
// failures are logged and likewise degrade to nil.
func (e *Engine) project(history []model.YearScore) *model.ForecastResult {
	chrono := make([]model.YearScore, len(history))
	for i, ys := range history {
		chrono[len(history)-1-i] = ys
	}
	fc, err := e.forecaster.Project(chrono)
	if err != nil {
		if !eris.Is(err, model.ErrInsufficientHistory) {
			zap.L().Warn("forecast unavailable", zap.Error(err))
		}
		return nil
	}
	return fc
}

func (e *Engine) categoryBreakdown(nb aggregate.Neighborhood, window []model.Incident, catImpacts map[model.Category]float64, dist *benchmark.Distribution, now time.Time) map[model.Category]model.CategoryStat {
	part := aggregate.PartitionAll(window, e.policy.Location)

	yearAgo := now.AddDate(0, 0, -365)
	twoYearsAgo := now.AddDate(0, 0, -730)

	out := make(map[model.Category]model.CategoryStat, len(model.Categories))
	for _, cat := range model.Categories {
		incidents := part.ByCategory[cat]
		// Categories absent from the window stay out of the breakdown, so a
		// quiet location reports nothing rather than eleven perfect scores.
		if len(incidents) == 0 {
			continue
		}
		pct := benchmark.Percentile(dist.ByCategory[cat], catImpacts[cat])

		recent := countCategory(nb.Between(yearAgo, now.Add(time.Second)), cat)
		prev := countCategory(nb.Between(twoYearsAgo, yearAgo), cat)

		out[cat] = model.CategoryStat{
			SafetyScore:        round1(benchmark.SafetyScore(pct)),
			CategoryPercentile: round1(pct),
			IncidentCount:      len(incidents),
			CityAvgIncidents:   e.cityAverage(dist.ByCategory[cat], cat),
			Trend:              trendOf(recent, prev),
			WeightedImpact:     round1(catImpacts[cat]),
			TopSubtypes:        topSubtypes(part.SubtypeCounts[cat], e.policy.TopSubtypes),
		}
	}
	return out
}

// cityAverage estimates a typical neighborhood's yearly incident count for
// a category from the median nonzero grid impact, undoing the severity
// weight and the roughly one-decay-constant average age of a 365-day
// window.
func (e *Engine) cityAverage(sorted []float64, cat model.Category) int {
	med := medianNonzero(sorted)
	if med <= 0 {
		return 0
	}
	return int(med / e.policy.Weight(cat) / 0.9)
}

func statusBucket(pct float64) string {
	switch {
	case pct <= 10:
		return "Very High Safety"
	case pct <= 20:
		return "High Safety"
	case pct <= 40:
		return "Moderate Safety"
	case pct <= 60:
		return "Low Safety"
	default:
		return "Very Low Safety"
	}
}

func trendOf(recent, prev int) model.Trend {
	if prev == 0 {
		if recent > 0 {
			return model.TrendUp
		}
		return model.TrendStable
	}
	change := float64(recent-prev) / float64(prev)
	switch {
	case change > 0.2:
		return model.TrendUp
	case change < -0.2:
		return model.TrendDown
	default:
		return model.TrendStable
	}
}

func countCategory(incidents []model.Incident, cat model.Category) int {
	n := 0
	for _, inc := range incidents {
		if inc.Category == cat {
			n++
		}
	}
	return n
}

func medianNonzero(sorted []float64) float64 {
	lo := 0
	for lo < len(sorted) && sorted[lo] <= 0 {
		lo++
	}
	nz := sorted[lo:]
	if len(nz) == 0 {
		return 0
	}
	return nz[len(nz)/2]
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
