// Package benchmark builds and serves the grid reference distribution that
// normalizes raw weighted impacts into city-relative percentiles.
package benchmark

import (
	"sort"
	"time"

	"github.com/civicsignal/safescore/internal/model"
)

// GridScore is one reference point with its benchmark-time overall impact.
type GridScore struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Score float64 `json:"score"`
}

// Metadata describes the conditions under which a distribution was generated.
type Metadata struct {
	GeneratedAt      time.Time `json:"generated_at"`
	GridResolutionKM float64   `json:"grid_resolution_km"`
	RadiusKM         float64   `json:"radius_km"`
	TotalPoints      int       `json:"total_points"`
	DataRecords      int       `json:"data_records"`
	DataStart        time.Time `json:"data_start"`
	DataEnd          time.Time `json:"data_end"`
}

// Distribution is the immutable reference artifact: sorted impact sequences
// for the overall level and every category, plus the grid points that
// produced them. It is regenerated whole, never mutated incrementally.
type Distribution struct {
	Meta       Metadata                     `json:"metadata"`
	Overall    []float64                    `json:"overall_distribution"`
	ByCategory map[model.Category][]float64 `json:"by_category"`
	Points     []GridScore                  `json:"points"`
}

// Percentile returns the midrank percentile of v within the sorted
// non-decreasing sequence, in [0,100]. Ties are resolved by averaging the
// tied rank range, so identical values receive identical percentiles and
// increasing v never decreases the result. Non-positive v is pinned to 0.
func Percentile(sorted []float64, v float64) float64 {
	n := len(sorted)
	if n == 0 || v <= 0 {
		return 0
	}
	lo := sort.SearchFloat64s(sorted, v)
	hi := sort.Search(n, func(i int) bool { return sorted[i] > v })
	rank := (float64(lo) + float64(hi)) / 2
	return rank / float64(n) * 100
}

// SafetyScore inverts a percentile into a 0-100 safety score: higher
// relative impact yields a lower score.
func SafetyScore(percentile float64) float64 {
	s := 100 - percentile
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// CategorySequence returns the sorted sequence for a category, or nil when
// the category never appeared on the grid.
func (d *Distribution) CategorySequence(cat model.Category) []float64 {
	return d.ByCategory[cat]
}
