// Package aggregate selects the incidents around a query coordinate and
// partitions them into the fixed category and time buckets the scoring
// engine consumes. Buckets are enumerated exhaustively so a missing
// category or hour is a zero-valued slot, never an absent key.
package aggregate

import (
	"time"

	"github.com/civicsignal/safescore/internal/geo"
	"github.com/civicsignal/safescore/internal/model"
)

// Neighborhood is the in-radius incident set for one query coordinate.
type Neighborhood struct {
	Lat      float64
	Lon      float64
	RadiusKM float64

	// Incidents holds everything within the radius, full history depth.
	Incidents []model.Incident
}

// Select applies the precise great-circle distance filter to incidents that
// already passed the store's bounding-box pre-filter. Zero matches is a
// valid result and propagates to a best-possible score downstream.
func Select(incidents []model.Incident, lat, lon, radiusKM float64) Neighborhood {
	n := Neighborhood{Lat: lat, Lon: lon, RadiusKM: radiusKM}
	for _, inc := range incidents {
		if geo.HaversineKM(lat, lon, inc.Latitude, inc.Longitude) <= radiusKM {
			n.Incidents = append(n.Incidents, inc)
		}
	}
	return n
}

// Since returns the subset of the neighborhood occurring at or after the cutoff.
func (n Neighborhood) Since(cutoff time.Time) []model.Incident {
	var out []model.Incident
	for _, inc := range n.Incidents {
		if !inc.OccurredAt.Before(cutoff) {
			out = append(out, inc)
		}
	}
	return out
}

// Between returns the subset with cutoffLo <= occurred_at < cutoffHi.
func (n Neighborhood) Between(cutoffLo, cutoffHi time.Time) []model.Incident {
	var out []model.Incident
	for _, inc := range n.Incidents {
		if !inc.OccurredAt.Before(cutoffLo) && inc.OccurredAt.Before(cutoffHi) {
			out = append(out, inc)
		}
	}
	return out
}

// Partition bins incidents by category, subtype, hour-of-day, weekday,
// month, year, premises type, and neighbourhood label. Hours and weekdays
// use the service area's local clock.
type Partition struct {
	ByCategory map[model.Category][]model.Incident
	ByHour     [24][]model.Incident
	ByWeekday  [7][]model.Incident // Monday first
	ByMonth    [12][]model.Incident
	ByYear     map[int][]model.Incident

	SubtypeCounts  map[model.Category]map[string]int
	PremisesCounts map[string]int
	Neighbourhoods map[string]int
}

// PartitionAll bins the given incidents. loc localizes timestamps before
// extracting the hour, weekday, and month; pass time.UTC when the store
// already holds local timestamps.
func PartitionAll(incidents []model.Incident, loc *time.Location) *Partition {
	p := &Partition{
		ByCategory:     make(map[model.Category][]model.Incident, len(model.Categories)),
		ByYear:         make(map[int][]model.Incident),
		SubtypeCounts:  make(map[model.Category]map[string]int),
		PremisesCounts: make(map[string]int),
		Neighbourhoods: make(map[string]int),
	}
	for _, c := range model.Categories {
		p.ByCategory[c] = nil
		p.SubtypeCounts[c] = make(map[string]int)
	}

	for _, inc := range incidents {
		cat := model.ParseCategory(string(inc.Category))
		local := inc.OccurredAt.In(loc)

		p.ByCategory[cat] = append(p.ByCategory[cat], inc)
		p.ByHour[local.Hour()] = append(p.ByHour[local.Hour()], inc)
		p.ByWeekday[mondayIndex(local.Weekday())] = append(p.ByWeekday[mondayIndex(local.Weekday())], inc)
		p.ByMonth[int(local.Month())-1] = append(p.ByMonth[int(local.Month())-1], inc)
		p.ByYear[local.Year()] = append(p.ByYear[local.Year()], inc)

		if inc.Subtype != "" {
			p.SubtypeCounts[cat][inc.Subtype]++
		}
		if inc.PremisesType != "" {
			p.PremisesCounts[inc.PremisesType]++
		}
		if inc.Neighbourhood != "" {
			p.Neighbourhoods[inc.Neighbourhood]++
		}
	}
	return p
}

// DaySplit splits incidents into day and night halves at the configured
// local-hour boundary: day is [startHour, endHour), night is the rest.
func DaySplit(incidents []model.Incident, loc *time.Location, startHour, endHour int) (day, night []model.Incident) {
	for _, inc := range incidents {
		h := inc.OccurredAt.In(loc).Hour()
		if h >= startHour && h < endHour {
			day = append(day, inc)
		} else {
			night = append(night, inc)
		}
	}
	return day, night
}

// mondayIndex maps time.Weekday (Sunday=0) onto a Monday-first index.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
