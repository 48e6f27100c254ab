// Package model defines the domain types shared across the scoring pipeline.
package model

import (
	"math"
	"time"
)

// Category identifies a major incident classification.
type Category string

// Major incident categories, in descending severity order.
const (
	CategoryHomicide     Category = "Homicide"
	CategoryShooting     Category = "Shooting"
	CategoryAssault      Category = "Assault"
	CategoryRobbery      Category = "Robbery"
	CategoryBreakEnter   Category = "Break and Enter"
	CategoryAutoTheft    Category = "Auto Theft"
	CategoryTheftOver    Category = "Theft Over"
	CategoryTheftFromMV  Category = "Theft From Motor Vehicle"
	CategoryBicycleTheft Category = "Bicycle Theft"
	CategoryNonMCI       Category = "NonMCI"
	CategoryOther        Category = "Other"
)

// Categories lists every known category in severity order. Iteration over
// category maps goes through this slice so output ordering is deterministic.
var Categories = []Category{
	CategoryHomicide,
	CategoryShooting,
	CategoryAssault,
	CategoryRobbery,
	CategoryBreakEnter,
	CategoryAutoTheft,
	CategoryTheftOver,
	CategoryTheftFromMV,
	CategoryBicycleTheft,
	CategoryNonMCI,
	CategoryOther,
}

// ParseCategory maps a raw category label to a known Category,
// defaulting to CategoryOther for anything unrecognized.
func ParseCategory(s string) Category {
	for _, c := range Categories {
		if string(c) == s {
			return c
		}
	}
	return CategoryOther
}

// Incident is a single point-stamped record from the incident store.
type Incident struct {
	ID            string    `json:"id"`
	Category      Category  `json:"category"`
	Subtype       string    `json:"subtype"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	OccurredAt    time.Time `json:"occurred_at"`
	PremisesType  string    `json:"premises_type"`
	Neighbourhood string    `json:"neighbourhood"`
	SourceFile    string    `json:"source_file,omitempty"`
}

// Valid reports whether the incident has finite coordinates and a timestamp.
func (i Incident) Valid() bool {
	if math.IsNaN(i.Latitude) || math.IsInf(i.Latitude, 0) {
		return false
	}
	if math.IsNaN(i.Longitude) || math.IsInf(i.Longitude, 0) {
		return false
	}
	return !i.OccurredAt.IsZero()
}

// YearsOld returns the incident age in fractional years at the given instant.
func (i Incident) YearsOld(now time.Time) float64 {
	return now.Sub(i.OccurredAt).Hours() / 24 / 365.25
}
