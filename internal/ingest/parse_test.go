package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsignal/safescore/internal/model"
)

func TestCategoryFromFilename(t *testing.T) {
	tests := []struct {
		file string
		want model.Category
	}{
		{"Assault.csv", model.CategoryAssault},
		{"Auto_Theft.csv", model.CategoryAutoTheft},
		{"bicycle_thefts_2020.csv", model.CategoryBicycleTheft},
		{"Break_and_Enter.geojson", model.CategoryBreakEnter},
		{"Homicides.csv", model.CategoryHomicide},
		{"Theft_From_Motor_Vehicle.csv", model.CategoryTheftFromMV},
		{"mystery_data.csv", model.CategoryOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategoryFromFilename(tt.file), "file %s", tt.file)
	}
}

const assaultCSV = `EVENT_UNIQUE_ID,OCC_DATE,OCC_HOUR,MCI_CATEGORY,OFFENCE,LAT_WGS84,LONG_WGS84,PREMISES_TYPE,NEIGHBOURHOOD_158
GO-1,2026-03-10,14,Assault,ASSAULT WITH WEAPON,43.7001,-79.4001,Outside,Annex
GO-2,2026-03-11,2,Assault,ASSAULT,43.7002,-79.4002,Apartment,Annex
GO-3,2026-03-12,9,NonMCI,OTHER OFFENCE,43.7003,-79.4003,House,Beaches
GO-4,2026-03-13,9,Assault,ASSAULT,0,0,House,Beaches
GO-5,not-a-date,9,Assault,ASSAULT,43.7004,-79.4004,House,Beaches
`

func TestParseCSV(t *testing.T) {
	incidents, err := ParseCSV(strings.NewReader(assaultCSV), "Assault.csv")
	require.NoError(t, err)
	require.Len(t, incidents, 3, "zero coordinates and bad dates are skipped")

	first := incidents[0]
	assert.Equal(t, "GO-1", first.ID)
	assert.Equal(t, model.CategoryAssault, first.Category)
	assert.Equal(t, "Assault With Weapon", first.Subtype, "offence labels are title-cased")
	assert.InDelta(t, 43.7001, first.Latitude, 1e-9)
	assert.InDelta(t, -79.4001, first.Longitude, 1e-9)
	assert.Equal(t, 14, first.OccurredAt.Hour(), "OCC_HOUR refines the date")
	assert.Equal(t, "Outside", first.PremisesType)
	assert.Equal(t, "Annex", first.Neighbourhood)
	assert.Equal(t, "Assault.csv", first.SourceFile)

	// NonMCI rows fall back to the filename category.
	assert.Equal(t, model.CategoryAssault, incidents[2].Category)
}

func TestParseCSVMissingHeader(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""), "empty.csv")
	assert.Error(t, err)
}

func TestParseCSVAlternateColumns(t *testing.T) {
	csv := `OBJECTID,REPORT_DATE,Latitude,Longitude
7,2026-01-05,43.71,-79.42
`
	incidents, err := ParseCSV(strings.NewReader(csv), "Robbery.csv")
	require.NoError(t, err)
	require.Len(t, incidents, 1)

	assert.Equal(t, "7", incidents[0].ID)
	assert.Equal(t, model.CategoryRobbery, incidents[0].Category)
	assert.Equal(t, "Robbery", incidents[0].Subtype, "missing offence falls back to category")
	assert.Equal(t, "Unknown", incidents[0].PremisesType)
	assert.Equal(t, "Unknown", incidents[0].Neighbourhood)
}

func TestParseCSVSurrogateIDs(t *testing.T) {
	csv := `OCC_DATE,Latitude,Longitude
2026-01-05,43.71,-79.42
2026-01-06,43.72,-79.43
`
	incidents, err := ParseCSV(strings.NewReader(csv), "Robbery.csv")
	require.NoError(t, err)
	require.Len(t, incidents, 2)

	assert.Equal(t, "Robbery.csv:1", incidents[0].ID)
	assert.Equal(t, "Robbery.csv:2", incidents[1].ID)
	assert.NotEqual(t, incidents[0].ID, incidents[1].ID,
		"id-less rows must not collapse under the primary-key dedup")
}

func TestParseGeoJSONSurrogateIDs(t *testing.T) {
	geojson := `{
		"type": "FeatureCollection",
		"features": [
			{"geometry": {"type": "Point", "coordinates": [-79.40, 43.70]}, "properties": {"OCC_DATE": "2026-01-05"}},
			{"geometry": {"type": "Point", "coordinates": [-79.41, 43.71]}, "properties": {"OCC_DATE": "2026-01-06"}}
		]
	}`
	incidents, err := ParseGeoJSON(strings.NewReader(geojson), "Robbery.geojson")
	require.NoError(t, err)
	require.Len(t, incidents, 2)

	assert.Equal(t, "Robbery.geojson:1", incidents[0].ID)
	assert.Equal(t, "Robbery.geojson:2", incidents[1].ID)
}

const homicideGeoJSON = `{
	"type": "FeatureCollection",
	"features": [
		{
			"geometry": {"type": "Point", "coordinates": [-79.4001, 43.7001]},
			"properties": {"EVENT_UNIQUE_ID": "GO-9", "OCC_DATE": 1767225600000, "NEIGHBOURHOOD_158": "Annex"}
		},
		{
			"geometry": {"type": "LineString", "coordinates": [-79.4, 43.7]},
			"properties": {"EVENT_UNIQUE_ID": "GO-10", "OCC_DATE": 1767225600000}
		},
		{
			"geometry": {"type": "Point", "coordinates": [0, 0]},
			"properties": {"EVENT_UNIQUE_ID": "GO-11", "OCC_DATE": 1767225600000}
		}
	]
}`

func TestParseGeoJSON(t *testing.T) {
	incidents, err := ParseGeoJSON(strings.NewReader(homicideGeoJSON), "Homicides.geojson")
	require.NoError(t, err)
	require.Len(t, incidents, 1, "non-point and zero-coordinate features are skipped")

	got := incidents[0]
	assert.Equal(t, "GO-9", got.ID)
	assert.Equal(t, model.CategoryHomicide, got.Category)
	assert.InDelta(t, 43.7001, got.Latitude, 1e-9)
	assert.InDelta(t, -79.4001, got.Longitude, 1e-9)
	// 1767225600000 ms is 2026-01-01T00:00:00Z.
	assert.True(t, got.OccurredAt.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Annex", got.Neighbourhood)
}

func TestParseGeoJSONInvalid(t *testing.T) {
	_, err := ParseGeoJSON(strings.NewReader("{not json"), "bad.geojson")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want time.Time
	}{
		{in: "2026-03-10", ok: true, want: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
		{in: "2026-03-10T14:30:00", ok: true, want: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)},
		{in: "2026-03-10 14:30:00", ok: true, want: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)},
		{in: "1767225600000", ok: true, want: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{in: "garbage", ok: false},
		{in: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := parseDate(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.True(t, tt.want.Equal(got), "input %q: got %v", tt.in, got)
		}
	}
}
