// Package ingest loads incident records from open-data portal extracts
// (CSV and GeoJSON) into the store, keeping a refresh ledger per source.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/civicsignal/safescore/internal/model"
)

// Portal extracts are inconsistent about column names across datasets, so
// every field is resolved through an ordered alias list.
var (
	latColumns  = []string{"LAT_WGS84", "Latitude", "lat"}
	lonColumns  = []string{"LONG_WGS84", "Longitude", "lon"}
	dateColumns = []string{"OCC_DATE", "OCC_date", "REPORT_DATE", "date"}
	typeColumns = []string{"OFFENCE", "PRIMARY_OFFENCE"}
	idColumns   = []string{"EVENT_UNIQUE_ID", "OBJECTID"}
	hoodColumns = []string{"NEIGHBOURHOOD_158", "NEIGHBOURHOOD_140"}
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
}

// fileCategories maps dataset filename fragments to categories for rows
// whose own category column is missing or reads NonMCI.
var fileCategories = []struct {
	fragment string
	category model.Category
}{
	{"assault", model.CategoryAssault},
	{"auto_theft", model.CategoryAutoTheft},
	{"bicycle", model.CategoryBicycleTheft},
	{"break_and_enter", model.CategoryBreakEnter},
	{"homicide", model.CategoryHomicide},
	{"robbery", model.CategoryRobbery},
	{"shooting", model.CategoryShooting},
	{"theft_from_motor_vehicle", model.CategoryTheftFromMV},
	{"theft_over", model.CategoryTheftOver},
}

var titleCaser = cases.Title(language.English)

// CategoryFromFilename infers a dataset's category from its filename.
func CategoryFromFilename(name string) model.Category {
	lower := strings.ToLower(name)
	for _, fc := range fileCategories {
		if strings.Contains(lower, fc.fragment) {
			return fc.category
		}
	}
	return model.CategoryOther
}

// ParseCSV reads a portal CSV extract into incidents. Rows with missing or
// zero coordinates or unparseable dates are skipped rather than failing
// the file; upstream extracts always contain a few. sourceFile labels the
// provenance of every parsed incident.
func ParseCSV(r io.Reader, sourceFile string) ([]model.Incident, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read header of %s", sourceFile)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	fileCat := CategoryFromFilename(sourceFile)

	var incidents []model.Incident
	for rowNum := 1; ; rowNum++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read row of %s", sourceFile)
		}

		lat, okLat := floatField(row, cols, latColumns)
		lon, okLon := floatField(row, cols, lonColumns)
		if !okLat || !okLon || lat == 0 || lon == 0 {
			continue
		}

		occurred, ok := parseDate(field(row, cols, dateColumns))
		if !ok {
			continue
		}
		if h, ok := floatField(row, cols, []string{"OCC_HOUR"}); ok && h >= 0 && h < 24 {
			occurred = time.Date(occurred.Year(), occurred.Month(), occurred.Day(), int(h), 0, 0, 0, occurred.Location())
		}

		cat := fileCat
		if raw := field(row, cols, []string{"MCI_CATEGORY"}); raw != "" && raw != "NonMCI" {
			cat = model.ParseCategory(raw)
		}

		subtype := titleCaser.String(strings.ToLower(field(row, cols, typeColumns)))
		if subtype == "" {
			subtype = string(cat)
		}

		incidents = append(incidents, model.Incident{
			ID:            fieldOr(row, cols, idColumns, surrogateID(sourceFile, rowNum)),
			Category:      cat,
			Subtype:       subtype,
			Latitude:      lat,
			Longitude:     lon,
			OccurredAt:    occurred,
			PremisesType:  fieldOr(row, cols, []string{"PREMISES_TYPE"}, "Unknown"),
			Neighbourhood: fieldOr(row, cols, hoodColumns, "Unknown"),
			SourceFile:    sourceFile,
		})
	}
	return incidents, nil
}

// geojson mirrors the subset of the GeoJSON feature collection schema the
// portal emits.
type geojson struct {
	Features []struct {
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

// ParseGeoJSON reads a portal GeoJSON extract into incidents. Only Point
// features are considered. ArcGIS emits dates as epoch milliseconds, so
// numeric date properties are handled alongside strings.
func ParseGeoJSON(r io.Reader, sourceFile string) ([]model.Incident, error) {
	var fc geojson
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrapf(err, "ingest: decode %s", sourceFile)
	}

	fileCat := CategoryFromFilename(sourceFile)

	var incidents []model.Incident
	for i, f := range fc.Features {
		if f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) < 2 {
			continue
		}
		lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		if lat == 0 || lon == 0 {
			continue
		}

		occurred, ok := parseDateProp(f.Properties, dateColumns)
		if !ok {
			continue
		}
		if h, ok := numberProp(f.Properties, "OCC_HOUR"); ok && h >= 0 && h < 24 {
			occurred = time.Date(occurred.Year(), occurred.Month(), occurred.Day(), int(h), 0, 0, 0, occurred.Location())
		}

		cat := fileCat
		if raw := stringProp(f.Properties, "MCI_CATEGORY"); raw != "" && raw != "NonMCI" {
			cat = model.ParseCategory(raw)
		}

		subtype := titleCaser.String(strings.ToLower(stringPropAny(f.Properties, typeColumns)))
		if subtype == "" {
			subtype = string(cat)
		}

		hood := stringPropAny(f.Properties, hoodColumns)
		if hood == "" {
			hood = "Unknown"
		}

		id := stringPropAny(f.Properties, idColumns)
		if id == "" {
			id = surrogateID(sourceFile, i+1)
		}

		incidents = append(incidents, model.Incident{
			ID:            id,
			Category:      cat,
			Subtype:       subtype,
			Latitude:      lat,
			Longitude:     lon,
			OccurredAt:    occurred,
			PremisesType:  "Unknown",
			Neighbourhood: hood,
			SourceFile:    sourceFile,
		})
	}
	return incidents, nil
}

// surrogateID keys a record that carries no ID column by its position in
// the source file, so id-less rows stay distinct through the store's
// primary-key dedup.
func surrogateID(sourceFile string, n int) string {
	return fmt.Sprintf("%s:%d", sourceFile, n)
}

func field(row []string, cols map[string]int, names []string) string {
	for _, name := range names {
		if i, ok := cols[name]; ok && i < len(row) {
			if v := strings.TrimSpace(row[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

func fieldOr(row []string, cols map[string]int, names []string, fallback string) string {
	if v := field(row, cols, names); v != "" {
		return v
	}
	return fallback
}

func floatField(row []string, cols map[string]int, names []string) (float64, bool) {
	v := field(row, cols, names)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseDate accepts the layouts seen across portal extracts, plus raw
// epoch milliseconds.
func parseDate(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 1e11 {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

func parseDateProp(props map[string]any, names []string) (time.Time, bool) {
	for _, name := range names {
		switch v := props[name].(type) {
		case string:
			if t, ok := parseDate(v); ok {
				return t, true
			}
		case float64:
			if v > 1e11 {
				return time.UnixMilli(int64(v)).UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func stringProp(props map[string]any, name string) string {
	switch v := props[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func stringPropAny(props map[string]any, names []string) string {
	for _, name := range names {
		if v := stringProp(props, name); v != "" {
			return v
		}
	}
	return ""
}

func numberProp(props map[string]any, name string) (float64, bool) {
	switch v := props[name].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}
