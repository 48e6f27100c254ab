package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsignal/safescore/internal/geo"
	"github.com/civicsignal/safescore/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleIncidents(base time.Time) []model.Incident {
	return []model.Incident{
		{
			ID: "ev-1", Category: model.CategoryAssault, Subtype: "Assault",
			Latitude: 43.70, Longitude: -79.40, OccurredAt: base,
			PremisesType: "Outside", Neighbourhood: "Annex", SourceFile: "Assault.csv",
		},
		{
			ID: "ev-2", Category: model.CategoryRobbery, Subtype: "Mugging",
			Latitude: 43.71, Longitude: -79.41, OccurredAt: base.AddDate(0, -6, 0),
			PremisesType: "Transit", Neighbourhood: "Beaches", SourceFile: "Robbery.csv",
		},
		{
			ID: "ev-3", Category: model.CategoryAutoTheft, Subtype: "Theft Of Vehicle",
			Latitude: 43.90, Longitude: -79.40, OccurredAt: base.AddDate(-3, 0, 0),
			PremisesType: "House", Neighbourhood: "North", SourceFile: "Auto_Theft.csv",
		},
	}
}

func TestSQLiteInsertAndQueryWindow(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	inserted, err := s.InsertIncidents(ctx, sampleIncidents(base))
	require.NoError(t, err)
	assert.Equal(t, int64(3), inserted)

	// Duplicate IDs are ignored, not errors.
	again, err := s.InsertIncidents(ctx, sampleIncidents(base))
	require.NoError(t, err)
	assert.Zero(t, again)

	bbox := geo.BBox{MinLat: 43.65, MaxLat: 43.75, MinLon: -79.45, MaxLon: -79.35}
	got, err := s.QueryWindow(ctx, bbox, base.AddDate(-1, 0, 0))
	require.NoError(t, err)
	require.Len(t, got, 2, "ev-3 is outside the bbox and too old")

	ids := []string{got[0].ID, got[1].ID}
	assert.ElementsMatch(t, []string{"ev-1", "ev-2"}, ids)
	for _, inc := range got {
		assert.NotEmpty(t, inc.Subtype)
		assert.NotEmpty(t, inc.Neighbourhood)
	}
}

func TestSQLiteInsertSkipsInvalid(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	inserted, err := s.InsertIncidents(ctx, []model.Incident{
		{ID: "no-date", Category: model.CategoryAssault, Latitude: 43.7, Longitude: -79.4},
	})
	require.NoError(t, err)
	assert.Zero(t, inserted)

	count, err := s.CountIncidents(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteDateRange(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	minT, maxT, err := s.DateRange(ctx)
	require.NoError(t, err)
	assert.True(t, minT.IsZero())
	assert.True(t, maxT.IsZero())

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err = s.InsertIncidents(ctx, sampleIncidents(base))
	require.NoError(t, err)

	minT, maxT, err = s.DateRange(ctx)
	require.NoError(t, err)
	assert.True(t, minT.Equal(base.AddDate(-3, 0, 0)))
	assert.True(t, maxT.Equal(base))
}

func TestSQLiteRefreshLedger(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	got, err := s.LastRefresh(ctx, "Assault.csv")
	require.NoError(t, err)
	assert.Nil(t, got, "unknown source yields nil, not an error")

	rec := RefreshRecord{
		Source:      "Assault.csv",
		RunID:       "run-1",
		RecordCount: 120,
		MinOccurred: time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxOccurred: time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC),
		RefreshedAt: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.RecordRefresh(ctx, rec))

	got, err = s.LastRefresh(ctx, "Assault.csv")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 120, got.RecordCount)

	// Upsert replaces the row for the same source.
	rec.RunID = "run-2"
	rec.RefreshedAt = rec.RefreshedAt.Add(24 * time.Hour)
	require.NoError(t, s.RecordRefresh(ctx, rec))

	got, err = s.LastRefresh(ctx, "Assault.csv")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-2", got.RunID)

	latest, err := s.LatestRefreshAt(ctx)
	require.NoError(t, err)
	assert.True(t, latest.Equal(rec.RefreshedAt))
}
