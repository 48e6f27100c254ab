package benchmark

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsignal/safescore/internal/model"
)

func testDistribution() *Distribution {
	return &Distribution{
		Meta: Metadata{
			GeneratedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			GridResolutionKM: 0.2,
			RadiusKM:         0.8,
			TotalPoints:      3,
			DataRecords:      42,
		},
		Overall: []float64{0, 4.5, 12},
		ByCategory: map[model.Category][]float64{
			model.CategoryAssault: {0, 1.5, 3},
		},
		Points: []GridScore{
			{Lat: 43.6, Lon: -79.4, Score: 12},
			{Lat: 43.7, Lon: -79.4, Score: 4.5},
			{Lat: 43.8, Lon: -79.4, Score: 0},
		},
	}
}

func TestSnapshotGetBeforeSwap(t *testing.T) {
	var snap Snapshot

	_, err := snap.Get()
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrBenchmarkUnavailable))
}

func TestSnapshotSwap(t *testing.T) {
	var snap Snapshot
	want := testDistribution()

	snap.Swap(want)

	got, err := snap.Get()
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestWriteReadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchmarks.json")
	want := testDistribution()

	require.NoError(t, WriteFile(path, want))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want.Overall, got.Overall)
	assert.Equal(t, want.ByCategory, got.ByCategory)
	assert.Equal(t, want.Points, got.Points)
	assert.True(t, want.Meta.GeneratedAt.Equal(got.Meta.GeneratedAt))
}

func TestWriteFileLeavesNoTempOnSuccess(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteFile(filepath.Join(dir, "benchmarks.json"), testDistribution()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "benchmarks.json", entries[0].Name())
}

func TestReadFileEmptyDistribution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchmarks.json")
	require.NoError(t, WriteFile(path, &Distribution{}))

	_, err := ReadFile(path)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrBenchmarkUnavailable))
}

func TestLoadFileMissing(t *testing.T) {
	var snap Snapshot
	err := snap.LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)

	_, err = snap.Get()
	assert.Error(t, err)
}
