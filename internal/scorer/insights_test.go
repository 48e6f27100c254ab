package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatHour(t *testing.T) {
	tests := []struct {
		h    int
		want string
	}{
		{0, "12am"},
		{5, "5am"},
		{11, "11am"},
		{12, "12pm"},
		{13, "1pm"},
		{20, "8pm"},
		{23, "11pm"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatHour(tt.h), "hour %d", tt.h)
	}
}

func TestTopSubtypes(t *testing.T) {
	counts := map[string]int{
		"Assault":               12,
		"Assault With Weapon":   7,
		"Aggravated Assault":    7,
		"Assault Peace Officer": 2,
	}

	got := topSubtypes(counts, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "Assault", got[0].Type)
	// Equal counts break ties lexically so output is stable run to run.
	assert.Equal(t, "Aggravated Assault", got[1].Type)
	assert.Equal(t, "Assault With Weapon", got[2].Type)
}

func TestTopSubtypesFewerThanLimit(t *testing.T) {
	got := topSubtypes(map[string]int{"Robbery": 1}, 3)
	require.Len(t, got, 1)
	assert.Equal(t, "Robbery", got[0].Type)

	assert.Empty(t, topSubtypes(map[string]int{}, 3))
}

func TestTopCounts(t *testing.T) {
	counts := map[string]int{"Outside": 9, "Apartment": 5, "House": 5, "Commercial": 1, "Transit": 1, "Educational": 1}

	got := topCounts(counts, 5)
	require.Len(t, got, 5)
	assert.Equal(t, 9, got["Outside"])
	assert.Equal(t, 5, got["Apartment"])
	assert.Equal(t, 5, got["House"])
	// Count-1 tie resolves lexically; Transit falls off.
	assert.Contains(t, got, "Commercial")
	assert.Contains(t, got, "Educational")
	assert.NotContains(t, got, "Transit")
}

func TestModeLabel(t *testing.T) {
	assert.Equal(t, "", modeLabel(nil))
	assert.Equal(t, "Downtown", modeLabel(map[string]int{"Downtown": 3, "Riverside": 1}))
	assert.Equal(t, "Annex", modeLabel(map[string]int{"Beaches": 2, "Annex": 2}))
}

func TestPeakRange(t *testing.T) {
	clock := make([]float64, 24)
	for i := range clock {
		clock[i] = 90
	}
	clock[21], clock[22], clock[23] = 40, 35, 45

	assert.Equal(t, "21:00-0:00", peakRange(clock))
}

func TestPeakRangeWrapsMidnight(t *testing.T) {
	clock := make([]float64, 24)
	for i := range clock {
		clock[i] = 90
	}
	clock[23], clock[0], clock[1] = 30, 30, 30

	assert.Equal(t, "23:00-2:00", peakRange(clock))
}
