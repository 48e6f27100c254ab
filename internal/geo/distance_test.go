package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKM(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		tol                    float64
	}{
		{name: "zero distance", lat1: 43.7, lon1: -79.4, lat2: 43.7, lon2: -79.4, want: 0, tol: 1e-9},
		{name: "one degree latitude", lat1: 43.0, lon1: -79.4, lat2: 44.0, lon2: -79.4, want: 111.2, tol: 0.5},
		{name: "toronto city hall to cn tower", lat1: 43.6534, lon1: -79.3841, lat2: 43.6426, lon2: -79.3871, want: 1.22, tol: 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKM(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.tol)
		})
	}
}

func TestHaversineSymmetric(t *testing.T) {
	a := HaversineKM(43.70, -79.40, 43.75, -79.30)
	b := HaversineKM(43.75, -79.30, 43.70, -79.40)
	assert.InDelta(t, a, b, 1e-12)
}

func TestBBoxContains(t *testing.T) {
	b := BBox{MinLat: 43.58, MaxLat: 43.85, MinLon: -79.64, MaxLon: -79.12}

	assert.True(t, b.Contains(43.7, -79.4))
	assert.True(t, b.Contains(43.58, -79.64), "edges are inclusive")
	assert.False(t, b.Contains(43.5, -79.4))
	assert.False(t, b.Contains(43.7, -79.0))
}

func TestRadiusBBox(t *testing.T) {
	b := RadiusBBox(43.7, -79.4, 0.8)

	assert.Less(t, b.MinLat, 43.7)
	assert.Greater(t, b.MaxLat, 43.7)
	assert.Less(t, b.MinLon, -79.4)
	assert.Greater(t, b.MaxLon, -79.4)

	// The box must cover the full circle: its corners sit beyond the
	// radius, its edge midpoints at or beyond it.
	assert.GreaterOrEqual(t, HaversineKM(43.7, -79.4, b.MaxLat, -79.4), 0.8-1e-6)
	assert.GreaterOrEqual(t, HaversineKM(43.7, -79.4, 43.7, b.MaxLon), 0.8-1e-6)
}
