package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsignal/safescore/internal/benchmark"
	"github.com/civicsignal/safescore/internal/config"
	"github.com/civicsignal/safescore/internal/forecast"
	"github.com/civicsignal/safescore/internal/geo"
	"github.com/civicsignal/safescore/internal/model"
	"github.com/civicsignal/safescore/internal/scorer"
)

type emptySource struct{}

func (emptySource) QueryWindow(ctx context.Context, bbox geo.BBox, since time.Time) ([]model.Incident, error) {
	return nil, nil
}

func testAPIServer(t *testing.T, dist *benchmark.Distribution) *apiServer {
	t.Helper()
	cfg = &config.Config{}
	cfg.Server.AllowedOrigins = []string{"*"}

	snap := &benchmark.Snapshot{}
	if dist != nil {
		snap.Swap(dist)
	}

	boundary := geo.FromBBox("test area", geo.BBox{
		MinLat: 43.5, MaxLat: 43.9, MinLon: -79.7, MaxLon: -79.1,
	})
	policy, err := scorer.NewPolicy(config.ScoringConfig{
		RadiusKM: 0.8, DecayRate: 0.15, WindowDays: 365, HistoryYears: 10,
		DayStartHour: 6, DayEndHour: 18, TopSubtypes: 3,
		LowSafetyThreshold: 50, HighSafetyThreshold: 80, NightRiskGap: 20,
		SeverityWeights: config.DefaultSeverityWeights(),
	})
	require.NoError(t, err)

	engine := scorer.New(emptySource{}, snap, boundary, policy,
		forecast.New(config.ForecastConfig{Selection: "cascade", MinPoints: 3, StableBand: 2}))

	return &apiServer{env: &env{Snapshot: snap, Boundary: boundary, Engine: engine}}
}

func scoredDistribution() *benchmark.Distribution {
	byCat := make(map[model.Category][]float64, len(model.Categories))
	for _, cat := range model.Categories {
		byCat[cat] = []float64{0, 1, 2, 3}
	}
	return &benchmark.Distribution{
		Overall:    []float64{0, 1, 2, 3},
		ByCategory: byCat,
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := testAPIServer(t, nil)

	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"benchmark":"unavailable"`)
}

func TestScoreCoordsValidation(t *testing.T) {
	s := testAPIServer(t, scoredDistribution())
	router := s.router()

	tests := []struct {
		name string
		url  string
		code int
	}{
		{name: "missing params", url: "/score/coords", code: http.StatusBadRequest},
		{name: "non-numeric", url: "/score/coords?lat=abc&lon=-79.4", code: http.StatusBadRequest},
		{name: "out of coverage", url: "/score/coords?lat=51.5&lon=-0.12", code: http.StatusUnprocessableEntity},
		{name: "valid", url: "/score/coords?lat=43.7&lon=-79.4", code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestScoreCoordsBenchmarkMissing(t *testing.T) {
	s := testAPIServer(t, nil)

	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/score/coords?lat=43.7&lon=-79.4", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScorePincodeRequired(t *testing.T) {
	s := testAPIServer(t, scoredDistribution())

	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/score", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHeatmapBenchmarkMissing(t *testing.T) {
	s := testAPIServer(t, nil)

	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/heatmap", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
