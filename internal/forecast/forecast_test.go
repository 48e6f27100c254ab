package forecast

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsignal/safescore/internal/config"
	"github.com/civicsignal/safescore/internal/model"
)

func testConfig() config.ForecastConfig {
	return config.ForecastConfig{Selection: "cascade", MinPoints: 3, StableBand: 2.0}
}

func history(scores ...float64) []model.YearScore {
	h := make([]model.YearScore, len(scores))
	for i, s := range scores {
		h[i] = model.YearScore{Year: 2017 + i, SafetyScore: s}
	}
	return h
}

func TestProjectShortSeries(t *testing.T) {
	f := New(testConfig())

	tests := []struct {
		name string
		h    []model.YearScore
	}{
		{name: "empty", h: nil},
		{name: "single point", h: history(50)},
		{name: "two points", h: history(50, 60)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Project(tt.h)
			require.Error(t, err)
			assert.True(t, eris.Is(err, model.ErrInsufficientHistory))
		})
	}
}

func TestProjectCascadeFallsBackToLinear(t *testing.T) {
	f := New(testConfig())

	// Three points cannot anchor the seasonal decomposition, so the
	// cascade lands on the linear trend: 30, 40, 50 extrapolates to 60.
	fc, err := f.Project(history(30, 40, 50))
	require.NoError(t, err)

	assert.Equal(t, ModelLinear, fc.ModelUsed)
	assert.InDelta(t, 60.0, fc.PredictedScore, 1e-9)
	assert.Equal(t, model.TrendImproving, fc.TrendDirection)
	assert.InDelta(t, 0.0, fc.RMSE, 1e-9)
}

func TestProjectDirections(t *testing.T) {
	f := New(testConfig())

	tests := []struct {
		name string
		h    []model.YearScore
		want model.TrendDirection
	}{
		{name: "rising", h: history(30, 40, 50), want: model.TrendImproving},
		{name: "falling", h: history(80, 70, 60), want: model.TrendDeclining},
		{name: "flat", h: history(55, 55, 55), want: model.TrendFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := f.Project(tt.h)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fc.TrendDirection)
		})
	}
}

func TestProjectClampsToScoreRange(t *testing.T) {
	f := New(testConfig())

	fc, err := f.Project(history(70, 85, 100))
	require.NoError(t, err)
	assert.LessOrEqual(t, fc.PredictedScore, 100.0)

	fc, err = f.Project(history(30, 15, 0))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fc.PredictedScore, 0.0)
}

func TestProjectDeterministic(t *testing.T) {
	f := New(testConfig())
	h := history(62, 58, 64, 61, 59, 63, 60, 62, 58, 61)

	first, err := f.Project(h)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := f.Project(h)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestProjectBestSelection(t *testing.T) {
	cfg := testConfig()
	cfg.Selection = "best"
	f := New(cfg)

	// A perfect line fits the linear model with zero RMSE; no pool model
	// can beat it, so best-RMSE selection must not do worse.
	fc, err := f.Project(history(40, 45, 50, 55, 60, 65, 70, 75))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, fc.RMSE, 1e-6)
	assert.InDelta(t, 80.0, fc.PredictedScore, 0.2)
}

func TestProjectConfidenceInterval(t *testing.T) {
	f := New(testConfig())

	fc, err := f.Project(history(50, 70, 45, 65, 50, 70, 45))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fc.ConfidenceInterval, 0.0)
	assert.InDelta(t, round1(zScore95*fc.RMSE), fc.ConfidenceInterval, 0.1)
}
