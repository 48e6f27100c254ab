package forecast

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/civicsignal/safescore/internal/config"
	"github.com/civicsignal/safescore/internal/model"
)

// Model labels reported in ForecastResult.ModelUsed.
const (
	ModelSeasonal      = "Seasonal Decomposition"
	ModelHolt          = "Holt Exponential Smoothing"
	ModelPolynomial    = "Polynomial Regression"
	ModelLinear        = "Linear Regression"
	ModelMovingAverage = "Moving Average"
)

// zScore95 converts an RMSE into a ~95% confidence half-width.
const zScore95 = 1.96

// Forecaster projects the next period's score from a history series.
type Forecaster struct {
	cfg config.ForecastConfig
}

// New builds a Forecaster from configuration.
func New(cfg config.ForecastConfig) *Forecaster {
	return &Forecaster{cfg: cfg}
}

type candidate struct {
	name string
	fn   func([]float64) (fit, error)
}

// cascade ordering: the seasonal decomposition is the primary model, the
// linear trend is the fallback when the series is too short or the
// decomposition fails numerically.
var cascadeModels = []candidate{
	{ModelSeasonal, fitSeasonal},
	{ModelLinear, fitLinear},
}

// best-RMSE pool ordering doubles as the deterministic tie-break.
var poolModels = []candidate{
	{ModelSeasonal, fitSeasonal},
	{ModelHolt, fitHolt},
	{ModelPolynomial, fitPolynomial},
	{ModelLinear, fitLinear},
	{ModelMovingAverage, fitMovingAverage},
}

// Project produces a one-step-ahead forecast from the history series,
// ordered oldest to newest. Series shorter than the configured minimum
// return ErrInsufficientHistory; the caller surfaces that as a nil
// forecast, not a failed score.
func (f *Forecaster) Project(history []model.YearScore) (*model.ForecastResult, error) {
	if len(history) < f.cfg.MinPoints {
		return nil, eris.Wrapf(model.ErrInsufficientHistory,
			"forecast: need %d points, have %d", f.cfg.MinPoints, len(history))
	}

	series := make([]float64, len(history))
	for i, h := range history {
		series[i] = h.SafetyScore
	}

	name, result, err := f.selectFit(series)
	if err != nil {
		return nil, err
	}

	current := series[len(series)-1]
	predicted := clampScore(round1(result.predicted))

	direction := model.TrendFlat
	switch {
	case predicted > current+f.cfg.StableBand:
		direction = model.TrendImproving
	case predicted < current-f.cfg.StableBand:
		direction = model.TrendDeclining
	}

	return &model.ForecastResult{
		PredictedScore:     predicted,
		TrendDirection:     direction,
		ModelUsed:          name,
		RMSE:               round2(result.rmse),
		ConfidenceInterval: round1(zScore95 * result.rmse),
	}, nil
}

func (f *Forecaster) selectFit(series []float64) (string, fit, error) {
	if f.cfg.Selection == "best" {
		return bestFit(series)
	}
	return cascadeFit(series)
}

// cascadeFit tries each model in order and returns the first that fits.
// Numeric failures are recovered locally by moving down the chain.
func cascadeFit(series []float64) (string, fit, error) {
	var lastErr error
	for _, c := range cascadeModels {
		result, err := c.fn(series)
		if err == nil {
			return c.name, result, nil
		}
		lastErr = err
	}
	return "", fit{}, eris.Wrap(lastErr, "forecast: no model fit the series")
}

// bestFit fits the whole pool and picks the lowest in-sample RMSE.
// Ties keep the earlier model in pool order.
func bestFit(series []float64) (string, fit, error) {
	bestName := ""
	var best fit
	bestRMSE := math.Inf(1)
	var lastErr error

	for _, c := range poolModels {
		result, err := c.fn(series)
		if err != nil {
			lastErr = err
			continue
		}
		if result.rmse < bestRMSE {
			bestName, best, bestRMSE = c.name, result, result.rmse
		}
	}
	if bestName == "" {
		return "", fit{}, eris.Wrap(lastErr, "forecast: no model fit the series")
	}
	return bestName, best, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
