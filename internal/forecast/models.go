// Package forecast projects the next period's safety score from the yearly
// history series. Every model is deterministic: identical input series
// always yield identical model choice and output.
package forecast

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/civicsignal/safescore/internal/model"
)

// fit is the outcome of one model applied to a series.
type fit struct {
	predicted float64
	rmse      float64
}

// Minimum series lengths per model.
const (
	minLinear   = 3
	minHolt     = 3
	minMoving   = 3
	minPoly     = 4
	minSeasonal = 6

	movingWindow   = 3
	seasonalPeriod = 3
)

// fitLinear performs a least-squares linear fit on index and extrapolates
// one step.
func fitLinear(series []float64) (fit, error) {
	if len(series) < minLinear {
		return fit{}, eris.Wrap(model.ErrNumericModelFailure, "forecast: linear needs 3 points")
	}
	slope, intercept, ok := leastSquares(indexes(len(series)), series)
	if !ok {
		return fit{}, eris.Wrap(model.ErrNumericModelFailure, "forecast: linear fit singular")
	}

	predicted := intercept + slope*float64(len(series))
	var sse float64
	for i, v := range series {
		r := v - (intercept + slope*float64(i))
		sse += r * r
	}
	return fit{predicted: predicted, rmse: math.Sqrt(sse / float64(len(series)))}, nil
}

// fitPolynomial performs a degree-2 least-squares fit and extrapolates one step.
func fitPolynomial(series []float64) (fit, error) {
	if len(series) < minPoly {
		return fit{}, eris.Wrap(model.ErrNumericModelFailure, "forecast: polynomial needs 4 points")
	}

	n := float64(len(series))
	var sx, sx2, sx3, sx4, sy, sxy, sx2y float64
	for i, v := range series {
		x := float64(i)
		sx += x
		sx2 += x * x
		sx3 += x * x * x
		sx4 += x * x * x * x
		sy += v
		sxy += x * v
		sx2y += x * x * v
	}

	// Normal equations for y = a + b*x + c*x^2, solved by Cramer's rule.
	det := det3(
		n, sx, sx2,
		sx, sx2, sx3,
		sx2, sx3, sx4,
	)
	if math.Abs(det) < 1e-12 {
		return fit{}, eris.Wrap(model.ErrNumericModelFailure, "forecast: polynomial fit singular")
	}
	a := det3(sy, sx, sx2, sxy, sx2, sx3, sx2y, sx3, sx4) / det
	b := det3(n, sy, sx2, sx, sxy, sx3, sx2, sx2y, sx4) / det
	c := det3(n, sx, sy, sx, sx2, sxy, sx2, sx3, sx2y) / det

	eval := func(x float64) float64 { return a + b*x + c*x*x }
	var sse float64
	for i, v := range series {
		r := v - eval(float64(i))
		sse += r * r
	}
	return fit{predicted: eval(n), rmse: math.Sqrt(sse / n)}, nil
}

// fitHolt applies double exponential smoothing (additive trend). The
// smoothing constants come from a fixed grid search over (alpha, beta)
// minimizing one-step-ahead squared error, so the fit is deterministic.
func fitHolt(series []float64) (fit, error) {
	if len(series) < minHolt {
		return fit{}, eris.Wrap(model.ErrNumericModelFailure, "forecast: holt needs 3 points")
	}

	bestSSE := math.Inf(1)
	var bestPred, bestRMSE float64
	found := false

	for ai := 1; ai <= 9; ai++ {
		for bi := 1; bi <= 9; bi++ {
			alpha := float64(ai) / 10
			beta := float64(bi) / 10

			level := series[0]
			trend := series[1] - series[0]
			var sse float64
			steps := 0
			for i := 1; i < len(series); i++ {
				pred := level + trend
				r := series[i] - pred
				sse += r * r
				steps++

				prevLevel := level
				level = alpha*series[i] + (1-alpha)*(level+trend)
				trend = beta*(level-prevLevel) + (1-beta)*trend
			}

			if sse < bestSSE {
				bestSSE = sse
				bestPred = level + trend
				bestRMSE = math.Sqrt(sse / float64(steps))
				found = true
			}
		}
	}
	if !found || math.IsNaN(bestPred) {
		return fit{}, eris.Wrap(model.ErrNumericModelFailure, "forecast: holt fit failed")
	}
	return fit{predicted: bestPred, rmse: bestRMSE}, nil
}

// fitMovingAverage predicts the mean of the last window values.
func fitMovingAverage(series []float64) (fit, error) {
	if len(series) < minMoving {
		return fit{}, eris.Wrap(model.ErrNumericModelFailure, "forecast: moving average needs 3 points")
	}

	var sum float64
	for _, v := range series[len(series)-movingWindow:] {
		sum += v
	}
	predicted := sum / movingWindow

	var sse float64
	steps := 0
	for i := movingWindow; i < len(series); i++ {
		var ma float64
		for _, v := range series[i-movingWindow : i] {
			ma += v
		}
		r := series[i] - ma/movingWindow
		sse += r * r
		steps++
	}
	rmse := 5.0 // prior when the series is exactly one window long
	if steps > 0 {
		rmse = math.Sqrt(sse / float64(steps))
	}
	return fit{predicted: predicted, rmse: rmse}, nil
}

// fitSeasonal extracts a centered moving-average trend, fits a line to it,
// and extrapolates one step. This is the primary model for long series.
func fitSeasonal(series []float64) (fit, error) {
	if len(series) < minSeasonal {
		return fit{}, eris.Wrap(model.ErrNumericModelFailure, "forecast: seasonal needs 6 points")
	}

	trend := centeredTrend(series, seasonalPeriod)
	var xs, ys []float64
	for i, v := range trend {
		if !math.IsNaN(v) {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}
	if len(xs) < 2 {
		return fit{}, eris.Wrap(model.ErrNumericModelFailure, "forecast: seasonal trend too short")
	}

	slope, intercept, ok := leastSquares(xs, ys)
	if !ok {
		return fit{}, eris.Wrap(model.ErrNumericModelFailure, "forecast: seasonal trend fit singular")
	}

	predicted := intercept + slope*float64(len(series))
	var sse float64
	for i, x := range xs {
		r := ys[i] - (intercept + slope*x)
		sse += r * r
	}
	return fit{predicted: predicted, rmse: math.Sqrt(sse / float64(len(xs)))}, nil
}

// centeredTrend computes a centered moving average of the given period;
// slots without full coverage are NaN. Even periods average the two
// straddling windows the way classical decomposition does.
func centeredTrend(series []float64, period int) []float64 {
	n := len(series)
	trend := make([]float64, n)
	for i := range trend {
		trend[i] = math.NaN()
	}

	half := period / 2
	for i := half; i < n-half; i++ {
		if period%2 == 1 {
			var sum float64
			for j := i - half; j <= i+half; j++ {
				sum += series[j]
			}
			trend[i] = sum / float64(period)
		} else {
			var a, b float64
			for j := i - half; j < i+half; j++ {
				a += series[j]
			}
			for j := i - half + 1; j <= i+half; j++ {
				b += series[j]
			}
			trend[i] = (a + b) / float64(2*period)
		}
	}
	return trend
}

func leastSquares(xs, ys []float64) (slope, intercept float64, ok bool) {
	n := float64(len(xs))
	var sx, sy, sxx, sxy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxx += xs[i] * xs[i]
		sxy += xs[i] * ys[i]
	}
	det := n*sxx - sx*sx
	if math.Abs(det) < 1e-12 {
		return 0, 0, false
	}
	slope = (n*sxy - sx*sy) / det
	intercept = (sy - slope*sx) / n
	return slope, intercept, true
}

func det3(a, b, c, d, e, f, g, h, i float64) float64 {
	return a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
}

func indexes(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}
