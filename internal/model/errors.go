package model

import "github.com/rotisserie/eris"

// Sentinel errors for the scoring pipeline. Callers classify failures with
// eris.Is and map them to transport-level responses.
var (
	// ErrOutOfCoverage marks a query coordinate outside the service-area
	// boundary or grid coverage. Not retryable with the same input.
	ErrOutOfCoverage = eris.New("out of coverage")

	// ErrInsufficientHistory marks a forecast request on a series shorter
	// than the minimum. Surfaced as a nil forecast, never as a failed score.
	ErrInsufficientHistory = eris.New("insufficient history")

	// ErrBenchmarkUnavailable marks a missing or mid-regeneration reference
	// distribution. Retryable after backoff.
	ErrBenchmarkUnavailable = eris.New("benchmark distribution unavailable")

	// ErrNumericModelFailure marks a forecast model that failed to fit.
	// Recovered locally by falling back to a simpler model.
	ErrNumericModelFailure = eris.New("numeric model failure")

	// ErrInvalidCoordinate marks malformed query input such as non-finite
	// latitude or longitude.
	ErrInvalidCoordinate = eris.New("invalid coordinate")

	// ErrNotFound marks a postal code the geocoder could not resolve.
	ErrNotFound = eris.New("not found")
)
