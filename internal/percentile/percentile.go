// Package percentile implements the LMS (Box-Cox) transform between a raw
// growth measurement and its population percentile, and back again.
//
// All functions are pure and safe for concurrent use.
package percentile

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/growth.report/internal/reference"
)

var (
	// ErrInvalidMeasurement is returned for values that are not finite and positive.
	ErrInvalidMeasurement = errors.New("measurement must be a finite positive number")
	// ErrProbabilityOutOfRange is returned for probabilities outside (0, 1).
	ErrProbabilityOutOfRange = errors.New("probability must be strictly between 0 and 1")
	// ErrOutOfDomain is returned when the inverse power transform has no real value.
	ErrOutOfDomain = errors.New("percentile lies outside the LMS model domain")
)

// Percentile clamp bounds for inverse transforms that must always produce a value.
const (
	MinPercentile = 0.001
	MaxPercentile = 99.999
)

// ZScore returns the standard normal deviate of value under the LMS model.
func ZScore(value float64, lms reference.LMS) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, ErrInvalidMeasurement
	}
	switch {
	case lms.L == 0:
		return math.Log(value/lms.M) / lms.S, nil
	default:
		return (math.Pow(value/lms.M, lms.L) - 1) / (lms.L * lms.S), nil
	}
}

// Percentile returns the population percentile of value in [0, 100],
// rounded to one decimal place.
func Percentile(value float64, lms reference.LMS) (float64, error) {
	z, err := ZScore(value, lms)
	if err != nil {
		return 0, err
	}
	return FromZScore(z), nil
}

// FromZScore converts a standard normal deviate to a percentile in [0, 100],
// rounded to one decimal place.
func FromZScore(z float64) float64 {
	return Round1(100 * distuv.UnitNormal.CDF(z))
}

// ValueAtPercentile is the inverse of Percentile: p is a probability in (0, 1).
func ValueAtPercentile(p float64, lms reference.LMS) (float64, error) {
	if math.IsNaN(p) || p <= 0 || p >= 1 {
		return 0, fmt.Errorf("%w: got %v", ErrProbabilityOutOfRange, p)
	}
	z := distuv.UnitNormal.Quantile(p)
	switch {
	case lms.L == 0:
		return lms.M * math.Exp(lms.S*z), nil
	default:
		base := lms.L*lms.S*z + 1
		if base <= 0 {
			return 0, ErrOutOfDomain
		}
		return lms.M * math.Pow(base, 1/lms.L), nil
	}
}

// ClampPercentile keeps a percentile away from 0 and 100, where the normal
// quantile diverges.
func ClampPercentile(p float64) float64 {
	return math.Max(MinPercentile, math.Min(MaxPercentile, p))
}

// Round1 rounds to one decimal place, halves away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
