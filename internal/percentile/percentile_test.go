package percentile

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/growth.report/internal/reference"
)

var heightAt24 = reference.LMS{L: 1, M: 87.1, S: 0.04}

func TestPercentile_MedianIsFifty(t *testing.T) {
	params := []reference.LMS{
		heightAt24,
		{L: 0, M: 11.7, S: 0.11},
		{L: -0.6, M: 31.2, S: 0.163},
		{L: 0.35, M: 3.35, S: 0.146},
	}
	for _, lms := range params {
		got, err := Percentile(lms.M, lms)
		require.NoError(t, err)
		assert.Equal(t, 50.0, got, "%+v", lms)
	}
}

func TestPercentile_EndToEndExample(t *testing.T) {
	p, err := Percentile(87.1, heightAt24)
	require.NoError(t, err)
	assert.Equal(t, 50.0, p)

	v, err := ValueAtPercentile(p/100, heightAt24)
	require.NoError(t, err)
	assert.InDelta(t, 87.1, v, 1e-9)
}

func TestPercentile_KnownValues(t *testing.T) {
	// One standard deviation above the median when L = 1.
	oneSD := heightAt24.M * (1 + heightAt24.S)
	p, err := Percentile(oneSD, heightAt24)
	require.NoError(t, err)
	assert.Equal(t, 84.1, p)

	// Same for the log branch.
	logLMS := reference.LMS{L: 0, M: 12, S: 0.1}
	p, err = Percentile(12*math.Exp(-0.1), logLMS)
	require.NoError(t, err)
	assert.Equal(t, 15.9, p)
}

func TestPercentile_RoundTrip(t *testing.T) {
	params := []reference.LMS{
		heightAt24,
		{L: -0.6, M: 31.2, S: 0.163},
		{L: 0.35, M: 3.35, S: 0.146},
		{L: 0, M: 11.7, S: 0.113},
	}
	for _, lms := range params {
		for _, f := range []float64{0.85, 0.92, 0.97, 1.0, 1.04, 1.1, 1.18} {
			v := lms.M * f

			// Exact inverse before rounding.
			z, err := ZScore(v, lms)
			require.NoError(t, err)
			back, err := ValueAtPercentile(distuv.UnitNormal.CDF(z), lms)
			require.NoError(t, err)
			assert.InDelta(t, v, back, 1e-6*v, "exact round trip %+v v=%v", lms, v)

			// Through the one-decimal stored percentile.
			p, err := Percentile(v, lms)
			require.NoError(t, err)
			if p <= 0 || p >= 100 {
				continue
			}
			back, err = ValueAtPercentile(p/100, lms)
			require.NoError(t, err)
			assert.InEpsilon(t, v, back, 0.01, "rounded round trip %+v v=%v p=%v", lms, v, p)
		}
	}
}

func TestZScore_LZeroContinuity(t *testing.T) {
	for _, v := range []float64{8, 10, 11.7, 13, 16} {
		logBranch, err := ZScore(v, reference.LMS{L: 0, M: 11.7, S: 0.113})
		require.NoError(t, err)
		for _, l := range []float64{1e-6, -1e-6, 1e-9} {
			powBranch, err := ZScore(v, reference.LMS{L: l, M: 11.7, S: 0.113})
			require.NoError(t, err)
			assert.InDelta(t, logBranch, powBranch, 1e-4, "v=%v L=%v", v, l)
		}
	}

	logInv, err := ValueAtPercentile(0.8, reference.LMS{L: 0, M: 11.7, S: 0.113})
	require.NoError(t, err)
	powInv, err := ValueAtPercentile(0.8, reference.LMS{L: 1e-7, M: 11.7, S: 0.113})
	require.NoError(t, err)
	assert.InDelta(t, logInv, powInv, 1e-5)
}

func TestPercentile_Monotonic(t *testing.T) {
	for _, lms := range []reference.LMS{heightAt24, {L: 0, M: 11.7, S: 0.113}, {L: -0.6, M: 31.2, S: 0.163}} {
		prevZ := math.Inf(-1)
		prevP := -1.0
		for v := lms.M * 0.5; v <= lms.M*1.5; v += lms.M * 0.01 {
			z, err := ZScore(v, lms)
			require.NoError(t, err)
			assert.Greater(t, z, prevZ, "z must strictly increase at v=%v", v)
			prevZ = z

			p, err := Percentile(v, lms)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, p, prevP, "percentile must not decrease at v=%v", v)
			prevP = p
		}
	}

	lo, err := Percentile(80, heightAt24)
	require.NoError(t, err)
	hi, err := Percentile(90, heightAt24)
	require.NoError(t, err)
	assert.Less(t, lo, hi)
}

func TestPercentile_Bounds(t *testing.T) {
	for _, v := range []float64{1e-9, 0.01, 1, 50, 87.1, 200, 1e6} {
		p, err := Percentile(v, heightAt24)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 100.0)
	}

	p, err := Percentile(1e6, heightAt24)
	require.NoError(t, err)
	assert.Equal(t, 100.0, p)
}

func TestPercentile_InvalidMeasurement(t *testing.T) {
	for _, v := range []float64{0, -3, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Percentile(v, heightAt24)
		assert.ErrorIs(t, err, ErrInvalidMeasurement, "v=%v", v)

		_, err = Percentile(v, reference.LMS{L: 0, M: 12, S: 0.1})
		assert.ErrorIs(t, err, ErrInvalidMeasurement, "log branch v=%v", v)
	}
}

func TestValueAtPercentile_ProbabilityRange(t *testing.T) {
	for _, p := range []float64{0, 1, -0.1, 1.5, math.NaN()} {
		_, err := ValueAtPercentile(p, heightAt24)
		assert.True(t, errors.Is(err, ErrProbabilityOutOfRange), "p=%v", p)
	}
}

func TestValueAtPercentile_OutOfDomain(t *testing.T) {
	// L*S*z + 1 <= 0 once z is far enough below zero for a large positive L.
	_, err := ValueAtPercentile(0.0001, reference.LMS{L: 5, M: 10, S: 0.1})
	assert.ErrorIs(t, err, ErrOutOfDomain)
}

func TestClampPercentile(t *testing.T) {
	assert.Equal(t, MinPercentile, ClampPercentile(0))
	assert.Equal(t, MaxPercentile, ClampPercentile(100))
	assert.Equal(t, 42.5, ClampPercentile(42.5))

	v, err := ValueAtPercentile(ClampPercentile(100)/100, heightAt24)
	require.NoError(t, err)
	assert.Greater(t, v, heightAt24.M)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 84.1, Round1(84.1344))
	assert.Equal(t, 50.0, Round1(49.96))
	assert.Equal(t, 0.1, Round1(0.05))
}

func TestFromZScore(t *testing.T) {
	assert.Equal(t, 50.0, FromZScore(0))
	assert.Equal(t, 97.5, FromZScore(1.96))
	assert.Equal(t, 2.5, FromZScore(-1.96))

	for _, v := range []float64{80, 87.1, 95.3} {
		z, err := ZScore(v, heightAt24)
		require.NoError(t, err)
		p, err := Percentile(v, heightAt24)
		require.NoError(t, err)
		assert.Equal(t, p, FromZScore(z), "value %v", v)
	}
}
