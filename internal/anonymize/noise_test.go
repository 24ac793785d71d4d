package anonymize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddLaplaceNoiseIsFinite(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v := AddLaplaceNoise(100, 1.0, 1.0)
		assert.False(t, math.IsNaN(v))
		assert.False(t, math.IsInf(v, 0))
	}
}

func TestAddLaplaceNoiseRoundsToTwoDecimals(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := AddLaplaceNoise(10, 1.0, 1.0)
		assert.InDelta(t, v, math.Round(v*100)/100, 1e-9)
	}
}

func TestAddLaplaceNoiseCentersOnValue(t *testing.T) {
	const n = 5000
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += AddLaplaceNoise(50, 1.0, 1.0)
	}
	// Laplace(0, 1) has mean 0 and variance 2; the sample mean over 5000
	// draws stays well within half a unit of the true value.
	assert.InDelta(t, 50.0, sum/n, 0.5)
}

func TestAddLaplaceNoiseScalesWithEpsilon(t *testing.T) {
	spread := func(epsilon float64) float64 {
		const n = 3000
		total := 0.0
		for i := 0; i < n; i++ {
			total += math.Abs(AddLaplaceNoise(0, epsilon, 1.0))
		}
		return total / n
	}

	// Smaller epsilon means a larger expected absolute deviation.
	assert.Greater(t, spread(0.1), spread(10.0))
}

func TestAddLaplaceNoiseInvalidParametersFallBack(t *testing.T) {
	// Non-positive epsilon/sensitivity must not panic or produce Inf.
	v := AddLaplaceNoise(5, 0, -1)
	assert.False(t, math.IsNaN(v))
	assert.False(t, math.IsInf(v, 0))
}

func TestNoiseNumericString(t *testing.T) {
	assert.Equal(t, "pending", NoiseNumericString("pending", 1.0, 1.0))
	assert.Equal(t, "", NoiseNumericString("", 1.0, 1.0))

	out := NoiseNumericString("12.5", 1000, 1.0)
	assert.NotEmpty(t, out)
	assert.NotEqual(t, "pending", out)
}
