package anonymize

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// AddLaplaceNoise applies the Laplace mechanism: noise with scale
// sensitivity/epsilon drawn via the inverse-CDF sampler, result rounded to
// two decimals. Smaller epsilon means more noise.
func AddLaplaceNoise(value, epsilon, sensitivity float64) float64 {
	if epsilon <= 0 {
		epsilon = 1.0
	}
	if sensitivity <= 0 {
		sensitivity = 1.0
	}

	var u float64
	for {
		u = rand.Float64() - 0.5
		// u == -0.5 would put ln(0) = -Inf into the sample
		if 1-2*math.Abs(u) > 0 {
			break
		}
	}

	scale := sensitivity / epsilon
	noise := -scale * sign(u) * math.Log(1-2*math.Abs(u))
	return math.Round((value+noise)*100) / 100
}

// NoiseNumericString noises a numeric string value; non-numeric input passes
// through unchanged.
func NoiseNumericString(raw string, epsilon, sensitivity float64) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return raw
	}
	noised := AddLaplaceNoise(v, epsilon, sensitivity)
	return strconv.FormatFloat(noised, 'f', -1, 64)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	if v > 0 {
		return 1
	}
	return 0
}
