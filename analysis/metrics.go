package analysis

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

// FWHM returns the full width at half maximum of y over x, in x units.
// The crossings on either side of the peak are located by linear
// interpolation between samples.  An error is returned when the curve
// never falls to half maximum on both sides of the peak.
func FWHM(x, y []float64) (float64, error) {
	if len(x) != len(y) || len(x) < 3 {
		return 0, errors.Errorf("analysis: fwhm needs matching series of >= 3 samples, got %d/%d", len(x), len(y))
	}
	peak := floats.MaxIdx(y)
	max := y[peak]
	if max <= 0 {
		return 0, errors.New("analysis: fwhm of a non-positive curve")
	}
	half := max / 2

	left := -1.0
	for i := peak; i > 0; i-- {
		if y[i-1] <= half {
			left = crossing(x[i-1], x[i], y[i-1], y[i], half)
			break
		}
	}
	right := -1.0
	for i := peak; i < len(y)-1; i++ {
		if y[i+1] <= half {
			right = crossing(x[i], x[i+1], y[i], y[i+1], half)
			break
		}
	}
	if left < 0 || right < 0 {
		return 0, errors.New("analysis: curve does not fall to half maximum on both sides")
	}
	return right - left, nil
}

// crossing interpolates the x where the segment (x0,y0)-(x1,y1) crosses
// level.
func crossing(x0, x1, y0, y1, level float64) float64 {
	if y1 == y0 {
		return x0
	}
	return x0 + (level-y0)*(x1-x0)/(y1-y0)
}

// IntegratedIntensity is the trapezoidal integral of y over x.
func IntegratedIntensity(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	return integrate.Trapezoidal(x, y)
}
