package analysis

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// thresholdSamples is how finely the FWHM curve is resampled before the
// gradient search.
const thresholdSamples = 500

// thresholdMask is the fraction of the fluence range skipped at the low
// end, where the spline gradient is dominated by noise on near-flat
// spontaneous emission.
const thresholdMask = 0.05

// Threshold estimates the ASE threshold fluence from the FWHM-vs-fluence
// curve: the spectrum collapses at threshold, so the knee is the steepest
// negative gradient of a spline through the points.  fluence and fwhm are
// parallel series in any order; at least four points are needed.
func Threshold(fluence, fwhm []float64) (float64, error) {
	if len(fluence) != len(fwhm) {
		return 0, errors.Errorf("analysis: %d fluences but %d widths", len(fluence), len(fwhm))
	}
	if len(fluence) < 4 {
		return 0, errors.Errorf("analysis: need at least 4 points for a threshold fit, got %d", len(fluence))
	}
	fl := append([]float64(nil), fluence...)
	wd := append([]float64(nil), fwhm...)
	sort.Sort(byFluence{fl, wd})
	for i := 1; i < len(fl); i++ {
		if fl[i] == fl[i-1] {
			return 0, errors.Errorf("analysis: duplicate fluence %g", fl[i])
		}
	}

	var spline interp.NaturalCubic
	if err := spline.Fit(fl, wd); err != nil {
		return 0, errors.Wrap(err, "analysis: fitting width spline")
	}
	xs := make([]float64, thresholdSamples)
	floats.Span(xs, fl[0], fl[len(fl)-1])
	ys := make([]float64, thresholdSamples)
	for i, x := range xs {
		ys[i] = spline.Predict(x)
	}

	grad := make([]float64, thresholdSamples)
	for i := range grad {
		switch i {
		case 0:
			grad[i] = (ys[1] - ys[0]) / (xs[1] - xs[0])
		case thresholdSamples - 1:
			grad[i] = (ys[i] - ys[i-1]) / (xs[i] - xs[i-1])
		default:
			grad[i] = (ys[i+1] - ys[i-1]) / (xs[i+1] - xs[i-1])
		}
	}

	start := int(thresholdMask * thresholdSamples)
	best := start
	for i := start + 1; i < thresholdSamples; i++ {
		if grad[i] < grad[best] {
			best = i
		}
	}
	return xs[best], nil
}

type byFluence struct{ f, w []float64 }

func (s byFluence) Len() int           { return len(s.f) }
func (s byFluence) Less(i, j int) bool { return s.f[i] < s.f[j] }
func (s byFluence) Swap(i, j int) {
	s.f[i], s.f[j] = s.f[j], s.f[i]
	s.w[i], s.w[j] = s.w[j], s.w[i]
}
