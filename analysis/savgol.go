package analysis

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SavGol is a Savitzky-Golay smoothing filter: a least-squares polynomial
// fit over a sliding window, evaluated at the window center.
type SavGol struct {
	// Window is the filter length in samples; it must be odd and larger
	// than Order.
	Window int `koanf:"window" yaml:"window"`

	// Order is the fitted polynomial order.
	Order int `koanf:"order" yaml:"order"`

	coeffs []float64
}

// NewSavGol designs a filter.  The convolution coefficients are the first
// row of the pseudo-inverse of the window's Vandermonde matrix.
func NewSavGol(window, order int) (*SavGol, error) {
	if window < 3 || window%2 == 0 {
		return nil, errors.Errorf("analysis: savgol window must be odd and >= 3, got %d", window)
	}
	if order < 0 || order >= window {
		return nil, errors.Errorf("analysis: savgol order %d invalid for window %d", order, window)
	}
	half := window / 2
	a := mat.NewDense(window, order+1, nil)
	for i := 0; i < window; i++ {
		x := float64(i - half)
		p := 1.0
		for j := 0; j <= order; j++ {
			a.Set(i, j, p)
			p *= x
		}
	}
	var ata mat.Dense
	ata.Mul(a.T(), a)
	var inv mat.Dense
	if err := inv.Inverse(&ata); err != nil {
		return nil, errors.Wrap(err, "analysis: savgol design matrix is singular")
	}
	var pinv mat.Dense
	pinv.Mul(&inv, a.T())
	co := make([]float64, window)
	for i := range co {
		co[i] = pinv.At(0, i)
	}
	return &SavGol{Window: window, Order: order, coeffs: co}, nil
}

// Smooth filters y and returns a new slice of the same length.  The input
// is mirror-padded so the ends stay usable.  Inputs shorter than the
// window are returned unchanged.
func (s *SavGol) Smooth(y []float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	if n < s.Window {
		copy(out, y)
		return out
	}
	half := s.Window / 2
	at := func(i int) float64 {
		// mirror about the end samples
		if i < 0 {
			i = -i
		}
		if i > n-1 {
			i = 2*(n-1) - i
		}
		return y[i]
	}
	for i := 0; i < n; i++ {
		var v float64
		for j, c := range s.coeffs {
			v += c * at(i+j-half)
		}
		out[i] = v
	}
	return out
}
