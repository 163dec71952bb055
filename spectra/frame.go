/*Package spectra holds the in-memory representation of a captured spectrum
and the small amount of math the acquisition loop performs on it.

A Frame is one readout of the detector: an ordered list of (wavelength,
counts) samples plus the conditions it was taken under.  Frames are treated
as immutable once acquired; operations like subtraction and denoising return
new frames and never mutate their inputs.
*/
package spectra

import (
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Frame is one captured spectrum with its acquisition metadata.
type Frame struct {
	// Wavelength holds the sample abscissa in nanometers, ascending.
	Wavelength []float64

	// Counts holds the detector signal for each wavelength sample.
	Counts []float64

	// IntegrationTime is the exposure used for this frame, seconds.
	IntegrationTime float64

	// Angle is the filter wheel position the frame was taken at, degrees.
	Angle float64

	// Timestamp is when the acquisition completed.
	Timestamp time.Time

	// Triggered indicates whether the excitation source was firing.
	Triggered bool
}

// Len returns the number of samples in the frame.
func (f Frame) Len() int {
	return len(f.Counts)
}

// Max returns the largest count value in the frame, or 0 for an empty frame.
func (f Frame) Max() float64 {
	if len(f.Counts) == 0 {
		return 0
	}
	return floats.Max(f.Counts)
}

// Saturated reports whether any sample meets or exceeds threshold.
func (f Frame) Saturated(threshold float64) bool {
	return f.Max() >= threshold
}

// clone copies the sample data of f so the result can be modified freely.
func (f Frame) clone() Frame {
	g := f
	g.Wavelength = append([]float64(nil), f.Wavelength...)
	g.Counts = append([]float64(nil), f.Counts...)
	return g
}

// Subtract computes the net frame sig - bg, sample-wise.  The result carries
// sig's metadata.  The frames must be the same length; the wavelength axes
// are assumed to match since both come from the same instrument state.
func Subtract(sig, bg Frame) (Frame, error) {
	if sig.Len() != bg.Len() {
		return Frame{}, errors.Errorf("spectra: length mismatch, signal has %d samples, background has %d", sig.Len(), bg.Len())
	}
	net := sig.clone()
	floats.Sub(net.Counts, bg.Counts)
	return net, nil
}
