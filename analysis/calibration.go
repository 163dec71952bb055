/*Package analysis reduces a completed sweep to a fluence-dependent
emission curve and extracts the ASE threshold from it.

The reduction chain per scan point: look up the filter wheel angle on the
calibration curve to get the relative pulse energy, convert to fluence via
the corrected reference energy and the spot area, smooth the net spectrum,
and measure its FWHM and integrated intensity.  The threshold is the
fluence at the steepest collapse of FWHM versus fluence.
*/
package analysis

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// Calibration maps filter wheel angle to relative transmitted pulse
// energy in [0, 1].  It is built from a measured angle/energy table and
// interpolated with a cubic spline.
type Calibration struct {
	angles []float64
	rel    []float64
	spline interp.NaturalCubic
}

// NewCalibration builds a calibration from measured angle/energy pairs.
// Energies are normalized to their maximum, so the raw meter units cancel.
// Angles must be strictly increasing and at least four are needed for the
// cubic fit.
func NewCalibration(angles, energies []float64) (*Calibration, error) {
	if len(angles) != len(energies) {
		return nil, errors.Errorf("analysis: %d angles but %d energies", len(angles), len(energies))
	}
	if len(angles) < 4 {
		return nil, errors.Errorf("analysis: need at least 4 calibration points, got %d", len(angles))
	}
	for i := 1; i < len(angles); i++ {
		if angles[i] <= angles[i-1] {
			return nil, errors.Errorf("analysis: calibration angles must be strictly increasing at index %d", i)
		}
	}
	max := floats.Max(energies)
	if max <= 0 {
		return nil, errors.New("analysis: calibration energies are all non-positive")
	}
	rel := make([]float64, len(energies))
	for i, e := range energies {
		rel[i] = e / max
	}
	c := &Calibration{
		angles: append([]float64(nil), angles...),
		rel:    rel,
	}
	if err := c.spline.Fit(c.angles, c.rel); err != nil {
		return nil, errors.Wrap(err, "analysis: fitting calibration spline")
	}
	return c, nil
}

// LoadCalibration reads an angle,energy CSV.  Lines starting with # and a
// single header line are skipped.
func LoadCalibration(path string) (*Calibration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "analysis: calibration file")
	}
	defer f.Close()
	return ReadCalibration(f)
}

// ReadCalibration parses an angle,energy CSV from r.
func ReadCalibration(r io.Reader) (*Calibration, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true
	var angles, energies []float64
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "analysis: calibration csv")
		}
		a, aerr := strconv.ParseFloat(row[0], 64)
		e, eerr := strconv.ParseFloat(row[1], 64)
		if aerr != nil || eerr != nil {
			// tolerate one header row
			if len(angles) == 0 {
				continue
			}
			return nil, errors.Errorf("analysis: bad calibration row %v", row)
		}
		angles = append(angles, a)
		energies = append(energies, e)
	}
	// the wheel may have been swept in either direction
	if len(angles) > 1 && angles[0] > angles[len(angles)-1] {
		sort.Sort(byAngle{angles, energies})
	}
	return NewCalibration(angles, energies)
}

type byAngle struct{ a, e []float64 }

func (s byAngle) Len() int      { return len(s.a) }
func (s byAngle) Less(i, j int) bool { return s.a[i] < s.a[j] }
func (s byAngle) Swap(i, j int) {
	s.a[i], s.a[j] = s.a[j], s.a[i]
	s.e[i], s.e[j] = s.e[j], s.e[i]
}

// Transmission returns the relative pulse energy at angle, clamped to the
// calibrated range and to [0, 1].
func (c *Calibration) Transmission(angle float64) float64 {
	if angle < c.angles[0] {
		angle = c.angles[0]
	}
	if angle > c.angles[len(c.angles)-1] {
		angle = c.angles[len(c.angles)-1]
	}
	t := c.spline.Predict(angle)
	return math.Max(0, math.Min(1, t))
}

// Beam describes the excitation geometry and the reference energy
// measurement used to turn relative transmission into fluence.
type Beam struct {
	// ReferenceEnergyJ is the pulse energy measured at the power meter
	// with the filter wheel fully open.
	ReferenceEnergyJ float64 `koanf:"referenceEnergyJ" yaml:"referenceEnergyJ"`

	// FilterOD is the optical density of the fixed attenuator protecting
	// the power meter; the on-sample energy is corrected back up by it.
	FilterOD float64 `koanf:"filterOD" yaml:"filterOD"`

	// LensTransmission is the transmission of the focusing optics.
	LensTransmission float64 `koanf:"lensTransmission" yaml:"lensTransmission"`

	// SpotDiameterM is the excitation stripe/spot diameter on the sample.
	SpotDiameterM float64 `koanf:"spotDiameterM" yaml:"spotDiameterM"`
}

// PulseEnergyJ is the corrected on-sample pulse energy with the wheel fully
// open.
func (b Beam) PulseEnergyJ() float64 {
	return b.ReferenceEnergyJ * math.Pow(10, b.FilterOD) * b.LensTransmission
}

// SpotAreaM2 is the illuminated area.
func (b Beam) SpotAreaM2() float64 {
	r := b.SpotDiameterM / 2
	return math.Pi * r * r
}

// Fluence returns the on-sample fluence in J/m^2 for a wheel angle.
func (b Beam) Fluence(c *Calibration, angle float64) float64 {
	return b.PulseEnergyJ() * c.Transmission(angle) / b.SpotAreaM2()
}
