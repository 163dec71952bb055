package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalibrationNormalizesAndClamps(t *testing.T) {
	angles := []float64{80, 130, 180, 230, 280}
	energies := []float64{2, 10, 30, 70, 100}
	c, err := NewCalibration(angles, energies)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, c.Transmission(280), 1e-9)
	assert.InDelta(t, 0.02, c.Transmission(80), 1e-9)
	// off-range angles clamp to the calibrated ends
	assert.Equal(t, c.Transmission(80), c.Transmission(60))
	assert.Equal(t, c.Transmission(280), c.Transmission(300))
	// interior points are monotone for this table
	assert.Greater(t, c.Transmission(230), c.Transmission(130))
}

func TestReadCalibrationCSV(t *testing.T) {
	src := `angle,energy
# meter: QE12LP-S-MB
280, 100
230, 70
180, 30
130, 10
80, 2
`
	c, err := ReadCalibration(strings.NewReader(src))
	require.NoError(t, err)
	// rows were descending in angle and must have been reordered
	assert.InDelta(t, 1.0, c.Transmission(280), 1e-9)
	assert.InDelta(t, 0.02, c.Transmission(80), 1e-9)
}

func TestCalibrationRejectsBadInput(t *testing.T) {
	_, err := NewCalibration([]float64{1, 2, 3}, []float64{1, 2, 3})
	assert.Error(t, err, "too few points")
	_, err = NewCalibration([]float64{1, 2, 2, 3}, []float64{1, 2, 3, 4})
	assert.Error(t, err, "non-increasing angles")
	_, err = NewCalibration([]float64{1, 2}, []float64{1})
	assert.Error(t, err, "length mismatch")
}

func TestBeamFluence(t *testing.T) {
	b := Beam{
		ReferenceEnergyJ: 1e-6,
		FilterOD:         1, // meter read through an OD1 filter
		LensTransmission: 0.9,
		SpotDiameterM:    2e-3,
	}
	assert.InDelta(t, 9e-6, b.PulseEnergyJ(), 1e-12)
	assert.InDelta(t, math.Pi*1e-6, b.SpotAreaM2(), 1e-15)

	c, err := NewCalibration(
		[]float64{80, 130, 180, 230, 280},
		[]float64{2, 10, 30, 70, 100},
	)
	require.NoError(t, err)
	full := b.Fluence(c, 280)
	assert.InDelta(t, 9e-6/(math.Pi*1e-6), full, 1e-6)
	assert.Less(t, b.Fluence(c, 130), full)
}

func TestSavGolPreservesPolynomials(t *testing.T) {
	sg, err := NewSavGol(7, 2)
	require.NoError(t, err)
	y := make([]float64, 30)
	for i := range y {
		x := float64(i)
		y[i] = 3 + 2*x + 0.5*x*x
	}
	out := sg.Smooth(y)
	// a quadratic is reproduced exactly away from the mirrored edges
	for i := 3; i < len(y)-3; i++ {
		assert.InDelta(t, y[i], out[i], 1e-8, "sample %d", i)
	}
}

func TestSavGolSuppressesSpike(t *testing.T) {
	sg, err := NewSavGol(5, 1)
	require.NoError(t, err)
	y := make([]float64, 21)
	y[10] = 100
	out := sg.Smooth(y)
	assert.Less(t, out[10], 30.0)
	assert.InDelta(t, 100.0, sum(y), 1e-9)
	assert.InDelta(t, 100.0, sum(out), 1e-6, "smoothing conserves area")
}

func sum(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}
	return s
}

func TestSavGolValidation(t *testing.T) {
	_, err := NewSavGol(4, 2)
	assert.Error(t, err, "even window")
	_, err = NewSavGol(5, 5)
	assert.Error(t, err, "order >= window")
	sg, err := NewSavGol(91, 3)
	require.NoError(t, err)
	short := []float64{1, 2, 3}
	assert.Equal(t, short, sg.Smooth(short), "inputs shorter than the window pass through")
}

func gaussian(x []float64, center, sigma, amp float64) []float64 {
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = amp * math.Exp(-(v-center)*(v-center)/(2*sigma*sigma))
	}
	return y
}

func TestFWHMOfGaussian(t *testing.T) {
	x := make([]float64, 401)
	for i := range x {
		x[i] = 400 + float64(i)*0.25
	}
	sigma := 5.0
	y := gaussian(x, 450, sigma, 1000)
	w, err := FWHM(x, y)
	require.NoError(t, err)
	want := 2 * math.Sqrt(2*math.Ln2) * sigma
	assert.InDelta(t, want, w, 0.05)
}

func TestFWHMErrors(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	_, err := FWHM(x, []float64{5, 5, 5, 5})
	assert.Error(t, err, "never falls to half maximum")
	_, err = FWHM(x, []float64{0, 0, 0, 0})
	assert.Error(t, err, "non-positive curve")
	_, err = FWHM(x, []float64{1, 2})
	assert.Error(t, err, "length mismatch")
}

func TestIntegratedIntensity(t *testing.T) {
	x := []float64{0, 1, 2}
	y := []float64{0, 1, 0}
	assert.InDelta(t, 1.0, IntegratedIntensity(x, y), 1e-12)
	assert.Zero(t, IntegratedIntensity(x, y[:2]))
}

func TestThresholdFindsCollapseKnee(t *testing.T) {
	var fl, wd []float64
	for i := 0; i < 25; i++ {
		x := 1 + float64(i)*9/24 // 1..10
		fl = append(fl, x)
		// logistic collapse from ~8 nm to ~2 nm centered at 5
		wd = append(wd, 8-6/(1+math.Exp(-3*(x-5))))
	}
	th, err := Threshold(fl, wd)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, th, 0.5)
}

func TestThresholdValidation(t *testing.T) {
	_, err := Threshold([]float64{1, 2, 3}, []float64{1, 2, 3})
	assert.Error(t, err, "too few points")
	_, err = Threshold([]float64{1, 2, 2, 3}, []float64{1, 2, 3, 4})
	assert.Error(t, err, "duplicate fluence")
	_, err = Threshold([]float64{1, 2}, []float64{1})
	assert.Error(t, err, "length mismatch")
}

func TestThresholdOrderIndependent(t *testing.T) {
	fl := []float64{1, 4, 2, 8, 6, 10, 3, 5, 7, 9}
	wd := make([]float64, len(fl))
	for i, x := range fl {
		wd[i] = 8 - 6/(1+math.Exp(-3*(x-5)))
	}
	th, err := Threshold(fl, wd)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, th, 0.6)
}
