package sweep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opal-photonics/asesweep/horiba"
	"github.com/opal-photonics/asesweep/manifest"
	"github.com/opal-photonics/asesweep/spectra"
)

// bench is shared state behind the three fake device handles.  Each
// triggered acquisition pops the next maximum from sigMax (400 once the
// list runs out); untriggered acquisitions return bgMax.
type bench struct {
	moves    []float64
	moveErrs []error
	homes    int

	trigOn   bool
	trigSets []bool

	acqs    []acq
	sigMax  []float64
	sigIdx  int
	bgMax   float64
	acqErr  error
	temp    float64
	grating int
	selects []int

	connErr map[string]error
	closed  map[string]int
}

type acq struct {
	itime     float64
	triggered bool
}

func newBench() *bench {
	return &bench{
		bgMax:   10,
		temp:    -60,
		grating: 1,
		connErr: map[string]error{},
		closed:  map[string]int{},
	}
}

func (b *bench) frame(max, itime float64) spectra.Frame {
	return spectra.Frame{
		Wavelength:      []float64{440, 450, 460},
		Counts:          []float64{max / 2, max, max / 2},
		IntegrationTime: itime,
	}
}

type benchRotator struct{ b *bench }

func (r benchRotator) Connect() error { return r.b.connErr["rotator"] }
func (r benchRotator) Close() error   { r.b.closed["rotator"]++; return nil }
func (r benchRotator) Home() error    { r.b.homes++; return nil }

func (r benchRotator) MoveTo(deg float64) error {
	if len(r.b.moveErrs) > 0 {
		err := r.b.moveErrs[0]
		r.b.moveErrs = r.b.moveErrs[1:]
		if err != nil {
			return err
		}
	}
	r.b.moves = append(r.b.moves, deg)
	return nil
}

type benchTrigger struct{ b *bench }

func (t benchTrigger) Connect() error { return t.b.connErr["pulser"] }
func (t benchTrigger) Close() error   { t.b.closed["pulser"]++; return nil }

func (t benchTrigger) SetTrigger(on bool) error {
	t.b.trigOn = on
	t.b.trigSets = append(t.b.trigSets, on)
	return nil
}

type benchSpec struct{ b *bench }

func (s benchSpec) Connect() error                     { return s.b.connErr["spectrometer"] }
func (s benchSpec) Close() error                       { s.b.closed["spectrometer"]++; return nil }
func (s benchSpec) GetTemperature() (float64, error)   { return s.b.temp, nil }
func (s benchSpec) SetTemperatureSetpoint(float64) error { return nil }
func (s benchSpec) SetMirror(string) error             { return nil }
func (s benchSpec) MoveToWavelength(float64) error     { return nil }

func (s benchSpec) GetGratingInfo() ([]horiba.Grating, int, error) {
	return []horiba.Grating{{Index: 1, Density: 600}, {Index: 2, Density: 1800}}, s.b.grating, nil
}

func (s benchSpec) SelectGrating(idx int) error {
	s.b.selects = append(s.b.selects, idx)
	s.b.grating = idx
	return nil
}

func (s benchSpec) Acquire(itime float64) (spectra.Frame, error) {
	if s.b.acqErr != nil {
		return spectra.Frame{}, s.b.acqErr
	}
	s.b.acqs = append(s.b.acqs, acq{itime: itime, triggered: s.b.trigOn})
	if !s.b.trigOn {
		return s.b.frame(s.b.bgMax, itime), nil
	}
	max := 400.0
	if s.b.sigIdx < len(s.b.sigMax) {
		max = s.b.sigMax[s.b.sigIdx]
		s.b.sigIdx++
	}
	return s.b.frame(max, itime), nil
}

func (b *bench) devices() Devices {
	return Devices{
		Rotator:      benchRotator{b},
		Trigger:      benchTrigger{b},
		Spectrometer: benchSpec{b},
	}
}

// itimes returns the integration times of the acquisitions, in order.
func (b *bench) itimes() []float64 {
	out := make([]float64, len(b.acqs))
	for i, a := range b.acqs {
		out[i] = a.itime
	}
	return out
}

func (b *bench) darkAcqs() int {
	n := 0
	for _, a := range b.acqs {
		if !a.triggered {
			n++
		}
	}
	return n
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Angles = AngleRange{Start: 85, End: 280, Count: 3}
	cfg.Presets = []float64{4.0, 0.1}
	cfg.Saturation = 1000
	cfg.Warn = 0
	cfg.Denoiser = spectra.Denoiser{}
	cfg.Settle = 0
	cfg.Cooling.Poll = time.Millisecond
	cfg.Cooling.Timeout = 50 * time.Millisecond
	return cfg
}

func testRun(t *testing.T) *manifest.Run {
	t.Helper()
	run, err := manifest.Create(t.TempDir(), manifest.Meta{
		TargetWavelength: 450,
		GratingIndex:     1,
		StartAngle:       85,
		EndAngle:         280,
		Points:           3,
		PresetsS:         []float64{4.0, 0.1},
	})
	require.NoError(t, err)
	return run
}

func newTestOrchestrator(t *testing.T, cfg Config, b *bench) (*Orchestrator, *manifest.Run) {
	t.Helper()
	run := testRun(t)
	o, err := New(cfg, b.devices(), run)
	require.NoError(t, err)
	return o, run
}
