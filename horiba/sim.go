package horiba

import (
	"math"
	"math/rand"
	"time"

	"github.com/opal-photonics/asesweep/spectra"
)

// Sim is a simulated spectrometer for offline runs and tests.  It produces
// a synthetic emission spectrum whose peak counts scale with integration
// time and with the Brightness knob, and which collapses to dark noise when
// the trigger is off.  The detector "cools" a fixed step toward the
// setpoint on every temperature read.
type Sim struct {
	// Samples is the number of wavelength samples per frame.
	Samples int

	// CenterNM is the emission peak wavelength.
	CenterNM float64

	// SpanNM is the captured wavelength span.
	SpanNM float64

	// Brightness scales the peak counts per second of integration.
	Brightness float64

	// DarkPerSec is the dark level in counts per second of integration.
	DarkPerSec float64

	// CoolStep is how far the temperature moves toward the setpoint per
	// read, in Celsius.
	CoolStep float64

	temperature float64
	setpoint    float64
	wavelength  float64
	grating     int
	mirror      string
	triggered   bool
	rng         *rand.Rand
}

// NewSim returns a simulator with bench-plausible defaults.
func NewSim(seed int64) *Sim {
	return &Sim{
		Samples:     1024,
		CenterNM:    450,
		SpanNM:      100,
		Brightness:  12000,
		DarkPerSec:  300,
		CoolStep:    40,
		temperature: 20,
		setpoint:    20,
		wavelength:  450,
		mirror:      MirrorFront,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// SetTriggered tells the simulator whether the excitation source is firing.
// Wire it to a sapphire.Sim's OnSet hook.
func (s *Sim) SetTriggered(on bool) {
	s.triggered = on
}

func (s *Sim) Connect() error { return nil }
func (s *Sim) Close() error   { return nil }

func (s *Sim) GetTemperature() (float64, error) {
	if s.temperature > s.setpoint {
		s.temperature -= s.CoolStep
		if s.temperature < s.setpoint {
			s.temperature = s.setpoint
		}
	}
	return s.temperature, nil
}

func (s *Sim) SetTemperatureSetpoint(c float64) error {
	s.setpoint = c
	return nil
}

func (s *Sim) GetGratingInfo() ([]Grating, int, error) {
	return []Grating{
		{Index: 0, Density: 600, Blaze: "500nm"},
		{Index: 1, Density: 1800, Blaze: "450nm"},
	}, s.grating, nil
}

func (s *Sim) SelectGrating(idx int) error {
	s.grating = idx
	return nil
}

func (s *Sim) SetMirror(pos string) error {
	s.mirror = pos
	return nil
}

func (s *Sim) MoveToWavelength(nm float64) error {
	s.wavelength = nm
	return nil
}

func (s *Sim) Acquire(itimeS float64) (spectra.Frame, error) {
	n := s.Samples
	f := spectra.Frame{
		Wavelength:      make([]float64, n),
		Counts:          make([]float64, n),
		IntegrationTime: itimeS,
		Timestamp:       time.Now(),
		Triggered:       s.triggered,
	}
	lo := s.wavelength - s.SpanNM/2
	step := s.SpanNM / float64(n-1)
	sigma := s.SpanNM / 40
	for i := 0; i < n; i++ {
		wl := lo + float64(i)*step
		f.Wavelength[i] = wl
		counts := s.DarkPerSec*itimeS + s.rng.Float64()*10
		if s.triggered {
			d := (wl - s.CenterNM) / sigma
			counts += s.Brightness * itimeS * math.Exp(-d*d/2)
		}
		f.Counts[i] = counts
	}
	return f, nil
}
