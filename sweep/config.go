package sweep

import (
	"time"

	"github.com/pkg/errors"

	"github.com/opal-photonics/asesweep/horiba"
	"github.com/opal-photonics/asesweep/spectra"
)

// AngleRange is the linear sequence of filter wheel angles to visit.
type AngleRange struct {
	Start float64 `koanf:"start" yaml:"start"`
	End   float64 `koanf:"end" yaml:"end"`
	Count int     `koanf:"count" yaml:"count"`
}

// Angles expands the range to the concrete sequence.  Count=1 yields just
// Start.
func (a AngleRange) Angles() []float64 {
	out := make([]float64, a.Count)
	if a.Count == 1 {
		out[0] = a.Start
		return out
	}
	step := (a.End - a.Start) / float64(a.Count-1)
	for i := range out {
		out[i] = a.Start + float64(i)*step
	}
	return out
}

// CoolingConfig governs the detector temperature precondition.
type CoolingConfig struct {
	// SetpointC is commanded to the detector at run start.
	SetpointC float64 `koanf:"setpointC" yaml:"setpointC"`

	// ThresholdC is the temperature the detector must reach before the
	// sweep begins.
	ThresholdC float64 `koanf:"thresholdC" yaml:"thresholdC"`

	// Timeout bounds the cooling wait.
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`

	// Poll is the interval between temperature reads.
	Poll time.Duration `koanf:"poll" yaml:"poll"`

	// AbortOnTimeout aborts the run if the threshold is not reached in
	// time.  When false the run continues with a logged warning, which is
	// how the bench has always been operated.
	AbortOnTimeout bool `koanf:"abortOnTimeout" yaml:"abortOnTimeout"`
}

// Config holds the orchestration parameters for one sweep.  Device
// connection parameters live with the command, not here.
type Config struct {
	// Angles is the scan sequence.
	Angles AngleRange `koanf:"angles" yaml:"angles"`

	// Presets are the candidate integration times in seconds, longest
	// first.
	Presets []float64 `koanf:"presets" yaml:"presets"`

	// Saturation is the hard counts threshold; any sample at or above it
	// invalidates the frame.
	Saturation float64 `koanf:"saturation" yaml:"saturation"`

	// Warn is the soft counts threshold; a success above it steps the
	// next point's starting preset down one notch.
	Warn float64 `koanf:"warn" yaml:"warn"`

	// ResumeLast starts each point at the previous point's successful
	// preset.
	ResumeLast bool `koanf:"resumeLast" yaml:"resumeLast"`

	// Denoiser smooths frames before subtraction.
	Denoiser spectra.Denoiser `koanf:"denoiser" yaml:"denoiser"`

	// Settle is the wait after a move before acquiring, for the stage and
	// optics to stop ringing.
	Settle time.Duration `koanf:"settle" yaml:"settle"`

	// WavelengthNM is the spectrometer center wavelength.
	WavelengthNM float64 `koanf:"wavelengthNM" yaml:"wavelengthNM"`

	// GratingIndex selects the turret grating.
	GratingIndex int `koanf:"gratingIndex" yaml:"gratingIndex"`

	// Mirror selects the entrance mirror position.
	Mirror string `koanf:"mirror" yaml:"mirror"`

	// Cooling is the detector temperature precondition.
	Cooling CoolingConfig `koanf:"cooling" yaml:"cooling"`

	// PointRetries is how many times a failed device call within one scan
	// point is retried before the error is treated as fatal.  Zero means
	// abort on the first failure.
	PointRetries int `koanf:"pointRetries" yaml:"pointRetries"`
}

// DefaultConfig returns the parameters the bench runs with day to day.
func DefaultConfig() Config {
	return Config{
		Angles:       AngleRange{Start: 85, End: 280, Count: 50},
		Presets:      []float64{4.0, 0.1},
		Saturation:   65530,
		Warn:         50000,
		ResumeLast:   true,
		Denoiser:     spectra.Denoiser{Enabled: true, Window: 5},
		Settle:       500 * time.Millisecond,
		WavelengthNM: 450,
		GratingIndex: 1,
		Mirror:       horiba.MirrorFront,
		Cooling: CoolingConfig{
			SetpointC:  -70,
			ThresholdC: -50,
			Timeout:    10 * time.Minute,
			Poll:       5 * time.Second,
		},
	}
}

// Validate checks the parts of the config the orchestrator depends on.
func (c Config) Validate() error {
	if c.Angles.Count < 1 {
		return errors.Errorf("sweep: angle count must be >= 1, got %d", c.Angles.Count)
	}
	if len(c.Presets) == 0 {
		return errors.New("sweep: no integration time presets")
	}
	for i := 1; i < len(c.Presets); i++ {
		if c.Presets[i] >= c.Presets[i-1] {
			return errors.New("sweep: presets must be strictly decreasing")
		}
	}
	if c.Saturation <= 0 {
		return errors.Errorf("sweep: saturation threshold must be positive, got %g", c.Saturation)
	}
	if c.Warn > c.Saturation {
		return errors.Errorf("sweep: warn threshold %g exceeds saturation threshold %g", c.Warn, c.Saturation)
	}
	if c.Cooling.Poll <= 0 && c.Cooling.Timeout > 0 {
		return errors.New("sweep: cooling poll interval must be positive")
	}
	if c.PointRetries < 0 {
		return errors.Errorf("sweep: point retries must be >= 0, got %d", c.PointRetries)
	}
	return nil
}
