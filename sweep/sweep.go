/*Package sweep drives one ASE threshold measurement to completion.

The orchestrator owns the run: it claims the three instrument handles,
waits for the detector to cool, sets up the spectrograph, walks the filter
wheel through the configured angle sequence acquiring one scan point per
angle, and tears everything down again.  Teardown (trigger off, stage
homed, handles released) happens on every path out of the sweep, whether it
completed, hit a fatal device error, or was cancelled from outside.

All device traffic runs on the single goroutine that called Run.  Motion,
trigger state and exposure are causally ordered within a scan point, so
there is nothing to parallelize; the only cross-goroutine boundary is the
preview sink, which never blocks the control loop.
*/
package sweep

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/opal-photonics/asesweep/autoexpose"
	"github.com/opal-photonics/asesweep/bgcache"
	"github.com/opal-photonics/asesweep/horiba"
	"github.com/opal-photonics/asesweep/manifest"
	"github.com/opal-photonics/asesweep/preview"
	"github.com/opal-photonics/asesweep/spectra"
)

// State is the orchestrator's position in its lifecycle.
type State int

// Lifecycle states, in order of occurrence.  Completed and Aborted are
// terminal.
const (
	Idle State = iota
	Connecting
	Preconditioning
	Sweeping
	Finalizing
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Preconditioning:
		return "preconditioning"
	case Sweeping:
		return "sweeping"
	case Finalizing:
		return "finalizing"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Rotator is the filter wheel stage.
type Rotator interface {
	Connect() error
	Close() error
	Home() error
	MoveTo(deg float64) error
}

// TriggerSource gates the excitation pulses.
type TriggerSource interface {
	Connect() error
	Close() error
	SetTrigger(on bool) error
}

// Spectrometer captures frames and owns the detector and spectrograph
// optics.
type Spectrometer interface {
	Connect() error
	Close() error
	GetTemperature() (float64, error)
	SetTemperatureSetpoint(c float64) error
	GetGratingInfo() ([]horiba.Grating, int, error)
	SelectGrating(idx int) error
	SetMirror(pos string) error
	MoveToWavelength(nm float64) error
	Acquire(itimeS float64) (spectra.Frame, error)
}

// Devices bundles the three instrument handles a sweep borrows.  They are
// returned quiesced when Run exits.
type Devices struct {
	Rotator      Rotator
	Trigger      TriggerSource
	Spectrometer Spectrometer
}

// PreviewSink receives best-effort scan point updates.
type PreviewSink interface {
	Publish(u preview.Update)
}

// Result is what a run came to.
type Result struct {
	// State is Completed or Aborted.
	State State

	// Err is the abort reason when State is Aborted.
	Err error

	// Attempted counts scan points recorded in the manifest, failed ones
	// included.
	Attempted int

	// Failed counts scan points recorded with a failure.
	Failed int
}

// Orchestrator runs one sweep.  Build it with New, optionally set the
// exported hooks, then call Run exactly once.
type Orchestrator struct {
	// Preview, when non-nil, receives an update per completed point.
	Preview PreviewSink

	// Log receives run progress.  Defaults to a discarding logger; the
	// command installs one writing to stderr and the run log file.
	Log *log.Logger

	// OnState, when non-nil, is called on every state transition.
	OnState func(s State)

	// OnPoint, when non-nil, is called after every manifest append.
	OnPoint func(rec manifest.Record)

	cfg   Config
	dev   Devices
	run   *manifest.Run
	sel   *autoexpose.Selector
	bg    *bgcache.Cache
	state State
}

// New builds an orchestrator over already-constructed (but not yet
// connected) device handles and an open run directory.
func New(cfg Config, dev Devices, run *manifest.Run) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sel, err := autoexpose.New(cfg.Presets)
	if err != nil {
		return nil, err
	}
	sel.ResumeLast = cfg.ResumeLast
	return &Orchestrator{
		Log:   log.New(io.Discard, "", 0),
		cfg:   cfg,
		dev:   dev,
		run:   run,
		sel:   sel,
		bg:    bgcache.New(bgcache.DefaultEpsilon),
		state: Idle,
	}, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) transition(s State) {
	o.state = s
	o.Log.Printf("sweep: %s", s)
	if o.OnState != nil {
		o.OnState(s)
	}
}

// withRetry runs a device call, retrying up to the configured per-point
// retry count.  The default of zero retries means the first failure is
// final.
func (o *Orchestrator) withRetry(op string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= o.cfg.PointRetries {
			return err
		}
		o.Log.Printf("sweep: %s failed (attempt %d of %d): %v", op, attempt+1, o.cfg.PointRetries+1, err)
	}
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
