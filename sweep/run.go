package sweep

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/opal-photonics/asesweep/manifest"
)

// Run drives the sweep to a terminal state and returns the result.  It
// blocks for the duration of the measurement; cancel ctx to abort
// gracefully.  Cancellation is observed between device operations, so an
// in-flight exposure finishes before the run winds down.
//
// Whatever happens, the devices are quiesced and released and the manifest
// is closed before Run returns.
func (o *Orchestrator) Run(ctx context.Context) (res Result) {
	connected := false
	defer func() {
		if connected {
			o.finalize()
		} else if err := o.run.Close(); err != nil {
			o.Log.Printf("sweep: manifest close: %v", err)
		}
		if res.Err != nil {
			res.State = Aborted
			o.Log.Printf("sweep: aborted: %v", res.Err)
		} else {
			res.State = Completed
		}
		o.transition(res.State)
	}()

	if err := o.connect(); err != nil {
		res.Err = err
		return res
	}
	connected = true
	if err := o.precondition(ctx); err != nil {
		res.Err = err
		return res
	}
	res.Attempted, res.Failed, res.Err = o.sweepAngles(ctx)
	return res
}

// connect claims the three instrument handles.  On failure the handles
// already claimed are released before returning.
func (o *Orchestrator) connect() error {
	o.transition(Connecting)
	steps := []struct {
		name string
		open func() error
		shut func() error
	}{
		{"rotator", o.dev.Rotator.Connect, o.dev.Rotator.Close},
		{"pulser", o.dev.Trigger.Connect, o.dev.Trigger.Close},
		{"spectrometer", o.dev.Spectrometer.Connect, o.dev.Spectrometer.Close},
	}
	for i, s := range steps {
		if err := s.open(); err != nil {
			for j := i - 1; j >= 0; j-- {
				steps[j].shut()
			}
			return &DeviceUnavailableError{Device: s.name, Err: err}
		}
		o.Log.Printf("sweep: %s connected", s.name)
	}
	return nil
}

// precondition cools the detector and sets up the spectrograph optics.
func (o *Orchestrator) precondition(ctx context.Context) error {
	o.transition(Preconditioning)

	if err := o.dev.Spectrometer.SetTemperatureSetpoint(o.cfg.Cooling.SetpointC); err != nil {
		return errors.Wrap(err, "setting detector setpoint")
	}
	if err := o.waitForCooling(ctx); err != nil {
		return err
	}

	gratings, current, err := o.dev.Spectrometer.GetGratingInfo()
	if err != nil {
		return errors.Wrap(err, "querying gratings")
	}
	if current != o.cfg.GratingIndex {
		found := false
		for _, g := range gratings {
			if g.Index == o.cfg.GratingIndex {
				found = true
				break
			}
		}
		if !found {
			return errors.Errorf("grating %d not present on turret", o.cfg.GratingIndex)
		}
		if err := o.dev.Spectrometer.SelectGrating(o.cfg.GratingIndex); err != nil {
			return errors.Wrap(err, "selecting grating")
		}
	}
	if err := o.dev.Spectrometer.SetMirror(o.cfg.Mirror); err != nil {
		return errors.Wrap(err, "setting entrance mirror")
	}
	if err := o.dev.Spectrometer.MoveToWavelength(o.cfg.WavelengthNM); err != nil {
		return errors.Wrap(err, "moving to wavelength")
	}
	return ctx.Err()
}

// waitForCooling polls the detector temperature until it reaches the
// threshold or the timeout lapses.  On timeout the run either aborts with
// PreconditionTimeoutError or logs a warning and carries on, per config.
func (o *Orchestrator) waitForCooling(ctx context.Context) error {
	cool := o.cfg.Cooling
	deadline := time.Now().Add(cool.Timeout)
	for {
		t, err := o.dev.Spectrometer.GetTemperature()
		if err != nil {
			return errors.Wrap(err, "reading detector temperature")
		}
		if t <= cool.ThresholdC {
			o.Log.Printf("sweep: detector at %.1fC, threshold %.1fC reached", t, cool.ThresholdC)
			return nil
		}
		if cool.Timeout > 0 && !time.Now().Before(deadline) {
			if cool.AbortOnTimeout {
				return &PreconditionTimeoutError{Temperature: t, Threshold: cool.ThresholdC}
			}
			o.Log.Printf("sweep: detector still at %.1fC after %s, continuing anyway", t, cool.Timeout)
			return nil
		}
		o.Log.Printf("sweep: detector at %.1fC, waiting for %.1fC", t, cool.ThresholdC)
		if err := sleepCtx(ctx, cool.Poll); err != nil {
			return err
		}
	}
}

// sweepAngles runs the scan loop.  Per-point failures are recorded and the
// loop continues; device errors and cancellation stop it.
func (o *Orchestrator) sweepAngles(ctx context.Context) (attempted, failed int, err error) {
	o.transition(Sweeping)
	angles := o.cfg.Angles.Angles()
	for i, angle := range angles {
		if cerr := ctx.Err(); cerr != nil {
			return attempted, failed, cerr
		}
		rec, perr := o.acquirePoint(ctx, i, angle)
		if perr != nil && !recoverable(perr) {
			// record the point as failed if we can, then abort
			rec.Status = manifest.StatusFailed
			rec.Reason = perr.Error()
			if aerr := o.append(rec); aerr != nil {
				o.Log.Printf("sweep: recording fatal point: %v", aerr)
			} else {
				attempted++
				failed++
			}
			return attempted, failed, perr
		}
		if perr != nil {
			rec.Status = manifest.StatusFailed
			rec.Reason = perr.Error()
			failed++
			o.sel.Reset()
			o.Log.Printf("sweep: point %d at %.2f deg failed: %v", i, angle, perr)
		} else {
			rec.Status = manifest.StatusOK
			o.Log.Printf("sweep: point %d at %.2f deg done, t=%gs, max %.0f counts",
				i, angle, rec.IntegrationTime, rec.MaxCounts)
		}
		if aerr := o.append(rec); aerr != nil {
			return attempted, failed, aerr
		}
		attempted++
	}
	return attempted, failed, nil
}

func (o *Orchestrator) append(rec manifest.Record) error {
	if err := o.run.Append(rec); err != nil {
		return errors.Wrap(err, "appending manifest record")
	}
	if o.OnPoint != nil {
		o.OnPoint(rec)
	}
	return nil
}

// finalize returns the bench to a safe state: pulses gated off, stage
// homed, handles released, manifest closed.  Errors here are logged, never
// allowed to mask the reason the sweep ended.
func (o *Orchestrator) finalize() {
	o.transition(Finalizing)
	if err := o.dev.Trigger.SetTrigger(false); err != nil {
		o.Log.Printf("sweep: finalize: trigger off: %v", err)
	}
	if err := o.dev.Rotator.Home(); err != nil {
		o.Log.Printf("sweep: finalize: homing: %v", err)
	}
	if err := o.dev.Trigger.Close(); err != nil {
		o.Log.Printf("sweep: finalize: pulser close: %v", err)
	}
	if err := o.dev.Rotator.Close(); err != nil {
		o.Log.Printf("sweep: finalize: rotator close: %v", err)
	}
	if err := o.dev.Spectrometer.Close(); err != nil {
		o.Log.Printf("sweep: finalize: spectrometer close: %v", err)
	}
	if err := o.run.Close(); err != nil {
		o.Log.Printf("sweep: finalize: manifest close: %v", err)
	}
}
