package sweep

import (
	"context"

	"github.com/pkg/errors"

	"github.com/opal-photonics/asesweep/autoexpose"
	"github.com/opal-photonics/asesweep/manifest"
	"github.com/opal-photonics/asesweep/preview"
	"github.com/opal-photonics/asesweep/spectra"
)

// recoverable reports whether a point error should mark the point failed
// and let the sweep continue.  Only preset exhaustion qualifies; device
// errors and cancellation end the run.
func recoverable(err error) bool {
	return errors.Is(err, autoexpose.ErrExhausted)
}

// acquirePoint captures one scan point: move, auto-ranged signal
// acquisition, background resolution, subtraction.  On success the frames
// are written out and the returned record carries their filenames; on
// failure the record carries index and angle so the point can still be
// logged.  The trigger is off on every return path.
func (o *Orchestrator) acquirePoint(ctx context.Context, index int, angle float64) (manifest.Record, error) {
	rec := manifest.Record{Index: index, Angle: angle}

	err := o.withRetry("move", func() error { return o.dev.Rotator.MoveTo(angle) })
	if err != nil {
		return rec, errors.Wrapf(err, "moving to %.2f deg", angle)
	}
	if err := sleepCtx(ctx, o.cfg.Settle); err != nil {
		return rec, err
	}

	sig, err := o.acquireSignal(ctx, angle)
	if err != nil {
		return rec, err
	}
	rec.IntegrationTime = sig.IntegrationTime
	rec.MaxCounts = sig.Max()

	bg, cached, err := o.resolveBackground(ctx, sig.IntegrationTime, angle)
	if err != nil {
		return rec, err
	}
	rec.BackgroundCached = cached

	net, err := spectra.Subtract(o.cfg.Denoiser.Apply(sig), bg)
	if err != nil {
		return rec, errors.Wrap(err, "subtracting background")
	}

	saved, err := o.run.SavePoint(index, sig, net)
	if err != nil {
		return rec, errors.Wrap(err, "saving point")
	}
	saved.BackgroundCached = cached
	if o.Preview != nil {
		o.Preview.Publish(preview.Update{
			Index:      index,
			Angle:      angle,
			Signal:     sig,
			Background: bg,
			Net:        net,
		})
	}
	return saved, nil
}

// acquireSignal runs the auto-ranging attempt loop: trigger on, expose,
// trigger off, test for saturation, step down and repeat.  The attempt
// count is bounded by the preset list length.
func (o *Orchestrator) acquireSignal(ctx context.Context, angle float64) (spectra.Frame, error) {
	o.sel.Begin()
	saturated := false
	for {
		if err := ctx.Err(); err != nil {
			return spectra.Frame{}, err
		}
		itime, err := o.sel.Next(saturated)
		if err != nil {
			return spectra.Frame{}, errors.Wrapf(err, "at %.2f deg", angle)
		}

		if err := o.withRetry("trigger on", func() error { return o.dev.Trigger.SetTrigger(true) }); err != nil {
			return spectra.Frame{}, errors.Wrap(err, "enabling trigger")
		}
		var f spectra.Frame
		acqErr := o.withRetry("acquire", func() error {
			var aerr error
			f, aerr = o.dev.Spectrometer.Acquire(itime)
			return aerr
		})
		offErr := o.withRetry("trigger off", func() error { return o.dev.Trigger.SetTrigger(false) })
		if acqErr != nil {
			return spectra.Frame{}, errors.Wrapf(acqErr, "acquiring at t=%gs", itime)
		}
		if offErr != nil {
			return spectra.Frame{}, errors.Wrap(offErr, "disabling trigger")
		}

		f.Angle = angle
		f.Triggered = true
		if f.Saturated(o.cfg.Saturation) {
			o.Log.Printf("sweep: saturated at t=%gs (max %.0f), stepping down", itime, f.Max())
			saturated = true
			continue
		}
		o.sel.Confirm(o.cfg.Warn > 0 && f.Max() >= o.cfg.Warn)
		return f, nil
	}
}

// resolveBackground returns the trigger-off frame for itime, from the
// cache when one exists.  A fresh background is acquired with the trigger
// already off, denoised, and cached for the rest of the run.
func (o *Orchestrator) resolveBackground(ctx context.Context, itime, angle float64) (spectra.Frame, bool, error) {
	if bg, ok := o.bg.Get(itime); ok {
		return bg, true, nil
	}
	if err := ctx.Err(); err != nil {
		return spectra.Frame{}, false, err
	}
	// the trigger must be off for a dark frame; assert it rather than
	// trusting the signal loop's last state
	if err := o.withRetry("trigger off", func() error { return o.dev.Trigger.SetTrigger(false) }); err != nil {
		return spectra.Frame{}, false, errors.Wrap(err, "disabling trigger for background")
	}
	var bg spectra.Frame
	err := o.withRetry("acquire background", func() error {
		var aerr error
		bg, aerr = o.dev.Spectrometer.Acquire(itime)
		return aerr
	})
	if err != nil {
		return spectra.Frame{}, false, errors.Wrapf(err, "acquiring background at t=%gs", itime)
	}
	bg.Angle = angle
	bg.Triggered = false
	bg = o.cfg.Denoiser.Apply(bg)
	o.bg.Put(itime, bg)
	return bg, false, nil
}
