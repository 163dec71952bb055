package sweep

import "fmt"

// DeviceUnavailableError indicates a device could not be claimed during
// Connecting.  It is fatal; the run aborts before the sweep starts.
type DeviceUnavailableError struct {
	// Device names which handle failed, e.g. "rotator".
	Device string

	// Err is the underlying connection error.
	Err error
}

func (e *DeviceUnavailableError) Error() string {
	return fmt.Sprintf("device %s unavailable: %v", e.Device, e.Err)
}

func (e *DeviceUnavailableError) Unwrap() error { return e.Err }

// PreconditionTimeoutError indicates the detector did not reach its cooling
// threshold within the configured wait.  Whether it aborts the run depends
// on the configured cooling policy.
type PreconditionTimeoutError struct {
	// Temperature is the last observed detector temperature in Celsius.
	Temperature float64

	// Threshold is the temperature the detector had to reach.
	Threshold float64
}

func (e *PreconditionTimeoutError) Error() string {
	return fmt.Sprintf("detector at %.1fC after cooling timeout, threshold %.1fC", e.Temperature, e.Threshold)
}
