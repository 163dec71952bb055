/*Package horiba adapts a Horiba LabSpec 6 spectrometer for the sweep.

The vendor control stack (LabSpec ActiveX plus the JYMono/JYCCD COM
objects) only exists on the Windows machine physically attached to the
instrument, so this driver speaks to a small bridge process running there
instead, over a newline-terminated TCP protocol.  One request maps to one
LabSpec operation; acquisitions stream the spectrum back as wavelength and
count pairs.

Replies are "OK [payload]" or "ERR <code> <message>".  Acquisitions reply
"DATA <n>", n sample lines, then "END".
*/
package horiba

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opal-photonics/asesweep/comm"
	"github.com/opal-photonics/asesweep/spectra"
)

// Entrance mirror positions.
const (
	MirrorFront = "FRONT"
	MirrorSide  = "SIDE"
)

// DefaultTimeout bounds one command round trip for everything except
// acquisitions, which extend the wait by the integration time.
const DefaultTimeout = 30 * time.Second

// Grating describes one grating on the turret.
type Grating struct {
	// Index is the turret position.
	Index int

	// Density is the groove density in grooves/mm.
	Density float64

	// Blaze is the blaze description, e.g. "500nm".
	Blaze string
}

type transport interface {
	Open() error
	Close() error
	Send([]byte) error
	Recv() ([]byte, error)
	SendRecv([]byte) ([]byte, error)
}

// Spectrometer is a handle to the bridge.
type Spectrometer struct {
	conn transport
}

// New returns a spectrometer talking to a bridge at addr (host:port).
func New(addr string, timeout time.Duration) *Spectrometer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Spectrometer{conn: comm.NewTCP(addr, '\n', timeout)}
}

// parseOK validates a reply and returns its payload.
func parseOK(resp []byte) (string, error) {
	s := string(resp)
	if strings.HasPrefix(s, "OK") {
		return strings.TrimSpace(strings.TrimPrefix(s, "OK")), nil
	}
	if strings.HasPrefix(s, "ERR") {
		fields := strings.SplitN(strings.TrimSpace(strings.TrimPrefix(s, "ERR")), " ", 2)
		de := &comm.DeviceError{Device: "horiba", Code: fields[0]}
		if len(fields) > 1 {
			de.Message = fields[1]
		}
		return "", de
	}
	return "", &comm.DeviceError{Device: "horiba", Message: fmt.Sprintf("malformed reply %q", s)}
}

func (s *Spectrometer) exchange(cmd string) (string, error) {
	resp, err := s.conn.SendRecv([]byte(cmd))
	if err != nil {
		return "", &comm.DeviceError{Device: "horiba", Message: err.Error()}
	}
	return parseOK(resp)
}

// Connect opens the socket and initializes the instrument stack on the
// bridge side (CCD load, mono load, communications open).
func (s *Spectrometer) Connect() error {
	err := s.conn.Open()
	if err != nil {
		return err
	}
	_, err = s.exchange("OPEN")
	return err
}

// Close shuts the bridge session and the socket.
func (s *Spectrometer) Close() error {
	s.exchange("CLOSE")
	return s.conn.Close()
}

// GetTemperature reads the detector temperature in Celsius.
func (s *Spectrometer) GetTemperature() (float64, error) {
	payload, err := s.exchange("TEMP?")
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(payload, 64)
}

// SetTemperatureSetpoint commands the detector cooler setpoint in Celsius.
func (s *Spectrometer) SetTemperatureSetpoint(c float64) error {
	_, err := s.exchange(fmt.Sprintf("TEMPSET %g", c))
	return err
}

// GetGratingInfo returns the turret contents and the currently selected
// grating index.
func (s *Spectrometer) GetGratingInfo() ([]Grating, int, error) {
	payload, err := s.exchange("GRATINGS?")
	if err != nil {
		return nil, 0, err
	}
	records := strings.Split(payload, ";")
	current, err := strconv.Atoi(records[0])
	if err != nil {
		return nil, 0, &comm.DeviceError{Device: "horiba", Message: fmt.Sprintf("bad grating payload %q", payload)}
	}
	var gratings []Grating
	for _, rec := range records[1:] {
		if rec == "" {
			continue
		}
		fields := strings.Split(rec, ",")
		if len(fields) < 3 {
			return nil, 0, &comm.DeviceError{Device: "horiba", Message: fmt.Sprintf("bad grating record %q", rec)}
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, 0, err
		}
		density, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, 0, err
		}
		gratings = append(gratings, Grating{Index: idx, Density: density, Blaze: fields[2]})
	}
	return gratings, current, nil
}

// SelectGrating rotates the turret to the grating at idx.
func (s *Spectrometer) SelectGrating(idx int) error {
	_, err := s.exchange(fmt.Sprintf("GRATING %d", idx))
	return err
}

// SetMirror selects the entrance mirror position, MirrorFront or MirrorSide.
func (s *Spectrometer) SetMirror(pos string) error {
	_, err := s.exchange("MIRROR " + pos)
	return err
}

// MoveToWavelength drives the monochromator to the center wavelength in nm.
func (s *Spectrometer) MoveToWavelength(nm float64) error {
	_, err := s.exchange(fmt.Sprintf("WAVELENGTH %g", nm))
	return err
}

// Acquire captures one spectrum at the given integration time in seconds
// and blocks until the readout completes.
func (s *Spectrometer) Acquire(itimeS float64) (spectra.Frame, error) {
	var f spectra.Frame
	resp, err := s.conn.SendRecv([]byte(fmt.Sprintf("ACQ %g", itimeS)))
	if err != nil {
		return f, &comm.DeviceError{Device: "horiba", Message: err.Error()}
	}
	head := string(resp)
	if !strings.HasPrefix(head, "DATA ") {
		// could be an ERR reply
		_, err := parseOK(resp)
		if err != nil {
			return f, err
		}
		return f, &comm.DeviceError{Device: "horiba", Message: fmt.Sprintf("unexpected acquisition reply %q", head)}
	}
	n, err := strconv.Atoi(strings.TrimPrefix(head, "DATA "))
	if err != nil || n <= 0 {
		return f, &comm.DeviceError{Device: "horiba", Message: fmt.Sprintf("bad sample count in %q", head)}
	}
	f.Wavelength = make([]float64, 0, n)
	f.Counts = make([]float64, 0, n)
	for i := 0; i < n; i++ {
		line, err := s.conn.Recv()
		if err != nil {
			return f, &comm.DeviceError{Device: "horiba", Message: err.Error()}
		}
		fields := strings.Fields(string(line))
		if len(fields) != 2 {
			return f, &comm.DeviceError{Device: "horiba", Message: fmt.Sprintf("bad sample line %q", line)}
		}
		wl, err1 := strconv.ParseFloat(fields[0], 64)
		ct, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			return f, &comm.DeviceError{Device: "horiba", Message: fmt.Sprintf("bad sample line %q", line)}
		}
		f.Wavelength = append(f.Wavelength, wl)
		f.Counts = append(f.Counts, ct)
	}
	tail, err := s.conn.Recv()
	if err != nil {
		return f, &comm.DeviceError{Device: "horiba", Message: err.Error()}
	}
	if string(tail) != "END" {
		return f, &comm.DeviceError{Device: "horiba", Message: fmt.Sprintf("missing END, got %q", tail)}
	}
	f.IntegrationTime = itimeS
	f.Timestamp = time.Now()
	return f, nil
}
