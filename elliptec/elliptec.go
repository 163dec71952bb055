/*Package elliptec controls Thorlabs Elliptec resonant rotation stages
(ELL14 and friends) over RS-232.

The Elliptec protocol is ASCII: a single-character bus address, a two-letter
mnemonic, and for moves an 8-digit uppercase hex word holding the position
in encoder pulses, two's complement.  The stage replies when the motion has
finished, so moves block for the mechanical settle time; the serial read
timeout bounds that wait.
*/
package elliptec

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tarm/serial"

	"github.com/opal-photonics/asesweep/comm"
)

// PulsesPerRev is the encoder resolution of the ELL14 rotation stage.
const PulsesPerRev = 143360

// DefaultTimeout bounds one command round trip, including motion time.
const DefaultTimeout = 180 * time.Second

// statusText maps the stage's GS codes to descriptions, from the Elliptec
// communication manual.
var statusText = map[string]string{
	"01": "communication timeout",
	"02": "mechanical timeout",
	"03": "command error",
	"04": "value out of range",
	"05": "module isolated",
	"06": "module out of isolation",
	"07": "initializing error",
	"08": "thermal error",
	"09": "busy",
	"0A": "sensor error",
	"0B": "motor error",
	"0C": "position out of range",
	"0D": "over current",
}

type transport interface {
	Open() error
	Close() error
	SendRecv([]byte) ([]byte, error)
}

// Rotator is one Elliptec stage on the bus.
type Rotator struct {
	conn transport
	addr byte
}

// New returns a rotator on the given serial port.  addr is the single
// ASCII bus address character, '0' for a stage alone on the bus.
func New(port string, addr byte, timeout time.Duration) *Rotator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	conf := &serial.Config{Name: port, Baud: 9600}
	return &Rotator{conn: comm.NewSerial(conf, '\n', timeout), addr: addr}
}

// Connect opens the serial port.
func (r *Rotator) Connect() error {
	return r.conn.Open()
}

// Close releases the serial port.
func (r *Rotator) Close() error {
	return r.conn.Close()
}

// degToPulses converts degrees to encoder pulses, rounding to nearest.
func degToPulses(deg float64) int32 {
	p := deg / 360 * PulsesPerRev
	if p >= 0 {
		return int32(p + 0.5)
	}
	return int32(p - 0.5)
}

// pulsesToDeg converts encoder pulses to degrees.
func pulsesToDeg(p int32) float64 {
	return float64(p) / PulsesPerRev * 360
}

// encodePos renders pulses as the protocol's 8-digit hex word.
func encodePos(pulses int32) string {
	return fmt.Sprintf("%08X", uint32(pulses))
}

// decodePos parses an 8-digit hex word into pulses.
func decodePos(s string) (int32, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, &comm.DeviceError{Device: "elliptec", Message: fmt.Sprintf("bad position word %q", s)}
	}
	return int32(uint32(v)), nil
}

// exchange sends cmd+data and returns the reply with the address stripped.
func (r *Rotator) exchange(cmd, data string) (string, error) {
	msg := append([]byte{r.addr}, []byte(cmd+data)...)
	resp, err := r.conn.SendRecv(msg)
	if err != nil {
		return "", &comm.DeviceError{Device: "elliptec", Message: err.Error()}
	}
	if len(resp) < 3 || resp[0] != r.addr {
		return "", &comm.DeviceError{Device: "elliptec", Message: fmt.Sprintf("malformed reply %q", resp)}
	}
	return string(resp[1:]), nil
}

// checkReply interprets a reply that should be a position word, converting
// GS status replies into errors.
func checkReply(reply string) (int32, error) {
	mnemonic, body := reply[:2], reply[2:]
	switch mnemonic {
	case "PO":
		return decodePos(body)
	case "GS":
		if body == "00" {
			return 0, nil
		}
		msg, ok := statusText[body]
		if !ok {
			msg = "unknown status"
		}
		return 0, &comm.DeviceError{Device: "elliptec", Code: body, Message: msg}
	default:
		return 0, &comm.DeviceError{Device: "elliptec", Message: fmt.Sprintf("unexpected reply mnemonic %q", mnemonic)}
	}
}

// Home drives the stage to its zero stop.  Direction 0 (clockwise) is used;
// for a continuous rotator the direction only affects travel time.
func (r *Rotator) Home() error {
	reply, err := r.exchange("ho", "0")
	if err != nil {
		return err
	}
	_, err = checkReply(reply)
	return err
}

// MoveTo moves to an absolute angle in degrees and blocks until the stage
// reports the motion complete.
func (r *Rotator) MoveTo(deg float64) error {
	reply, err := r.exchange("ma", encodePos(degToPulses(deg)))
	if err != nil {
		return err
	}
	_, err = checkReply(reply)
	return err
}

// GetAngle reads back the current position in degrees.
func (r *Rotator) GetAngle() (float64, error) {
	reply, err := r.exchange("gp", "")
	if err != nil {
		return 0, err
	}
	pulses, err := checkReply(reply)
	if err != nil {
		return 0, err
	}
	return pulsesToDeg(pulses), nil
}
