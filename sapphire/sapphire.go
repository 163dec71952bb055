/*Package sapphire controls Quantum Composers Sapphire 9200-series pulse
generators over RS-232.

The instrument speaks a SCPI-flavored command set; channels are addressed
as :PULSE1 (channel A) through :PULSE4, and :PULSE0 is the system.  Set
commands answer "ok" on success and "?n" on error.  Only channel A is wired
to the excitation source; the other channels are forced off at connect so a
stale front-panel state cannot fire anything.

The trigger contract for the sweep is SetTrigger: channel A and the system
output are switched together, and the device is always quiesced (both off)
on Close.
*/
package sapphire

import (
	"fmt"
	"time"

	"github.com/tarm/serial"

	"github.com/opal-photonics/asesweep/comm"
)

// DefaultTimeout bounds one command round trip.
const DefaultTimeout = 5 * time.Second

// PulseConfig is the pulse train programmed at connect.
type PulseConfig struct {
	// PeriodS is the pulse period in seconds.
	PeriodS float64

	// WidthS is the pulse width in seconds.
	WidthS float64

	// AmplitudeV is the output amplitude in volts.
	AmplitudeV float64
}

type transport interface {
	Open() error
	Close() error
	SendRecv([]byte) ([]byte, error)
}

// Pulser is one Sapphire pulse generator.
type Pulser struct {
	conn transport
}

// New returns a pulser on the given serial port.
func New(port string, timeout time.Duration) *Pulser {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	conf := &serial.Config{Name: port, Baud: 38400}
	return &Pulser{conn: comm.NewSerial(conf, '\n', timeout)}
}

// command sends one command and checks the instrument's acknowledgement.
func (p *Pulser) command(cmd string) error {
	resp, err := p.conn.SendRecv([]byte(cmd))
	if err != nil {
		return &comm.DeviceError{Device: "sapphire", Message: err.Error()}
	}
	if string(resp) != "ok" {
		return &comm.DeviceError{Device: "sapphire", Code: string(resp), Message: fmt.Sprintf("command %q rejected", cmd)}
	}
	return nil
}

// query sends a query and returns the raw response.
func (p *Pulser) query(cmd string) (string, error) {
	resp, err := p.conn.SendRecv([]byte(cmd))
	if err != nil {
		return "", &comm.DeviceError{Device: "sapphire", Message: err.Error()}
	}
	return string(resp), nil
}

// Identify returns the instrument's *IDN? string.
func (p *Pulser) Identify() (string, error) {
	return p.query("*IDN?")
}

// Connect opens the port, resets the instrument, and programs the pulse
// train with everything switched off.
func (p *Pulser) Connect(cfg PulseConfig) error {
	err := p.conn.Open()
	if err != nil {
		return err
	}
	// *RST answers ok and then needs a beat before accepting commands
	if err := p.command("*RST"); err != nil {
		return err
	}
	time.Sleep(time.Second)
	cmds := []string{
		":PULSE0:MODE NORM",
		fmt.Sprintf(":PULSE0:PER %g", cfg.PeriodS),
		":PULSE1:MODE NORM",
		fmt.Sprintf(":PULSE1:WIDT %g", cfg.WidthS),
		":PULSE1:DEL 0",
		fmt.Sprintf(":PULSE1:OUTP:AMPL %g", cfg.AmplitudeV),
		":PULSE2:STAT 0",
		":PULSE3:STAT 0",
		":PULSE4:STAT 0",
		":PULSE1:STAT 0",
		":PULSE0:STAT 0",
	}
	for _, c := range cmds {
		if err := p.command(c); err != nil {
			return err
		}
	}
	return nil
}

// SetTrigger switches channel A and the system output together.  The
// channel is switched first so the system gate never opens onto a stale
// channel state.
func (p *Pulser) SetTrigger(on bool) error {
	state := 0
	if on {
		state = 1
	}
	if err := p.command(fmt.Sprintf(":PULSE1:STAT %d", state)); err != nil {
		return err
	}
	return p.command(fmt.Sprintf(":PULSE0:STAT %d", state))
}

// Close quiesces the output and releases the port.  The off commands are
// best-effort; the port is closed regardless.
func (p *Pulser) Close() error {
	p.command(":PULSE0:STAT 0")
	p.command(":PULSE1:STAT 0")
	return p.conn.Close()
}
