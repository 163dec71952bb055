/*Package comm provides the low-level plumbing shared by the instrument
drivers: terminated send/receive over a serial port or TCP socket, with
bounded timeouts and exponential backoff on connection establishment.

Drivers embed or hold a *Conn and speak their protocol through Send, Recv
and SendRecv.  All calls are blocking with a deadline; a device that stops
responding surfaces a timeout error rather than hanging the control loop.
*/
package comm

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// ErrNotConnected is returned when Send or Recv is called before Open.
var ErrNotConnected = errors.New("comm: not connected to remote")

// DeviceError is a communication failure reported by or about a device.
type DeviceError struct {
	// Device identifies the instrument, e.g. "elliptec".
	Device string

	// Code is the device-reported status code, if any.
	Code string

	// Message is a human-readable description.
	Message string
}

func (e *DeviceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: [%s] %s", e.Device, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Device, e.Message)
}

// Conn is a terminated-message connection to a remote device.  It is not
// safe for concurrent use; the sweep commands devices sequentially.
type Conn struct {
	addr       string
	serialConf *serial.Config
	txTerm     byte
	rxTerm     byte
	timeout    time.Duration

	rwc io.ReadWriteCloser
	r   *bufio.Reader
}

// NewSerial returns a Conn over an RS-232 port.  conf.ReadTimeout is
// overridden by timeout.
func NewSerial(conf *serial.Config, term byte, timeout time.Duration) *Conn {
	c := *conf
	c.ReadTimeout = timeout
	return &Conn{addr: conf.Name, serialConf: &c, txTerm: term, rxTerm: term, timeout: timeout}
}

// NewTCP returns a Conn over a TCP socket.
func NewTCP(addr string, term byte, timeout time.Duration) *Conn {
	return &Conn{addr: addr, txTerm: term, rxTerm: term, timeout: timeout}
}

// SetTerminators overrides the transmit and receive terminator bytes, for
// protocols where they differ.
func (c *Conn) SetTerminators(tx, rx byte) {
	c.txTerm = tx
	c.rxTerm = rx
}

// Addr returns the remote address or port name.
func (c *Conn) Addr() string {
	return c.addr
}

// Open establishes the connection.  Connection attempts are retried with
// exponential backoff; some of the bench hardware dislikes being
// connection-thrashed after power-up.
func (c *Conn) Open() error {
	op := func() error {
		err := c.open()
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "refused") {
			// the remote is up but rejecting us; do not hammer it
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err != nil {
		return errors.Wrapf(err, "comm: open %s", c.addr)
	}
	return nil
}

func (c *Conn) open() error {
	var (
		rwc io.ReadWriteCloser
		err error
	)
	if c.serialConf != nil {
		rwc, err = serial.OpenPort(c.serialConf)
	} else {
		rwc, err = net.DialTimeout("tcp", c.addr, c.timeout)
	}
	if err != nil {
		return err
	}
	c.rwc = rwc
	c.r = bufio.NewReader(rwc)
	return nil
}

// Close tears down the connection.  Safe to call when not connected.
func (c *Conn) Close() error {
	if c.rwc == nil {
		return nil
	}
	err := c.rwc.Close()
	c.rwc = nil
	c.r = nil
	return err
}

// Connected reports whether the connection is open.
func (c *Conn) Connected() bool {
	return c.rwc != nil
}

// deadline arms the i/o deadline for TCP connections; serial ports carry
// their timeout in the port config.
func (c *Conn) deadline() {
	if nc, ok := c.rwc.(net.Conn); ok {
		nc.SetDeadline(time.Now().Add(c.timeout))
	}
}

// Send writes b followed by the transmit terminator.
func (c *Conn) Send(b []byte) error {
	if c.rwc == nil {
		return ErrNotConnected
	}
	c.deadline()
	_, err := c.rwc.Write(append(b, c.txTerm))
	return err
}

// Recv reads one response, stripping the receive terminator and any
// trailing carriage return before it.
func (c *Conn) Recv() ([]byte, error) {
	if c.rwc == nil {
		return nil, ErrNotConnected
	}
	c.deadline()
	buf, err := c.r.ReadBytes(c.rxTerm)
	if err != nil {
		return nil, err
	}
	buf = bytes.TrimSuffix(buf, []byte{c.rxTerm})
	buf = bytes.TrimSuffix(buf, []byte{'\r'})
	return buf, nil
}

// SendRecv sends b and returns the next response.
func (c *Conn) SendRecv(b []byte) ([]byte, error) {
	err := c.Send(b)
	if err != nil {
		return nil, err
	}
	return c.Recv()
}
