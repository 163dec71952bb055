package comm

import (
	"bufio"
	"net"
	"testing"
	"time"
)

// echoServer replies to each line with "echo: <line>".
func echoServer(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				r := bufio.NewReader(c)
				for {
					line, err := r.ReadBytes('\n')
					if err != nil {
						return
					}
					c.Write(append(append([]byte("echo: "), line[:len(line)-1]...), '\n'))
				}
			}(conn)
		}
	}()
	return l
}

func TestSendRecvTCP(t *testing.T) {
	l := echoServer(t)
	defer l.Close()
	c := NewTCP(l.Addr().String(), '\n', 2*time.Second)
	if err := c.Open(); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	resp, err := c.SendRecv([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "echo: hello" {
		t.Errorf("expected echo, got %q", resp)
	}
}

func TestRecvStripsCRLF(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("value\r\n"))
		time.Sleep(100 * time.Millisecond)
	}()
	c := NewTCP(l.Addr().String(), '\n', 2*time.Second)
	if err := c.Open(); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	resp, err := c.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "value" {
		t.Errorf("expected CR and LF stripped, got %q", resp)
	}
}

func TestNotConnected(t *testing.T) {
	c := NewTCP("127.0.0.1:1", '\n', time.Second)
	if err := c.Send([]byte("x")); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected from Send, got %v", err)
	}
	if _, err := c.Recv(); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected from Recv, got %v", err)
	}
	if c.Connected() {
		t.Error("unopened conn reports connected")
	}
}

func TestCloseIdempotent(t *testing.T) {
	c := NewTCP("127.0.0.1:1", '\n', time.Second)
	if err := c.Close(); err != nil {
		t.Errorf("closing an unopened conn should be a no-op, got %v", err)
	}
}

func TestDeviceError(t *testing.T) {
	e := &DeviceError{Device: "elliptec", Code: "09", Message: "bus fault"}
	if e.Error() != "elliptec: [09] bus fault" {
		t.Errorf("unexpected format %q", e.Error())
	}
	e = &DeviceError{Device: "sapphire", Message: "no response"}
	if e.Error() != "sapphire: no response" {
		t.Errorf("unexpected format %q", e.Error())
	}
}
