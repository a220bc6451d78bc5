// Package controller streams joint vectors to a humanoid controller over
// a serial line, one text frame per mapped pose.
package controller

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/banshee-data/posemap/internal/humanoid"
)

// FramePrefix starts every pose frame.
const FramePrefix = "POSE"

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("controller: port closed")

// Port is the minimal surface of a serial port the controller needs.
type Port interface {
	io.Writer
	io.Closer
}

// Opener opens a serial port. Tests substitute it.
type Opener func(path string, mode *serial.Mode) (Port, error)

func openSerial(path string, mode *serial.Mode) (Port, error) {
	return serial.Open(path, mode)
}

// Controller writes pose frames to a port. It is safe for concurrent use;
// frames are never interleaved.
type Controller struct {
	mu     sync.Mutex
	port   Port
	closed bool
	sent   int
}

// New wraps an already open port.
func New(port Port) *Controller {
	return &Controller{port: port}
}

// Open opens the serial device at path.
func Open(path string, opts PortOptions) (*Controller, error) {
	return OpenWith(openSerial, path, opts)
}

// OpenWith opens path through open, after normalising opts.
func OpenWith(open Opener, path string, opts PortOptions) (*Controller, error) {
	if path == "" {
		return nil, errors.New("serial port path is empty")
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	diagf("opened %s at %d baud", path, mode.BaudRate)
	return New(port), nil
}

// Frame renders a vector as "POSE v0,...,v16\n" in radians with six
// decimals.
func Frame(v humanoid.Vector) []byte {
	var b strings.Builder
	b.WriteString(FramePrefix)
	b.WriteByte(' ')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(x, 'f', 6, 64))
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// ParseFrame is the inverse of Frame. It accepts the line with or without
// its trailing newline.
func ParseFrame(line string) (humanoid.Vector, error) {
	var v humanoid.Vector
	body, ok := strings.CutPrefix(strings.TrimRight(line, "\r\n"), FramePrefix+" ")
	if !ok {
		return v, fmt.Errorf("frame does not start with %q", FramePrefix)
	}
	fields := strings.Split(body, ",")
	if len(fields) != humanoid.NumJoints {
		return v, fmt.Errorf("frame has %d values, want %d", len(fields), humanoid.NumJoints)
	}
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return v, fmt.Errorf("value %d: %w", i, err)
		}
		v[i] = x
	}
	return v, nil
}

// Send writes one frame.
func (c *Controller) Send(v humanoid.Vector) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	frame := Frame(v)
	n, err := c.port.Write(frame)
	if err != nil {
		opsf("write failed after %d of %d bytes: %v", n, len(frame), err)
		return fmt.Errorf("failed to write pose frame: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("failed to write pose frame: %w", io.ErrShortWrite)
	}
	c.sent++
	tracef("sent frame %d", c.sent)
	return nil
}

// Sent is the number of frames written successfully.
func (c *Controller) Sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// Close closes the port. Further Sends fail with ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.port.Close()
}
