package cpu

import (
	"fmt"
	"io"
)

// Device serves one I/O port.
type Device interface {
	In() (byte, error)
	Out(val byte) error
}

// StatefulDevice is a Device whose state travels with a hibernation
// archive as device_<port>.bin.
type StatefulDevice interface {
	Device
	SaveState() []byte
	LoadState(data []byte) error
}

// MountDevice attaches d to port, replacing the default behaviour.
func (c *CPU) MountDevice(port byte, d Device) {
	c.Devices[port] = d
}

func (c *CPU) in(port byte) (byte, error) {
	if d := c.Devices[port]; d != nil {
		return d.In()
	}
	if port != PortInput || c.Input == nil {
		return 0, nil
	}
	var n int
	if _, err := fmt.Fscan(c.Input, &n); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("port %d: %w", port, err)
	}
	return byte(n), nil
}

func (c *CPU) out(port byte, val byte) error {
	if d := c.Devices[port]; d != nil {
		return d.Out(val)
	}
	var err error
	switch port {
	case PortNumber:
		_, err = fmt.Fprintf(c.outputSink(), "%d\n", val)
	case PortChar:
		_, err = c.outputSink().Write([]byte{val})
	}
	return err
}
