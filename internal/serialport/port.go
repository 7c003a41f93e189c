package serialport

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is returned by operations on a closed port.
	ErrClosed = errors.New("serial port closed")
	// ErrUnsupported is returned on platforms without termios support.
	ErrUnsupported = errors.New("serial ports are only supported on linux")
)

// Config describes the line settings for a port.
type Config struct {
	Device   string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// DefaultConfig returns 9600 baud 8N1 on device.
func DefaultConfig(device string) Config {
	return Config{Device: device, BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "none"}
}

func (c Config) normalized() (Config, error) {
	c.Device = strings.TrimSpace(c.Device)
	if c.Device == "" {
		return c, errors.New("serial device path is empty")
	}
	if c.BaudRate == 0 {
		c.BaudRate = 9600
	}
	if c.DataBits == 0 {
		c.DataBits = 8
	}
	if c.StopBits == 0 {
		c.StopBits = 1
	}
	c.Parity = strings.ToLower(strings.TrimSpace(c.Parity))
	if c.Parity == "" {
		c.Parity = "none"
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return c, fmt.Errorf("unsupported data bits %d", c.DataBits)
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return c, fmt.Errorf("unsupported stop bits %d", c.StopBits)
	}
	switch c.Parity {
	case "none", "even", "odd":
	default:
		return c, fmt.Errorf("unsupported parity %q", c.Parity)
	}
	return c, nil
}

// String renders the line settings as e.g. "/dev/ttyUSB0 9600 8N1".
func (c Config) String() string {
	parity := "N"
	switch c.Parity {
	case "even":
		parity = "E"
	case "odd":
		parity = "O"
	}
	return fmt.Sprintf("%s %d %d%s%d", c.Device, c.BaudRate, c.DataBits, parity, c.StopBits)
}
