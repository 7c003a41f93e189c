//go:build linux

package serialport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// pollInterval bounds how long a Read waits before re-checking its context.
const pollInterval = 250

var baudRates = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

// Port is an open serial device.
type Port struct {
	cfg    Config
	fd     int
	wakeR  int
	wakeW  int
	mu     sync.RWMutex
	closed atomic.Bool
}

// Open opens the device and applies raw-mode line settings.
func Open(cfg Config) (*Port, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	speed, ok := baudRates[cfg.BaudRate]
	if !ok {
		return nil, fmt.Errorf("unsupported baud rate %d", cfg.BaudRate)
	}

	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	if err := configure(fd, cfg, speed); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("configure %s: %w", cfg.Device, err)
	}

	pipe := make([]int, 2)
	if err := unix.Pipe2(pipe, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("create wake pipe: %w", err)
	}
	return &Port{cfg: cfg, fd: fd, wakeR: pipe[0], wakeW: pipe[1]}, nil
}

func configure(fd int, cfg Config, speed uint32) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN

	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CSTOPB | unix.CRTSCTS | unix.CBAUD
	t.Cflag |= unix.CREAD | unix.CLOCAL | speed
	switch cfg.DataBits {
	case 5:
		t.Cflag |= unix.CS5
	case 6:
		t.Cflag |= unix.CS6
	case 7:
		t.Cflag |= unix.CS7
	default:
		t.Cflag |= unix.CS8
	}
	if cfg.StopBits == 2 {
		t.Cflag |= unix.CSTOPB
	}
	switch cfg.Parity {
	case "even":
		t.Cflag |= unix.PARENB
		t.Iflag |= unix.INPCK
	case "odd":
		t.Cflag |= unix.PARENB | unix.PARODD
		t.Iflag |= unix.INPCK
	}
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return err
	}
	return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH)
}

// Config returns the normalized settings the port was opened with.
func (p *Port) Config() Config {
	return p.cfg
}

// Device returns the device path.
func (p *Port) Device() string {
	return p.cfg.Device
}

// Available returns the number of bytes waiting in the driver input queue.
func (p *Port) Available() (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return 0, ErrClosed
	}
	n, err := unix.IoctlGetInt(p.fd, unix.TIOCINQ)
	if err != nil {
		return 0, fmt.Errorf("query input queue: %w", err)
	}
	return n, nil
}

// Read blocks until at least one byte is available, the context is done,
// or the port is closed. It returns the bytes the driver had ready.
func (p *Port) Read(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	fds := []unix.PollFd{
		{Fd: int32(p.fd), Events: unix.POLLIN},
		{Fd: int32(p.wakeR), Events: unix.POLLIN},
	}
	for {
		if p.closed.Load() {
			return 0, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		fds[0].Revents, fds[1].Revents = 0, 0
		n, err := unix.Poll(fds, pollInterval)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("poll %s: %w", p.cfg.Device, err)
		}
		if n == 0 {
			continue
		}
		if fds[1].Revents != 0 {
			return 0, ErrClosed
		}
		rev := fds[0].Revents
		if rev&unix.POLLIN != 0 {
			read, err := unix.Read(p.fd, buf)
			switch {
			case errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR):
				continue
			case err != nil:
				return 0, fmt.Errorf("read %s: %w", p.cfg.Device, err)
			case read == 0:
				return 0, io.EOF
			}
			return read, nil
		}
		if rev&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			return 0, fmt.Errorf("read %s: %w", p.cfg.Device, io.ErrUnexpectedEOF)
		}
	}
}

// Write sends p to the device.
func (p *Port) Write(data []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return 0, ErrClosed
	}
	written := 0
	for written < len(data) {
		n, err := unix.Write(p.fd, data[written:])
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return written, fmt.Errorf("write %s: %w", p.cfg.Device, err)
		}
		written += n
	}
	return written, nil
}

// Close wakes any blocked reader and releases the device.
func (p *Port) Close() error {
	if p == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	_, _ = unix.Write(p.wakeW, []byte{0})

	p.mu.Lock()
	defer p.mu.Unlock()
	err := unix.Close(p.fd)
	_ = unix.Close(p.wakeR)
	_ = unix.Close(p.wakeW)
	if err != nil {
		return fmt.Errorf("close %s: %w", p.cfg.Device, err)
	}
	return nil
}
