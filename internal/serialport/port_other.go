//go:build !linux

package serialport

import "context"

// Port is unavailable on this platform.
type Port struct {
	cfg Config
}

// Open always fails on non-Linux platforms.
func Open(cfg Config) (*Port, error) {
	return nil, ErrUnsupported
}

func (p *Port) Config() Config { return p.cfg }

func (p *Port) Device() string { return p.cfg.Device }

func (p *Port) Available() (int, error) { return 0, ErrUnsupported }

func (p *Port) Read(context.Context, []byte) (int, error) { return 0, ErrUnsupported }

func (p *Port) Write([]byte) (int, error) { return 0, ErrUnsupported }

func (p *Port) Close() error { return nil }
