package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrFeedUnavailable means the stream could not be opened or read.
	ErrFeedUnavailable = errors.New("camera feed unavailable")
	// ErrNoFrame means the stream opened but no frame was written.
	ErrNoFrame = errors.New("no frame captured")
	// ErrDisabled means no camera is configured.
	ErrDisabled = errors.New("camera disabled")
)

const defaultTimeout = 10 * time.Second

var commandContext = exec.CommandContext

// Capturer takes one snapshot and returns the stored file name.
type Capturer interface {
	Capture(ctx context.Context) (string, error)
}

// FFmpeg captures frames from an RTSP stream with the ffmpeg CLI.
type FFmpeg struct {
	binary  string
	url     string
	dir     string
	timeout time.Duration
}

// Option configures an FFmpeg capturer.
type Option func(*FFmpeg)

// WithBinary overrides the ffmpeg executable.
func WithBinary(binary string) Option {
	return func(f *FFmpeg) {
		if strings.TrimSpace(binary) != "" {
			f.binary = binary
		}
	}
}

// WithTimeout bounds each capture.
func WithTimeout(timeout time.Duration) Option {
	return func(f *FFmpeg) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// NewFFmpeg builds a capturer writing into dir.
func NewFFmpeg(url, dir string, opts ...Option) *FFmpeg {
	f := &FFmpeg{binary: "ffmpeg", url: strings.TrimSpace(url), dir: dir, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Dir returns the directory snapshots are written to.
func (f *FFmpeg) Dir() string {
	return f.dir
}

// Capture grabs one frame. The returned name is relative to Dir.
func (f *FFmpeg) Capture(ctx context.Context) (string, error) {
	if f.url == "" {
		return "", ErrDisabled
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure snapshot dir: %w", err)
	}

	name := uuid.NewString() + ".jpg"
	dest := filepath.Join(f.dir, name)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-rtsp_transport", "tcp",
		"-i", f.url,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		dest,
	}
	cmd := commandContext(ctx, f.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(dest)
		detail := strings.TrimSpace(string(output))
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: timed out after %s", ErrFeedUnavailable, f.timeout)
		}
		if detail == "" {
			return "", fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
		}
		return "", fmt.Errorf("%w: %v: %s", ErrFeedUnavailable, err, detail)
	}

	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(dest)
		return "", ErrNoFrame
	}
	return name, nil
}

// Disabled is the capturer used when no camera is configured.
type Disabled struct{}

// Capture always returns ErrDisabled.
func (Disabled) Capture(context.Context) (string, error) {
	return "", ErrDisabled
}
