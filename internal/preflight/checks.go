package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"weighstation/internal/config"
	"weighstation/internal/deps"
	"weighstation/internal/measurements"
)

const defaultRTSPPort = "554"

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSerialDevice verifies the scale adapter node exists, is a character
// device, and is readable and writable by this user.
func CheckSerialDevice(device string) Result {
	const name = "Scale device"

	device = strings.TrimSpace(device)
	if device == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(device)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not present; is the adapter plugged in?)", device)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", device, err)}
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a character device)", device)}
	}
	if err := unix.Access(device, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v; add the user to the dialout group)", device, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", device)}
}

// CheckStorage opens the configured measurement store and counts rows.
func CheckStorage(ctx context.Context, cfg *config.Config) Result {
	const name = "Storage"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := measurements.Open(checkCtx, cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.Storage.Driver, err)}
	}
	defer store.Close()

	count, err := store.Count(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.Storage.Driver, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d measurements)", cfg.Storage.Driver, count)}
}

// CheckCamera verifies the RTSP endpoint accepts TCP connections. It does not
// authenticate or pull a frame.
func CheckCamera(ctx context.Context, rtspURL string) Result {
	const name = "Camera"

	address, err := rtspAddress(rtspURL)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(checkCtx, "tcp", address)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: connect timed out)", address)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", address, err)}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", address)}
}

// rtspAddress extracts host:port from an RTSP URL without credentials.
func rtspAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("missing rtsp url")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid rtsp url: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", errors.New("rtsp url has no host")
	}
	port := parsed.Port()
	if port == "" {
		port = defaultRTSPPort
	}
	return net.JoinHostPort(host, port), nil
}

// CheckSystemDeps evaluates external binaries for the given config. FFmpeg is
// only required when a camera is configured.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	ffmpeg := deps.CheckFFmpeg(cfg.Camera.FFmpegBinary)
	ffmpeg.Optional = !cfg.CameraEnabled()
	return []deps.Status{ffmpeg}
}
