//go:build linux

package serialport_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"weighstation/internal/serialport"
)

// openPTY returns the master fd and the slave device path.
func openPTY(t *testing.T) (int, string) {
	t.Helper()
	master, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	t.Cleanup(func() { _ = unix.Close(master) })
	if err := unix.IoctlSetPointerInt(master, unix.TIOCSPTLCK, 0); err != nil {
		t.Skipf("unlock pty: %v", err)
	}
	n, err := unix.IoctlGetInt(master, unix.TIOCGPTN)
	if err != nil {
		t.Skipf("pty number: %v", err)
	}
	return master, fmt.Sprintf("/dev/pts/%d", n)
}

func TestReadReturnsWrittenBytes(t *testing.T) {
	master, slave := openPTY(t)
	port, err := serialport.Open(serialport.DefaultConfig(slave))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer port.Close()

	record := []byte("ST,GS,   0001234kg  \r\n")
	if _, err := unix.Write(master, record); err != nil {
		t.Fatalf("write master: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got []byte
	buf := make([]byte, 64)
	for len(got) < len(record) {
		n, err := port.Read(ctx, buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != string(record) {
		t.Fatalf("unexpected bytes %q", got)
	}
}

func TestAvailableReportsQueuedBytes(t *testing.T) {
	master, slave := openPTY(t)
	port, err := serialport.Open(serialport.DefaultConfig(slave))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer port.Close()

	if n, err := port.Available(); err != nil || n != 0 {
		t.Fatalf("expected empty queue, got %d err=%v", n, err)
	}
	if _, err := unix.Write(master, []byte("abcde")); err != nil {
		t.Fatalf("write master: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := port.Available()
		if err != nil {
			t.Fatalf("Available: %v", err)
		}
		if n == 5 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("queued bytes never reported")
}

func TestCloseWakesBlockedRead(t *testing.T) {
	_, slave := openPTY(t)
	port, err := serialport.Open(serialport.DefaultConfig(slave))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := port.Read(context.Background(), make([]byte, 8))
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	if err := port.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, serialport.ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return after Close")
	}
	if err := port.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := port.Available(); !errors.Is(err, serialport.ErrClosed) {
		t.Fatalf("expected ErrClosed from Available, got %v", err)
	}
}

func TestReadHonoursContext(t *testing.T) {
	_, slave := openPTY(t)
	port, err := serialport.Open(serialport.DefaultConfig(slave))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer port.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := port.Read(ctx, make([]byte, 8)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestOpenRejectsBadSettings(t *testing.T) {
	cases := []serialport.Config{
		{Device: ""},
		{Device: "/dev/null", BaudRate: 1234},
		{Device: "/dev/null", DataBits: 9},
		{Device: "/dev/null", StopBits: 3},
		{Device: "/dev/null", Parity: "mark"},
	}
	for _, cfg := range cases {
		if _, err := serialport.Open(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestConfigString(t *testing.T) {
	cfg := serialport.DefaultConfig("/dev/ttyUSB0")
	if got := cfg.String(); got != "/dev/ttyUSB0 9600 8N1" {
		t.Fatalf("unexpected %q", got)
	}
}
