// Package serialport opens a Linux tty in raw mode and reads it without
// userspace buffering.
//
// Reads block in poll(2) on the device and a self-pipe, so Close from another
// goroutine or a cancelled context wakes a blocked reader immediately.
// Available reports the driver's input queue length (TIOCINQ). Only Linux is
// supported; other platforms get ErrUnsupported from Open.
package serialport
