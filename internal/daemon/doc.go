// Package daemon coordinates the long-running weighstation process.
//
// It takes a flock-based lock per serial device so two processes never read
// the same scale, opens the port, and supervises two tasks under one cancel
// scope: the ingestion session and the HTTP API. The first task to fail stops
// the other. A udev netlink monitor reports when the scale's tty appears or
// disappears; it never reopens the port.
package daemon
