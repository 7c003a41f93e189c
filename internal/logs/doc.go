// Package logs reads the daemon's log files for the CLI.
//
// Last returns the final N lines with bounded memory, and Follow polls for
// appended lines, restarting from the top when the file is truncated or when
// the weighstation.log pointer moves to a new run's file.
package logs
