// Package scale turns the raw byte stream of a serial weighing indicator into
// accepted weight measurements.
//
// Three pieces cooperate, each usable on its own:
//
//   - FrameBuffer accumulates bytes as they arrive and hands back complete
//     line-feed terminated frames. A missing delimiter always means "wait for
//     more bytes"; nothing is emitted speculatively.
//   - Decode parses a 22-byte record into a Reading (stability token at
//     offsets 0-1, seven character weight at offsets 9-15).
//   - Filter applies the hysteresis rule that collapses the burst of stable
//     readings produced while an object settles into a single acceptance.
//
// Filter carries the only mutable state in the package and must be driven by
// a single goroutine in record order.
package scale
