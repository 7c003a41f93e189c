// Package preflight provides readiness checks for the scale device, the
// camera, storage, and the directories weighstation writes to.
//
// The "weighstation status" command renders RunAll and CheckSystemDeps as a
// table, and the daemon logs the same results once at startup so a missing
// adapter or unreachable camera shows up before the first weighing.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
