package preflight

import (
	"context"

	"weighstation/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckSerialDevice(cfg.Serial.Device),
		CheckStorage(ctx, cfg),
	}

	if cfg.CameraEnabled() {
		results = append(results,
			CheckDirectoryAccess("Snapshot directory", cfg.Paths.SnapshotDir),
			CheckCamera(ctx, cfg.Camera.RTSPURL),
		)
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
