package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"weighstation/internal/config"
	"weighstation/internal/daemon"
	"weighstation/internal/daemonrun"
	"weighstation/internal/deps"
	"weighstation/internal/preflight"
)

type statusReport struct {
	ConfigPath string             `json:"config_path"`
	Daemon     daemonReport       `json:"daemon"`
	Checks     []preflight.Result `json:"checks"`
	Deps       []deps.Status      `json:"dependencies"`
}

type daemonReport struct {
	Running bool           `json:"running"`
	PID     int            `json:"pid,omitempty"`
	Live    *daemon.Status `json:"live,omitempty"`
	Detail  string         `json:"detail,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{
				ConfigPath: ctx.configPath,
				Daemon:     probeDaemon(cmd.Context(), cfg),
				Checks:     preflight.RunAll(cmd.Context(), cfg),
				Deps:       preflight.CheckSystemDeps(cfg),
			}
			if jsonOut {
				return writeJSON(cmd, report)
			}
			renderStatusReport(cmd, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// probeDaemon reports whether a daemon holds the device lock and, when the
// API is enabled, fetches its live status.
func probeDaemon(ctx context.Context, cfg *config.Config) daemonReport {
	report := daemonReport{PID: daemonrun.ReadPID(cfg)}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	switch {
	case err != nil:
		report.Detail = fmt.Sprintf("lock check failed: %v", err)
	case locked:
		_ = lock.Unlock()
	default:
		report.Running = true
	}
	if !report.Running {
		report.PID = 0
		return report
	}

	live, err := fetchLiveStatus(ctx, cfg)
	if err != nil {
		report.Detail = err.Error()
		return report
	}
	report.Live = live
	return report
}

func fetchLiveStatus(ctx context.Context, cfg *config.Config) (*daemon.Status, error) {
	base := apiBaseURL(cfg.Paths.APIBind)
	if base == "" {
		return nil, fmt.Errorf("api disabled")
	}
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, base+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(cfg.Paths.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query api: unexpected status %d", resp.StatusCode)
	}
	var status daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode api status: %w", err)
	}
	return &status, nil
}

// apiBaseURL turns a listen address into a loopback URL for local clients.
func apiBaseURL(bind string) string {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return ""
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func renderStatusReport(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	lines := renderSectionHeader("Daemon", colorize)
	switch {
	case report.Daemon.Live != nil:
		live := report.Daemon.Live
		lines = append(lines,
			renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", report.Daemon.PID), colorize),
			renderStatusLine("Device", statusInfo, live.Device, colorize),
			renderStatusLine("Last weight", statusInfo, fmt.Sprintf("%d kg", live.Ingest.LastWeight), colorize),
			renderStatusLine("Accepted", statusInfo, fmt.Sprintf("%d of %d frames", live.Ingest.Accepted, live.Ingest.Frames), colorize),
		)
		if failures := live.Ingest.CaptureFailures + live.Ingest.PersistFailures; failures > 0 {
			lines = append(lines, renderStatusLine("Failures", statusWarn,
				fmt.Sprintf("%d capture, %d persist", live.Ingest.CaptureFailures, live.Ingest.PersistFailures), colorize))
		}
	case report.Daemon.Running:
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "running; "+report.Daemon.Detail, colorize))
	default:
		message := "not running"
		if report.Daemon.Detail != "" {
			message += "; " + report.Daemon.Detail
		}
		lines = append(lines, renderStatusLine("Daemon", statusInfo, message, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	for _, result := range report.Checks {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
	for _, dep := range report.Deps {
		kind := statusOK
		detail := dep.Command
		if !dep.Available {
			kind = statusError
			if dep.Optional {
				kind = statusWarn
			}
			detail = dep.Detail
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}

	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	if report.ConfigPath != "" {
		fmt.Fprintf(out, "\nConfig: %s\n", report.ConfigPath)
	}
}
