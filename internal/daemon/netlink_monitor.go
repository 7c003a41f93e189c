package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"weighstation/internal/config"
	"weighstation/internal/logging"
)

// netlinkMonitor watches udev tty events and reports when the configured
// scale adapter is plugged in or removed.
type netlinkMonitor struct {
	logger  *slog.Logger
	devices map[string]struct{}

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
	present bool
}

func newNetlinkMonitor(cfg *config.Config, logger *slog.Logger) *netlinkMonitor {
	if cfg == nil {
		return nil
	}
	device := strings.TrimSpace(cfg.Serial.Device)
	if device == "" {
		return nil
	}

	devices := map[string]struct{}{device: {}}
	// udev reports the kernel name; configs often use /dev/serial/by-id links.
	if resolved, err := filepath.EvalSymlinks(device); err == nil {
		devices[resolved] = struct{}{}
	}

	return &netlinkMonitor{
		logger:  logging.NewComponentLogger(logger, "tty-monitor"),
		devices: devices,
		present: true,
	}
}

// Start begins listening for udev netlink events.
func (m *netlinkMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; adapter hotplug will not be reported",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "unplugged adapters only surface as read errors"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("tty monitor started",
		logging.String(logging.FieldEventType, "netlink_monitor_started"),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *netlinkMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("tty monitor stopped",
		logging.String(logging.FieldEventType, "netlink_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *netlinkMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Present reports whether the adapter was last seen attached.
func (m *netlinkMonitor) Present() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.present
}

func (m *netlinkMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "adapter hotplug reporting may be affected"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=tty with ACTION=add|remove.
func buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
		},
	})
	return rules
}

func (m *netlinkMonitor) handleEvent(uevent netlink.UEvent) {
	devname := extractDeviceName(uevent)
	if devname == "" {
		return
	}
	if _, ok := m.devices[devname]; !ok {
		m.logger.Debug("ignoring tty event for other device",
			logging.String(logging.FieldDevice, devname),
			logging.String("action", string(uevent.Action)),
		)
		return
	}

	switch string(uevent.Action) {
	case "add":
		m.setPresent(true)
		m.logger.Info("scale adapter attached",
			logging.String(logging.FieldDevice, devname),
			logging.String(logging.FieldEventType, "scale_adapter_attached"),
		)
	case "remove":
		m.setPresent(false)
		logging.WarnWithContext(m.logger, "scale adapter removed", "scale_adapter_removed",
			logging.String(logging.FieldDevice, devname),
			logging.String(logging.FieldErrorHint, "reconnect the USB serial adapter and restart the daemon"),
			logging.String(logging.FieldImpact, "no readings until the adapter returns"),
		)
	}
}

func (m *netlinkMonitor) setPresent(present bool) {
	m.mu.Lock()
	m.present = present
	m.mu.Unlock()
}

// extractDeviceName gets the device path from a uevent.
func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			return "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
