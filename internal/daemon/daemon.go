package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"weighstation/internal/config"
	"weighstation/internal/ingest"
	"weighstation/internal/logging"
	"weighstation/internal/measurements"
	"weighstation/internal/serialport"
	"weighstation/internal/snapshot"
)

// Source is an open scale connection.
type Source interface {
	ingest.Source
	Close() error
}

// SourceOpener opens the configured scale connection.
type SourceOpener func(cfg *config.Config) (Source, error)

// Option customizes a Daemon.
type Option func(*Daemon)

// WithSourceOpener replaces the serial port opener.
func WithSourceOpener(open SourceOpener) Option {
	return func(d *Daemon) {
		if open != nil {
			d.openSource = open
		}
	}
}

// WithCapturer replaces the snapshot capturer derived from config.
func WithCapturer(capturer snapshot.Capturer) Option {
	return func(d *Daemon) {
		if capturer != nil {
			d.capturer = capturer
		}
	}
}

// Daemon owns the ingestion session and the API for one scale.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      measurements.Store
	capturer   snapshot.Capturer
	openSource SourceOpener

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	session   *ingest.Session
	startedAt time.Time
	running   atomic.Bool

	apiAddr atomic.Value
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool         `json:"running"`
	Device        string       `json:"device"`
	LockFilePath  string       `json:"lock_file"`
	StorageDriver string       `json:"storage_driver"`
	CameraEnabled bool         `json:"camera_enabled"`
	Machine       string       `json:"machine,omitempty"`
	Offset        int          `json:"offset"`
	StartedAt     time.Time    `json:"started_at"`
	Ingest        ingest.Stats `json:"ingest"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store measurements.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and measurement store")
	}
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		capturer:   capturerFromConfig(cfg),
		openSource: openSerial,
		lockPath:   cfg.LockPath(),
	}
	d.lock = flock.New(d.lockPath)
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func capturerFromConfig(cfg *config.Config) snapshot.Capturer {
	if !cfg.CameraEnabled() {
		return snapshot.Disabled{}
	}
	return snapshot.NewFFmpeg(cfg.Camera.RTSPURL, cfg.Paths.SnapshotDir,
		snapshot.WithBinary(cfg.Camera.FFmpegBinary),
		snapshot.WithTimeout(time.Duration(cfg.Camera.TimeoutSeconds)*time.Second),
	)
}

func openSerial(cfg *config.Config) (Source, error) {
	port, err := serialport.Open(serialport.Config{
		Device:   cfg.Serial.Device,
		BaudRate: cfg.Serial.BaudRate,
		DataBits: cfg.Serial.DataBits,
		StopBits: cfg.Serial.StopBits,
		Parity:   cfg.Serial.Parity,
	})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Run acquires the device lock, opens the scale, and supervises ingestion and
// the API until ctx is cancelled or either task fails.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another weighstation daemon is already reading %s", d.cfg.Serial.Device)
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	source, err := d.openSource(d.cfg)
	if err != nil {
		return fmt.Errorf("open scale %s: %w", d.cfg.Serial.Device, err)
	}
	defer source.Close()

	machine := d.resolveMachine(ctx)
	session := ingest.NewSession(source, d.capturer, d.store, ingest.Options{
		Offset:   d.cfg.Scale.Offset,
		Sentinel: d.cfg.Scale.Sentinel,
		Machine:  machine,
		Logger:   d.logger,
	})
	d.mu.Lock()
	d.session = session
	d.startedAt = time.Now()
	d.mu.Unlock()

	api, err := newAPIServer(d.cfg, d.store, d.Status, d.logger)
	if err != nil {
		return err
	}
	if api != nil {
		if err := api.listen(); err != nil {
			return err
		}
		d.apiAddr.Store(api.addr())
	}

	monitor := newNetlinkMonitor(d.cfg, d.logger)
	if err := monitor.Start(ctx); err != nil {
		d.logger.Warn("tty monitor unavailable", logging.Error(err))
	}
	defer monitor.Stop()

	d.logger.Info("weighstation daemon started",
		logging.String(logging.FieldDevice, d.cfg.Serial.Device),
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)

	err = supervise(ctx,
		func(ctx context.Context) error {
			// Closing the source wakes a read blocked in poll.
			stop := context.AfterFunc(ctx, func() { _ = source.Close() })
			defer stop()
			return session.Run(ctx)
		},
		func(ctx context.Context) error {
			return api.serve(ctx)
		},
	)

	d.logger.Info("weighstation daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	return err
}

// resolveMachine maps the configured label onto a known machine name.
func (d *Daemon) resolveMachine(ctx context.Context) string {
	label := d.cfg.Scale.Machine
	if label == "" {
		return ""
	}
	name, ok, err := d.store.ResolveMachine(ctx, label)
	if err != nil {
		d.logger.Warn("machine lookup failed; using configured label", logging.Error(err))
		return label
	}
	if !ok {
		logging.WarnWithContext(d.logger, "machine not in machines table; using configured label", "machine_unknown",
			logging.String("machine", label),
			logging.String(logging.FieldErrorHint, "run weighstation machines to list known names"),
			logging.String(logging.FieldImpact, "rows tagged with an unlisted machine"),
		)
		return label
	}
	return name
}

// supervise runs tasks under one cancel scope. The first task to return
// cancels the rest; the first non-nil error is returned after all finish.
func supervise(ctx context.Context, tasks ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := task(ctx)
			if err != nil {
				errOnce.Do(func() { firstErr = err })
			}
			cancel()
		}()
	}
	wg.Wait()
	return firstErr
}

// Status reports runtime information.
func (d *Daemon) Status(context.Context) Status {
	d.mu.Lock()
	session := d.session
	startedAt := d.startedAt
	d.mu.Unlock()

	status := Status{
		Running:       d.running.Load(),
		Device:        d.cfg.Serial.Device,
		LockFilePath:  d.lockPath,
		StorageDriver: d.cfg.Storage.Driver,
		CameraEnabled: d.cfg.CameraEnabled(),
		Machine:       d.cfg.Scale.Machine,
		Offset:        d.cfg.Scale.Offset,
		StartedAt:     startedAt,
	}
	if session != nil {
		status.Ingest = session.Stats()
	} else {
		status.Ingest.LastWeight = d.cfg.Scale.Sentinel
	}
	return status
}

// APIAddr returns the bound API address once Run has started listening.
func (d *Daemon) APIAddr() string {
	if v, ok := d.apiAddr.Load().(string); ok {
		return v
	}
	return ""
}
