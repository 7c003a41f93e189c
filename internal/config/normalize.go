package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSerial()
	c.normalizeCamera()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	if c.Web.PerPage <= 0 {
		c.Web.PerPage = defaultPerPage
	}
	c.Scale.Machine = strings.TrimSpace(c.Scale.Machine)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SnapshotDir) == "" {
		c.Paths.SnapshotDir = filepath.Join(c.Paths.DataDir, "snapshots")
	}
	if c.Paths.SnapshotDir, err = expandPath(c.Paths.SnapshotDir); err != nil {
		return fmt.Errorf("paths.snapshot_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("WEIGHSTATION_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeSerial() {
	c.Serial.Device = strings.TrimSpace(c.Serial.Device)
	c.Serial.Parity = strings.ToLower(strings.TrimSpace(c.Serial.Parity))
	if c.Serial.Parity == "" || c.Serial.Parity == "n" {
		c.Serial.Parity = defaultParity
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = defaultBaudRate
	}
	if c.Serial.DataBits == 0 {
		c.Serial.DataBits = defaultDataBits
	}
	if c.Serial.StopBits == 0 {
		c.Serial.StopBits = defaultStopBits
	}
}

func (c *Config) normalizeCamera() {
	c.Camera.RTSPURL = strings.TrimSpace(c.Camera.RTSPURL)
	if c.Camera.RTSPURL == "" {
		if value, ok := os.LookupEnv("WEIGHSTATION_RTSP_URL"); ok {
			c.Camera.RTSPURL = strings.TrimSpace(value)
		}
	}
	c.Camera.FFmpegBinary = strings.TrimSpace(c.Camera.FFmpegBinary)
	if c.Camera.FFmpegBinary == "" {
		c.Camera.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Camera.TimeoutSeconds <= 0 {
		c.Camera.TimeoutSeconds = defaultCameraTimeoutSeconds
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "", "sqlite3":
		c.Storage.Driver = StorageSQLite
	case "postgresql", "pg":
		c.Storage.Driver = StoragePostgres
	}
	c.Storage.DSN = strings.TrimSpace(c.Storage.DSN)
	if c.Storage.DSN == "" {
		if value, ok := os.LookupEnv("WEIGHSTATION_POSTGRES_DSN"); ok {
			c.Storage.DSN = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = filepath.Join(c.Paths.DataDir, defaultDatabaseFile)
	}
	var err error
	if c.Storage.Path, err = expandPath(c.Storage.Path); err != nil {
		return fmt.Errorf("storage.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
