package config

const (
	// StorageSQLite selects the embedded SQLite store.
	StorageSQLite = "sqlite"
	// StoragePostgres selects a shared Postgres store.
	StoragePostgres = "postgres"
)

const (
	defaultConfigPath           = "~/.config/weighstation/config.toml"
	defaultDataDir              = "~/.local/share/weighstation"
	defaultLogDir               = "~/.local/share/weighstation/logs"
	defaultSnapshotDir          = "~/.local/share/weighstation/snapshots"
	defaultDatabaseFile         = "weights.db"
	defaultAPIBind              = "0.0.0.0:5000"
	defaultSerialDevice         = "/dev/ttyUSB0"
	defaultBaudRate             = 9600
	defaultDataBits             = 8
	defaultStopBits             = 1
	defaultParity               = "none"
	defaultOffset               = 40
	defaultSentinel             = -100
	defaultFFmpegBinary         = "ffmpeg"
	defaultCameraTimeoutSeconds = 10
	defaultPerPage              = 100
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			SnapshotDir: defaultSnapshotDir,
			APIBind:     defaultAPIBind,
		},
		Serial: Serial{
			Device:   defaultSerialDevice,
			BaudRate: defaultBaudRate,
			DataBits: defaultDataBits,
			StopBits: defaultStopBits,
			Parity:   defaultParity,
		},
		Scale: Scale{
			Offset:   defaultOffset,
			Sentinel: defaultSentinel,
		},
		Camera: Camera{
			FFmpegBinary:   defaultFFmpegBinary,
			TimeoutSeconds: defaultCameraTimeoutSeconds,
		},
		Storage: Storage{
			Driver: StorageSQLite,
		},
		Web: Web{
			PerPage:         defaultPerPage,
			DeleteSnapshots: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
