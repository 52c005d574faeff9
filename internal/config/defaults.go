package config

// Default values for configuration options: layer 0 of the override chain,
// chosen so the tool works with nothing but a data directory.
const (
	defaultSpecDir            = "."
	defaultLogLevel           = "info"
	defaultParallelDownloads  = 4
	defaultFTPParallel        = 2
	defaultChunkSize          = "1MiB"
	defaultCheckpointFraction = 0.1
	defaultRequestTimeout     = "60s"
)

// DefaultConfig returns a Config populated with all default values. It is
// both the starting point for TOML decoding (unset fields keep defaults)
// and the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		SpecDir: defaultSpecDir,
		Logging: LoggingConfig{
			LogLevel: defaultLogLevel,
		},
		Transfers: TransfersConfig{
			ParallelDownloads:  defaultParallelDownloads,
			FTPParallel:        defaultFTPParallel,
			ChunkSize:          defaultChunkSize,
			CheckpointFraction: defaultCheckpointFraction,
			RequestTimeout:     defaultRequestTimeout,
		},
		Validation: ValidationConfig{
			ValidateExisting:    true,
			ReloadUnconfirmable: false,
		},
	}
}
