// Package config implements TOML configuration loading, validation, and
// override resolution for datasourcer-go. Settings resolve through a
// three-layer chain (defaults -> config file -> environment -> CLI flags,
// last writer wins) so one-off overrides never require editing the file.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	// DataDir is the root filesystem path the datasource tree is
	// materialized under.
	DataDir string `toml:"data_dir"`

	// SpecDir is the directory of datasource spec documents to parse.
	SpecDir string `toml:"spec_dir"`

	Logging    LoggingConfig    `toml:"logging"`
	Transfers  TransfersConfig  `toml:"transfers"`
	Validation ValidationConfig `toml:"validation"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel string `toml:"log_level"`
}

// TransfersConfig controls download parallelism, streaming chunk size, and
// progress checkpoint granularity.
type TransfersConfig struct {
	// ParallelDownloads bounds the worker pool fanning out over tree
	// leaves.
	ParallelDownloads int `toml:"parallel_downloads"`

	// FTPParallel bounds per-entry parallelism inside one remote
	// collection's bulk fetch, to avoid hammering a single FTP server.
	FTPParallel int `toml:"ftp_parallel"`

	// ChunkSize is the streaming read size, human-readable ("1MiB").
	ChunkSize string `toml:"chunk_size"`

	// CheckpointFraction is the fraction of total expected size between
	// progress checkpoints (0.1 = every 10%).
	CheckpointFraction float64 `toml:"checkpoint_fraction"`

	// RequestTimeout caps each probe or fetch ("60s"-style duration).
	RequestTimeout string `toml:"request_timeout"`
}

// ValidationConfig controls whether and how already-present files are
// re-validated before downloading.
type ValidationConfig struct {
	// ValidateExisting probes remote sizes and skips files that already
	// match.
	ValidateExisting bool `toml:"validate_existing"`

	// ReloadUnconfirmable re-downloads files whose remote size cannot be
	// learned. Off by default: an unconfirmable file is assumed good.
	ReloadUnconfirmable bool `toml:"reload_unconfirmable"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings.
type CLIOverrides struct {
	ConfigPath string // --config flag (empty = use default)
	DataDir    string // --data-dir flag
	SpecDir    string // --spec-dir flag
}
