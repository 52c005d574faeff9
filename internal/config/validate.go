package config

import (
	"errors"
	"fmt"
	"time"
)

// Validation range constants.
const (
	minDownloadWorkers = 1
	maxDownloadWorkers = 64
	minFTPWorkers      = 1
	maxFTPWorkers      = 16
	minChunkBytes      = 64 * 1024        // 64 KiB
	maxChunkBytes      = 64 * 1024 * 1024 // 64 MiB
	minRequestTimeout  = 1 * time.Second
)

// Valid log levels.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateTransfers(&cfg.Transfers)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateTransfers(tc *TransfersConfig) []error {
	var errs []error

	if tc.ParallelDownloads < minDownloadWorkers || tc.ParallelDownloads > maxDownloadWorkers {
		errs = append(errs, fmt.Errorf("parallel_downloads: must be between %d and %d, got %d",
			minDownloadWorkers, maxDownloadWorkers, tc.ParallelDownloads))
	}

	if tc.FTPParallel < minFTPWorkers || tc.FTPParallel > maxFTPWorkers {
		errs = append(errs, fmt.Errorf("ftp_parallel: must be between %d and %d, got %d",
			minFTPWorkers, maxFTPWorkers, tc.FTPParallel))
	}

	if bytes, err := ParseSize(tc.ChunkSize); err != nil {
		errs = append(errs, fmt.Errorf("chunk_size: %w", err))
	} else if bytes < minChunkBytes || bytes > maxChunkBytes {
		errs = append(errs, fmt.Errorf("chunk_size: must be between 64 KiB and 64 MiB, got %q", tc.ChunkSize))
	}

	if tc.CheckpointFraction <= 0 || tc.CheckpointFraction > 1 {
		errs = append(errs, fmt.Errorf("checkpoint_fraction: must be in (0, 1], got %v", tc.CheckpointFraction))
	}

	if d, err := time.ParseDuration(tc.RequestTimeout); err != nil {
		errs = append(errs, fmt.Errorf("request_timeout: %w", err))
	} else if d < minRequestTimeout {
		errs = append(errs, fmt.Errorf("request_timeout: must be at least %v, got %q",
			minRequestTimeout, tc.RequestTimeout))
	}

	return errs
}

func validateLogging(lc *LoggingConfig) []error {
	if lc.LogLevel != "" && !validLogLevels[lc.LogLevel] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", lc.LogLevel)}
	}

	return nil
}
