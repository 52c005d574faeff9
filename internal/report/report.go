// Package report renders per-node progress lines during tree walks and
// keeps an audit trail of download outcomes. Lines are indented by tree
// depth so the console output mirrors the datasource hierarchy.
package report

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
)

// indentWidth is the number of spaces per tree depth level.
const indentWidth = 2

// Outcome classifies what happened to one node during a walk.
type Outcome string

const (
	// OutcomeDownloaded means the node's file was fetched.
	OutcomeDownloaded Outcome = "downloaded"
	// OutcomeSkipped means an existing file validated and was left alone.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means retrieval was attempted and errored.
	OutcomeFailed Outcome = "failed"
	// OutcomeManual means the node requires a manual fetch.
	OutcomeManual Outcome = "manual"
)

// Record is one audited node outcome.
type Record struct {
	Path    string
	Outcome Outcome
	Bytes   int64
	Err     error
}

// Summary aggregates the records of one walk.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
	Manual     int
	TotalBytes int64
}

// Reporter writes depth-indented progress lines and collects outcome
// records. Safe for concurrent use; parallel downloads report through a
// single Reporter.
type Reporter struct {
	w      io.Writer
	logger *slog.Logger

	mu      sync.Mutex
	records []Record
}

// New creates a Reporter writing progress lines to w. A nil logger
// defaults to slog.Default().
func New(w io.Writer, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reporter{w: w, logger: logger}
}

// Info writes one indented progress line.
func (r *Reporter) Info(depth int, format string, args ...any) {
	r.line(depth, fmt.Sprintf(format, args...))
}

// Error writes one indented error line, prefixed so failures stand out in
// the middle of a long walk.
func (r *Reporter) Error(depth int, format string, args ...any) {
	r.line(depth, "ERROR: "+fmt.Sprintf(format, args...))
}

func (r *Reporter) line(depth int, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.w, "%s%s\n", strings.Repeat(" ", depth*indentWidth), msg)
}

// Add records one node outcome for the end-of-walk summary.
func (r *Reporter) Add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, rec)

	r.logger.Debug("node outcome",
		"path", rec.Path, "outcome", string(rec.Outcome), "bytes", rec.Bytes, "error", rec.Err)
}

// Records returns a copy of all recorded outcomes in arrival order.
func (r *Reporter) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, len(r.records))
	copy(out, r.records)

	return out
}

// Summarize aggregates the recorded outcomes.
func (r *Reporter) Summarize() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Summary

	for _, rec := range r.records {
		switch rec.Outcome {
		case OutcomeDownloaded:
			s.Downloaded++
			s.TotalBytes += rec.Bytes
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeFailed:
			s.Failed++
		case OutcomeManual:
			s.Manual++
		}
	}

	return s
}

// PrintSummary writes a one-line walk summary.
func (r *Reporter) PrintSummary() {
	s := r.Summarize()

	r.Info(0, "done: %d downloaded (%s), %d skipped, %d manual, %d failed",
		s.Downloaded, FormatBytes(s.TotalBytes), s.Skipped, s.Manual, s.Failed)
}

// FormatBytes renders a byte count in binary units ("1.5 MiB").
func FormatBytes(n int64) string {
	if n < 0 {
		return "unknown size"
	}

	return humanize.IBytes(uint64(n))
}
