// Package fetch retrieves datasource files over HTTP and FTP and drives
// tree-wide download walks through a bounded worker pool.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/datasourcer/datasourcer-go/internal/dstree"
)

// Retry and backoff constants.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	userAgent      = "dscer/0.1"
)

// partSuffix marks an in-progress download. The file is renamed into place
// only after the full body has been streamed, so a crash never leaves a
// truncated file under the final name.
const partSuffix = ".part"

// unknownCheckpointBytes is the progress interval when the server did not
// announce a total length and fractional checkpoints cannot be placed.
const unknownCheckpointBytes int64 = 32 << 20

// defaultChunkBytes is used when the caller passes a non-positive chunk
// size. A zero chunk would make the copy loop spin without progress.
const defaultChunkBytes int64 = 1 << 20

// ProgressFunc receives checkpoint notifications during a streamed fetch.
// total is dstree.SizeUnknown when the server did not announce a length.
type ProgressFunc func(written, total int64)

// HTTPClient fetches files over HTTP with retry, exponential backoff, and
// chunked streaming with progress checkpoints.
type HTTPClient struct {
	httpClient *http.Client
	logger     *slog.Logger

	chunkSize          int64
	checkpointFraction float64

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewHTTPClient creates an HTTP fetcher. A nil httpClient uses
// http.DefaultClient; a nil logger uses slog.Default().
func NewHTTPClient(httpClient *http.Client, logger *slog.Logger, chunkSize int64, checkpointFraction float64) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	if chunkSize <= 0 {
		chunkSize = defaultChunkBytes
	}

	return &HTTPClient{
		httpClient:         httpClient,
		logger:             logger,
		chunkSize:          chunkSize,
		checkpointFraction: checkpointFraction,
		sleepFunc:          timeSleep,
	}
}

// ProbeSize asks the server for the file's size with a HEAD request.
// Identity encoding is requested because a compressed Content-Length does
// not match the decoded size on disk. Returns dstree.SizeUnknown when the
// server answers but the on-disk size cannot be determined from the
// response; transport failures return an error.
func (c *HTTPClient) ProbeSize(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
	if err != nil {
		return dstree.SizeUnknown, fmt.Errorf("creating probe request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dstree.SizeUnknown, fmt.Errorf("probing %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("size probe not usable", "url", url, "status", resp.StatusCode)

		return dstree.SizeUnknown, nil
	}

	// A compressed response length is the wire size, not the file size.
	if resp.Header.Get("Content-Encoding") != "" {
		c.logger.Debug("size probe compressed", "url", url,
			"encoding", resp.Header.Get("Content-Encoding"))

		return dstree.SizeUnknown, nil
	}

	if resp.ContentLength < 0 {
		return dstree.SizeUnknown, nil
	}

	return resp.ContentLength, nil
}

// Fetch downloads url to dest, streaming the body in chunks and invoking
// progress at each checkpoint-fraction crossing. The request/response
// cycle is retried on network errors and retryable HTTP statuses; a failed
// stream is not resumed. Returns the number of bytes written.
func (c *HTTPClient) Fetch(ctx context.Context, url, dest string, progress ProgressFunc) (int64, error) {
	resp, err := c.getRetry(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("creating destination directory: %w", err)
	}

	n, err := c.stream(resp.Body, dest, resp.ContentLength, progress)
	if err != nil {
		return 0, err
	}

	c.logger.Debug("fetch complete", "url", url, "dest", dest, "bytes", n)

	return n, nil
}

// getRetry issues the GET request with retry. The caller owns the response
// body on success.
func (c *HTTPClient) getRetry(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := c.getOnce(ctx, url)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			if isNetworkError(err) && attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					"url", url, "attempt", attempt+1, "backoff", backoff, "error", err)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, sleepErr
				}

				lastErr = err

				continue
			}

			return nil, err
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		resp.Body.Close()

		if isRetryableStatus(resp.StatusCode) && attempt < maxRetries {
			backoff := c.calcBackoff(attempt)
			c.logger.Warn("retrying after HTTP error",
				"url", url, "status", resp.StatusCode, "attempt", attempt+1, "backoff", backoff)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, err
			}

			lastErr = fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)

			continue
		}

		return nil, fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)
	}

	return nil, fmt.Errorf("fetching %s: retries exhausted: %w", url, lastErr)
}

func (c *HTTPClient) getOnce(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	return c.httpClient.Do(req)
}

// stream copies body to dest in chunkSize reads, reporting progress at
// each checkpoint crossing. The file lands under a .part name until the
// copy completes.
func (c *HTTPClient) stream(body io.Reader, dest string, total int64, progress ProgressFunc) (int64, error) {
	partPath := dest + partSuffix

	f, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", partPath, err)
	}

	written, copyErr := c.copyChunks(f, body, total, progress)

	if closeErr := f.Close(); copyErr == nil {
		copyErr = closeErr
	}

	if copyErr != nil {
		os.Remove(partPath)

		return 0, fmt.Errorf("streaming to %s: %w", partPath, copyErr)
	}

	if err := os.Rename(partPath, dest); err != nil {
		os.Remove(partPath)

		return 0, fmt.Errorf("finalizing %s: %w", dest, err)
	}

	return written, nil
}

func (c *HTTPClient) copyChunks(w io.Writer, r io.Reader, total int64, progress ProgressFunc) (int64, error) {
	var written int64

	nextMark := c.nextCheckpoint(0, total)

	for {
		n, err := io.CopyN(w, r, c.chunkSize)
		written += n

		if progress != nil && written >= nextMark {
			if total > 0 {
				if written < total {
					progress(written, total)
				}

				nextMark = c.nextCheckpoint(written, total)
			} else {
				progress(written, dstree.SizeUnknown)
				nextMark = written + unknownCheckpointBytes
			}
		}

		if errors.Is(err, io.EOF) {
			return written, nil
		}

		if err != nil {
			return written, err
		}
	}
}

// nextCheckpoint returns the byte offset of the first checkpoint after
// written. Checkpoints sit at multiples of checkpointFraction*total; with
// no known total they fall back to a fixed byte interval.
func (c *HTTPClient) nextCheckpoint(written, total int64) int64 {
	if c.checkpointFraction <= 0 {
		return math.MaxInt64
	}

	if total <= 0 {
		return written + unknownCheckpointBytes
	}

	step := float64(total) * c.checkpointFraction
	if step < 1 {
		step = 1
	}

	marks := math.Floor(float64(written)/step) + 1

	return int64(marks * step)
}

// isRetryableStatus reports whether an HTTP status is worth retrying.
func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// isNetworkError reports whether an error is a transient network failure.
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *HTTPClient) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for HTTPClient.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
