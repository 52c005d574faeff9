package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasourcer/datasourcer-go/internal/dstree"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// testHTTPClient returns a client with no real sleeping between retries.
func testHTTPClient(t *testing.T) *HTTPClient {
	t.Helper()

	c := NewHTTPClient(nil, discardLogger(), 64, 0.1)
	c.sleepFunc = func(ctx context.Context, d time.Duration) error { return nil }

	return c
}

func TestProbeSize_ContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "identity", r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Length", "1000")
	}))
	defer srv.Close()

	size, err := testHTTPClient(t).ProbeSize(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), size)
}

func TestProbeSize_CompressedIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Length", "512")
	}))
	defer srv.Close()

	size, err := testHTTPClient(t).ProbeSize(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, dstree.SizeUnknown, size)
}

func TestProbeSize_ErrorStatusIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	size, err := testHTTPClient(t).ProbeSize(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, dstree.SizeUnknown, size)
}

func TestFetch_WritesFile(t *testing.T) {
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "dir", "file.bin")

	n, err := testHTTPClient(t).Fetch(context.Background(), srv.URL, dest, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = os.Stat(dest + partSuffix)
	assert.True(t, os.IsNotExist(err), "part file should be renamed away")
}

func TestFetch_ProgressCheckpoints(t *testing.T) {
	payload := make([]byte, 1000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		w.Write(payload)
	}))
	defer srv.Close()

	var calls []int64

	dest := filepath.Join(t.TempDir(), "file.bin")
	_, err := testHTTPClient(t).Fetch(context.Background(), srv.URL, dest, func(written, total int64) {
		assert.Equal(t, int64(1000), total)
		calls = append(calls, written)
	})
	require.NoError(t, err)

	// Chunk size 64, checkpoint every 100 bytes: a checkpoint fires on
	// the first chunk boundary at or past each 100-byte mark.
	require.NotEmpty(t, calls)

	for i := 1; i < len(calls); i++ {
		assert.Greater(t, calls[i], calls[i-1])
	}

	assert.Less(t, calls[len(calls)-1], int64(1000))
}

func TestFetch_RetriesOn500(t *testing.T) {
	var attempts int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "file.bin")

	n, err := testHTTPClient(t).Fetch(context.Background(), srv.URL, dest, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 3, attempts)
}

func TestFetch_404IsNotRetried(t *testing.T) {
	var attempts int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "file.bin")

	_, err := testHTTPClient(t).Fetch(context.Background(), srv.URL, dest, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Equal(t, 1, attempts)
}

func TestFetch_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())

	c := NewHTTPClient(nil, discardLogger(), 64, 0.1)
	c.sleepFunc = func(ctx context.Context, d time.Duration) error {
		cancel()

		return ctx.Err()
	}

	_, err := c.Fetch(ctx, srv.URL, filepath.Join(t.TempDir(), "f"), nil)
	require.Error(t, err)
}

func TestNextCheckpoint(t *testing.T) {
	c := NewHTTPClient(nil, discardLogger(), 64, 0.1)

	assert.Equal(t, int64(100), c.nextCheckpoint(0, 1000))
	assert.Equal(t, int64(200), c.nextCheckpoint(100, 1000))
	assert.Equal(t, int64(300), c.nextCheckpoint(250, 1000))

	// No announced total: fixed byte interval.
	assert.Equal(t, unknownCheckpointBytes, c.nextCheckpoint(0, -1))
}

func TestCalcBackoff_GrowsAndCaps(t *testing.T) {
	c := NewHTTPClient(nil, discardLogger(), 64, 0.1)

	first := c.calcBackoff(0)
	assert.InDelta(t, float64(baseBackoff), float64(first), float64(baseBackoff)*jitterFraction)

	capped := c.calcBackoff(20)
	assert.LessOrEqual(t, float64(capped), float64(maxBackoff)*(1+jitterFraction))
}

func TestNewHTTPClient_ClampsChunkSize(t *testing.T) {
	c := NewHTTPClient(nil, discardLogger(), 0, 0.1)
	assert.Equal(t, defaultChunkBytes, c.chunkSize)

	// A zero chunk must not stall the copy loop.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out")

	n, err := c.Fetch(context.Background(), srv.URL, dest, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
