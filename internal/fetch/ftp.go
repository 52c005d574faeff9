package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/datasourcer/datasourcer-go/internal/dstree"
)

// ftpDefaultPort is appended to hosts that do not specify one.
const ftpDefaultPort = "21"

// Anonymous login credentials, the convention for public data servers.
const (
	ftpUser = "anonymous"
	ftpPass = "anonymous"
)

// ftpSession is the narrow slice of an FTP connection the fetcher needs.
// Defined here per "accept interfaces, return structs"; tests substitute a
// fake, production uses a jlaffaye/ftp connection.
type ftpSession interface {
	List(dir string) ([]string, error)
	Size(remotePath string) (int64, error)
	Retrieve(remotePath string, w io.Writer) (int64, error)
	Close() error
}

// ftpDialFunc opens an authenticated session to host ("host:port").
type ftpDialFunc func(ctx context.Context, host string) (ftpSession, error)

// FTPClient fetches files and directory listings from anonymous FTP
// servers. Each operation opens its own session, so concurrent calls
// never share a control connection.
type FTPClient struct {
	logger  *slog.Logger
	timeout time.Duration

	// dial opens a session. Tests override this with a fake.
	dial ftpDialFunc
}

// NewFTPClient creates an FTP fetcher. A nil logger uses slog.Default().
func NewFTPClient(logger *slog.Logger, timeout time.Duration) *FTPClient {
	if logger == nil {
		logger = slog.Default()
	}

	return &FTPClient{
		logger:  logger,
		timeout: timeout,
		dial:    dialAnonymous,
	}
}

// List returns the entry names in the directory named by rawURL
// (ftp://host/path), base names only.
func (c *FTPClient) List(ctx context.Context, rawURL string) ([]string, error) {
	host, dir, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	sess, err := c.dial(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", host, err)
	}
	defer sess.Close()

	entries, err := sess.List(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", rawURL, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		// Some servers return full paths from NLST.
		names = append(names, path.Base(e))
	}

	c.logger.Debug("ftp listing", "url", rawURL, "entries", len(names))

	return names, nil
}

// ProbeSize returns the remote size of the file named by rawURL. Servers
// without SIZE support yield dstree.SizeUnknown rather than an error.
func (c *FTPClient) ProbeSize(ctx context.Context, rawURL string) (int64, error) {
	host, remotePath, err := parseFTPURL(rawURL)
	if err != nil {
		return dstree.SizeUnknown, err
	}

	sess, err := c.dial(ctx, host)
	if err != nil {
		return dstree.SizeUnknown, fmt.Errorf("connecting to %s: %w", host, err)
	}
	defer sess.Close()

	size, err := sess.Size(remotePath)
	if err != nil {
		c.logger.Debug("ftp size probe failed", "url", rawURL, "error", err)

		return dstree.SizeUnknown, nil
	}

	return size, nil
}

// Fetch downloads the file named by rawURL to dest. The file lands under
// a .part name until the transfer completes. Returns bytes written.
func (c *FTPClient) Fetch(ctx context.Context, rawURL, dest string) (int64, error) {
	host, remotePath, err := parseFTPURL(rawURL)
	if err != nil {
		return 0, err
	}

	sess, err := c.dial(ctx, host)
	if err != nil {
		return 0, fmt.Errorf("connecting to %s: %w", host, err)
	}
	defer sess.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("creating destination directory: %w", err)
	}

	partPath := dest + partSuffix

	f, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", partPath, err)
	}

	written, retrErr := sess.Retrieve(remotePath, f)

	if closeErr := f.Close(); retrErr == nil {
		retrErr = closeErr
	}

	if retrErr != nil {
		os.Remove(partPath)

		return 0, fmt.Errorf("retrieving %s: %w", rawURL, retrErr)
	}

	if err := os.Rename(partPath, dest); err != nil {
		os.Remove(partPath)

		return 0, fmt.Errorf("finalizing %s: %w", dest, err)
	}

	c.logger.Debug("ftp fetch complete", "url", rawURL, "dest", dest, "bytes", written)

	return written, nil
}

// JoinFTPURL appends an entry name to a directory URL.
func JoinFTPURL(baseURL, name string) (string, error) {
	joined, err := url.JoinPath(baseURL, name)
	if err != nil {
		return "", fmt.Errorf("joining %q and %q: %w", baseURL, name, err)
	}

	return joined, nil
}

// parseFTPURL splits an ftp:// URL into a dialable host:port and a
// remote path.
func parseFTPURL(rawURL string) (host, remotePath string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parsing %q: %w", rawURL, err)
	}

	if u.Scheme != "ftp" {
		return "", "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, rawURL)
	}

	if u.Host == "" {
		return "", "", fmt.Errorf("missing host in %q", rawURL)
	}

	host = u.Host
	if u.Port() == "" {
		host = host + ":" + ftpDefaultPort
	}

	return host, u.Path, nil
}

// dialAnonymous opens a jlaffaye/ftp session with anonymous login. It is
// the default dial function for FTPClient.
func dialAnonymous(ctx context.Context, host string) (ftpSession, error) {
	conn, err := ftp.Dial(host, ftp.DialWithContext(ctx))
	if err != nil {
		return nil, err
	}

	if err := conn.Login(ftpUser, ftpPass); err != nil {
		conn.Quit()

		return nil, fmt.Errorf("anonymous login: %w", err)
	}

	return &serverSession{conn: conn}, nil
}

// serverSession adapts *ftp.ServerConn to ftpSession.
type serverSession struct {
	conn *ftp.ServerConn
}

func (s *serverSession) List(dir string) ([]string, error) {
	return s.conn.NameList(dir)
}

func (s *serverSession) Size(remotePath string) (int64, error) {
	return s.conn.FileSize(remotePath)
}

func (s *serverSession) Retrieve(remotePath string, w io.Writer) (int64, error) {
	resp, err := s.conn.Retr(remotePath)
	if err != nil {
		return 0, err
	}
	defer resp.Close()

	return io.Copy(w, resp)
}

func (s *serverSession) Close() error {
	return s.conn.Quit()
}
