package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/datasourcer/datasourcer-go/internal/dstree"
	"github.com/datasourcer/datasourcer-go/internal/report"
)

// ErrUnsupportedRetrieval is returned for retrieval methods the engine has
// no handler for.
var ErrUnsupportedRetrieval = errors.New("fetch: unsupported retrieval method")

// Options control a download walk.
type Options struct {
	// Workers bounds tree-wide download parallelism.
	Workers int

	// FTPParallel bounds per-entry parallelism inside one remote
	// collection.
	FTPParallel int

	// ValidateExisting probes remote sizes for files already on disk and
	// skips the ones that match.
	ValidateExisting bool

	// ReloadUnconfirmable re-downloads existing files whose remote size
	// cannot be learned.
	ReloadUnconfirmable bool
}

// Engine walks a datasource tree and materializes its downloadable leaves
// on disk.
type Engine struct {
	http   *HTTPClient
	ftp    *FTPClient
	rep    *report.Reporter
	logger *slog.Logger
	opts   Options

	// now supplies snapshot timestamps. Tests pin it to a fixed instant.
	now func() time.Time
}

// NewEngine creates a download engine. A nil logger uses slog.Default().
func NewEngine(httpClient *HTTPClient, ftpClient *FTPClient, rep *report.Reporter, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Workers < 1 {
		opts.Workers = 1
	}

	if opts.FTPParallel < 1 {
		opts.FTPParallel = 1
	}

	return &Engine{
		http:   httpClient,
		ftp:    ftpClient,
		rep:    rep,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

// job is one downloadable leaf queued during the collection walk.
type job struct {
	node  dstree.Downloadable
	depth int
}

// DownloadTree walks the subtree rooted at n, echoes the hierarchy to the
// reporter, and downloads every downloadable leaf through a bounded worker
// pool. A failed leaf is recorded and does not stop the walk; only context
// cancellation aborts it.
func (e *Engine) DownloadTree(ctx context.Context, n dstree.Node) error {
	return e.dispatch(ctx, e.collect(n))
}

// SnapshotTree downloads only the dynamic resources in the subtree, each
// under a fresh timestamped name.
func (e *Engine) SnapshotTree(ctx context.Context, n dstree.Node) error {
	var jobs []job

	dstree.Apply(n, func(node dstree.Node, depth int) {
		if dyn, ok := node.(*dstree.DynamicResource); ok && dyn.CanDownload() {
			e.rep.Info(depth, "%s", dyn.Name())
			jobs = append(jobs, job{node: dyn, depth: depth})
		}
	})

	return e.dispatch(ctx, jobs)
}

// dispatch runs the download jobs through a bounded errgroup. A failed
// leaf is recorded, not fatal; context cancellation stops the remaining
// workers.
func (e *Engine) dispatch(ctx context.Context, jobs []job) error {
	if len(jobs) == 0 {
		return nil
	}

	e.logger.Info("starting downloads", "count", len(jobs), "workers", e.opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for _, j := range jobs {
		g.Go(func() error {
			if err := e.downloadOne(gctx, j.node, j.depth); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}

				e.rep.Error(j.depth+1, "%v", err)
				e.rep.Add(report.Record{Path: j.node.Path(), Outcome: report.OutcomeFailed, Err: err})
			}

			return nil
		})
	}

	return g.Wait()
}

// ValidateTree reports, without fetching anything, what a download walk
// would do for each downloadable leaf in the subtree.
func (e *Engine) ValidateTree(ctx context.Context, n dstree.Node) error {
	for _, j := range e.collect(n) {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.validateOne(ctx, j.node, j.depth)
	}

	return nil
}

// collect walks the subtree pre-order, echoing every node to the
// reporter, and returns the downloadable leaves with their depths.
// Dynamic resources are reported but never queued: they only produce
// timestamped snapshots, through SnapshotTree.
func (e *Engine) collect(n dstree.Node) []job {
	var jobs []job

	dstree.Apply(n, func(node dstree.Node, depth int) {
		d, ok := node.(dstree.Downloadable)
		if !ok {
			e.rep.Info(depth, "%s", node.Name())

			return
		}

		if _, dyn := node.(*dstree.DynamicResource); dyn {
			e.rep.Info(depth, "%s (snapshot only)", node.Name())

			return
		}

		if !d.CanDownload() {
			e.rep.Info(depth, "%s (not downloadable)", node.Name())

			return
		}

		e.rep.Info(depth, "%s", node.Name())
		jobs = append(jobs, job{node: d, depth: depth})
	})

	return jobs
}

// downloadOne dispatches one leaf by retrieval method.
func (e *Engine) downloadOne(ctx context.Context, d dstree.Downloadable, depth int) error {
	switch d.Retrieve() {
	case dstree.RetrieveGET:
		// GET fetches a single file, so only resource leaves qualify.
		switch d.(type) {
		case *dstree.StaticResource, *dstree.DynamicResource:
			return e.fetchResource(ctx, d, depth, e.http.ProbeSize, e.httpFetch)
		default:
			return fmt.Errorf("%w: GET on %s", ErrUnsupportedRetrieval, d.Name())
		}
	case dstree.RetrieveFTP:
		if rc, ok := d.(*dstree.RemoteCollection); ok {
			return e.fetchRemoteCollection(ctx, rc, depth)
		}

		return e.fetchResource(ctx, d, depth, e.ftp.ProbeSize, func(ctx context.Context, url, dest string, _ int) (int64, error) {
			return e.ftp.Fetch(ctx, url, dest)
		})
	case dstree.RetrieveManual:
		e.rep.Info(depth+1, "manual retrieval from %s", d.Source())
		e.rep.Add(report.Record{Path: d.Path(), Outcome: report.OutcomeManual})

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedRetrieval, d.Retrieve())
	}
}

// fetchFunc downloads url to dest, reporting progress at depth.
type fetchFunc func(ctx context.Context, url, dest string, depth int) (int64, error)

// probeFunc returns the remote size of url, dstree.SizeUnknown when it
// cannot be learned.
type probeFunc func(ctx context.Context, url string) (int64, error)

// fetchResource downloads one resource leaf, applying the validation
// policy for static resources. Dynamic resources always fetch a fresh
// snapshot and skip validation.
func (e *Engine) fetchResource(ctx context.Context, d dstree.Downloadable, depth int, probe probeFunc, fetch fetchFunc) error {
	dest, static := e.destPath(d)

	if static {
		skip, err := e.shouldSkip(ctx, d.Source(), dest, probe)
		if err != nil {
			return err
		}

		if skip {
			e.rep.Info(depth+1, "up to date, skipping")
			e.rep.Add(report.Record{Path: dest, Outcome: report.OutcomeSkipped})

			return nil
		}
	}

	n, err := fetch(ctx, d.Source(), dest, depth)
	if err != nil {
		return err
	}

	e.rep.Info(depth+1, "fetched %s (%s)", filepath.Base(dest), report.FormatBytes(n))
	e.rep.Add(report.Record{Path: dest, Outcome: report.OutcomeDownloaded, Bytes: n})

	return nil
}

// httpFetch adapts HTTPClient.Fetch to fetchFunc, wiring checkpoint
// progress lines into the reporter.
func (e *Engine) httpFetch(ctx context.Context, url, dest string, depth int) (int64, error) {
	return e.http.Fetch(ctx, url, dest, func(written, total int64) {
		if total == dstree.SizeUnknown {
			e.rep.Info(depth+1, "%s so far", report.FormatBytes(written))

			return
		}

		e.rep.Info(depth+1, "%d%% (%s of %s)",
			written*100/total, report.FormatBytes(written), report.FormatBytes(total))
	})
}

// destPath returns the on-disk target for a leaf and whether it is a
// static file subject to the validation policy.
func (e *Engine) destPath(d dstree.Downloadable) (string, bool) {
	if dyn, ok := d.(*dstree.DynamicResource); ok {
		return filepath.Join(dyn.Path(), dyn.SnapshotName(e.now())), false
	}

	return d.Path(), true
}

// shouldSkip applies the validation policy to one destination. With
// validation disabled the transfer always runs, overwriting whatever
// is on disk.
func (e *Engine) shouldSkip(ctx context.Context, source, dest string, probe probeFunc) (bool, error) {
	if !e.opts.ValidateExisting {
		return false, nil
	}

	if _, err := os.Stat(dest); err != nil {
		return false, nil
	}

	remoteSize, err := probe(ctx, source)
	if err != nil {
		return false, err
	}

	exists, valid := dstree.ValidateFile(dest, remoteSize)

	return !dstree.Decide(exists, valid, e.opts.ReloadUnconfirmable), nil
}

// fetchRemoteCollection materializes an opaque remote directory: list the
// entries, then fetch each one through a bounded per-collection pool. A
// failed entry is recorded and does not stop its siblings.
func (e *Engine) fetchRemoteCollection(ctx context.Context, rc *dstree.RemoteCollection, depth int) error {
	names, err := e.ftp.List(ctx, rc.Source())
	if err != nil {
		return err
	}

	e.rep.Info(depth+1, "%d remote entries", len(names))

	if err := os.MkdirAll(rc.Path(), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", rc.Path(), err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.FTPParallel)

	for _, name := range names {
		g.Go(func() error {
			if err := e.fetchRemoteEntry(gctx, rc, name, depth); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}

				e.rep.Error(depth+1, "%s: %v", name, err)
				e.rep.Add(report.Record{
					Path:    filepath.Join(rc.Path(), name),
					Outcome: report.OutcomeFailed,
					Err:     err,
				})
			}

			return nil
		})
	}

	return g.Wait()
}

func (e *Engine) fetchRemoteEntry(ctx context.Context, rc *dstree.RemoteCollection, name string, depth int) error {
	entryURL, err := JoinFTPURL(rc.Source(), name)
	if err != nil {
		return err
	}

	dest := filepath.Join(rc.Path(), name)

	skip, err := e.shouldSkip(ctx, entryURL, dest, e.ftp.ProbeSize)
	if err != nil {
		return err
	}

	if skip {
		e.rep.Info(depth+1, "%s up to date, skipping", name)
		e.rep.Add(report.Record{Path: dest, Outcome: report.OutcomeSkipped})

		return nil
	}

	n, err := e.ftp.Fetch(ctx, entryURL, dest)
	if err != nil {
		return err
	}

	e.rep.Info(depth+1, "fetched %s (%s)", name, report.FormatBytes(n))
	e.rep.Add(report.Record{Path: dest, Outcome: report.OutcomeDownloaded, Bytes: n})

	return nil
}

// validateOne reports the policy decision for one leaf without fetching.
func (e *Engine) validateOne(ctx context.Context, d dstree.Downloadable, depth int) {
	if d.Retrieve() == dstree.RetrieveManual {
		e.rep.Info(depth+1, "manual retrieval, not checked")

		return
	}

	if rc, ok := d.(*dstree.RemoteCollection); ok {
		e.validateRemoteCollection(ctx, rc, depth)

		return
	}

	probe := e.http.ProbeSize
	if d.Retrieve() == dstree.RetrieveFTP {
		probe = e.ftp.ProbeSize
	}

	e.reportDecision(ctx, d.Source(), d.Path(), depth, probe)
}

func (e *Engine) validateRemoteCollection(ctx context.Context, rc *dstree.RemoteCollection, depth int) {
	names, err := e.ftp.List(ctx, rc.Source())
	if err != nil {
		e.rep.Error(depth+1, "listing failed: %v", err)

		return
	}

	for _, name := range names {
		entryURL, err := JoinFTPURL(rc.Source(), name)
		if err != nil {
			e.rep.Error(depth+1, "%s: %v", name, err)

			continue
		}

		e.reportDecision(ctx, entryURL, filepath.Join(rc.Path(), name), depth, e.ftp.ProbeSize)
	}
}

func (e *Engine) reportDecision(ctx context.Context, source, dest string, depth int, probe probeFunc) {
	remoteSize := dstree.SizeUnknown

	if e.opts.ValidateExisting {
		if size, err := probe(ctx, source); err == nil {
			remoteSize = size
		}
	}

	exists, valid := dstree.ValidateFile(dest, remoteSize)

	if dstree.Decide(exists, valid, e.opts.ReloadUnconfirmable) {
		e.rep.Info(depth+1, "%s: would download (%s)", filepath.Base(dest), valid)
	} else {
		e.rep.Info(depth+1, "%s: up to date (%s)", filepath.Base(dest), valid)
	}
}
