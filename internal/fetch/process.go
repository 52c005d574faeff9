package fetch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/datasourcer/datasourcer-go/internal/dstree"
	"github.com/datasourcer/datasourcer-go/internal/report"
)

// ProcessTree walks the subtree and runs the post-processor for every
// processable leaf. Currently the only processor is ZIP extraction into
// the resource's declared directory. A leaf whose archive is not on disk
// yet is reported and skipped.
func (e *Engine) ProcessTree(ctx context.Context, n dstree.Node) error {
	var walkErr error

	dstree.Apply(n, func(node dstree.Node, depth int) {
		if walkErr != nil {
			return
		}

		if err := ctx.Err(); err != nil {
			walkErr = err

			return
		}

		res, ok := node.(*dstree.StaticResource)
		if !ok || !res.CanProcess() {
			return
		}

		e.rep.Info(depth, "%s", res.Name())

		if _, err := os.Stat(res.Path()); err != nil {
			e.rep.Info(depth+1, "archive not present, skipping")

			return
		}

		destDir := filepath.Join(filepath.Dir(res.Path()), res.UnzipDir())

		count, err := unzip(res.Path(), destDir)
		if err != nil {
			e.rep.Error(depth+1, "extracting: %v", err)
			e.rep.Add(report.Record{Path: res.Path(), Outcome: report.OutcomeFailed, Err: err})

			return
		}

		e.rep.Info(depth+1, "extracted %d files to %s", count, res.UnzipDir())
	})

	return walkErr
}

// unzip extracts archivePath into destDir, returning the number of files
// written. Entry names are confined to destDir.
func unzip(archivePath, destDir string) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", destDir, err)
	}

	count := 0

	for _, f := range r.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return count, err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return count, fmt.Errorf("creating %s: %w", target, err)
			}

			continue
		}

		if err := extractFile(f, target); err != nil {
			return count, err
		}

		count++
	}

	return count, nil
}

// safeJoin joins an archive entry name under destDir, rejecting names
// that would escape it.
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)

	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}

	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %q: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	_, copyErr := io.Copy(dst, src)

	if closeErr := dst.Close(); copyErr == nil {
		copyErr = closeErr
	}

	if copyErr != nil {
		return fmt.Errorf("extracting %q: %w", f.Name, copyErr)
	}

	return nil
}
