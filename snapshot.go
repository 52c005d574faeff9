package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datasourcer/datasourcer-go/internal/fetch"
	"github.com/datasourcer/datasourcer-go/internal/report"
)

func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot [qualifier...]",
		Short: "Take fresh snapshots of dynamic datasources",
		Long: `Download every dynamic resource under the named datasources to a
new timestamped file. Static resources are left untouched.`,
		RunE: runSnapshot,
	}
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	roots, err := loadRoots(logger)
	if err != nil {
		return err
	}

	targets, resolveErr := resolveTargets(roots, args, logger)

	rep := report.New(os.Stdout, logger)
	eng := buildEngine(logger, rep, fetch.Options{
		Workers:     resolvedCfg.Transfers.ParallelDownloads,
		FTPParallel: resolvedCfg.Transfers.FTPParallel,
	})

	ctx := shutdownContext(cmd.Context(), logger)

	for _, target := range targets {
		if err := eng.SnapshotTree(ctx, target); err != nil {
			return err
		}
	}

	rep.PrintSummary()

	if s := rep.Summarize(); s.Failed > 0 {
		return fmt.Errorf("%d snapshots failed", s.Failed)
	}

	return resolveErr
}
