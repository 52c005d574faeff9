package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/datasourcer/datasourcer-go/internal/fetch"
	"github.com/datasourcer/datasourcer-go/internal/report"
)

func newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process [qualifier...]",
		Short: "Run post-processors on downloaded files",
		Long: `Run the declared post-processing step for each resource that has
one. Currently this means extracting ZIP archives into their declared
directories. Archives not yet downloaded are skipped.`,
		RunE: runProcess,
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	roots, err := loadRoots(logger)
	if err != nil {
		return err
	}

	targets, resolveErr := resolveTargets(roots, args, logger)

	rep := report.New(os.Stdout, logger)
	eng := buildEngine(logger, rep, fetch.Options{})

	for _, target := range targets {
		if err := eng.ProcessTree(cmd.Context(), target); err != nil {
			return err
		}
	}

	return resolveErr
}
