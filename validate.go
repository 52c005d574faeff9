package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/datasourcer/datasourcer-go/internal/report"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [qualifier...]",
		Short: "Report what a download would do, without fetching",
		Long: `Check each declared file against what is on disk and report
whether a download walk would fetch it. Remote sizes are probed but no
file content is transferred.`,
		RunE: runValidate,
	}

	cmd.Flags().BoolVar(&flagReloadUnconfirmable, "reload-unconfirmable", false, "treat files with unknown remote sizes as stale")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	roots, err := loadRoots(logger)
	if err != nil {
		return err
	}

	targets, resolveErr := resolveTargets(roots, args, logger)

	rep := report.New(os.Stdout, logger)

	opts := engineOptions(cmd)
	opts.ValidateExisting = true

	eng := buildEngine(logger, rep, opts)

	for _, target := range targets {
		if err := eng.ValidateTree(cmd.Context(), target); err != nil {
			return err
		}
	}

	return resolveErr
}
