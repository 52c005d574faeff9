package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datasourcer/datasourcer-go/internal/fetch"
	"github.com/datasourcer/datasourcer-go/internal/report"
)

var (
	flagValidateExisting    bool
	flagReloadUnconfirmable bool
)

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [qualifier...]",
		Short: "Download declared datasources",
		Long: `Download the files of the named datasources. Qualifiers are
dot-delimited paths into the tree ("noaa.buoys.realtime"); with no
arguments every declared datasource is downloaded.`,
		RunE: runDownload,
	}

	cmd.Flags().BoolVar(&flagValidateExisting, "validate-existing", true, "skip files whose size matches the remote; disable to re-download everything")
	cmd.Flags().BoolVar(&flagReloadUnconfirmable, "reload-unconfirmable", false, "re-download files whose remote size is unknown")

	return cmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	roots, err := loadRoots(logger)
	if err != nil {
		return err
	}

	targets, resolveErr := resolveTargets(roots, args, logger)

	rep := report.New(os.Stdout, logger)
	eng := buildEngine(logger, rep, engineOptions(cmd))
	ctx := shutdownContext(cmd.Context(), logger)

	for _, target := range targets {
		if err := eng.DownloadTree(ctx, target); err != nil {
			return err
		}
	}

	rep.PrintSummary()

	if s := rep.Summarize(); s.Failed > 0 {
		return fmt.Errorf("%d downloads failed", s.Failed)
	}

	return resolveErr
}

// engineOptions derives walk options from the resolved config, with the
// download flags overriding when explicitly set.
func engineOptions(cmd *cobra.Command) fetch.Options {
	opts := fetch.Options{
		Workers:             resolvedCfg.Transfers.ParallelDownloads,
		FTPParallel:         resolvedCfg.Transfers.FTPParallel,
		ValidateExisting:    resolvedCfg.Validation.ValidateExisting,
		ReloadUnconfirmable: resolvedCfg.Validation.ReloadUnconfirmable,
	}

	if cmd.Flags().Changed("validate-existing") {
		opts.ValidateExisting = flagValidateExisting
	}

	if cmd.Flags().Changed("reload-unconfirmable") {
		opts.ReloadUnconfirmable = flagReloadUnconfirmable
	}

	return opts
}
