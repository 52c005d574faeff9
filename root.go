package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/datasourcer/datasourcer-go/internal/config"
	"github.com/datasourcer/datasourcer-go/internal/dstree"
	"github.com/datasourcer/datasourcer-go/internal/fetch"
	"github.com/datasourcer/datasourcer-go/internal/report"
	"github.com/datasourcer/datasourcer-go/internal/spec"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagDataDir    string
	flagSpecDir    string
	flagSpecFile   string
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
// It is available to all subcommands after the root pre-run phase completes.
var resolvedCfg *config.Resolved

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dscer",
		Short:   "Declarative datasource retrieval",
		Long:    "dscer materializes trees of declared datasources on disk:\nit parses spec documents, validates what is already present, and\ndownloads what is missing or stale.",
		Version: version,
		// Silence Cobra's default error/usage printing, we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "destination root for downloaded data")
	cmd.PersistentFlags().StringVar(&flagSpecDir, "spec-dir", "", "directory of datasource spec documents")
	cmd.PersistentFlags().StringVar(&flagSpecFile, "spec-file", "", "single spec document (overrides --spec-dir)")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newDownloadCmd())
	cmd.AddCommand(newSnapshotCmd())
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newTreeCmd())
	cmd.AddCommand(newValidateCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override chain
// and stores the result in resolvedCfg for use by subcommands.
func loadConfig() error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		DataDir:    flagDataDir,
		SpecDir:    flagSpecDir,
	}

	env := config.ReadEnvOverrides()

	resolved, err := config.Resolve(env, cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win. Terminal output gets
// the text handler; piped output gets JSON for machine consumption.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// loadRoots parses the configured spec documents into a forest of root
// sources.
func loadRoots(logger *slog.Logger) ([]*dstree.Source, error) {
	parser := spec.NewParser(logger)
	treeCtx := &dstree.Context{RootPath: resolvedCfg.DataDir}

	if flagSpecFile != "" {
		return parser.ParseFile(flagSpecFile, treeCtx)
	}

	roots, err := parser.ParseDir(resolvedCfg.SpecDir, treeCtx)
	if err != nil {
		return nil, err
	}

	if len(roots) == 0 {
		return nil, fmt.Errorf("no datasources declared under %s", resolvedCfg.SpecDir)
	}

	return roots, nil
}

// resolveTargets maps qualifier arguments to tree nodes. With no
// arguments every root is a target. A qualifier that does not resolve
// is logged and skipped so the remaining qualifiers still run; the
// returned error summarizes the failures for the final exit status.
func resolveTargets(roots []*dstree.Source, args []string, logger *slog.Logger) ([]dstree.Node, error) {
	if len(args) == 0 {
		targets := make([]dstree.Node, len(roots))
		for i, r := range roots {
			targets[i] = r
		}

		return targets, nil
	}

	targets := make([]dstree.Node, 0, len(args))
	failed := 0

	for _, qualifier := range args {
		node, err := dstree.Resolve(roots, qualifier, dstree.ResolveOptions{})
		if err != nil {
			logger.Error("skipping unresolvable qualifier", "qualifier", qualifier, "error", err)
			failed++

			continue
		}

		targets = append(targets, node)
	}

	if failed > 0 {
		return targets, fmt.Errorf("%d of %d qualifiers did not resolve", failed, len(args))
	}

	return targets, nil
}

// buildEngine assembles the download engine from the resolved config.
func buildEngine(logger *slog.Logger, rep *report.Reporter, opts fetch.Options) *fetch.Engine {
	httpClient := fetch.NewHTTPClient(
		&http.Client{Timeout: resolvedCfg.RequestTimeout},
		logger,
		resolvedCfg.ChunkBytes,
		resolvedCfg.Transfers.CheckpointFraction,
	)

	ftpClient := fetch.NewFTPClient(logger, resolvedCfg.RequestTimeout)

	return fetch.NewEngine(httpClient, ftpClient, rep, logger, opts)
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
