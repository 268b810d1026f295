// Command redcap-downloader fetches the report and variable dictionary of
// every configured REDCap project, merges them and writes cleaned artifacts.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"redcapdl/internal/config"
	"redcapdl/internal/logging"
)

var (
	// version is set at build time with -ldflags "-X main.version=...".
	version  = "dev"
	exitFunc = os.Exit
)

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

// app carries state shared by the subcommands of one invocation.
type app struct {
	configPath string
	verbose    bool
	stdout     io.Writer
	stderr     io.Writer

	cfg      *config.Config
	logger   *zap.Logger
	closeLog func() error
}

func cli(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if a.closeLog != nil {
		_ = a.closeLog()
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "redcap-downloader: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "redcap-downloader",
		Short:         "Download, merge and clean REDCap project exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
		// cobra skips post-run hooks on error; cli closes the log file either way.
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.download(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the YAML configuration")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(a.checkCmd(), a.versionCmd())
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(logging.Options{
		Dir:     cfg.DownloadFolder,
		Debug:   cfg.Debug() || a.verbose,
		Console: a.stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg, a.logger, a.closeLog = cfg, logger, closeLog
	a.logger.Named("main").Info("running redcap-downloader", zap.String("version", version))
	return nil
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "redcap-downloader", version)
			return err
		},
	}
}
