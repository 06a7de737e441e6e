package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"gitdash/internal/config"
	"gitdash/internal/domain"
	dasherrors "gitdash/internal/errors"
	"gitdash/internal/log"
)

// debugLogFile receives the log when --debug is set and no log.file is configured
const debugLogFile = "gitdash-debug.log"

// app holds the state shared by all commands of one invocation
type app struct {
	configPath string
	debug      bool
	workers    int
	progress   bool

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func()
}

// Execute runs the command line with a context cancelled on SIGINT or SIGTERM
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "gitdash [path]",
		Short: "Show the status of every git repository below a directory",
		Long: `gitdash finds every git repository below a directory and prints its
branch, dirty state, ahead/behind counts, changes, remote and last fetch.

The directory defaults to base_dir from the config file, or the current
directory when that is unset.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer func() { a.finish(err) }()
			if err = a.prepare(cmd); err != nil {
				return err
			}

			root := a.cfg.BaseDir
			if len(args) == 1 {
				root = args[0]
			}
			if root == "" {
				root = "."
			}
			return a.runScan(cmd.Context(), root, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default is the user config dir)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "write a debug log to "+debugLogFile)
	cmd.PersistentFlags().IntVarP(&a.workers, "workers", "w", 0, "parallel status checks (default from config)")
	cmd.Flags().BoolVarP(&a.progress, "progress", "p", false, "report scan progress on stderr")

	cmd.AddCommand(newActionCmd(a, domain.ActionPull))
	cmd.AddCommand(newActionCmd(a, domain.ActionPush))
	cmd.AddCommand(newConfigCmd(a))

	return cmd
}

// prepare loads the configuration, applies flag overrides and opens the log
func (a *app) prepare(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		if a.workers < 0 {
			return errors.Newf("--workers must not be negative, got %d", a.workers)
		}
		cfg.Scan.Workers = a.workers
	}
	a.cfg = cfg

	return a.openLog()
}

func (a *app) openLog() error {
	a.logger = log.Nop()
	a.closeLog = func() {}

	path, level := a.cfg.Log.File, a.cfg.Log.Level
	if a.debug {
		level = "debug"
		if path == "" {
			path = debugLogFile
		}
	}
	if path == "" {
		return nil
	}

	f, err := log.OpenFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	a.logger = log.New(f, a.cfg.Log.Format, level).With("pid", os.Getpid())
	a.closeLog = func() { _ = f.Close() }
	return nil
}

// finish records a failed command with its full error chain, which the
// terminal only shows as a short message, then closes the log
func (a *app) finish(err error) {
	if err != nil {
		log.OrNop(a.logger).Error("command failed",
			"error", fmt.Sprintf("%+v", err),
			"kind", dasherrors.KindOf(err).String(),
		)
	}
	if a.closeLog != nil {
		a.closeLog()
	}
}

func (a *app) runScan(ctx context.Context, root string, out, errOut io.Writer) error {
	s := newSession(ctx, a.cfg, a.logger)
	defer s.close()

	if a.progress {
		unsubscribe := s.onProgress(func(ratio float64) {
			fmt.Fprintf(errOut, "\rscanning %3.0f%%", ratio*100)
		})
		defer unsubscribe()
	}

	if _, err := s.await(ctx, domain.ScanCommand{Root: root}, domain.EventScanComplete); err != nil {
		return errors.Wrap(err, "scan failed")
	}
	if a.progress {
		fmt.Fprintln(errOut)
	}
	a.logger.Info("scan finished", "root", root, "repos", s.store.Len())

	return renderTable(out, s.store.All())
}
