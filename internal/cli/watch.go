package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NaN-tic/csvimport/internal/core"
	"github.com/NaN-tic/csvimport/internal/notify"
	"github.com/NaN-tic/csvimport/internal/profilefile"
	"github.com/NaN-tic/csvimport/internal/watch"
)

var (
	watchProfilePath string
	watchDir         string
	watchPattern     string
	watchSettle      time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Import CSV files dropped into a directory",
	Long: `Watch imports every matching file that appears in a directory, using one
profile definition file for all of them. Imported files move to the
processed/ subdirectory, failed ones to failed/. Runs until interrupted.

Examples:
  csvimport watch --profile party.yaml --dir inbox
  csvimport watch --profile party.yaml --dir /srv/drop --pattern "party-*.csv"`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchProfilePath, "profile", "", "profile definition file (required)")
	watchCmd.MarkFlagRequired("profile")
	watchCmd.Flags().StringVar(&watchDir, "dir", "inbox", "directory to watch")
	watchCmd.Flags().StringVar(&watchPattern, "pattern", "*.csv", "file name pattern, doublestar syntax")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 2*time.Second, "how long a file must stay unchanged before import")
	watchCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "maximum duration per file")
	watchCmd.Flags().StringVar(&notifyURL, "notify-url", "", "mail gateway endpoint for run reports")
	watchCmd.Flags().StringVar(&notifyTo, "notify-to", "", "report recipient")
	watchCmd.Flags().StringVar(&notifyFrom, "notify-from", "csvimport@localhost", "report sender")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profile, err := loadProfile(watchProfilePath)
	if err != nil {
		return err
	}

	schema, err := profilefile.LoadSchema(schemaPath)
	if err != nil {
		return fmt.Errorf("load schema %s: %w", schemaPath, err)
	}

	recordStore, closeStore, err := buildStore(ctx, schema)
	if err != nil {
		return err
	}
	defer closeStore()

	runner := core.NewRunner(recordStore, slog.Default(), &notify.RunReporter{
		Notifier: cliNotifier(),
		To:       notifyTo,
	})

	handle := func(ctx context.Context, path string) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()

		run, err := runner.Run(runCtx, profile, filepath.Base(path), f)
		if run != nil {
			fmt.Println(run.Report())
		}
		return err
	}

	watcher, err := watch.New(watchDir, watchPattern, watchSettle, handle, slog.Default())
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	fmt.Fprintf(os.Stderr, "watching %s for %s with profile %q\n", watchDir, watchPattern, profile.Name)

	if err := watcher.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
