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
)

var (
	runProfilePath  string
	runFilePath     string
	runSkipRepeated bool
	runUpdate       bool
	runTimeout      time.Duration
	notifyURL       string
	notifyTo        string
	notifyFrom      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Import one CSV file under a profile",
	Long: `Run imports a CSV file using a profile definition file and prints the
run report. The exit status is non-zero when the run ends in the error
state.

Examples:
  csvimport run --profile party.yaml --file party.csv
  csvimport run --profile party.yaml --file party.csv --update
  csvimport run --profile sales.yaml --file q3.csv --store postgres --db-url $DATABASE_URL`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runProfilePath, "profile", "", "profile definition file (required)")
	runCmd.Flags().StringVar(&runFilePath, "file", "", "CSV file to import (required)")
	runCmd.MarkFlagRequired("profile")
	runCmd.MarkFlagRequired("file")

	runCmd.Flags().BoolVar(&runSkipRepeated, "skip-repeated", false, "override the profile: skip rows whose records already exist")
	runCmd.Flags().BoolVar(&runUpdate, "update", false, "override the profile: update matched records")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "maximum run duration")

	runCmd.Flags().StringVar(&notifyURL, "notify-url", "", "mail gateway endpoint for the run report")
	runCmd.Flags().StringVar(&notifyTo, "notify-to", "", "report recipient")
	runCmd.Flags().StringVar(&notifyFrom, "notify-from", "csvimport@localhost", "report sender")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	profile, err := loadProfile(runProfilePath)
	if err != nil {
		return err
	}

	// Flags override the profile only when given explicitly
	if cmd.Flags().Changed("skip-repeated") {
		profile.SkipRepeated = runSkipRepeated
	}
	if cmd.Flags().Changed("update") {
		profile.UpdateRecord = runUpdate
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

	f, err := os.Open(runFilePath)
	if err != nil {
		return err
	}
	defer f.Close()

	run, err := runner.Run(ctx, profile, filepath.Base(runFilePath), f)
	if run != nil {
		fmt.Println(run.Report())
	}
	if err != nil {
		return fmt.Errorf("import failed: %s", core.FormatUserError(err))
	}
	return nil
}

// cliNotifier picks the report transport for command runs: the mail
// gateway when --notify-url is given, the log otherwise.
func cliNotifier() notify.Notifier {
	if notifyURL != "" {
		return notify.NewGateway(notifyURL, notifyFrom, 10*time.Second)
	}
	return &notify.LogNotifier{Log: slog.Default()}
}
