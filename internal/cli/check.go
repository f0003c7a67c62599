package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/NaN-tic/csvimport/internal/core"
	"github.com/NaN-tic/csvimport/internal/profilefile"
	"github.com/NaN-tic/csvimport/internal/store/memory"
)

var checkProfilePath string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a profile definition",
	Long: `Check parses a profile definition file, validates every column mapping
and binds it against the record schema, reporting the first problem found.
Nothing is imported.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkProfilePath, "profile", "", "profile definition file (required)")
	checkCmd.MarkFlagRequired("profile")
}

func runCheck(cmd *cobra.Command, args []string) error {
	profile, err := loadProfile(checkProfilePath)
	if err != nil {
		return err
	}

	schema, err := profilefile.LoadSchema(schemaPath)
	if err != nil {
		return fmt.Errorf("load schema %s: %w", schemaPath, err)
	}

	// Binding a decoder catches what validation alone cannot see:
	// unknown fields and child markers pointing at non-relation fields.
	if _, err := core.NewDecoder(profile, memory.New(schema), slog.Default()); err != nil {
		return fmt.Errorf("profile %q: %w", profile.Name, err)
	}

	fmt.Printf("profile %q ok: %d columns into %s\n", profile.Name, len(profile.Columns), profile.Collection)
	return nil
}
