// ABOUTME: Reset command removing all sync state
// ABOUTME: Clears sync records, settings and the job log so the next run starts fresh
package cli

import (
	"errors"
	"fmt"

	"github.com/harperreed/gappsync/db"
	"github.com/spf13/cobra"
)

// NewResetCommand creates the reset command.
func NewResetCommand(opts *RootOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget all sync state, settings and job history",
		Long: "Reset removes every sync record, the sync settings and the job log. " +
			"Contacts already pushed to the directory are not deleted there.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("reset is destructive, pass --confirm to proceed")
			}

			database, err := opts.openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if err := db.NewSyncRepository(database).DeleteAll(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear sync records: %w", err)
			}
			if err := db.DeleteSettings(database); err != nil {
				return fmt.Errorf("failed to clear settings: %w", err)
			}
			if err := db.DeleteJobLogs(database); err != nil {
				return fmt.Errorf("failed to clear job log: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ Sync state reset")
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm the reset")
	return cmd
}
