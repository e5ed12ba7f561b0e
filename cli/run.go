// ABOUTME: One-shot sync command
// ABOUTME: Runs a single reconciliation pass and prints the job result
package cli

import (
	"fmt"
	"io"

	"github.com/harperreed/gappsync/models"
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	var maxProcessed int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one sync pass now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxProcessed < 0 {
				return fmt.Errorf("--max-processed must not be negative")
			}

			database, err := opts.openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			entry, err := opts.newJob(database).Run(cmd.Context(), maxProcessed)
			if entry != nil {
				printJobResult(cmd.OutOrStdout(), entry)
			}
			return err
		},
	}

	cmd.Flags().IntVar(&maxProcessed, "max-processed", 0, "override the per-run contact budget")
	return cmd
}

func printJobResult(w io.Writer, entry *models.JobLog) {
	if entry.OK {
		_, _ = fmt.Fprintf(w, "✓ Sync finished: %d created, %d updated, %d deleted\n", entry.Created, entry.Updated, entry.Deleted)
	} else {
		_, _ = fmt.Fprintf(w, "✗ Sync failed (%s) after %d contact(s)\n", entry.Code, entry.Processed)
	}
	for _, msg := range entry.Messages {
		_, _ = fmt.Fprintf(w, "  %s\n", msg)
	}
}
