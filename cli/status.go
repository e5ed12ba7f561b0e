// ABOUTME: Status command rendering the sync state
// ABOUTME: Shows configuration, run counters, synced count and recent job results
package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/gappsync/db"
	"github.com/harperreed/gappsync/models"
	"github.com/harperreed/gappsync/sync"
	"github.com/spf13/cobra"
)

var (
	statusTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("170")).
				MarginBottom(1)

	statusHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Underline(true)

	statusLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Width(16)

	statusOKStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	statusErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("9"))

	statusMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true)
)

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	var (
		jobs    int
		check   bool
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync configuration, counters and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := opts.openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			status, err := db.LoadStatus(cmd.Context(), database, jobs)
			if err != nil {
				return fmt.Errorf("failed to load status: %w", err)
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			connection := ""
			if check && status.Configured {
				settings, err := db.LoadSettings(database)
				if err != nil {
					return err
				}
				connection = "unreachable"
				if dir, err := sync.NewDirectory(cmd.Context(), *settings, opts.directoryOptions()); err == nil && sync.CheckConnection(cmd.Context(), dir) {
					connection = "ok"
				}
			}

			_, _ = fmt.Fprint(cmd.OutOrStdout(), renderStatus(status, connection))
			return nil
		},
	}

	cmd.Flags().IntVar(&jobs, "jobs", 5, "number of recent runs to show")
	cmd.Flags().BoolVar(&check, "check", false, "test the directory connection")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the status as JSON")
	return cmd
}

func renderStatus(status *models.Status, connection string) string {
	var s strings.Builder

	s.WriteString(statusTitleStyle.Render("Google Apps Sync"))
	s.WriteString("\n\n")

	if !status.Configured {
		s.WriteString(statusMessageStyle.Render("Not configured. Run `gappsync configure` first."))
		s.WriteString("\n\n")
	}

	row := func(label, value string) {
		s.WriteString(statusLabelStyle.Render(label))
		s.WriteString(value)
		s.WriteString("\n")
	}

	row("Group", orDash(status.Group))
	row("Backend", status.Backend)
	row("Per run", fmt.Sprintf("%d contacts", status.MaxProcessed))
	if status.LastSync != nil {
		row("Last sync", formatTimeSince(*status.LastSync))
	} else {
		row("Last sync", "never")
	}
	row("Processed", fmt.Sprintf("%d total", status.Processed))
	row("Synced", fmt.Sprintf("%d contacts", status.Synced))
	switch connection {
	case "ok":
		row("Connection", statusOKStyle.Render("✓ ok"))
	case "":
	default:
		row("Connection", statusErrorStyle.Render("✗ "+connection))
	}
	s.WriteString("\n")

	s.WriteString(statusHeaderStyle.Render("Recent Runs"))
	s.WriteString("\n\n")
	if len(status.RecentJobs) == 0 {
		s.WriteString(statusMessageStyle.Render("No runs yet."))
		s.WriteString("\n")
		return s.String()
	}

	for _, job := range status.RecentJobs {
		when := job.RunAt.Local().Format("2006-01-02 15:04")
		if job.OK {
			s.WriteString(statusOKStyle.Render("✓ " + when))
		} else {
			s.WriteString(statusErrorStyle.Render(fmt.Sprintf("✗ %s (%s)", when, job.Code)))
		}
		s.WriteString(statusMessageStyle.Render(" " + strings.Join(job.Messages, " ")))
		s.WriteString("\n")
	}
	return s.String()
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

// formatTimeSince formats a time duration in a human-readable way.
func formatTimeSince(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return plural(int(duration.Minutes()), "minute")
	case duration < 24*time.Hour:
		return plural(int(duration.Hours()), "hour")
	default:
		return plural(int(duration.Hours()/24), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
