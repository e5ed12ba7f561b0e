// ABOUTME: Root cobra command and shared process configuration
// ABOUTME: Resolves database path, logger and directory options for every subcommand
package cli

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
	"github.com/harperreed/gappsync/db"
	"github.com/harperreed/gappsync/sync"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath            string
	LogLevel          string
	TokenURL          string
	Endpoint          string
	RequestsPerSecond float64

	Logger *log.Logger
}

// NewRootCommand creates the root command for the gappsync CLI.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "gappsync",
		Short:         "Push a CRM contact group into a Google Apps directory",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.LogLevel)
			if err != nil {
				return err
			}
			opts.Logger = logger
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db-path", getDatabasePath(), "database path (env GAPPSYNC_DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", envOr("GAPPSYNC_LOG_LEVEL", "info"), "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.TokenURL, "token-url", os.Getenv("GAPPSYNC_TOKEN_URL"), "override the OAuth token endpoint")
	cmd.PersistentFlags().StringVar(&opts.Endpoint, "endpoint", os.Getenv("GAPPSYNC_ENDPOINT"), "override the directory API base URL")
	cmd.PersistentFlags().Float64Var(&opts.RequestsPerSecond, "requests-per-second", envFloat("GAPPSYNC_REQUESTS_PER_SECOND", 5), "pace remote calls (0 disables pacing)")
	_ = cmd.PersistentFlags().MarkHidden("token-url")
	_ = cmd.PersistentFlags().MarkHidden("endpoint")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewDaemonCommand(opts))
	cmd.AddCommand(NewConfigureCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewCRMCommand(opts))
	cmd.AddCommand(NewMCPCommand(opts))

	return cmd
}

// openDatabase opens the configured database, creating and migrating it if needed.
func (o *RootOptions) openDatabase() (*sql.DB, error) {
	database, err := db.OpenDatabase(o.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", o.DBPath, err)
	}
	o.logger().Debug("database opened", "path", o.DBPath)
	return database, nil
}

// directoryOptions builds the options every directory session is opened with.
func (o *RootOptions) directoryOptions() sync.Options {
	opts := sync.Options{
		Endpoint: o.Endpoint,
		TokenURL: o.TokenURL,
	}
	if o.RequestsPerSecond > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(o.RequestsPerSecond), 1)
	}
	return opts
}

func (o *RootOptions) newJob(database *sql.DB) *sync.Job {
	return sync.NewJob(database, o.logger(), o.directoryOptions())
}

func (o *RootOptions) logger() *log.Logger {
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o.Logger
}

func newLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "gappsync",
		Level:           lvl,
	}), nil
}

// getDatabasePath returns the default database location under the XDG data home.
func getDatabasePath() string {
	if path := os.Getenv("GAPPSYNC_DB_PATH"); path != "" {
		return path
	}
	return filepath.Join(xdg.DataHome, "gappsync", "gappsync.db")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}
