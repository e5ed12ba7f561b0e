// ABOUTME: Configure command for the sync settings
// ABOUTME: Validates the group and directory connection, saves settings and performs the first run
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/harperreed/gappsync/db"
	"github.com/harperreed/gappsync/models"
	"github.com/harperreed/gappsync/sync"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

type configureFlags struct {
	domain       string
	oauthEmail   string
	oauthKey     string
	oauthSecret  string
	group        string
	maxProcessed int
	backend      string
	profileURL   string
	file         string
	skipCheck    bool
	skipFirstRun bool
}

// NewConfigureCommand creates the configure command.
func NewConfigureCommand(opts *RootOptions) *cobra.Command {
	f := &configureFlags{}

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Set the Google Apps domain, OAuth credentials and target group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := opts.openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			return runConfigure(cmd, opts, database, f)
		},
	}

	cmd.Flags().StringVar(&f.domain, "domain", "", "Google Apps domain")
	cmd.Flags().StringVar(&f.oauthEmail, "oauth-email", "", "administrator email the requests act on behalf of")
	cmd.Flags().StringVar(&f.oauthKey, "oauth-key", "", "OAuth consumer key")
	cmd.Flags().StringVar(&f.oauthSecret, "oauth-secret", "", "OAuth consumer secret (prompted when omitted)")
	cmd.Flags().StringVar(&f.group, "group", "", "id of the CRM group to synchronize")
	cmd.Flags().IntVar(&f.maxProcessed, "max-processed", 0, "contacts processed per run")
	cmd.Flags().StringVar(&f.backend, "backend", "", "directory backend (gdata|people)")
	cmd.Flags().StringVar(&f.profileURL, "profile-url", "", "base URL of CRM contact pages, the contact id is appended")
	cmd.Flags().StringVar(&f.file, "file", "", "import settings from a YAML file")
	cmd.Flags().BoolVar(&f.skipCheck, "skip-check", false, "save without testing the directory connection")
	cmd.Flags().BoolVar(&f.skipFirstRun, "skip-first-run", false, "do not sync after the first configuration")
	return cmd
}

func runConfigure(cmd *cobra.Command, opts *RootOptions, database *sql.DB, f *configureFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	current, err := db.LoadSettings(database)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	wasConfigured := current.HasCredentials() && current.Group != ""

	settings := *current
	if f.file != "" {
		if err := loadSettingsFile(f.file, &settings); err != nil {
			return err
		}
	}
	applyConfigureFlags(cmd, f, &settings)

	if settings.OAuthSecret == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := promptSecret(out, "OAuth consumer secret: ")
		if err != nil {
			return err
		}
		settings.OAuthSecret = secret
	}

	if err := validateSettings(database, &settings); err != nil {
		return err
	}

	if !f.skipCheck {
		if err := checkDirectory(ctx, opts, settings); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, "✓ Connected to the Google directory")
	}

	if err := db.SaveSettings(database, &settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	_, _ = fmt.Fprintln(out, "✓ Settings saved")

	if wasConfigured || f.skipFirstRun {
		return nil
	}

	_, _ = fmt.Fprintln(out, "Running the first sync...")
	entry, err := opts.newJob(database).Run(ctx, 0)
	if entry != nil {
		printJobResult(out, entry)
	}
	return err
}

func loadSettingsFile(path string, settings *models.Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return nil
}

func applyConfigureFlags(cmd *cobra.Command, f *configureFlags, settings *models.Settings) {
	changed := cmd.Flags().Changed
	if changed("domain") {
		settings.Domain = strings.TrimSpace(f.domain)
	}
	if changed("oauth-email") {
		settings.OAuthEmail = strings.TrimSpace(f.oauthEmail)
	}
	if changed("oauth-key") {
		settings.OAuthKey = strings.TrimSpace(f.oauthKey)
	}
	if changed("oauth-secret") {
		settings.OAuthSecret = f.oauthSecret
	}
	if changed("group") {
		settings.Group = strings.TrimSpace(f.group)
	}
	if changed("max-processed") {
		settings.MaxProcessed = f.maxProcessed
	}
	if changed("backend") {
		settings.Backend = f.backend
	}
	if changed("profile-url") {
		settings.ProfileBaseURL = f.profileURL
	}
}

func validateSettings(database *sql.DB, settings *models.Settings) error {
	if settings.Group == "" {
		return errors.New("a group is required, see `gappsync crm list-groups`")
	}
	groupID, err := strconv.ParseInt(settings.Group, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid group id %q", settings.Group)
	}
	group, err := db.GetGroup(database, groupID)
	if err != nil {
		return fmt.Errorf("failed to look up group: %w", err)
	}
	if group == nil {
		return fmt.Errorf("%w: %d", db.ErrGroupNotFound, groupID)
	}

	if settings.MaxProcessed < 0 {
		return errors.New("max processed must not be negative")
	}
	if settings.MaxProcessed == 0 {
		settings.MaxProcessed = models.DefaultMaxProcessed
	}

	switch settings.Backend {
	case "":
		settings.Backend = models.BackendGData
	case models.BackendGData, models.BackendPeople:
	default:
		return fmt.Errorf("unknown backend %q (gdata|people)", settings.Backend)
	}
	return nil
}

func checkDirectory(ctx context.Context, opts *RootOptions, settings models.Settings) error {
	dir, err := sync.NewDirectory(ctx, settings, opts.directoryOptions())
	if err == nil {
		err = sync.VerifyConnection(ctx, dir)
	}
	if err != nil {
		opts.logger().Debug("connection check failed", "err", err)
		return errors.New(sync.ClassifyConnectionError(err))
	}
	return nil
}

func promptSecret(w io.Writer, prompt string) (string, error) {
	_, _ = fmt.Fprint(w, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	_, _ = fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}
