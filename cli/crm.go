// ABOUTME: CRM maintenance commands for contacts and groups
// ABOUTME: Human-friendly commands for the data the sync pushes to the directory
package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/harperreed/gappsync/db"
	"github.com/harperreed/gappsync/models"
	"github.com/spf13/cobra"
)

// NewCRMCommand creates the crm command group.
func NewCRMCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crm",
		Short: "Maintain the contacts and groups that are synchronized",
	}

	cmd.AddCommand(newAddContactCommand(opts))
	cmd.AddCommand(newUpdateContactCommand(opts))
	cmd.AddCommand(newDeleteContactCommand(opts))
	cmd.AddCommand(newListContactsCommand(opts))
	cmd.AddCommand(newAddGroupCommand(opts))
	cmd.AddCommand(newMemberCommand(opts, "add-member", "Add a contact to a group", db.AddGroupContact))
	cmd.AddCommand(newMemberCommand(opts, "remove-member", "Remove a contact from a group", db.RemoveGroupContact))
	cmd.AddCommand(newListGroupsCommand(opts))

	return cmd
}

// withDatabase wraps a RunE body with an open database.
func withDatabase(opts *RootOptions, fn func(cmd *cobra.Command, database *sql.DB, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		database, err := opts.openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()
		return fn(cmd, database, args)
	}
}

type contactFlags struct {
	firstName     string
	lastName      string
	contactType   string
	employer      string
	jobTitle      string
	email         string
	emailLocation string
	phone         string
	extension     string
	phoneLocation string
	phoneKind     string
}

func (f *contactFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.firstName, "first-name", "", "given name")
	cmd.Flags().StringVar(&f.lastName, "last-name", "", "family name")
	cmd.Flags().StringVar(&f.contactType, "type", models.ContactTypeIndividual, "contact type (Individual|Organization|Household)")
	cmd.Flags().StringVar(&f.employer, "employer", "", "current employer")
	cmd.Flags().StringVar(&f.jobTitle, "job-title", "", "job title")
	cmd.Flags().StringVar(&f.email, "email", "", "primary email address")
	cmd.Flags().StringVar(&f.emailLocation, "email-location", models.LocationWork, "email location (home|work|other)")
	cmd.Flags().StringVar(&f.phone, "phone", "", "primary phone number")
	cmd.Flags().StringVar(&f.extension, "extension", "", "phone extension")
	cmd.Flags().StringVar(&f.phoneLocation, "phone-location", models.LocationWork, "phone location (home|work|main|billing|other)")
	cmd.Flags().StringVar(&f.phoneKind, "phone-kind", models.PhoneKindPhone, "phone kind (phone|mobile|fax|pager)")
}

// apply copies the changed flags onto the contact.
func (f *contactFlags) apply(cmd *cobra.Command, contact *models.Contact) {
	changed := cmd.Flags().Changed
	if changed("first-name") {
		contact.FirstName = f.firstName
	}
	if changed("last-name") {
		contact.LastName = f.lastName
	}
	if changed("type") || contact.ContactType == "" {
		contact.ContactType = f.contactType
	}
	if changed("employer") {
		contact.CurrentEmployer = f.employer
	}
	if changed("job-title") {
		contact.JobTitle = f.jobTitle
	}
	if changed("email") {
		contact.Emails = nil
		if f.email != "" {
			contact.Emails = []models.Email{{Address: f.email, Location: f.emailLocation, IsPrimary: true}}
		}
	}
	if changed("phone") {
		contact.Phones = nil
		if f.phone != "" {
			contact.Phones = []models.Phone{{
				Number:    f.phone,
				Extension: f.extension,
				Location:  f.phoneLocation,
				Kind:      f.phoneKind,
				IsPrimary: true,
			}}
		}
	}
}

func newAddContactCommand(opts *RootOptions) *cobra.Command {
	f := &contactFlags{}
	var group int64

	cmd := &cobra.Command{
		Use:   "add-contact",
		Short: "Add a contact",
		Args:  cobra.NoArgs,
		RunE: withDatabase(opts, func(cmd *cobra.Command, database *sql.DB, args []string) error {
			if f.firstName == "" && f.lastName == "" {
				return errors.New("--first-name or --last-name is required")
			}

			contact := &models.Contact{}
			f.apply(cmd, contact)
			if err := db.CreateContact(database, contact); err != nil {
				return fmt.Errorf("failed to create contact: %w", err)
			}
			if group != 0 {
				if err := db.AddGroupContact(database, group, contact.ID); err != nil {
					return err
				}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Created contact: %s (ID: %s)\n", contact.DisplayName(), contact.ID)
			return nil
		}),
	}

	f.register(cmd)
	cmd.Flags().Int64Var(&group, "group", 0, "also add the contact to this group")
	return cmd
}

func newUpdateContactCommand(opts *RootOptions) *cobra.Command {
	f := &contactFlags{}

	cmd := &cobra.Command{
		Use:   "update-contact <id>",
		Short: "Update a contact",
		Args:  cobra.ExactArgs(1),
		RunE: withDatabase(opts, func(cmd *cobra.Command, database *sql.DB, args []string) error {
			contact, err := loadContact(database, args[0])
			if err != nil {
				return err
			}

			f.apply(cmd, contact)
			if err := db.UpdateContact(database, contact); err != nil {
				return fmt.Errorf("failed to update contact: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated contact: %s\n", contact.DisplayName())
			return nil
		}),
	}

	f.register(cmd)
	return cmd
}

func newDeleteContactCommand(opts *RootOptions) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "delete-contact <id>",
		Short: "Move a contact to the trash, or purge it",
		Args:  cobra.ExactArgs(1),
		RunE: withDatabase(opts, func(cmd *cobra.Command, database *sql.DB, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid contact id: %w", err)
			}

			if purge {
				err = db.PurgeContact(database, id)
			} else {
				err = db.DeleteContact(database, id)
			}
			if err != nil {
				return fmt.Errorf("failed to delete contact: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted contact: %s\n", id)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "remove the contact permanently")
	return cmd
}

func newListContactsCommand(opts *RootOptions) *cobra.Command {
	var (
		query string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list-contacts",
		Short: "Search contacts by name or employer",
		Args:  cobra.NoArgs,
		RunE: withDatabase(opts, func(cmd *cobra.Command, database *sql.DB, args []string) error {
			contacts, err := db.FindContacts(database, query, limit)
			if err != nil {
				return fmt.Errorf("failed to list contacts: %w", err)
			}
			if len(contacts) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No contacts found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tEMPLOYER\tTITLE\tDELETED")
			for _, c := range contacts {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", c.ID, c.DisplayName(), c.CurrentEmployer, c.JobTitle, c.IsDeleted)
			}
			return w.Flush()
		}),
	}

	cmd.Flags().StringVar(&query, "query", "", "search text")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of results")
	return cmd
}

func newAddGroupCommand(opts *RootOptions) *cobra.Command {
	var (
		title    string
		criteria models.SmartCriteria
	)

	cmd := &cobra.Command{
		Use:   "add-group",
		Short: "Add a static or smart group",
		Args:  cobra.NoArgs,
		RunE: withDatabase(opts, func(cmd *cobra.Command, database *sql.DB, args []string) error {
			if title == "" {
				return errors.New("--title is required")
			}

			group := &models.Group{Title: title}
			if !criteria.IsEmpty() {
				group.Criteria = &criteria
			}
			if err := db.CreateGroup(database, group); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Created group: %s (ID: %d)\n", group.Title, group.ID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&title, "title", "", "group title (required)")
	cmd.Flags().StringVar(&criteria.Employer, "employer", "", "smart group: match current employer")
	cmd.Flags().StringVar(&criteria.JobTitle, "job-title", "", "smart group: match job title")
	cmd.Flags().StringVar(&criteria.EmailDomain, "email-domain", "", "smart group: match email domain")
	return cmd
}

func newMemberCommand(opts *RootOptions, use, short string, fn func(*sql.DB, int64, uuid.UUID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <group-id> <contact-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: withDatabase(opts, func(cmd *cobra.Command, database *sql.DB, args []string) error {
			groupID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid group id: %w", err)
			}
			contactID, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid contact id: %w", err)
			}
			if err := fn(database, groupID, contactID); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: group %d, contact %s\n", short, groupID, contactID)
			return nil
		}),
	}
}

func newListGroupsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list-groups",
		Short: "List groups",
		Args:  cobra.NoArgs,
		RunE: withDatabase(opts, func(cmd *cobra.Command, database *sql.DB, args []string) error {
			groups, err := db.ListGroups(database)
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No groups found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tTITLE\tKIND\tACTIVE")
			for _, g := range groups {
				kind := "static"
				if g.IsSmart() {
					kind = "smart"
				}
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", g.ID, g.Title, kind, g.IsActive)
			}
			return w.Flush()
		}),
	}
}

func loadContact(database *sql.DB, raw string) (*models.Contact, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid contact id: %w", err)
	}
	contact, err := db.GetContact(database, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	if contact == nil {
		return nil, fmt.Errorf("%w: %s", db.ErrContactNotFound, id)
	}
	return contact, nil
}
