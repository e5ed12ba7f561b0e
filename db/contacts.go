// ABOUTME: Contact database operations for the host CRM store
// ABOUTME: Handles contact CRUD with emails, phones, soft deletes and change log tracking
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/gappsync/models"
)

var ErrContactNotFound = errors.New("contact not found")

const contactsTable = "contacts"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func CreateContact(db *sql.DB, contact *models.Contact) error {
	if contact.ID == uuid.Nil {
		contact.ID = uuid.New()
	}
	if contact.ContactType == "" {
		contact.ContactType = models.ContactTypeIndividual
	}
	now := time.Now().UTC()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	return withTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO contacts (id, contact_type, first_name, last_name, current_employer, job_title, is_deleted, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, contact.ID.String(), contact.ContactType, contact.FirstName, contact.LastName,
			contact.CurrentEmployer, contact.JobTitle, contact.IsDeleted, contact.CreatedAt, contact.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert contact: %w", err)
		}

		if err := replaceChildren(tx, contact); err != nil {
			return err
		}

		return logChange(tx, contactsTable, contact.ID.String(), now)
	})
}

// UpdateContact replaces the contact attributes, emails and phones.
func UpdateContact(db *sql.DB, contact *models.Contact) error {
	now := time.Now().UTC()
	contact.UpdatedAt = now

	return withTx(context.Background(), db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE contacts
			SET contact_type = ?, first_name = ?, last_name = ?, current_employer = ?, job_title = ?, is_deleted = ?, updated_at = ?
			WHERE id = ?
		`, contact.ContactType, contact.FirstName, contact.LastName, contact.CurrentEmployer,
			contact.JobTitle, contact.IsDeleted, contact.UpdatedAt, contact.ID.String())
		if err != nil {
			return fmt.Errorf("failed to update contact: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrContactNotFound
		}

		if err := replaceChildren(tx, contact); err != nil {
			return err
		}

		return logChange(tx, contactsTable, contact.ID.String(), now)
	})
}

// DeleteContact moves a contact to the trash. The row stays so that a
// synced remote resource can still be removed.
func DeleteContact(db *sql.DB, id uuid.UUID) error {
	now := time.Now().UTC()

	return withTx(context.Background(), db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`UPDATE contacts SET is_deleted = 1, updated_at = ? WHERE id = ?`, now, id.String())
		if err != nil {
			return fmt.Errorf("failed to delete contact: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrContactNotFound
		}

		return logChange(tx, contactsTable, id.String(), now)
	})
}

func GetContact(db *sql.DB, id uuid.UUID) (*models.Contact, error) {
	return getContact(context.Background(), db, id)
}

func FindContacts(db *sql.DB, query string, limit int) ([]models.Contact, error) {
	if limit <= 0 {
		limit = 50
	}

	searchPattern := "%" + strings.ToLower(query) + "%"
	rows, err := db.Query(`
		SELECT id, contact_type, first_name, last_name, current_employer, job_title, is_deleted, created_at, updated_at
		FROM contacts
		WHERE LOWER(first_name || ' ' || last_name) LIKE ? OR LOWER(current_employer) LIKE ?
		ORDER BY last_name, first_name
		LIMIT ?
	`, searchPattern, searchPattern, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.ContactType, &c.FirstName, &c.LastName, &c.CurrentEmployer,
			&c.JobTitle, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}

	return contacts, rows.Err()
}

func getContact(ctx context.Context, q querier, id uuid.UUID) (*models.Contact, error) {
	contact := &models.Contact{}

	err := q.QueryRowContext(ctx, `
		SELECT id, contact_type, first_name, last_name, current_employer, job_title, is_deleted, created_at, updated_at
		FROM contacts WHERE id = ?
	`, id.String()).Scan(
		&contact.ID,
		&contact.ContactType,
		&contact.FirstName,
		&contact.LastName,
		&contact.CurrentEmployer,
		&contact.JobTitle,
		&contact.IsDeleted,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Rows are drained and closed one query at a time: the pool holds a single connection.
	if contact.Emails, err = loadEmails(ctx, q, id); err != nil {
		return nil, err
	}
	if contact.Phones, err = loadPhones(ctx, q, id); err != nil {
		return nil, err
	}

	return contact, nil
}

func loadEmails(ctx context.Context, q querier, id uuid.UUID) ([]models.Email, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT address, location, is_primary FROM emails WHERE contact_id = ? ORDER BY position, id
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load emails: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var emails []models.Email
	for rows.Next() {
		var e models.Email
		if err := rows.Scan(&e.Address, &e.Location, &e.IsPrimary); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func loadPhones(ctx context.Context, q querier, id uuid.UUID) ([]models.Phone, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT number, extension, location, kind, is_primary FROM phones WHERE contact_id = ? ORDER BY position, id
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load phones: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var phones []models.Phone
	for rows.Next() {
		var p models.Phone
		if err := rows.Scan(&p.Number, &p.Extension, &p.Location, &p.Kind, &p.IsPrimary); err != nil {
			return nil, err
		}
		phones = append(phones, p)
	}
	return phones, rows.Err()
}

func replaceChildren(tx *sql.Tx, contact *models.Contact) error {
	id := contact.ID.String()

	if _, err := tx.Exec(`DELETE FROM emails WHERE contact_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear emails: %w", err)
	}
	for i, e := range contact.Emails {
		location := e.Location
		if location == "" {
			location = models.LocationOther
		}
		if _, err := tx.Exec(`
			INSERT INTO emails (contact_id, address, location, is_primary, position) VALUES (?, ?, ?, ?, ?)
		`, id, e.Address, location, e.IsPrimary, i); err != nil {
			return fmt.Errorf("failed to insert email: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM phones WHERE contact_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear phones: %w", err)
	}
	for i, p := range contact.Phones {
		location := p.Location
		if location == "" {
			location = models.LocationOther
		}
		kind := p.Kind
		if kind == "" {
			kind = models.PhoneKindPhone
		}
		if _, err := tx.Exec(`
			INSERT INTO phones (contact_id, number, extension, location, kind, is_primary, position) VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, p.Number, p.Extension, location, kind, p.IsPrimary, i); err != nil {
			return fmt.Errorf("failed to insert phone: %w", err)
		}
	}

	return nil
}

// logChange appends to the change log consumed by the stale-contact query.
func logChange(tx *sql.Tx, table, entityID string, at time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO change_log (entity_table, entity_id, modified_at) VALUES (?, ?, ?)
	`, table, entityID, toNanos(at))
	if err != nil {
		return fmt.Errorf("failed to log change: %w", err)
	}
	return nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}

// PurgeContact removes a contact row permanently. Its sync record is kept so
// the remote resource can still be deleted.
func PurgeContact(db *sql.DB, id uuid.UUID) error {
	result, err := db.Exec(`DELETE FROM contacts WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to purge contact: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrContactNotFound
	}
	return nil
}
