// ABOUTME: Group and membership operations for the host CRM store
// ABOUTME: Manages static membership rows and rematerializes the smart group cache
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/gappsync/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrGroupInactive = errors.New("group is not active")
)

// Membership statuses for explicit group rows.
const (
	MembershipAdded   = "Added"
	MembershipRemoved = "Removed"
)

func CreateGroup(db *sql.DB, group *models.Group) error {
	var criteria sql.NullString
	if !group.Criteria.IsEmpty() {
		data, err := json.Marshal(group.Criteria)
		if err != nil {
			return fmt.Errorf("failed to encode criteria: %w", err)
		}
		criteria = sql.NullString{String: string(data), Valid: true}
	}

	group.IsActive = true
	group.CreatedAt = time.Now().UTC()

	result, err := db.Exec(`
		INSERT INTO groups (title, criteria, is_active, created_at) VALUES (?, ?, ?, ?)
	`, group.Title, criteria, group.IsActive, group.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	group.ID, err = result.LastInsertId()
	return err
}

func GetGroup(db *sql.DB, id int64) (*models.Group, error) {
	return getGroup(context.Background(), db, id)
}

func ListGroups(db *sql.DB) ([]models.Group, error) {
	rows, err := db.Query(`SELECT id, title, criteria, is_active, created_at FROM groups ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}

	return groups, rows.Err()
}

// SetGroupActive enables or disables a group.
func SetGroupActive(db *sql.DB, id int64, active bool) error {
	result, err := db.Exec(`UPDATE groups SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func AddGroupContact(db *sql.DB, groupID int64, contactID uuid.UUID) error {
	return setMembership(db, groupID, contactID, MembershipAdded)
}

// RemoveGroupContact records an explicit removal, which also excludes the
// contact from smart group criteria.
func RemoveGroupContact(db *sql.DB, groupID int64, contactID uuid.UUID) error {
	return setMembership(db, groupID, contactID, MembershipRemoved)
}

func setMembership(db *sql.DB, groupID int64, contactID uuid.UUID, status string) error {
	_, err := db.Exec(`
		INSERT INTO group_contacts (group_id, contact_id, status) VALUES (?, ?, ?)
		ON CONFLICT(group_id, contact_id) DO UPDATE SET status = excluded.status
	`, groupID, contactID.String(), status)
	if err != nil {
		return fmt.Errorf("failed to set group membership: %w", err)
	}
	return nil
}

// RefreshGroupCache rematerializes the membership cache of a group in one
// transaction. Readers never observe a half-built cache.
func RefreshGroupCache(ctx context.Context, db *sql.DB, groupID int64) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		group, err := getGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if group == nil {
			return fmt.Errorf("%w: %d", ErrGroupNotFound, groupID)
		}
		if !group.IsActive {
			return fmt.Errorf("%w: %d", ErrGroupInactive, groupID)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM group_contact_cache WHERE group_id = ?`, groupID); err != nil {
			return fmt.Errorf("failed to clear group cache: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO group_contact_cache (group_id, contact_id)
			SELECT group_id, contact_id FROM group_contacts
			WHERE group_id = ? AND status = 'Added'
		`, groupID); err != nil {
			return fmt.Errorf("failed to cache static members: %w", err)
		}

		if !group.IsSmart() {
			return nil
		}

		c := group.Criteria
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO group_contact_cache (group_id, contact_id)
			SELECT ?, c.id FROM contacts c
			WHERE c.is_deleted = 0
				AND (? = '' OR c.current_employer = ?)
				AND (? = '' OR c.job_title = ?)
				AND (? = '' OR EXISTS (
					SELECT 1 FROM emails e
					WHERE e.contact_id = c.id AND LOWER(e.address) LIKE '%@' || LOWER(?)
				))
				AND c.id NOT IN (
					SELECT contact_id FROM group_contacts WHERE group_id = ? AND status = 'Removed'
				)
		`, groupID,
			c.Employer, c.Employer,
			c.JobTitle, c.JobTitle,
			c.EmailDomain, c.EmailDomain,
			groupID,
		); err != nil {
			return fmt.Errorf("failed to cache smart members: %w", err)
		}

		return nil
	})
}

// IsGroupMember reports cached membership. Call RefreshGroupCache first.
func IsGroupMember(db *sql.DB, groupID int64, contactID uuid.UUID) (bool, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM group_contact_cache WHERE group_id = ? AND contact_id = ?
	`, groupID, contactID.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func getGroup(ctx context.Context, q querier, id int64) (*models.Group, error) {
	row := q.QueryRowContext(ctx, `SELECT id, title, criteria, is_active, created_at FROM groups WHERE id = ?`, id)
	group, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return group, err
}

func scanGroup(row rowScanner) (*models.Group, error) {
	var group models.Group
	var criteria sql.NullString

	if err := row.Scan(&group.ID, &group.Title, &criteria, &group.IsActive, &group.CreatedAt); err != nil {
		return nil, err
	}

	if criteria.Valid && criteria.String != "" {
		var c models.SmartCriteria
		if err := json.Unmarshal([]byte(criteria.String), &c); err != nil {
			return nil, fmt.Errorf("failed to decode group criteria: %w", err)
		}
		group.Criteria = &c
	}

	return &group, nil
}
