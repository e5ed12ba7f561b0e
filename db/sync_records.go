// ABOUTME: Sync-state repository linking CRM contacts to remote directory resources
// ABOUTME: Selects create, update and delete candidates for a reconciliation run
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/gappsync/models"
)

// SyncRepository persists SyncRecords and answers the candidate queries of a run.
type SyncRepository struct {
	db *sql.DB
}

func NewSyncRepository(db *sql.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

// Get returns the record for a contact, or nil when none exists.
func (r *SyncRepository) Get(ctx context.Context, contactID uuid.UUID) (*models.SyncRecord, error) {
	var remoteID sql.NullString
	var syncedAt sql.NullInt64

	err := r.db.QueryRowContext(ctx, `
		SELECT remote_id, last_synced_at FROM sync_records WHERE contact_id = ?
	`, contactID.String()).Scan(&remoteID, &syncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync record: %w", err)
	}

	return &models.SyncRecord{
		ContactID:    contactID,
		RemoteID:     remoteID.String,
		LastSyncedAt: fromNanos(syncedAt),
	}, nil
}

// Upsert creates or replaces the record for a contact.
func (r *SyncRepository) Upsert(ctx context.Context, contactID uuid.UUID, remoteID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_records (contact_id, remote_id, last_synced_at) VALUES (?, ?, ?)
		ON CONFLICT(contact_id) DO UPDATE SET
			remote_id = excluded.remote_id,
			last_synced_at = excluded.last_synced_at
	`, contactID.String(), remoteID, toNanos(at))
	if err != nil {
		return fmt.Errorf("failed to upsert sync record: %w", err)
	}
	return nil
}

func (r *SyncRepository) Delete(ctx context.Context, contactID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_records WHERE contact_id = ?`, contactID.String()); err != nil {
		return fmt.Errorf("failed to delete sync record: %w", err)
	}
	return nil
}

// DeleteAll forgets every remote link.
func (r *SyncRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_records`); err != nil {
		return fmt.Errorf("failed to clear sync records: %w", err)
	}
	return nil
}

// CountSynced counts records that carry a remote id.
func (r *SyncRepository) CountSynced(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sync_records WHERE remote_id IS NOT NULL AND remote_id != ''
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sync records: %w", err)
	}
	return count, nil
}

// UnsyncedMembers returns live individual members of the group that have
// never been pushed.
func (r *SyncRepository) UnsyncedMembers(ctx context.Context, groupID int64, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id
		FROM contacts c
		JOIN group_contact_cache g ON g.contact_id = c.id AND g.group_id = ?
		LEFT JOIN sync_records s ON s.contact_id = c.id
		WHERE c.is_deleted = 0
			AND c.contact_type = ?
			AND (s.contact_id IS NULL OR s.remote_id IS NULL OR s.remote_id = '')
		ORDER BY c.created_at, c.id
		LIMIT ?
	`, groupID, models.ContactTypeIndividual, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select unsynced members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StaleSynced returns synced members whose latest change is strictly newer
// than their last push. Contacts that left the group are excluded so the
// delete phase handles them.
func (r *SyncRepository) StaleSynced(ctx context.Context, groupID int64, limit int) ([]models.SyncRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	return r.selectRecords(ctx, `
		SELECT s.contact_id, s.remote_id, s.last_synced_at
		FROM sync_records s
		JOIN contacts c ON c.id = s.contact_id
		JOIN group_contact_cache g ON g.contact_id = s.contact_id AND g.group_id = ?
		JOIN (
			SELECT entity_id, MAX(modified_at) AS modified_at
			FROM change_log
			WHERE entity_table = ?
			GROUP BY entity_id
		) l ON l.entity_id = s.contact_id
		WHERE s.remote_id IS NOT NULL AND s.remote_id != ''
			AND c.is_deleted = 0
			AND (s.last_synced_at IS NULL OR s.last_synced_at < l.modified_at)
		ORDER BY l.modified_at, s.contact_id
		LIMIT ?
	`, groupID, contactsTable, limit)
}

// IneligibleSynced returns synced contacts that were deleted, purged or are
// no longer members of the group.
func (r *SyncRepository) IneligibleSynced(ctx context.Context, groupID int64, limit int) ([]models.SyncRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	return r.selectRecords(ctx, `
		SELECT s.contact_id, s.remote_id, s.last_synced_at
		FROM sync_records s
		LEFT JOIN contacts c ON c.id = s.contact_id
		LEFT JOIN group_contact_cache g ON g.contact_id = s.contact_id AND g.group_id = ?
		WHERE s.remote_id IS NOT NULL AND s.remote_id != ''
			AND (c.id IS NULL OR c.is_deleted = 1 OR g.group_id IS NULL)
		ORDER BY s.contact_id
		LIMIT ?
	`, groupID, limit)
}

func (r *SyncRepository) selectRecords(ctx context.Context, query string, args ...any) ([]models.SyncRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select sync records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.SyncRecord
	for rows.Next() {
		var record models.SyncRecord
		var remoteID sql.NullString
		var syncedAt sql.NullInt64
		if err := rows.Scan(&record.ContactID, &remoteID, &syncedAt); err != nil {
			return nil, err
		}
		record.RemoteID = remoteID.String
		record.LastSyncedAt = fromNanos(syncedAt)
		records = append(records, record)
	}
	return records, rows.Err()
}

// Contact loads a contact snapshot with emails and phones.
func (r *SyncRepository) Contact(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	return getContact(ctx, r.db, id)
}

func (r *SyncRepository) RefreshGroupCache(ctx context.Context, groupID int64) error {
	return RefreshGroupCache(ctx, r.db, groupID)
}

// SaveRunStats records the run timestamp and processed total together.
func (r *SyncRepository) SaveRunStats(ctx context.Context, lastSync time.Time, processed int) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := saveSetting(ctx, tx, models.SettingLastSync, lastSync.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
		return saveSetting(ctx, tx, models.SettingProcessed, strconv.Itoa(processed))
	})
}
