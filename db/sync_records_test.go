// ABOUTME: Tests for the sync-state repository and candidate selection queries
// ABOUTME: Covers create, update and delete candidates, limits and run statistics
package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/gappsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncFixture struct {
	repo  *SyncRepository
	group *models.Group
}

func newSyncFixture(t *testing.T) (*syncFixture, func()) {
	t.Helper()

	db := setupTestDB(t)
	group := createTestGroup(t, db, "Synced", nil)
	return &syncFixture{repo: NewSyncRepository(db), group: group}, func() { _ = db.Close() }
}

func (f *syncFixture) member(t *testing.T, first, last string) *models.Contact {
	t.Helper()

	contact := createTestContact(t, f.repo.db, first, last)
	require.NoError(t, AddGroupContact(f.repo.db, f.group.ID, contact.ID))
	return contact
}

func (f *syncFixture) refresh(t *testing.T) {
	t.Helper()
	require.NoError(t, f.repo.RefreshGroupCache(context.Background(), f.group.ID))
}

func TestSyncRecordUpsertAndGet(t *testing.T) {
	f, done := newSyncFixture(t)
	defer done()
	ctx := context.Background()

	contact := f.member(t, "Ada", "Lovelace")

	record, err := f.repo.Get(ctx, contact.ID)
	require.NoError(t, err)
	assert.Nil(t, record)

	first := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	require.NoError(t, f.repo.Upsert(ctx, contact.ID, "abc", first))

	record, err = f.repo.Get(ctx, contact.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "abc", record.RemoteID)
	require.NotNil(t, record.LastSyncedAt)
	assert.True(t, first.Equal(*record.LastSyncedAt))

	second := first.Add(time.Minute)
	require.NoError(t, f.repo.Upsert(ctx, contact.ID, "abc", second))
	record, err = f.repo.Get(ctx, contact.ID)
	require.NoError(t, err)
	assert.True(t, second.Equal(*record.LastSyncedAt))

	count, err := f.repo.CountSynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, f.repo.Delete(ctx, contact.ID))
	record, err = f.repo.Get(ctx, contact.ID)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestUnsyncedMembers(t *testing.T) {
	f, done := newSyncFixture(t)
	defer done()
	ctx := context.Background()

	ada := f.member(t, "Ada", "Lovelace")
	grace := f.member(t, "Grace", "Hopper")
	synced := f.member(t, "Alan", "Turing")
	deleted := f.member(t, "Edsger", "Dijkstra")
	createTestContact(t, f.repo.db, "Not", "Member")

	org := &models.Contact{ContactType: models.ContactTypeOrganization, LastName: "Acme"}
	require.NoError(t, CreateContact(f.repo.db, org))
	require.NoError(t, AddGroupContact(f.repo.db, f.group.ID, org.ID))

	require.NoError(t, DeleteContact(f.repo.db, deleted.ID))
	require.NoError(t, f.repo.Upsert(ctx, synced.ID, "remote-1", time.Now()))
	f.refresh(t)

	ids, err := f.repo.UnsyncedMembers(ctx, f.group.ID, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{ada.ID, grace.ID}, ids)

	limited, err := f.repo.UnsyncedMembers(ctx, f.group.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := f.repo.UnsyncedMembers(ctx, f.group.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUnsyncedMembersIncludesEmptyRemoteID(t *testing.T) {
	f, done := newSyncFixture(t)
	defer done()
	ctx := context.Background()

	contact := f.member(t, "Ada", "Lovelace")
	require.NoError(t, f.repo.Upsert(ctx, contact.ID, "", time.Now()))
	f.refresh(t)

	ids, err := f.repo.UnsyncedMembers(ctx, f.group.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{contact.ID}, ids)

	count, err := f.repo.CountSynced(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStaleSynced(t *testing.T) {
	f, done := newSyncFixture(t)
	defer done()
	ctx := context.Background()

	stale := f.member(t, "Ada", "Lovelace")
	fresh := f.member(t, "Grace", "Hopper")
	departed := f.member(t, "Alan", "Turing")

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	require.NoError(t, f.repo.Upsert(ctx, stale.ID, "r-stale", past))
	require.NoError(t, f.repo.Upsert(ctx, fresh.ID, "r-fresh", future))
	require.NoError(t, f.repo.Upsert(ctx, departed.ID, "r-departed", past))

	require.NoError(t, RemoveGroupContact(f.repo.db, f.group.ID, departed.ID))
	f.refresh(t)

	records, err := f.repo.StaleSynced(ctx, f.group.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, stale.ID, records[0].ContactID)
	assert.Equal(t, "r-stale", records[0].RemoteID)

	none, err := f.repo.StaleSynced(ctx, f.group.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStaleSyncedRequiresStrictlyNewerChange(t *testing.T) {
	f, done := newSyncFixture(t)
	defer done()
	ctx := context.Background()

	contact := f.member(t, "Ada", "Lovelace")
	f.refresh(t)

	var modified int64
	require.NoError(t, f.repo.db.QueryRow(`SELECT MAX(modified_at) FROM change_log WHERE entity_id = ?`, contact.ID.String()).Scan(&modified))

	require.NoError(t, f.repo.Upsert(ctx, contact.ID, "r-1", time.Unix(0, modified)))

	records, err := f.repo.StaleSynced(ctx, f.group.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestIneligibleSynced(t *testing.T) {
	f, done := newSyncFixture(t)
	defer done()
	ctx := context.Background()

	member := f.member(t, "Ada", "Lovelace")
	deleted := f.member(t, "Grace", "Hopper")
	departed := f.member(t, "Alan", "Turing")
	purged := f.member(t, "Edsger", "Dijkstra")
	pending := f.member(t, "Barbara", "Liskov")

	now := time.Now()
	for _, c := range []*models.Contact{member, deleted, departed, purged} {
		require.NoError(t, f.repo.Upsert(ctx, c.ID, "r-"+c.FirstName, now))
	}
	require.NoError(t, f.repo.Upsert(ctx, pending.ID, "", now))

	require.NoError(t, DeleteContact(f.repo.db, deleted.ID))
	require.NoError(t, RemoveGroupContact(f.repo.db, f.group.ID, departed.ID))
	require.NoError(t, PurgeContact(f.repo.db, purged.ID))
	require.NoError(t, DeleteContact(f.repo.db, pending.ID))
	f.refresh(t)

	records, err := f.repo.IneligibleSynced(ctx, f.group.ID, 10)
	require.NoError(t, err)

	var ids []uuid.UUID
	for _, r := range records {
		ids = append(ids, r.ContactID)
		assert.NotEmpty(t, r.RemoteID)
	}
	assert.ElementsMatch(t, []uuid.UUID{deleted.ID, departed.ID, purged.ID}, ids)

	limited, err := f.repo.IneligibleSynced(ctx, f.group.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSaveRunStats(t *testing.T) {
	f, done := newSyncFixture(t)
	defer done()

	at := time.Date(2024, 5, 4, 3, 2, 1, 0, time.UTC)
	require.NoError(t, f.repo.SaveRunStats(context.Background(), at, 7))

	settings, err := LoadSettings(f.repo.db)
	require.NoError(t, err)
	require.NotNil(t, settings.LastSync)
	assert.True(t, at.Equal(*settings.LastSync))
	assert.Equal(t, 7, settings.Processed)
}

func TestSyncRecordDeleteAll(t *testing.T) {
	f, done := newSyncFixture(t)
	defer done()
	ctx := context.Background()

	for _, name := range []string{"Ada", "Grace"} {
		c := f.member(t, name, "Test")
		require.NoError(t, f.repo.Upsert(ctx, c.ID, "r-"+name, time.Now()))
	}

	require.NoError(t, f.repo.DeleteAll(ctx))
	count, err := f.repo.CountSynced(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
