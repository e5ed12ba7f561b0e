// ABOUTME: Tests for group membership and cache materialization
// ABOUTME: Covers static groups, smart criteria, explicit removals and inactive groups
package db

import (
	"context"
	"testing"

	"github.com/harperreed/gappsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndListGroups(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()

	static := createTestGroup(t, db, "Board", nil)
	smart := createTestGroup(t, db, "Acme", &models.SmartCriteria{Employer: "Acme"})

	assert.NotZero(t, static.ID)
	assert.True(t, static.IsActive)

	got, err := GetGroup(db, smart.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsSmart())
	assert.Equal(t, "Acme", got.Criteria.Employer)

	groups, err := ListGroups(db)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Acme", groups[0].Title)
	assert.Nil(t, groups[1].Criteria)

	missing, err := GetGroup(db, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRefreshStaticGroupCache(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	group := createTestGroup(t, db, "Board", nil)
	ada := createTestContact(t, db, "Ada", "Lovelace")
	grace := createTestContact(t, db, "Grace", "Hopper")

	require.NoError(t, AddGroupContact(db, group.ID, ada.ID))
	require.NoError(t, AddGroupContact(db, group.ID, grace.ID))
	require.NoError(t, RefreshGroupCache(ctx, db, group.ID))

	member, err := IsGroupMember(db, group.ID, ada.ID)
	require.NoError(t, err)
	assert.True(t, member)

	require.NoError(t, RemoveGroupContact(db, group.ID, grace.ID))

	// The cache is stale until refreshed.
	member, err = IsGroupMember(db, group.ID, grace.ID)
	require.NoError(t, err)
	assert.True(t, member)

	require.NoError(t, RefreshGroupCache(ctx, db, group.ID))
	member, err = IsGroupMember(db, group.ID, grace.ID)
	require.NoError(t, err)
	assert.False(t, member)
}

func TestRefreshSmartGroupCache(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	group := createTestGroup(t, db, "Acme engineers", &models.SmartCriteria{Employer: "Acme", EmailDomain: "acme.com"})

	match := &models.Contact{FirstName: "Wile", LastName: "Coyote", CurrentEmployer: "Acme",
		Emails: []models.Email{{Address: "wile@ACME.com"}}}
	require.NoError(t, CreateContact(db, match))

	wrongDomain := &models.Contact{FirstName: "Road", LastName: "Runner", CurrentEmployer: "Acme",
		Emails: []models.Email{{Address: "road@notacme.org"}}}
	require.NoError(t, CreateContact(db, wrongDomain))

	removed := &models.Contact{FirstName: "Marvin", CurrentEmployer: "Acme",
		Emails: []models.Email{{Address: "marvin@acme.com"}}}
	require.NoError(t, CreateContact(db, removed))
	require.NoError(t, RemoveGroupContact(db, group.ID, removed.ID))

	deleted := &models.Contact{FirstName: "Elmer", CurrentEmployer: "Acme",
		Emails: []models.Email{{Address: "elmer@acme.com"}}}
	require.NoError(t, CreateContact(db, deleted))
	require.NoError(t, DeleteContact(db, deleted.ID))

	static := createTestContact(t, db, "Bugs", "Bunny")
	require.NoError(t, AddGroupContact(db, group.ID, static.ID))

	require.NoError(t, RefreshGroupCache(ctx, db, group.ID))

	expect := map[string]bool{
		"match":       true,
		"wrongDomain": false,
		"removed":     false,
		"deleted":     false,
		"static":      true,
	}
	contacts := map[string]*models.Contact{
		"match":       match,
		"wrongDomain": wrongDomain,
		"removed":     removed,
		"deleted":     deleted,
		"static":      static,
	}
	for name, contact := range contacts {
		member, err := IsGroupMember(db, group.ID, contact.ID)
		require.NoError(t, err)
		assert.Equal(t, expect[name], member, name)
	}
}

func TestRefreshGroupCacheErrors(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	assert.ErrorIs(t, RefreshGroupCache(ctx, db, 42), ErrGroupNotFound)

	group := createTestGroup(t, db, "Dormant", nil)
	require.NoError(t, SetGroupActive(db, group.ID, false))
	assert.ErrorIs(t, RefreshGroupCache(ctx, db, group.ID), ErrGroupInactive)

	assert.ErrorIs(t, SetGroupActive(db, 42, true), ErrGroupNotFound)
}
