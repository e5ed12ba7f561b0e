// ABOUTME: Shared fixtures for database package tests
// ABOUTME: Opens migrated in-memory databases and seeds contacts and groups
package db

import (
	"database/sql"
	"testing"

	"github.com/harperreed/gappsync/models"
	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open in-memory db: %v", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if err := InitSchema(db); err != nil {
		_ = db.Close()
		t.Fatalf("InitSchema failed: %v", err)
	}
	return db
}

func createTestContact(t *testing.T, db *sql.DB, first, last string) *models.Contact {
	t.Helper()

	contact := &models.Contact{
		FirstName: first,
		LastName:  last,
		Emails:    []models.Email{{Address: first + "@example.org", Location: models.LocationWork, IsPrimary: true}},
	}
	if err := CreateContact(db, contact); err != nil {
		t.Fatalf("CreateContact failed: %v", err)
	}
	return contact
}

func createTestGroup(t *testing.T, db *sql.DB, title string, criteria *models.SmartCriteria) *models.Group {
	t.Helper()

	group := &models.Group{Title: title, Criteria: criteria}
	if err := CreateGroup(db, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return group
}
