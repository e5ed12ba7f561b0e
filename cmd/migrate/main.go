// ABOUTME: Migration utility for the gappsync database.
// ABOUTME: Backs up the database file, then applies, reports or rolls back schema migrations.

package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/harperreed/gappsync/db"
	_ "github.com/mattn/go-sqlite3"
)

// requiredTables must exist once the schema is current.
var requiredTables = []string{
	"contacts", "emails", "phones", "groups", "group_contacts", "group_contact_cache",
	"change_log", "sync_records", "settings", "job_log",
}

func main() {
	dbPath := flag.String("db", filepath.Join(xdg.DataHome, "gappsync", "gappsync.db"), "Path to database file")
	command := flag.String("command", "up", "Migration command: up, status or down")
	dryRun := flag.Bool("dry-run", false, "Show what would happen without making changes")
	backup := flag.Bool("backup", true, "Create backup before migration")
	flag.Parse()

	if err := migrate(*dbPath, *command, *dryRun, *backup); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}

func migrate(dbPath, command string, dryRun, createBackup bool) error {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database file does not exist: %s", dbPath)
	}

	database, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close() }()
	database.SetMaxOpenConns(1)

	tables, err := getCurrentTables(database)
	if err != nil {
		return fmt.Errorf("failed to get current tables: %w", err)
	}
	log.Printf("Current tables: %v", tables)

	if command == "status" {
		return printStatus(database, tables)
	}
	if command != "up" && command != "down" {
		return fmt.Errorf("unknown command %q (up|status|down)", command)
	}

	if dryRun {
		version, _ := db.SchemaVersion(database)
		log.Printf("[DRY RUN] Schema version %d, would run %q", version, command)
		if missing := missingTables(tables); len(missing) > 0 {
			log.Printf("[DRY RUN] Missing tables: %v", missing)
		}
		return nil
	}

	if createBackup {
		backupPath, err := backupDatabase(dbPath)
		if err != nil {
			return err
		}
		log.Printf("Backup created: %s", backupPath)
	}

	switch command {
	case "up":
		if err := db.InitSchema(database); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	case "down":
		if err := db.RollbackSchema(database); err != nil {
			return fmt.Errorf("failed to roll back: %w", err)
		}
	}

	version, err := db.SchemaVersion(database)
	if err != nil {
		return err
	}
	log.Printf("Migration %s completed, schema version %d", command, version)
	return nil
}

func printStatus(database *sql.DB, tables []string) error {
	version, err := db.SchemaVersion(database)
	if err != nil {
		return err
	}
	log.Printf("Schema version: %d", version)

	if missing := missingTables(tables); len(missing) > 0 {
		log.Printf("Missing tables: %v (run with -command up)", missing)
	} else {
		log.Printf("All tables present")
	}
	return nil
}

func backupDatabase(dbPath string) (string, error) {
	backupPath := fmt.Sprintf("%s.backup.%s", dbPath, time.Now().Format("20060102-150405"))

	input, err := os.ReadFile(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to read database: %w", err)
	}
	if err := os.WriteFile(backupPath, input, 0600); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	return backupPath, nil
}

func getCurrentTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}

	return tables, rows.Err()
}

func missingTables(tables []string) []string {
	present := make(map[string]bool, len(tables))
	for _, t := range tables {
		present[t] = true
	}

	var missing []string
	for _, t := range requiredTables {
		if !present[t] {
			missing = append(missing, t)
		}
	}
	return missing
}
