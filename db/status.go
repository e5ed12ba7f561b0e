// ABOUTME: Aggregated sync status for the status command and MCP tools
// ABOUTME: Combines settings, live synced count and recent job log entries
package db

import (
	"context"
	"database/sql"

	"github.com/harperreed/gappsync/models"
)

// LoadStatus reads the current sync status with up to jobs recent job log entries.
func LoadStatus(ctx context.Context, db *sql.DB, jobs int) (*models.Status, error) {
	settings, err := LoadSettings(db)
	if err != nil {
		return nil, err
	}

	synced, err := NewSyncRepository(db).CountSynced(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := ListJobLogs(db, jobs)
	if err != nil {
		return nil, err
	}

	return &models.Status{
		Configured:   settings.HasCredentials() && settings.Group != "",
		Group:        settings.Group,
		Backend:      settings.Backend,
		MaxProcessed: settings.MaxProcessed,
		LastSync:     settings.LastSync,
		Processed:    settings.Processed,
		Synced:       synced,
		RecentJobs:   recent,
	}, nil
}
