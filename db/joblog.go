// ABOUTME: Job log persistence for scheduled and manual sync runs
// ABOUTME: Stores one row per run with its outcome code and summary messages
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/gappsync/models"
	"github.com/oklog/ulid/v2"
)

// CreateJobLog persists a job result, assigning a ULID when the id is empty.
func CreateJobLog(db *sql.DB, entry *models.JobLog) error {
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.RunAt.IsZero() {
		entry.RunAt = time.Now().UTC()
	}

	messages := entry.Messages
	if messages == nil {
		messages = []string{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	var code sql.NullString
	if entry.Code != "" {
		code = sql.NullString{String: entry.Code, Valid: true}
	}

	_, err = db.Exec(`
		INSERT INTO job_log (id, run_at, ok, code, messages, created, updated, deleted, processed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.RunAt, entry.OK, code, string(data),
		entry.Created, entry.Updated, entry.Deleted, entry.Processed)
	if err != nil {
		return fmt.Errorf("failed to create job log: %w", err)
	}
	return nil
}

// ListJobLogs returns the most recent entries first.
func ListJobLogs(db *sql.DB, limit int) ([]models.JobLog, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.Query(`
		SELECT id, run_at, ok, code, messages, created, updated, deleted, processed
		FROM job_log
		ORDER BY run_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []models.JobLog
	for rows.Next() {
		var entry models.JobLog
		var code sql.NullString
		var messages string
		if err := rows.Scan(&entry.ID, &entry.RunAt, &entry.OK, &code, &messages,
			&entry.Created, &entry.Updated, &entry.Deleted, &entry.Processed); err != nil {
			return nil, err
		}
		entry.Code = code.String
		if err := json.Unmarshal([]byte(messages), &entry.Messages); err != nil {
			return nil, fmt.Errorf("failed to decode messages for job %s: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteJobLogs clears the job history.
func DeleteJobLogs(db *sql.DB) error {
	if _, err := db.Exec(`DELETE FROM job_log`); err != nil {
		return fmt.Errorf("failed to delete job logs: %w", err)
	}
	return nil
}
