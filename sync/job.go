// ABOUTME: Scheduled job wrapper around the reconciler
// ABOUTME: Loads settings, runs one sync pass and writes the result to the job log
package sync

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/harperreed/gappsync/db"
	"github.com/harperreed/gappsync/models"
)

// Job runs reconciliation passes against one database. Callers must not run
// two passes concurrently.
type Job struct {
	db         *sql.DB
	reconciler *Reconciler
	logger     *log.Logger
}

// NewJob wires the SQLite store and a directory session per run.
func NewJob(database *sql.DB, logger *log.Logger, opts Options) *Job {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	factory := func(ctx context.Context, settings models.Settings) (Directory, error) {
		return NewDirectory(ctx, settings, opts)
	}

	return &Job{
		db:         database,
		reconciler: NewReconciler(db.NewSyncRepository(database), factory, WithLogger(logger)),
		logger:     logger,
	}
}

// Run performs one pass and records it. The job log entry is returned even
// when the pass fails.
func (j *Job) Run(ctx context.Context, maxOverride int) (*models.JobLog, error) {
	settings, err := db.LoadSettings(j.db)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	summary, runErr := j.reconciler.RunSync(ctx, *settings, maxOverride)

	entry := &models.JobLog{
		RunAt:     summary.StartedAt,
		OK:        runErr == nil,
		Messages:  summary.Messages,
		Created:   summary.Created,
		Updated:   summary.Updated,
		Deleted:   summary.Deleted,
		Processed: summary.Processed,
	}
	if runErr != nil {
		entry.Code = string(KindOf(runErr))
		if entry.Code == "" {
			entry.Code = "error"
		}
		entry.Messages = append(entry.Messages, runErr.Error())
	}

	if err := db.CreateJobLog(j.db, entry); err != nil {
		j.logger.Error("failed to write job log", "err", err)
		if runErr == nil {
			return entry, err
		}
	}

	return entry, runErr
}
