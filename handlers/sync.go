// ABOUTME: Sync MCP tool handlers
// ABOUTME: Implements googleapps_sync and googleapps_status tools
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/gappsync/db"
	"github.com/harperreed/gappsync/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Runner performs one recorded sync pass.
type Runner interface {
	Run(ctx context.Context, maxOverride int) (*models.JobLog, error)
}

type SyncHandlers struct {
	db     *sql.DB
	runner Runner
}

func NewSyncHandlers(database *sql.DB, runner Runner) *SyncHandlers {
	return &SyncHandlers{db: database, runner: runner}
}

type SyncInput struct {
	MaxProcessed int `json:"max_processed,omitempty" jsonschema:"Override the per-run contact budget"`
}

type SyncOutput struct {
	OK        bool     `json:"ok"`
	Code      string   `json:"code,omitempty"`
	Messages  []string `json:"messages"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Deleted   int      `json:"deleted"`
	Processed int      `json:"processed"`
}

// GoogleappsSync runs one pass. Sync failures are reported in the output
// rather than as tool errors so the agent sees the job result.
func (h *SyncHandlers) GoogleappsSync(ctx context.Context, request *mcp.CallToolRequest, input SyncInput) (*mcp.CallToolResult, SyncOutput, error) {
	if input.MaxProcessed < 0 {
		return nil, SyncOutput{}, fmt.Errorf("max_processed must not be negative")
	}

	entry, err := h.runner.Run(ctx, input.MaxProcessed)
	if entry == nil {
		return nil, SyncOutput{}, fmt.Errorf("sync failed: %w", err)
	}

	messages := entry.Messages
	if messages == nil {
		messages = []string{}
	}

	return nil, SyncOutput{
		OK:        entry.OK,
		Code:      entry.Code,
		Messages:  messages,
		Created:   entry.Created,
		Updated:   entry.Updated,
		Deleted:   entry.Deleted,
		Processed: entry.Processed,
	}, nil
}

type StatusInput struct {
	Jobs int `json:"jobs,omitempty" jsonschema:"Number of recent job log entries (default 5)"`
}

type JobOutput struct {
	ID        string   `json:"id"`
	RunAt     string   `json:"run_at"`
	OK        bool     `json:"ok"`
	Code      string   `json:"code,omitempty"`
	Messages  []string `json:"messages"`
	Processed int      `json:"processed"`
}

type StatusOutput struct {
	Configured   bool        `json:"configured"`
	Group        string      `json:"group,omitempty"`
	Backend      string      `json:"backend"`
	MaxProcessed int         `json:"max_processed"`
	LastSync     string      `json:"last_sync,omitempty"`
	Processed    int         `json:"processed"`
	Synced       int         `json:"synced"`
	RecentJobs   []JobOutput `json:"recent_jobs"`
}

func (h *SyncHandlers) GoogleappsStatus(ctx context.Context, request *mcp.CallToolRequest, input StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	jobs := input.Jobs
	if jobs <= 0 {
		jobs = 5
	}

	status, err := db.LoadStatus(ctx, h.db, jobs)
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("failed to load status: %w", err)
	}
	return nil, statusToOutput(status), nil
}

func statusToOutput(status *models.Status) StatusOutput {
	out := StatusOutput{
		Configured:   status.Configured,
		Group:        status.Group,
		Backend:      status.Backend,
		MaxProcessed: status.MaxProcessed,
		Processed:    status.Processed,
		Synced:       status.Synced,
		RecentJobs:   make([]JobOutput, len(status.RecentJobs)),
	}
	if status.LastSync != nil {
		out.LastSync = status.LastSync.Format(time.RFC3339)
	}

	for i, job := range status.RecentJobs {
		messages := job.Messages
		if messages == nil {
			messages = []string{}
		}
		out.RecentJobs[i] = JobOutput{
			ID:        job.ID,
			RunAt:     job.RunAt.Format(time.RFC3339),
			OK:        job.OK,
			Code:      job.Code,
			Messages:  messages,
			Processed: job.Processed,
		}
	}
	return out
}
