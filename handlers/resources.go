// ABOUTME: MCP resource handlers for exposing sync state
// ABOUTME: Provides read-only access to status, job log and groups via gappsync:// URIs
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/gappsync/db"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ResourceStatus = "gappsync://status"
	ResourceJobs   = "gappsync://jobs"
	ResourceGroups = "gappsync://groups"
)

type ResourceHandlers struct {
	db *sql.DB
}

func NewResourceHandlers(database *sql.DB) *ResourceHandlers {
	return &ResourceHandlers{db: database}
}

// Resources lists the resources ReadResource can serve.
func (h *ResourceHandlers) Resources() []*mcp.Resource {
	return []*mcp.Resource{
		{URI: ResourceStatus, Name: "status", Description: "Sync configuration and statistics", MIMEType: "application/json"},
		{URI: ResourceJobs, Name: "jobs", Description: "Recent sync job results", MIMEType: "application/json"},
		{URI: ResourceGroups, Name: "groups", Description: "CRM groups that can be synchronized", MIMEType: "application/json"},
	}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, "gappsync://") {
		return nil, fmt.Errorf("invalid URI scheme: expected gappsync://")
	}

	var payload any
	switch uri {
	case ResourceStatus:
		status, err := db.LoadStatus(ctx, h.db, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to load status: %w", err)
		}
		out := statusToOutput(status)
		out.RecentJobs = nil
		payload = out

	case ResourceJobs:
		status, err := db.LoadStatus(ctx, h.db, 50)
		if err != nil {
			return nil, fmt.Errorf("failed to load jobs: %w", err)
		}
		payload = statusToOutput(status).RecentJobs

	case ResourceGroups:
		groups, err := db.ListGroups(h.db)
		if err != nil {
			return nil, fmt.Errorf("failed to list groups: %w", err)
		}
		out := make([]GroupOutput, len(groups))
		for i := range groups {
			out[i] = groupToOutput(&groups[i])
		}
		payload = out

	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
