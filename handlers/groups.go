// ABOUTME: Group MCP tool handlers
// ABOUTME: Implements add_group, add_group_member, remove_group_member and list_groups tools
package handlers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/harperreed/gappsync/db"
	"github.com/harperreed/gappsync/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type GroupHandlers struct {
	db *sql.DB
}

func NewGroupHandlers(database *sql.DB) *GroupHandlers {
	return &GroupHandlers{db: database}
}

type AddGroupInput struct {
	Title       string `json:"title" jsonschema:"Group title (required)"`
	Employer    string `json:"employer,omitempty" jsonschema:"Smart group: match current employer"`
	JobTitle    string `json:"job_title,omitempty" jsonschema:"Smart group: match job title"`
	EmailDomain string `json:"email_domain,omitempty" jsonschema:"Smart group: match email domain"`
}

type GroupOutput struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Smart       bool   `json:"smart"`
	Active      bool   `json:"active"`
	Employer    string `json:"employer,omitempty"`
	JobTitle    string `json:"job_title,omitempty"`
	EmailDomain string `json:"email_domain,omitempty"`
}

func (h *GroupHandlers) AddGroup(_ context.Context, request *mcp.CallToolRequest, input AddGroupInput) (*mcp.CallToolResult, GroupOutput, error) {
	if input.Title == "" {
		return nil, GroupOutput{}, fmt.Errorf("title is required")
	}

	group := &models.Group{Title: input.Title}
	criteria := &models.SmartCriteria{Employer: input.Employer, JobTitle: input.JobTitle, EmailDomain: input.EmailDomain}
	if !criteria.IsEmpty() {
		group.Criteria = criteria
	}

	if err := db.CreateGroup(h.db, group); err != nil {
		return nil, GroupOutput{}, fmt.Errorf("failed to create group: %w", err)
	}

	return nil, groupToOutput(group), nil
}

type GroupMemberInput struct {
	GroupID   int64  `json:"group_id" jsonschema:"Group ID (required)"`
	ContactID string `json:"contact_id" jsonschema:"Contact ID (required)"`
}

type GroupMemberOutput struct {
	GroupID   int64  `json:"group_id"`
	ContactID string `json:"contact_id"`
	Status    string `json:"status"`
}

func (h *GroupHandlers) AddGroupMember(_ context.Context, request *mcp.CallToolRequest, input GroupMemberInput) (*mcp.CallToolResult, GroupMemberOutput, error) {
	contactID, err := uuid.Parse(input.ContactID)
	if err != nil {
		return nil, GroupMemberOutput{}, fmt.Errorf("invalid contact_id: %w", err)
	}
	if err := db.AddGroupContact(h.db, input.GroupID, contactID); err != nil {
		return nil, GroupMemberOutput{}, err
	}
	return nil, GroupMemberOutput{GroupID: input.GroupID, ContactID: contactID.String(), Status: db.MembershipAdded}, nil
}

func (h *GroupHandlers) RemoveGroupMember(_ context.Context, request *mcp.CallToolRequest, input GroupMemberInput) (*mcp.CallToolResult, GroupMemberOutput, error) {
	contactID, err := uuid.Parse(input.ContactID)
	if err != nil {
		return nil, GroupMemberOutput{}, fmt.Errorf("invalid contact_id: %w", err)
	}
	if err := db.RemoveGroupContact(h.db, input.GroupID, contactID); err != nil {
		return nil, GroupMemberOutput{}, err
	}
	return nil, GroupMemberOutput{GroupID: input.GroupID, ContactID: contactID.String(), Status: db.MembershipRemoved}, nil
}

type ListGroupsInput struct{}

type ListGroupsOutput struct {
	Groups []GroupOutput `json:"groups"`
}

func (h *GroupHandlers) ListGroups(_ context.Context, request *mcp.CallToolRequest, input ListGroupsInput) (*mcp.CallToolResult, ListGroupsOutput, error) {
	groups, err := db.ListGroups(h.db)
	if err != nil {
		return nil, ListGroupsOutput{}, err
	}

	out := make([]GroupOutput, len(groups))
	for i := range groups {
		out[i] = groupToOutput(&groups[i])
	}
	return nil, ListGroupsOutput{Groups: out}, nil
}

func groupToOutput(group *models.Group) GroupOutput {
	out := GroupOutput{
		ID:     group.ID,
		Title:  group.Title,
		Smart:  group.IsSmart(),
		Active: group.IsActive,
	}
	if group.Criteria != nil {
		out.Employer = group.Criteria.Employer
		out.JobTitle = group.Criteria.JobTitle
		out.EmailDomain = group.Criteria.EmailDomain
	}
	return out
}
