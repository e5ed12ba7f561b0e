// ABOUTME: Contact MCP tool handlers
// ABOUTME: Implements add_contact, find_contacts, update_contact and delete_contact tools
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/gappsync/db"
	"github.com/harperreed/gappsync/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ContactHandlers struct {
	db *sql.DB
}

func NewContactHandlers(database *sql.DB) *ContactHandlers {
	return &ContactHandlers{db: database}
}

type AddContactInput struct {
	FirstName     string `json:"first_name,omitempty" jsonschema:"Given name"`
	LastName      string `json:"last_name,omitempty" jsonschema:"Family name"`
	Employer      string `json:"employer,omitempty" jsonschema:"Current employer"`
	JobTitle      string `json:"job_title,omitempty" jsonschema:"Job title"`
	Email         string `json:"email,omitempty" jsonschema:"Primary email address"`
	EmailLocation string `json:"email_location,omitempty" jsonschema:"Email location: home, work or other"`
	Phone         string `json:"phone,omitempty" jsonschema:"Primary phone number"`
	PhoneLocation string `json:"phone_location,omitempty" jsonschema:"Phone location: home, work, main, billing or other"`
	PhoneKind     string `json:"phone_kind,omitempty" jsonschema:"Phone kind: phone, mobile, fax or pager"`
	GroupID       int64  `json:"group_id,omitempty" jsonschema:"Add the new contact to this group"`
}

type ContactOutput struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ContactType string   `json:"contact_type"`
	Employer    string   `json:"employer,omitempty"`
	JobTitle    string   `json:"job_title,omitempty"`
	Emails      []string `json:"emails,omitempty"`
	IsDeleted   bool     `json:"is_deleted"`
	UpdatedAt   string   `json:"updated_at"`
}

func (h *ContactHandlers) AddContact(_ context.Context, request *mcp.CallToolRequest, input AddContactInput) (*mcp.CallToolResult, ContactOutput, error) {
	if input.FirstName == "" && input.LastName == "" {
		return nil, ContactOutput{}, fmt.Errorf("first_name or last_name is required")
	}

	contact := &models.Contact{
		FirstName:       input.FirstName,
		LastName:        input.LastName,
		CurrentEmployer: input.Employer,
		JobTitle:        input.JobTitle,
	}
	if input.Email != "" {
		contact.Emails = []models.Email{{Address: input.Email, Location: input.EmailLocation, IsPrimary: true}}
	}
	if input.Phone != "" {
		contact.Phones = []models.Phone{{Number: input.Phone, Location: input.PhoneLocation, Kind: input.PhoneKind, IsPrimary: true}}
	}

	if err := db.CreateContact(h.db, contact); err != nil {
		return nil, ContactOutput{}, fmt.Errorf("failed to create contact: %w", err)
	}

	if input.GroupID != 0 {
		if err := db.AddGroupContact(h.db, input.GroupID, contact.ID); err != nil {
			return nil, ContactOutput{}, fmt.Errorf("contact created but not added to group: %w", err)
		}
	}

	return nil, contactToOutput(contact), nil
}

type FindContactsInput struct {
	Query string `json:"query,omitempty" jsonschema:"Search query (searches name and employer)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 10)"`
}

type FindContactsOutput struct {
	Contacts []ContactOutput `json:"contacts"`
}

func (h *ContactHandlers) FindContacts(_ context.Context, request *mcp.CallToolRequest, input FindContactsInput) (*mcp.CallToolResult, FindContactsOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = 10
	}

	contacts, err := db.FindContacts(h.db, input.Query, limit)
	if err != nil {
		return nil, FindContactsOutput{}, fmt.Errorf("failed to find contacts: %w", err)
	}

	result := make([]ContactOutput, len(contacts))
	for i := range contacts {
		result[i] = contactToOutput(&contacts[i])
	}

	return nil, FindContactsOutput{Contacts: result}, nil
}

type DeleteContactInput struct {
	ID string `json:"id" jsonschema:"Contact ID (required)"`
}

type DeleteContactOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DeleteContact moves a contact to the trash; the next sync removes it from the directory.
func (h *ContactHandlers) DeleteContact(_ context.Context, request *mcp.CallToolRequest, input DeleteContactInput) (*mcp.CallToolResult, DeleteContactOutput, error) {
	contactID, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, DeleteContactOutput{}, fmt.Errorf("invalid id: %w", err)
	}

	if err := db.DeleteContact(h.db, contactID); err != nil {
		return nil, DeleteContactOutput{}, fmt.Errorf("failed to delete contact: %w", err)
	}

	return nil, DeleteContactOutput{ID: contactID.String(), Deleted: true}, nil
}

func contactToOutput(contact *models.Contact) ContactOutput {
	out := ContactOutput{
		ID:          contact.ID.String(),
		Name:        contact.DisplayName(),
		ContactType: contact.ContactType,
		Employer:    contact.CurrentEmployer,
		JobTitle:    contact.JobTitle,
		IsDeleted:   contact.IsDeleted,
		UpdatedAt:   contact.UpdatedAt.Format(time.RFC3339),
	}
	for _, e := range contact.Emails {
		out.Emails = append(out.Emails, e.Address)
	}
	return out
}

type UpdateContactInput struct {
	ID        string  `json:"id" jsonschema:"Contact ID (required)"`
	FirstName *string `json:"first_name,omitempty" jsonschema:"New given name"`
	LastName  *string `json:"last_name,omitempty" jsonschema:"New family name"`
	Employer  *string `json:"employer,omitempty" jsonschema:"New current employer"`
	JobTitle  *string `json:"job_title,omitempty" jsonschema:"New job title"`
	Email     *string `json:"email,omitempty" jsonschema:"Replace the primary email address"`
}

// UpdateContact changes the given fields; the change is pushed on the next sync.
func (h *ContactHandlers) UpdateContact(_ context.Context, request *mcp.CallToolRequest, input UpdateContactInput) (*mcp.CallToolResult, ContactOutput, error) {
	contactID, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, ContactOutput{}, fmt.Errorf("invalid id: %w", err)
	}

	contact, err := db.GetContact(h.db, contactID)
	if err != nil {
		return nil, ContactOutput{}, fmt.Errorf("failed to get contact: %w", err)
	}
	if contact == nil {
		return nil, ContactOutput{}, db.ErrContactNotFound
	}

	if input.FirstName != nil {
		contact.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		contact.LastName = *input.LastName
	}
	if input.Employer != nil {
		contact.CurrentEmployer = *input.Employer
	}
	if input.JobTitle != nil {
		contact.JobTitle = *input.JobTitle
	}
	if input.Email != nil {
		contact.Emails = replacePrimaryEmail(contact.Emails, *input.Email)
	}

	if err := db.UpdateContact(h.db, contact); err != nil {
		return nil, ContactOutput{}, fmt.Errorf("failed to update contact: %w", err)
	}

	return nil, contactToOutput(contact), nil
}

func replacePrimaryEmail(emails []models.Email, address string) []models.Email {
	for i := range emails {
		if emails[i].IsPrimary {
			if address == "" {
				return append(emails[:i:i], emails[i+1:]...)
			}
			emails[i].Address = address
			return emails
		}
	}
	if address == "" {
		return emails
	}
	return append([]models.Email{{Address: address, IsPrimary: true}}, emails...)
}
