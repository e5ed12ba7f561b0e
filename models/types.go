// ABOUTME: Data models for the CRM side of the directory sync
// ABOUTME: Defines Contact, SyncRecord, Settings, RunSummary, JobLog and category constants
package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact types.
const (
	ContactTypeIndividual   = "Individual"
	ContactTypeOrganization = "Organization"
	ContactTypeHousehold    = "Household"
)

// Location constants used by emails and phones.
const (
	LocationHome    = "home"
	LocationWork    = "work"
	LocationMain    = "main"
	LocationBilling = "billing"
	LocationOther   = "other"
)

// Phone kind constants.
const (
	PhoneKindPhone  = "phone"
	PhoneKindMobile = "mobile"
	PhoneKindFax    = "fax"
	PhoneKindPager  = "pager"
)

type Email struct {
	Address   string `json:"address"`
	Location  string `json:"location,omitempty"`
	IsPrimary bool   `json:"is_primary,omitempty"`
}

type Phone struct {
	Number    string `json:"number"`
	Extension string `json:"extension,omitempty"`
	Location  string `json:"location,omitempty"`
	Kind      string `json:"kind,omitempty"`
	IsPrimary bool   `json:"is_primary,omitempty"`
}

// Contact is a read-only snapshot of a CRM contact.
type Contact struct {
	ID              uuid.UUID `json:"id"`
	ContactType     string    `json:"contact_type"`
	FirstName       string    `json:"first_name,omitempty"`
	LastName        string    `json:"last_name,omitempty"`
	CurrentEmployer string    `json:"current_employer,omitempty"`
	JobTitle        string    `json:"job_title,omitempty"`
	Emails          []Email   `json:"emails,omitempty"`
	Phones          []Phone   `json:"phones,omitempty"`
	IsDeleted       bool      `json:"is_deleted"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DisplayName joins first and last name.
func (c *Contact) DisplayName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}

// SmartCriteria defines computed group membership. Empty fields are ignored,
// non-empty fields are AND-ed.
type SmartCriteria struct {
	Employer    string `json:"employer,omitempty" yaml:"employer,omitempty"`
	JobTitle    string `json:"job_title,omitempty" yaml:"job_title,omitempty"`
	EmailDomain string `json:"email_domain,omitempty" yaml:"email_domain,omitempty"`
}

// IsEmpty reports whether no criteria field is set.
func (c *SmartCriteria) IsEmpty() bool {
	return c == nil || (c.Employer == "" && c.JobTitle == "" && c.EmailDomain == "")
}

type Group struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Criteria  *SmartCriteria `json:"criteria,omitempty"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsSmart reports whether membership is computed from criteria.
func (g *Group) IsSmart() bool {
	return !g.Criteria.IsEmpty()
}

// SyncRecord tracks the remote identity of a contact and when it was last pushed.
type SyncRecord struct {
	ContactID    uuid.UUID  `json:"contact_id"`
	RemoteID     string     `json:"remote_id,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// IsSynced reports whether the record carries a remote id.
func (r *SyncRecord) IsSynced() bool {
	return r != nil && r.RemoteID != ""
}

// Settings defaults.
const (
	DefaultMaxProcessed = 25
	BackendGData        = "gdata"
	BackendPeople       = "people"
)

// Setting keys in the settings store.
const (
	SettingDomain         = "domain"
	SettingOAuthEmail     = "oauth_email"
	SettingOAuthKey       = "oauth_key"
	SettingOAuthSecret    = "oauth_secret"
	SettingGroup          = "group"
	SettingLastSync       = "last_sync"
	SettingProcessed      = "processed"
	SettingMaxProcessed   = "max_processed"
	SettingBackend        = "backend"
	SettingProfileBaseURL = "profile_base_url"
)

// Settings is the singleton sync configuration.
type Settings struct {
	Domain         string     `json:"domain" yaml:"domain"`
	OAuthEmail     string     `json:"oauth_email" yaml:"oauth_email"`
	OAuthKey       string     `json:"oauth_key" yaml:"oauth_key"`
	OAuthSecret    string     `json:"oauth_secret" yaml:"oauth_secret"`
	Group          string     `json:"group" yaml:"group"`
	LastSync       *time.Time `json:"last_sync,omitempty" yaml:"-"`
	Processed      int        `json:"processed" yaml:"-"`
	MaxProcessed   int        `json:"max_processed" yaml:"max_processed"`
	Backend        string     `json:"backend" yaml:"backend"`
	ProfileBaseURL string     `json:"profile_base_url,omitempty" yaml:"profile_base_url"`
}

// DefaultSettings returns settings with defaults applied.
func DefaultSettings() *Settings {
	return &Settings{
		MaxProcessed: DefaultMaxProcessed,
		Backend:      BackendGData,
	}
}

// HasCredentials reports whether the OAuth fields are all present.
func (s *Settings) HasCredentials() bool {
	return s.Domain != "" && s.OAuthEmail != "" && s.OAuthKey != "" && s.OAuthSecret != ""
}

// RunSummary describes one reconciliation run.
type RunSummary struct {
	Created         int       `json:"created"`
	Updated         int       `json:"updated"`
	Deleted         int       `json:"deleted"`
	Processed       int       `json:"processed"`
	Messages        []string  `json:"messages"`
	StartedAt       time.Time `json:"started_at"`
	BudgetExhausted bool      `json:"budget_exhausted"`
}

// JobLog is one persisted job result.
type JobLog struct {
	ID        string    `json:"id"`
	RunAt     time.Time `json:"run_at"`
	OK        bool      `json:"ok"`
	Code      string    `json:"code,omitempty"`
	Messages  []string  `json:"messages"`
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Deleted   int       `json:"deleted"`
	Processed int       `json:"processed"`
}

// Status is the admin-facing view of the sync state.
type Status struct {
	Configured   bool       `json:"configured"`
	Group        string     `json:"group,omitempty"`
	Backend      string     `json:"backend"`
	MaxProcessed int        `json:"max_processed"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
	Processed    int        `json:"processed"`
	Synced       int        `json:"synced"`
	RecentJobs   []JobLog   `json:"recent_jobs"`
}
