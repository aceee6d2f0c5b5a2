package dto

import (
	"time"
)

// CampaignDTO represents an outbound call campaign in API responses
type CampaignDTO struct {
	UUID            string     `json:"uuid"`
	Name            string     `json:"name"`
	Description     *string    `json:"description,omitempty"`
	Status          string     `json:"status"`
	AgentUUID       *string    `json:"agent_uuid,omitempty"`
	AgentName       *string    `json:"agent_name,omitempty"`
	TotalContacts   int        `json:"total_contacts"`
	CallsDispatched int        `json:"calls_dispatched"`
	CallsCompleted  int        `json:"calls_completed"`
	CallsFailed     int        `json:"calls_failed"`
	ContactColumns  []string   `json:"contact_columns,omitempty"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// CreateCampaignRequest represents the request to create a campaign
type CreateCampaignRequest struct {
	UserID      uint       `json:"-"`
	Name        string     `json:"name" validate:"required,min=1,max=255"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	AgentUUID   *string    `json:"agent_uuid,omitempty" validate:"omitempty,uuid4"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// CreateCampaignResponse represents the response after campaign creation
type CreateCampaignResponse struct {
	Message  string      `json:"message" example:"Campaign created successfully"`
	Campaign CampaignDTO `json:"campaign"`
}

// UpdateCampaignRequest represents the request to update a campaign
type UpdateCampaignRequest struct {
	UUID        string     `json:"-"`
	UserID      uint       `json:"-"`
	Name        *string    `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	AgentUUID   *string    `json:"agent_uuid,omitempty" validate:"omitempty,uuid4"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// UpdateCampaignResponse represents the response after a campaign update
type UpdateCampaignResponse struct {
	Message  string      `json:"message" example:"Campaign updated successfully"`
	Campaign CampaignDTO `json:"campaign"`
}

// GetCampaignResponse wraps a single campaign payload
type GetCampaignResponse struct {
	Campaign CampaignDTO `json:"campaign"`
}

// ListCampaignsRequest represents the request to list campaigns
type ListCampaignsRequest struct {
	UserID   uint    `json:"-"`
	Status   *string `json:"-"`
	Page     int     `json:"-"`
	PageSize int     `json:"-"`
}

// ListCampaignsResponse represents a page of the user's campaigns
type ListCampaignsResponse struct {
	Campaigns  []CampaignDTO `json:"campaigns"`
	Pagination PaginationDTO `json:"pagination"`
}

// DeleteCampaignResponse represents the response after campaign deletion
type DeleteCampaignResponse struct {
	Message string `json:"message" example:"Campaign deleted successfully"`
}

// UploadContactsResponse represents the outcome of a contact file upload
type UploadContactsResponse struct {
	Message       string   `json:"message" example:"Contacts uploaded successfully"`
	TotalContacts int      `json:"total_contacts" example:"250"`
	SkippedRows   int      `json:"skipped_rows" example:"3"`
	Columns       []string `json:"columns"`
}

// LaunchCampaignResponse represents the response after launching a campaign
type LaunchCampaignResponse struct {
	Message       string `json:"message" example:"Campaign launched"`
	UUID          string `json:"uuid"`
	Status        string `json:"status" example:"running"`
	TotalContacts int    `json:"total_contacts"`
}

// CampaignControlResponse represents the response to pause, resume and cancel operations
type CampaignControlResponse struct {
	Message string `json:"message"`
	UUID    string `json:"uuid"`
	Status  string `json:"status"`
}

// CampaignStatusResponse represents the live status snapshot used by polling clients
type CampaignStatusResponse struct {
	UUID            string           `json:"uuid"`
	Status          string           `json:"status"`
	TotalContacts   int              `json:"total_contacts"`
	CallsDispatched int              `json:"calls_dispatched"`
	CallsCompleted  int              `json:"calls_completed"`
	CallsFailed     int              `json:"calls_failed"`
	StatusCounts    map[string]int64 `json:"status_counts"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
