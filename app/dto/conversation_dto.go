package dto

import (
	"time"
)

// ConversationDTO represents a call record in API responses
type ConversationDTO struct {
	UUID                   string     `json:"uuid"`
	CampaignUUID           *string    `json:"campaign_uuid,omitempty"`
	CampaignName           *string    `json:"campaign_name,omitempty"`
	AgentUUID              *string    `json:"agent_uuid,omitempty"`
	AgentName              *string    `json:"agent_name,omitempty"`
	ExternalConversationID *string    `json:"external_conversation_id,omitempty"`
	PhoneNumber            string     `json:"phone_number"`
	ContactName            *string    `json:"contact_name,omitempty"`
	Status                 string     `json:"status"`
	Transcript             *string    `json:"transcript,omitempty"`
	Summary                *string    `json:"summary,omitempty"`
	Success                *bool      `json:"success,omitempty"`
	DurationSecs           *int       `json:"duration_secs,omitempty"`
	Cost                   *float64   `json:"cost,omitempty"`
	ErrorMessage           *string    `json:"error_message,omitempty"`
	StartedAt              *time.Time `json:"started_at,omitempty"`
	EndedAt                *time.Time `json:"ended_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

// ListConversationsRequest represents the request to list call history
type ListConversationsRequest struct {
	UserID       uint    `json:"-"`
	CampaignUUID *string `json:"-"`
	AgentUUID    *string `json:"-"`
	Status       *string `json:"-"`
	PhoneNumber  *string `json:"-"`
	Page         int     `json:"-"`
	PageSize     int     `json:"-"`
}

// ListConversationsResponse represents a page of call history
type ListConversationsResponse struct {
	Conversations []ConversationDTO `json:"conversations"`
	Pagination    PaginationDTO     `json:"pagination"`
}

// GetConversationResponse wraps a single conversation payload
type GetConversationResponse struct {
	Conversation ConversationDTO `json:"conversation"`
}

// DeleteConversationResponse represents the response after record deletion
type DeleteConversationResponse struct {
	Message string `json:"message" example:"Conversation deleted successfully"`
}
