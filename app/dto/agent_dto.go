package dto

import (
	"time"
)

// AgentDTO represents a voice agent in API responses
type AgentDTO struct {
	UUID            string    `json:"uuid"`
	ExternalAgentID string    `json:"external_agent_id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	VoiceID         *string   `json:"voice_id,omitempty"`
	SystemPrompt    *string   `json:"system_prompt,omitempty"`
	Greeting        *string   `json:"greeting,omitempty"`
	Language        string    `json:"language"`
	IsActive        *bool     `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateAgentRequest represents the request to create a voice agent
type CreateAgentRequest struct {
	UserID       uint    `json:"-"`
	Name         string  `json:"name" validate:"required,min=1,max=255"`
	Description  *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	VoiceID      *string `json:"voice_id,omitempty" validate:"omitempty,max=255"`
	SystemPrompt *string `json:"system_prompt,omitempty" validate:"omitempty,max=20000"`
	Greeting     *string `json:"greeting,omitempty" validate:"omitempty,max=2000"`
	Language     *string `json:"language,omitempty" validate:"omitempty,min=2,max=10"`
}

// CreateAgentResponse represents the response after agent creation
type CreateAgentResponse struct {
	Message string   `json:"message" example:"Agent created successfully"`
	Agent   AgentDTO `json:"agent"`
}

// UpdateAgentRequest represents the request to update a voice agent
type UpdateAgentRequest struct {
	UUID         string  `json:"-"`
	UserID       uint    `json:"-"`
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description  *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	VoiceID      *string `json:"voice_id,omitempty" validate:"omitempty,max=255"`
	SystemPrompt *string `json:"system_prompt,omitempty" validate:"omitempty,max=20000"`
	Greeting     *string `json:"greeting,omitempty" validate:"omitempty,max=2000"`
	Language     *string `json:"language,omitempty" validate:"omitempty,min=2,max=10"`
}

// UpdateAgentResponse represents the response after an agent update
type UpdateAgentResponse struct {
	Message string   `json:"message" example:"Agent updated successfully"`
	Agent   AgentDTO `json:"agent"`
}

// ListAgentsResponse represents the list of the user's agents
type ListAgentsResponse struct {
	Agents []AgentDTO `json:"agents"`
}

// DeleteAgentResponse represents the response after agent deletion
type DeleteAgentResponse struct {
	Message string `json:"message" example:"Agent deleted successfully"`
}

// VoiceDTO represents an available synthesis voice
type VoiceDTO struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// ListVoicesResponse represents the available voices from the provider
type ListVoicesResponse struct {
	Voices []VoiceDTO `json:"voices"`
}

// TestCallRequest represents the request to place a single test call
type TestCallRequest struct {
	UserID      uint   `json:"-"`
	AgentUUID   string `json:"agent_uuid" validate:"required,uuid4"`
	PhoneNumber string `json:"phone_number" validate:"required,min=5,max=32"`
}

// TestCallResponse represents the outcome of a test call dispatch
type TestCallResponse struct {
	Message          string `json:"message" example:"Test call started"`
	ConversationUUID string `json:"conversation_uuid"`
	Status           string `json:"status" example:"in_progress"`
}
