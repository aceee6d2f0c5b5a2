// Package businessflow contains the core business logic and use cases for voice campaign workflows
package businessflow

import (
	"time"

	"github.com/voximate/voximate/app/dto"
	"github.com/voximate/voximate/models"
)

// RequestIDKey is the context key used to propagate the request id into flows
const RequestIDKey = "X-Request-ID"

// ClientMetadata carries request context captured at the transport layer
type ClientMetadata struct {
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	DeviceInfo map[string]any `json:"device_info,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	Additional map[string]any `json:"additional,omitempty"`
}

// NewClientMetadata creates client metadata from request information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		DeviceInfo: make(map[string]any),
		Additional: make(map[string]any),
	}
}

// SetRequestID sets the request ID for tracking
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetSessionID sets the session ID for tracking
func (cm *ClientMetadata) SetSessionID(sessionID string) {
	cm.SessionID = sessionID
}

// AddMetadata adds additional metadata
func (cm *ClientMetadata) AddMetadata(key string, value any) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]any)
	}
	cm.Additional[key] = value
}

// ToUserInfo converts a user model to its auth response representation
func ToUserInfo(user *models.User) dto.UserInfo {
	return dto.UserInfo{
		ID:          user.ID,
		UUID:        user.UUID.String(),
		Email:       user.Email,
		FullName:    user.FullName,
		CompanyName: user.CompanyName,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt.Format(time.RFC3339),
	}
}

// ToProfileDTO converts a user model to its profile representation
func ToProfileDTO(user *models.User) dto.ProfileDTO {
	profile := dto.ProfileDTO{
		ID:                      user.ID,
		UUID:                    user.UUID.String(),
		Email:                   user.Email,
		FullName:                user.FullName,
		CompanyName:             user.CompanyName,
		CallerNumber:            user.CallerNumber,
		HasVoiceCredentials:     user.HasVoiceCredentials(),
		HasTelephonyCredentials: user.HasTelephonyCredentials(),
		CreatedAt:               user.CreatedAt.Format(time.RFC3339),
	}
	if user.LastLoginAt != nil {
		lastLogin := user.LastLoginAt.Format(time.RFC3339)
		profile.LastLoginAt = &lastLogin
	}
	return profile
}

// ToAgentDTO converts an agent model to its API representation
func ToAgentDTO(agent *models.Agent) dto.AgentDTO {
	return dto.AgentDTO{
		UUID:            agent.UUID.String(),
		ExternalAgentID: agent.ExternalAgentID,
		Name:            agent.Name,
		Description:     agent.Description,
		VoiceID:         agent.VoiceID,
		SystemPrompt:    agent.SystemPrompt,
		Greeting:        agent.Greeting,
		Language:        agent.Language,
		IsActive:        agent.IsActive,
		CreatedAt:       agent.CreatedAt,
		UpdatedAt:       agent.UpdatedAt,
	}
}

// ToCampaignDTO converts a campaign model to its API representation.
// The contact list itself is never exposed through list and get endpoints.
func ToCampaignDTO(campaign *models.Campaign) dto.CampaignDTO {
	out := dto.CampaignDTO{
		UUID:            campaign.UUID.String(),
		Name:            campaign.Name,
		Description:     campaign.Description,
		Status:          string(campaign.Status),
		TotalContacts:   campaign.TotalContacts,
		CallsDispatched: campaign.CallsDispatched,
		CallsCompleted:  campaign.CallsCompleted,
		CallsFailed:     campaign.CallsFailed,
		ContactColumns:  campaign.ContactColumns,
		ScheduledAt:     campaign.ScheduledAt,
		StartedAt:       campaign.StartedAt,
		CompletedAt:     campaign.CompletedAt,
		CreatedAt:       campaign.CreatedAt,
		UpdatedAt:       campaign.UpdatedAt,
	}
	if campaign.Agent != nil {
		agentUUID := campaign.Agent.UUID.String()
		out.AgentUUID = &agentUUID
		out.AgentName = &campaign.Agent.Name
	}
	return out
}

// ToConversationDTO converts a conversation model to its API representation
func ToConversationDTO(conversation *models.Conversation) dto.ConversationDTO {
	out := dto.ConversationDTO{
		UUID:                   conversation.UUID.String(),
		ExternalConversationID: conversation.ExternalConversationID,
		PhoneNumber:            conversation.PhoneNumber,
		ContactName:            conversation.ContactName,
		Status:                 string(conversation.Status),
		Transcript:             conversation.Transcript,
		Summary:                conversation.Summary,
		Success:                conversation.Success,
		DurationSecs:           conversation.DurationSecs,
		Cost:                   conversation.Cost,
		ErrorMessage:           conversation.ErrorMessage,
		StartedAt:              conversation.StartedAt,
		EndedAt:                conversation.EndedAt,
		CreatedAt:              conversation.CreatedAt,
	}
	if conversation.Agent != nil {
		agentUUID := conversation.Agent.UUID.String()
		out.AgentUUID = &agentUUID
		out.AgentName = &conversation.Agent.Name
	}
	if conversation.Campaign != nil {
		campaignUUID := conversation.Campaign.UUID.String()
		out.CampaignUUID = &campaignUUID
		out.CampaignName = &conversation.Campaign.Name
	}
	return out
}
