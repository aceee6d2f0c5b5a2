package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Agent mirrors a conversational agent configured at the voice provider.
// ExternalAgentID is the provider-side identifier used on outbound calls.
type Agent struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_agents_uuid" json:"uuid"`
	UserID          uint      `gorm:"not null;index:idx_agents_user_id;uniqueIndex:uk_agents_user_external" json:"user_id"`
	User            *User     `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	ExternalAgentID string    `gorm:"size:128;not null;uniqueIndex:uk_agents_user_external" json:"external_agent_id"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	Description     *string   `gorm:"type:text" json:"description,omitempty"`
	VoiceID         *string   `gorm:"size:128" json:"voice_id,omitempty"`
	SystemPrompt    *string   `gorm:"type:text" json:"system_prompt,omitempty"`
	Greeting        *string   `gorm:"type:text" json:"greeting,omitempty"`
	Language        string    `gorm:"size:16;default:'en'" json:"language"`
	IsActive        *bool     `gorm:"default:true;index:idx_agents_is_active" json:"is_active"`
	CreatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_agents_created_at" json:"created_at"`
	UpdatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Agent) TableName() string {
	return "agents"
}

// BeforeCreate is called before creating a new record
func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	return nil
}

// AgentFilter represents filter criteria for agent queries
type AgentFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	UserID          *uint
	ExternalAgentID *string
	Name            *string
	IsActive        *bool
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}
