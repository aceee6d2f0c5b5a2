package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voximate/voximate/utils"
	"gorm.io/gorm"
)

// ConversationStatus represents the status of a single outbound call
type ConversationStatus string

const (
	ConversationStatusPending    ConversationStatus = "pending"
	ConversationStatusInitiating ConversationStatus = "initiating"
	ConversationStatusInProgress ConversationStatus = "in_progress"
	ConversationStatusConnected  ConversationStatus = "connected"
	ConversationStatusCompleted  ConversationStatus = "completed"
	ConversationStatusFailed     ConversationStatus = "failed"
	ConversationStatusNoAnswer   ConversationStatus = "no_answer"
	ConversationStatusBusy       ConversationStatus = "busy"
	ConversationStatusCancelled  ConversationStatus = "cancelled"
)

// String returns the string representation of the status
func (s ConversationStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationStatusPending,
		ConversationStatusInitiating, ConversationStatusInProgress,
		ConversationStatusConnected, ConversationStatusCompleted,
		ConversationStatusFailed, ConversationStatusNoAnswer,
		ConversationStatusBusy, ConversationStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the call has finished one way or another.
func (s ConversationStatus) IsTerminal() bool {
	switch s {
	case ConversationStatusCompleted, ConversationStatusFailed,
		ConversationStatusNoAnswer, ConversationStatusBusy,
		ConversationStatusCancelled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ConversationStatus
func (s *ConversationStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ConversationStatus(v)
	case []byte:
		*s = ConversationStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ConversationStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ConversationStatus
func (s ConversationStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ConversationStatus: %s", s)
	}
	return string(s), nil
}

// ConversationMetadata carries dispatch correlation ids and auxiliary
// webhook data, persisted as JSONB.
type ConversationMetadata map[string]any

// Value implements the driver.Valuer interface for ConversationMetadata
func (m ConversationMetadata) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(ConversationMetadata{})
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for ConversationMetadata
func (m *ConversationMetadata) Scan(value any) error {
	if value == nil {
		*m = ConversationMetadata{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ConversationMetadata", value)
	}

	return json.Unmarshal(bytes, m)
}

// Conversation represents one outbound call and its post-call record
type Conversation struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_conversations_uuid" json:"uuid"`
	UserID     uint       `gorm:"not null;index:idx_conversations_user_id" json:"user_id"`
	AgentID    uint       `gorm:"not null;index:idx_conversations_agent_id" json:"agent_id"`
	CampaignID *uint      `gorm:"index:idx_conversations_campaign_id" json:"campaign_id,omitempty"`

	// Provider identifiers, nil until the provider reports them
	ExternalConversationID *string `gorm:"size:128;index:idx_conversations_external_id" json:"external_conversation_id,omitempty"`
	ExternalCallID         *string `gorm:"size:128;index:idx_conversations_external_call_id" json:"external_call_id,omitempty"`

	PhoneNumber string             `gorm:"size:20;not null;index:idx_conversations_phone" json:"phone_number"`
	ContactName *string            `gorm:"size:255" json:"contact_name,omitempty"`
	Status      ConversationStatus `gorm:"size:32;not null;default:'pending';index:idx_conversations_status" json:"status"`

	Transcript   *string  `gorm:"type:text" json:"transcript,omitempty"`
	Summary      *string  `gorm:"type:text" json:"summary,omitempty"`
	Success      *bool    `json:"success,omitempty"`
	DurationSecs *int     `json:"duration_secs,omitempty"`
	Cost         *float64 `json:"cost,omitempty"`

	RetryCount   int                  `gorm:"not null;default:0" json:"retry_count"`
	ErrorMessage *string              `gorm:"type:text" json:"error_message,omitempty"`
	Metadata     ConversationMetadata `gorm:"type:jsonb" json:"metadata,omitempty"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_conversations_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	User     *User     `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	Agent    *Agent    `gorm:"foreignKey:AgentID;references:ID" json:"agent,omitempty"`
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// BeforeCreate is called before creating a new record
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = ConversationStatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Conversation) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// ConversationFilter represents filter criteria for conversation queries
type ConversationFilter struct {
	ID                     *uint
	UUID                   *uuid.UUID
	UserID                 *uint
	AgentID                *uint
	CampaignID             *uint
	ExternalConversationID *string
	ExternalCallID         *string
	PhoneNumber            *string
	PhoneNumberLike        *string
	Status                 *ConversationStatus
	Statuses               []ConversationStatus
	Success                *bool
	CreatedAfter           *time.Time
	CreatedBefore          *time.Time
}
