package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/voximate/voximate/utils"
	"gorm.io/gorm"
)

// CampaignStatus represents the status of a calling campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusPending   CampaignStatus = "pending"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusPending, CampaignStatusRunning,
		CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusFailed,
		CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further dispatch can happen from this status.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed || s == CampaignStatusCancelled
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// Contact is one row of an uploaded contact file, keyed by header column name.
type Contact map[string]string

// PhoneNumber returns the contact's phone value, trimmed.
func (c Contact) PhoneNumber() string {
	for k, v := range c {
		if strings.EqualFold(strings.TrimSpace(k), "phone_number") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Name returns a display name when the upload carried one.
func (c Contact) Name() string {
	for _, key := range []string{"name", "full_name", "first_name", "contact_name"} {
		for k, v := range c {
			if strings.EqualFold(strings.TrimSpace(k), key) {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

// ContactList is the campaign's stored contact rows, persisted as JSONB.
type ContactList []Contact

// Value implements the driver.Valuer interface for ContactList
func (l ContactList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal(ContactList{})
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for ContactList
func (l *ContactList) Scan(value any) error {
	if value == nil {
		*l = ContactList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ContactList", value)
	}

	return json.Unmarshal(bytes, l)
}

// Campaign represents an outbound calling campaign
type Campaign struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	UserID      uint           `gorm:"not null;index:idx_campaigns_user_id" json:"user_id"`
	AgentID     *uint          `gorm:"index:idx_campaigns_agent_id" json:"agent_id,omitempty"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	Description *string        `gorm:"type:text" json:"description,omitempty"`
	Status      CampaignStatus `gorm:"size:32;not null;default:'draft';index:idx_campaigns_status" json:"status"`

	// Counters, mutated only by the dispatcher and the webhook reconciler
	TotalContacts   int `gorm:"not null;default:0" json:"total_contacts"`
	CallsDispatched int `gorm:"not null;default:0" json:"calls_dispatched"`
	CallsCompleted  int `gorm:"not null;default:0" json:"calls_completed"`
	CallsFailed     int `gorm:"not null;default:0" json:"calls_failed"`

	ContactList    ContactList    `gorm:"type:jsonb" json:"contact_list,omitempty"`
	ContactColumns pq.StringArray `gorm:"type:text[]" json:"contact_columns,omitempty"`

	ScheduledAt *time.Time `gorm:"index:idx_campaigns_scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt   *time.Time `gorm:"index:idx_campaigns_updated_at" json:"updated_at,omitempty"`

	// Relations
	User          *User          `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	Agent         *Agent         `gorm:"foreignKey:AgentID;references:ID" json:"agent,omitempty"`
	Conversations []Conversation `gorm:"foreignKey:CampaignID" json:"-"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// IsEditable checks if the campaign definition can still be changed
func (c *Campaign) IsEditable() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusPending
}

// IsDeletable checks if the campaign can be deleted
func (c *Campaign) IsDeletable() bool {
	return c.Status != CampaignStatusRunning
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusPending ||
			newStatus == CampaignStatusRunning ||
			newStatus == CampaignStatusCancelled
	case CampaignStatusPending:
		return newStatus == CampaignStatusRunning ||
			newStatus == CampaignStatusCancelled
	case CampaignStatusRunning:
		return newStatus == CampaignStatusPaused ||
			newStatus == CampaignStatusCompleted ||
			newStatus == CampaignStatusFailed ||
			newStatus == CampaignStatusCancelled
	case CampaignStatusPaused:
		return newStatus == CampaignStatusRunning ||
			newStatus == CampaignStatusCancelled
	default:
		return false
	}
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID              *uint           `json:"id,omitempty"`
	UUID            *uuid.UUID      `json:"uuid,omitempty"`
	UserID          *uint           `json:"user_id,omitempty"`
	AgentID         *uint           `json:"agent_id,omitempty"`
	Status          *CampaignStatus `json:"status,omitempty"`
	Name            *string         `json:"name,omitempty"`
	ScheduledBefore *time.Time      `json:"scheduled_before,omitempty"`
	CreatedAfter    *time.Time      `json:"created_after,omitempty"`
	CreatedBefore   *time.Time      `json:"created_before,omitempty"`
}
