// Package models contains domain entities and business models for the voice campaign platform
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:idx_users_email" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"` // Never serialize password hash
	FullName     string    `gorm:"size:255;not null" json:"full_name"`
	CompanyName  *string   `gorm:"size:120" json:"company_name,omitempty"`

	// Provider credentials, set per tenant
	VoiceAPIKey        *string `gorm:"size:255" json:"-"`
	TelephonyAuthID    *string `gorm:"size:128" json:"-"`
	TelephonyAuthToken *string `gorm:"size:128" json:"-"`
	CallerNumber       *string `gorm:"size:20" json:"caller_number,omitempty"`

	IsActive *bool `gorm:"default:true;index:idx_users_is_active" json:"is_active"`

	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_users_created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	LastLoginAt *time.Time `gorm:"index:idx_users_last_login_at" json:"last_login_at,omitempty"`

	// Relations
	Agents        []Agent        `gorm:"foreignKey:UserID" json:"-"`
	Campaigns     []Campaign     `gorm:"foreignKey:UserID" json:"-"`
	Conversations []Conversation `gorm:"foreignKey:UserID" json:"-"`
	Sessions      []UserSession  `gorm:"foreignKey:UserID" json:"-"`
	AuditLogs     []AuditLog     `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate is called before creating a new record
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	return nil
}

// HasVoiceCredentials reports whether the tenant can reach the voice provider.
func (u *User) HasVoiceCredentials() bool {
	return u.VoiceAPIKey != nil && *u.VoiceAPIKey != ""
}

// HasTelephonyCredentials reports whether the tenant can place carrier calls.
func (u *User) HasTelephonyCredentials() bool {
	return u.TelephonyAuthID != nil && *u.TelephonyAuthID != "" &&
		u.TelephonyAuthToken != nil && *u.TelephonyAuthToken != ""
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	Email          *string
	IsActive       *bool
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	LastLoginAfter *time.Time
}
