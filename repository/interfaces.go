// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/voximate/voximate/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Update(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByUUID(ctx context.Context, uuid string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID uint, passwordHash string) error
	UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error
}

// UserSessionRepository defines operations for user sessions
type UserSessionRepository interface {
	Repository[models.UserSession, models.UserSessionFilter]
	BySessionToken(ctx context.Context, token string) (*models.UserSession, error)
	ByRefreshToken(ctx context.Context, token string) (*models.UserSession, error)
	ExpireSession(ctx context.Context, sessionID uint) error
	ExpireAllUserSessions(ctx context.Context, userID uint) error
	CleanupExpiredSessions(ctx context.Context) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
}

// AgentRepository defines operations for agents
type AgentRepository interface {
	Repository[models.Agent, models.AgentFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Agent, error)
	ByExternalID(ctx context.Context, userID uint, externalAgentID string) (*models.Agent, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Agent, error)
	Delete(ctx context.Context, id uint) error
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Campaign, error)
	ListDueScheduled(ctx context.Context, before time.Time) ([]*models.Campaign, error)
	UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error
	IncrementCounters(ctx context.Context, id uint, dispatched, completed, failed int) error
	Delete(ctx context.Context, id uint) error
}

// ConversationStats aggregates call outcomes and durations for a scope.
type ConversationStats struct {
	Total       int64
	Terminal    int64
	Successful  int64
	DurationSum int64
	DurationAvg float64
	DurationMin *int
	DurationMax *int
	TotalCost   float64
}

// StatusCount is one row of a per-status breakdown.
type StatusCount struct {
	Status models.ConversationStatus
	Count  int64
}

// BucketCount is one row of a grouped count (date, hour, weekday, duration range).
type BucketCount struct {
	Bucket string
	Count  int64
}

// GroupStats is one row of per-agent or per-campaign aggregates.
type GroupStats struct {
	GroupID     uint
	GroupUUID   string
	GroupName   string
	Total       int64
	Successful  int64
	DurationSum int64
	DurationAvg float64
	TotalCost   float64
}

// ConversationRepository defines operations for conversations
type ConversationRepository interface {
	Repository[models.Conversation, models.ConversationFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Conversation, error)
	ByExternalConversationID(ctx context.Context, externalID string) (*models.Conversation, error)
	ByExternalCallID(ctx context.Context, externalCallID string) (*models.Conversation, error)
	LatestByAgentInStatuses(ctx context.Context, agentExternalID string, statuses []models.ConversationStatus) (*models.Conversation, error)
	LatestByPhoneInStatuses(ctx context.Context, userScope *uint, phone string, statuses []models.ConversationStatus) (*models.Conversation, error)
	CreateBatch(ctx context.Context, conversations []*models.Conversation) error
	DeletePendingByCampaign(ctx context.Context, campaignID uint) error
	Delete(ctx context.Context, id uint) error

	Stats(ctx context.Context, filter models.ConversationFilter) (*ConversationStats, error)
	CountByStatus(ctx context.Context, filter models.ConversationFilter) ([]StatusCount, error)
	CountByDay(ctx context.Context, filter models.ConversationFilter) ([]BucketCount, error)
	CountByHour(ctx context.Context, filter models.ConversationFilter) ([]BucketCount, error)
	CountByWeekday(ctx context.Context, filter models.ConversationFilter) ([]BucketCount, error)
	CountByDurationRange(ctx context.Context, filter models.ConversationFilter) ([]BucketCount, error)
	StatsByAgent(ctx context.Context, filter models.ConversationFilter) ([]GroupStats, error)
	StatsByCampaign(ctx context.Context, filter models.ConversationFilter) ([]GroupStats, error)
}
