package repository

import (
	"context"
	"fmt"

	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/utils"
	"gorm.io/gorm"
)

// ConversationRepositoryImpl implements the ConversationRepository interface
type ConversationRepositoryImpl struct {
	*BaseRepository[models.Conversation, models.ConversationFilter]
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &ConversationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Conversation, models.ConversationFilter](db),
	}
}

// ByUUID retrieves a conversation by UUID
func (r *ConversationRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Conversation, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID format: %w", err)
	}

	filter := models.ConversationFilter{UUID: &parsedUUID}
	conversations, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation by UUID: %w", err)
	}

	if len(conversations) == 0 {
		return nil, nil
	}

	return conversations[0], nil
}

// ByExternalConversationID retrieves a conversation by the provider conversation id
func (r *ConversationRepositoryImpl) ByExternalConversationID(ctx context.Context, externalID string) (*models.Conversation, error) {
	filter := models.ConversationFilter{ExternalConversationID: &externalID}
	conversations, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation by external ID: %w", err)
	}

	if len(conversations) == 0 {
		return nil, nil
	}

	return conversations[0], nil
}

// ByExternalCallID retrieves a conversation by the carrier call id
func (r *ConversationRepositoryImpl) ByExternalCallID(ctx context.Context, externalCallID string) (*models.Conversation, error) {
	filter := models.ConversationFilter{ExternalCallID: &externalCallID}
	conversations, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation by external call ID: %w", err)
	}

	if len(conversations) == 0 {
		return nil, nil
	}

	return conversations[0], nil
}

// LatestByAgentInStatuses retrieves the most recently created conversation for
// a provider agent id among the given statuses. Used as the reconciliation
// fallback when the provider conversation id is unknown.
func (r *ConversationRepositoryImpl) LatestByAgentInStatuses(ctx context.Context, agentExternalID string, statuses []models.ConversationStatus) (*models.Conversation, error) {
	db := r.getDB(ctx)

	var conversation models.Conversation
	err := db.Joins("JOIN agents ON conversations.agent_id = agents.id").
		Where("agents.external_agent_id = ?", agentExternalID).
		Where("conversations.status IN ?", statuses).
		Order("conversations.created_at DESC").
		First(&conversation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest conversation for agent: %w", err)
	}

	return &conversation, nil
}

// LatestByPhoneInStatuses retrieves the most recently created conversation for
// a phone number among the given statuses, optionally scoped to a user.
func (r *ConversationRepositoryImpl) LatestByPhoneInStatuses(ctx context.Context, userScope *uint, phone string, statuses []models.ConversationStatus) (*models.Conversation, error) {
	db := r.getDB(ctx)

	query := db.Where("phone_number = ?", phone).
		Where("status IN ?", statuses)
	if userScope != nil {
		query = query.Where("user_id = ?", *userScope)
	}

	var conversation models.Conversation
	err := query.Order("created_at DESC").First(&conversation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest conversation for phone: %w", err)
	}

	return &conversation, nil
}

// CreateBatch inserts conversation rows in one statement. Used by contact
// ingestion, which creates one pending row per uploaded contact.
func (r *ConversationRepositoryImpl) CreateBatch(ctx context.Context, conversations []*models.Conversation) error {
	if len(conversations) == 0 {
		return nil
	}

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.CreateInBatches(conversations, 500).Error
	if err != nil {
		return fmt.Errorf("failed to create conversations: %w", err)
	}

	return nil
}

// DeletePendingByCampaign removes the campaign's undialed rows so a fresh
// upload can replace the contact list wholesale.
func (r *ConversationRepositoryImpl) DeletePendingByCampaign(ctx context.Context, campaignID uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Where("campaign_id = ? AND status = ?", campaignID, models.ConversationStatusPending).
		Delete(&models.Conversation{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete pending conversations: %w", err)
	}

	return nil
}

// Delete removes a conversation row
func (r *ConversationRepositoryImpl) Delete(ctx context.Context, id uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Delete(&models.Conversation{}, id).Error
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	return nil
}

// Stats computes outcome and duration aggregates for the filtered scope.
// Duration aggregates only consider rows with a non-null duration.
func (r *ConversationRepositoryImpl) Stats(ctx context.Context, filter models.ConversationFilter) (*ConversationStats, error) {
	db := r.getDB(ctx)

	var row struct {
		Total       int64
		Terminal    int64
		Successful  int64
		DurationSum *int64
		DurationAvg *float64
		DurationMin *int
		DurationMax *int
		TotalCost   *float64
	}

	terminalStatuses := []models.ConversationStatus{
		models.ConversationStatusCompleted,
		models.ConversationStatusFailed,
		models.ConversationStatusNoAnswer,
		models.ConversationStatusBusy,
		models.ConversationStatusCancelled,
	}

	query := r.applyFilter(db.Model(&models.Conversation{}), filter)
	err := query.Select(`
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status IN ?) AS terminal,
		COUNT(*) FILTER (WHERE success = TRUE) AS successful,
		SUM(duration_secs) AS duration_sum,
		AVG(duration_secs) AS duration_avg,
		MIN(duration_secs) AS duration_min,
		MAX(duration_secs) AS duration_max,
		SUM(cost) AS total_cost`, terminalStatuses).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute conversation stats: %w", err)
	}

	stats := &ConversationStats{
		Total:       row.Total,
		Terminal:    row.Terminal,
		Successful:  row.Successful,
		DurationMin: row.DurationMin,
		DurationMax: row.DurationMax,
	}
	if row.DurationSum != nil {
		stats.DurationSum = *row.DurationSum
	}
	if row.DurationAvg != nil {
		stats.DurationAvg = *row.DurationAvg
	}
	if row.TotalCost != nil {
		stats.TotalCost = *row.TotalCost
	}

	return stats, nil
}

// CountByStatus returns counts grouped by conversation status
func (r *ConversationRepositoryImpl) CountByStatus(ctx context.Context, filter models.ConversationFilter) ([]StatusCount, error) {
	db := r.getDB(ctx)

	var rows []StatusCount
	query := r.applyFilter(db.Model(&models.Conversation{}), filter)
	err := query.Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations by status: %w", err)
	}

	return rows, nil
}

// CountByDay returns counts grouped by calendar day
func (r *ConversationRepositoryImpl) CountByDay(ctx context.Context, filter models.ConversationFilter) ([]BucketCount, error) {
	return r.countByExpr(ctx, filter, "TO_CHAR(created_at, 'YYYY-MM-DD')")
}

// CountByHour returns counts grouped by hour of day (00-23)
func (r *ConversationRepositoryImpl) CountByHour(ctx context.Context, filter models.ConversationFilter) ([]BucketCount, error) {
	return r.countByExpr(ctx, filter, "TO_CHAR(created_at, 'HH24')")
}

// CountByWeekday returns counts grouped by day of week name
func (r *ConversationRepositoryImpl) CountByWeekday(ctx context.Context, filter models.ConversationFilter) ([]BucketCount, error) {
	return r.countByExpr(ctx, filter, "TRIM(TO_CHAR(created_at, 'Day'))")
}

func (r *ConversationRepositoryImpl) countByExpr(ctx context.Context, filter models.ConversationFilter, expr string) ([]BucketCount, error) {
	db := r.getDB(ctx)

	var rows []BucketCount
	query := r.applyFilter(db.Model(&models.Conversation{}), filter)
	err := query.Select(expr + " AS bucket, COUNT(*) AS count").
		Group("bucket").
		Order("bucket ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations by bucket: %w", err)
	}

	return rows, nil
}

// CountByDurationRange buckets terminal calls into fixed duration ranges.
// Rows with a null duration are excluded.
func (r *ConversationRepositoryImpl) CountByDurationRange(ctx context.Context, filter models.ConversationFilter) ([]BucketCount, error) {
	db := r.getDB(ctx)

	var rows []BucketCount
	query := r.applyFilter(db.Model(&models.Conversation{}), filter)
	err := query.Where("duration_secs IS NOT NULL").
		Select(`CASE
			WHEN duration_secs < 30 THEN '0-30s'
			WHEN duration_secs < 60 THEN '30s-1m'
			WHEN duration_secs < 180 THEN '1-3m'
			WHEN duration_secs < 300 THEN '3-5m'
			ELSE '5m+'
		END AS bucket, COUNT(*) AS count`).
		Group("bucket").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations by duration range: %w", err)
	}

	return rows, nil
}

// StatsByAgent returns per-agent call aggregates
func (r *ConversationRepositoryImpl) StatsByAgent(ctx context.Context, filter models.ConversationFilter) ([]GroupStats, error) {
	db := r.getDB(ctx)

	var rows []GroupStats
	query := r.applyFilter(db.Model(&models.Conversation{}), filter)
	err := query.
		Joins("JOIN agents ON conversations.agent_id = agents.id").
		Select(`agents.id AS group_id,
			agents.uuid AS group_uuid,
			agents.name AS group_name,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE conversations.success = TRUE) AS successful,
			COALESCE(SUM(conversations.duration_secs), 0) AS duration_sum,
			COALESCE(AVG(conversations.duration_secs), 0) AS duration_avg,
			COALESCE(SUM(conversations.cost), 0) AS total_cost`).
		Group("agents.id, agents.uuid, agents.name").
		Order("total DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute per-agent stats: %w", err)
	}

	return rows, nil
}

// StatsByCampaign returns per-campaign call aggregates
func (r *ConversationRepositoryImpl) StatsByCampaign(ctx context.Context, filter models.ConversationFilter) ([]GroupStats, error) {
	db := r.getDB(ctx)

	var rows []GroupStats
	query := r.applyFilter(db.Model(&models.Conversation{}), filter)
	err := query.
		Joins("JOIN campaigns ON conversations.campaign_id = campaigns.id").
		Select(`campaigns.id AS group_id,
			campaigns.uuid AS group_uuid,
			campaigns.name AS group_name,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE conversations.success = TRUE) AS successful,
			COALESCE(SUM(conversations.duration_secs), 0) AS duration_sum,
			COALESCE(AVG(conversations.duration_secs), 0) AS duration_avg,
			COALESCE(SUM(conversations.cost), 0) AS total_cost`).
		Group("campaigns.id, campaigns.uuid, campaigns.name").
		Order("total DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute per-campaign stats: %w", err)
	}

	return rows, nil
}

// ByFilter retrieves conversations based on filter criteria
func (r *ConversationRepositoryImpl) ByFilter(ctx context.Context, filter models.ConversationFilter, orderBy string, limit, offset int) ([]*models.Conversation, error) {
	db := r.getDB(ctx)

	var conversations []*models.Conversation
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	query = query.Preload("Agent")

	err := query.Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find conversations by filter: %w", err)
	}

	return conversations, nil
}

// Count returns the number of conversations matching the filter
func (r *ConversationRepositoryImpl) Count(ctx context.Context, filter models.ConversationFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Conversation{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	return count, nil
}

// Exists checks if any conversation matching the filter exists
func (r *ConversationRepositoryImpl) Exists(ctx context.Context, filter models.ConversationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *ConversationRepositoryImpl) applyFilter(db *gorm.DB, filter models.ConversationFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("conversations.id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("conversations.uuid = ?", *filter.UUID)
	}
	if filter.UserID != nil {
		db = db.Where("conversations.user_id = ?", *filter.UserID)
	}
	if filter.AgentID != nil {
		db = db.Where("conversations.agent_id = ?", *filter.AgentID)
	}
	if filter.CampaignID != nil {
		db = db.Where("conversations.campaign_id = ?", *filter.CampaignID)
	}
	if filter.ExternalConversationID != nil {
		db = db.Where("conversations.external_conversation_id = ?", *filter.ExternalConversationID)
	}
	if filter.ExternalCallID != nil {
		db = db.Where("conversations.external_call_id = ?", *filter.ExternalCallID)
	}
	if filter.PhoneNumber != nil {
		db = db.Where("conversations.phone_number = ?", *filter.PhoneNumber)
	}
	if filter.PhoneNumberLike != nil {
		db = db.Where("conversations.phone_number ILIKE ?", "%"+*filter.PhoneNumberLike+"%")
	}
	if filter.Status != nil {
		db = db.Where("conversations.status = ?", *filter.Status)
	}
	if len(filter.Statuses) > 0 {
		db = db.Where("conversations.status IN ?", filter.Statuses)
	}
	if filter.Success != nil {
		db = db.Where("conversations.success = ?", *filter.Success)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("conversations.created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("conversations.created_at <= ?", *filter.CreatedBefore)
	}

	return db
}
