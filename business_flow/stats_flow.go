package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/redis/go-redis/v9"
	"github.com/voximate/voximate/app/dto"
	"github.com/voximate/voximate/config"
	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	"github.com/voximate/voximate/utils"
)

// StatsFlow serves dashboard, campaign and report statistics
type StatsFlow interface {
	Dashboard(ctx context.Context, userID uint) (*dto.DashboardStatsResponse, error)
	CampaignStats(ctx context.Context, userID uint, campaignUUID string) (*dto.CampaignStatsResponse, error)
	Reports(ctx context.Context, req *dto.ReportsRequest) (*dto.ReportsResponse, error)
	CampaignLiveStatus(ctx context.Context, userID uint, campaignUUID string) (*dto.CampaignStatusResponse, error)
}

// StatsFlowImpl implements the statistics business flow
type StatsFlowImpl struct {
	conversationRepo repository.ConversationRepository
	campaignRepo     repository.CampaignRepository
	agentRepo        repository.AgentRepository
	rc               *redis.Client
	cacheConfig      *config.CacheConfig
}

// NewStatsFlow creates a new stats flow instance
func NewStatsFlow(
	conversationRepo repository.ConversationRepository,
	campaignRepo repository.CampaignRepository,
	agentRepo repository.AgentRepository,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) StatsFlow {
	return &StatsFlowImpl{
		conversationRepo: conversationRepo,
		campaignRepo:     campaignRepo,
		agentRepo:        agentRepo,
		rc:               rc,
		cacheConfig:      cacheConfig,
	}
}

// Dashboard returns the account-wide summary, cached briefly in redis to
// keep the landing page cheap under polling.
func (f *StatsFlowImpl) Dashboard(ctx context.Context, userID uint) (*dto.DashboardStatsResponse, error) {
	cacheKey := ""
	if f.rc != nil && f.cacheConfig != nil && f.cacheConfig.Enabled {
		cacheKey = redisKey(*f.cacheConfig, fmt.Sprintf("%s:%d", utils.DashboardStatsCacheKey, userID))
		if bs, err := f.rc.Get(ctx, cacheKey).Bytes(); err == nil && len(bs) > 0 {
			var out dto.DashboardStatsResponse
			if err := json.Unmarshal(bs, &out); err == nil {
				return &out, nil
			}
		}
	}

	totalCampaigns, err := f.campaignRepo.Count(ctx, models.CampaignFilter{UserID: &userID})
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count campaigns", err)
	}

	running := models.CampaignStatusRunning
	activeCampaigns, err := f.campaignRepo.Count(ctx, models.CampaignFilter{UserID: &userID, Status: &running})
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count active campaigns", err)
	}

	totalAgents, err := f.agentRepo.Count(ctx, models.AgentFilter{UserID: &userID})
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count agents", err)
	}

	filter := models.ConversationFilter{UserID: &userID}
	stats, err := f.conversationRepo.Stats(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to compute call stats", err)
	}

	byStatus, err := f.conversationRepo.CountByStatus(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count calls by status", err)
	}

	out := &dto.DashboardStatsResponse{
		TotalCampaigns:      totalCampaigns,
		ActiveCampaigns:     activeCampaigns,
		TotalAgents:         totalAgents,
		TotalCalls:          stats.Total,
		SuccessfulCalls:     stats.Successful,
		SuccessRate:         successRate(stats.Successful, stats.Terminal),
		TotalDurationSecs:   stats.DurationSum,
		AverageDurationSecs: round2(stats.DurationAvg),
		TotalCost:           round2(stats.TotalCost),
		CallsByStatus:       statusCountMap(byStatus),
	}
	out.CompletedCalls = out.CallsByStatus[string(models.ConversationStatusCompleted)]

	if cacheKey != "" {
		if bs, err := json.Marshal(out); err == nil {
			_ = f.rc.Set(ctx, cacheKey, bs, utils.DashboardStatsCacheTTL).Err()
		}
	}

	return out, nil
}

// CampaignStats returns call statistics for one campaign
func (f *StatsFlowImpl) CampaignStats(ctx context.Context, userID uint, campaignUUID string) (*dto.CampaignStatsResponse, error) {
	campaign, err := f.getOwnedCampaign(ctx, userID, campaignUUID)
	if err != nil {
		return nil, err
	}

	filter := models.ConversationFilter{CampaignID: &campaign.ID}
	stats, err := f.conversationRepo.Stats(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to compute call stats", err)
	}

	byStatus, err := f.conversationRepo.CountByStatus(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count calls by status", err)
	}

	return &dto.CampaignStatsResponse{
		UUID:                campaign.UUID.String(),
		Name:                campaign.Name,
		Status:              string(campaign.Status),
		TotalContacts:       campaign.TotalContacts,
		CallsDispatched:     campaign.CallsDispatched,
		CallsCompleted:      campaign.CallsCompleted,
		CallsFailed:         campaign.CallsFailed,
		SuccessfulCalls:     stats.Successful,
		SuccessRate:         successRate(stats.Successful, stats.Terminal),
		TotalDurationSecs:   stats.DurationSum,
		AverageDurationSecs: round2(stats.DurationAvg),
		TotalCost:           round2(stats.TotalCost),
		CallsByStatus:       statusCountMap(byStatus),
	}, nil
}

// Reports returns time-bucketed call reports over the requested window
func (f *StatsFlowImpl) Reports(ctx context.Context, req *dto.ReportsRequest) (*dto.ReportsResponse, error) {
	days := req.Days
	if days == 0 {
		days = 30
	}
	if days < 1 || days > 365 {
		return nil, NewBusinessError("INVALID_REPORT_DAYS", "Report window must be between 1 and 365 days", ErrInvalidReportDays)
	}

	since := utils.UTCNow().AddDate(0, 0, -days)
	filter := models.ConversationFilter{UserID: &req.UserID, CreatedAfter: &since}

	if req.CampaignUUID != nil && *req.CampaignUUID != "" {
		campaign, err := f.getOwnedCampaign(ctx, req.UserID, *req.CampaignUUID)
		if err != nil {
			return nil, err
		}
		filter.CampaignID = &campaign.ID
	}
	if req.AgentUUID != nil && *req.AgentUUID != "" {
		agent, err := f.agentRepo.ByUUID(ctx, *req.AgentUUID)
		if err != nil {
			return nil, NewBusinessError("AGENT_LOOKUP_FAILED", "Failed to lookup agent", err)
		}
		if agent == nil || agent.UserID != req.UserID {
			return nil, NewBusinessError("AGENT_NOT_FOUND", "Agent not found", ErrAgentNotFound)
		}
		filter.AgentID = &agent.ID
	}

	perDay, err := f.conversationRepo.CountByDay(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("REPORTS_FAILED", "Failed to compute daily report", err)
	}
	perHour, err := f.conversationRepo.CountByHour(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("REPORTS_FAILED", "Failed to compute hourly report", err)
	}
	byWeekday, err := f.conversationRepo.CountByWeekday(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("REPORTS_FAILED", "Failed to compute weekday report", err)
	}
	durationRanges, err := f.conversationRepo.CountByDurationRange(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("REPORTS_FAILED", "Failed to compute duration ranges", err)
	}
	byAgent, err := f.conversationRepo.StatsByAgent(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("REPORTS_FAILED", "Failed to compute per-agent report", err)
	}
	byCampaign, err := f.conversationRepo.StatsByCampaign(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("REPORTS_FAILED", "Failed to compute per-campaign report", err)
	}

	return &dto.ReportsResponse{
		Days:           days,
		CallsPerDay:    bucketPoints(perDay),
		CallsPerHour:   bucketPoints(perHour),
		CallsByWeekday: bucketPoints(byWeekday),
		DurationRanges: bucketPoints(durationRanges),
		ByAgent:        groupStatsDTOs(byAgent),
		ByCampaign:     groupStatsDTOs(byCampaign),
	}, nil
}

// CampaignLiveStatus returns the snapshot served to polling dashboards
func (f *StatsFlowImpl) CampaignLiveStatus(ctx context.Context, userID uint, campaignUUID string) (*dto.CampaignStatusResponse, error) {
	campaign, err := f.getOwnedCampaign(ctx, userID, campaignUUID)
	if err != nil {
		return nil, err
	}

	byStatus, err := f.conversationRepo.CountByStatus(ctx, models.ConversationFilter{CampaignID: &campaign.ID})
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count calls by status", err)
	}

	return &dto.CampaignStatusResponse{
		UUID:            campaign.UUID.String(),
		Status:          string(campaign.Status),
		TotalContacts:   campaign.TotalContacts,
		CallsDispatched: campaign.CallsDispatched,
		CallsCompleted:  campaign.CallsCompleted,
		CallsFailed:     campaign.CallsFailed,
		StatusCounts:    statusCountMap(byStatus),
		UpdatedAt:       utils.UTCNow(),
	}, nil
}

func (f *StatsFlowImpl) getOwnedCampaign(ctx context.Context, userID uint, campaignUUID string) (*models.Campaign, error) {
	campaign, err := f.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if campaign.UserID != userID {
		return nil, NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Access denied: campaign belongs to another user", ErrCampaignAccessDenied)
	}
	return campaign, nil
}

// redisKey namespaces a cache key with the configured prefix
func redisKey(cfg config.CacheConfig, key string) string {
	return cfg.RedisPrefix + key
}

// successRate is the share of settled calls the provider judged successful
func successRate(successful, terminal int64) float64 {
	if terminal == 0 {
		return 0
	}
	return round2(float64(successful) / float64(terminal) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func statusCountMap(rows []repository.StatusCount) map[string]int64 {
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[string(row.Status)] = row.Count
	}
	return out
}

func bucketPoints(rows []repository.BucketCount) []dto.TimeSeriesPointDTO {
	out := make([]dto.TimeSeriesPointDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.TimeSeriesPointDTO{Label: row.Bucket, Count: row.Count})
	}
	return out
}

func groupStatsDTOs(rows []repository.GroupStats) []dto.GroupStatsDTO {
	out := make([]dto.GroupStatsDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.GroupStatsDTO{
			UUID:                row.GroupUUID,
			Name:                row.GroupName,
			TotalCalls:          row.Total,
			SuccessfulCalls:     row.Successful,
			SuccessRate:         successRate(row.Successful, row.Total),
			TotalDurationSecs:   row.DurationSum,
			AverageDurationSecs: round2(row.DurationAvg),
			TotalCost:           round2(row.TotalCost),
		})
	}
	return out
}
