package businessflow

import (
	"context"
	"fmt"

	"github.com/voximate/voximate/app/dto"
	"github.com/voximate/voximate/app/services"
	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	"github.com/voximate/voximate/utils"
)

// HistoryFlow serves the call history surface
type HistoryFlow interface {
	ListConversations(ctx context.Context, req *dto.ListConversationsRequest) (*dto.ListConversationsResponse, error)
	GetConversation(ctx context.Context, userID uint, conversationUUID string) (*dto.GetConversationResponse, error)
	DeleteConversation(ctx context.Context, userID uint, conversationUUID string, metadata *ClientMetadata) (*dto.DeleteConversationResponse, error)
	GetConversationAudio(ctx context.Context, userID uint, conversationUUID string) ([]byte, error)
}

// HistoryFlowImpl implements the call history business flow
type HistoryFlowImpl struct {
	conversationRepo repository.ConversationRepository
	campaignRepo     repository.CampaignRepository
	agentRepo        repository.AgentRepository
	userRepo         repository.UserRepository
	auditRepo        repository.AuditLogRepository
	voiceClient      services.VoiceAIClient
}

// NewHistoryFlow creates a new history flow instance
func NewHistoryFlow(
	conversationRepo repository.ConversationRepository,
	campaignRepo repository.CampaignRepository,
	agentRepo repository.AgentRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	voiceClient services.VoiceAIClient,
) HistoryFlow {
	return &HistoryFlowImpl{
		conversationRepo: conversationRepo,
		campaignRepo:     campaignRepo,
		agentRepo:        agentRepo,
		userRepo:         userRepo,
		auditRepo:        auditRepo,
		voiceClient:      voiceClient,
	}
}

// ListConversations returns a filtered page of call history, newest first
func (f *HistoryFlowImpl) ListConversations(ctx context.Context, req *dto.ListConversationsRequest) (*dto.ListConversationsResponse, error) {
	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}

	filter := models.ConversationFilter{UserID: &req.UserID}

	if req.CampaignUUID != nil && *req.CampaignUUID != "" {
		campaign, err := f.campaignRepo.ByUUID(ctx, *req.CampaignUUID)
		if err != nil {
			return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
		}
		if campaign == nil || campaign.UserID != req.UserID {
			return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
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
	if req.Status != nil && *req.Status != "" {
		status := models.ConversationStatus(*req.Status)
		if !status.Valid() {
			return nil, NewBusinessErrorf("INVALID_STATUS", "Unknown conversation status: %s", *req.Status)
		}
		filter.Status = &status
	}
	if req.PhoneNumber != nil && *req.PhoneNumber != "" {
		filter.PhoneNumberLike = req.PhoneNumber
	}

	total, err := f.conversationRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("HISTORY_LIST_FAILED", "Failed to count conversations", err)
	}

	conversations, err := f.conversationRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("HISTORY_LIST_FAILED", "Failed to list conversations", err)
	}

	out := make([]dto.ConversationDTO, 0, len(conversations))
	for _, conversation := range conversations {
		out = append(out, ToConversationDTO(conversation))
	}

	return &dto.ListConversationsResponse{
		Conversations: out,
		Pagination:    paginationDTO(page, pageSize, total),
	}, nil
}

// GetConversation returns one call record in full
func (f *HistoryFlowImpl) GetConversation(ctx context.Context, userID uint, conversationUUID string) (*dto.GetConversationResponse, error) {
	conversation, err := f.getOwnedConversation(ctx, userID, conversationUUID)
	if err != nil {
		return nil, err
	}

	return &dto.GetConversationResponse{Conversation: ToConversationDTO(conversation)}, nil
}

// DeleteConversation removes a call record
func (f *HistoryFlowImpl) DeleteConversation(ctx context.Context, userID uint, conversationUUID string, metadata *ClientMetadata) (*dto.DeleteConversationResponse, error) {
	conversation, err := f.getOwnedConversation(ctx, userID, conversationUUID)
	if err != nil {
		return nil, err
	}

	if err := f.conversationRepo.Delete(ctx, conversation.ID); err != nil {
		return nil, NewBusinessError("CONVERSATION_DELETE_FAILED", "Failed to delete conversation", err)
	}

	user, err := f.userRepo.ByID(ctx, userID)
	if err == nil && user != nil {
		msg := fmt.Sprintf("Conversation deleted: %s", conversation.UUID.String())
		_ = f.createAuditLog(ctx, user, models.AuditActionConversationDeleted, msg, true, nil, metadata)
	}

	return &dto.DeleteConversationResponse{Message: "Conversation deleted successfully"}, nil
}

// GetConversationAudio proxies the provider's call recording
func (f *HistoryFlowImpl) GetConversationAudio(ctx context.Context, userID uint, conversationUUID string) ([]byte, error) {
	conversation, err := f.getOwnedConversation(ctx, userID, conversationUUID)
	if err != nil {
		return nil, err
	}
	if conversation.ExternalConversationID == nil {
		return nil, NewBusinessError("NO_RECORDING_AVAILABLE", "No recording available for conversation", ErrNoRecordingAvailable)
	}

	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil || user == nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}

	audio, err := f.voiceClient.GetConversationAudio(ctx, voiceKey(user), *conversation.ExternalConversationID)
	if err != nil {
		return nil, NewBusinessError("RECORDING_FETCH_FAILED", "Failed to fetch recording", ErrProviderUnavailable)
	}

	return audio, nil
}

func (f *HistoryFlowImpl) getOwnedConversation(ctx context.Context, userID uint, conversationUUID string) (*models.Conversation, error) {
	conversation, err := f.conversationRepo.ByUUID(ctx, conversationUUID)
	if err != nil {
		return nil, NewBusinessError("CONVERSATION_LOOKUP_FAILED", "Failed to lookup conversation", err)
	}
	if conversation == nil {
		return nil, NewBusinessError("CONVERSATION_NOT_FOUND", "Conversation not found", ErrConversationNotFound)
	}
	if conversation.UserID != userID {
		return nil, NewBusinessError("CONVERSATION_ACCESS_DENIED", "Access denied: conversation belongs to another user", ErrConversationAccessDenied)
	}
	return conversation, nil
}

func (f *HistoryFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	var userID *uint
	if user != nil {
		userID = &user.ID
	}

	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return f.auditRepo.Save(ctx, audit)
}
