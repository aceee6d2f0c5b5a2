package businessflow

import (
	"context"
	"fmt"

	"github.com/voximate/voximate/app/dto"
	"github.com/voximate/voximate/app/services"
	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	"github.com/voximate/voximate/utils"
	"gorm.io/gorm"
)

// AgentFlow handles voice agent management. Agents are created at the voice
// provider first and mirrored locally; the local row carries the provider id
// used on outbound calls.
type AgentFlow interface {
	CreateAgent(ctx context.Context, req *dto.CreateAgentRequest, metadata *ClientMetadata) (*dto.CreateAgentResponse, error)
	UpdateAgent(ctx context.Context, req *dto.UpdateAgentRequest, metadata *ClientMetadata) (*dto.UpdateAgentResponse, error)
	DeleteAgent(ctx context.Context, userID uint, agentUUID string, metadata *ClientMetadata) (*dto.DeleteAgentResponse, error)
	GetAgent(ctx context.Context, userID uint, agentUUID string) (*dto.AgentDTO, error)
	ListAgents(ctx context.Context, userID uint) (*dto.ListAgentsResponse, error)
	ListVoices(ctx context.Context, userID uint) (*dto.ListVoicesResponse, error)
	TestCall(ctx context.Context, req *dto.TestCallRequest, metadata *ClientMetadata) (*dto.TestCallResponse, error)
}

// AgentFlowImpl implements the agent business flow
type AgentFlowImpl struct {
	agentRepo        repository.AgentRepository
	userRepo         repository.UserRepository
	conversationRepo repository.ConversationRepository
	auditRepo        repository.AuditLogRepository
	voiceClient      services.VoiceAIClient
	db               *gorm.DB
}

// NewAgentFlow creates a new agent flow instance
func NewAgentFlow(
	agentRepo repository.AgentRepository,
	userRepo repository.UserRepository,
	conversationRepo repository.ConversationRepository,
	auditRepo repository.AuditLogRepository,
	voiceClient services.VoiceAIClient,
	db *gorm.DB,
) AgentFlow {
	return &AgentFlowImpl{
		agentRepo:        agentRepo,
		userRepo:         userRepo,
		conversationRepo: conversationRepo,
		auditRepo:        auditRepo,
		voiceClient:      voiceClient,
		db:               db,
	}
}

// CreateAgent provisions the agent at the provider and mirrors it locally
func (f *AgentFlowImpl) CreateAgent(ctx context.Context, req *dto.CreateAgentRequest, metadata *ClientMetadata) (*dto.CreateAgentResponse, error) {
	user, err := f.getActiveUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	language := "en"
	if req.Language != nil && *req.Language != "" {
		language = *req.Language
	}

	providerAgent, err := f.voiceClient.CreateAgent(ctx, voiceKey(user), services.AgentConfigRequest{
		Name:         req.Name,
		VoiceID:      req.VoiceID,
		SystemPrompt: req.SystemPrompt,
		Greeting:     req.Greeting,
		Language:     language,
	})
	if err != nil {
		return nil, NewBusinessError("PROVIDER_AGENT_CREATE_FAILED", "Failed to create agent at provider", ErrProviderUnavailable)
	}

	agent := &models.Agent{
		UserID:          user.ID,
		ExternalAgentID: providerAgent.AgentID,
		Name:            req.Name,
		Description:     req.Description,
		VoiceID:         req.VoiceID,
		SystemPrompt:    req.SystemPrompt,
		Greeting:        req.Greeting,
		Language:        language,
		IsActive:        utils.ToPtr(true),
	}

	if err := f.agentRepo.Save(ctx, agent); err != nil {
		// Local mirror failed; remove the orphan at the provider
		_ = f.voiceClient.DeleteAgent(ctx, voiceKey(user), providerAgent.AgentID)
		return nil, NewBusinessError("AGENT_CREATE_FAILED", "Failed to save agent", err)
	}

	msg := fmt.Sprintf("Agent created: %s", agent.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionAgentCreated, msg, true, nil, metadata)

	return &dto.CreateAgentResponse{
		Message: "Agent created successfully",
		Agent:   ToAgentDTO(agent),
	}, nil
}

// UpdateAgent applies partial updates locally and pushes them to the provider
func (f *AgentFlowImpl) UpdateAgent(ctx context.Context, req *dto.UpdateAgentRequest, metadata *ClientMetadata) (*dto.UpdateAgentResponse, error) {
	user, err := f.getActiveUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	agent, err := f.getOwnedAgent(ctx, req.UserID, req.UUID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		agent.Name = *req.Name
	}
	if req.Description != nil {
		agent.Description = req.Description
	}
	if req.VoiceID != nil {
		agent.VoiceID = req.VoiceID
	}
	if req.SystemPrompt != nil {
		agent.SystemPrompt = req.SystemPrompt
	}
	if req.Greeting != nil {
		agent.Greeting = req.Greeting
	}
	if req.Language != nil && *req.Language != "" {
		agent.Language = *req.Language
	}

	if _, err := f.voiceClient.UpdateAgent(ctx, voiceKey(user), agent.ExternalAgentID, services.AgentConfigRequest{
		Name:         agent.Name,
		VoiceID:      agent.VoiceID,
		SystemPrompt: agent.SystemPrompt,
		Greeting:     agent.Greeting,
		Language:     agent.Language,
	}); err != nil {
		return nil, NewBusinessError("PROVIDER_AGENT_UPDATE_FAILED", "Failed to update agent at provider", ErrProviderUnavailable)
	}

	if err := f.agentRepo.Update(ctx, agent); err != nil {
		return nil, NewBusinessError("AGENT_UPDATE_FAILED", "Failed to save agent", err)
	}

	msg := fmt.Sprintf("Agent updated: %s", agent.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionAgentUpdated, msg, true, nil, metadata)

	return &dto.UpdateAgentResponse{
		Message: "Agent updated successfully",
		Agent:   ToAgentDTO(agent),
	}, nil
}

// DeleteAgent removes the agent at the provider and locally
func (f *AgentFlowImpl) DeleteAgent(ctx context.Context, userID uint, agentUUID string, metadata *ClientMetadata) (*dto.DeleteAgentResponse, error) {
	user, err := f.getActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	agent, err := f.getOwnedAgent(ctx, userID, agentUUID)
	if err != nil {
		return nil, err
	}

	// Provider deletion failures are tolerated; the local mirror is removed
	// regardless so the agent disappears from the dashboard.
	_ = f.voiceClient.DeleteAgent(ctx, voiceKey(user), agent.ExternalAgentID)

	if err := f.agentRepo.Delete(ctx, agent.ID); err != nil {
		return nil, NewBusinessError("AGENT_DELETE_FAILED", "Failed to delete agent", err)
	}

	msg := fmt.Sprintf("Agent deleted: %s", agent.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionAgentDeleted, msg, true, nil, metadata)

	return &dto.DeleteAgentResponse{Message: "Agent deleted successfully"}, nil
}

// GetAgent returns one of the user's agents
func (f *AgentFlowImpl) GetAgent(ctx context.Context, userID uint, agentUUID string) (*dto.AgentDTO, error) {
	agent, err := f.getOwnedAgent(ctx, userID, agentUUID)
	if err != nil {
		return nil, err
	}

	agentDTO := ToAgentDTO(agent)
	return &agentDTO, nil
}

// ListAgents returns all of the user's agents
func (f *AgentFlowImpl) ListAgents(ctx context.Context, userID uint) (*dto.ListAgentsResponse, error) {
	agents, err := f.agentRepo.ListByUser(ctx, userID, 0, 0)
	if err != nil {
		return nil, NewBusinessError("AGENT_LIST_FAILED", "Failed to list agents", err)
	}

	out := make([]dto.AgentDTO, 0, len(agents))
	for _, agent := range agents {
		out = append(out, ToAgentDTO(agent))
	}

	return &dto.ListAgentsResponse{Agents: out}, nil
}

// ListVoices returns the synthesis voices available to the user's provider account
func (f *AgentFlowImpl) ListVoices(ctx context.Context, userID uint) (*dto.ListVoicesResponse, error) {
	user, err := f.getActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	voices, err := f.voiceClient.ListVoices(ctx, voiceKey(user))
	if err != nil {
		return nil, NewBusinessError("PROVIDER_VOICES_FAILED", "Failed to list voices", ErrProviderUnavailable)
	}

	out := make([]dto.VoiceDTO, 0, len(voices))
	for _, voice := range voices {
		out = append(out, dto.VoiceDTO{
			VoiceID:  voice.VoiceID,
			Name:     voice.Name,
			Category: voice.Category,
		})
	}

	return &dto.ListVoicesResponse{Voices: out}, nil
}

// TestCall places a single agent call outside any campaign
func (f *AgentFlowImpl) TestCall(ctx context.Context, req *dto.TestCallRequest, metadata *ClientMetadata) (*dto.TestCallResponse, error) {
	user, err := f.getActiveUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	agent, err := f.getOwnedAgent(ctx, req.UserID, req.AgentUUID)
	if err != nil {
		return nil, err
	}

	conversation := &models.Conversation{
		UserID:      user.ID,
		AgentID:     agent.ID,
		PhoneNumber: req.PhoneNumber,
		Status:      models.ConversationStatusInitiating,
		Metadata:    models.ConversationMetadata{"test_call": true},
	}
	if err := f.conversationRepo.Save(ctx, conversation); err != nil {
		return nil, NewBusinessError("CONVERSATION_CREATE_FAILED", "Failed to create conversation", err)
	}

	started, err := f.voiceClient.StartCall(ctx, voiceKey(user), services.StartCallRequest{
		AgentID:    agent.ExternalAgentID,
		FromNumber: callerNumber(user),
		ToNumber:   req.PhoneNumber,
	})
	if err != nil {
		errMsg := err.Error()
		conversation.Status = models.ConversationStatusFailed
		conversation.ErrorMessage = &errMsg
		_ = f.conversationRepo.Update(ctx, conversation)

		return nil, NewBusinessError("TEST_CALL_FAILED", "Failed to start test call", ErrProviderUnavailable)
	}

	now := utils.UTCNow()
	conversation.Status = models.ConversationStatusInProgress
	conversation.ExternalConversationID = &started.ConversationID
	conversation.ExternalCallID = &started.CallID
	conversation.StartedAt = &now
	if err := f.conversationRepo.Update(ctx, conversation); err != nil {
		return nil, NewBusinessError("CONVERSATION_UPDATE_FAILED", "Failed to update conversation", err)
	}

	msg := fmt.Sprintf("Test call started: %s", conversation.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionTestCallStarted, msg, true, nil, metadata)

	return &dto.TestCallResponse{
		Message:          "Test call started",
		ConversationUUID: conversation.UUID.String(),
		Status:           string(conversation.Status),
	}, nil
}

func (f *AgentFlowImpl) getActiveUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}
	if !utils.IsTrue(user.IsActive) {
		return nil, NewBusinessError("ACCOUNT_INACTIVE", "Account is inactive", ErrAccountInactive)
	}
	return user, nil
}

func (f *AgentFlowImpl) getOwnedAgent(ctx context.Context, userID uint, agentUUID string) (*models.Agent, error) {
	agent, err := f.agentRepo.ByUUID(ctx, agentUUID)
	if err != nil {
		return nil, NewBusinessError("AGENT_LOOKUP_FAILED", "Failed to lookup agent", err)
	}
	if agent == nil {
		return nil, NewBusinessError("AGENT_NOT_FOUND", "Agent not found", ErrAgentNotFound)
	}
	if agent.UserID != userID {
		return nil, NewBusinessError("AGENT_ACCESS_DENIED", "Access denied: agent belongs to another user", ErrAgentAccessDenied)
	}
	return agent, nil
}

func (f *AgentFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
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

// voiceKey returns the tenant's provider key; empty falls back to the platform default.
func voiceKey(user *models.User) string {
	if user.VoiceAPIKey != nil {
		return *user.VoiceAPIKey
	}
	return ""
}

// callerNumber returns the tenant's outbound caller id; empty lets the
// provider pick its default.
func callerNumber(user *models.User) string {
	if user.CallerNumber != nil {
		return *user.CallerNumber
	}
	return ""
}
