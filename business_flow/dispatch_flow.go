package businessflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/voximate/voximate/app/dto"
	"github.com/voximate/voximate/app/services"
	"github.com/voximate/voximate/config"
	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	"github.com/voximate/voximate/utils"
	"gorm.io/gorm"
)

// DispatchFlow drives outbound calling for campaigns. Launch transitions the
// campaign to running and works through its pending conversation rows with a
// bounded worker pool; each row is flipped out of pending before its call is
// placed, so a crashed or paused run resumes where it left off.
type DispatchFlow interface {
	LaunchCampaign(ctx context.Context, userID uint, campaignUUID string, metadata *ClientMetadata) (*dto.LaunchCampaignResponse, error)
	PauseCampaign(ctx context.Context, userID uint, campaignUUID string, metadata *ClientMetadata) (*dto.CampaignControlResponse, error)
	ResumeCampaign(ctx context.Context, userID uint, campaignUUID string, metadata *ClientMetadata) (*dto.CampaignControlResponse, error)
	CancelCampaign(ctx context.Context, userID uint, campaignUUID string, metadata *ClientMetadata) (*dto.CampaignControlResponse, error)

	// LaunchDueCampaigns starts every pending campaign whose schedule has
	// passed. Called periodically by the scheduler.
	LaunchDueCampaigns(ctx context.Context) (int, error)
}

// DispatchFlowImpl implements the dispatch business flow
type DispatchFlowImpl struct {
	campaignRepo     repository.CampaignRepository
	conversationRepo repository.ConversationRepository
	agentRepo        repository.AgentRepository
	userRepo         repository.UserRepository
	auditRepo        repository.AuditLogRepository
	voiceClient      services.VoiceAIClient
	telephonyClient  services.TelephonyClient
	hub              *services.StatusHub
	dispatchCfg      config.DispatchConfig
	telephonyCfg     config.TelephonyConfig
	db               *gorm.DB

	// background tracks in-flight dispatch goroutines for shutdown
	background sync.WaitGroup
}

// NewDispatchFlow creates a new dispatch flow instance
func NewDispatchFlow(
	campaignRepo repository.CampaignRepository,
	conversationRepo repository.ConversationRepository,
	agentRepo repository.AgentRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	voiceClient services.VoiceAIClient,
	telephonyClient services.TelephonyClient,
	hub *services.StatusHub,
	dispatchCfg config.DispatchConfig,
	telephonyCfg config.TelephonyConfig,
	db *gorm.DB,
) *DispatchFlowImpl {
	return &DispatchFlowImpl{
		campaignRepo:     campaignRepo,
		conversationRepo: conversationRepo,
		agentRepo:        agentRepo,
		userRepo:         userRepo,
		auditRepo:        auditRepo,
		voiceClient:      voiceClient,
		telephonyClient:  telephonyClient,
		hub:              hub,
		dispatchCfg:      dispatchCfg,
		telephonyCfg:     telephonyCfg,
		db:               db,
	}
}

// LaunchCampaign validates the campaign and starts dispatching in the background
func (f *DispatchFlowImpl) LaunchCampaign(ctx context.Context, userID uint, campaignUUID string, metadata *ClientMetadata) (*dto.LaunchCampaignResponse, error) {
	user, err := f.getActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	campaign, err := f.getOwnedCampaign(ctx, userID, campaignUUID)
	if err != nil {
		return nil, err
	}

	if err := f.startRun(ctx, campaign); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Campaign launched: %s", campaign.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionCampaignLaunched, msg, true, nil, metadata)

	f.dispatchInBackground(campaign.ID)

	return &dto.LaunchCampaignResponse{
		Message:       "Campaign launched",
		UUID:          campaign.UUID.String(),
		Status:        string(models.CampaignStatusRunning),
		TotalContacts: campaign.TotalContacts,
	}, nil
}

// PauseCampaign stops further dispatching; calls already placed keep running
func (f *DispatchFlowImpl) PauseCampaign(ctx context.Context, userID uint, campaignUUID string, metadata *ClientMetadata) (*dto.CampaignControlResponse, error) {
	user, err := f.getActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	campaign, err := f.getOwnedCampaign(ctx, userID, campaignUUID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusRunning {
		return nil, NewBusinessError("CAMPAIGN_NOT_PAUSABLE", "Campaign is not running", ErrCampaignNotPausable)
	}

	if err := f.campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusPaused); err != nil {
		return nil, NewBusinessError("CAMPAIGN_PAUSE_FAILED", "Failed to pause campaign", err)
	}
	f.publishCampaignStatus(campaign.UserID, campaign.UUID.String(), models.CampaignStatusPaused)

	msg := fmt.Sprintf("Campaign paused: %s", campaign.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionCampaignPaused, msg, true, nil, metadata)

	return &dto.CampaignControlResponse{
		Message: "Campaign paused",
		UUID:    campaign.UUID.String(),
		Status:  string(models.CampaignStatusPaused),
	}, nil
}

// ResumeCampaign restarts dispatching for the remaining contacts
func (f *DispatchFlowImpl) ResumeCampaign(ctx context.Context, userID uint, campaignUUID string, metadata *ClientMetadata) (*dto.CampaignControlResponse, error) {
	user, err := f.getActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	campaign, err := f.getOwnedCampaign(ctx, userID, campaignUUID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusPaused {
		return nil, NewBusinessError("CAMPAIGN_NOT_RESUMABLE", "Campaign is not paused", ErrCampaignNotResumable)
	}

	if err := f.campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusRunning); err != nil {
		return nil, NewBusinessError("CAMPAIGN_RESUME_FAILED", "Failed to resume campaign", err)
	}
	f.publishCampaignStatus(campaign.UserID, campaign.UUID.String(), models.CampaignStatusRunning)

	msg := fmt.Sprintf("Campaign resumed: %s", campaign.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionCampaignResumed, msg, true, nil, metadata)

	f.dispatchInBackground(campaign.ID)

	return &dto.CampaignControlResponse{
		Message: "Campaign resumed",
		UUID:    campaign.UUID.String(),
		Status:  string(models.CampaignStatusRunning),
	}, nil
}

// CancelCampaign permanently stops a campaign that is not yet finished
func (f *DispatchFlowImpl) CancelCampaign(ctx context.Context, userID uint, campaignUUID string, metadata *ClientMetadata) (*dto.CampaignControlResponse, error) {
	user, err := f.getActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	campaign, err := f.getOwnedCampaign(ctx, userID, campaignUUID)
	if err != nil {
		return nil, err
	}
	if !campaign.CanTransitionTo(models.CampaignStatusCancelled) {
		return nil, NewBusinessError("CAMPAIGN_NOT_CANCELLABLE", "Campaign is already finished", ErrCampaignNotCancellable)
	}

	if err := f.campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusCancelled); err != nil {
		return nil, NewBusinessError("CAMPAIGN_CANCEL_FAILED", "Failed to cancel campaign", err)
	}
	f.publishCampaignStatus(campaign.UserID, campaign.UUID.String(), models.CampaignStatusCancelled)

	msg := fmt.Sprintf("Campaign cancelled: %s", campaign.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionCampaignCancelled, msg, true, nil, metadata)

	return &dto.CampaignControlResponse{
		Message: "Campaign cancelled",
		UUID:    campaign.UUID.String(),
		Status:  string(models.CampaignStatusCancelled),
	}, nil
}

// LaunchDueCampaigns starts all pending campaigns whose scheduled time has passed
func (f *DispatchFlowImpl) LaunchDueCampaigns(ctx context.Context) (int, error) {
	due, err := f.campaignRepo.ListDueScheduled(ctx, utils.UTCNow())
	if err != nil {
		return 0, fmt.Errorf("failed to list due campaigns: %w", err)
	}

	launched := 0
	for _, campaign := range due {
		if err := f.startRun(ctx, campaign); err != nil {
			continue
		}
		f.dispatchInBackground(campaign.ID)
		launched++
	}

	return launched, nil
}

// Wait blocks until all background dispatch runs have drained
func (f *DispatchFlowImpl) Wait() {
	f.background.Wait()
}

// startRun validates launch preconditions and moves the campaign to running
func (f *DispatchFlowImpl) startRun(ctx context.Context, campaign *models.Campaign) error {
	if !campaign.CanTransitionTo(models.CampaignStatusRunning) {
		return NewBusinessError("CAMPAIGN_NOT_LAUNCHABLE", "Campaign cannot be launched in its current status", ErrCampaignNotLaunchable)
	}
	if campaign.AgentID == nil {
		return NewBusinessError("CAMPAIGN_HAS_NO_AGENT", "Campaign has no agent assigned", ErrCampaignHasNoAgent)
	}
	if campaign.TotalContacts == 0 {
		return NewBusinessError("NO_CONTACTS", "Campaign has no contacts", ErrNoContacts)
	}

	now := utils.UTCNow()
	campaign.Status = models.CampaignStatusRunning
	if campaign.StartedAt == nil {
		campaign.StartedAt = &now
	}
	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return NewBusinessError("CAMPAIGN_LAUNCH_FAILED", "Failed to launch campaign", err)
	}

	f.publishCampaignStatus(campaign.UserID, campaign.UUID.String(), models.CampaignStatusRunning)
	return nil
}

func (f *DispatchFlowImpl) dispatchInBackground(campaignID uint) {
	f.background.Add(1)
	go func() {
		defer f.background.Done()
		f.DispatchCampaign(context.Background(), campaignID)
	}()
}

// DispatchCampaign works through the campaign's pending conversation rows,
// upload order first. Rows that already left pending are never re-dialed,
// which makes relaunch after a pause or crash a continuation rather than a
// restart, and lets duplicate phone numbers each get their own call.
func (f *DispatchFlowImpl) DispatchCampaign(ctx context.Context, campaignID uint) {
	campaign, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil || campaign == nil {
		return
	}

	user, err := f.userRepo.ByID(ctx, campaign.UserID)
	if err != nil || user == nil {
		return
	}

	agent, err := f.agentRepo.ByID(ctx, *campaign.AgentID)
	if err != nil || agent == nil {
		return
	}

	pendingStatus := models.ConversationStatusPending
	pending, err := f.conversationRepo.ByFilter(ctx, models.ConversationFilter{
		CampaignID: &campaign.ID,
		Status:     &pendingStatus,
	}, "conversations.id ASC", 0, 0)
	if err != nil {
		return
	}

	dispatchID := uuid.New().String()

	concurrency := f.dispatchCfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, row := range pending {
		if row.PhoneNumber == "" {
			continue
		}

		// Pause and cancel take effect between placements
		current, err := f.campaignRepo.ByID(ctx, campaign.ID)
		if err != nil || current == nil || current.Status != models.CampaignStatusRunning {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(row *models.Conversation) {
			defer wg.Done()
			defer func() { <-sem }()
			f.dispatchRow(ctx, campaign, user, agent, row, dispatchID)
		}(row)
	}

	wg.Wait()
	f.finishIfDone(ctx, campaign.ID)
}

// dispatchRow flips a pending conversation to initiating and places its call
func (f *DispatchFlowImpl) dispatchRow(ctx context.Context, campaign *models.Campaign, user *models.User, agent *models.Agent, conversation *models.Conversation, dispatchID string) {
	conversation.AgentID = agent.ID
	conversation.Status = models.ConversationStatusInitiating
	if conversation.Metadata == nil {
		conversation.Metadata = models.ConversationMetadata{}
	}
	conversation.Metadata["campaign_uuid"] = campaign.UUID.String()
	conversation.Metadata["dispatch_id"] = dispatchID
	if err := f.conversationRepo.Update(ctx, conversation); err != nil {
		return
	}

	callCtx := ctx
	if f.dispatchCfg.PerCallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.dispatchCfg.PerCallTimeout)
		defer cancel()
	}

	externalConversationID, externalCallID, err := f.placeCall(callCtx, user, agent, conversation.PhoneNumber)
	if err != nil {
		errMsg := err.Error()
		conversation.Status = models.ConversationStatusFailed
		conversation.ErrorMessage = &errMsg
		_ = f.conversationRepo.Update(ctx, conversation)
		_ = f.campaignRepo.IncrementCounters(ctx, campaign.ID, 0, 0, 1)
		f.publishConversationStatus(user.ID, campaign.UUID.String(), conversation.UUID.String(), models.ConversationStatusFailed)
		return
	}

	now := utils.UTCNow()
	conversation.Status = models.ConversationStatusInProgress
	conversation.ExternalConversationID = externalConversationID
	conversation.ExternalCallID = externalCallID
	conversation.StartedAt = &now
	_ = f.conversationRepo.Update(ctx, conversation)
	_ = f.campaignRepo.IncrementCounters(ctx, campaign.ID, 1, 0, 0)
	f.publishConversationStatus(user.ID, campaign.UUID.String(), conversation.UUID.String(), models.ConversationStatusInProgress)
}

// placeCall routes through the telephony carrier when the tenant brings its
// own trunk, otherwise through the voice provider's native outbound calling.
func (f *DispatchFlowImpl) placeCall(ctx context.Context, user *models.User, agent *models.Agent, phone string) (externalConversationID, externalCallID *string, err error) {
	if user.HasTelephonyCredentials() {
		answerURL := f.telephonyCfg.AnswerURL
		if answerURL != "" {
			answerURL = fmt.Sprintf("%s?agent_id=%s", answerURL, agent.ExternalAgentID)
		}

		callUUID, err := f.telephonyClient.MakeCall(ctx, services.TelephonyCredentials{
			AuthID:    *user.TelephonyAuthID,
			AuthToken: *user.TelephonyAuthToken,
		}, services.MakeCallRequest{
			From:      callerNumber(user),
			To:        phone,
			AnswerURL: answerURL,
			HangupURL: f.telephonyCfg.HangupURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, &callUUID, nil
	}

	started, err := f.voiceClient.StartCall(ctx, voiceKey(user), services.StartCallRequest{
		AgentID:    agent.ExternalAgentID,
		FromNumber: callerNumber(user),
		ToNumber:   phone,
	})
	if err != nil {
		return nil, nil, err
	}
	return &started.ConversationID, &started.CallID, nil
}

// finishIfDone marks the campaign completed once every contact has been
// dispatched or failed
func (f *DispatchFlowImpl) finishIfDone(ctx context.Context, campaignID uint) {
	campaign, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil || campaign == nil {
		return
	}
	if campaign.Status != models.CampaignStatusRunning {
		return
	}
	if campaign.CallsDispatched+campaign.CallsFailed < campaign.TotalContacts {
		return
	}

	now := utils.UTCNow()
	campaign.Status = models.CampaignStatusCompleted
	campaign.CompletedAt = &now
	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return
	}

	f.publishCampaignStatus(campaign.UserID, campaign.UUID.String(), models.CampaignStatusCompleted)
}

func (f *DispatchFlowImpl) publishCampaignStatus(userID uint, campaignUUID string, status models.CampaignStatus) {
	if f.hub == nil {
		return
	}
	f.hub.Publish(userID, services.StatusEvent{
		Type:         services.StatusEventCampaign,
		CampaignUUID: campaignUUID,
		Status:       string(status),
		At:           utils.UTCNow(),
	})
}

func (f *DispatchFlowImpl) publishConversationStatus(userID uint, campaignUUID, conversationUUID string, status models.ConversationStatus) {
	if f.hub == nil {
		return
	}
	f.hub.Publish(userID, services.StatusEvent{
		Type:             services.StatusEventConversation,
		CampaignUUID:     campaignUUID,
		ConversationUUID: conversationUUID,
		Status:           string(status),
		At:               utils.UTCNow(),
	})
}

func (f *DispatchFlowImpl) getActiveUser(ctx context.Context, userID uint) (*models.User, error) {
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

func (f *DispatchFlowImpl) getOwnedCampaign(ctx context.Context, userID uint, campaignUUID string) (*models.Campaign, error) {
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

func (f *DispatchFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
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
