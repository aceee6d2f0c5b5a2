package businessflow

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/voximate/voximate/app/dto"
	"github.com/voximate/voximate/app/services"
	"github.com/voximate/voximate/config"
	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	"github.com/voximate/voximate/utils"
)

// reconcileOpenStatuses are the states a webhook event may still resolve
var reconcileOpenStatuses = []models.ConversationStatus{
	models.ConversationStatusInProgress,
	models.ConversationStatusConnected,
}

// hangupOpenStatuses additionally covers calls the carrier dropped before
// the voice provider ever picked them up
var hangupOpenStatuses = []models.ConversationStatus{
	models.ConversationStatusInProgress,
	models.ConversationStatusConnected,
	models.ConversationStatusInitiating,
}

// ReconcileFlow resolves provider webhooks back onto conversation rows and
// keeps campaign counters in step with call outcomes.
type ReconcileFlow interface {
	HandleVoiceWebhook(ctx context.Context, signatureHeader string, body []byte) error
	HandleHangupWebhook(ctx context.Context, req *dto.HangupWebhookRequest) error
}

// ReconcileFlowImpl implements the webhook reconciliation flow
type ReconcileFlowImpl struct {
	conversationRepo repository.ConversationRepository
	campaignRepo     repository.CampaignRepository
	hub              *services.StatusHub
	webhookSecret    string
	terminalGuard    bool
}

// NewReconcileFlow creates a new reconcile flow instance
func NewReconcileFlow(
	conversationRepo repository.ConversationRepository,
	campaignRepo repository.CampaignRepository,
	hub *services.StatusHub,
	voiceCfg config.VoiceAIConfig,
	dispatchCfg config.DispatchConfig,
) ReconcileFlow {
	return &ReconcileFlowImpl{
		conversationRepo: conversationRepo,
		campaignRepo:     campaignRepo,
		hub:              hub,
		webhookSecret:    voiceCfg.WebhookSecret,
		terminalGuard:    dispatchCfg.TerminalGuard,
	}
}

// HandleVoiceWebhook processes a post-call transcription event. Events for
// unknown conversations and unsupported types are acknowledged silently so
// the provider does not retry them forever.
func (f *ReconcileFlowImpl) HandleVoiceWebhook(ctx context.Context, signatureHeader string, body []byte) error {
	if f.webhookSecret != "" {
		if err := VerifyWebhookSignature(f.webhookSecret, signatureHeader, body, time.Now()); err != nil {
			return NewBusinessError("INVALID_WEBHOOK_SIGNATURE", "Webhook signature verification failed", err)
		}
	}

	var payload dto.VoiceWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return NewBusinessError("WEBHOOK_PARSE_FAILED", "Failed to parse webhook payload", fmt.Errorf("%w: %v", ErrWebhookPayloadInvalid, err))
	}
	if payload.Type != "post_call_transcription" {
		return nil
	}

	conversation, err := f.findVoiceConversation(ctx, payload.Data)
	if err != nil {
		return err
	}
	if conversation == nil {
		return nil
	}

	if f.terminalGuard && conversation.Status.IsTerminal() {
		f.recordLateEvent(ctx, conversation, "post_call_transcription")
		return nil
	}

	now := utils.UTCNow()
	transcript := FormatTranscript(payload.Data.Transcript)

	// The analysis verdict decides the outcome; a missing analysis is an
	// unknown verdict and counts as a failure.
	succeeded := payload.Data.Analysis != nil && payload.Data.Analysis.CallSuccessful == "success"
	if succeeded {
		conversation.Status = models.ConversationStatusCompleted
	} else {
		conversation.Status = models.ConversationStatusFailed
	}
	if payload.Data.ConversationID != "" && conversation.ExternalConversationID == nil {
		conversation.ExternalConversationID = &payload.Data.ConversationID
	}
	if transcript != "" {
		conversation.Transcript = &transcript
	}
	if payload.Data.Analysis != nil {
		success := payload.Data.Analysis.CallSuccessful == "success"
		conversation.Success = &success
		conversation.Summary = payload.Data.Analysis.TranscriptSummary
	}
	duration := payload.Data.Metadata.CallDurationSecs
	conversation.DurationSecs = &duration
	conversation.Cost = payload.Data.Metadata.Cost
	conversation.EndedAt = &now

	if err := f.conversationRepo.Update(ctx, conversation); err != nil {
		return NewBusinessError("CONVERSATION_UPDATE_FAILED", "Failed to update conversation", err)
	}

	f.publishConversation(conversation)
	f.settleCampaign(ctx, conversation, succeeded)
	return nil
}

// HandleHangupWebhook processes a carrier hangup event. NORMAL_CLEARING and
// USER_BUSY both count as completed; every other cause is a failure.
func (f *ReconcileFlowImpl) HandleHangupWebhook(ctx context.Context, req *dto.HangupWebhookRequest) error {
	conversation, err := f.findHangupConversation(ctx, req)
	if err != nil {
		return err
	}
	if conversation == nil {
		return nil
	}

	if f.terminalGuard && conversation.Status.IsTerminal() {
		f.recordLateEvent(ctx, conversation, "hangup")
		return nil
	}

	now := utils.UTCNow()
	completed := req.HangupCause == "NORMAL_CLEARING" || req.HangupCause == "USER_BUSY"
	if completed {
		conversation.Status = models.ConversationStatusCompleted
	} else {
		conversation.Status = models.ConversationStatusFailed
		cause := fmt.Sprintf("hangup cause: %s", req.HangupCause)
		conversation.ErrorMessage = &cause
	}

	duration := 0
	if parsed, err := strconv.Atoi(req.Duration); err == nil {
		duration = parsed
	}
	conversation.DurationSecs = &duration

	if req.CallUUID != "" && conversation.ExternalCallID == nil {
		conversation.ExternalCallID = &req.CallUUID
	}
	conversation.EndedAt = &now

	if err := f.conversationRepo.Update(ctx, conversation); err != nil {
		return NewBusinessError("CONVERSATION_UPDATE_FAILED", "Failed to update conversation", err)
	}

	f.publishConversation(conversation)
	f.settleCampaign(ctx, conversation, completed)
	return nil
}

// findVoiceConversation matches on the provider conversation id, falling
// back to the most recent open call for the agent.
func (f *ReconcileFlowImpl) findVoiceConversation(ctx context.Context, data dto.VoiceWebhookData) (*models.Conversation, error) {
	if data.ConversationID != "" {
		conversation, err := f.conversationRepo.ByExternalConversationID(ctx, data.ConversationID)
		if err != nil {
			return nil, NewBusinessError("CONVERSATION_LOOKUP_FAILED", "Failed to lookup conversation", err)
		}
		if conversation != nil {
			return conversation, nil
		}
	}

	if data.AgentID == "" {
		return nil, nil
	}

	conversation, err := f.conversationRepo.LatestByAgentInStatuses(ctx, data.AgentID, reconcileOpenStatuses)
	if err != nil {
		return nil, NewBusinessError("CONVERSATION_LOOKUP_FAILED", "Failed to lookup conversation", err)
	}
	return conversation, nil
}

// findHangupConversation matches on the carrier call id, falling back to the
// most recent open call to the dialed number.
func (f *ReconcileFlowImpl) findHangupConversation(ctx context.Context, req *dto.HangupWebhookRequest) (*models.Conversation, error) {
	if req.CallUUID != "" {
		conversation, err := f.conversationRepo.ByExternalCallID(ctx, req.CallUUID)
		if err != nil {
			return nil, NewBusinessError("CONVERSATION_LOOKUP_FAILED", "Failed to lookup conversation", err)
		}
		if conversation != nil {
			return conversation, nil
		}
	}

	if req.To == "" {
		return nil, nil
	}

	conversation, err := f.conversationRepo.LatestByPhoneInStatuses(ctx, nil, req.To, hangupOpenStatuses)
	if err != nil {
		return nil, NewBusinessError("CONVERSATION_LOOKUP_FAILED", "Failed to lookup conversation", err)
	}
	return conversation, nil
}

// recordLateEvent stores a webhook that arrived after the conversation was
// already settled; the terminal outcome is not overwritten.
func (f *ReconcileFlowImpl) recordLateEvent(ctx context.Context, conversation *models.Conversation, eventType string) {
	if conversation.Metadata == nil {
		conversation.Metadata = models.ConversationMetadata{}
	}
	conversation.Metadata["late_event_type"] = eventType
	conversation.Metadata["late_event_at"] = utils.UTCNow().Format(time.RFC3339)
	_ = f.conversationRepo.Update(ctx, conversation)
}

// settleCampaign advances campaign counters for a settled call and marks the
// campaign completed once every call is accounted for.
func (f *ReconcileFlowImpl) settleCampaign(ctx context.Context, conversation *models.Conversation, completed bool) {
	if conversation.CampaignID == nil {
		return
	}

	if completed {
		_ = f.campaignRepo.IncrementCounters(ctx, *conversation.CampaignID, 0, 1, 0)
	} else {
		_ = f.campaignRepo.IncrementCounters(ctx, *conversation.CampaignID, 0, 0, 1)
	}

	campaign, err := f.campaignRepo.ByID(ctx, *conversation.CampaignID)
	if err != nil || campaign == nil {
		return
	}
	if campaign.Status != models.CampaignStatusRunning {
		return
	}
	if campaign.CallsCompleted+campaign.CallsFailed < campaign.TotalContacts {
		return
	}

	now := utils.UTCNow()
	campaign.Status = models.CampaignStatusCompleted
	campaign.CompletedAt = &now
	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return
	}

	if f.hub != nil {
		f.hub.Publish(campaign.UserID, services.StatusEvent{
			Type:         services.StatusEventCampaign,
			CampaignUUID: campaign.UUID.String(),
			Status:       string(models.CampaignStatusCompleted),
			At:           utils.UTCNow(),
		})
	}
}

func (f *ReconcileFlowImpl) publishConversation(conversation *models.Conversation) {
	if f.hub == nil {
		return
	}

	campaignUUID := ""
	if uuid, ok := conversation.Metadata["campaign_uuid"].(string); ok {
		campaignUUID = uuid
	}

	f.hub.Publish(conversation.UserID, services.StatusEvent{
		Type:             services.StatusEventConversation,
		CampaignUUID:     campaignUUID,
		ConversationUUID: conversation.UUID.String(),
		Status:           string(conversation.Status),
		At:               utils.UTCNow(),
	})
}

// VerifyWebhookSignature checks the provider's signature header, formatted
// as "t=<unix>,v0=<hex>" where the digest is HMAC-SHA256 over
// "<unix>.<body>". Timestamps older than the tolerance window are rejected.
func VerifyWebhookSignature(secret, header string, body []byte, now time.Time) error {
	if header == "" {
		return ErrInvalidWebhookSignature
	}

	var timestamp, signature string
	for _, part := range strings.Split(header, ",") {
		switch {
		case strings.HasPrefix(part, "t="):
			timestamp = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v0="):
			signature = strings.TrimPrefix(part, "v0=")
		}
	}
	if timestamp == "" || signature == "" {
		return ErrInvalidWebhookSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidWebhookSignature
	}
	if now.Sub(time.Unix(unix, 0)) > utils.WebhookSignatureTolerance {
		return ErrWebhookTimestampStale
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidWebhookSignature
	}
	return nil
}

// FormatTranscript renders provider transcript turns as dashboard text,
// one "[MM:SS] Speaker: message" line per turn.
func FormatTranscript(turns []dto.TranscriptTurn) string {
	if len(turns) == 0 {
		return ""
	}

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		speaker := "Customer"
		if turn.Role == "agent" {
			speaker = "Agent"
		}
		total := int(turn.TimeInCallSecs)
		lines = append(lines, fmt.Sprintf("[%02d:%02d] %s: %s", total/60, total%60, speaker, turn.Message))
	}
	return strings.Join(lines, "\n")
}
