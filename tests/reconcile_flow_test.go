package tests

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voximate/voximate/app/dto"
	"github.com/voximate/voximate/app/services"
	businessflow "github.com/voximate/voximate/business_flow"
	"github.com/voximate/voximate/config"
	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	testingutil "github.com/voximate/voximate/testing"
	"github.com/voximate/voximate/utils"
)

const testWebhookSecret = "testsecret"

type reconcileEnv struct {
	flow businessflow.ReconcileFlow
	hub  *services.StatusHub

	campaignRepo     repository.CampaignRepository
	conversationRepo repository.ConversationRepository
}

func newReconcileEnv(testDB *testingutil.TestDB) *reconcileEnv {
	return newReconcileEnvWithGuard(testDB, true)
}

func newReconcileEnvWithGuard(testDB *testingutil.TestDB, terminalGuard bool) *reconcileEnv {
	env := &reconcileEnv{
		hub:              services.NewStatusHub(64),
		campaignRepo:     repository.NewCampaignRepository(testDB.DB),
		conversationRepo: repository.NewConversationRepository(testDB.DB),
	}

	env.flow = businessflow.NewReconcileFlow(
		env.conversationRepo,
		env.campaignRepo,
		env.hub,
		config.VoiceAIConfig{WebhookSecret: testWebhookSecret},
		config.DispatchConfig{TerminalGuard: terminalGuard},
	)
	return env
}

func signWebhookBody(secret string, body []byte, at time.Time) string {
	timestamp := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v0=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func voiceWebhookBody(t *testing.T, payload dto.VoiceWebhookPayload) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func TestHandleVoiceWebhook(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		env := newReconcileEnv(testDB)

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		agent, err := fixtures.CreateTestAgent(user.ID)
		require.NoError(t, err)

		openConversation := func(t *testing.T, campaignID *uint, externalID string) *models.Conversation {
			conversation, err := fixtures.CreateTestConversation(user.ID, agent.ID, campaignID, models.ConversationStatusInProgress)
			require.NoError(t, err)
			if externalID != "" {
				conversation.ExternalConversationID = &externalID
				require.NoError(t, testDB.DB.Save(conversation).Error)
			}
			return conversation
		}

		t.Run("CompletesMatchedConversation", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			campaign.Status = models.CampaignStatusRunning
			campaign.CallsDispatched = 3
			require.NoError(t, testDB.DB.Save(campaign).Error)

			conversation := openConversation(t, &campaign.ID, "conv_ext_0001")

			summary := "Customer renewed the annual plan."
			cost := 0.42
			body := voiceWebhookBody(t, dto.VoiceWebhookPayload{
				Type: "post_call_transcription",
				Data: dto.VoiceWebhookData{
					ConversationID: "conv_ext_0001",
					AgentID:        agent.ExternalAgentID,
					Status:         "done",
					Transcript: []dto.TranscriptTurn{
						{Role: "agent", Message: "Hello, this is the renewal desk.", TimeInCallSecs: 0},
						{Role: "user", Message: "Great timing, sign me up.", TimeInCallSecs: 65},
					},
					Metadata: dto.VoiceWebhookMetadata{CallDurationSecs: 92, Cost: &cost},
					Analysis: &dto.VoiceWebhookAnalysis{CallSuccessful: "success", TranscriptSummary: &summary},
				},
			})

			err = env.flow.HandleVoiceWebhook(ctx, signWebhookBody(testWebhookSecret, body, time.Now()), body)
			require.NoError(t, err)

			reloaded, err := env.conversationRepo.ByID(ctx, conversation.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ConversationStatusCompleted, reloaded.Status)
			require.NotNil(t, reloaded.Transcript)
			assert.Equal(t, "[00:00] Agent: Hello, this is the renewal desk.\n[01:05] Customer: Great timing, sign me up.", *reloaded.Transcript)
			require.NotNil(t, reloaded.Success)
			assert.True(t, *reloaded.Success)
			require.NotNil(t, reloaded.Summary)
			assert.Equal(t, summary, *reloaded.Summary)
			require.NotNil(t, reloaded.DurationSecs)
			assert.Equal(t, 92, *reloaded.DurationSecs)
			require.NotNil(t, reloaded.Cost)
			assert.InDelta(t, 0.42, *reloaded.Cost, 0.0001)
			assert.NotNil(t, reloaded.EndedAt)

			reloadedCampaign, err := env.campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, reloadedCampaign.CallsCompleted)
		})

		t.Run("FailureVerdictFailsTheCall", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			campaign.Status = models.CampaignStatusRunning
			campaign.CallsDispatched = 3
			require.NoError(t, testDB.DB.Save(campaign).Error)

			conversation := openConversation(t, &campaign.ID, "conv_ext_0002")

			body := voiceWebhookBody(t, dto.VoiceWebhookPayload{
				Type: "post_call_transcription",
				Data: dto.VoiceWebhookData{
					ConversationID: "conv_ext_0002",
					AgentID:        agent.ExternalAgentID,
					Metadata:       dto.VoiceWebhookMetadata{CallDurationSecs: 18},
					Analysis:       &dto.VoiceWebhookAnalysis{CallSuccessful: "failure"},
				},
			})

			err = env.flow.HandleVoiceWebhook(ctx, signWebhookBody(testWebhookSecret, body, time.Now()), body)
			require.NoError(t, err)

			reloaded, err := env.conversationRepo.ByID(ctx, conversation.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ConversationStatusFailed, reloaded.Status)
			require.NotNil(t, reloaded.Success)
			assert.False(t, *reloaded.Success)

			reloadedCampaign, err := env.campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, reloadedCampaign.CallsCompleted)
			assert.Equal(t, 1, reloadedCampaign.CallsFailed)
		})

		t.Run("RejectsBadSignature", func(t *testing.T) {
			body := voiceWebhookBody(t, dto.VoiceWebhookPayload{Type: "post_call_transcription"})

			err := env.flow.HandleVoiceWebhook(ctx, signWebhookBody("wrong-secret", body, time.Now()), body)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidWebhookSignature(err))

			err = env.flow.HandleVoiceWebhook(ctx, signWebhookBody(testWebhookSecret, body, time.Now().Add(-time.Hour)), body)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrWebhookTimestampStale)
		})

		t.Run("IgnoresOtherEventTypes", func(t *testing.T) {
			body := voiceWebhookBody(t, dto.VoiceWebhookPayload{Type: "conversation_started"})
			err := env.flow.HandleVoiceWebhook(ctx, signWebhookBody(testWebhookSecret, body, time.Now()), body)
			require.NoError(t, err)
		})

		t.Run("AcksUnknownConversation", func(t *testing.T) {
			body := voiceWebhookBody(t, dto.VoiceWebhookPayload{
				Type: "post_call_transcription",
				Data: dto.VoiceWebhookData{ConversationID: "conv_never_seen"},
			})
			err := env.flow.HandleVoiceWebhook(ctx, signWebhookBody(testWebhookSecret, body, time.Now()), body)
			require.NoError(t, err)
		})

		t.Run("FallsBackToLatestOpenCallForAgent", func(t *testing.T) {
			older := openConversation(t, nil, "")
			older.CreatedAt = utils.UTCNow().Add(-time.Hour)
			require.NoError(t, testDB.DB.Save(older).Error)
			newest := openConversation(t, nil, "")

			body := voiceWebhookBody(t, dto.VoiceWebhookPayload{
				Type: "post_call_transcription",
				Data: dto.VoiceWebhookData{
					ConversationID: "conv_unmatched",
					AgentID:        agent.ExternalAgentID,
					Metadata:       dto.VoiceWebhookMetadata{CallDurationSecs: 30},
				},
			})

			err = env.flow.HandleVoiceWebhook(ctx, signWebhookBody(testWebhookSecret, body, time.Now()), body)
			require.NoError(t, err)

			reloaded, err := env.conversationRepo.ByID(ctx, newest.ID)
			require.NoError(t, err)
			// No analysis means no verdict, which settles as a failure
			assert.Equal(t, models.ConversationStatusFailed, reloaded.Status)
			// The unmatched provider id is adopted by the fallback row
			require.NotNil(t, reloaded.ExternalConversationID)
			assert.Equal(t, "conv_unmatched", *reloaded.ExternalConversationID)

			untouched, err := env.conversationRepo.ByID(ctx, older.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ConversationStatusInProgress, untouched.Status)
		})

		t.Run("TerminalGuardKeepsFirstOutcome", func(t *testing.T) {
			conversation, err := fixtures.CreateTestConversation(user.ID, agent.ID, nil, models.ConversationStatusFailed)
			require.NoError(t, err)
			externalID := "conv_ext_guard"
			conversation.ExternalConversationID = &externalID
			require.NoError(t, testDB.DB.Save(conversation).Error)

			body := voiceWebhookBody(t, dto.VoiceWebhookPayload{
				Type: "post_call_transcription",
				Data: dto.VoiceWebhookData{ConversationID: externalID},
			})
			err = env.flow.HandleVoiceWebhook(ctx, signWebhookBody(testWebhookSecret, body, time.Now()), body)
			require.NoError(t, err)

			reloaded, err := env.conversationRepo.ByID(ctx, conversation.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ConversationStatusFailed, reloaded.Status)
			assert.Equal(t, "post_call_transcription", reloaded.Metadata["late_event_type"])
			assert.NotEmpty(t, reloaded.Metadata["late_event_at"])
		})

		t.Run("DisabledGuardLetsLaterEventOverwrite", func(t *testing.T) {
			relaxed := newReconcileEnvWithGuard(testDB, false)

			conversation, err := fixtures.CreateTestConversation(user.ID, agent.ID, nil, models.ConversationStatusFailed)
			require.NoError(t, err)
			externalID := "conv_ext_rewrite"
			conversation.ExternalConversationID = &externalID
			require.NoError(t, testDB.DB.Save(conversation).Error)

			body := voiceWebhookBody(t, dto.VoiceWebhookPayload{
				Type: "post_call_transcription",
				Data: dto.VoiceWebhookData{
					ConversationID: externalID,
					Metadata:       dto.VoiceWebhookMetadata{CallDurationSecs: 50},
					Analysis:       &dto.VoiceWebhookAnalysis{CallSuccessful: "success"},
				},
			})
			err = relaxed.flow.HandleVoiceWebhook(ctx, signWebhookBody(testWebhookSecret, body, time.Now()), body)
			require.NoError(t, err)

			// Last write wins when the guard is off
			reloaded, err := relaxed.conversationRepo.ByID(ctx, conversation.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ConversationStatusCompleted, reloaded.Status)
			assert.NotContains(t, reloaded.Metadata, "late_event_type")
		})

		return nil
	})
	require.NoError(t, err)
}

func TestHandleHangupWebhook(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		env := newReconcileEnv(testDB)

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		agent, err := fixtures.CreateTestAgent(user.ID)
		require.NoError(t, err)

		t.Run("CompletesOnNormalClearing", func(t *testing.T) {
			conversation, err := fixtures.CreateTestConversation(user.ID, agent.ID, nil, models.ConversationStatusInProgress)
			require.NoError(t, err)
			callUUID := "uuid-hangup-0001"
			conversation.ExternalCallID = &callUUID
			require.NoError(t, testDB.DB.Save(conversation).Error)

			err = env.flow.HandleHangupWebhook(ctx, &dto.HangupWebhookRequest{
				CallUUID:    callUUID,
				HangupCause: "NORMAL_CLEARING",
				Duration:    "73",
				To:          conversation.PhoneNumber,
			})
			require.NoError(t, err)

			reloaded, err := env.conversationRepo.ByID(ctx, conversation.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ConversationStatusCompleted, reloaded.Status)
			require.NotNil(t, reloaded.DurationSecs)
			assert.Equal(t, 73, *reloaded.DurationSecs)
			assert.Nil(t, reloaded.ErrorMessage)
			assert.NotNil(t, reloaded.EndedAt)
		})

		t.Run("UserBusyCountsAsCompleted", func(t *testing.T) {
			conversation, err := fixtures.CreateTestConversation(user.ID, agent.ID, nil, models.ConversationStatusInProgress)
			require.NoError(t, err)
			callUUID := "uuid-hangup-0002"
			conversation.ExternalCallID = &callUUID
			require.NoError(t, testDB.DB.Save(conversation).Error)

			err = env.flow.HandleHangupWebhook(ctx, &dto.HangupWebhookRequest{
				CallUUID:    callUUID,
				HangupCause: "USER_BUSY",
				Duration:    "0",
			})
			require.NoError(t, err)

			reloaded, err := env.conversationRepo.ByID(ctx, conversation.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ConversationStatusCompleted, reloaded.Status)
		})

		t.Run("OtherCausesFailTheCall", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			conversation, err := fixtures.CreateTestConversation(user.ID, agent.ID, &campaign.ID, models.ConversationStatusInProgress)
			require.NoError(t, err)
			callUUID := "uuid-hangup-0003"
			conversation.ExternalCallID = &callUUID
			require.NoError(t, testDB.DB.Save(conversation).Error)

			err = env.flow.HandleHangupWebhook(ctx, &dto.HangupWebhookRequest{
				CallUUID:    callUUID,
				HangupCause: "NO_ANSWER",
				Duration:    "0",
			})
			require.NoError(t, err)

			reloaded, err := env.conversationRepo.ByID(ctx, conversation.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ConversationStatusFailed, reloaded.Status)
			require.NotNil(t, reloaded.ErrorMessage)
			assert.Equal(t, "hangup cause: NO_ANSWER", *reloaded.ErrorMessage)

			reloadedCampaign, err := env.campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, reloadedCampaign.CallsFailed)
		})

		t.Run("FallsBackToLatestOpenCallForNumber", func(t *testing.T) {
			conversation, err := fixtures.CreateTestConversation(user.ID, agent.ID, nil, models.ConversationStatusInitiating)
			require.NoError(t, err)
			phone := "+15557770001"
			conversation.PhoneNumber = phone
			require.NoError(t, testDB.DB.Save(conversation).Error)

			err = env.flow.HandleHangupWebhook(ctx, &dto.HangupWebhookRequest{
				CallUUID:    "uuid-never-seen",
				HangupCause: "NORMAL_CLEARING",
				Duration:    "12",
				To:          phone,
			})
			require.NoError(t, err)

			reloaded, err := env.conversationRepo.ByID(ctx, conversation.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ConversationStatusCompleted, reloaded.Status)
			// The carrier call id is adopted by the fallback row
			require.NotNil(t, reloaded.ExternalCallID)
			assert.Equal(t, "uuid-never-seen", *reloaded.ExternalCallID)
		})

		t.Run("AcksUnmatchedHangup", func(t *testing.T) {
			err := env.flow.HandleHangupWebhook(ctx, &dto.HangupWebhookRequest{
				CallUUID:    "uuid-orphan",
				HangupCause: "NORMAL_CLEARING",
			})
			require.NoError(t, err)
		})

		t.Run("LateHangupRecordedWithoutOverwrite", func(t *testing.T) {
			conversation, err := fixtures.CreateTestConversation(user.ID, agent.ID, nil, models.ConversationStatusCompleted)
			require.NoError(t, err)
			callUUID := "uuid-hangup-0004"
			conversation.ExternalCallID = &callUUID
			require.NoError(t, testDB.DB.Save(conversation).Error)

			err = env.flow.HandleHangupWebhook(ctx, &dto.HangupWebhookRequest{
				CallUUID:    callUUID,
				HangupCause: "NO_ANSWER",
				Duration:    "0",
			})
			require.NoError(t, err)

			reloaded, err := env.conversationRepo.ByID(ctx, conversation.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ConversationStatusCompleted, reloaded.Status)
			assert.Nil(t, reloaded.ErrorMessage)
			assert.Equal(t, "hangup", reloaded.Metadata["late_event_type"])
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCampaignSettlesFromWebhooks(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		env := newReconcileEnv(testDB)

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		agent, err := fixtures.CreateTestAgent(user.ID)
		require.NoError(t, err)
		campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
		require.NoError(t, err)
		campaign.Status = models.CampaignStatusRunning
		campaign.CallsDispatched = 3
		campaign.CallsCompleted = 2
		require.NoError(t, testDB.DB.Save(campaign).Error)

		conversation, err := fixtures.CreateTestConversation(user.ID, agent.ID, &campaign.ID, models.ConversationStatusInProgress)
		require.NoError(t, err)
		callUUID := "uuid-settle-0001"
		conversation.ExternalCallID = &callUUID
		require.NoError(t, testDB.DB.Save(conversation).Error)

		events, cancel := env.hub.Subscribe(user.ID)
		defer cancel()

		err = env.flow.HandleHangupWebhook(ctx, &dto.HangupWebhookRequest{
			CallUUID:    callUUID,
			HangupCause: "NORMAL_CLEARING",
			Duration:    "45",
		})
		require.NoError(t, err)

		reloaded, err := env.campaignRepo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusCompleted, reloaded.Status)
		assert.Equal(t, 3, reloaded.CallsCompleted)
		assert.NotNil(t, reloaded.CompletedAt)

		sawCompletion := false
		for i := 0; i < 2; i++ {
			select {
			case evt := <-events:
				if evt.Type == services.StatusEventCampaign && evt.Status == string(models.CampaignStatusCompleted) {
					sawCompletion = true
				}
			case <-time.After(100 * time.Millisecond):
			}
		}
		assert.True(t, sawCompletion)

		return nil
	})
	require.NoError(t, err)
}
