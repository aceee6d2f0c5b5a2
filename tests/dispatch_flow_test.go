package tests

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voximate/voximate/app/services"
	businessflow "github.com/voximate/voximate/business_flow"
	"github.com/voximate/voximate/config"
	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	testingutil "github.com/voximate/voximate/testing"
	"github.com/voximate/voximate/utils"
)

type dispatchEnv struct {
	flow      *businessflow.DispatchFlowImpl
	voice     *services.MockVoiceClient
	telephony *services.MockTelephonyClient
	hub       *services.StatusHub

	campaignRepo     repository.CampaignRepository
	conversationRepo repository.ConversationRepository
}

func newDispatchEnv(testDB *testingutil.TestDB) *dispatchEnv {
	env := &dispatchEnv{
		voice:            services.NewMockVoiceClient(),
		telephony:        services.NewMockTelephonyClient(),
		hub:              services.NewStatusHub(64),
		campaignRepo:     repository.NewCampaignRepository(testDB.DB),
		conversationRepo: repository.NewConversationRepository(testDB.DB),
	}

	env.flow = businessflow.NewDispatchFlow(
		env.campaignRepo,
		env.conversationRepo,
		repository.NewAgentRepository(testDB.DB),
		repository.NewUserRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		env.voice,
		env.telephony,
		env.hub,
		config.DispatchConfig{
			Concurrency:    2,
			PerCallTimeout: 5 * time.Second,
			TerminalGuard:  true,
			HubBuffer:      64,
		},
		config.TelephonyConfig{
			AnswerURL: "https://hooks.example.com/answer",
			HangupURL: "https://hooks.example.com/hangup",
		},
		testDB.DB,
	)
	return env
}

func TestLaunchCampaign(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)

		t.Run("DispatchesAllContactsOverTelephony", func(t *testing.T) {
			env := newDispatchEnv(testDB)
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			agent, err := fixtures.CreateTestAgent(user.ID)
			require.NoError(t, err)
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			_, err = fixtures.CreatePendingContacts(campaign)
			require.NoError(t, err)

			resp, err := env.flow.LaunchCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.NoError(t, err)
			assert.Equal(t, "running", resp.Status)
			assert.Equal(t, 3, resp.TotalContacts)

			env.flow.Wait()

			// Tenant has carrier credentials, so calls route over the trunk
			placed := env.telephony.GetPlacedCalls()
			require.Len(t, placed, 3)
			assert.Empty(t, env.voice.GetStartedCalls())
			assert.Equal(t, *user.TelephonyAuthID, placed[0].Creds.AuthID)
			assert.Contains(t, placed[0].Request.AnswerURL, agent.ExternalAgentID)

			conversations, err := env.conversationRepo.ByFilter(ctx, models.ConversationFilter{CampaignID: &campaign.ID}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, conversations, 3)
			for _, conversation := range conversations {
				assert.Equal(t, models.ConversationStatusInProgress, conversation.Status)
				require.NotNil(t, conversation.ExternalCallID)
				assert.Nil(t, conversation.ExternalConversationID)
				assert.NotNil(t, conversation.StartedAt)
				assert.Equal(t, campaign.UUID.String(), conversation.Metadata["campaign_uuid"])
				assert.NotEmpty(t, conversation.Metadata["dispatch_id"])
			}

			reloaded, err := env.campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, reloaded.CallsDispatched)
			assert.Equal(t, 0, reloaded.CallsFailed)
			assert.NotNil(t, reloaded.StartedAt)
		})

		t.Run("RoutesThroughVoiceProviderWithoutTrunk", func(t *testing.T) {
			env := newDispatchEnv(testDB)
			user, err := fixtures.CreateTestUserWithoutCredentials()
			require.NoError(t, err)
			agent, err := fixtures.CreateTestAgent(user.ID)
			require.NoError(t, err)
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			_, err = fixtures.CreatePendingContacts(campaign)
			require.NoError(t, err)

			_, err = env.flow.LaunchCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.NoError(t, err)
			env.flow.Wait()

			started := env.voice.GetStartedCalls()
			require.Len(t, started, 3)
			assert.Empty(t, env.telephony.GetPlacedCalls())
			assert.Equal(t, agent.ExternalAgentID, started[0].Request.AgentID)

			conversations, err := env.conversationRepo.ByFilter(ctx, models.ConversationFilter{CampaignID: &campaign.ID}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, conversations, 3)
			for _, conversation := range conversations {
				require.NotNil(t, conversation.ExternalConversationID)
				require.NotNil(t, conversation.ExternalCallID)
			}
		})

		t.Run("FailedPlacementsAreRecorded", func(t *testing.T) {
			env := newDispatchEnv(testDB)
			env.telephony.FailNumbers["+15550000002"] = errors.New("carrier rejected the call")

			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			agent, err := fixtures.CreateTestAgent(user.ID)
			require.NoError(t, err)
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			_, err = fixtures.CreatePendingContacts(campaign)
			require.NoError(t, err)

			_, err = env.flow.LaunchCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.NoError(t, err)
			env.flow.Wait()

			failed, err := env.conversationRepo.ByFilter(ctx, models.ConversationFilter{
				CampaignID: &campaign.ID,
				Status:     utils.ToPtr(models.ConversationStatusFailed),
			}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, failed, 1)
			assert.Equal(t, "+15550000002", failed[0].PhoneNumber)
			require.NotNil(t, failed[0].ErrorMessage)
			assert.Equal(t, "carrier rejected the call", *failed[0].ErrorMessage)

			reloaded, err := env.campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, reloaded.CallsDispatched)
			assert.Equal(t, 1, reloaded.CallsFailed)
		})

		t.Run("RelaunchSkipsAttemptedContacts", func(t *testing.T) {
			env := newDispatchEnv(testDB)
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			agent, err := fixtures.CreateTestAgent(user.ID)
			require.NoError(t, err)
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			rows, err := fixtures.CreatePendingContacts(campaign)
			require.NoError(t, err)

			// One row already settled during an earlier run
			rows[0].Status = models.ConversationStatusCompleted
			require.NoError(t, testDB.DB.Save(rows[0]).Error)

			campaign.Status = models.CampaignStatusPaused
			require.NoError(t, testDB.DB.Save(campaign).Error)

			_, err = env.flow.ResumeCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.NoError(t, err)
			env.flow.Wait()

			placed := env.telephony.GetPlacedCalls()
			require.Len(t, placed, 2)
			for _, call := range placed {
				assert.NotEqual(t, rows[0].PhoneNumber, call.Request.To)
			}
		})

		t.Run("DuplicatePhonesEachGetTheirOwnCall", func(t *testing.T) {
			env := newDispatchEnv(testDB)
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			agent, err := fixtures.CreateTestAgent(user.ID)
			require.NoError(t, err)
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)

			campaign.ContactList = models.ContactList{
				{"phone_number": "+15550000009", "name": "Dana First"},
				{"phone_number": "+15550000009", "name": "Dana Second"},
			}
			campaign.TotalContacts = 2
			require.NoError(t, testDB.DB.Save(campaign).Error)
			_, err = fixtures.CreatePendingContacts(campaign)
			require.NoError(t, err)

			env.telephony.FailNumbers["+15550000009"] = errors.New("unreachable")

			_, err = env.flow.LaunchCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.NoError(t, err)
			env.flow.Wait()

			reloaded, err := env.campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, reloaded.CallsFailed)
			assert.Equal(t, models.CampaignStatusCompleted, reloaded.Status)
		})

		t.Run("CompletesWhenEveryContactSettles", func(t *testing.T) {
			env := newDispatchEnv(testDB)
			env.telephony.FailNumbers["+15550000001"] = errors.New("unreachable")
			env.telephony.FailNumbers["+15550000002"] = errors.New("unreachable")
			env.telephony.FailNumbers["+15550000003"] = errors.New("unreachable")

			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			agent, err := fixtures.CreateTestAgent(user.ID)
			require.NoError(t, err)
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			_, err = fixtures.CreatePendingContacts(campaign)
			require.NoError(t, err)

			_, err = env.flow.LaunchCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.NoError(t, err)
			env.flow.Wait()

			reloaded, err := env.campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignStatusCompleted, reloaded.Status)
			assert.Equal(t, 3, reloaded.CallsFailed)
			assert.NotNil(t, reloaded.CompletedAt)
		})

		t.Run("PublishesStatusEvents", func(t *testing.T) {
			env := newDispatchEnv(testDB)
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			agent, err := fixtures.CreateTestAgent(user.ID)
			require.NoError(t, err)
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			_, err = fixtures.CreatePendingContacts(campaign)
			require.NoError(t, err)

			events, cancel := env.hub.Subscribe(user.ID)
			defer cancel()

			_, err = env.flow.LaunchCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.NoError(t, err)
			env.flow.Wait()

			var campaignEvents, conversationEvents int
		drain:
			for {
				select {
				case evt := <-events:
					assert.Equal(t, campaign.UUID.String(), evt.CampaignUUID)
					switch evt.Type {
					case services.StatusEventCampaign:
						campaignEvents++
					case services.StatusEventConversation:
						conversationEvents++
					}
				case <-time.After(100 * time.Millisecond):
					break drain
				}
			}

			// A running event plus one per placed call
			assert.GreaterOrEqual(t, campaignEvents, 1)
			assert.Equal(t, 3, conversationEvents)
		})

		t.Run("LaunchPreconditions", func(t *testing.T) {
			env := newDispatchEnv(testDB)
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			agent, err := fixtures.CreateTestAgent(user.ID)
			require.NoError(t, err)

			noAgent, err := fixtures.CreateTestCampaign(user.ID, nil)
			require.NoError(t, err)
			_, err = env.flow.LaunchCampaign(ctx, user.ID, noAgent.UUID.String(), testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignHasNoAgent(err))

			empty, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			empty.ContactList = nil
			empty.TotalContacts = 0
			require.NoError(t, testDB.DB.Save(empty).Error)
			_, err = env.flow.LaunchCampaign(ctx, user.ID, empty.UUID.String(), testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsNoContacts(err))

			done, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			done.Status = models.CampaignStatusCompleted
			require.NoError(t, testDB.DB.Save(done).Error)
			_, err = env.flow.LaunchCampaign(ctx, user.ID, done.UUID.String(), testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignNotLaunchable(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCampaignControls(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		env := newDispatchEnv(testDB)

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		agent, err := fixtures.CreateTestAgent(user.ID)
		require.NoError(t, err)

		t.Run("PauseRequiresRunning", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)

			_, err = env.flow.PauseCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignNotPausable(err))
		})

		t.Run("PauseAndResume", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			campaign.Status = models.CampaignStatusRunning
			require.NoError(t, testDB.DB.Save(campaign).Error)

			resp, err := env.flow.PauseCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.NoError(t, err)
			assert.Equal(t, "paused", resp.Status)

			resp, err = env.flow.ResumeCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.NoError(t, err)
			assert.Equal(t, "running", resp.Status)
			env.flow.Wait()
		})

		t.Run("ResumeRequiresPaused", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)

			_, err = env.flow.ResumeCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignNotResumable(err))
		})

		t.Run("CancelFromDraft", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)

			resp, err := env.flow.CancelCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.NoError(t, err)
			assert.Equal(t, "cancelled", resp.Status)
		})

		t.Run("CancelRejectedOnceFinished", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			campaign.Status = models.CampaignStatusCompleted
			require.NoError(t, testDB.DB.Save(campaign).Error)

			_, err = env.flow.CancelCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignNotCancellable(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestLaunchDueCampaigns(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		env := newDispatchEnv(testDB)

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		agent, err := fixtures.CreateTestAgent(user.ID)
		require.NoError(t, err)

		due, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
		require.NoError(t, err)
		_, err = fixtures.CreatePendingContacts(due)
		require.NoError(t, err)
		past := utils.UTCNow().Add(-time.Minute)
		due.Status = models.CampaignStatusPending
		due.ScheduledAt = &past
		require.NoError(t, testDB.DB.Save(due).Error)

		notYet, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
		require.NoError(t, err)
		future := utils.UTCNow().Add(time.Hour)
		notYet.Status = models.CampaignStatusPending
		notYet.ScheduledAt = &future
		require.NoError(t, testDB.DB.Save(notYet).Error)

		launched, err := env.flow.LaunchDueCampaigns(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, launched)
		env.flow.Wait()

		reloadedDue, err := env.campaignRepo.ByID(ctx, due.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, reloadedDue.CallsDispatched)

		reloadedNotYet, err := env.campaignRepo.ByID(ctx, notYet.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusPending, reloadedNotYet.Status)
		assert.Equal(t, 0, reloadedNotYet.CallsDispatched)

		return nil
	})
	require.NoError(t, err)
}
