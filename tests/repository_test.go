package tests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	testingutil "github.com/voximate/voximate/testing"
	"github.com/voximate/voximate/utils"
)

func TestCampaignRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		campaignRepo := repository.NewCampaignRepository(testDB.DB)

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		agent, err := fixtures.CreateTestAgent(user.ID)
		require.NoError(t, err)

		t.Run("ByUUID", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)

			found, err := campaignRepo.ByUUID(ctx, campaign.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, campaign.ID, found.ID)

			missing, err := campaignRepo.ByUUID(ctx, "00000000-0000-0000-0000-000000000000")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("UpdateStatus", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)

			require.NoError(t, campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusRunning))

			reloaded, err := campaignRepo.ByUUID(ctx, campaign.UUID.String())
			require.NoError(t, err)
			assert.Equal(t, models.CampaignStatusRunning, reloaded.Status)
		})

		t.Run("IncrementCountersIsCumulative", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)

			require.NoError(t, campaignRepo.IncrementCounters(ctx, campaign.ID, 2, 0, 0))
			require.NoError(t, campaignRepo.IncrementCounters(ctx, campaign.ID, 1, 1, 1))

			reloaded, err := campaignRepo.ByUUID(ctx, campaign.UUID.String())
			require.NoError(t, err)
			assert.Equal(t, 3, reloaded.CallsDispatched)
			assert.Equal(t, 1, reloaded.CallsCompleted)
			assert.Equal(t, 1, reloaded.CallsFailed)
		})

		t.Run("ListDueScheduled", func(t *testing.T) {
			past := utils.UTCNow().Add(-10 * time.Minute)
			future := utils.UTCNow().Add(10 * time.Minute)

			due, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			due.Status = models.CampaignStatusPending
			due.ScheduledAt = &past
			require.NoError(t, testDB.DB.Save(due).Error)

			notYet, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			notYet.Status = models.CampaignStatusPending
			notYet.ScheduledAt = &future
			require.NoError(t, testDB.DB.Save(notYet).Error)

			found, err := campaignRepo.ListDueScheduled(ctx, utils.UTCNow())
			require.NoError(t, err)

			ids := make(map[uint]bool)
			for _, c := range found {
				ids[c.ID] = true
			}
			assert.True(t, ids[due.ID])
			assert.False(t, ids[notYet.ID])
		})

		t.Run("CountByStatusFilter", func(t *testing.T) {
			status := models.CampaignStatusDraft
			count, err := campaignRepo.Count(ctx, models.CampaignFilter{UserID: &user.ID, Status: &status})
			require.NoError(t, err)
			assert.Greater(t, count, int64(0))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestConversationRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		conversationRepo := repository.NewConversationRepository(testDB.DB)

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		agent, err := fixtures.CreateTestAgent(user.ID)
		require.NoError(t, err)

		t.Run("ByExternalConversationID", func(t *testing.T) {
			conv, err := fixtures.CreateTestConversation(user.ID, agent.ID, nil, models.ConversationStatusInProgress)
			require.NoError(t, err)

			conv.ExternalConversationID = utils.ToPtr("conv_ext_001")
			require.NoError(t, conversationRepo.Update(ctx, conv))

			found, err := conversationRepo.ByExternalConversationID(ctx, "conv_ext_001")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, conv.ID, found.ID)

			missing, err := conversationRepo.ByExternalConversationID(ctx, "conv_ext_nope")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("LatestByAgentInStatusesPrefersNewest", func(t *testing.T) {
			older, err := fixtures.CreateTestConversation(user.ID, agent.ID, nil, models.ConversationStatusInProgress)
			require.NoError(t, err)
			older.CreatedAt = utils.UTCNow().Add(-time.Hour)
			require.NoError(t, testDB.DB.Save(older).Error)

			newer, err := fixtures.CreateTestConversation(user.ID, agent.ID, nil, models.ConversationStatusInProgress)
			require.NoError(t, err)

			found, err := conversationRepo.LatestByAgentInStatuses(ctx, agent.ExternalAgentID, []models.ConversationStatus{
				models.ConversationStatusInProgress,
				models.ConversationStatusConnected,
			})
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, newer.ID, found.ID)
		})

		t.Run("LatestByAgentSkipsTerminalRows", func(t *testing.T) {
			other, err := fixtures.CreateTestAgent(user.ID)
			require.NoError(t, err)

			_, err = fixtures.CreateTestConversation(user.ID, other.ID, nil, models.ConversationStatusCompleted)
			require.NoError(t, err)

			found, err := conversationRepo.LatestByAgentInStatuses(ctx, other.ExternalAgentID, []models.ConversationStatus{
				models.ConversationStatusInProgress,
				models.ConversationStatusConnected,
			})
			require.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("LatestByPhoneInStatuses", func(t *testing.T) {
			conv, err := fixtures.CreateTestConversation(user.ID, agent.ID, nil, models.ConversationStatusInitiating)
			require.NoError(t, err)

			found, err := conversationRepo.LatestByPhoneInStatuses(ctx, nil, conv.PhoneNumber, []models.ConversationStatus{
				models.ConversationStatusInProgress,
				models.ConversationStatusConnected,
				models.ConversationStatusInitiating,
			})
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, conv.ID, found.ID)
		})

		t.Run("CountByStatus", func(t *testing.T) {
			counts, err := conversationRepo.CountByStatus(ctx, models.ConversationFilter{UserID: &user.ID})
			require.NoError(t, err)
			assert.NotEmpty(t, counts)

			total := int64(0)
			for _, row := range counts {
				total += row.Count
			}
			all, err := conversationRepo.Count(ctx, models.ConversationFilter{UserID: &user.ID})
			require.NoError(t, err)
			assert.Equal(t, all, total)
		})

		t.Run("StatsAggregates", func(t *testing.T) {
			scoped, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			scopedAgent, err := fixtures.CreateTestAgent(scoped.ID)
			require.NoError(t, err)

			done, err := fixtures.CreateTestConversation(scoped.ID, scopedAgent.ID, nil, models.ConversationStatusCompleted)
			require.NoError(t, err)
			done.Success = utils.ToPtr(true)
			require.NoError(t, conversationRepo.Update(ctx, done))

			_, err = fixtures.CreateTestConversation(scoped.ID, scopedAgent.ID, nil, models.ConversationStatusFailed)
			require.NoError(t, err)

			stats, err := conversationRepo.Stats(ctx, models.ConversationFilter{UserID: &scoped.ID})
			require.NoError(t, err)
			assert.Equal(t, int64(2), stats.Total)
			assert.Equal(t, int64(2), stats.Terminal)
			assert.Equal(t, int64(1), stats.Successful)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestUserRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		userRepo := repository.NewUserRepository(testDB.DB)

		t.Run("ByEmailIsCaseSensitiveStorageLowercaseLookup", func(t *testing.T) {
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			found, err := userRepo.ByEmail(ctx, user.Email)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, user.ID, found.ID)
		})

		t.Run("ByIDMissingReturnsNil", func(t *testing.T) {
			found, err := userRepo.ByID(ctx, 999999)
			require.NoError(t, err)
			assert.Nil(t, found)
		})

		return nil
	})
	require.NoError(t, err)
}
