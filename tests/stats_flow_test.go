package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voximate/voximate/app/dto"
	businessflow "github.com/voximate/voximate/business_flow"
	"github.com/voximate/voximate/config"
	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	testingutil "github.com/voximate/voximate/testing"
	"github.com/voximate/voximate/utils"
)

func newStatsFlow(testDB *testingutil.TestDB) businessflow.StatsFlow {
	return businessflow.NewStatsFlow(
		repository.NewConversationRepository(testDB.DB),
		repository.NewCampaignRepository(testDB.DB),
		repository.NewAgentRepository(testDB.DB),
		nil,
		&config.CacheConfig{Enabled: false},
	)
}

func TestStatsFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newStatsFlow(testDB)

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		agent, err := fixtures.CreateTestAgent(user.ID)
		require.NoError(t, err)
		campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
		require.NoError(t, err)
		campaign.Status = models.CampaignStatusRunning
		campaign.CallsDispatched = 3
		campaign.CallsCompleted = 1
		campaign.CallsFailed = 1
		require.NoError(t, testDB.DB.Save(campaign).Error)

		settle := func(t *testing.T, status models.ConversationStatus, success *bool, cost float64) {
			conversation, err := fixtures.CreateTestConversation(user.ID, agent.ID, &campaign.ID, status)
			require.NoError(t, err)
			conversation.Success = success
			conversation.Cost = &cost
			require.NoError(t, testDB.DB.Save(conversation).Error)
		}

		settle(t, models.ConversationStatusCompleted, utils.ToPtr(true), 0.30)
		settle(t, models.ConversationStatusFailed, utils.ToPtr(false), 0.10)
		_, err = fixtures.CreateTestConversation(user.ID, agent.ID, &campaign.ID, models.ConversationStatusInProgress)
		require.NoError(t, err)

		t.Run("Dashboard", func(t *testing.T) {
			stats, err := flow.Dashboard(ctx, user.ID)
			require.NoError(t, err)

			assert.Equal(t, int64(1), stats.TotalCampaigns)
			assert.Equal(t, int64(1), stats.ActiveCampaigns)
			assert.Equal(t, int64(1), stats.TotalAgents)
			assert.Equal(t, int64(3), stats.TotalCalls)
			assert.Equal(t, int64(1), stats.CompletedCalls)
			assert.Equal(t, int64(1), stats.SuccessfulCalls)
			// One success out of two settled calls
			assert.InDelta(t, 50.0, stats.SuccessRate, 0.001)
			assert.Equal(t, int64(240), stats.TotalDurationSecs)
			assert.InDelta(t, 0.40, stats.TotalCost, 0.001)
			assert.Equal(t, int64(1), stats.CallsByStatus["in_progress"])
		})

		t.Run("CampaignStats", func(t *testing.T) {
			stats, err := flow.CampaignStats(ctx, user.ID, campaign.UUID.String())
			require.NoError(t, err)

			assert.Equal(t, campaign.Name, stats.Name)
			assert.Equal(t, 3, stats.TotalContacts)
			assert.Equal(t, 3, stats.CallsDispatched)
			assert.Equal(t, int64(1), stats.SuccessfulCalls)
			assert.InDelta(t, 50.0, stats.SuccessRate, 0.001)
		})

		t.Run("CampaignLiveStatus", func(t *testing.T) {
			snapshot, err := flow.CampaignLiveStatus(ctx, user.ID, campaign.UUID.String())
			require.NoError(t, err)

			assert.Equal(t, "running", snapshot.Status)
			assert.Equal(t, int64(1), snapshot.StatusCounts["completed"])
			assert.Equal(t, int64(1), snapshot.StatusCounts["failed"])
			assert.Equal(t, int64(1), snapshot.StatusCounts["in_progress"])
			assert.False(t, snapshot.UpdatedAt.IsZero())
		})

		t.Run("Reports", func(t *testing.T) {
			report, err := flow.Reports(ctx, &dto.ReportsRequest{UserID: user.ID, Days: 7})
			require.NoError(t, err)

			assert.Equal(t, 7, report.Days)

			var dailyTotal int64
			for _, point := range report.CallsPerDay {
				dailyTotal += point.Count
			}
			assert.Equal(t, int64(3), dailyTotal)

			require.Len(t, report.ByAgent, 1)
			assert.Equal(t, agent.UUID.String(), report.ByAgent[0].UUID)
			assert.Equal(t, int64(3), report.ByAgent[0].TotalCalls)

			require.Len(t, report.ByCampaign, 1)
			assert.Equal(t, campaign.UUID.String(), report.ByCampaign[0].UUID)
		})

		t.Run("ReportsWindowValidation", func(t *testing.T) {
			_, err := flow.Reports(ctx, &dto.ReportsRequest{UserID: user.ID, Days: 366})
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidReportDays(err))
		})

		t.Run("EmptyAccountYieldsZeroes", func(t *testing.T) {
			fresh, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			stats, err := flow.Dashboard(ctx, fresh.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(0), stats.TotalCalls)
			assert.Equal(t, float64(0), stats.SuccessRate)
			assert.Empty(t, stats.CallsByStatus)
		})

		t.Run("ForeignCampaignDenied", func(t *testing.T) {
			stranger, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			_, err = flow.CampaignStats(ctx, stranger.ID, campaign.UUID.String())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignAccessDenied(err))
		})

		return nil
	})
	require.NoError(t, err)
}
