package tests

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/voximate/voximate/app/dto"
	businessflow "github.com/voximate/voximate/business_flow"
	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	testingutil "github.com/voximate/voximate/testing"
	"github.com/voximate/voximate/utils"
)

func newCampaignFlow(testDB *testingutil.TestDB) businessflow.CampaignFlow {
	return businessflow.NewCampaignFlow(
		repository.NewCampaignRepository(testDB.DB),
		repository.NewConversationRepository(testDB.DB),
		repository.NewAgentRepository(testDB.DB),
		repository.NewUserRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		testDB.DB,
	)
}

func buildContactsXLSX(t *testing.T, rows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestCampaignFlowLifecycle(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newCampaignFlow(testDB)

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		agent, err := fixtures.CreateTestAgent(user.ID)
		require.NoError(t, err)

		t.Run("CreateDraftCampaign", func(t *testing.T) {
			agentUUID := agent.UUID.String()
			resp, err := flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
				UserID:    user.ID,
				Name:      "  Winter Promo  ",
				AgentUUID: &agentUUID,
			}, testClientMetadata())
			require.NoError(t, err)

			assert.Equal(t, "Winter Promo", resp.Campaign.Name)
			assert.Equal(t, "draft", resp.Campaign.Status)
			require.NotNil(t, resp.Campaign.AgentUUID)
			assert.Equal(t, agentUUID, *resp.Campaign.AgentUUID)
		})

		t.Run("ScheduledCampaignStartsPending", func(t *testing.T) {
			scheduledAt := utils.UTCNow().Add(time.Hour)
			resp, err := flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
				UserID:      user.ID,
				Name:        "Scheduled Promo",
				ScheduledAt: &scheduledAt,
			}, testClientMetadata())
			require.NoError(t, err)
			assert.Equal(t, "pending", resp.Campaign.Status)
		})

		t.Run("ForeignAgentRejected", func(t *testing.T) {
			stranger, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			foreignAgent, err := fixtures.CreateTestAgent(stranger.ID)
			require.NoError(t, err)

			foreignUUID := foreignAgent.UUID.String()
			_, err = flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
				UserID:    user.ID,
				Name:      "Cross Tenant",
				AgentUUID: &foreignUUID,
			}, testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsAgentAccessDenied(err))
		})

		t.Run("UpdateRejectedOnceRunning", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			campaign.Status = models.CampaignStatusRunning
			require.NoError(t, testDB.DB.Save(campaign).Error)

			name := "Renamed"
			_, err = flow.UpdateCampaign(ctx, &dto.UpdateCampaignRequest{
				UUID:   campaign.UUID.String(),
				UserID: user.ID,
				Name:   &name,
			}, testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignNotEditable(err))
		})

		t.Run("DeleteRejectedWhileRunning", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			campaign.Status = models.CampaignStatusRunning
			require.NoError(t, testDB.DB.Save(campaign).Error)

			_, err = flow.DeleteCampaign(ctx, user.ID, campaign.UUID.String(), testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignNotDeletable(err))
		})

		t.Run("AccessDeniedForOtherUsersCampaign", func(t *testing.T) {
			stranger, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			campaign, err := fixtures.CreateTestCampaign(stranger.ID, nil)
			require.NoError(t, err)

			_, err = flow.GetCampaign(ctx, user.ID, campaign.UUID.String())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignAccessDenied(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestUploadContacts(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newCampaignFlow(testDB)

		conversationRepo := repository.NewConversationRepository(testDB.DB)

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		agent, err := fixtures.CreateTestAgent(user.ID)
		require.NoError(t, err)

		pendingRows := func(t *testing.T, campaignID uint) []*models.Conversation {
			rows, err := conversationRepo.ByFilter(ctx, models.ConversationFilter{
				CampaignID: &campaignID,
				Status:     utils.ToPtr(models.ConversationStatusPending),
			}, "conversations.id ASC", 0, 0)
			require.NoError(t, err)
			return rows
		}

		newDraft := func(t *testing.T) *models.Campaign {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			return campaign
		}

		t.Run("CSVUpload", func(t *testing.T) {
			campaign := newDraft(t)

			csvData := []byte("Phone_Number,Name,City\n" +
				"+15550001001,Alice,Austin\n" +
				"+15550001002,Bob,Boston\n" +
				",Carol,Chicago\n")

			resp, err := flow.UploadContacts(ctx, user.ID, campaign.UUID.String(), "contacts.csv", csvData, testClientMetadata())
			require.NoError(t, err)

			assert.Equal(t, 2, resp.TotalContacts)
			assert.Equal(t, 1, resp.SkippedRows)
			assert.Equal(t, []string{"phone_number", "name", "city"}, resp.Columns)

			reloaded, err := flow.GetCampaign(ctx, user.ID, campaign.UUID.String())
			require.NoError(t, err)
			assert.Equal(t, 2, reloaded.Campaign.TotalContacts)

			// One pending conversation per kept row, ready for dispatch
			rows := pendingRows(t, campaign.ID)
			require.Len(t, rows, 2)
			assert.Equal(t, "+15550001001", rows[0].PhoneNumber)
			require.NotNil(t, rows[0].ContactName)
			assert.Equal(t, "Alice", *rows[0].ContactName)
			assert.Equal(t, "+15550001002", rows[1].PhoneNumber)
			assert.Equal(t, agent.ID, rows[0].AgentID)
		})

		t.Run("XLSXUpload", func(t *testing.T) {
			campaign := newDraft(t)

			data := buildContactsXLSX(t, [][]string{
				{"phone_number", "name"},
				{"+15550002001", "Dora"},
				{"+15550002002", "nan"},
			})

			resp, err := flow.UploadContacts(ctx, user.ID, campaign.UUID.String(), "contacts.xlsx", data, testClientMetadata())
			require.NoError(t, err)
			assert.Equal(t, 2, resp.TotalContacts)
		})

		t.Run("MissingPhoneColumn", func(t *testing.T) {
			campaign := newDraft(t)

			csvData := []byte("email,name\nalice@example.com,Alice\n")
			_, err := flow.UploadContacts(ctx, user.ID, campaign.UUID.String(), "contacts.csv", csvData, testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsPhoneColumnMissing(err))
		})

		t.Run("UnsupportedFileType", func(t *testing.T) {
			campaign := newDraft(t)

			_, err := flow.UploadContacts(ctx, user.ID, campaign.UUID.String(), "contacts.pdf", []byte("%PDF"), testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsContactsFileInvalid(err))
		})

		t.Run("EmptyFileRejected", func(t *testing.T) {
			campaign := newDraft(t)

			csvData := []byte("phone_number,name\n,\n")
			_, err := flow.UploadContacts(ctx, user.ID, campaign.UUID.String(), "contacts.csv", csvData, testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsContactsFileInvalid(err))
		})

		t.Run("UploadReplacesPreviousList", func(t *testing.T) {
			campaign := newDraft(t)

			first := []byte("phone_number\n+15550003001\n+15550003002\n+15550003003\n")
			_, err := flow.UploadContacts(ctx, user.ID, campaign.UUID.String(), "first.csv", first, testClientMetadata())
			require.NoError(t, err)

			second := []byte("phone_number\n+15550004001\n")
			resp, err := flow.UploadContacts(ctx, user.ID, campaign.UUID.String(), "second.csv", second, testClientMetadata())
			require.NoError(t, err)
			assert.Equal(t, 1, resp.TotalContacts)

			// The second upload replaces the first upload's pending rows
			rows := pendingRows(t, campaign.ID)
			require.Len(t, rows, 1)
			assert.Equal(t, "+15550004001", rows[0].PhoneNumber)
		})

		t.Run("UploadRequiresAgent", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, nil)
			require.NoError(t, err)

			csvData := []byte("phone_number\n+15550006001\n")
			_, err = flow.UploadContacts(ctx, user.ID, campaign.UUID.String(), "contacts.csv", csvData, testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignHasNoAgent(err))
		})

		t.Run("UploadRejectedAfterLaunch", func(t *testing.T) {
			campaign := newDraft(t)
			campaign.Status = models.CampaignStatusRunning
			require.NoError(t, testDB.DB.Save(campaign).Error)

			csvData := []byte("phone_number\n+15550005001\n")
			_, err := flow.UploadContacts(ctx, user.ID, campaign.UUID.String(), "late.csv", csvData, testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignNotEditable(err))
		})

		return nil
	})
	require.NoError(t, err)
}
