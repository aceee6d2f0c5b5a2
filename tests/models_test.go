// Package tests contains integration tests for models, repositories and
// business flows, kept separate to avoid circular imports
package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/voximate/voximate/models"
	testingutil "github.com/voximate/voximate/testing"
	"github.com/voximate/voximate/utils"
)

func TestCampaignStatusTransitions(t *testing.T) {
	t.Run("DraftCanLaunchOrCancel", func(t *testing.T) {
		c := &models.Campaign{Status: models.CampaignStatusDraft}
		assert.True(t, c.CanTransitionTo(models.CampaignStatusRunning))
		assert.True(t, c.CanTransitionTo(models.CampaignStatusPending))
		assert.True(t, c.CanTransitionTo(models.CampaignStatusCancelled))
		assert.False(t, c.CanTransitionTo(models.CampaignStatusPaused))
		assert.False(t, c.CanTransitionTo(models.CampaignStatusCompleted))
	})

	t.Run("RunningCanPauseCompleteFailOrCancel", func(t *testing.T) {
		c := &models.Campaign{Status: models.CampaignStatusRunning}
		assert.True(t, c.CanTransitionTo(models.CampaignStatusPaused))
		assert.True(t, c.CanTransitionTo(models.CampaignStatusCompleted))
		assert.True(t, c.CanTransitionTo(models.CampaignStatusFailed))
		assert.True(t, c.CanTransitionTo(models.CampaignStatusCancelled))
		assert.False(t, c.CanTransitionTo(models.CampaignStatusDraft))
	})

	t.Run("PausedCanResumeOrCancel", func(t *testing.T) {
		c := &models.Campaign{Status: models.CampaignStatusPaused}
		assert.True(t, c.CanTransitionTo(models.CampaignStatusRunning))
		assert.True(t, c.CanTransitionTo(models.CampaignStatusCancelled))
		assert.False(t, c.CanTransitionTo(models.CampaignStatusCompleted))
	})

	t.Run("TerminalStatusesAreFinal", func(t *testing.T) {
		for _, status := range []models.CampaignStatus{
			models.CampaignStatusCompleted,
			models.CampaignStatusFailed,
			models.CampaignStatusCancelled,
		} {
			c := &models.Campaign{Status: status}
			assert.True(t, status.IsTerminal())
			assert.False(t, c.CanTransitionTo(models.CampaignStatusRunning), "from %s", status)
		}
	})

	t.Run("Editability", func(t *testing.T) {
		assert.True(t, (&models.Campaign{Status: models.CampaignStatusDraft}).IsEditable())
		assert.True(t, (&models.Campaign{Status: models.CampaignStatusPending}).IsEditable())
		assert.False(t, (&models.Campaign{Status: models.CampaignStatusRunning}).IsEditable())
		assert.False(t, (&models.Campaign{Status: models.CampaignStatusRunning}).IsDeletable())
		assert.True(t, (&models.Campaign{Status: models.CampaignStatusCompleted}).IsDeletable())
	})
}

func TestConversationStatus(t *testing.T) {
	t.Run("TerminalStatuses", func(t *testing.T) {
		terminal := []models.ConversationStatus{
			models.ConversationStatusCompleted,
			models.ConversationStatusFailed,
			models.ConversationStatusNoAnswer,
			models.ConversationStatusBusy,
			models.ConversationStatusCancelled,
		}
		for _, status := range terminal {
			assert.True(t, status.IsTerminal(), "%s", status)
		}

		open := []models.ConversationStatus{
			models.ConversationStatusPending,
			models.ConversationStatusInitiating,
			models.ConversationStatusInProgress,
			models.ConversationStatusConnected,
		}
		for _, status := range open {
			assert.False(t, status.IsTerminal(), "%s", status)
		}
	})

	t.Run("Validity", func(t *testing.T) {
		assert.True(t, models.ConversationStatusPending.Valid())
		assert.True(t, models.ConversationStatusInProgress.Valid())
		assert.False(t, models.ConversationStatus("ringing").Valid())
	})
}

func TestContact(t *testing.T) {
	t.Run("PhoneNumberLookupIsCaseInsensitive", func(t *testing.T) {
		contact := models.Contact{"Phone_Number": " +15551234567 ", "name": "Alice"}
		assert.Equal(t, "+15551234567", contact.PhoneNumber())
	})

	t.Run("MissingPhoneReturnsEmpty", func(t *testing.T) {
		contact := models.Contact{"name": "Bob"}
		assert.Equal(t, "", contact.PhoneNumber())
	})

	t.Run("NamePrefersNameColumn", func(t *testing.T) {
		contact := models.Contact{"first_name": "Carol", "name": "Carol White"}
		assert.Equal(t, "Carol White", contact.Name())
	})

	t.Run("NameFallsBackToFirstName", func(t *testing.T) {
		contact := models.Contact{"first_name": "Dave", "phone_number": "+1"}
		assert.Equal(t, "Dave", contact.Name())
	})
}

func TestUserModel(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		t.Run("CreateUser", func(t *testing.T) {
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			assert.NotZero(t, user.ID)
			assert.NotEmpty(t, user.UUID)
			assert.True(t, utils.IsTrue(user.IsActive))
			assert.True(t, user.HasVoiceCredentials())
			assert.True(t, user.HasTelephonyCredentials())
		})

		t.Run("UserWithoutProviderCredentials", func(t *testing.T) {
			user, err := fixtures.CreateTestUserWithoutCredentials()
			require.NoError(t, err)
			assert.False(t, user.HasVoiceCredentials())
			assert.False(t, user.HasTelephonyCredentials())
		})

		t.Run("PasswordHashing", func(t *testing.T) {
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			assert.NotEmpty(t, user.PasswordHash)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("TestPass123!")))
			assert.Error(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("WrongPassword")))
		})

		t.Run("EmailUniqueness", func(t *testing.T) {
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			duplicate := &models.User{
				Email:        user.Email,
				PasswordHash: "hashedpassword",
				FullName:     "Duplicate User",
				IsActive:     utils.ToPtr(true),
			}
			assert.Error(t, testDB.DB.Create(duplicate).Error)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCampaignModel(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		agent, err := fixtures.CreateTestAgent(user.ID)
		require.NoError(t, err)

		t.Run("CreateAssignsUUIDAndDefaults", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)
			assert.NotEmpty(t, campaign.UUID)
			assert.Equal(t, models.CampaignStatusDraft, campaign.Status)
			assert.Equal(t, 3, campaign.TotalContacts)
		})

		t.Run("ContactListRoundTripsThroughJSONB", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(user.ID, &agent.ID)
			require.NoError(t, err)

			var loaded models.Campaign
			require.NoError(t, testDB.DB.First(&loaded, campaign.ID).Error)
			require.Len(t, loaded.ContactList, 3)
			assert.Equal(t, "+15550000001", loaded.ContactList[0].PhoneNumber())
			assert.Equal(t, "Alice Johnson", loaded.ContactList[0].Name())
			assert.Equal(t, []string{"phone_number", "name"}, []string(loaded.ContactColumns))
		})

		return nil
	})
	require.NoError(t, err)
}
