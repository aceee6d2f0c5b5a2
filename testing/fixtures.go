package testing

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

func randomDigits(n int) string {
	max := big.NewInt(1)
	for i := 0; i < n; i++ {
		max.Mul(max, big.NewInt(10))
	}
	v, _ := rand.Int(rand.Reader, max)
	return fmt.Sprintf("%0*d", n, v)
}

// CreateTestUser creates an active tenant with provider credentials set
func (tf *TestFixtures) CreateTestUser() (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	suffix := randomDigits(9)
	user := &models.User{
		Email:              fmt.Sprintf("owner.%s@example.com", suffix),
		PasswordHash:       string(hashedPassword),
		FullName:           "Jane Operator",
		CompanyName:        utils.ToPtr("Acme Outreach"),
		VoiceAPIKey:        utils.ToPtr("test-voice-key-" + suffix),
		TelephonyAuthID:    utils.ToPtr("test-auth-id-" + suffix),
		TelephonyAuthToken: utils.ToPtr("test-auth-token-" + suffix),
		CallerNumber:       utils.ToPtr("+1555" + randomDigits(7)),
		IsActive:           utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestUserWithoutCredentials creates a tenant that has not configured providers yet
func (tf *TestFixtures) CreateTestUserWithoutCredentials() (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        fmt.Sprintf("newcomer.%s@example.com", randomDigits(9)),
		PasswordHash: string(hashedPassword),
		FullName:     "Sam Newcomer",
		IsActive:     utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestAgent creates an agent owned by the given user
func (tf *TestFixtures) CreateTestAgent(userID uint) (*models.Agent, error) {
	agent := &models.Agent{
		UserID:          userID,
		ExternalAgentID: "agent_" + randomDigits(8),
		Name:            "Sales Assistant",
		Description:     utils.ToPtr("Qualifies inbound leads"),
		VoiceID:         utils.ToPtr("voice_nova"),
		SystemPrompt:    utils.ToPtr("You are a helpful sales assistant."),
		Greeting:        utils.ToPtr("Hi, this is Acme calling."),
		Language:        "en",
		IsActive:        utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(agent).Error; err != nil {
		return nil, fmt.Errorf("failed to create test agent: %w", err)
	}
	return agent, nil
}

// CreateTestCampaign creates a draft campaign with a small contact list
func (tf *TestFixtures) CreateTestCampaign(userID uint, agentID *uint) (*models.Campaign, error) {
	contacts := models.ContactList{
		{"phone_number": "+15550000001", "name": "Alice Johnson"},
		{"phone_number": "+15550000002", "name": "Bob Smith"},
		{"phone_number": "+15550000003", "name": "Carol White"},
	}

	campaign := &models.Campaign{
		UserID:         userID,
		AgentID:        agentID,
		Name:           "Q3 Renewal Outreach",
		Description:    utils.ToPtr("Renewal reminders for expiring accounts"),
		Status:         models.CampaignStatusDraft,
		TotalContacts:  len(contacts),
		ContactList:    contacts,
		ContactColumns: []string{"phone_number", "name"},
	}

	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// CreatePendingContacts creates one pending conversation row per contact in
// the campaign's list, mirroring what contact ingestion produces.
func (tf *TestFixtures) CreatePendingContacts(campaign *models.Campaign) ([]*models.Conversation, error) {
	if campaign.AgentID == nil {
		return nil, fmt.Errorf("campaign has no agent")
	}

	rows := make([]*models.Conversation, 0, len(campaign.ContactList))
	for _, contact := range campaign.ContactList {
		row := &models.Conversation{
			UserID:      campaign.UserID,
			AgentID:     *campaign.AgentID,
			CampaignID:  &campaign.ID,
			PhoneNumber: contact.PhoneNumber(),
			ContactName: utils.ToPtr(contact.Name()),
			Status:      models.ConversationStatusPending,
			Metadata:    models.ConversationMetadata{},
		}
		if err := tf.DB.DB.Create(row).Error; err != nil {
			return nil, fmt.Errorf("failed to create pending conversation: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CreateTestConversation creates a conversation in the given status
func (tf *TestFixtures) CreateTestConversation(userID, agentID uint, campaignID *uint, status models.ConversationStatus) (*models.Conversation, error) {
	conv := &models.Conversation{
		UserID:      userID,
		AgentID:     agentID,
		CampaignID:  campaignID,
		PhoneNumber: "+1555" + randomDigits(7),
		Status:      status,
		Metadata:    models.ConversationMetadata{},
	}

	if status.IsTerminal() {
		now := utils.UTCNow()
		started := now.Add(-2 * time.Minute)
		conv.StartedAt = &started
		conv.EndedAt = &now
		conv.DurationSecs = utils.ToPtr(120)
	}

	if err := tf.DB.DB.Create(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create test conversation: %w", err)
	}
	return conv, nil
}

// GenerateSecureToken returns a URL-safe random token
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// CreateTestSession creates an active session for the given user
func (tf *TestFixtures) CreateTestSession(userID uint) (*models.UserSession, error) {
	sessionToken, err := GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secure session token: %w", err)
	}

	refreshToken, err := GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secure refresh token: %w", err)
	}

	session := &models.UserSession{
		CorrelationID: uuid.New(),
		UserID:        userID,
		SessionToken:  sessionToken,
		RefreshToken:  &refreshToken,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
		IsActive:      utils.ToPtr(true),
		IPAddress:     utils.ToPtr("127.0.0.1"),
		UserAgent:     utils.ToPtr("Test User Agent"),
	}

	if err := tf.DB.DB.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}
	return session, nil
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(userID *uint, action string, success bool) (*models.AuditLog, error) {
	audit := &models.AuditLog{
		UserID:      userID,
		Action:      action,
		Description: utils.ToPtr(fmt.Sprintf("Test %s action", action)),
		Success:     &success,
		IPAddress:   utils.ToPtr("127.0.0.1"),
		UserAgent:   utils.ToPtr("Test User Agent"),
	}

	if !success {
		audit.ErrorMessage = utils.ToPtr("Test failed action")
	}

	if err := tf.DB.DB.Create(audit).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}
	return audit, nil
}
