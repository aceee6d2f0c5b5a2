package tests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voximate/voximate/app/dto"
	"github.com/voximate/voximate/app/services"
	businessflow "github.com/voximate/voximate/business_flow"
	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	testingutil "github.com/voximate/voximate/testing"
	"github.com/voximate/voximate/utils"
)

func newTestTokenService(t *testing.T) services.TokenService {
	t.Helper()

	tokenService, err := services.NewTokenService(
		time.Hour,
		24*time.Hour,
		"voximate-test",
		"voximate-test-clients",
		false,
		"", "",
		"test-secret-key-for-integration-tests",
	)
	require.NoError(t, err)
	return tokenService
}

func testClientMetadata() *businessflow.ClientMetadata {
	return businessflow.NewClientMetadata("127.0.0.1", "integration-test")
}

func TestSignupFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		userRepo := repository.NewUserRepository(testDB.DB)
		sessionRepo := repository.NewUserSessionRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)
		tokenService := newTestTokenService(t)

		flow := businessflow.NewSignupFlow(userRepo, sessionRepo, auditRepo, tokenService, testDB.DB)

		t.Run("SuccessfulSignup", func(t *testing.T) {
			resp, err := flow.Signup(ctx, &dto.SignupRequest{
				Email:           "New.User@Example.com",
				Password:        "SecurePass123!",
				ConfirmPassword: "SecurePass123!",
				FullName:        "New User",
				CompanyName:     utils.ToPtr("Acme Corp"),
			}, testClientMetadata())
			require.NoError(t, err)

			assert.NotEmpty(t, resp.AccessToken)
			assert.NotEmpty(t, resp.RefreshToken)
			assert.Equal(t, "Bearer", resp.TokenType)

			// Email is normalized to lower case
			assert.Equal(t, "new.user@example.com", resp.User.Email)

			user, err := userRepo.ByEmail(ctx, "new.user@example.com")
			require.NoError(t, err)
			require.NotNil(t, user)
			assert.True(t, utils.IsTrue(user.IsActive))

			// Signup opens a session
			sessions, err := sessionRepo.ByFilter(ctx, models.UserSessionFilter{
				UserID:   &user.ID,
				IsActive: utils.ToPtr(true),
			}, "", 0, 0)
			require.NoError(t, err)
			assert.NotEmpty(t, sessions)
		})

		t.Run("DuplicateEmailRejected", func(t *testing.T) {
			req := &dto.SignupRequest{
				Email:           "taken@example.com",
				Password:        "SecurePass123!",
				ConfirmPassword: "SecurePass123!",
				FullName:        "First User",
			}
			_, err := flow.Signup(ctx, req, testClientMetadata())
			require.NoError(t, err)

			_, err = flow.Signup(ctx, req, testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsEmailAlreadyTaken(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestLoginFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		userRepo := repository.NewUserRepository(testDB.DB)
		sessionRepo := repository.NewUserSessionRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)
		tokenService := newTestTokenService(t)

		signupFlow := businessflow.NewSignupFlow(userRepo, sessionRepo, auditRepo, tokenService, testDB.DB)
		loginFlow := businessflow.NewLoginFlow(userRepo, sessionRepo, auditRepo, tokenService, testDB.DB)

		_, err := signupFlow.Signup(ctx, &dto.SignupRequest{
			Email:           "operator@example.com",
			Password:        "SecurePass123!",
			ConfirmPassword: "SecurePass123!",
			FullName:        "Operator One",
		}, testClientMetadata())
		require.NoError(t, err)

		t.Run("SuccessfulLogin", func(t *testing.T) {
			resp, err := loginFlow.Login(ctx, &dto.LoginRequest{
				Email:    "operator@example.com",
				Password: "SecurePass123!",
			}, testClientMetadata())
			require.NoError(t, err)

			assert.NotEmpty(t, resp.AccessToken)
			assert.NotEmpty(t, resp.RefreshToken)

			claims, err := tokenService.ValidateToken(resp.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, "access", claims.TokenType)

			user, err := userRepo.ByEmail(ctx, "operator@example.com")
			require.NoError(t, err)
			assert.NotNil(t, user.LastLoginAt)
		})

		t.Run("WrongPassword", func(t *testing.T) {
			_, err := loginFlow.Login(ctx, &dto.LoginRequest{
				Email:    "operator@example.com",
				Password: "WrongPassword1!",
			}, testClientMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidCredentials(err))
		})

		t.Run("UnknownEmail", func(t *testing.T) {
			_, err := loginFlow.Login(ctx, &dto.LoginRequest{
				Email:    "nobody@example.com",
				Password: "SecurePass123!",
			}, testClientMetadata())
			require.Error(t, err)
		})

		t.Run("RefreshRotatesTokens", func(t *testing.T) {
			login, err := loginFlow.Login(ctx, &dto.LoginRequest{
				Email:    "operator@example.com",
				Password: "SecurePass123!",
			}, testClientMetadata())
			require.NoError(t, err)

			refreshed, err := loginFlow.RefreshToken(ctx, &dto.RefreshTokenRequest{
				RefreshToken: login.RefreshToken,
			}, testClientMetadata())
			require.NoError(t, err)

			assert.NotEmpty(t, refreshed.AccessToken)
			assert.NotEqual(t, login.AccessToken, refreshed.AccessToken)
		})

		t.Run("LogoutDeactivatesSession", func(t *testing.T) {
			login, err := loginFlow.Login(ctx, &dto.LoginRequest{
				Email:    "operator@example.com",
				Password: "SecurePass123!",
			}, testClientMetadata())
			require.NoError(t, err)

			_, err = loginFlow.Logout(ctx, login.AccessToken, testClientMetadata())
			require.NoError(t, err)

			session, err := sessionRepo.BySessionToken(ctx, login.AccessToken)
			require.NoError(t, err)
			if session != nil {
				assert.False(t, utils.IsTrue(session.IsActive))
			}
		})

		return nil
	})
	require.NoError(t, err)
}
