package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/voximate/voximate/app/dto"
	"github.com/voximate/voximate/app/services"
	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	"github.com/voximate/voximate/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LoginFlow handles authentication and session lifecycle
type LoginFlow interface {
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.RefreshTokenResponse, error)
	Logout(ctx context.Context, accessToken string, metadata *ClientMetadata) (*dto.LogoutResponse, error)
}

// LoginFlowImpl implements the login business flow
type LoginFlowImpl struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.UserSessionRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
	db           *gorm.DB
}

// NewLoginFlow creates a new login flow instance
func NewLoginFlow(
	userRepo repository.UserRepository,
	sessionRepo repository.UserSessionRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	db *gorm.DB,
) LoginFlow {
	return &LoginFlowImpl{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
		db:           db,
	}
}

// Login verifies credentials, opens a session and returns tokens
func (lf *LoginFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := lf.userRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if user == nil {
		// Burn a hash comparison so the timing does not reveal account existence
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinval"), []byte(req.Password))
		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid email or password", ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		errMsg := "Invalid password"
		_ = lf.createAuditLog(ctx, user, models.AuditActionLoginFailed, "Login failed: invalid password", false, &errMsg, metadata)

		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid email or password", ErrInvalidCredentials)
	}

	if !utils.IsTrue(user.IsActive) {
		return nil, NewBusinessError("ACCOUNT_INACTIVE", "Account is inactive", ErrAccountInactive)
	}

	var accessToken, refreshToken string

	err = repository.WithTransaction(ctx, lf.db, func(txCtx context.Context) error {
		var err error
		accessToken, refreshToken, err = lf.tokenService.GenerateTokens(user.ID)
		if err != nil {
			return fmt.Errorf("failed to generate tokens: %w", err)
		}

		if err := lf.createSession(txCtx, user.ID, accessToken, refreshToken, metadata); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		return lf.userRepo.UpdateLastLogin(txCtx, user.ID, utils.UTCNow())
	})

	if err != nil {
		errMsg := fmt.Sprintf("Login failed: %s", err.Error())
		_ = lf.createAuditLog(ctx, user, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	msg := fmt.Sprintf("Login successful: %s", user.UUID.String())
	_ = lf.createAuditLog(ctx, user, models.AuditActionLoginSuccessful, msg, true, nil, metadata)

	return &dto.LoginResponse{
		Message:      "Login successful",
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    utils.UTCNow().Add(utils.AccessTokenTTL),
		User:         ToUserInfo(user),
	}, nil
}

// RefreshToken rotates the token pair tied to an active session
func (lf *LoginFlowImpl) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.RefreshTokenResponse, error) {
	session, err := lf.sessionRepo.ByRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to lookup session", err)
	}
	if session == nil {
		return nil, NewBusinessError("SESSION_NOT_FOUND", "Session not found", ErrSessionNotFound)
	}
	if !session.IsValid() {
		return nil, NewBusinessError("SESSION_EXPIRED", "Session has expired", ErrSessionExpired)
	}

	newAccessToken, newRefreshToken, err := lf.tokenService.RefreshToken(req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("INVALID_TOKEN", "Invalid or expired refresh token", ErrInvalidToken)
	}

	err = repository.WithTransaction(ctx, lf.db, func(txCtx context.Context) error {
		if err := lf.sessionRepo.ExpireSession(txCtx, session.ID); err != nil {
			return fmt.Errorf("failed to expire session: %w", err)
		}

		return lf.createSessionWithCorrelation(txCtx, session.UserID, session.CorrelationID, newAccessToken, newRefreshToken, metadata)
	})

	if err != nil {
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Token refresh failed", err)
	}

	return &dto.RefreshTokenResponse{
		AccessToken:  newAccessToken,
		RefreshToken: newRefreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    utils.UTCNow().Add(utils.AccessTokenTTL),
	}, nil
}

// Logout invalidates the session behind the presented access token
func (lf *LoginFlowImpl) Logout(ctx context.Context, accessToken string, metadata *ClientMetadata) (*dto.LogoutResponse, error) {
	session, err := lf.sessionRepo.BySessionToken(ctx, accessToken)
	if err != nil {
		return nil, NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to lookup session", err)
	}
	if session == nil {
		return nil, NewBusinessError("SESSION_NOT_FOUND", "Session not found", ErrSessionNotFound)
	}

	if err := lf.sessionRepo.ExpireSession(ctx, session.ID); err != nil {
		return nil, NewBusinessError("LOGOUT_FAILED", "Logout failed", err)
	}

	user, err := lf.userRepo.ByID(ctx, session.UserID)
	if err == nil && user != nil {
		_ = lf.createAuditLog(ctx, user, models.AuditActionLogout, "Logged out", true, nil, metadata)
	}

	return &dto.LogoutResponse{Message: "Logged out successfully"}, nil
}

func (lf *LoginFlowImpl) createSession(ctx context.Context, userID uint, accessToken, refreshToken string, metadata *ClientMetadata) error {
	return lf.createSessionWithCorrelation(ctx, userID, uuid.New(), accessToken, refreshToken, metadata)
}

func (lf *LoginFlowImpl) createSessionWithCorrelation(ctx context.Context, userID uint, correlationID uuid.UUID, accessToken, refreshToken string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	session := &models.UserSession{
		CorrelationID: correlationID,
		UserID:        userID,
		SessionToken:  accessToken,
		RefreshToken:  &refreshToken,
		IPAddress:     &ipAddress,
		UserAgent:     &userAgent,
		IsActive:      utils.ToPtr(true),
		ExpiresAt:     time.Now().Add(utils.SessionTimeout),
	}

	return lf.sessionRepo.Save(ctx, session)
}

func (lf *LoginFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
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

	return lf.auditRepo.Save(ctx, audit)
}
