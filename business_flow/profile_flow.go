package businessflow

import (
	"context"
	"strings"

	"github.com/voximate/voximate/app/dto"
	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	"github.com/voximate/voximate/utils"
)

// ProfileFlow handles profile reads and provider credential updates
type ProfileFlow interface {
	GetProfile(ctx context.Context, userID uint) (*dto.GetProfileResponse, error)
	UpdateProfile(ctx context.Context, req *dto.UpdateProfileRequest, metadata *ClientMetadata) (*dto.UpdateProfileResponse, error)
}

// ProfileFlowImpl implements the profile business flow
type ProfileFlowImpl struct {
	userRepo  repository.UserRepository
	auditRepo repository.AuditLogRepository
}

// NewProfileFlow creates a new profile flow instance
func NewProfileFlow(userRepo repository.UserRepository, auditRepo repository.AuditLogRepository) ProfileFlow {
	return &ProfileFlowImpl{userRepo: userRepo, auditRepo: auditRepo}
}

// GetProfile returns the authenticated user's profile
func (f *ProfileFlowImpl) GetProfile(ctx context.Context, userID uint) (*dto.GetProfileResponse, error) {
	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}

	return &dto.GetProfileResponse{Profile: ToProfileDTO(user)}, nil
}

// UpdateProfile applies partial profile and credential updates
func (f *ProfileFlowImpl) UpdateProfile(ctx context.Context, req *dto.UpdateProfileRequest, metadata *ClientMetadata) (*dto.UpdateProfileResponse, error) {
	user, err := f.userRepo.ByID(ctx, req.UserID)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.CompanyName != nil {
		user.CompanyName = req.CompanyName
	}
	if req.VoiceAPIKey != nil {
		user.VoiceAPIKey = req.VoiceAPIKey
	}
	if req.TelephonyAuthID != nil {
		user.TelephonyAuthID = req.TelephonyAuthID
	}
	if req.TelephonyAuthToken != nil {
		user.TelephonyAuthToken = req.TelephonyAuthToken
	}
	if req.CallerNumber != nil {
		user.CallerNumber = req.CallerNumber
	}

	if err := f.userRepo.Update(ctx, user); err != nil {
		return nil, NewBusinessError("PROFILE_UPDATE_FAILED", "Failed to update profile", err)
	}

	_ = f.createAuditLog(ctx, user, models.AuditActionProfileUpdated, "Profile updated", true, nil, metadata)

	return &dto.UpdateProfileResponse{
		Message: "Profile updated successfully",
		Profile: ToProfileDTO(user),
	}, nil
}

func (f *ProfileFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
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

	return f.auditRepo.Save(ctx, audit)
}
