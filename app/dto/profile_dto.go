package dto

// ProfileDTO represents the authenticated user's profile
type ProfileDTO struct {
	ID                      uint    `json:"id"`
	UUID                    string  `json:"uuid"`
	Email                   string  `json:"email"`
	FullName                string  `json:"full_name"`
	CompanyName             *string `json:"company_name,omitempty"`
	CallerNumber            *string `json:"caller_number,omitempty"`
	HasVoiceCredentials     bool    `json:"has_voice_credentials"`
	HasTelephonyCredentials bool    `json:"has_telephony_credentials"`
	CreatedAt               string  `json:"created_at"`
	LastLoginAt             *string `json:"last_login_at,omitempty"`
}

// GetProfileResponse wraps the profile payload
type GetProfileResponse struct {
	Profile ProfileDTO `json:"profile"`
}

// UpdateProfileRequest represents profile and provider credential updates.
// Credential fields are write-only and never echoed back.
type UpdateProfileRequest struct {
	UserID             uint    `json:"-"`
	FullName           *string `json:"full_name,omitempty" validate:"omitempty,min=2,max=255"`
	CompanyName        *string `json:"company_name,omitempty" validate:"omitempty,max=255"`
	VoiceAPIKey        *string `json:"voice_api_key,omitempty" validate:"omitempty,max=512"`
	TelephonyAuthID    *string `json:"telephony_auth_id,omitempty" validate:"omitempty,max=255"`
	TelephonyAuthToken *string `json:"telephony_auth_token,omitempty" validate:"omitempty,max=512"`
	CallerNumber       *string `json:"caller_number,omitempty" validate:"omitempty,max=32"`
}

// UpdateProfileResponse represents the response after a profile update
type UpdateProfileResponse struct {
	Message string     `json:"message" example:"Profile updated successfully"`
	Profile ProfileDTO `json:"profile"`
}
