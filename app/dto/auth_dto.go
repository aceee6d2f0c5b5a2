package dto

import (
	"time"
)

// SignupRequest represents the request payload for account creation
type SignupRequest struct {
	Email           string  `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	Password        string  `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
	ConfirmPassword string  `json:"confirm_password" validate:"required,eqfield=Password" example:"SecurePass123!"`
	FullName        string  `json:"full_name" validate:"required,min=2,max=255" example:"Jane Doe"`
	CompanyName     *string `json:"company_name,omitempty" validate:"omitempty,max=255" example:"Acme Corp"`
}

// SignupResponse represents the successful signup response
type SignupResponse struct {
	Message      string    `json:"message" example:"Account created successfully"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type" example:"Bearer"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         UserInfo  `json:"user"`
}

// LoginRequest represents the request payload for user login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	Message      string    `json:"message" example:"Login successful"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type" example:"Bearer"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         UserInfo  `json:"user"`
}

// RefreshTokenRequest represents the request to exchange a refresh token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// RefreshTokenResponse represents the response with rotated tokens
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type" example:"Bearer"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// LogoutResponse represents the response after session invalidation
type LogoutResponse struct {
	Message string `json:"message" example:"Logged out successfully"`
}

// UserInfo represents user information returned in auth responses
type UserInfo struct {
	ID          uint    `json:"id" example:"123"`
	UUID        string  `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Email       string  `json:"email" example:"user@example.com"`
	FullName    string  `json:"full_name" example:"Jane Doe"`
	CompanyName *string `json:"company_name,omitempty" example:"Acme Corp"`
	IsActive    *bool   `json:"is_active" example:"true"`
	CreatedAt   string  `json:"created_at" example:"2025-01-15T10:30:00Z"`
}
