package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error definitions
var (
	// Authentication and account errors
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyTaken  = errors.New("email address is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session has expired")
	ErrInvalidToken       = errors.New("invalid or expired token")

	// Agent errors
	ErrAgentNotFound     = errors.New("agent not found")
	ErrAgentAccessDenied = errors.New("access denied: agent belongs to another user")
	ErrAgentInUse        = errors.New("agent is referenced by existing campaigns")

	// Campaign errors
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrCampaignAccessDenied   = errors.New("access denied: campaign belongs to another user")
	ErrCampaignNotEditable    = errors.New("campaign can no longer be edited")
	ErrCampaignNotDeletable   = errors.New("running campaign cannot be deleted")
	ErrCampaignNotLaunchable  = errors.New("campaign cannot be launched in its current status")
	ErrCampaignNotPausable    = errors.New("campaign is not running")
	ErrCampaignNotResumable   = errors.New("campaign is not paused")
	ErrCampaignNotCancellable = errors.New("campaign is already finished")
	ErrCampaignHasNoAgent     = errors.New("campaign has no agent assigned")
	ErrNoContacts             = errors.New("campaign has no contacts")

	// Contact ingestion errors
	ErrContactsFileInvalid = errors.New("contact file could not be parsed")
	ErrContactsFileType    = errors.New("unsupported contact file type")
	ErrPhoneColumnMissing  = errors.New("contact file has no phone_number column")
	ErrContactsFileEmpty   = errors.New("contact file contains no usable rows")

	// Conversation errors
	ErrConversationNotFound     = errors.New("conversation not found")
	ErrConversationAccessDenied = errors.New("access denied: conversation belongs to another user")
	ErrNoRecordingAvailable     = errors.New("no recording available for conversation")

	// Webhook errors
	ErrInvalidWebhookSignature = errors.New("webhook signature verification failed")
	ErrWebhookTimestampStale   = errors.New("webhook timestamp outside tolerance")
	ErrWebhookPayloadInvalid   = errors.New("webhook payload could not be parsed")
	ErrUnsupportedWebhookType  = errors.New("unsupported webhook event type")

	// Provider errors
	ErrProviderUnavailable     = errors.New("voice provider request failed")
	ErrTelephonyUnavailable    = errors.New("telephony provider request failed")
	ErrMissingVoiceCredentials = errors.New("no voice provider credentials configured")

	// Validation errors
	ErrInvalidPage       = errors.New("page must be a positive integer")
	ErrInvalidPageSize   = errors.New("page size must be between 1 and 100")
	ErrInvalidReportDays = errors.New("report window must be between 1 and 365 days")
)

// BusinessError represents a business logic error with context
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewBusinessErrorf creates a new business error with formatted message
func NewBusinessErrorf(code, format string, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error checking helpers

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsEmailAlreadyTaken(err error) bool {
	return errors.Is(err, ErrEmailAlreadyTaken)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

func IsAgentNotFound(err error) bool {
	return errors.Is(err, ErrAgentNotFound)
}

func IsAgentAccessDenied(err error) bool {
	return errors.Is(err, ErrAgentAccessDenied)
}

func IsAgentInUse(err error) bool {
	return errors.Is(err, ErrAgentInUse)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

func IsCampaignNotEditable(err error) bool {
	return errors.Is(err, ErrCampaignNotEditable)
}

func IsCampaignNotLaunchable(err error) bool {
	return errors.Is(err, ErrCampaignNotLaunchable)
}

func IsCampaignNotDeletable(err error) bool {
	return errors.Is(err, ErrCampaignNotDeletable)
}

func IsCampaignNotPausable(err error) bool {
	return errors.Is(err, ErrCampaignNotPausable)
}

func IsCampaignNotResumable(err error) bool {
	return errors.Is(err, ErrCampaignNotResumable)
}

func IsCampaignNotCancellable(err error) bool {
	return errors.Is(err, ErrCampaignNotCancellable)
}

func IsCampaignHasNoAgent(err error) bool {
	return errors.Is(err, ErrCampaignHasNoAgent)
}

func IsNoContacts(err error) bool {
	return errors.Is(err, ErrNoContacts)
}

func IsContactsFileInvalid(err error) bool {
	return errors.Is(err, ErrContactsFileInvalid) || errors.Is(err, ErrContactsFileType) || errors.Is(err, ErrContactsFileEmpty)
}

func IsPhoneColumnMissing(err error) bool {
	return errors.Is(err, ErrPhoneColumnMissing)
}

func IsConversationNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}

func IsConversationAccessDenied(err error) bool {
	return errors.Is(err, ErrConversationAccessDenied)
}

func IsNoRecordingAvailable(err error) bool {
	return errors.Is(err, ErrNoRecordingAvailable)
}

func IsMissingVoiceCredentials(err error) bool {
	return errors.Is(err, ErrMissingVoiceCredentials)
}

func IsInvalidWebhookSignature(err error) bool {
	return errors.Is(err, ErrInvalidWebhookSignature)
}

func IsWebhookPayloadInvalid(err error) bool {
	return errors.Is(err, ErrWebhookPayloadInvalid)
}

func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

func IsInvalidReportDays(err error) bool {
	return errors.Is(err, ErrInvalidReportDays)
}
