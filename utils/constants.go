package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds (86400 seconds = 24 hours)
	AccessTokenTTLSeconds = 86400

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour

	// SessionTimeout is the default session timeout (24 hours)
	SessionTimeout = 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Context keys for request-scoped values
const (
	RequestIDKey  = "X-Request-ID"
	UserAgentKey  = "user_agent"
	IPAddressKey  = "ip_address"
	EndpointKey   = "endpoint"
	TimeoutKey    = "timeout"
	CancelFuncKey = "cancel_func"
)

// Webhook constants
const (
	// WebhookSignatureTolerance is how far a signed webhook timestamp may
	// drift from server time before the event is rejected
	WebhookSignatureTolerance = 30 * time.Minute
)

// Cache key constants
const (
	// DashboardStatsCacheKey is the redis key prefix for per-user dashboard statistics
	DashboardStatsCacheKey = "dashboard_stats"

	// DashboardStatsCacheTTL bounds how stale cached dashboard numbers may get
	DashboardStatsCacheTTL = 30 * time.Second
)
