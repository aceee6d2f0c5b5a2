package dto

// VoiceWebhookPayload represents the post-call event delivered by the voice provider
type VoiceWebhookPayload struct {
	Type string           `json:"type"`
	Data VoiceWebhookData `json:"data"`
}

// VoiceWebhookData carries the conversation outcome inside a voice webhook
type VoiceWebhookData struct {
	ConversationID string                `json:"conversation_id"`
	AgentID        string                `json:"agent_id"`
	Status         string                `json:"status"`
	Transcript     []TranscriptTurn      `json:"transcript"`
	Metadata       VoiceWebhookMetadata  `json:"metadata"`
	Analysis       *VoiceWebhookAnalysis `json:"analysis,omitempty"`
}

// TranscriptTurn is a single utterance in the provider transcript
type TranscriptTurn struct {
	Role           string  `json:"role"`
	Message        string  `json:"message"`
	TimeInCallSecs float64 `json:"time_in_call_secs"`
}

// VoiceWebhookMetadata carries call timing and billing figures
type VoiceWebhookMetadata struct {
	CallDurationSecs int      `json:"call_duration_secs"`
	Cost             *float64 `json:"cost,omitempty"`
}

// VoiceWebhookAnalysis carries the provider's post-call evaluation
type VoiceWebhookAnalysis struct {
	CallSuccessful    string  `json:"call_successful"`
	TranscriptSummary *string `json:"transcript_summary,omitempty"`
}

// HangupWebhookRequest represents the form-encoded hangup event from the telephony provider
type HangupWebhookRequest struct {
	CallUUID    string `form:"CallUUID"`
	HangupCause string `form:"HangupCause"`
	Duration    string `form:"Duration"`
	To          string `form:"To"`
}

// WebhookAckResponse acknowledges webhook receipt
type WebhookAckResponse struct {
	Status string `json:"status" example:"ok"`
}
