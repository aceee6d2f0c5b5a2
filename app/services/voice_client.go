package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/voximate/voximate/config"
)

// VoiceAIClient talks to the conversational voice provider. Methods take the
// tenant API key so one client serves every tenant.
type VoiceAIClient interface {
	StartCall(ctx context.Context, apiKey string, req StartCallRequest) (*StartCallResponse, error)
	CreateAgent(ctx context.Context, apiKey string, req AgentConfigRequest) (*ProviderAgent, error)
	UpdateAgent(ctx context.Context, apiKey, externalAgentID string, req AgentConfigRequest) (*ProviderAgent, error)
	DeleteAgent(ctx context.Context, apiKey, externalAgentID string) error
	GetAgent(ctx context.Context, apiKey, externalAgentID string) (*ProviderAgent, error)
	ListVoices(ctx context.Context, apiKey string) ([]ProviderVoice, error)
	GetConversation(ctx context.Context, apiKey, externalConversationID string) (*ProviderConversation, error)
	GetConversationAudio(ctx context.Context, apiKey, externalConversationID string) ([]byte, error)
}

// StartCallRequest is the payload for an outbound agent call
type StartCallRequest struct {
	AgentID     string `json:"agent_id"`
	FromNumber  string `json:"from_number"`
	ToNumber    string `json:"to_number"`
}

// StartCallResponse carries the provider identifiers for a started call
type StartCallResponse struct {
	ConversationID string `json:"conversation_id"`
	CallID         string `json:"call_id"`
}

// AgentConfigRequest is the agent definition sent to the provider
type AgentConfigRequest struct {
	Name         string  `json:"name"`
	VoiceID      *string `json:"voice_id,omitempty"`
	SystemPrompt *string `json:"system_prompt,omitempty"`
	Greeting     *string `json:"first_message,omitempty"`
	Language     string  `json:"language,omitempty"`
}

// ProviderAgent is the provider's view of an agent
type ProviderAgent struct {
	AgentID  string `json:"agent_id"`
	Name     string `json:"name"`
	VoiceID  string `json:"voice_id,omitempty"`
	Language string `json:"language,omitempty"`
}

// ProviderVoice is one available synthetic voice
type ProviderVoice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// ProviderConversation is the provider's post-call conversation record
type ProviderConversation struct {
	ConversationID string `json:"conversation_id"`
	AgentID        string `json:"agent_id"`
	Status         string `json:"status"`
	Transcript     []ProviderTranscriptTurn `json:"transcript,omitempty"`
}

// ProviderTranscriptTurn is one turn of a provider transcript
type ProviderTranscriptTurn struct {
	Role           string  `json:"role"`
	Message        string  `json:"message"`
	TimeInCallSecs float64 `json:"time_in_call_secs"`
}

// httpVoiceClient implements VoiceAIClient over the provider HTTP API
type httpVoiceClient struct {
	config *config.VoiceAIConfig
	client *http.Client
}

// NewVoiceAIClient creates a new provider HTTP client
func NewVoiceAIClient(cfg *config.VoiceAIConfig) VoiceAIClient {
	return &httpVoiceClient{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *httpVoiceClient) apiKeyOrDefault(apiKey string) string {
	if apiKey != "" {
		return apiKey
	}
	return c.config.APIKey
}

func (c *httpVoiceClient) do(ctx context.Context, apiKey, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(payload)
	}

	url := c.config.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKeyOrDefault(apiKey))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("voice provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("voice provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode voice provider response: %w", err)
	}

	return nil
}

// StartCall requests an outbound call from the agent to the given number
func (c *httpVoiceClient) StartCall(ctx context.Context, apiKey string, req StartCallRequest) (*StartCallResponse, error) {
	var resp StartCallResponse
	if err := c.do(ctx, apiKey, http.MethodPost, "/v1/convai/phone-calls", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateAgent registers a new agent with the provider
func (c *httpVoiceClient) CreateAgent(ctx context.Context, apiKey string, req AgentConfigRequest) (*ProviderAgent, error) {
	var resp ProviderAgent
	if err := c.do(ctx, apiKey, http.MethodPost, "/v1/convai/agents", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateAgent updates an existing provider agent
func (c *httpVoiceClient) UpdateAgent(ctx context.Context, apiKey, externalAgentID string, req AgentConfigRequest) (*ProviderAgent, error) {
	var resp ProviderAgent
	if err := c.do(ctx, apiKey, http.MethodPatch, "/v1/convai/agents/"+externalAgentID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteAgent removes a provider agent
func (c *httpVoiceClient) DeleteAgent(ctx context.Context, apiKey, externalAgentID string) error {
	return c.do(ctx, apiKey, http.MethodDelete, "/v1/convai/agents/"+externalAgentID, nil, nil)
}

// GetAgent fetches a provider agent
func (c *httpVoiceClient) GetAgent(ctx context.Context, apiKey, externalAgentID string) (*ProviderAgent, error) {
	var resp ProviderAgent
	if err := c.do(ctx, apiKey, http.MethodGet, "/v1/convai/agents/"+externalAgentID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListVoices fetches the voices available to the tenant
func (c *httpVoiceClient) ListVoices(ctx context.Context, apiKey string) ([]ProviderVoice, error) {
	var resp struct {
		Voices []ProviderVoice `json:"voices"`
	}
	if err := c.do(ctx, apiKey, http.MethodGet, "/v1/voices", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Voices, nil
}

// GetConversation fetches a provider conversation record
func (c *httpVoiceClient) GetConversation(ctx context.Context, apiKey, externalConversationID string) (*ProviderConversation, error) {
	var resp ProviderConversation
	if err := c.do(ctx, apiKey, http.MethodGet, "/v1/convai/conversations/"+externalConversationID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetConversationAudio fetches the recorded audio for a conversation
func (c *httpVoiceClient) GetConversationAudio(ctx context.Context, apiKey, externalConversationID string) ([]byte, error) {
	url := c.config.BaseURL + "/v1/convai/conversations/" + externalConversationID + "/audio"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKeyOrDefault(apiKey))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voice provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("voice provider returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio response: %w", err)
	}

	return audio, nil
}
