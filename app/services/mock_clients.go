package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voximate/voximate/utils"
)

// MockVoiceClient implements VoiceAIClient for testing
type MockVoiceClient struct {
	mu sync.Mutex

	StartedCalls []MockStartedCall

	// FailNumbers maps phone numbers to errors returned by StartCall
	FailNumbers map[string]error

	Agents map[string]ProviderAgent
	Voices []ProviderVoice

	callSeq int
}

// MockStartedCall records one StartCall invocation
type MockStartedCall struct {
	APIKey   string
	Request  StartCallRequest
	Response StartCallResponse
	SentAt   time.Time
}

// NewMockVoiceClient creates a new mock voice provider client
func NewMockVoiceClient() *MockVoiceClient {
	return &MockVoiceClient{
		FailNumbers: make(map[string]error),
		Agents:      make(map[string]ProviderAgent),
	}
}

// StartCall records the call and returns scripted identifiers
func (m *MockVoiceClient) StartCall(ctx context.Context, apiKey string, req StartCallRequest) (*StartCallResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailNumbers[req.ToNumber]; ok {
		return nil, err
	}

	m.callSeq++
	resp := StartCallResponse{
		ConversationID: fmt.Sprintf("conv_mock_%04d", m.callSeq),
		CallID:         fmt.Sprintf("call_mock_%04d", m.callSeq),
	}
	m.StartedCalls = append(m.StartedCalls, MockStartedCall{
		APIKey:   apiKey,
		Request:  req,
		Response: resp,
		SentAt:   utils.UTCNow(),
	})

	return &resp, nil
}

// CreateAgent stores a scripted provider agent
func (m *MockVoiceClient) CreateAgent(ctx context.Context, apiKey string, req AgentConfigRequest) (*ProviderAgent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callSeq++
	agent := ProviderAgent{
		AgentID:  fmt.Sprintf("agent_mock_%04d", m.callSeq),
		Name:     req.Name,
		Language: req.Language,
	}
	if req.VoiceID != nil {
		agent.VoiceID = *req.VoiceID
	}
	m.Agents[agent.AgentID] = agent

	return &agent, nil
}

// UpdateAgent updates a stored mock agent
func (m *MockVoiceClient) UpdateAgent(ctx context.Context, apiKey, externalAgentID string, req AgentConfigRequest) (*ProviderAgent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.Agents[externalAgentID]
	if !ok {
		return nil, fmt.Errorf("voice provider returned status 404")
	}
	agent.Name = req.Name
	if req.VoiceID != nil {
		agent.VoiceID = *req.VoiceID
	}
	m.Agents[externalAgentID] = agent

	return &agent, nil
}

// DeleteAgent removes a stored mock agent
func (m *MockVoiceClient) DeleteAgent(ctx context.Context, apiKey, externalAgentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Agents, externalAgentID)
	return nil
}

// GetAgent fetches a stored mock agent
func (m *MockVoiceClient) GetAgent(ctx context.Context, apiKey, externalAgentID string) (*ProviderAgent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.Agents[externalAgentID]
	if !ok {
		return nil, fmt.Errorf("voice provider returned status 404")
	}
	return &agent, nil
}

// ListVoices returns the scripted voice list
func (m *MockVoiceClient) ListVoices(ctx context.Context, apiKey string) ([]ProviderVoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Voices, nil
}

// GetConversation returns an empty conversation record
func (m *MockVoiceClient) GetConversation(ctx context.Context, apiKey, externalConversationID string) (*ProviderConversation, error) {
	return &ProviderConversation{ConversationID: externalConversationID}, nil
}

// GetConversationAudio returns empty audio bytes
func (m *MockVoiceClient) GetConversationAudio(ctx context.Context, apiKey, externalConversationID string) ([]byte, error) {
	return []byte{}, nil
}

// GetStartedCalls returns all recorded StartCall requests
func (m *MockVoiceClient) GetStartedCalls() []MockStartedCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]MockStartedCall, len(m.StartedCalls))
	copy(calls, m.StartedCalls)
	return calls
}

// ClearStartedCalls clears the recorded calls
func (m *MockVoiceClient) ClearStartedCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartedCalls = nil
}

// MockTelephonyClient implements TelephonyClient for testing
type MockTelephonyClient struct {
	mu sync.Mutex

	PlacedCalls []MockPlacedCall
	FailNumbers map[string]error

	callSeq int
}

// MockPlacedCall records one MakeCall invocation
type MockPlacedCall struct {
	Creds    TelephonyCredentials
	Request  MakeCallRequest
	CallUUID string
	SentAt   time.Time
}

// NewMockTelephonyClient creates a new mock carrier client
func NewMockTelephonyClient() *MockTelephonyClient {
	return &MockTelephonyClient{
		FailNumbers: make(map[string]error),
	}
}

// MakeCall records the call and returns a scripted call UUID
func (m *MockTelephonyClient) MakeCall(ctx context.Context, creds TelephonyCredentials, req MakeCallRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailNumbers[req.To]; ok {
		return "", err
	}

	m.callSeq++
	callUUID := fmt.Sprintf("uuid-mock-%04d", m.callSeq)
	m.PlacedCalls = append(m.PlacedCalls, MockPlacedCall{
		Creds:    creds,
		Request:  req,
		CallUUID: callUUID,
		SentAt:   utils.UTCNow(),
	})

	return callUUID, nil
}

// GetPlacedCalls returns all recorded MakeCall requests
func (m *MockTelephonyClient) GetPlacedCalls() []MockPlacedCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]MockPlacedCall, len(m.PlacedCalls))
	copy(calls, m.PlacedCalls)
	return calls
}
