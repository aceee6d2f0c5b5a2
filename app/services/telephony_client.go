package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/voximate/voximate/config"
)

// TelephonyCredentials is a per-tenant carrier credential pair
type TelephonyCredentials struct {
	AuthID    string
	AuthToken string
}

// TelephonyClient places raw carrier calls. Used for calls that bypass the
// voice provider's own telephony, and for hangup webhook answer URLs.
type TelephonyClient interface {
	MakeCall(ctx context.Context, creds TelephonyCredentials, req MakeCallRequest) (callUUID string, err error)
}

// MakeCallRequest describes one outbound carrier call
type MakeCallRequest struct {
	From      string
	To        string
	AnswerURL string
	HangupURL string
}

// httpTelephonyClient implements TelephonyClient over the carrier REST API
type httpTelephonyClient struct {
	config *config.TelephonyConfig
	client *http.Client
}

// NewTelephonyClient creates a new carrier HTTP client
func NewTelephonyClient(cfg *config.TelephonyConfig) TelephonyClient {
	return &httpTelephonyClient{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *httpTelephonyClient) credsOrDefault(creds TelephonyCredentials) TelephonyCredentials {
	if creds.AuthID != "" && creds.AuthToken != "" {
		return creds
	}
	return TelephonyCredentials{AuthID: c.config.AuthID, AuthToken: c.config.AuthToken}
}

// MakeCall asks the carrier to dial To from From, reporting call progress to
// the answer and hangup URLs.
func (c *httpTelephonyClient) MakeCall(ctx context.Context, creds TelephonyCredentials, req MakeCallRequest) (string, error) {
	creds = c.credsOrDefault(creds)

	form := url.Values{}
	form.Set("from", req.From)
	form.Set("to", req.To)
	form.Set("answer_url", req.AnswerURL)
	if req.HangupURL != "" {
		form.Set("hangup_url", req.HangupURL)
	}

	endpoint := fmt.Sprintf("%s/v1/Account/%s/Call/", c.config.BaseURL, creds.AuthID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(creds.AuthID, creds.AuthToken)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("carrier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("carrier returned status %d", resp.StatusCode)
	}

	var result struct {
		RequestUUID string   `json:"request_uuid"`
		Message     string   `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode carrier response: %w", err)
	}

	if result.RequestUUID == "" {
		return "", fmt.Errorf("carrier accepted call but returned no call UUID: %s", result.Message)
	}

	return result.RequestUUID, nil
}
