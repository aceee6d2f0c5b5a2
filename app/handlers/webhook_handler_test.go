package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voximate/voximate/app/dto"
	businessflow "github.com/voximate/voximate/business_flow"
	"github.com/voximate/voximate/config"
)

// newWebhookApp wires the voice webhook route against a reconcile flow with
// no signature secret, so requests fail or pass on payload handling alone.
func newWebhookApp() *fiber.App {
	flow := businessflow.NewReconcileFlow(nil, nil, nil, config.VoiceAIConfig{}, config.DispatchConfig{})
	handler := NewWebhookHandler(flow)

	app := fiber.New()
	app.Post("/api/v1/webhooks/voice", handler.VoiceWebhook)
	return app
}

func TestVoiceWebhookHandler(t *testing.T) {
	t.Run("MalformedPayloadRejected", func(t *testing.T) {
		app := newWebhookApp()

		req := httptest.NewRequest("POST", "/api/v1/webhooks/voice", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		var ack dto.WebhookAckResponse
		require.NoError(t, json.Unmarshal(body, &ack))
		assert.Equal(t, "invalid payload", ack.Status)
	})

	t.Run("UnsupportedEventTypeAcked", func(t *testing.T) {
		app := newWebhookApp()

		payload, err := json.Marshal(dto.VoiceWebhookPayload{Type: "conversation_started"})
		require.NoError(t, err)

		req := httptest.NewRequest("POST", "/api/v1/webhooks/voice", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("InvalidSignatureRejected", func(t *testing.T) {
		flow := businessflow.NewReconcileFlow(nil, nil, nil, config.VoiceAIConfig{WebhookSecret: "shh"}, config.DispatchConfig{})
		handler := NewWebhookHandler(flow)
		app := fiber.New()
		app.Post("/api/v1/webhooks/voice", handler.VoiceWebhook)

		req := httptest.NewRequest("POST", "/api/v1/webhooks/voice", bytes.NewReader([]byte("{}")))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Voice-Signature", fmt.Sprintf("t=%d,v0=deadbeef", time.Now().Unix()))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}
