// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/voximate/voximate/app/dto"
	businessflow "github.com/voximate/voximate/business_flow"
	"github.com/voximate/voximate/utils"
)

// WebhookHandler handles provider callback HTTP requests
type WebhookHandler struct {
	flow businessflow.ReconcileFlow
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(flow businessflow.ReconcileFlow) *WebhookHandler {
	return &WebhookHandler{flow: flow}
}

// VoiceWebhook receives post-call transcription events from the voice provider
// @Summary Voice provider webhook
// @Description Receives signed post-call events and reconciles the matching conversation
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} dto.WebhookAckResponse "Event acknowledged"
// @Failure 400 {object} dto.WebhookAckResponse "Malformed payload"
// @Failure 401 {object} dto.WebhookAckResponse "Invalid signature"
// @Router /api/v1/webhooks/voice [post]
func (h *WebhookHandler) VoiceWebhook(c fiber.Ctx) error {
	body := c.Body()
	signature := c.Get("X-Voice-Signature")

	err := h.flow.HandleVoiceWebhook(h.requestCtx(c, "/api/v1/webhooks/voice"), signature, body)
	if err != nil {
		if businessflow.IsInvalidWebhookSignature(err) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.WebhookAckResponse{Status: "invalid signature"})
		}
		if businessflow.IsWebhookPayloadInvalid(err) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.WebhookAckResponse{Status: "invalid payload"})
		}

		// Acknowledge anyway so the provider does not retry events we
		// cannot match to a conversation.
		log.Printf("Voice webhook processing failed: %v", err)
	}

	return c.Status(fiber.StatusOK).JSON(dto.WebhookAckResponse{Status: "ok"})
}

// HangupWebhook receives call hangup notifications from the telephony carrier
// @Summary Telephony hangup webhook
// @Description Receives form-encoded hangup notifications and settles the matching conversation
// @Tags Webhooks
// @Accept x-www-form-urlencoded
// @Produce json
// @Success 200 {object} dto.WebhookAckResponse "Event acknowledged"
// @Failure 400 {object} dto.WebhookAckResponse "Malformed payload"
// @Router /api/v1/webhooks/hangup [post]
func (h *WebhookHandler) HangupWebhook(c fiber.Ctx) error {
	var req dto.HangupWebhookRequest
	if err := c.Bind().Form(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.WebhookAckResponse{Status: "invalid payload"})
	}

	if err := h.flow.HandleHangupWebhook(h.requestCtx(c, "/api/v1/webhooks/hangup"), &req); err != nil {
		log.Printf("Hangup webhook processing failed: %v", err)
	}

	return c.Status(fiber.StatusOK).JSON(dto.WebhookAckResponse{Status: "ok"})
}

func (h *WebhookHandler) requestCtx(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
