// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/voximate/voximate/app/dto"
	businessflow "github.com/voximate/voximate/business_flow"
	"github.com/voximate/voximate/utils"
)

// HistoryHandler handles conversation history HTTP requests
type HistoryHandler struct {
	flow businessflow.HistoryFlow
}

func (h *HistoryHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: &dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *HistoryHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewHistoryHandler creates a new conversation history handler
func NewHistoryHandler(flow businessflow.HistoryFlow) *HistoryHandler {
	return &HistoryHandler{flow: flow}
}

// ListConversations returns a filtered page of the user's conversations
// @Summary List conversations
// @Description Retrieve conversation records filtered by campaign, agent, status or phone number
// @Tags Conversations
// @Produce json
// @Param campaign_uuid query string false "Filter by campaign"
// @Param agent_uuid query string false "Filter by agent"
// @Param status query string false "Filter by conversation status"
// @Param phone_number query string false "Filter by partial phone number match"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListConversationsResponse} "Conversations retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/conversations [get]
func (h *HistoryHandler) ListConversations(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ListConversationsRequest{UserID: userID}
	if v := c.Query("campaign_uuid"); v != "" {
		req.CampaignUUID = &v
	}
	if v := c.Query("agent_uuid"); v != "" {
		req.AgentUUID = &v
	}
	if v := c.Query("status"); v != "" {
		req.Status = &v
	}
	if v := c.Query("phone_number"); v != "" {
		req.PhoneNumber = &v
	}
	req.Page, _ = strconv.Atoi(c.Query("page"))
	req.PageSize, _ = strconv.Atoi(c.Query("page_size"))

	result, err := h.flow.ListConversations(h.createRequestContext(c, "/api/v1/conversations"), &req)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) || businessflow.IsAgentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Filter entity not found", "FILTER_NOT_FOUND", nil)
		}
		if businessflow.IsCampaignAccessDenied(err) || businessflow.IsAgentAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: entity belongs to another user", "FILTER_ACCESS_DENIED", nil)
		}

		log.Printf("List conversations failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list conversations", "LIST_CONVERSATIONS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Conversations retrieved successfully", result)
}

// GetConversation returns a single conversation with its transcript
// @Summary Get conversation
// @Description Retrieve one conversation record including transcript and summary
// @Tags Conversations
// @Produce json
// @Param uuid path string true "Conversation UUID"
// @Success 200 {object} dto.APIResponse{data=dto.GetConversationResponse} "Conversation retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Conversation belongs to another user"
// @Failure 404 {object} dto.APIResponse "Conversation not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/conversations/{uuid} [get]
func (h *HistoryHandler) GetConversation(c fiber.Ctx) error {
	conversationUUID := c.Params("uuid")
	if conversationUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Conversation UUID is required", "MISSING_CONVERSATION_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.flow.GetConversation(h.createRequestContext(c, "/api/v1/conversations/"+conversationUUID), userID, conversationUUID)
	if err != nil {
		if businessflow.IsConversationNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Conversation not found", "CONVERSATION_NOT_FOUND", nil)
		}
		if businessflow.IsConversationAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: conversation belongs to another user", "CONVERSATION_ACCESS_DENIED", nil)
		}

		log.Printf("Get conversation failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get conversation", "GET_CONVERSATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Conversation retrieved successfully", result)
}

// DeleteConversation deletes a conversation record
// @Summary Delete conversation
// @Description Delete one conversation record from the call history
// @Tags Conversations
// @Produce json
// @Param uuid path string true "Conversation UUID"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteConversationResponse} "Conversation deleted successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Conversation belongs to another user"
// @Failure 404 {object} dto.APIResponse "Conversation not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/conversations/{uuid} [delete]
func (h *HistoryHandler) DeleteConversation(c fiber.Ctx) error {
	conversationUUID := c.Params("uuid")
	if conversationUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Conversation UUID is required", "MISSING_CONVERSATION_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.flow.DeleteConversation(h.createRequestContext(c, "/api/v1/conversations/"+conversationUUID), userID, conversationUUID, metadata)
	if err != nil {
		if businessflow.IsConversationNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Conversation not found", "CONVERSATION_NOT_FOUND", nil)
		}
		if businessflow.IsConversationAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: conversation belongs to another user", "CONVERSATION_ACCESS_DENIED", nil)
		}

		log.Printf("Delete conversation failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete conversation", "DELETE_CONVERSATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// GetConversationAudio streams the provider recording for a conversation
// @Summary Get conversation audio
// @Description Download the call recording from the voice provider
// @Tags Conversations
// @Produce audio/mpeg
// @Param uuid path string true "Conversation UUID"
// @Success 200 {string} string "Binary audio"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Conversation belongs to another user"
// @Failure 404 {object} dto.APIResponse "Conversation or recording not found"
// @Failure 502 {object} dto.APIResponse "Voice provider unavailable"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/conversations/{uuid}/audio [get]
func (h *HistoryHandler) GetConversationAudio(c fiber.Ctx) error {
	conversationUUID := c.Params("uuid")
	if conversationUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Conversation UUID is required", "MISSING_CONVERSATION_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	audio, err := h.flow.GetConversationAudio(h.createRequestContext(c, "/api/v1/conversations/"+conversationUUID+"/audio"), userID, conversationUUID)
	if err != nil {
		if businessflow.IsConversationNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Conversation not found", "CONVERSATION_NOT_FOUND", nil)
		}
		if businessflow.IsConversationAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: conversation belongs to another user", "CONVERSATION_ACCESS_DENIED", nil)
		}
		if businessflow.IsNoRecordingAvailable(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No recording available for conversation", "NO_RECORDING_AVAILABLE", nil)
		}
		if businessflow.IsProviderUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Voice provider request failed", "PROVIDER_UNAVAILABLE", nil)
		}

		log.Printf("Get conversation audio failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get conversation audio", "GET_AUDIO_FAILED", nil)
	}

	c.Set(fiber.HeaderContentType, "audio/mpeg")
	return c.Status(fiber.StatusOK).Send(audio)
}

func (h *HistoryHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *HistoryHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
