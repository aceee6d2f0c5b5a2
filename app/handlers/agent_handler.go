// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/voximate/voximate/app/dto"
	businessflow "github.com/voximate/voximate/business_flow"
	"github.com/voximate/voximate/utils"
)

// AgentHandler handles voice agent HTTP requests
type AgentHandler struct {
	flow      businessflow.AgentFlow
	validator *validator.Validate
}

func (h *AgentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: &dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AgentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(flow businessflow.AgentFlow) *AgentHandler {
	return &AgentHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// CreateAgent creates a voice agent mirrored at the provider
// @Summary Create agent
// @Description Create a voice agent at the provider and store its local mirror
// @Tags Agents
// @Accept json
// @Produce json
// @Param request body dto.CreateAgentRequest true "Agent configuration"
// @Success 201 {object} dto.APIResponse{data=dto.CreateAgentResponse} "Agent created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 502 {object} dto.APIResponse "Voice provider unavailable"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/agents [post]
func (h *AgentHandler) CreateAgent(c fiber.Ctx) error {
	var req dto.CreateAgentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.flow.CreateAgent(h.createRequestContext(c, "/api/v1/agents"), &req, metadata)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", "USER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account is inactive", "ACCOUNT_INACTIVE", nil)
		}
		if businessflow.IsProviderUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Voice provider request failed", "PROVIDER_UNAVAILABLE", nil)
		}

		log.Printf("Create agent failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create agent", "CREATE_AGENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// UpdateAgent updates a voice agent and pushes changes to the provider
// @Summary Update agent
// @Description Update an existing voice agent and propagate changes to the provider
// @Tags Agents
// @Accept json
// @Produce json
// @Param uuid path string true "Agent UUID"
// @Param request body dto.UpdateAgentRequest true "Agent fields to update"
// @Success 200 {object} dto.APIResponse{data=dto.UpdateAgentResponse} "Agent updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Agent belongs to another user"
// @Failure 404 {object} dto.APIResponse "Agent not found"
// @Failure 502 {object} dto.APIResponse "Voice provider unavailable"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/agents/{uuid} [put]
func (h *AgentHandler) UpdateAgent(c fiber.Ctx) error {
	agentUUID := c.Params("uuid")
	if agentUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Agent UUID is required", "MISSING_AGENT_UUID", nil)
	}

	var req dto.UpdateAgentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UUID = agentUUID

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.flow.UpdateAgent(h.createRequestContext(c, "/api/v1/agents/"+agentUUID), &req, metadata)
	if err != nil {
		if businessflow.IsAgentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Agent not found", "AGENT_NOT_FOUND", nil)
		}
		if businessflow.IsAgentAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: agent belongs to another user", "AGENT_ACCESS_DENIED", nil)
		}
		if businessflow.IsProviderUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Voice provider request failed", "PROVIDER_UNAVAILABLE", nil)
		}

		log.Printf("Update agent failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update agent", "UPDATE_AGENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// DeleteAgent deletes a voice agent
// @Summary Delete agent
// @Description Delete a voice agent locally and at the provider
// @Tags Agents
// @Produce json
// @Param uuid path string true "Agent UUID"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteAgentResponse} "Agent deleted successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Agent belongs to another user"
// @Failure 404 {object} dto.APIResponse "Agent not found"
// @Failure 409 {object} dto.APIResponse "Agent referenced by campaigns"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/agents/{uuid} [delete]
func (h *AgentHandler) DeleteAgent(c fiber.Ctx) error {
	agentUUID := c.Params("uuid")
	if agentUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Agent UUID is required", "MISSING_AGENT_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.flow.DeleteAgent(h.createRequestContext(c, "/api/v1/agents/"+agentUUID), userID, agentUUID, metadata)
	if err != nil {
		if businessflow.IsAgentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Agent not found", "AGENT_NOT_FOUND", nil)
		}
		if businessflow.IsAgentAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: agent belongs to another user", "AGENT_ACCESS_DENIED", nil)
		}
		if businessflow.IsAgentInUse(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Agent is referenced by existing campaigns", "AGENT_IN_USE", nil)
		}

		log.Printf("Delete agent failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete agent", "DELETE_AGENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// GetAgent returns a single agent
// @Summary Get agent
// @Description Retrieve one of the authenticated user's agents by UUID
// @Tags Agents
// @Produce json
// @Param uuid path string true "Agent UUID"
// @Success 200 {object} dto.APIResponse{data=dto.AgentDTO} "Agent retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Agent belongs to another user"
// @Failure 404 {object} dto.APIResponse "Agent not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/agents/{uuid} [get]
func (h *AgentHandler) GetAgent(c fiber.Ctx) error {
	agentUUID := c.Params("uuid")
	if agentUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Agent UUID is required", "MISSING_AGENT_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.flow.GetAgent(h.createRequestContext(c, "/api/v1/agents/"+agentUUID), userID, agentUUID)
	if err != nil {
		if businessflow.IsAgentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Agent not found", "AGENT_NOT_FOUND", nil)
		}
		if businessflow.IsAgentAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: agent belongs to another user", "AGENT_ACCESS_DENIED", nil)
		}

		log.Printf("Get agent failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get agent", "GET_AGENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Agent retrieved successfully", result)
}

// ListAgents returns the authenticated user's agents
// @Summary List agents
// @Description Retrieve all voice agents belonging to the authenticated user
// @Tags Agents
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListAgentsResponse} "Agents retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/agents [get]
func (h *AgentHandler) ListAgents(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.flow.ListAgents(h.createRequestContext(c, "/api/v1/agents"), userID)
	if err != nil {
		log.Printf("List agents failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list agents", "LIST_AGENTS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Agents retrieved successfully", result)
}

// ListVoices returns the synthesis voices available at the provider
// @Summary List voices
// @Description Retrieve the synthesis voices available for the user's provider credentials
// @Tags Agents
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListVoicesResponse} "Voices retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 502 {object} dto.APIResponse "Voice provider unavailable"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/agents/voices [get]
func (h *AgentHandler) ListVoices(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.flow.ListVoices(h.createRequestContext(c, "/api/v1/agents/voices"), userID)
	if err != nil {
		if businessflow.IsProviderUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Voice provider request failed", "PROVIDER_UNAVAILABLE", nil)
		}

		log.Printf("List voices failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list voices", "LIST_VOICES_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Voices retrieved successfully", result)
}

// TestCall places a single outbound call against an agent
// @Summary Test call
// @Description Place a single outbound call to verify an agent's configuration
// @Tags Agents
// @Accept json
// @Produce json
// @Param request body dto.TestCallRequest true "Agent and destination number"
// @Success 200 {object} dto.APIResponse{data=dto.TestCallResponse} "Test call started"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Agent not found"
// @Failure 502 {object} dto.APIResponse "Voice provider unavailable"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/agents/test-call [post]
func (h *AgentHandler) TestCall(c fiber.Ctx) error {
	var req dto.TestCallRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.flow.TestCall(h.createRequestContext(c, "/api/v1/agents/test-call"), &req, metadata)
	if err != nil {
		if businessflow.IsAgentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Agent not found", "AGENT_NOT_FOUND", nil)
		}
		if businessflow.IsAgentAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: agent belongs to another user", "AGENT_ACCESS_DENIED", nil)
		}
		if businessflow.IsMissingVoiceCredentials(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "No voice provider credentials configured", "MISSING_VOICE_CREDENTIALS", nil)
		}
		if businessflow.IsProviderUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Voice provider request failed", "PROVIDER_UNAVAILABLE", nil)
		}

		log.Printf("Test call failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to start test call", "TEST_CALL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

func (h *AgentHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *AgentHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
