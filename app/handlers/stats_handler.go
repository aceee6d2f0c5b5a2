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

// StatsHandler handles dashboard statistics and reporting HTTP requests
type StatsHandler struct {
	flow businessflow.StatsFlow
}

func (h *StatsHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: &dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *StatsHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewStatsHandler creates a new statistics handler
func NewStatsHandler(flow businessflow.StatsFlow) *StatsHandler {
	return &StatsHandler{flow: flow}
}

// Dashboard returns the account-wide statistics summary
// @Summary Dashboard statistics
// @Description Retrieve campaign, agent and call totals for the authenticated user
// @Tags Statistics
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.DashboardStatsResponse} "Statistics retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/stats/dashboard [get]
func (h *StatsHandler) Dashboard(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.flow.Dashboard(h.createRequestContext(c, "/api/v1/stats/dashboard"), userID)
	if err != nil {
		log.Printf("Dashboard stats failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get dashboard statistics", "DASHBOARD_STATS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Statistics retrieved successfully", result)
}

// CampaignStats returns per-campaign call statistics
// @Summary Campaign statistics
// @Description Retrieve call totals and duration breakdowns for one campaign
// @Tags Statistics
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignStatsResponse} "Statistics retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Campaign belongs to another user"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/stats/campaigns/{uuid} [get]
func (h *StatsHandler) CampaignStats(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.flow.CampaignStats(h.createRequestContext(c, "/api/v1/stats/campaigns/"+campaignUUID), userID, campaignUUID)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsCampaignAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: campaign belongs to another user", "CAMPAIGN_ACCESS_DENIED", nil)
		}

		log.Printf("Campaign stats failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get campaign statistics", "CAMPAIGN_STATS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Statistics retrieved successfully", result)
}

// Reports returns time-bucketed analytics for the reporting window
// @Summary Call reports
// @Description Retrieve per-day, per-hour, weekday, duration-range and per-entity breakdowns
// @Tags Statistics
// @Produce json
// @Param days query int false "Reporting window in days (default 30, max 365)"
// @Param campaign_uuid query string false "Scope to a single campaign"
// @Param agent_uuid query string false "Scope to a single agent"
// @Success 200 {object} dto.APIResponse{data=dto.ReportsResponse} "Reports retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid reporting window"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/stats/reports [get]
func (h *StatsHandler) Reports(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ReportsRequest{UserID: userID}
	req.Days, _ = strconv.Atoi(c.Query("days"))
	if v := c.Query("campaign_uuid"); v != "" {
		req.CampaignUUID = &v
	}
	if v := c.Query("agent_uuid"); v != "" {
		req.AgentUUID = &v
	}

	result, err := h.flow.Reports(h.createRequestContext(c, "/api/v1/stats/reports"), &req)
	if err != nil {
		if businessflow.IsInvalidReportDays(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Report window must be between 1 and 365 days", "INVALID_REPORT_DAYS", nil)
		}
		if businessflow.IsCampaignNotFound(err) || businessflow.IsAgentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Scoped entity not found", "SCOPE_NOT_FOUND", nil)
		}
		if businessflow.IsCampaignAccessDenied(err) || businessflow.IsAgentAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: entity belongs to another user", "SCOPE_ACCESS_DENIED", nil)
		}

		log.Printf("Reports failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get reports", "REPORTS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Reports retrieved successfully", result)
}

// CampaignStatus returns a live status snapshot for polling dashboards
// @Summary Campaign live status
// @Description Retrieve the campaign's current counters and conversation status counts
// @Tags Statistics
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignStatusResponse} "Status retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Campaign belongs to another user"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{uuid}/status [get]
func (h *StatsHandler) CampaignStatus(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.flow.CampaignLiveStatus(h.createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/status"), userID, campaignUUID)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsCampaignAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: campaign belongs to another user", "CAMPAIGN_ACCESS_DENIED", nil)
		}

		log.Printf("Campaign status failed: %v", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get campaign status", "CAMPAIGN_STATUS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Status retrieved successfully", result)
}

func (h *StatsHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *StatsHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
