package businessflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/voximate/voximate/app/dto"
	"github.com/voximate/voximate/models"
	"github.com/voximate/voximate/repository"
	"github.com/voximate/voximate/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// phoneColumn is the required header in uploaded contact files
const phoneColumn = "phone_number"

// CampaignFlow handles campaign definition and contact ingestion
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.UpdateCampaignResponse, error)
	GetCampaign(ctx context.Context, userID uint, campaignUUID string) (*dto.GetCampaignResponse, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error)
	DeleteCampaign(ctx context.Context, userID uint, campaignUUID string, metadata *ClientMetadata) (*dto.DeleteCampaignResponse, error)
	UploadContacts(ctx context.Context, userID uint, campaignUUID, filename string, data []byte, metadata *ClientMetadata) (*dto.UploadContactsResponse, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo     repository.CampaignRepository
	conversationRepo repository.ConversationRepository
	agentRepo        repository.AgentRepository
	userRepo         repository.UserRepository
	auditRepo        repository.AuditLogRepository
	db               *gorm.DB
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	conversationRepo repository.ConversationRepository,
	agentRepo repository.AgentRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo:     campaignRepo,
		conversationRepo: conversationRepo,
		agentRepo:        agentRepo,
		userRepo:         userRepo,
		auditRepo:        auditRepo,
		db:               db,
	}
}

// CreateCampaign creates a campaign in draft, or pending when scheduled
func (f *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	user, err := f.getActiveUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	campaign := &models.Campaign{
		UserID:      user.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Status:      models.CampaignStatusDraft,
		ScheduledAt: req.ScheduledAt,
	}
	if req.ScheduledAt != nil {
		campaign.Status = models.CampaignStatusPending
	}

	if req.AgentUUID != nil {
		agent, err := f.getOwnedAgent(ctx, user.ID, *req.AgentUUID)
		if err != nil {
			return nil, err
		}
		campaign.AgentID = &agent.ID
		campaign.Agent = agent
	}

	if err := f.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATE_FAILED", "Failed to create campaign", err)
	}

	msg := fmt.Sprintf("Campaign created: %s", campaign.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionCampaignCreated, msg, true, nil, metadata)

	return &dto.CreateCampaignResponse{
		Message:  "Campaign created successfully",
		Campaign: ToCampaignDTO(campaign),
	}, nil
}

// UpdateCampaign applies partial updates to an editable campaign
func (f *CampaignFlowImpl) UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.UpdateCampaignResponse, error) {
	user, err := f.getActiveUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	campaign, err := f.getOwnedCampaign(ctx, user.ID, req.UUID)
	if err != nil {
		return nil, err
	}
	if !campaign.IsEditable() {
		return nil, NewBusinessError("CAMPAIGN_NOT_EDITABLE", "Campaign can no longer be edited", ErrCampaignNotEditable)
	}

	if req.Name != nil {
		campaign.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		campaign.Description = req.Description
	}
	if req.AgentUUID != nil {
		agent, err := f.getOwnedAgent(ctx, user.ID, *req.AgentUUID)
		if err != nil {
			return nil, err
		}
		campaign.AgentID = &agent.ID
		campaign.Agent = agent
	}
	if req.ScheduledAt != nil {
		campaign.ScheduledAt = req.ScheduledAt
		if campaign.Status == models.CampaignStatusDraft {
			campaign.Status = models.CampaignStatusPending
		}
	}

	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Failed to update campaign", err)
	}

	msg := fmt.Sprintf("Campaign updated: %s", campaign.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionCampaignUpdated, msg, true, nil, metadata)

	return &dto.UpdateCampaignResponse{
		Message:  "Campaign updated successfully",
		Campaign: ToCampaignDTO(campaign),
	}, nil
}

// GetCampaign returns one of the user's campaigns
func (f *CampaignFlowImpl) GetCampaign(ctx context.Context, userID uint, campaignUUID string) (*dto.GetCampaignResponse, error) {
	campaign, err := f.getOwnedCampaign(ctx, userID, campaignUUID)
	if err != nil {
		return nil, err
	}

	return &dto.GetCampaignResponse{Campaign: ToCampaignDTO(campaign)}, nil
}

// ListCampaigns returns a page of the user's campaigns, newest first
func (f *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error) {
	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}

	filter := models.CampaignFilter{UserID: &req.UserID}
	if req.Status != nil && *req.Status != "" {
		status := models.CampaignStatus(*req.Status)
		if !status.Valid() {
			return nil, NewBusinessErrorf("INVALID_STATUS", "Unknown campaign status: %s", *req.Status)
		}
		filter.Status = &status
	}

	total, err := f.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to count campaigns", err)
	}

	campaigns, err := f.campaignRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	out := make([]dto.CampaignDTO, 0, len(campaigns))
	for _, campaign := range campaigns {
		out = append(out, ToCampaignDTO(campaign))
	}

	return &dto.ListCampaignsResponse{
		Campaigns:  out,
		Pagination: paginationDTO(page, pageSize, total),
	}, nil
}

// DeleteCampaign removes a campaign that is not running
func (f *CampaignFlowImpl) DeleteCampaign(ctx context.Context, userID uint, campaignUUID string, metadata *ClientMetadata) (*dto.DeleteCampaignResponse, error) {
	user, err := f.getActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	campaign, err := f.getOwnedCampaign(ctx, userID, campaignUUID)
	if err != nil {
		return nil, err
	}
	if !campaign.IsDeletable() {
		return nil, NewBusinessError("CAMPAIGN_NOT_DELETABLE", "Running campaign cannot be deleted", ErrCampaignNotDeletable)
	}

	if err := f.campaignRepo.Delete(ctx, campaign.ID); err != nil {
		return nil, NewBusinessError("CAMPAIGN_DELETE_FAILED", "Failed to delete campaign", err)
	}

	msg := fmt.Sprintf("Campaign deleted: %s", campaign.UUID.String())
	_ = f.createAuditLog(ctx, user, models.AuditActionCampaignDeleted, msg, true, nil, metadata)

	return &dto.DeleteCampaignResponse{Message: "Campaign deleted successfully"}, nil
}

// UploadContacts parses a CSV or XLSX file and replaces the campaign's
// contact list wholesale. The file must contain a phone_number column;
// rows without a usable phone number are skipped. Each kept row becomes a
// pending conversation, which the dispatcher later dials; a fresh upload
// replaces the campaign's undialed rows.
func (f *CampaignFlowImpl) UploadContacts(ctx context.Context, userID uint, campaignUUID, filename string, data []byte, metadata *ClientMetadata) (*dto.UploadContactsResponse, error) {
	user, err := f.getActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	campaign, err := f.getOwnedCampaign(ctx, userID, campaignUUID)
	if err != nil {
		return nil, err
	}
	if !campaign.IsEditable() {
		return nil, NewBusinessError("CAMPAIGN_NOT_EDITABLE", "Contacts can only be uploaded before launch", ErrCampaignNotEditable)
	}
	if campaign.AgentID == nil {
		return nil, NewBusinessError("CAMPAIGN_HAS_NO_AGENT", "Assign an agent before uploading contacts", ErrCampaignHasNoAgent)
	}

	columns, contacts, skipped, err := parseContactFile(filename, data)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, NewBusinessError("CONTACTS_FILE_EMPTY", "Contact file contains no usable rows", ErrContactsFileEmpty)
	}

	rows := make([]*models.Conversation, 0, len(contacts))
	for _, contact := range contacts {
		row := &models.Conversation{
			UserID:      user.ID,
			AgentID:     *campaign.AgentID,
			CampaignID:  &campaign.ID,
			PhoneNumber: contact.PhoneNumber(),
			Status:      models.ConversationStatusPending,
		}
		if name := contact.Name(); name != "" {
			row.ContactName = &name
		}
		rows = append(rows, row)
	}

	campaign.ContactList = contacts
	campaign.ContactColumns = columns
	campaign.TotalContacts = len(contacts)

	if err := f.conversationRepo.DeletePendingByCampaign(ctx, campaign.ID); err != nil {
		return nil, NewBusinessError("CONTACTS_SAVE_FAILED", "Failed to replace pending contacts", err)
	}
	if err := f.conversationRepo.CreateBatch(ctx, rows); err != nil {
		return nil, NewBusinessError("CONTACTS_SAVE_FAILED", "Failed to save contacts", err)
	}
	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, NewBusinessError("CONTACTS_SAVE_FAILED", "Failed to save contacts", err)
	}

	msg := fmt.Sprintf("Contacts uploaded to campaign %s: %d rows", campaign.UUID.String(), len(contacts))
	_ = f.createAuditLog(ctx, user, models.AuditActionContactsUploaded, msg, true, nil, metadata)

	return &dto.UploadContactsResponse{
		Message:       "Contacts uploaded successfully",
		TotalContacts: len(contacts),
		SkippedRows:   skipped,
		Columns:       columns,
	}, nil
}

// parseContactFile extracts header columns and contact rows from a CSV or
// XLSX upload. Headers are normalized to trimmed lower case.
func parseContactFile(filename string, data []byte) ([]string, models.ContactList, int, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = readCSVRows(data)
	case ".xlsx", ".xls":
		rows, err = readExcelRows(data)
	default:
		return nil, nil, 0, NewBusinessError("CONTACTS_FILE_TYPE", "Unsupported contact file type", ErrContactsFileType)
	}
	if err != nil {
		return nil, nil, 0, NewBusinessError("CONTACTS_FILE_INVALID", "Contact file could not be parsed", ErrContactsFileInvalid)
	}

	if len(rows) == 0 {
		return nil, nil, 0, NewBusinessError("CONTACTS_FILE_EMPTY", "Contact file contains no usable rows", ErrContactsFileEmpty)
	}

	columns := make([]string, 0, len(rows[0]))
	hasPhone := false
	for _, header := range rows[0] {
		normalized := strings.ToLower(strings.TrimSpace(header))
		columns = append(columns, normalized)
		if normalized == phoneColumn {
			hasPhone = true
		}
	}
	if !hasPhone {
		return nil, nil, 0, NewBusinessError("PHONE_COLUMN_MISSING", "Contact file has no phone_number column", ErrPhoneColumnMissing)
	}

	contacts := make(models.ContactList, 0, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		contact := models.Contact{}
		empty := true
		for i, column := range columns {
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			// Spreadsheet exports encode missing cells as the literal "nan"
			if strings.EqualFold(value, "nan") {
				value = ""
			}
			if value != "" {
				empty = false
			}
			contact[column] = value
		}

		if empty || contact.PhoneNumber() == "" {
			skipped++
			continue
		}
		contacts = append(contacts, contact)
	}

	return columns, contacts, skipped, nil
}

func readCSVRows(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readExcelRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	sheet := file.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	return file.GetRows(sheet)
}

func (f *CampaignFlowImpl) getActiveUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}
	if !utils.IsTrue(user.IsActive) {
		return nil, NewBusinessError("ACCOUNT_INACTIVE", "Account is inactive", ErrAccountInactive)
	}
	return user, nil
}

func (f *CampaignFlowImpl) getOwnedAgent(ctx context.Context, userID uint, agentUUID string) (*models.Agent, error) {
	agent, err := f.agentRepo.ByUUID(ctx, agentUUID)
	if err != nil {
		return nil, NewBusinessError("AGENT_LOOKUP_FAILED", "Failed to lookup agent", err)
	}
	if agent == nil {
		return nil, NewBusinessError("AGENT_NOT_FOUND", "Agent not found", ErrAgentNotFound)
	}
	if agent.UserID != userID {
		return nil, NewBusinessError("AGENT_ACCESS_DENIED", "Access denied: agent belongs to another user", ErrAgentAccessDenied)
	}
	return agent, nil
}

func (f *CampaignFlowImpl) getOwnedCampaign(ctx context.Context, userID uint, campaignUUID string) (*models.Campaign, error) {
	campaign, err := f.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if campaign.UserID != userID {
		return nil, NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Access denied: campaign belongs to another user", ErrCampaignAccessDenied)
	}
	return campaign, nil
}

func (f *CampaignFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	var userID *uint
	if user != nil {
		userID = &user.ID
	}

	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return f.auditRepo.Save(ctx, audit)
}

// normalizePagination validates paging inputs, defaulting to page 1 size 20
func normalizePagination(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	if page < 1 {
		return 0, 0, NewBusinessError("INVALID_PAGE", "Page must be a positive integer", ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > 100 {
		return 0, 0, NewBusinessError("INVALID_PAGE_SIZE", "Page size must be between 1 and 100", ErrInvalidPageSize)
	}
	return page, pageSize, nil
}

func paginationDTO(page, pageSize int, total int64) dto.PaginationDTO {
	return dto.PaginationDTO{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}
}
