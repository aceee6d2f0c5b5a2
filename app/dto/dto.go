// Package dto contains Data Transfer Objects for API request and response structures
package dto

// APIResponse represents a standard API response wrapper
type APIResponse struct {
	Success bool         `json:"success" example:"true"`
	Message string       `json:"message" example:"Operation completed successfully"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail represents error information in API responses
type ErrorDetail struct {
	Code    string `json:"code" example:"VALIDATION_ERROR"`
	Details any    `json:"details,omitempty"`
}

// PaginationDTO carries paging information for list responses
type PaginationDTO struct {
	Page       int   `json:"page" example:"1"`
	PageSize   int   `json:"page_size" example:"20"`
	Total      int64 `json:"total" example:"135"`
	TotalPages int   `json:"total_pages" example:"7"`
}
