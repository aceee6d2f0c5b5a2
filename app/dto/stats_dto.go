package dto

// DashboardStatsResponse represents the account-wide dashboard summary
type DashboardStatsResponse struct {
	TotalCampaigns      int64            `json:"total_campaigns"`
	ActiveCampaigns     int64            `json:"active_campaigns"`
	TotalAgents         int64            `json:"total_agents"`
	TotalCalls          int64            `json:"total_calls"`
	CompletedCalls      int64            `json:"completed_calls"`
	SuccessfulCalls     int64            `json:"successful_calls"`
	SuccessRate         float64          `json:"success_rate"`
	TotalDurationSecs   int64            `json:"total_duration_secs"`
	AverageDurationSecs float64          `json:"average_duration_secs"`
	TotalCost           float64          `json:"total_cost"`
	CallsByStatus       map[string]int64 `json:"calls_by_status"`
}

// CampaignStatsResponse represents per-campaign call statistics
type CampaignStatsResponse struct {
	UUID                string           `json:"uuid"`
	Name                string           `json:"name"`
	Status              string           `json:"status"`
	TotalContacts       int              `json:"total_contacts"`
	CallsDispatched     int              `json:"calls_dispatched"`
	CallsCompleted      int              `json:"calls_completed"`
	CallsFailed         int              `json:"calls_failed"`
	SuccessfulCalls     int64            `json:"successful_calls"`
	SuccessRate         float64          `json:"success_rate"`
	TotalDurationSecs   int64            `json:"total_duration_secs"`
	AverageDurationSecs float64          `json:"average_duration_secs"`
	TotalCost           float64          `json:"total_cost"`
	CallsByStatus       map[string]int64 `json:"calls_by_status"`
}

// TimeSeriesPointDTO is a single labeled count in a report series
type TimeSeriesPointDTO struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// GroupStatsDTO represents aggregated call figures for one agent or campaign
type GroupStatsDTO struct {
	UUID                string  `json:"uuid"`
	Name                string  `json:"name"`
	TotalCalls          int64   `json:"total_calls"`
	SuccessfulCalls     int64   `json:"successful_calls"`
	SuccessRate         float64 `json:"success_rate"`
	TotalDurationSecs   int64   `json:"total_duration_secs"`
	AverageDurationSecs float64 `json:"average_duration_secs"`
	TotalCost           float64 `json:"total_cost"`
}

// ReportsRequest represents the request for time-bucketed call reports
type ReportsRequest struct {
	UserID       uint    `json:"-"`
	Days         int     `json:"-"`
	CampaignUUID *string `json:"-"`
	AgentUUID    *string `json:"-"`
}

// ReportsResponse represents time-bucketed call reports over a window
type ReportsResponse struct {
	Days           int                  `json:"days"`
	CallsPerDay    []TimeSeriesPointDTO `json:"calls_per_day"`
	CallsPerHour   []TimeSeriesPointDTO `json:"calls_per_hour"`
	CallsByWeekday []TimeSeriesPointDTO `json:"calls_by_weekday"`
	DurationRanges []TimeSeriesPointDTO `json:"duration_ranges"`
	ByAgent        []GroupStatsDTO      `json:"by_agent"`
	ByCampaign     []GroupStatsDTO      `json:"by_campaign"`
}
