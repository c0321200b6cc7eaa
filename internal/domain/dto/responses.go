package dto

import "github.com/guttosm/proptrack/internal/domain/models"

// ImportResponse is returned by POST /api/v1/accounts/{id}/imports.
type ImportResponse struct {
	AccountID string `json:"account_id" example:"acct-1"`
	Platform  string `json:"platform" example:"projectx"`
	models.ImportResult
}

// PreviewResponse is returned by POST /api/v1/accounts/{id}/imports/preview.
type PreviewResponse struct {
	AccountID string `json:"account_id" example:"acct-1"`
	Platform  string `json:"platform" example:"projectx"`
	models.PreviewResult
}

// StatisticsResponse is returned by GET /api/v1/accounts/{id}/statistics.
// From and To echo the requested range (YYYY-MM-DD), empty when unbounded.
type StatisticsResponse struct {
	AccountID string `json:"account_id" example:"acct-1"`
	From      string `json:"from,omitempty" example:"2025-01-01"`
	To        string `json:"to,omitempty" example:"2025-01-31"`
	models.TradingStatistics
}

// CustomStatisticRequest is the body of POST /api/v1/accounts/{id}/statistics/custom.
type CustomStatisticRequest struct {
	Formula string `json:"formula" binding:"required,max=512" example:"net_pnl / total_trades"`
	From    string `json:"from,omitempty" binding:"omitempty,datetime=2006-01-02" example:"2025-01-01"`
	To      string `json:"to,omitempty" binding:"omitempty,datetime=2006-01-02" example:"2025-01-31"`
}

// CustomStatisticResponse carries the evaluated formula.
type CustomStatisticResponse struct {
	AccountID string  `json:"account_id" example:"acct-1"`
	Formula   string  `json:"formula" example:"net_pnl / total_trades"`
	Value     float64 `json:"value" example:"4.67"`
}
