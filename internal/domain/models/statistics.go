package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRef identifies the trade behind a best/worst metric.
type TradeRef struct {
	ID           string          `json:"id"`
	ExternalID   string          `json:"external_id"`
	ContractName string          `json:"contract_name"`
	TradeDay     time.Time       `json:"trade_day"`
	NetPnl       decimal.Decimal `json:"net_pnl"`
}

// TradingStatistics is computed on demand from a snapshot of stored trades.
// It is never persisted.
//
// Percentages and ratios are rounded to two decimals. Weekday fields are nil
// when there is no trade to derive them from.
type TradingStatistics struct {
	TotalTrades           int             `json:"total_trades"`
	TotalLots             int64           `json:"total_lots"`
	WinningTrades         int             `json:"winning_trades"`
	LosingTrades          int             `json:"losing_trades"`
	NetPnl                decimal.Decimal `json:"net_pnl"`
	GrossProfit           decimal.Decimal `json:"gross_profit"`
	GrossLoss             decimal.Decimal `json:"gross_loss"`
	TradeWinPercent       float64         `json:"trade_win_percent"`
	DayWinPercent         float64         `json:"day_win_percent"`
	AvgWin                decimal.Decimal `json:"avg_win"`
	AvgLoss               decimal.Decimal `json:"avg_loss"`
	AvgWinLossRatio       float64         `json:"avg_win_loss_ratio"`
	ProfitFactor          float64         `json:"profit_factor"`
	BestDayPercentOfTotal float64         `json:"best_day_percent_of_total"`
	MostActiveDay         *time.Weekday   `json:"most_active_day,omitempty"`
	MostProfitableDay     *time.Weekday   `json:"most_profitable_day,omitempty"`
	LeastProfitableDay    *time.Weekday   `json:"least_profitable_day,omitempty"`
	AverageTradeDuration  float64         `json:"average_trade_duration"`
	TradeDirectionPercent float64         `json:"trade_direction_percent"`
	BestTrade             *TradeRef       `json:"best_trade"`
	WorstTrade            *TradeRef       `json:"worst_trade"`
}
