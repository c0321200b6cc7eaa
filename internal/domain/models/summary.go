package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummary aggregates the trades of one trading day.
//
// TotalPnl is net of fees and commissions and rounded to cents; it is the
// amount that reaches the ledger.
type DailySummary struct {
	Date             time.Time         `json:"date"`
	TotalPnl         decimal.Decimal   `json:"total_pnl"`
	TotalFees        decimal.Decimal   `json:"total_fees"`
	TotalCommissions decimal.Decimal   `json:"total_commissions"`
	TradeCount       int               `json:"trade_count"`
	Trades           []NormalizedTrade `json:"-"`
}

// ImportDay describes what an import did to one day's ledger entry.
type ImportDay struct {
	Date         time.Time       `json:"date"`
	PnlEntryID   string          `json:"pnl_entry_id"`
	Delta        decimal.Decimal `json:"delta"`
	Balance      decimal.Decimal `json:"balance"`
	Created      bool            `json:"created"`
	TradesStored int             `json:"trades_stored"`
	TradesLinked int64           `json:"trades_linked"`
}

// ImportResult reports the outcome of one import.
type ImportResult struct {
	Created           int         `json:"created"`
	Updated           int         `json:"updated"`
	TradesStored      int         `json:"trades_stored"`
	TradesFailed      int         `json:"trades_failed"`
	DuplicatesIgnored int         `json:"duplicates_ignored"`
	Summary           string      `json:"summary"`
	Days              []ImportDay `json:"days"`
}

// PreviewDay is the dry-run view of one trading day.
type PreviewDay struct {
	Date                 time.Time        `json:"date"`
	TotalPnl             decimal.Decimal  `json:"total_pnl"`
	NewPnl               decimal.Decimal  `json:"new_pnl"`
	TotalTradesCount     int              `json:"total_trades_count"`
	NewTradesCount       int              `json:"new_trades_count"`
	DuplicateTradesCount int              `json:"duplicate_trades_count"`
	ExistingAmount       *decimal.Decimal `json:"existing_amount,omitempty"`
}

// PreviewResult is what an import would do, without doing it.
type PreviewResult struct {
	Days            []PreviewDay    `json:"days"`
	TotalTrades     int             `json:"total_trades"`
	NewTrades       int             `json:"new_trades"`
	DuplicateTrades int             `json:"duplicate_trades"`
	NetNewPnl       decimal.Decimal `json:"net_new_pnl"`
}
