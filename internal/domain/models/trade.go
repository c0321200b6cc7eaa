package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a round-turn trade.
type Direction string

const (
	Long  Direction = "Long"
	Short Direction = "Short"
)

// NormalizedTrade is one closed trade as read from a broker export, before it
// is persisted. Every supported platform's CSV layout is mapped onto this shape.
//
// Fields:
//   - ExternalID: broker-assigned identifier, the dedup key with (account, platform).
//   - TradeDay: the broker's session bucket, which is not necessarily the
//     calendar date of EnteredAt (sessions roll over in the evening).
//   - GrossPnl: PnL before fees and commissions.
//   - Commissions: nil when the platform does not report them.
//   - TradeDurationSeconds: nil when the platform does not report it.
type NormalizedTrade struct {
	ExternalID           string           `json:"external_id" validate:"required"`
	ContractName         string           `json:"contract_name"`
	EnteredAt            time.Time        `json:"entered_at" validate:"required"`
	ExitedAt             time.Time        `json:"exited_at" validate:"required"`
	EntryPrice           decimal.Decimal  `json:"entry_price"`
	ExitPrice            decimal.Decimal  `json:"exit_price"`
	Size                 int64            `json:"size"`
	Direction            Direction        `json:"direction"`
	GrossPnl             decimal.Decimal  `json:"gross_pnl"`
	Fees                 decimal.Decimal  `json:"fees"`
	Commissions          *decimal.Decimal `json:"commissions,omitempty"`
	TradeDay             time.Time        `json:"trade_day" validate:"required"`
	TradeDurationSeconds *float64         `json:"trade_duration_seconds,omitempty"`
}

// NetPnl returns gross PnL minus fees and commissions.
func (t NormalizedTrade) NetPnl() decimal.Decimal {
	net := t.GrossPnl.Sub(t.Fees)
	if t.Commissions != nil {
		net = net.Sub(*t.Commissions)
	}
	return net
}

// StoredTrade is a trade row owned by the storage layer. Numeric columns are
// nullable because rows may come from manual entry or older imports.
type StoredTrade struct {
	ID                   string           `json:"id"`
	AccountID            string           `json:"account_id"`
	Platform             string           `json:"platform"`
	ExternalID           string           `json:"external_id"`
	ContractName         string           `json:"contract_name"`
	EnteredAt            *time.Time       `json:"entered_at,omitempty"`
	ExitedAt             *time.Time       `json:"exited_at,omitempty"`
	EntryPrice           *decimal.Decimal `json:"entry_price,omitempty"`
	ExitPrice            *decimal.Decimal `json:"exit_price,omitempty"`
	Size                 *int64           `json:"size,omitempty"`
	Direction            string           `json:"direction"`
	Pnl                  *decimal.Decimal `json:"pnl,omitempty"`
	Fees                 *decimal.Decimal `json:"fees,omitempty"`
	Commissions          *decimal.Decimal `json:"commissions,omitempty"`
	TradeDay             *time.Time       `json:"trade_day,omitempty"`
	TradeDurationSeconds *float64         `json:"trade_duration_seconds,omitempty"`
	PnlEntryID           *string          `json:"pnl_entry_id,omitempty"`
}

// NewStoredTrade maps a parsed trade onto the row that will be inserted.
func NewStoredTrade(accountID, platform string, t NormalizedTrade) StoredTrade {
	entered, exited, day := t.EnteredAt, t.ExitedAt, DateOf(t.TradeDay)
	entry, exit := t.EntryPrice, t.ExitPrice
	size := t.Size
	pnl, fees := t.GrossPnl, t.Fees
	return StoredTrade{
		AccountID:            accountID,
		Platform:             platform,
		ExternalID:           t.ExternalID,
		ContractName:         t.ContractName,
		EnteredAt:            &entered,
		ExitedAt:             &exited,
		EntryPrice:           &entry,
		ExitPrice:            &exit,
		Size:                 &size,
		Direction:            string(t.Direction),
		Pnl:                  &pnl,
		Fees:                 &fees,
		Commissions:          t.Commissions,
		TradeDay:             &day,
		TradeDurationSeconds: t.TradeDurationSeconds,
	}
}

// DateOf truncates t to its calendar date (in t's own location) and returns
// it as midnight UTC, the canonical form for trade days and ledger dates.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
