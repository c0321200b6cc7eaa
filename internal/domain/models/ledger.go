package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the prop-firm account a trade log belongs to. Accounts are
// managed elsewhere; this service only reads them.
type Account struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	BrokerFirm string `json:"broker_firm"`
}

// PnlLedgerEntry is the realized PnL recorded for one account on one trading
// day. Amount is additive: imports increment it, they never overwrite it.
type PnlLedgerEntry struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether day falls within the range.
func (r DateRange) Contains(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(DateOf(r.From)) && !d.After(DateOf(r.To))
}
