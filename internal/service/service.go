package service

import (
	"context"
	"errors"
	"time"

	"github.com/guttosm/proptrack/internal/domain/models"
)

// ErrAccountNotFound is returned when the account does not exist or belongs
// to another user. The two cases are not distinguished to callers.
var ErrAccountNotFound = errors.New("account not found")

// AccountReader loads accounts.
type AccountReader interface {
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
}

// TradeLister loads stored trades for statistics.
type TradeLister interface {
	ListStoredTrades(ctx context.Context, accountID string, from, to *time.Time) ([]models.StoredTrade, error)
}

// Reconciler is the write/preview side of the ingestion pipeline.
type Reconciler interface {
	Import(ctx context.Context, accountID, platform string, trades []models.NormalizedTrade) (*models.ImportResult, error)
	Preview(ctx context.Context, accountID, platform string, trades []models.NormalizedTrade) (*models.PreviewResult, error)
}

// loadOwnedAccount returns the account when it exists and userID owns it.
// An empty userID marks a system caller (the CLI) and skips the owner check.
func loadOwnedAccount(ctx context.Context, accounts AccountReader, userID, accountID string) (*models.Account, error) {
	acct, err := accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil || (userID != "" && acct.UserID != userID) {
		return nil, ErrAccountNotFound
	}
	return acct, nil
}
