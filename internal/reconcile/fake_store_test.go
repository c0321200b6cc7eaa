package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/proptrack/internal/domain/models"
)

// memStore is an in-memory Store used by the reconciler tests.
type memStore struct {
	mu        sync.Mutex
	trades    []models.StoredTrade
	ledger    map[time.Time]*models.PnlLedgerEntry
	failIDs   map[string]bool // external ids whose insert fails
	ledgerEr  error
	nextID    int
	writes    int
	rollbacks int
}

func newMemStore() *memStore {
	return &memStore{ledger: map[time.Time]*models.PnlLedgerEntry{}, failIDs: map[string]bool{}}
}

func (m *memStore) FindStoredTradeIDs(_ context.Context, accountID, platform string, r models.DateRange) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, t := range m.trades {
		if t.AccountID == accountID && t.Platform == platform && t.TradeDay != nil && r.Contains(*t.TradeDay) {
			ids = append(ids, t.ExternalID)
		}
	}
	return ids, nil
}

func (m *memStore) CreateStoredTrade(_ context.Context, t models.StoredTrade) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[t.ExternalID] {
		return "", errors.New("insert failed")
	}
	for _, s := range m.trades {
		if s.AccountID == t.AccountID && s.Platform == t.Platform && s.ExternalID == t.ExternalID {
			return "", errors.New("duplicate key")
		}
	}
	m.nextID++
	t.ID = fmt.Sprintf("trade-%d", m.nextID)
	m.trades = append(m.trades, t)
	m.writes++
	return t.ID, nil
}

func (m *memStore) FindLedgerEntry(_ context.Context, _ string, date time.Time) (*models.PnlLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.ledger[date]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) ApplyLedgerDelta(_ context.Context, accountID string, date time.Time, delta decimal.Decimal) (*models.PnlLedgerEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ledgerEr != nil {
		return nil, false, m.ledgerEr
	}
	m.writes++
	if e, ok := m.ledger[date]; ok {
		e.Amount = e.Amount.Add(delta)
		cp := *e
		return &cp, false, nil
	}
	m.nextID++
	e := &models.PnlLedgerEntry{ID: fmt.Sprintf("pnl-%d", m.nextID), AccountID: accountID, Date: date, Amount: delta}
	m.ledger[date] = e
	cp := *e
	return &cp, true, nil
}

func (m *memStore) LinkUnlinkedTrades(_ context.Context, accountID, platform string, r models.DateRange, ledgerEntryID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.trades {
		t := &m.trades[i]
		if t.AccountID != accountID || t.Platform != platform || t.PnlEntryID != nil || t.TradeDay == nil || !r.Contains(*t.TradeDay) {
			continue
		}
		id := ledgerEntryID
		t.PnlEntryID = &id
		n++
	}
	if n > 0 {
		m.writes++
	}
	return n, nil
}

// WithinTx snapshots the store and restores it when fn fails.
func (m *memStore) WithinTx(_ context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	trades := append([]models.StoredTrade(nil), m.trades...)
	ledger := make(map[time.Time]*models.PnlLedgerEntry, len(m.ledger))
	for k, e := range m.ledger {
		cp := *e
		ledger[k] = &cp
	}
	nextID, writes := m.nextID, m.writes
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.trades, m.ledger, m.nextID, m.writes = trades, ledger, nextID, writes
		m.rollbacks++
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) linked(externalID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trades {
		if t.ExternalID == externalID {
			return t.PnlEntryID != nil
		}
	}
	return false
}

func (m *memStore) amount(day time.Time) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.ledger[day]; ok {
		return e.Amount
	}
	return decimal.Zero
}
