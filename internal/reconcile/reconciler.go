package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/guttosm/proptrack/internal/domain/models"
	"github.com/guttosm/proptrack/internal/logger"
)

// Store is the persistence contract the reconciler needs.
type Store interface {
	// FindStoredTradeIDs returns the external ids already stored for the
	// account and platform whose trade day falls in r.
	FindStoredTradeIDs(ctx context.Context, accountID, platform string, r models.DateRange) ([]string, error)
	// CreateStoredTrade inserts one trade and returns its id.
	CreateStoredTrade(ctx context.Context, t models.StoredTrade) (string, error)
	// FindLedgerEntry returns nil, nil when no entry exists for the date.
	FindLedgerEntry(ctx context.Context, accountID string, date time.Time) (*models.PnlLedgerEntry, error)
	// ApplyLedgerDelta atomically creates the entry with amount delta or adds
	// delta to the existing amount. created reports which one happened.
	ApplyLedgerDelta(ctx context.Context, accountID string, date time.Time, delta decimal.Decimal) (entry *models.PnlLedgerEntry, created bool, err error)
	// LinkUnlinkedTrades points trades with no ledger entry at ledgerEntryID.
	LinkUnlinkedTrades(ctx context.Context, accountID, platform string, r models.DateRange, ledgerEntryID string) (int64, error)
	// WithinTx runs fn against a Store whose writes commit together when fn
	// returns nil and are all discarded otherwise. A failed CreateStoredTrade
	// inside fn must not poison the remaining writes.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// Reconciler folds parsed trades into the stored trade log and the PnL ledger.
type Reconciler struct {
	store    Store
	validate *validator.Validate
}

// NewReconciler builds a Reconciler over store.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Import stores the trades that are new for (accountID, platform) and adds
// their net PnL to the ledger, one entry per trading day.
//
// Behavior:
//   - Trades whose external id is already stored within the input's date
//     range, or repeated earlier in the same input, are ignored.
//   - Each new trade is validated and inserted on its own; a failure is
//     counted in TradesFailed and the rest of the batch continues.
//   - Only trades that were actually stored reach the ledger. Ledger
//     amounts are incremented, never overwritten.
//   - Trade inserts, ledger deltas and links commit as one unit. A ledger or
//     link failure rolls all of them back and returns the wrapped error, so
//     retrying the same input imports it in full.
func (r *Reconciler) Import(ctx context.Context, accountID, platform string, trades []models.NormalizedTrade) (*models.ImportResult, error) {
	log := logger.L().With().Str("account_id", accountID).Str("platform", platform).Logger()

	fresh, dups, err := r.partition(ctx, accountID, platform, trades)
	if err != nil {
		return nil, err
	}

	res := &models.ImportResult{DuplicatesIgnored: len(dups)}
	if len(fresh) == 0 {
		res.Summary = summarize(res, len(trades))
		log.Info().Int("duplicates", len(dups)).Msg("import: nothing new")
		return res, nil
	}

	err = r.store.WithinTx(ctx, func(tx Store) error {
		return r.write(ctx, tx, accountID, platform, fresh, res)
	})
	if err != nil {
		return nil, err
	}

	res.Summary = summarize(res, len(trades))
	log.Info().
		Int("stored", res.TradesStored).
		Int("failed", res.TradesFailed).
		Int("duplicates", res.DuplicatesIgnored).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Msg("import finished")
	return res, nil
}

// write stores fresh trades through tx and folds the stored ones into the
// ledger, filling res as it goes.
func (r *Reconciler) write(ctx context.Context, tx Store, accountID, platform string, fresh []models.NormalizedTrade, res *models.ImportResult) error {
	log := logger.L().With().Str("account_id", accountID).Str("platform", platform).Logger()

	var stored []models.NormalizedTrade
	for _, t := range fresh {
		if err := r.validate.Struct(t); err != nil {
			res.TradesFailed++
			log.Warn().Err(err).Str("external_id", t.ExternalID).Msg("import: invalid trade")
			continue
		}
		if _, err := tx.CreateStoredTrade(ctx, models.NewStoredTrade(accountID, platform, t)); err != nil {
			res.TradesFailed++
			log.Warn().Err(err).Str("external_id", t.ExternalID).Msg("import: store trade failed")
			continue
		}
		stored = append(stored, t)
	}
	res.TradesStored = len(stored)

	for _, day := range GroupByDay(stored) {
		entry, created, err := tx.ApplyLedgerDelta(ctx, accountID, day.Date, day.TotalPnl)
		if err != nil {
			return fmt.Errorf("apply ledger delta for %s: %w", day.Date.Format(time.DateOnly), err)
		}
		linked, err := tx.LinkUnlinkedTrades(ctx, accountID, platform, models.DateRange{From: day.Date, To: day.Date}, entry.ID)
		if err != nil {
			return fmt.Errorf("link trades for %s: %w", day.Date.Format(time.DateOnly), err)
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
		res.Days = append(res.Days, models.ImportDay{
			Date:         day.Date,
			PnlEntryID:   entry.ID,
			Delta:        day.TotalPnl,
			Balance:      entry.Amount,
			Created:      created,
			TradesStored: day.TradeCount,
			TradesLinked: linked,
		})
	}
	return nil
}

// partition splits trades into new ones and duplicates. Duplicates are
// trades already stored in the input's date range plus in-file repeats.
// Import and Preview share it so both agree on what is new.
func (r *Reconciler) partition(ctx context.Context, accountID, platform string, trades []models.NormalizedTrade) (fresh, dups []models.NormalizedTrade, err error) {
	if len(trades) == 0 {
		return nil, nil, nil
	}
	ids, err := r.store.FindStoredTradeIDs(ctx, accountID, platform, dateRange(trades))
	if err != nil {
		return nil, nil, fmt.Errorf("find stored trades: %w", err)
	}
	seen := make(map[string]struct{}, len(ids)+len(trades))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	for _, t := range trades {
		if _, ok := seen[t.ExternalID]; ok && t.ExternalID != "" {
			dups = append(dups, t)
			continue
		}
		if t.ExternalID != "" {
			seen[t.ExternalID] = struct{}{}
		}
		fresh = append(fresh, t)
	}
	return fresh, dups, nil
}

func summarize(res *models.ImportResult, total int) string {
	if res.TradesStored == 0 && res.TradesFailed == 0 {
		return fmt.Sprintf("No new trades: all %d trades were already imported", total)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Imported %d of %d trades", res.TradesStored, total)
	fmt.Fprintf(&b, "; created %d and updated %d PnL entries", res.Created, res.Updated)
	if res.TradesFailed > 0 {
		fmt.Fprintf(&b, "; %d failed", res.TradesFailed)
	}
	if res.DuplicatesIgnored > 0 {
		fmt.Fprintf(&b, "; %d duplicates ignored", res.DuplicatesIgnored)
	}
	return b.String()
}
