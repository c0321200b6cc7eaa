package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/proptrack/internal/domain/models"
)

// Preview reports what Import would do with trades without writing anything.
//
// Days follow the aggregation of the whole input, duplicates included, so a
// day made only of duplicates still appears with NewTradesCount 0.
// ExistingAmount is nil when the day has no ledger entry yet.
func (r *Reconciler) Preview(ctx context.Context, accountID, platform string, trades []models.NormalizedTrade) (*models.PreviewResult, error) {
	fresh, dups, err := r.partition(ctx, accountID, platform, trades)
	if err != nil {
		return nil, err
	}

	newByDay := make(map[time.Time][]models.NormalizedTrade)
	for _, t := range fresh {
		day := models.DateOf(t.TradeDay)
		newByDay[day] = append(newByDay[day], t)
	}

	res := &models.PreviewResult{
		TotalTrades:     len(trades),
		NewTrades:       len(fresh),
		DuplicateTrades: len(dups),
		NetNewPnl:       decimal.Zero,
	}
	for _, day := range GroupByDay(trades) {
		newTrades := newByDay[day.Date]
		newPnl := sumNet(newTrades).Round(2)

		existing, err := r.store.FindLedgerEntry(ctx, accountID, day.Date)
		if err != nil {
			return nil, fmt.Errorf("find ledger entry for %s: %w", day.Date.Format(time.DateOnly), err)
		}
		var amount *decimal.Decimal
		if existing != nil {
			a := existing.Amount
			amount = &a
		}

		res.Days = append(res.Days, models.PreviewDay{
			Date:                 day.Date,
			TotalPnl:             day.TotalPnl,
			NewPnl:               newPnl,
			TotalTradesCount:     day.TradeCount,
			NewTradesCount:       len(newTrades),
			DuplicateTradesCount: day.TradeCount - len(newTrades),
			ExistingAmount:       amount,
		})
		res.NetNewPnl = res.NetNewPnl.Add(newPnl)
	}
	return res, nil
}
