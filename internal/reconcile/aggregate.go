package reconcile

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/proptrack/internal/domain/models"
)

// GroupByDay buckets trades by the calendar date of their TradeDay.
//
// Behavior:
//   - TotalPnl is gross PnL minus fees minus commissions (nil counts as zero),
//     rounded to cents. It is the figure that reaches the ledger.
//   - Summaries are sorted ascending by date; trades keep their input order.
//   - An empty input yields an empty (nil) slice.
func GroupByDay(trades []models.NormalizedTrade) []models.DailySummary {
	if len(trades) == 0 {
		return nil
	}

	byDay := make(map[time.Time]*models.DailySummary)
	for _, t := range trades {
		day := models.DateOf(t.TradeDay)
		s, ok := byDay[day]
		if !ok {
			s = &models.DailySummary{Date: day}
			byDay[day] = s
		}
		s.TotalPnl = s.TotalPnl.Add(t.GrossPnl).Sub(t.Fees)
		s.TotalFees = s.TotalFees.Add(t.Fees)
		if t.Commissions != nil {
			s.TotalPnl = s.TotalPnl.Sub(*t.Commissions)
			s.TotalCommissions = s.TotalCommissions.Add(*t.Commissions)
		}
		s.TradeCount++
		s.Trades = append(s.Trades, t)
	}

	out := make([]models.DailySummary, 0, len(byDay))
	for _, s := range byDay {
		s.TotalPnl = s.TotalPnl.Round(2)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// dateRange returns the inclusive span of trade days in trades.
func dateRange(trades []models.NormalizedTrade) models.DateRange {
	var r models.DateRange
	for i, t := range trades {
		day := models.DateOf(t.TradeDay)
		if i == 0 || day.Before(r.From) {
			r.From = day
		}
		if i == 0 || day.After(r.To) {
			r.To = day
		}
	}
	return r
}

// sumNet adds the net PnL of trades without rounding.
func sumNet(trades []models.NormalizedTrade) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(t.NetPnl())
	}
	return total
}
