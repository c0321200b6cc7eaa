// Package stats derives trading-performance statistics from a stored trade log.
package stats

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	mstats "github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"github.com/guttosm/proptrack/internal/domain/models"
)

// RatioSentinel is reported for win/loss ratio and profit factor when there
// are winning trades but no losing ones.
const RatioSentinel = 999.99

// InvalidInputError is returned when trades were given but none of them
// carries the fields needed for the computation.
type InvalidInputError struct {
	Total    int // trades received
	Excluded int // trades dropped as invalid
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("no valid trades: %d of %d trades lack pnl, fees, size or trade day", e.Excluded, e.Total)
}

// ErrInvalidInput lets callers match *InvalidInputError with errors.Is.
var ErrInvalidInput = errors.New("no valid trades")

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

type validTrade struct {
	src *models.StoredTrade
	net decimal.Decimal
	day time.Time
}

// Calculate computes statistics over trades. It applies no date filtering;
// callers pass the subset they want measured.
//
// Behavior:
//   - No trades at all yields zero-valued statistics with nil weekday and
//     best/worst fields.
//   - Trades missing Pnl, Fees, Size or TradeDay, or with a NaN/Inf duration,
//     are excluded first. If nothing is left, *InvalidInputError is returned.
//   - Net PnL is pnl - fees - commissions (nil commissions count as zero).
//   - Percentages and ratios are rounded to two decimals.
//   - Weekday ties go to the lowest weekday (Sunday = 0); best/worst trade
//     ties go to the first trade in input order.
func Calculate(trades []models.StoredTrade) (*models.TradingStatistics, error) {
	out := &models.TradingStatistics{}
	if len(trades) == 0 {
		return out, nil
	}

	valid := make([]validTrade, 0, len(trades))
	for i := range trades {
		t := &trades[i]
		if !usable(t) {
			continue
		}
		net := t.Pnl.Sub(*t.Fees)
		if t.Commissions != nil {
			net = net.Sub(*t.Commissions)
		}
		valid = append(valid, validTrade{src: t, net: net, day: models.DateOf(*t.TradeDay)})
	}
	if len(valid) == 0 {
		return nil, &InvalidInputError{Total: len(trades), Excluded: len(trades)}
	}

	var (
		longs     int
		durations []float64
		dayOrder  []time.Time
		byDay     = map[time.Time]decimal.Decimal{}
		wdCount   [7]int
		wdPnl     [7]decimal.Decimal
		wdSeen    [7]bool
		best      = valid[0]
		worst     = valid[0]
	)
	for _, v := range valid {
		out.TotalTrades++
		out.TotalLots += *v.src.Size
		out.NetPnl = out.NetPnl.Add(v.net)

		switch {
		case v.net.IsPositive():
			out.WinningTrades++
			out.GrossProfit = out.GrossProfit.Add(v.net)
		case v.net.IsNegative():
			out.LosingTrades++
			out.GrossLoss = out.GrossLoss.Add(v.net.Abs())
		}

		if strings.EqualFold(strings.TrimSpace(v.src.Direction), string(models.Long)) {
			longs++
		}
		if d := v.src.TradeDurationSeconds; d != nil && *d > 0 {
			durations = append(durations, *d)
		}

		if _, ok := byDay[v.day]; !ok {
			dayOrder = append(dayOrder, v.day)
		}
		byDay[v.day] = byDay[v.day].Add(v.net)

		wd := v.day.Weekday()
		wdCount[wd]++
		wdPnl[wd] = wdPnl[wd].Add(v.net)
		wdSeen[wd] = true

		if v.net.GreaterThan(best.net) {
			best = v
		}
		if v.net.LessThan(worst.net) {
			worst = v
		}
	}

	total := float64(out.TotalTrades)
	out.TradeWinPercent = round2(float64(out.WinningTrades) / total * 100)
	out.TradeDirectionPercent = round2(float64(longs) / total * 100)

	// The ratio uses the unrounded means; only the reported averages are rounded.
	avgWin, avgLoss := decimal.Zero, decimal.Zero
	if out.WinningTrades > 0 {
		avgWin = out.GrossProfit.Div(decimal.NewFromInt(int64(out.WinningTrades)))
	}
	if out.LosingTrades > 0 {
		avgLoss = out.GrossLoss.Div(decimal.NewFromInt(int64(out.LosingTrades)))
	}
	out.AvgWin = avgWin.Round(2)
	out.AvgLoss = avgLoss.Round(2)
	out.AvgWinLossRatio = ratio(avgWin, avgLoss, out.WinningTrades, out.LosingTrades)
	out.ProfitFactor = ratio(out.GrossProfit, out.GrossLoss, out.WinningTrades, out.LosingTrades)

	winningDays := 0
	bestDay := decimal.Zero
	for _, d := range dayOrder {
		sum := byDay[d]
		if sum.IsPositive() {
			winningDays++
			if sum.GreaterThan(bestDay) {
				bestDay = sum
			}
		}
	}
	out.DayWinPercent = round2(float64(winningDays) / float64(len(dayOrder)) * 100)
	if out.GrossProfit.IsPositive() && bestDay.IsPositive() {
		out.BestDayPercentOfTotal = round2(bestDay.Div(out.GrossProfit).InexactFloat64() * 100)
	}

	out.MostActiveDay = pickWeekday(wdSeen, func(a, b time.Weekday) bool { return wdCount[a] > wdCount[b] })
	out.MostProfitableDay = pickWeekday(wdSeen, func(a, b time.Weekday) bool { return wdPnl[a].GreaterThan(wdPnl[b]) })
	out.LeastProfitableDay = pickWeekday(wdSeen, func(a, b time.Weekday) bool { return wdPnl[a].LessThan(wdPnl[b]) })

	if len(durations) > 0 {
		if mean, err := mstats.Mean(durations); err == nil {
			out.AverageTradeDuration = round2(mean)
		}
	}

	out.BestTrade = ref(best)
	out.WorstTrade = ref(worst)
	return out, nil
}

func usable(t *models.StoredTrade) bool {
	if t.Pnl == nil || t.Fees == nil || t.Size == nil || t.TradeDay == nil {
		return false
	}
	if d := t.TradeDurationSeconds; d != nil && (math.IsNaN(*d) || math.IsInf(*d, 0)) {
		return false
	}
	return true
}

// ratio divides num by den, applying the sentinel/zero rules shared by the
// win/loss ratio and the profit factor.
func ratio(num, den decimal.Decimal, wins, losses int) float64 {
	switch {
	case wins == 0:
		return 0
	case losses == 0 || den.IsZero():
		return RatioSentinel
	default:
		return round2(num.Div(den).InexactFloat64())
	}
}

// pickWeekday returns the seen weekday for which better holds against every
// other seen weekday, scanning Sunday first so ties keep the lowest index.
func pickWeekday(seen [7]bool, better func(a, b time.Weekday) bool) *time.Weekday {
	var pick *time.Weekday
	for i := time.Sunday; i <= time.Saturday; i++ {
		if !seen[i] {
			continue
		}
		if pick == nil || better(i, *pick) {
			wd := i
			pick = &wd
		}
	}
	return pick
}

func ref(v validTrade) *models.TradeRef {
	return &models.TradeRef{
		ID:           v.src.ID,
		ExternalID:   v.src.ExternalID,
		ContractName: v.src.ContractName,
		TradeDay:     v.day,
		NetPnl:       v.net,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
