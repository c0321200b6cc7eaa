package formula

import (
	"sort"

	"github.com/guttosm/proptrack/internal/domain/models"
)

// Variables exposes the numeric statistics fields under their snake_case
// names. Weekday and best/worst trade fields are not numeric and are left out,
// except for best_trade_pnl and worst_trade_pnl (0 when absent).
func Variables(s *models.TradingStatistics) map[string]float64 {
	vars := map[string]float64{
		"total_trades":              float64(s.TotalTrades),
		"total_lots":                float64(s.TotalLots),
		"winning_trades":            float64(s.WinningTrades),
		"losing_trades":             float64(s.LosingTrades),
		"net_pnl":                   s.NetPnl.InexactFloat64(),
		"gross_profit":              s.GrossProfit.InexactFloat64(),
		"gross_loss":                s.GrossLoss.InexactFloat64(),
		"trade_win_percent":         s.TradeWinPercent,
		"day_win_percent":           s.DayWinPercent,
		"avg_win":                   s.AvgWin.InexactFloat64(),
		"avg_loss":                  s.AvgLoss.InexactFloat64(),
		"avg_win_loss_ratio":        s.AvgWinLossRatio,
		"profit_factor":             s.ProfitFactor,
		"best_day_percent_of_total": s.BestDayPercentOfTotal,
		"average_trade_duration":    s.AverageTradeDuration,
		"trade_direction_percent":   s.TradeDirectionPercent,
		"best_trade_pnl":            0,
		"worst_trade_pnl":           0,
	}
	if s.BestTrade != nil {
		vars["best_trade_pnl"] = s.BestTrade.NetPnl.InexactFloat64()
	}
	if s.WorstTrade != nil {
		vars["worst_trade_pnl"] = s.WorstTrade.NetPnl.InexactFloat64()
	}
	return vars
}

// VariableNames lists the identifiers Variables provides, sorted.
func VariableNames() []string {
	vars := Variables(&models.TradingStatistics{})
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
