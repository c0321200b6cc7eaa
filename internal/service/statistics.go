package service

import (
	"context"
	"fmt"
	"time"

	"github.com/guttosm/proptrack/internal/domain/models"
	"github.com/guttosm/proptrack/internal/formula"
	"github.com/guttosm/proptrack/internal/metrics"
	"github.com/guttosm/proptrack/internal/stats"
)

// StatisticsService defines the statistics use cases.
type StatisticsService interface {
	Calculate(ctx context.Context, userID, accountID string, from, to *time.Time) (*models.TradingStatistics, error)
	Evaluate(ctx context.Context, userID, accountID string, from, to *time.Time, expr string) (float64, error)
}

type statisticsService struct {
	accounts AccountReader
	trades   TradeLister
	metrics  *metrics.Metrics
}

// NewStatisticsService wires the statistics use cases. m may be nil.
func NewStatisticsService(accounts AccountReader, trades TradeLister, m *metrics.Metrics) StatisticsService {
	return &statisticsService{accounts: accounts, trades: trades, metrics: m}
}

// Calculate computes statistics over the account's trades with a trade day
// in [from, to]. Either bound may be nil.
func (s *statisticsService) Calculate(ctx context.Context, userID, accountID string, from, to *time.Time) (*models.TradingStatistics, error) {
	out, err := s.calculate(ctx, userID, accountID, from, to)
	s.metrics.ObserveStatistics("standard", err)
	return out, err
}

// Evaluate computes statistics as Calculate does, then evaluates expr over them.
func (s *statisticsService) Evaluate(ctx context.Context, userID, accountID string, from, to *time.Time, expr string) (float64, error) {
	st, err := s.calculate(ctx, userID, accountID, from, to)
	if err != nil {
		s.metrics.ObserveStatistics("custom", err)
		return 0, err
	}
	v, err := formula.Evaluate(expr, formula.Variables(st))
	s.metrics.ObserveStatistics("custom", err)
	return v, err
}

func (s *statisticsService) calculate(ctx context.Context, userID, accountID string, from, to *time.Time) (*models.TradingStatistics, error) {
	if _, err := loadOwnedAccount(ctx, s.accounts, userID, accountID); err != nil {
		return nil, err
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, &InvalidRangeError{From: *from, To: *to}
	}
	trades, err := s.trades.ListStoredTrades(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	return stats.Calculate(trades)
}

// InvalidRangeError is returned when from is after to.
type InvalidRangeError struct {
	From, To time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: %s is after %s", e.From.Format(time.DateOnly), e.To.Format(time.DateOnly))
}
