package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/proptrack/internal/domain/models"
	"github.com/guttosm/proptrack/internal/ingestion"
	"github.com/guttosm/proptrack/internal/logger"
	"github.com/guttosm/proptrack/internal/metrics"
	"github.com/guttosm/proptrack/internal/platform"
)

// ImportRequest carries one CSV export to be imported or previewed.
type ImportRequest struct {
	UserID    string // empty for system callers
	AccountID string
	Platform  string
	CSV       string
}

// ImportOptions tunes how exports are interpreted.
//
// Fields:
//   - FeePerSide: per-contract, per-side fee for platforms whose export has no fees.
//   - Location: timezone of offset-less timestamps.
//   - NetPnlFirms: broker firms whose ProjectX export reports PnL net of fees.
type ImportOptions struct {
	FeePerSide  decimal.Decimal
	Location    *time.Location
	NetPnlFirms []string
}

// ImportService defines the import use cases.
type ImportService interface {
	Import(ctx context.Context, req ImportRequest) (*models.ImportResult, error)
	Preview(ctx context.Context, req ImportRequest) (*models.PreviewResult, error)
}

type importService struct {
	accounts AccountReader
	rec      Reconciler
	opts     ImportOptions
	metrics  *metrics.Metrics
}

// NewImportService wires the import use cases. m may be nil.
func NewImportService(accounts AccountReader, rec Reconciler, opts ImportOptions, m *metrics.Metrics) ImportService {
	return &importService{accounts: accounts, rec: rec, opts: opts, metrics: m}
}

// Import authorizes the request, parses the CSV and reconciles it.
//
// Behavior:
//   - Fails with ErrAccountNotFound for unknown or foreign accounts.
//   - Fails with *platform.IncompatiblePlatformError before parsing when the
//     account's broker firm does not use the platform.
//   - Fails with *ingestion.ParseError before any write on malformed CSV.
func (s *importService) Import(ctx context.Context, req ImportRequest) (*models.ImportResult, error) {
	pid, trades, err := s.prepare(ctx, req)
	if err != nil {
		s.metrics.ObserveImport(platform.Normalize(req.Platform), nil, err)
		return nil, err
	}
	res, err := s.rec.Import(ctx, req.AccountID, pid, trades)
	s.metrics.ObserveImport(pid, res, err)
	if err != nil {
		return nil, fmt.Errorf("import %s trades: %w", pid, err)
	}
	return res, nil
}

// Preview runs the same checks as Import and reports what it would do.
func (s *importService) Preview(ctx context.Context, req ImportRequest) (*models.PreviewResult, error) {
	pid, trades, err := s.prepare(ctx, req)
	if err != nil {
		s.metrics.ObservePreview(platform.Normalize(req.Platform), err)
		return nil, err
	}
	res, err := s.rec.Preview(ctx, req.AccountID, pid, trades)
	s.metrics.ObservePreview(pid, err)
	if err != nil {
		return nil, fmt.Errorf("preview %s trades: %w", pid, err)
	}
	return res, nil
}

func (s *importService) prepare(ctx context.Context, req ImportRequest) (string, []models.NormalizedTrade, error) {
	acct, err := loadOwnedAccount(ctx, s.accounts, req.UserID, req.AccountID)
	if err != nil {
		return "", nil, err
	}
	if err := platform.CheckCompatible(acct.BrokerFirm, req.Platform); err != nil {
		return "", nil, err
	}
	pid := platform.Normalize(req.Platform)

	trades, err := ingestion.Parse(pid, req.CSV, s.hintFor(acct))
	if err != nil {
		return "", nil, err
	}
	logger.L().Debug().
		Str("account_id", acct.ID).
		Str("platform", pid).
		Int("trades", len(trades)).
		Msg("csv parsed")
	return pid, trades, nil
}

func (s *importService) hintFor(acct *models.Account) ingestion.Hint {
	h := ingestion.Hint{FeePerSide: s.opts.FeePerSide, Location: s.opts.Location}
	firm := platform.Normalize(acct.BrokerFirm)
	for _, f := range s.opts.NetPnlFirms {
		if platform.Normalize(strings.TrimSpace(f)) == firm {
			h.PnlIncludesFees = true
			break
		}
	}
	return h
}
