package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/proptrack/config"
	"github.com/guttosm/proptrack/internal/domain/models"
	"github.com/guttosm/proptrack/internal/metrics"
	"github.com/guttosm/proptrack/internal/reconcile"
	"github.com/guttosm/proptrack/internal/service"
	"github.com/guttosm/proptrack/internal/storage"
)

// Services is the business layer shared by the HTTP API and the CLI.
type Services struct {
	Store      *storage.PostgresStore
	Imports    service.ImportService
	Statistics service.StatisticsService
}

// NewServices builds the storage, reconciliation and service layers over db.
//
// Parameters:
//   - cfg: import defaults are read from cfg.Import.
//   - db: open PostgreSQL handle.
//   - m: metrics sink; may be nil.
func NewServices(cfg config.Config, db *sql.DB, m *metrics.Metrics) (*Services, error) {
	opts, err := importOptions(cfg.Import)
	if err != nil {
		return nil, err
	}
	store := storage.NewPostgresStore(db)
	rec := reconcile.NewReconciler(store)
	return &Services{
		Store:      store,
		Imports:    service.NewImportService(store, rec, opts, m),
		Statistics: service.NewStatisticsService(store, store, m),
	}, nil
}

func importOptions(c config.ImportConfig) (service.ImportOptions, error) {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return service.ImportOptions{}, fmt.Errorf("invalid IMPORT_DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	fee := decimal.Zero
	if s := strings.TrimSpace(c.TradovateFeePerSide); s != "" {
		fee, err = decimal.NewFromString(s)
		if err != nil || fee.IsNegative() {
			return service.ImportOptions{}, fmt.Errorf("invalid IMPORT_TRADOVATE_FEE_PER_SIDE %q", c.TradovateFeePerSide)
		}
	}
	return service.ImportOptions{FeePerSide: fee, Location: loc, NetPnlFirms: c.NetPnlFirms}, nil
}

// SystemImporter runs imports as the system (no owning user), for the CLI.
type SystemImporter struct {
	Imports service.ImportService
}

// ImportCSV implements ingestion.Importer.
func (s SystemImporter) ImportCSV(ctx context.Context, accountID, platform, csv string) (*models.ImportResult, error) {
	return s.Imports.Import(ctx, service.ImportRequest{AccountID: accountID, Platform: platform, CSV: csv})
}

// PreviewCSV implements ingestion.Importer.
func (s SystemImporter) PreviewCSV(ctx context.Context, accountID, platform, csv string) (*models.PreviewResult, error) {
	return s.Imports.Preview(ctx, service.ImportRequest{AccountID: accountID, Platform: platform, CSV: csv})
}
