package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pq "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/guttosm/proptrack/internal/domain/models"
	"github.com/guttosm/proptrack/internal/reconcile"
)

// ErrDuplicateTrade is wrapped when a trade with the same
// (account, platform, external id) already exists.
var ErrDuplicateTrade = errors.New("trade already stored")

// StorageError wraps any failure coming from the database with the name of
// the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// TradesRepository reads and writes the stored trade log and the PnL ledger.
type TradesRepository interface {
	FindStoredTradeIDs(ctx context.Context, accountID, platform string, r models.DateRange) ([]string, error)
	CreateStoredTrade(ctx context.Context, t models.StoredTrade) (string, error)
	FindLedgerEntry(ctx context.Context, accountID string, date time.Time) (*models.PnlLedgerEntry, error)
	ApplyLedgerDelta(ctx context.Context, accountID string, date time.Time, delta decimal.Decimal) (*models.PnlLedgerEntry, bool, error)
	LinkUnlinkedTrades(ctx context.Context, accountID, platform string, r models.DateRange, ledgerEntryID string) (int64, error)
	ListStoredTrades(ctx context.Context, accountID string, from, to *time.Time) ([]models.StoredTrade, error)
}

// AccountsRepository reads accounts. Account lifecycle is managed elsewhere.
type AccountsRepository interface {
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
}

// querier is the subset of *sql.DB and *sql.Tx the store issues statements on.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore implements both repositories over a *sql.DB. Inside
// WithinTx it is bound to the transaction instead.
type PostgresStore struct {
	db    *sql.DB
	q     querier
	tx    *sql.Tx
	newID func() string
}

// NewPostgresStore wraps an open PostgreSQL handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db, newID: uuid.NewString}
}

// WithinTx runs fn on a store bound to one transaction, committing when fn
// returns nil and rolling back otherwise. Calls made on a store that is
// already inside a transaction join it.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx reconcile.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin", err)
	}
	if err := fn(&PostgresStore{db: s.db, q: tx, tx: tx, newID: s.newID}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return wrap("commit", tx.Commit())
}

// FindStoredTradeIDs returns the external ids stored for the account and
// platform with a trade day inside r (inclusive).
func (s *PostgresStore) FindStoredTradeIDs(ctx context.Context, accountID, platform string, r models.DateRange) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT external_id
		FROM trades
		WHERE account_id = $1 AND platform = $2 AND trade_day BETWEEN $3 AND $4
	`, accountID, platform, models.DateOf(r.From), models.DateOf(r.To))
	if err != nil {
		return nil, wrap("find stored trade ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("find stored trade ids", err)
		}
		ids = append(ids, id)
	}
	return ids, wrap("find stored trade ids", rows.Err())
}

// CreateStoredTrade inserts one trade. A unique violation on
// (account_id, platform, external_id) is reported as ErrDuplicateTrade.
//
// Inside a transaction the insert runs under a savepoint so a failed row
// leaves the transaction usable for the rest of the batch.
func (s *PostgresStore) CreateStoredTrade(ctx context.Context, t models.StoredTrade) (string, error) {
	if s.tx == nil {
		return s.insertTrade(ctx, t)
	}
	if _, err := s.tx.ExecContext(ctx, `SAVEPOINT create_trade`); err != nil {
		return "", wrap("create stored trade", err)
	}
	id, err := s.insertTrade(ctx, t)
	if err != nil {
		if _, rbErr := s.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT create_trade`); rbErr != nil {
			return "", wrap("create stored trade", rbErr)
		}
		return "", err
	}
	if _, err := s.tx.ExecContext(ctx, `RELEASE SAVEPOINT create_trade`); err != nil {
		return "", wrap("create stored trade", err)
	}
	return id, nil
}

func (s *PostgresStore) insertTrade(ctx context.Context, t models.StoredTrade) (string, error) {
	id := s.newID()
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO trades (
			id, account_id, platform, external_id, contract_name,
			entered_at, exited_at, entry_price, exit_price, size, direction,
			pnl, fees, commissions, trade_day, trade_duration_seconds
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		id, t.AccountID, t.Platform, t.ExternalID, t.ContractName,
		nullTime(t.EnteredAt), nullTime(t.ExitedAt),
		nullDecimal(t.EntryPrice), nullDecimal(t.ExitPrice),
		t.Size, t.Direction,
		nullDecimal(t.Pnl), nullDecimal(t.Fees), nullDecimal(t.Commissions),
		nullTime(t.TradeDay), t.TradeDurationSeconds,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return "", wrap("create stored trade", fmt.Errorf("%w: %s", ErrDuplicateTrade, t.ExternalID))
		}
		return "", wrap("create stored trade", err)
	}
	return id, nil
}

// FindLedgerEntry returns nil, nil when the account has no entry on date.
func (s *PostgresStore) FindLedgerEntry(ctx context.Context, accountID string, date time.Time) (*models.PnlLedgerEntry, error) {
	var e models.PnlLedgerEntry
	err := s.q.QueryRowContext(ctx, `
		SELECT id, account_id, date, amount
		FROM pnl_entries
		WHERE account_id = $1 AND date = $2
	`, accountID, models.DateOf(date)).Scan(&e.ID, &e.AccountID, &e.Date, &e.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find ledger entry", err)
	}
	e.Date = models.DateOf(e.Date)
	return &e, nil
}

// ApplyLedgerDelta creates the (account, date) entry with amount delta, or
// adds delta to the existing amount, in one statement. The returned bool is
// true when the row was inserted.
func (s *PostgresStore) ApplyLedgerDelta(ctx context.Context, accountID string, date time.Time, delta decimal.Decimal) (*models.PnlLedgerEntry, bool, error) {
	e := models.PnlLedgerEntry{AccountID: accountID, Date: models.DateOf(date)}
	var created bool
	// xmax is 0 only for a freshly inserted row version.
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO pnl_entries (id, account_id, date, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, date)
		DO UPDATE SET amount = pnl_entries.amount + EXCLUDED.amount,
		              updated_at = NOW()
		RETURNING id, amount, (xmax = 0) AS created
	`, s.newID(), accountID, e.Date, delta).Scan(&e.ID, &e.Amount, &created)
	if err != nil {
		return nil, false, wrap("apply ledger delta", err)
	}
	return &e, created, nil
}

// LinkUnlinkedTrades points every trade of the account and platform in r
// that has no ledger entry yet at ledgerEntryID.
func (s *PostgresStore) LinkUnlinkedTrades(ctx context.Context, accountID, platform string, r models.DateRange, ledgerEntryID string) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE trades
		SET pnl_entry_id = $1
		WHERE account_id = $2 AND platform = $3 AND pnl_entry_id IS NULL
		  AND trade_day BETWEEN $4 AND $5
	`, ledgerEntryID, accountID, platform, models.DateOf(r.From), models.DateOf(r.To))
	if err != nil {
		return 0, wrap("link unlinked trades", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("link unlinked trades", err)
	}
	return n, nil
}

// ListStoredTrades returns the account's trades ordered by trade day and
// exit time. from and to are optional inclusive bounds on the trade day.
func (s *PostgresStore) ListStoredTrades(ctx context.Context, accountID string, from, to *time.Time) ([]models.StoredTrade, error) {
	// $1 is always the account. Further placeholders depend on the bounds given.
	conditions := "account_id = $1"
	args := []interface{}{accountID}
	if from != nil {
		args = append(args, models.DateOf(*from))
		conditions += fmt.Sprintf(" AND trade_day >= $%d", len(args))
	}
	if to != nil {
		args = append(args, models.DateOf(*to))
		conditions += fmt.Sprintf(" AND trade_day <= $%d", len(args))
	}

	query := fmt.Sprintf(`
		SELECT id, account_id, platform, external_id, contract_name,
		       entered_at, exited_at, entry_price, exit_price, size, direction,
		       pnl, fees, commissions, trade_day, trade_duration_seconds, pnl_entry_id
		FROM trades
		WHERE %s
		ORDER BY trade_day NULLS LAST, exited_at NULLS LAST, id
	`, conditions)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list stored trades", err)
	}
	defer rows.Close()

	var out []models.StoredTrade
	for rows.Next() {
		var (
			t                          models.StoredTrade
			entered, exited, day       sql.NullTime
			entry, exit, pnl, fees, cm decimal.NullDecimal
			size                       sql.NullInt64
			duration                   sql.NullFloat64
			entryID                    sql.NullString
		)
		if err := rows.Scan(
			&t.ID, &t.AccountID, &t.Platform, &t.ExternalID, &t.ContractName,
			&entered, &exited, &entry, &exit, &size, &t.Direction,
			&pnl, &fees, &cm, &day, &duration, &entryID,
		); err != nil {
			return nil, wrap("list stored trades", err)
		}
		t.EnteredAt = timePtr(entered)
		t.ExitedAt = timePtr(exited)
		if day.Valid {
			d := models.DateOf(day.Time)
			t.TradeDay = &d
		}
		t.EntryPrice = decimalPtr(entry)
		t.ExitPrice = decimalPtr(exit)
		t.Pnl = decimalPtr(pnl)
		t.Fees = decimalPtr(fees)
		t.Commissions = decimalPtr(cm)
		if size.Valid {
			t.Size = &size.Int64
		}
		if duration.Valid {
			t.TradeDurationSeconds = &duration.Float64
		}
		if entryID.Valid {
			t.PnlEntryID = &entryID.String
		}
		out = append(out, t)
	}
	return out, wrap("list stored trades", rows.Err())
}

// GetAccount returns nil, nil when the account does not exist.
func (s *PostgresStore) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	var a models.Account
	err := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, name, broker_firm FROM accounts WHERE id = $1
	`, accountID).Scan(&a.ID, &a.UserID, &a.Name, &a.BrokerFirm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get account", err)
	}
	return &a, nil
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return wrap("ping", s.db.PingContext(ctx))
}

// helpers mapping nil pointers to SQL NULL
func nullTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

func nullDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
