package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	pq "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/guttosm/proptrack/internal/domain/models"
	"github.com/guttosm/proptrack/internal/reconcile"
)

type dummyErr struct{}

func (dummyErr) Error() string { return "dummy" }

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	store := NewPostgresStore(db)
	store.newID = func() string { return "fixed-id" }
	cleanup := func() { _ = db.Close() }
	return store, mock, cleanup
}

var (
	day1 = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)
)

func TestFindStoredTradeIDs(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT external_id`)).
		WithArgs("acct", "projectx", day1, day2).
		WillReturnRows(sqlmock.NewRows([]string{"external_id"}).AddRow("1").AddRow("2"))

	ids, err := store.FindStoredTradeIDs(context.Background(), "acct", "projectx", models.DateRange{From: day1, To: day2.Add(15 * time.Hour)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(ids) != 2 || ids[0] != "1" || ids[1] != "2" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateStoredTrade(t *testing.T) {
	entered := day1.Add(14 * time.Hour)
	exited := entered.Add(time.Minute)
	nt := models.NormalizedTrade{
		ExternalID: "1001",
		EnteredAt:  entered,
		ExitedAt:   exited,
		Size:       2,
		Direction:  models.Long,
		GrossPnl:   decimal.RequireFromString("12.5"),
		Fees:       decimal.RequireFromString("2.22"),
		EntryPrice: decimal.RequireFromString("100"),
		ExitPrice:  decimal.RequireFromString("101.25"),
		TradeDay:   day1,
	}
	row := models.NewStoredTrade("acct", "projectx", nt)

	cases := []struct {
		name    string
		execErr error
		wantErr error
	}{
		{name: "ok"},
		{name: "unique violation", execErr: &pq.Error{Code: uniqueViolation}, wantErr: ErrDuplicateTrade},
		{name: "other failure", execErr: dummyErr{}, wantErr: dummyErr{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, mock, done := newMockStore(t)
			defer done()

			exp := mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO trades`)).
				WithArgs("fixed-id", "acct", "projectx", "1001", "",
					entered, exited, "100", "101.25", int64(2), "Long",
					"12.5", "2.22", nil, day1, nil)
			if tc.execErr != nil {
				exp.WillReturnError(tc.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			id, err := store.CreateStoredTrade(context.Background(), row)
			if tc.wantErr == nil {
				if err != nil || id != "fixed-id" {
					t.Fatalf("unexpected id=%q err=%v", id, err)
				}
			} else {
				var se *StorageError
				if !errors.As(err, &se) || se.Op != "create stored trade" {
					t.Fatalf("expected StorageError, got %v", err)
				}
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v in chain, got %v", tc.wantErr, err)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestFindLedgerEntry(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	q := regexp.QuoteMeta(`SELECT id, account_id, date, amount`)
	mock.ExpectQuery(q).WithArgs("acct", day1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "date", "amount"}).AddRow("e1", "acct", day1, "33.06"))
	mock.ExpectQuery(q).WithArgs("acct", day2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "date", "amount"}))

	e, err := store.FindLedgerEntry(context.Background(), "acct", day1)
	if err != nil || e == nil || e.ID != "e1" || e.Amount.String() != "33.06" {
		t.Fatalf("unexpected entry=%+v err=%v", e, err)
	}
	e, err = store.FindLedgerEntry(context.Background(), "acct", day2)
	if err != nil || e != nil {
		t.Fatalf("want nil,nil got %+v, %v", e, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyLedgerDelta(t *testing.T) {
	cases := []struct {
		name        string
		amount      string
		created     bool
		wantCreated bool
	}{
		{name: "insert", amount: "33.06", created: true, wantCreated: true},
		{name: "increment", amount: "50.00", created: false, wantCreated: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, mock, done := newMockStore(t)
			defer done()

			mock.ExpectQuery(`INSERT INTO pnl_entries .* ON CONFLICT \(account_id, date\)\s+DO UPDATE SET amount = pnl_entries.amount \+ EXCLUDED.amount`).
				WithArgs("fixed-id", "acct", day1, "33.06").
				WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "created"}).AddRow("e1", tc.amount, tc.created))

			e, created, err := store.ApplyLedgerDelta(context.Background(), "acct", day1.Add(5*time.Hour), decimal.RequireFromString("33.06"))
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if created != tc.wantCreated || e.ID != "e1" || !e.Amount.Equal(decimal.RequireFromString(tc.amount)) || !e.Date.Equal(day1) {
				t.Fatalf("unexpected entry=%+v created=%v", e, created)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestApplyLedgerDelta_Error(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery(`INSERT INTO pnl_entries`).WillReturnError(dummyErr{})

	_, _, err := store.ApplyLedgerDelta(context.Background(), "acct", day1, decimal.NewFromInt(1))
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "apply ledger delta" {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestLinkUnlinkedTrades(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE trades`)).
		WithArgs("e1", "acct", "projectx", day1, day1).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.LinkUnlinkedTrades(context.Background(), "acct", "projectx", models.DateRange{From: day1, To: day1}, "e1")
	if err != nil || n != 3 {
		t.Fatalf("unexpected n=%d err=%v", n, err)
	}
}

func TestListStoredTrades(t *testing.T) {
	cols := []string{
		"id", "account_id", "platform", "external_id", "contract_name",
		"entered_at", "exited_at", "entry_price", "exit_price", "size", "direction",
		"pnl", "fees", "commissions", "trade_day", "trade_duration_seconds", "pnl_entry_id",
	}
	cases := []struct {
		name string
		from *time.Time
		to   *time.Time
		args int
	}{
		{name: "no bounds", args: 1},
		{name: "from only", from: &day1, args: 2},
		{name: "range", from: &day1, to: &day2, args: 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, mock, done := newMockStore(t)
			defer done()

			rows := sqlmock.NewRows(cols).
				AddRow("t1", "acct", "projectx", "1001", "MNQH5",
					day1.Add(time.Hour), day1.Add(2*time.Hour), "100", "101", int64(1), "Long",
					"12.00", "2.22", nil, day1, 60.5, "e1").
				AddRow("t2", "acct", "manual", "m-1", "",
					nil, nil, nil, nil, nil, "",
					"5", nil, nil, nil, nil, nil)

			exp := mock.ExpectQuery(`SELECT id, account_id, platform, external_id`)
			switch tc.args {
			case 1:
				exp.WithArgs("acct")
			case 2:
				exp.WithArgs("acct", day1)
			case 3:
				exp.WithArgs("acct", day1, day2)
			}
			exp.WillReturnRows(rows)

			out, err := store.ListStoredTrades(context.Background(), "acct", tc.from, tc.to)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if len(out) != 2 {
				t.Fatalf("want 2 trades, got %d", len(out))
			}
			first := out[0]
			if first.Size == nil || *first.Size != 1 || first.Pnl == nil || first.Pnl.String() != "12" ||
				first.Commissions != nil || first.PnlEntryID == nil || *first.PnlEntryID != "e1" ||
				first.TradeDurationSeconds == nil || *first.TradeDurationSeconds != 60.5 {
				t.Fatalf("unexpected first trade: %+v", first)
			}
			second := out[1]
			if second.Fees != nil || second.Size != nil || second.TradeDay != nil || second.EnteredAt != nil {
				t.Fatalf("nullable columns should map to nil: %+v", second)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestGetAccount(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	q := regexp.QuoteMeta(`SELECT id, user_id, name, broker_firm FROM accounts WHERE id = $1`)
	mock.ExpectQuery(q).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "broker_firm"}).AddRow("a1", "u1", "Eval 50K", "topstep"))
	mock.ExpectQuery(q).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "broker_firm"}))
	mock.ExpectQuery(q).WithArgs("boom").WillReturnError(dummyErr{})

	a, err := store.GetAccount(context.Background(), "a1")
	if err != nil || a == nil || a.UserID != "u1" || a.BrokerFirm != "topstep" {
		t.Fatalf("unexpected account=%+v err=%v", a, err)
	}
	a, err = store.GetAccount(context.Background(), "missing")
	if err != nil || a != nil {
		t.Fatalf("want nil,nil got %+v, %v", a, err)
	}
	if _, err = store.GetAccount(context.Background(), "boom"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWithinTx_FailedInsertUsesSavepointAndCommits(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(`SAVEPOINT create_trade`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO trades`)).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec(`ROLLBACK TO SAVEPOINT create_trade`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SAVEPOINT create_trade`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO trades`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`RELEASE SAVEPOINT create_trade`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	var firstErr error
	err := store.WithinTx(context.Background(), func(tx reconcile.Store) error {
		_, firstErr = tx.CreateStoredTrade(context.Background(), models.StoredTrade{AccountID: "acct", Platform: "projectx", ExternalID: "1"})
		_, err := tx.CreateStoredTrade(context.Background(), models.StoredTrade{AccountID: "acct", Platform: "projectx", ExternalID: "2"})
		return err
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !errors.Is(firstErr, ErrDuplicateTrade) {
		t.Fatalf("want ErrDuplicateTrade, got %v", firstErr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO pnl_entries`)).WillReturnError(dummyErr{})
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(tx reconcile.Store) error {
		_, _, err := tx.ApplyLedgerDelta(context.Background(), "acct", day1, decimal.NewFromInt(9))
		return err
	})
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "apply ledger delta" {
		t.Fatalf("want apply ledger delta StorageError, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithinTx_BeginFailure(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectBegin().WillReturnError(dummyErr{})

	called := false
	err := store.WithinTx(context.Background(), func(reconcile.Store) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatalf("want begin error without calling fn, got err=%v called=%v", err, called)
	}
}

func TestWithinTx_NestedJoinsOuter(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(outer reconcile.Store) error {
		return outer.WithinTx(context.Background(), func(inner reconcile.Store) error {
			if inner != outer {
				t.Errorf("nested call should reuse the outer transaction")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
