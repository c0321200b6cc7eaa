package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/guttosm/proptrack/internal/domain/dto"
	"github.com/guttosm/proptrack/internal/domain/models"
	"github.com/guttosm/proptrack/internal/formula"
	"github.com/guttosm/proptrack/internal/ingestion"
	"github.com/guttosm/proptrack/internal/platform"
	"github.com/guttosm/proptrack/internal/service"
	"github.com/guttosm/proptrack/internal/stats"
)

type mockImportService struct {
	res     *models.ImportResult
	preview *models.PreviewResult
	err     error
	got     service.ImportRequest
}

func (m *mockImportService) Import(_ context.Context, req service.ImportRequest) (*models.ImportResult, error) {
	m.got = req
	return m.res, m.err
}

func (m *mockImportService) Preview(_ context.Context, req service.ImportRequest) (*models.PreviewResult, error) {
	m.got = req
	return m.preview, m.err
}

var _ service.ImportService = (*mockImportService)(nil)

type mockStatsService struct {
	st       *models.TradingStatistics
	value    float64
	err      error
	from, to *time.Time
	expr     string
	userID   string
}

func (m *mockStatsService) Calculate(_ context.Context, userID, _ string, from, to *time.Time) (*models.TradingStatistics, error) {
	m.userID, m.from, m.to = userID, from, to
	return m.st, m.err
}

func (m *mockStatsService) Evaluate(_ context.Context, userID, _ string, from, to *time.Time, expr string) (float64, error) {
	m.userID, m.from, m.to, m.expr = userID, from, to, expr
	return m.value, m.err
}

var _ service.StatisticsService = (*mockStatsService)(nil)

// setupRouterWithMock mounts the handler without auth; the user id is set
// directly the way auth.Middleware would.
func setupRouterWithMock(imp service.ImportService, st service.StatisticsService, maxUpload int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(imp, st, maxUpload)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("auth.user_id", "u1"); c.Next() })
	v1 := r.Group("/api/v1/accounts/:id")
	v1.POST("/imports", h.ImportTrades)
	v1.POST("/imports/preview", h.PreviewImport)
	v1.GET("/statistics", h.GetStatistics)
	v1.POST("/statistics/custom", h.EvaluateCustomStatistic)
	return r
}

const sampleCSV = "Id,ContractName,EnteredAt,ExitedAt,EntryPrice,ExitPrice,Fees,PnL,Size,Type,TradeDay,TradeDuration,Commissions\n"

func TestImportTrades_TableDriven(t *testing.T) {
	cases := []struct {
		name    string
		svc     *mockImportService
		query   string
		body    string
		status  int
		wantMsg string
	}{
		{
			name:    "missing platform",
			svc:     &mockImportService{},
			query:   "/api/v1/accounts/a1/imports",
			body:    sampleCSV,
			status:  http.StatusBadRequest,
			wantMsg: "platform is required",
		},
		{
			name:    "unknown platform",
			svc:     &mockImportService{},
			query:   "/api/v1/accounts/a1/imports?platform=ninjatrader",
			body:    sampleCSV,
			status:  http.StatusBadRequest,
			wantMsg: "unsupported platform",
		},
		{
			name:    "parse error",
			svc:     &mockImportService{err: &ingestion.ParseError{Platform: "projectx", Err: ingestion.ErrEmptyFile}},
			query:   "/api/v1/accounts/a1/imports?platform=projectx",
			status:  http.StatusBadRequest,
			wantMsg: "invalid CSV",
		},
		{
			name:    "account not found",
			svc:     &mockImportService{err: service.ErrAccountNotFound},
			query:   "/api/v1/accounts/a1/imports?platform=projectx",
			body:    sampleCSV,
			status:  http.StatusNotFound,
			wantMsg: "account not found",
		},
		{
			name:    "incompatible platform",
			svc:     &mockImportService{err: &platform.IncompatiblePlatformError{BrokerFirm: "apex", Platform: "projectx"}},
			query:   "/api/v1/accounts/a1/imports?platform=projectx",
			body:    sampleCSV,
			status:  http.StatusUnprocessableEntity,
			wantMsg: "platform not supported",
		},
		{
			name:    "internal error",
			svc:     &mockImportService{err: errors.New("db down")},
			query:   "/api/v1/accounts/a1/imports?platform=projectx",
			body:    sampleCSV,
			status:  http.StatusInternalServerError,
			wantMsg: "Internal server error",
		},
		{
			name:   "success",
			svc:    &mockImportService{res: &models.ImportResult{Created: 1, TradesStored: 2, Summary: "Imported 2 of 2 trades"}},
			query:  "/api/v1/accounts/a1/imports?platform=ProjectX",
			body:   sampleCSV,
			status: http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouterWithMock(tc.svc, &mockStatsService{}, 0)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tc.query, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "text/csv")
			r.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Fatalf("want status %d got %d body=%s", tc.status, w.Code, w.Body.String())
			}
			if tc.wantMsg != "" {
				var er dto.ErrorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
					t.Fatalf("invalid json: %v", err)
				}
				if !strings.Contains(er.Message, tc.wantMsg) {
					t.Fatalf("message %q does not contain %q", er.Message, tc.wantMsg)
				}
				return
			}
			var out dto.ImportResponse
			if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if out.AccountID != "a1" || out.Platform != "projectx" || out.Created != 1 || out.TradesStored != 2 {
				t.Fatalf("unexpected body: %+v", out)
			}
			if tc.svc.got.UserID != "u1" || tc.svc.got.CSV != sampleCSV {
				t.Fatalf("unexpected request forwarded: %+v", tc.svc.got)
			}
		})
	}
}

func TestImportTrades_Multipart(t *testing.T) {
	svc := &mockImportService{res: &models.ImportResult{}}
	r := setupRouterWithMock(svc, &mockStatsService{}, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "trades.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte(sampleCSV))
	_ = mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/a1/imports?platform=tradovate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200 got %d body=%s", w.Code, w.Body.String())
	}
	if svc.got.CSV != sampleCSV || svc.got.Platform != "tradovate" {
		t.Fatalf("unexpected request forwarded: %+v", svc.got)
	}
}

func TestImportTrades_MultipartMissingFile(t *testing.T) {
	r := setupRouterWithMock(&mockImportService{}, &mockStatsService{}, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "x")
	_ = mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/a1/imports?platform=projectx", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("want 400 got %d", w.Code)
	}
}

func TestImportTrades_TooLarge(t *testing.T) {
	r := setupRouterWithMock(&mockImportService{res: &models.ImportResult{}}, &mockStatsService{}, 16)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/a1/imports?platform=projectx", strings.NewReader(sampleCSV))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413 got %d", w.Code)
	}
}

func TestPreviewImport(t *testing.T) {
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	svc := &mockImportService{preview: &models.PreviewResult{
		Days:        []models.PreviewDay{{Date: day, TotalPnl: decimal.RequireFromString("33.06"), NewPnl: decimal.RequireFromString("33.06"), TotalTradesCount: 2, NewTradesCount: 2}},
		TotalTrades: 2,
		NewTrades:   2,
		NetNewPnl:   decimal.RequireFromString("33.06"),
	}}
	r := setupRouterWithMock(svc, &mockStatsService{}, 0)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/a1/imports/preview?platform=projectx", strings.NewReader(sampleCSV))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200 got %d body=%s", w.Code, w.Body.String())
	}
	var out dto.PreviewResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if out.NewTrades != 2 || !out.NetNewPnl.Equal(decimal.RequireFromString("33.06")) || len(out.Days) != 1 {
		t.Fatalf("unexpected body: %+v", out)
	}
}

func TestGetStatistics_TableDriven(t *testing.T) {
	cases := []struct {
		name     string
		svc      *mockStatsService
		query    string
		status   int
		wantFrom string
	}{
		{
			name:   "invalid date format",
			svc:    &mockStatsService{},
			query:  "/api/v1/accounts/a1/statistics?from=2025/01/01",
			status: http.StatusBadRequest,
		},
		{
			name:   "inverted range",
			svc:    &mockStatsService{err: &service.InvalidRangeError{}},
			query:  "/api/v1/accounts/a1/statistics?from=2025-02-01&to=2025-01-01",
			status: http.StatusBadRequest,
		},
		{
			name:   "not found",
			svc:    &mockStatsService{err: fmt.Errorf("load: %w", service.ErrAccountNotFound)},
			query:  "/api/v1/accounts/a1/statistics",
			status: http.StatusNotFound,
		},
		{
			name:   "invalid input",
			svc:    &mockStatsService{err: &stats.InvalidInputError{Total: 3, Excluded: 3}},
			query:  "/api/v1/accounts/a1/statistics",
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "internal error",
			svc:    &mockStatsService{err: errors.New("db down")},
			query:  "/api/v1/accounts/a1/statistics",
			status: http.StatusInternalServerError,
		},
		{
			name:     "success",
			svc:      &mockStatsService{st: &models.TradingStatistics{TotalTrades: 3, NetPnl: decimal.RequireFromString("14"), ProfitFactor: 3}},
			query:    "/api/v1/accounts/a1/statistics?from=2025-01-01&to=2025-01-31",
			status:   http.StatusOK,
			wantFrom: "2025-01-01",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouterWithMock(&mockImportService{}, tc.svc, 0)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.query, nil)
			r.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Fatalf("want status %d got %d body=%s", tc.status, w.Code, w.Body.String())
			}
			if tc.status != http.StatusOK {
				return
			}
			var out dto.StatisticsResponse
			if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if out.AccountID != "a1" || out.From != tc.wantFrom || out.TotalTrades != 3 || out.ProfitFactor != 3 {
				t.Fatalf("unexpected body: %+v", out)
			}
			if tc.svc.from == nil || tc.svc.to == nil || tc.svc.to.Day() != 31 || tc.svc.userID != "u1" {
				t.Fatalf("range not forwarded: from=%v to=%v", tc.svc.from, tc.svc.to)
			}
		})
	}
}

func TestEvaluateCustomStatistic_TableDriven(t *testing.T) {
	cases := []struct {
		name   string
		svc    *mockStatsService
		body   string
		status int
	}{
		{name: "malformed json", svc: &mockStatsService{}, body: `{`, status: http.StatusBadRequest},
		{name: "missing formula", svc: &mockStatsService{}, body: `{}`, status: http.StatusBadRequest},
		{name: "formula too long", svc: &mockStatsService{}, body: `{"formula":"` + strings.Repeat("1", 600) + `"}`, status: http.StatusBadRequest},
		{name: "bad date", svc: &mockStatsService{}, body: `{"formula":"net_pnl","from":"01-01-2025"}`, status: http.StatusBadRequest},
		{name: "formula error", svc: &mockStatsService{err: &formula.Error{Pos: 0, Msg: "unknown variable \"x\""}}, body: `{"formula":"x"}`, status: http.StatusBadRequest},
		{name: "not found", svc: &mockStatsService{err: service.ErrAccountNotFound}, body: `{"formula":"net_pnl"}`, status: http.StatusNotFound},
		{name: "success", svc: &mockStatsService{value: 4.67}, body: `{"formula":"net_pnl / total_trades","from":"2025-01-01"}`, status: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouterWithMock(&mockImportService{}, tc.svc, 0)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/a1/statistics/custom", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Fatalf("want status %d got %d body=%s", tc.status, w.Code, w.Body.String())
			}
			if tc.status != http.StatusOK {
				return
			}
			var out dto.CustomStatisticResponse
			if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if out.Value != 4.67 || out.Formula != "net_pnl / total_trades" || tc.svc.expr != out.Formula {
				t.Fatalf("unexpected body: %+v", out)
			}
			if tc.svc.from == nil || tc.svc.to != nil {
				t.Fatalf("range not forwarded: from=%v to=%v", tc.svc.from, tc.svc.to)
			}
		})
	}
}
