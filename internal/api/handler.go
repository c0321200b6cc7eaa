package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/proptrack/internal/auth"
	"github.com/guttosm/proptrack/internal/domain/dto"
	"github.com/guttosm/proptrack/internal/formula"
	"github.com/guttosm/proptrack/internal/ingestion"
	"github.com/guttosm/proptrack/internal/middleware"
	"github.com/guttosm/proptrack/internal/platform"
	"github.com/guttosm/proptrack/internal/service"
	"github.com/guttosm/proptrack/internal/stats"
)

// DefaultMaxUploadBytes bounds CSV uploads when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// Handler provides HTTP handlers for trade imports and statistics.
//
// Responsibilities:
//   - Validate path, query and body input
//   - Delegate to the import and statistics services with the caller's user id
//   - Translate domain errors into HTTP status codes and dto.ErrorResponse bodies
type Handler struct {
	imports        service.ImportService
	statistics     service.StatisticsService
	maxUploadBytes int64
}

// NewHandler constructs a new Handler instance.
//
// Parameters:
//   - imports: import and preview use cases.
//   - statistics: statistics use cases.
//   - maxUploadBytes: CSV size limit; <= 0 uses DefaultMaxUploadBytes.
func NewHandler(imports service.ImportService, statistics service.StatisticsService, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{imports: imports, statistics: statistics, maxUploadBytes: maxUploadBytes}
}

// ImportTrades handles POST /api/v1/accounts/:id/imports.
//
// ImportTrades godoc
// @Summary      Import a trade CSV
// @Description  Parses a broker CSV export, stores new trades and adds their net PnL to the daily ledger. Re-importing the same file is a no-op.
// @Tags         imports
// @Accept       text/csv
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id        path      string  true  "Account id"
// @Param        platform  query     string  true  "Export platform" Enums(projectx, tradovate)
// @Param        file      formData  file    false "CSV file (or send the CSV as the raw body)"
// @Success      200       {object}  dto.ImportResponse  "Success"
// @Failure      400       {object}  dto.ErrorResponse   "Malformed CSV or request"
// @Failure      401       {object}  dto.ErrorResponse   "Unauthorized"
// @Failure      404       {object}  dto.ErrorResponse   "Account not found"
// @Failure      413       {object}  dto.ErrorResponse   "File too large"
// @Failure      422       {object}  dto.ErrorResponse   "Platform not supported for the account's firm"
// @Failure      500       {object}  dto.ErrorResponse   "Internal Error"
// @Router       /api/v1/accounts/{id}/imports [post]
func (h *Handler) ImportTrades(c *gin.Context) {
	req, ok := h.importRequest(c)
	if !ok {
		return
	}
	res, err := h.imports.Import(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ImportResponse{AccountID: req.AccountID, Platform: platform.Normalize(req.Platform), ImportResult: *res})
}

// PreviewImport handles POST /api/v1/accounts/:id/imports/preview.
//
// PreviewImport godoc
// @Summary      Preview a trade CSV import
// @Description  Reports per day what an import of the CSV would add, without writing anything.
// @Tags         imports
// @Accept       text/csv
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id        path      string  true  "Account id"
// @Param        platform  query     string  true  "Export platform" Enums(projectx, tradovate)
// @Param        file      formData  file    false "CSV file (or send the CSV as the raw body)"
// @Success      200       {object}  dto.PreviewResponse  "Success"
// @Failure      400       {object}  dto.ErrorResponse    "Malformed CSV or request"
// @Failure      401       {object}  dto.ErrorResponse    "Unauthorized"
// @Failure      404       {object}  dto.ErrorResponse    "Account not found"
// @Failure      422       {object}  dto.ErrorResponse    "Platform not supported for the account's firm"
// @Failure      500       {object}  dto.ErrorResponse    "Internal Error"
// @Router       /api/v1/accounts/{id}/imports/preview [post]
func (h *Handler) PreviewImport(c *gin.Context) {
	req, ok := h.importRequest(c)
	if !ok {
		return
	}
	res, err := h.imports.Preview(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PreviewResponse{AccountID: req.AccountID, Platform: platform.Normalize(req.Platform), PreviewResult: *res})
}

// GetStatistics handles GET /api/v1/accounts/:id/statistics.
//
// GetStatistics godoc
// @Summary      Trading statistics
// @Description  Computes performance statistics over the account's stored trades, optionally limited to a trade-day range.
// @Tags         statistics
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string  true   "Account id"
// @Param        from  query     string  false  "First trade day, YYYY-MM-DD" example(2025-01-01)
// @Param        to    query     string  false  "Last trade day, YYYY-MM-DD" example(2025-01-31)
// @Success      200   {object}  dto.StatisticsResponse  "Success"
// @Failure      400   {object}  dto.ErrorResponse       "Bad Request"
// @Failure      401   {object}  dto.ErrorResponse       "Unauthorized"
// @Failure      404   {object}  dto.ErrorResponse       "Account not found"
// @Failure      422   {object}  dto.ErrorResponse       "Stored trades unusable for statistics"
// @Failure      500   {object}  dto.ErrorResponse       "Internal Error"
// @Router       /api/v1/accounts/{id}/statistics [get]
func (h *Handler) GetStatistics(c *gin.Context) {
	accountID := strings.TrimSpace(c.Param("id"))
	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid date range, expected YYYY-MM-DD", err)
		return
	}

	st, err := h.statistics.Calculate(c.Request.Context(), auth.UserID(c), accountID, from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.StatisticsResponse{
		AccountID:         accountID,
		From:              c.Query("from"),
		To:                c.Query("to"),
		TradingStatistics: *st,
	})
}

// EvaluateCustomStatistic handles POST /api/v1/accounts/:id/statistics/custom.
//
// EvaluateCustomStatistic godoc
// @Summary      Evaluate a custom statistic
// @Description  Evaluates an arithmetic formula (+ - * /, parentheses, abs/min/max) over the account's statistics, e.g. "net_pnl / total_trades".
// @Tags         statistics
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                      true  "Account id"
// @Param        body  body      dto.CustomStatisticRequest  true  "Formula and optional range"
// @Success      200   {object}  dto.CustomStatisticResponse "Success"
// @Failure      400   {object}  dto.ErrorResponse           "Invalid formula or request"
// @Failure      401   {object}  dto.ErrorResponse           "Unauthorized"
// @Failure      404   {object}  dto.ErrorResponse           "Account not found"
// @Failure      422   {object}  dto.ErrorResponse           "Stored trades unusable for statistics"
// @Failure      500   {object}  dto.ErrorResponse           "Internal Error"
// @Router       /api/v1/accounts/{id}/statistics/custom [post]
func (h *Handler) EvaluateCustomStatistic(c *gin.Context) {
	accountID := strings.TrimSpace(c.Param("id"))

	var body dto.CustomStatisticRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	from, to, err := parseRange(body.From, body.To)
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid date range, expected YYYY-MM-DD", err)
		return
	}

	v, err := h.statistics.Evaluate(c.Request.Context(), auth.UserID(c), accountID, from, to, body.Formula)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CustomStatisticResponse{AccountID: accountID, Formula: body.Formula, Value: v})
}

// importRequest reads the account id, platform and CSV body. It writes the
// error response itself and reports false when the request is unusable.
func (h *Handler) importRequest(c *gin.Context) (service.ImportRequest, bool) {
	req := service.ImportRequest{
		UserID:    auth.UserID(c),
		AccountID: strings.TrimSpace(c.Param("id")),
		Platform:  strings.TrimSpace(c.Query("platform")),
	}
	if req.Platform == "" {
		middleware.AbortWithError(c, http.StatusBadRequest, "platform is required", nil)
		return req, false
	}
	if !platform.Known(req.Platform) {
		middleware.AbortWithError(c, http.StatusBadRequest, fmt.Sprintf("unsupported platform %q", req.Platform), nil)
		return req, false
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	text, err := readCSV(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.AbortWithError(c, http.StatusRequestEntityTooLarge, "file too large", err)
			return req, false
		}
		middleware.AbortWithError(c, http.StatusBadRequest, "could not read CSV upload", err)
		return req, false
	}
	req.CSV = text
	return req, true
}

// readCSV accepts either a multipart "file" field or the raw request body.
func readCSV(c *gin.Context) (string, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return "", err
		}
		f, err := fh.Open()
		if err != nil {
			return "", err
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		return string(b), err
	}
	b, err := io.ReadAll(c.Request.Body)
	return string(b), err
}

func parseRange(fromS, toS string) (from, to *time.Time, err error) {
	if fromS != "" {
		d, err := time.Parse(time.DateOnly, fromS)
		if err != nil {
			return nil, nil, err
		}
		from = &d
	}
	if toS != "" {
		d, err := time.Parse(time.DateOnly, toS)
		if err != nil {
			return nil, nil, err
		}
		to = &d
	}
	return from, to, nil
}

// writeError maps domain errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	var (
		parseErr   *ingestion.ParseError
		compatErr  *platform.IncompatiblePlatformError
		invalidErr *stats.InvalidInputError
		formulaErr *formula.Error
		rangeErr   *service.InvalidRangeError
	)
	switch {
	case errors.As(err, &parseErr):
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid CSV", err)
	case errors.As(err, &formulaErr):
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid formula", err)
	case errors.As(err, &rangeErr):
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid date range", err)
	case errors.Is(err, service.ErrAccountNotFound):
		middleware.AbortWithError(c, http.StatusNotFound, "account not found", nil)
	case errors.As(err, &compatErr):
		middleware.AbortWithError(c, http.StatusUnprocessableEntity, "platform not supported for this account", err)
	case errors.As(err, &invalidErr):
		middleware.AbortWithError(c, http.StatusUnprocessableEntity, "stored trades cannot be used for statistics", err)
	case errors.Is(err, auth.ErrUnauthenticated):
		middleware.AbortWithError(c, http.StatusUnauthorized, "Unauthorized", nil)
	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse("Internal server error", nil))
	}
}
