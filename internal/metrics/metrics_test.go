package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/guttosm/proptrack/internal/domain/models"
)

func TestObserveImport(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveImport("projectx", &models.ImportResult{TradesStored: 3, TradesFailed: 1, DuplicatesIgnored: 2, Created: 1, Updated: 1}, nil)
	m.ObserveImport("projectx", nil, errors.New("boom"))

	if got := testutil.ToFloat64(m.ImportsTotal.WithLabelValues("projectx", "import", "ok")); got != 1 {
		t.Fatalf("ok imports: got %v", got)
	}
	if got := testutil.ToFloat64(m.ImportsTotal.WithLabelValues("projectx", "import", "error")); got != 1 {
		t.Fatalf("error imports: got %v", got)
	}
	if got := testutil.ToFloat64(m.ImportTrades.WithLabelValues("projectx", "stored")); got != 3 {
		t.Fatalf("stored trades: got %v", got)
	}
	if got := testutil.ToFloat64(m.ImportTrades.WithLabelValues("projectx", "duplicate")); got != 2 {
		t.Fatalf("duplicates: got %v", got)
	}
	if got := testutil.ToFloat64(m.LedgerEntries.WithLabelValues("created")); got != 1 {
		t.Fatalf("created entries: got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveImport("projectx", &models.ImportResult{}, nil)
	m.ObservePreview("projectx", nil)
	m.ObserveStatistics("standard", nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d", w.Code)
	}
}

func TestGinMiddleware_UsesRouteTemplate(t *testing.T) {
	m := New(prometheus.NewRegistry())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/accounts/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/accounts/"+id, nil))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/accounts/:id", "200")); got != 2 {
		t.Fatalf("route counter: got %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched counter: got %v", got)
	}
}
