// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/guttosm/proptrack/internal/domain/models"
)

const namespace = "proptrack"

// Metrics groups the service collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ImportsTotal        *prometheus.CounterVec
	ImportTrades        *prometheus.CounterVec
	LedgerEntries       *prometheus.CounterVec
	StatisticsTotal     *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ImportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Imports and previews by platform and outcome.",
		}, []string{"platform", "mode", "outcome"}),
		ImportTrades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_trades_total",
			Help:      "Trades seen by imports, by result (stored, failed, duplicate).",
		}, []string{"platform", "result"}),
		LedgerEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_entries_total",
			Help:      "Ledger entries touched by imports, by action (created, updated).",
		}, []string{"action"}),
		StatisticsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statistics_requests_total",
			Help:      "Statistics computations by kind (standard, custom) and outcome.",
		}, []string{"kind", "outcome"}),
	}
}

// ObserveImport records the outcome of an import. res may be nil on error.
func (m *Metrics) ObserveImport(platform string, res *models.ImportResult, err error) {
	if m == nil {
		return
	}
	if err != nil || res == nil {
		m.ImportsTotal.WithLabelValues(platform, "import", "error").Inc()
		return
	}
	m.ImportsTotal.WithLabelValues(platform, "import", "ok").Inc()
	m.ImportTrades.WithLabelValues(platform, "stored").Add(float64(res.TradesStored))
	m.ImportTrades.WithLabelValues(platform, "failed").Add(float64(res.TradesFailed))
	m.ImportTrades.WithLabelValues(platform, "duplicate").Add(float64(res.DuplicatesIgnored))
	m.LedgerEntries.WithLabelValues("created").Add(float64(res.Created))
	m.LedgerEntries.WithLabelValues("updated").Add(float64(res.Updated))
}

// ObservePreview records a preview run.
func (m *Metrics) ObservePreview(platform string, err error) {
	if m == nil {
		return
	}
	m.ImportsTotal.WithLabelValues(platform, "preview", outcome(err)).Inc()
}

// ObserveStatistics records a statistics computation.
func (m *Metrics) ObserveStatistics(kind string, err error) {
	if m == nil {
		return
	}
	m.StatisticsTotal.WithLabelValues(kind, outcome(err)).Inc()
}

// GinMiddleware counts requests and observes their latency per route
// template, so path parameters do not explode label cardinality.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
