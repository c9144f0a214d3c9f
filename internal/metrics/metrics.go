// Package metrics exposes Prometheus instrumentation for the market engine.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/evetabi/opportunity/internal/domain"
)

const namespace = "opportunity"

// Recorder holds the engine's counters. It satisfies service.Recorder.
type Recorder struct {
	Operations *prometheus.CounterVec
	Released   *prometheus.CounterVec
	HTTP       *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewRecorder registers all metrics on a fresh registry together with the
// Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newRecorder(reg, reg)
}

func newRecorder(reg prometheus.Registerer, g prometheus.Gatherer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Engine operations by name and result.",
		}, []string{"op", "result"}),
		Released: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "released_amount_total",
			Help:      "Funds released by claims, in collateral units.",
		}, []string{"kind"}),
		HTTP: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		gatherer: g,
	}
}

// ObserveOperation counts one engine operation.
func (r *Recorder) ObserveOperation(op, result string) {
	r.Operations.WithLabelValues(op, result).Inc()
}

// ObserveReleased adds amount to the released funds counter.
func (r *Recorder) ObserveReleased(kind string, amount decimal.Decimal) {
	f, _ := amount.Float64()
	r.Released.WithLabelValues(kind).Add(f)
}

// ObserveHTTP records one request's latency.
func (r *Recorder) ObserveHTTP(route, status string, d time.Duration) {
	r.HTTP.WithLabelValues(route, status).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// ──────────────────────────────────────────────────────────────────────────────
// Directory gauges
// ──────────────────────────────────────────────────────────────────────────────

// StatsFunc returns the current directory counters.
type StatsFunc func(ctx context.Context) (domain.MarketStats, error)

type statsCollector struct {
	stats  StatsFunc
	logger *slog.Logger

	markets *prometheus.Desc
	bids    *prometheus.Desc
}

// RegisterStats exposes directory counters as gauges computed at scrape
// time. Scrape errors are logged and the gauges are omitted.
func (r *Recorder) RegisterStats(reg prometheus.Registerer, fn StatsFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	return reg.Register(&statsCollector{
		stats:  fn,
		logger: logger,
		markets: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "markets"),
			"Markets by directory bucket.", []string{"bucket"}, nil),
		bids: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bids"),
			"Bids across all markets.", nil, nil),
	})
}

// Registerer returns the registry backing r when it was built by NewRecorder.
func (r *Recorder) Registerer() prometheus.Registerer {
	if reg, ok := r.gatherer.(prometheus.Registerer); ok {
		return reg
	}
	return prometheus.DefaultRegisterer
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.markets
	ch <- c.bids
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := c.stats(ctx)
	if err != nil {
		c.logger.Warn("metrics: stats scrape failed", "err", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.markets, prometheus.GaugeValue, float64(st.Active), "active")
	ch <- prometheus.MustNewConstMetric(c.markets, prometheus.GaugeValue, float64(st.Locked), "locked")
	ch <- prometheus.MustNewConstMetric(c.markets, prometheus.GaugeValue, float64(st.Resolved), "resolved")
	ch <- prometheus.MustNewConstMetric(c.bids, prometheus.GaugeValue, float64(st.Bids))
}
