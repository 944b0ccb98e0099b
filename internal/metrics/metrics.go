// Package metrics exposes Prometheus counters for settlement, pricing and
// valuation.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	settlements        *prometheus.CounterVec
	settlementFailures *prometheus.CounterVec
	oracleRequests     *prometheus.CounterVec
	statsDegraded      prometheus.Counter
	lastScanSettled    prometheus.Gauge
}

// New registers every collector on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		settlements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dualtrack_settlements_total",
			Help: "Trades settled, by trigger and outcome",
		}, []string{"trigger", "exercised"}),
		settlementFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dualtrack_settlement_failures_total",
			Help: "Settlement attempts that did not settle a trade, by reason",
		}, []string{"reason"}),
		oracleRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dualtrack_oracle_requests_total",
			Help: "Price lookups by source and result",
		}, []string{"source", "result"}),
		statsDegraded: f.NewCounter(prometheus.CounterOpts{
			Name: "dualtrack_stats_price_degraded_total",
			Help: "Stats computations that fell back to zero prices",
		}),
		lastScanSettled: f.NewGauge(prometheus.GaugeOpts{
			Name: "dualtrack_last_scan_settled",
			Help: "Trades settled by the most recent scheduled scan",
		}),
	}
}

// RecordSettlement counts a settled trade.
func (m *Metrics) RecordSettlement(trigger string, exercised bool) {
	m.settlements.WithLabelValues(trigger, strconv.FormatBool(exercised)).Inc()
}

// RecordSettlementFailure counts a trade left pending.
func (m *Metrics) RecordSettlementFailure(reason string) {
	m.settlementFailures.WithLabelValues(reason).Inc()
}

// RecordOracleRequest counts a price lookup.
func (m *Metrics) RecordOracleRequest(source, result string) {
	m.oracleRequests.WithLabelValues(source, result).Inc()
}

// RecordStatsDegraded counts a degraded stats computation.
func (m *Metrics) RecordStatsDegraded() {
	m.statsDegraded.Inc()
}

// SetLastScanSettled records the size of the latest scan result.
func (m *Metrics) SetLastScanSettled(n int) {
	m.lastScanSettled.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
