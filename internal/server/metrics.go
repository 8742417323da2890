package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry        *prometheus.Registry
	claimsTotal     *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	readFailures    *prometheus.CounterVec
	claimsInFlight  prometheus.GaugeFunc
}

// newMetricsRegistry reads the in-flight gauge from inFlightFn at scrape time.
func newMetricsRegistry(inFlightFn func() float64) *metricsRegistry {
	claims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mintdrop_claims_total",
		Help: "Resolved claim transactions by outcome",
	}, []string{"outcome"})

	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mintdrop_claim_rejections_total",
		Help: "Claim submissions refused before reaching the ledger",
	}, []string{"reason"})

	reads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mintdrop_ledger_read_failures_total",
		Help: "Failed supply or price fetches",
	}, []string{"fetch"})

	inFlight := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "mintdrop_claims_in_flight",
		Help: "Claims submitted and not yet resolved",
	}, inFlightFn)

	r := prometheus.NewRegistry()
	r.MustRegister(claims, rejections, reads, inFlight)

	return &metricsRegistry{
		registry:        r,
		claimsTotal:     claims,
		rejectionsTotal: rejections,
		readFailures:    reads,
		claimsInFlight:  inFlight,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) claimResolved(outcome string) {
	m.claimsTotal.WithLabelValues(outcome).Inc()
}

func (m *metricsRegistry) incRejection(reason string) {
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}

func (m *metricsRegistry) incReadFailure(fetch string) {
	m.readFailures.WithLabelValues(fetch).Inc()
}
